package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/civic-portal-api/internal/models"
)

const complaintColumns = `id, user_id, title, description, category, location, status, priority, assigned_to, admin_response, pa_response, created_at, updated_at`

// ComplaintRepository persists citizen complaints.
type ComplaintRepository struct {
	db *sqlx.DB
}

// NewComplaintRepository constructs the repository.
func NewComplaintRepository(db *sqlx.DB) *ComplaintRepository {
	return &ComplaintRepository{db: db}
}

// Create inserts a complaint.
func (r *ComplaintRepository) Create(ctx context.Context, complaint *models.Complaint) error {
	if complaint.ID == "" {
		complaint.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	complaint.CreatedAt = now
	complaint.UpdatedAt = now
	const query = `INSERT INTO complaints (id, user_id, title, description, category, location, status, priority, created_at, updated_at)
	VALUES (:id, :user_id, :title, :description, :category, :location, :status, :priority, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, complaint); err != nil {
		return fmt.Errorf("create complaint: %w", err)
	}
	return nil
}

// FindByID fetches a complaint by identifier.
func (r *ComplaintRepository) FindByID(ctx context.Context, id string) (*models.Complaint, error) {
	var complaint models.Complaint
	if err := r.db.GetContext(ctx, &complaint, `SELECT `+complaintColumns+` FROM complaints WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find complaint: %w", err)
	}
	return &complaint, nil
}

// List returns complaints matching the filter newest first.
func (r *ComplaintRepository) List(ctx context.Context, filter models.ComplaintFilter) ([]models.Complaint, int, error) {
	var (
		conditions []string
		args       []interface{}
	)
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Priority != nil {
		args = append(args, *filter.Priority)
		conditions = append(conditions, fmt.Sprintf("priority = $%d", len(args)))
	}
	if filter.AssignedTo != "" {
		args = append(args, filter.AssignedTo)
		conditions = append(conditions, fmt.Sprintf("assigned_to = $%d", len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}
	order := "DESC"
	if strings.EqualFold(filter.SortOrder, "asc") {
		order = "ASC"
	}
	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	listQuery := fmt.Sprintf(`SELECT %s FROM complaints%s ORDER BY created_at %s LIMIT %d OFFSET %d`, complaintColumns, where, order, pageSize, (page-1)*pageSize)

	var complaints []models.Complaint
	if err := r.db.SelectContext(ctx, &complaints, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list complaints: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM complaints`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count complaints: %w", err)
	}
	return complaints, total, nil
}

// Update writes the staff-managed complaint fields.
func (r *ComplaintRepository) Update(ctx context.Context, complaint *models.Complaint) error {
	complaint.UpdatedAt = time.Now().UTC()
	const query = `UPDATE complaints SET status = :status, priority = :priority, assigned_to = :assigned_to,
	admin_response = :admin_response, pa_response = :pa_response, updated_at = :updated_at WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, complaint)
	if err != nil {
		return fmt.Errorf("update complaint: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check complaint update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountByStatus groups complaints by status.
func (r *ComplaintRepository) CountByStatus(ctx context.Context) ([]models.StatusCount, error) {
	var rows []models.StatusCount
	if err := r.db.SelectContext(ctx, &rows, `SELECT status, COUNT(*) AS count FROM complaints GROUP BY status`); err != nil {
		return nil, fmt.Errorf("count complaints by status: %w", err)
	}
	return rows, nil
}
