package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/civic-portal-api/internal/models"
)

const projectColumns = `id, title, description, category, location, funds_allocated, funds_utilized, start_date, end_date, author_id,
	status, remarks, approver_id, approved_at, ratings, average_rating, total_ratings, version, created_at, updated_at`

var projectSorts = map[string]bool{"created_at": true, "updated_at": true, "title": true, "funds_allocated": true, "average_rating": true}

// ProjectRepository persists development projects.
type ProjectRepository struct {
	db *sqlx.DB
}

// NewProjectRepository constructs the repository.
func NewProjectRepository(db *sqlx.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// Create inserts a pending project.
func (r *ProjectRepository) Create(ctx context.Context, project *models.Project) error {
	if project.ID == "" {
		project.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	project.Status = models.ApprovalPending
	project.Ratings = models.Ratings{}
	project.Version = 1
	project.CreatedAt = now
	project.UpdatedAt = now
	const query = `INSERT INTO projects
	(id, title, description, category, location, funds_allocated, funds_utilized, start_date, end_date, author_id, status, ratings, average_rating, total_ratings, version, created_at, updated_at)
	VALUES (:id, :title, :description, :category, :location, :funds_allocated, :funds_utilized, :start_date, :end_date, :author_id, :status, :ratings, :average_rating, :total_ratings, :version, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, project); err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

// FindByID fetches a project by identifier.
func (r *ProjectRepository) FindByID(ctx context.Context, id string) (*models.Project, error) {
	var project models.Project
	if err := r.db.GetContext(ctx, &project, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find project: %w", err)
	}
	return &project, nil
}

// List returns projects matching the filter with the total count.
func (r *ProjectRepository) List(ctx context.Context, filter models.ContentFilter) ([]models.Project, int, error) {
	q := buildContentQuery(filter, []string{"title", "description", "location"}, projectSorts)
	listQuery := fmt.Sprintf(`SELECT %s FROM projects%s ORDER BY %s LIMIT %d OFFSET %d`, projectColumns, q.where, q.orderBy, q.limit, q.offset)
	var projects []models.Project
	if err := r.db.SelectContext(ctx, &projects, listQuery, q.args...); err != nil {
		return nil, 0, fmt.Errorf("list projects: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM projects`+q.where, q.args...); err != nil {
		return nil, 0, fmt.Errorf("count projects: %w", err)
	}
	return projects, total, nil
}

// Update writes the editable project fields. When onlyPending is set the write only
// applies while the row is still pending; sql.ErrNoRows reports a miss.
func (r *ProjectRepository) Update(ctx context.Context, project *models.Project, onlyPending bool) error {
	project.UpdatedAt = time.Now().UTC()
	query := `UPDATE projects SET title = :title, description = :description, category = :category, location = :location,
	funds_allocated = :funds_allocated, funds_utilized = :funds_utilized, start_date = :start_date, end_date = :end_date, updated_at = :updated_at
	WHERE id = :id`
	if onlyPending {
		query += ` AND status = 'pending'`
	}
	result, err := r.db.NamedExecContext(ctx, query, project)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check project update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ApprovedTotals sums the funding of approved projects.
func (r *ProjectRepository) ApprovedTotals(ctx context.Context) (*models.ProjectTotals, error) {
	const query = `SELECT COUNT(*) AS count, COALESCE(SUM(funds_allocated), 0) AS funds_allocated, COALESCE(SUM(funds_utilized), 0) AS funds_utilized
	FROM projects WHERE status = 'approved'`
	var totals models.ProjectTotals
	if err := r.db.GetContext(ctx, &totals, query); err != nil {
		return nil, fmt.Errorf("approved project totals: %w", err)
	}
	return &totals, nil
}
