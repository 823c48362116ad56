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

const schemeColumns = `id, title, description, eligibility, benefits, budget, start_date, end_date, author_id,
	status, remarks, approver_id, approved_at, ratings, average_rating, total_ratings, version, created_at, updated_at`

var schemeSorts = map[string]bool{"created_at": true, "updated_at": true, "title": true, "budget": true, "average_rating": true}

// SchemeRepository persists government schemes.
type SchemeRepository struct {
	db *sqlx.DB
}

// NewSchemeRepository constructs the repository.
func NewSchemeRepository(db *sqlx.DB) *SchemeRepository {
	return &SchemeRepository{db: db}
}

// Create inserts a pending scheme.
func (r *SchemeRepository) Create(ctx context.Context, scheme *models.Scheme) error {
	if scheme.ID == "" {
		scheme.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	scheme.Status = models.ApprovalPending
	scheme.Ratings = models.Ratings{}
	scheme.Version = 1
	scheme.CreatedAt = now
	scheme.UpdatedAt = now
	const query = `INSERT INTO schemes
	(id, title, description, eligibility, benefits, budget, start_date, end_date, author_id, status, ratings, average_rating, total_ratings, version, created_at, updated_at)
	VALUES (:id, :title, :description, :eligibility, :benefits, :budget, :start_date, :end_date, :author_id, :status, :ratings, :average_rating, :total_ratings, :version, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, scheme); err != nil {
		return fmt.Errorf("create scheme: %w", err)
	}
	return nil
}

// FindByID fetches a scheme by identifier.
func (r *SchemeRepository) FindByID(ctx context.Context, id string) (*models.Scheme, error) {
	var scheme models.Scheme
	if err := r.db.GetContext(ctx, &scheme, `SELECT `+schemeColumns+` FROM schemes WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find scheme: %w", err)
	}
	return &scheme, nil
}

// List returns schemes matching the filter with the total count.
func (r *SchemeRepository) List(ctx context.Context, filter models.ContentFilter) ([]models.Scheme, int, error) {
	q := buildContentQuery(filter, []string{"title", "description"}, schemeSorts)
	listQuery := fmt.Sprintf(`SELECT %s FROM schemes%s ORDER BY %s LIMIT %d OFFSET %d`, schemeColumns, q.where, q.orderBy, q.limit, q.offset)
	var schemes []models.Scheme
	if err := r.db.SelectContext(ctx, &schemes, listQuery, q.args...); err != nil {
		return nil, 0, fmt.Errorf("list schemes: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM schemes`+q.where, q.args...); err != nil {
		return nil, 0, fmt.Errorf("count schemes: %w", err)
	}
	return schemes, total, nil
}

// UpdatePending writes the editable fields while the scheme is still pending.
// Returns sql.ErrNoRows when the row is missing or has been reviewed.
func (r *SchemeRepository) UpdatePending(ctx context.Context, scheme *models.Scheme) error {
	scheme.UpdatedAt = time.Now().UTC()
	const query = `UPDATE schemes SET title = :title, description = :description, eligibility = :eligibility, benefits = :benefits,
	budget = :budget, start_date = :start_date, end_date = :end_date, updated_at = :updated_at
	WHERE id = :id AND author_id = :author_id AND status = 'pending'`
	result, err := r.db.NamedExecContext(ctx, query, scheme)
	if err != nil {
		return fmt.Errorf("update scheme: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check scheme update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
