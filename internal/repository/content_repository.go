package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/civic-portal-api/internal/models"
)

var contentTables = map[models.ContentKind]string{
	models.ContentProject: "projects",
	models.ContentScheme:  "schemes",
	models.ContentEvent:   "events",
}

func contentTable(kind models.ContentKind) (string, error) {
	table, ok := contentTables[kind]
	if !ok {
		return "", fmt.Errorf("unsupported content kind %q", kind)
	}
	return table, nil
}

// ContentRepository persists the review and rating columns shared by projects, schemes and events.
type ContentRepository struct {
	db *sqlx.DB
}

// NewContentRepository constructs the repository.
func NewContentRepository(db *sqlx.DB) *ContentRepository {
	return &ContentRepository{db: db}
}

// ReviewParams groups the columns written by an approval decision.
type ReviewParams struct {
	Kind       models.ContentKind
	ID         string
	From       models.ApprovalStatus
	Status     models.ApprovalStatus
	Remarks    *string
	ApproverID string
	ApprovedAt time.Time
}

// Review moves an item out of From. Returns sql.ErrNoRows when the row is no longer in From.
func (r *ContentRepository) Review(ctx context.Context, params ReviewParams) error {
	table, err := contentTable(params.Kind)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`UPDATE %s SET status = :status, remarks = :remarks, approver_id = :approver_id, approved_at = :approved_at, updated_at = :updated_at WHERE id = :id AND status = :from`, table)
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":          params.ID,
		"from":        params.From,
		"status":      params.Status,
		"remarks":     params.Remarks,
		"approver_id": params.ApproverID,
		"approved_at": params.ApprovedAt,
		"updated_at":  params.ApprovedAt,
	})
	if err != nil {
		return fmt.Errorf("review %s: %w", params.Kind, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check %s review rows: %w", params.Kind, err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// GetRatingState loads the status, ratings and version of an item.
func (r *ContentRepository) GetRatingState(ctx context.Context, kind models.ContentKind, id string) (*models.RatingState, error) {
	table, err := contentTable(kind)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT id, status, ratings, average_rating, total_ratings, version FROM %s WHERE id = $1`, table)
	var state models.RatingState
	if err := r.db.GetContext(ctx, &state, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get %s rating state: %w", kind, err)
	}
	return &state, nil
}

// SaveRatingsParams carries a recomputed rating aggregate and the version it was derived from.
type SaveRatingsParams struct {
	Kind            models.ContentKind
	ID              string
	Ratings         models.Ratings
	AverageRating   float64
	TotalRatings    int
	ExpectedVersion int
}

// SaveRatings writes ratings and aggregates in one statement guarded by the version column.
// Returns sql.ErrNoRows when another writer bumped the version first.
func (r *ContentRepository) SaveRatings(ctx context.Context, params SaveRatingsParams) error {
	table, err := contentTable(params.Kind)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`UPDATE %s SET ratings = $3, average_rating = $4, total_ratings = $5, version = version + 1, updated_at = $6 WHERE id = $1 AND version = $2`, table)
	result, err := r.db.ExecContext(ctx, query, params.ID, params.ExpectedVersion, params.Ratings, params.AverageRating, params.TotalRatings, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save %s ratings: %w", params.Kind, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check %s rating rows: %w", params.Kind, err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes an item. Returns sql.ErrNoRows when nothing matched.
func (r *ContentRepository) Delete(ctx context.Context, kind models.ContentKind, id string) error {
	table, err := contentTable(kind)
	if err != nil {
		return err
	}
	result, err := r.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, table), id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", kind, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check %s delete rows: %w", kind, err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountByStatus groups an item table by review status.
func (r *ContentRepository) CountByStatus(ctx context.Context, kind models.ContentKind) ([]models.StatusCount, error) {
	table, err := contentTable(kind)
	if err != nil {
		return nil, err
	}
	var rows []models.StatusCount
	if err := r.db.SelectContext(ctx, &rows, fmt.Sprintf(`SELECT status, COUNT(*) AS count FROM %s GROUP BY status`, table)); err != nil {
		return nil, fmt.Errorf("count %s by status: %w", kind, err)
	}
	return rows, nil
}

// contentQuery builds the WHERE clause and paging shared by the content listings.
type contentQuery struct {
	where    string
	args     []interface{}
	orderBy  string
	limit    int
	offset   int
	page     int
	pageSize int
}

func buildContentQuery(filter models.ContentFilter, searchColumns []string, sorts map[string]bool) contentQuery {
	var (
		conditions []string
		args       []interface{}
	)
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.AuthorID != "" {
		args = append(args, filter.AuthorID)
		conditions = append(conditions, fmt.Sprintf("author_id = $%d", len(args)))
	}
	if filter.Search != "" && len(searchColumns) > 0 {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		ors := make([]string, len(searchColumns))
		for i, col := range searchColumns {
			ors[i] = fmt.Sprintf("LOWER(%s) LIKE $%d", col, len(args))
		}
		conditions = append(conditions, "("+strings.Join(ors, " OR ")+")")
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	if !sorts[sortBy] {
		sortBy = "created_at"
	}
	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
	}
	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	return contentQuery{
		where:    where,
		args:     args,
		orderBy:  sortBy + " " + sortOrder,
		limit:    pageSize,
		offset:   (page - 1) * pageSize,
		page:     page,
		pageSize: pageSize,
	}
}
