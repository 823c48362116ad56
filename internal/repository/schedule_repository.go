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

const scheduleColumns = `id, mla_id, title, description, location, start_time, end_time, status, remarks, created_by, approved_by, approved_at, created_at, updated_at`

// ScheduleRepository persists MLA schedules.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository constructs the repository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// Create inserts a pending schedule.
func (r *ScheduleRepository) Create(ctx context.Context, schedule *models.Schedule) error {
	if schedule.ID == "" {
		schedule.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	schedule.Status = models.SchedulePending
	schedule.CreatedAt = now
	schedule.UpdatedAt = now
	const query = `INSERT INTO schedules (id, mla_id, title, description, location, start_time, end_time, status, created_by, created_at, updated_at)
	VALUES (:id, :mla_id, :title, :description, :location, :start_time, :end_time, :status, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, schedule); err != nil {
		return fmt.Errorf("create schedule: %w", err)
	}
	return nil
}

// FindByID fetches a schedule by identifier.
func (r *ScheduleRepository) FindByID(ctx context.Context, id string) (*models.Schedule, error) {
	var schedule models.Schedule
	if err := r.db.GetContext(ctx, &schedule, `SELECT `+scheduleColumns+` FROM schedules WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find schedule: %w", err)
	}
	return &schedule, nil
}

// List returns schedules ordered by start time.
func (r *ScheduleRepository) List(ctx context.Context, filter models.ScheduleFilter) ([]models.Schedule, int, error) {
	var (
		conditions []string
		args       []interface{}
	)
	if filter.MLAID != "" {
		args = append(args, filter.MLAID)
		conditions = append(conditions, fmt.Sprintf("mla_id = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.CreatedBy != "" {
		args = append(args, filter.CreatedBy)
		conditions = append(conditions, fmt.Sprintf("created_by = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		conditions = append(conditions, fmt.Sprintf("start_time >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conditions = append(conditions, fmt.Sprintf("start_time <= $%d", len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}
	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	listQuery := fmt.Sprintf(`SELECT %s FROM schedules%s ORDER BY start_time ASC LIMIT %d OFFSET %d`, scheduleColumns, where, pageSize, (page-1)*pageSize)

	var schedules []models.Schedule
	if err := r.db.SelectContext(ctx, &schedules, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list schedules: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM schedules`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count schedules: %w", err)
	}
	return schedules, total, nil
}

// UpdatePending rewrites a schedule still awaiting approval.
func (r *ScheduleRepository) UpdatePending(ctx context.Context, schedule *models.Schedule) error {
	schedule.UpdatedAt = time.Now().UTC()
	const query = `UPDATE schedules SET mla_id = :mla_id, title = :title, description = :description, location = :location,
	start_time = :start_time, end_time = :end_time, updated_at = :updated_at
	WHERE id = :id AND created_by = :created_by AND status = 'Pending'`
	result, err := r.db.NamedExecContext(ctx, query, schedule)
	if err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check schedule update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ScheduleReviewParams groups the approval columns.
type ScheduleReviewParams struct {
	ID         string
	From       models.ScheduleStatus
	Status     models.ScheduleStatus
	Remarks    *string
	ApprovedBy string
	ApprovedAt time.Time
}

// Review moves a schedule out of From. Returns sql.ErrNoRows when it already left From.
func (r *ScheduleRepository) Review(ctx context.Context, params ScheduleReviewParams) error {
	const query = `UPDATE schedules SET status = $3, remarks = $4, approved_by = $5, approved_at = $6, updated_at = $6 WHERE id = $1 AND status = $2`
	result, err := r.db.ExecContext(ctx, query, params.ID, params.From, params.Status, params.Remarks, params.ApprovedBy, params.ApprovedAt)
	if err != nil {
		return fmt.Errorf("review schedule: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check schedule review rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a schedule.
func (r *ScheduleRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check schedule delete rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
