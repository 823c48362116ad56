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

const eventColumns = `id, title, description, location, event_date, author_id,
	status, remarks, approver_id, approved_at, ratings, average_rating, total_ratings, version, created_at, updated_at`

var eventSorts = map[string]bool{"created_at": true, "updated_at": true, "title": true, "event_date": true, "average_rating": true}

// EventRepository persists public events.
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository constructs the repository.
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Create inserts a pending event.
func (r *EventRepository) Create(ctx context.Context, event *models.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	event.Status = models.ApprovalPending
	event.Ratings = models.Ratings{}
	event.Version = 1
	event.CreatedAt = now
	event.UpdatedAt = now
	const query = `INSERT INTO events
	(id, title, description, location, event_date, author_id, status, ratings, average_rating, total_ratings, version, created_at, updated_at)
	VALUES (:id, :title, :description, :location, :event_date, :author_id, :status, :ratings, :average_rating, :total_ratings, :version, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

// FindByID fetches an event by identifier.
func (r *EventRepository) FindByID(ctx context.Context, id string) (*models.Event, error) {
	var event models.Event
	if err := r.db.GetContext(ctx, &event, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find event: %w", err)
	}
	return &event, nil
}

// List returns events matching the filter with the total count.
func (r *EventRepository) List(ctx context.Context, filter models.ContentFilter) ([]models.Event, int, error) {
	q := buildContentQuery(filter, []string{"title", "description", "location"}, eventSorts)
	listQuery := fmt.Sprintf(`SELECT %s FROM events%s ORDER BY %s LIMIT %d OFFSET %d`, eventColumns, q.where, q.orderBy, q.limit, q.offset)
	var events []models.Event
	if err := r.db.SelectContext(ctx, &events, listQuery, q.args...); err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM events`+q.where, q.args...); err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}
	return events, total, nil
}

// UpdatePending writes the editable fields while the event is still pending.
// Returns sql.ErrNoRows when the row is missing or has been reviewed.
func (r *EventRepository) UpdatePending(ctx context.Context, event *models.Event) error {
	event.UpdatedAt = time.Now().UTC()
	const query = `UPDATE events SET title = :title, description = :description, location = :location, event_date = :event_date, updated_at = :updated_at
	WHERE id = :id AND author_id = :author_id AND status = 'pending'`
	result, err := r.db.NamedExecContext(ctx, query, event)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check event update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
