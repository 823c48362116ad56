package models

import "time"

// Event is a public gathering announced by a PA.
type Event struct {
	ID          string    `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	Location    string    `db:"location" json:"location"`
	EventDate   time.Time `db:"event_date" json:"event_date"`
	AuthorID    string    `db:"author_id" json:"author_id"`
	ReviewState
	RatingSummary
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// EventRequest is the create/update payload for events.
type EventRequest struct {
	Title       string    `json:"title" validate:"required,max=200"`
	Description string    `json:"description" validate:"required"`
	Location    string    `json:"location" validate:"required,max=200"`
	EventDate   time.Time `json:"event_date" validate:"required"`
}
