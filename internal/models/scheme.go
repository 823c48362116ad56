package models

import "time"

// Scheme is a government programme published after Admin approval.
type Scheme struct {
	ID          string     `db:"id" json:"id"`
	Title       string     `db:"title" json:"title"`
	Description string     `db:"description" json:"description"`
	Eligibility *string    `db:"eligibility" json:"eligibility,omitempty"`
	Benefits    *string    `db:"benefits" json:"benefits,omitempty"`
	Budget      float64    `db:"budget" json:"budget"`
	StartDate   *time.Time `db:"start_date" json:"start_date,omitempty"`
	EndDate     *time.Time `db:"end_date" json:"end_date,omitempty"`
	AuthorID    string     `db:"author_id" json:"author_id"`
	ReviewState
	RatingSummary
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// SchemeRequest is the create/update payload for schemes.
type SchemeRequest struct {
	Title       string     `json:"title" validate:"required,max=200"`
	Description string     `json:"description" validate:"required"`
	Eligibility *string    `json:"eligibility,omitempty"`
	Benefits    *string    `json:"benefits,omitempty"`
	Budget      float64    `json:"budget" validate:"gte=0"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
}
