package models

import "time"

// Project is a development work submitted by a PA and reviewed by an Admin.
type Project struct {
	ID             string     `db:"id" json:"id"`
	Title          string     `db:"title" json:"title"`
	Description    string     `db:"description" json:"description"`
	Category       *string    `db:"category" json:"category,omitempty"`
	Location       *string    `db:"location" json:"location,omitempty"`
	FundsAllocated float64    `db:"funds_allocated" json:"funds_allocated"`
	FundsUtilized  float64    `db:"funds_utilized" json:"funds_utilized"`
	StartDate      *time.Time `db:"start_date" json:"start_date,omitempty"`
	EndDate        *time.Time `db:"end_date" json:"end_date,omitempty"`
	AuthorID       string     `db:"author_id" json:"author_id"`
	ReviewState
	RatingSummary
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ProjectRequest is the create/update payload for projects.
type ProjectRequest struct {
	Title          string     `json:"title" validate:"required,max=200"`
	Description    string     `json:"description" validate:"required"`
	Category       *string    `json:"category,omitempty" validate:"omitempty,max=80"`
	Location       *string    `json:"location,omitempty" validate:"omitempty,max=200"`
	FundsAllocated float64    `json:"funds_allocated" validate:"gte=0"`
	FundsUtilized  float64    `json:"funds_utilized" validate:"gte=0,ltefield=FundsAllocated"`
	StartDate      *time.Time `json:"start_date,omitempty"`
	EndDate        *time.Time `json:"end_date,omitempty"`
}
