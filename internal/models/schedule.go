package models

import "time"

// ScheduleStatus is the lifecycle of an MLA schedule entry.
type ScheduleStatus string

const (
	SchedulePending   ScheduleStatus = "Pending"
	ScheduleApproved  ScheduleStatus = "Approved"
	ScheduleCancelled ScheduleStatus = "Cancelled"
)

// Terminal reports whether no further transition is possible from the status.
func (s ScheduleStatus) Terminal() bool {
	return s == ScheduleApproved || s == ScheduleCancelled
}

// Schedule is an MLA appointment proposed by a PA.
type Schedule struct {
	ID          string         `db:"id" json:"id"`
	MLAID       string         `db:"mla_id" json:"mla_id"`
	Title       string         `db:"title" json:"title"`
	Description *string        `db:"description" json:"description,omitempty"`
	Location    *string        `db:"location" json:"location,omitempty"`
	StartTime   time.Time      `db:"start_time" json:"start_time"`
	EndTime     time.Time      `db:"end_time" json:"end_time"`
	Status      ScheduleStatus `db:"status" json:"status"`
	Remarks     *string        `db:"remarks" json:"remarks,omitempty"`
	CreatedBy   string         `db:"created_by" json:"created_by"`
	ApprovedBy  *string        `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt  *time.Time     `db:"approved_at" json:"approved_at,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// ScheduleRequest is the create/update payload for schedules.
type ScheduleRequest struct {
	MLAID       string    `json:"mla_id" validate:"required"`
	Title       string    `json:"title" validate:"required,max=200"`
	Description *string   `json:"description,omitempty"`
	Location    *string   `json:"location,omitempty" validate:"omitempty,max=200"`
	StartTime   time.Time `json:"start_time" validate:"required"`
	EndTime     time.Time `json:"end_time" validate:"required,gtfield=StartTime"`
}

// ScheduleFilter constrains schedule listing.
type ScheduleFilter struct {
	MLAID     string
	Status    *ScheduleStatus
	CreatedBy string
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
}
