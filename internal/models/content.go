package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ContentKind names the approvable content types.
type ContentKind string

const (
	ContentProject  ContentKind = "project"
	ContentScheme   ContentKind = "scheme"
	ContentEvent    ContentKind = "event"
	ContentSchedule ContentKind = "schedule"
)

// Valid reports whether the kind is known.
func (k ContentKind) Valid() bool {
	switch k {
	case ContentProject, ContentScheme, ContentEvent, ContentSchedule:
		return true
	default:
		return false
	}
}

// Rated reports whether items of this kind accept citizen ratings.
func (k ContentKind) Rated() bool {
	return k == ContentProject || k == ContentScheme || k == ContentEvent
}

// ApprovalStatus is the review state of projects, schemes and events.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// Terminal reports whether no further transition is possible from the status.
func (s ApprovalStatus) Terminal() bool {
	return s == ApprovalApproved || s == ApprovalRejected
}

// ReviewState holds the approval columns shared by every approvable table.
type ReviewState struct {
	Status     ApprovalStatus `db:"status" json:"status"`
	Remarks    *string        `db:"remarks" json:"remarks,omitempty"`
	ApproverID *string        `db:"approver_id" json:"approver_id,omitempty"`
	ApprovedAt *time.Time     `db:"approved_at" json:"approved_at,omitempty"`
}

// Rating is one user's score for a content item.
type Rating struct {
	UserID    string    `json:"user_id"`
	Rating    int       `json:"rating"`
	Comment   *string   `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Ratings is persisted as a JSONB array.
type Ratings []Rating

// Value marshals ratings to JSON for persistence.
func (r Ratings) Value() (driver.Value, error) {
	if r == nil {
		r = Ratings{}
	}
	data, err := json.Marshal([]Rating(r))
	if err != nil {
		return nil, fmt.Errorf("marshal ratings: %w", err)
	}
	return data, nil
}

// Scan unmarshals a JSONB array into ratings.
func (r *Ratings) Scan(value interface{}) error {
	if value == nil {
		*r = Ratings{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for Ratings", value)
	}
	if len(data) == 0 {
		*r = Ratings{}
		return nil
	}
	var out []Rating
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("unmarshal ratings: %w", err)
	}
	*r = out
	return nil
}

// RatingSummary carries the rating list, its aggregates and the optimistic lock version.
type RatingSummary struct {
	Ratings       Ratings `db:"ratings" json:"ratings"`
	AverageRating float64 `db:"average_rating" json:"average_rating"`
	TotalRatings  int     `db:"total_ratings" json:"total_ratings"`
	Version       int     `db:"version" json:"version"`
}

// RatingState is the slice of an approvable row needed to rate it.
type RatingState struct {
	ID     string         `db:"id"`
	Status ApprovalStatus `db:"status"`
	RatingSummary
}

// ReviewDecision is a requested status change with optional remarks.
type ReviewDecision struct {
	Status  string  `json:"status" validate:"required"`
	Remarks *string `json:"remarks,omitempty" validate:"omitempty,max=1000"`
}

// RateRequest is the rating payload.
type RateRequest struct {
	Rating  int     `json:"rating" validate:"rating_value"`
	Comment *string `json:"comment,omitempty" validate:"omitempty,max=1000"`
}

// ContentFilter constrains listing of approvable content.
type ContentFilter struct {
	Status    *ApprovalStatus
	AuthorID  string
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
