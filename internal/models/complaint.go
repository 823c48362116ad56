package models

import "time"

// ComplaintStatus is the lifecycle label of a complaint. Any value may follow any other.
type ComplaintStatus string

const (
	ComplaintSubmitted  ComplaintStatus = "Submitted"
	ComplaintInProgress ComplaintStatus = "In Progress"
	ComplaintResolved   ComplaintStatus = "Resolved"
)

// Valid reports whether the status is known.
func (s ComplaintStatus) Valid() bool {
	switch s {
	case ComplaintSubmitted, ComplaintInProgress, ComplaintResolved:
		return true
	default:
		return false
	}
}

// ComplaintPriority ranks complaints for staff triage.
type ComplaintPriority string

const (
	PriorityLow    ComplaintPriority = "low"
	PriorityMedium ComplaintPriority = "medium"
	PriorityHigh   ComplaintPriority = "high"
)

// Valid reports whether the priority is known.
func (p ComplaintPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

// Complaint is a grievance filed by a citizen.
type Complaint struct {
	ID            string            `db:"id" json:"id"`
	UserID        string            `db:"user_id" json:"user_id"`
	Title         string            `db:"title" json:"title"`
	Description   string            `db:"description" json:"description"`
	Category      *string           `db:"category" json:"category,omitempty"`
	Location      *string           `db:"location" json:"location,omitempty"`
	Status        ComplaintStatus   `db:"status" json:"status"`
	Priority      ComplaintPriority `db:"priority" json:"priority"`
	AssignedTo    *string           `db:"assigned_to" json:"assigned_to,omitempty"`
	AdminResponse *string           `db:"admin_response" json:"admin_response,omitempty"`
	PAResponse    *string           `db:"pa_response" json:"pa_response,omitempty"`
	CreatedAt     time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time         `db:"updated_at" json:"updated_at"`
}

// CreateComplaintRequest is filed by citizens.
type CreateComplaintRequest struct {
	Title       string            `json:"title" validate:"required,max=200"`
	Description string            `json:"description" validate:"required"`
	Category    *string           `json:"category,omitempty" validate:"omitempty,max=80"`
	Location    *string           `json:"location,omitempty" validate:"omitempty,max=200"`
	Priority    ComplaintPriority `json:"priority,omitempty" validate:"omitempty,complaint_priority"`
}

// UpdateComplaintRequest is a staff write. Nil fields are left untouched.
type UpdateComplaintRequest struct {
	Status        *ComplaintStatus   `json:"status,omitempty" validate:"omitempty,complaint_status"`
	Priority      *ComplaintPriority `json:"priority,omitempty" validate:"omitempty,complaint_priority"`
	AdminResponse *string            `json:"admin_response,omitempty" validate:"omitempty,max=2000"`
	PAResponse    *string            `json:"pa_response,omitempty" validate:"omitempty,max=2000"`
}

// ComplaintFilter constrains complaint listing.
type ComplaintFilter struct {
	UserID     string
	Status     *ComplaintStatus
	Priority   *ComplaintPriority
	AssignedTo string
	Page       int
	PageSize   int
	SortOrder  string
}
