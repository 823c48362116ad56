package models

import "time"

// AttendanceDayStatus is the verification state of one attendance day.
type AttendanceDayStatus string

const (
	AttendancePending     AttendanceDayStatus = "Pending"
	AttendanceVerified    AttendanceDayStatus = "Verified"
	AttendanceNonVerified AttendanceDayStatus = "Non-Verified"
)

// Valid reports whether the status is known.
func (s AttendanceDayStatus) Valid() bool {
	switch s {
	case AttendancePending, AttendanceVerified, AttendanceNonVerified:
		return true
	default:
		return false
	}
}

// AttendanceRecord groups the days an MLA attended during one assembly season.
type AttendanceRecord struct {
	ID        string          `db:"id" json:"id"`
	Season    string          `db:"season" json:"season"`
	MLAID     string          `db:"mla_id" json:"mla_id"`
	Days      []AttendanceDay `db:"-" json:"days"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// AttendanceDay is a single sitting day. Date is unique within its record.
type AttendanceDay struct {
	ID         string              `db:"id" json:"id"`
	RecordID   string              `db:"record_id" json:"record_id"`
	Date       time.Time           `db:"date" json:"date"`
	Present    bool                `db:"present" json:"present"`
	Status     AttendanceDayStatus `db:"status" json:"status"`
	VerifiedBy *string             `db:"verified_by" json:"verified_by,omitempty"`
	VerifiedAt *time.Time          `db:"verified_at" json:"verified_at,omitempty"`
	Remarks    *string             `db:"remarks" json:"remarks,omitempty"`
	CreatedAt  time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time           `db:"updated_at" json:"updated_at"`
}

// RecordDayRequest appends a day to an MLA's season ledger.
type RecordDayRequest struct {
	Season  string  `json:"season" validate:"required,max=40"`
	MLAID   string  `json:"mla_id" validate:"required"`
	Date    string  `json:"date" validate:"required,iso_date"`
	Present bool    `json:"present"`
	Remarks *string `json:"remarks,omitempty" validate:"omitempty,max=1000"`
}

// VerifyDayRequest records the verifier's decision for a day.
type VerifyDayRequest struct {
	Status  AttendanceDayStatus `json:"status" validate:"required,oneof=Verified Non-Verified"`
	Remarks *string             `json:"remarks,omitempty" validate:"omitempty,max=1000"`
}

// AttendanceFilter constrains record listing.
type AttendanceFilter struct {
	Season   string
	MLAID    string
	Page     int
	PageSize int
}

// AttendanceCounts holds the verified and total day counts behind a percentage.
type AttendanceCounts struct {
	Verified int `db:"verified" json:"verified"`
	Total    int `db:"total" json:"total"`
}

// AttendancePercentage is the public attendance figure.
type AttendancePercentage struct {
	MLAID      *string `json:"mla_id,omitempty"`
	Season     *string `json:"season,omitempty"`
	Verified   int     `json:"verified_days"`
	Total      int     `json:"total_days"`
	Percentage float64 `json:"percentage"`
}
