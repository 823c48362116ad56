package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ReportType names the dataset a report exports.
type ReportType string

const (
	ReportTypeProjects   ReportType = "projects"
	ReportTypeSchemes    ReportType = "schemes"
	ReportTypeEvents     ReportType = "events"
	ReportTypeComplaints ReportType = "complaints"
	ReportTypeAttendance ReportType = "attendance"
)

// Valid reports whether the report type is supported.
func (t ReportType) Valid() bool {
	switch t {
	case ReportTypeProjects, ReportTypeSchemes, ReportTypeEvents, ReportTypeComplaints, ReportTypeAttendance:
		return true
	default:
		return false
	}
}

// ContentKind maps approvable report types to their content kind.
func (t ReportType) ContentKind() (ContentKind, bool) {
	switch t {
	case ReportTypeProjects:
		return ContentProject, true
	case ReportTypeSchemes:
		return ContentScheme, true
	case ReportTypeEvents:
		return ContentEvent, true
	default:
		return "", false
	}
}

// ReportFormat is the rendered file format.
type ReportFormat string

const (
	ReportFormatCSV ReportFormat = "csv"
	ReportFormatPDF ReportFormat = "pdf"
)

// Valid reports whether the format can be rendered.
func (f ReportFormat) Valid() bool {
	return f == ReportFormatCSV || f == ReportFormatPDF
}

// ReportStatus is a report job lifecycle state.
//
//	QUEUED -> PROCESSING -> FINISHED -> EXPIRED
//	            |    ^
//	            v    |
//	          FAILED QUEUED (retry)
type ReportStatus string

const (
	ReportStatusQueued     ReportStatus = "QUEUED"
	ReportStatusProcessing ReportStatus = "PROCESSING"
	ReportStatusFinished   ReportStatus = "FINISHED"
	ReportStatusFailed     ReportStatus = "FAILED"
	ReportStatusExpired    ReportStatus = "EXPIRED"
)

// Terminal reports whether no worker will touch a job in this state again.
func (s ReportStatus) Terminal() bool {
	return s == ReportStatusFailed || s == ReportStatusExpired
}

// ReportJob is one export request and its progress.
type ReportJob struct {
	ID           string          `db:"id" json:"id"`
	Type         ReportType      `db:"type" json:"type"`
	Params       ReportJobParams `db:"params" json:"params"`
	Status       ReportStatus    `db:"status" json:"status"`
	Progress     int             `db:"progress" json:"progress"`
	Attempts     int             `db:"attempts" json:"attempts"`
	ResultURL    *string         `db:"result_url" json:"result_url,omitempty"`
	CreatedBy    string          `db:"created_by" json:"created_by"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	StartedAt    *time.Time      `db:"started_at" json:"started_at,omitempty"`
	FinishedAt   *time.Time      `db:"finished_at" json:"finished_at,omitempty"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
}

// VisibleTo reports whether p may read the job: its creator or an Admin.
func (j *ReportJob) VisibleTo(p *Principal) bool {
	return j != nil && p != nil && (j.CreatedBy == p.ID || p.Is(RoleAdmin))
}

// Downloadable reports whether the job holds a live export.
func (j *ReportJob) Downloadable() bool {
	return j != nil && j.Status == ReportStatusFinished && j.ResultURL != nil && *j.ResultURL != ""
}

// ReportJobParams are the filters a job was requested with, stored as JSONB.
type ReportJobParams struct {
	Status *string      `json:"status,omitempty"`
	Season *string      `json:"season,omitempty"`
	MLAID  *string      `json:"mlaId,omitempty"`
	Format ReportFormat `json:"format"`
}

// Normalize trims filters and checks them against the report type.
func (p ReportJobParams) Normalize(t ReportType) (ReportJobParams, error) {
	if !t.Valid() {
		return p, fmt.Errorf("unsupported report type %q", t)
	}
	if !p.Format.Valid() {
		return p, fmt.Errorf("unsupported report format %q", p.Format)
	}
	out := ReportJobParams{Format: p.Format, Status: trimmedPtr(p.Status)}
	if out.Status != nil && !reportStatusFilterFits(t, *out.Status) {
		return p, fmt.Errorf("status %q does not apply to %s reports", *out.Status, t)
	}
	season, mla := trimmedPtr(p.Season), trimmedPtr(p.MLAID)
	if t != ReportTypeAttendance && (season != nil || mla != nil) {
		return p, fmt.Errorf("season and mlaId only apply to attendance reports")
	}
	out.Season, out.MLAID = season, mla
	return out, nil
}

func reportStatusFilterFits(t ReportType, status string) bool {
	if _, ok := t.ContentKind(); ok {
		switch ApprovalStatus(strings.ToLower(status)) {
		case ApprovalPending, ApprovalApproved, ApprovalRejected:
			return true
		}
		return false
	}
	if t == ReportTypeComplaints {
		return ComplaintStatus(status).Valid()
	}
	return false
}

func trimmedPtr(v *string) *string {
	if v == nil {
		return nil
	}
	out := strings.TrimSpace(*v)
	if out == "" {
		return nil
	}
	return &out
}

// Value implements driver.Valuer.
func (p ReportJobParams) Value() (driver.Value, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode report params: %w", err)
	}
	return data, nil
}

// Scan implements sql.Scanner.
func (p *ReportJobParams) Scan(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case nil:
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("report params: cannot scan %T", value)
	}
	*p = ReportJobParams{}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, p); err != nil {
		return fmt.Errorf("decode report params: %w", err)
	}
	return nil
}
