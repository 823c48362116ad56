// Package dto holds request and response shapes that do not map one-to-one onto a table.
package dto

import (
	"time"

	"github.com/noah-isme/civic-portal-api/internal/models"
)

// ReportRequest is the POST /reports body. Status, season and mlaId are
// optional filters; season and mlaId only apply to attendance.
type ReportRequest struct {
	Type   models.ReportType   `json:"type" validate:"required"`
	Format models.ReportFormat `json:"format" validate:"required"`
	Status *string             `json:"status,omitempty" validate:"omitempty,max=40"`
	Season *string             `json:"season,omitempty" validate:"omitempty,max=40"`
	MLAID  *string             `json:"mlaId,omitempty" validate:"omitempty,max=64"`
}

// Params converts the request into stored job parameters, normalised for its type.
func (r ReportRequest) Params() (models.ReportJobParams, error) {
	return models.ReportJobParams{
		Status: r.Status,
		Season: r.Season,
		MLAID:  r.MLAID,
		Format: r.Format,
	}.Normalize(r.Type)
}

// ReportJobView is how a job is shown to its requester.
type ReportJobView struct {
	ID          string              `json:"id"`
	Type        models.ReportType   `json:"type"`
	Format      models.ReportFormat `json:"format"`
	Status      models.ReportStatus `json:"status"`
	Progress    int                 `json:"progress"`
	Attempts    int                 `json:"attempts"`
	DownloadURL *string             `json:"resultUrl,omitempty"`
	Error       *string             `json:"error,omitempty"`
	CreatedAt   time.Time           `json:"createdAt"`
	FinishedAt  *time.Time          `json:"finishedAt,omitempty"`
}

// NewReportJobView builds the view. The download link is only exposed while the export exists.
func NewReportJobView(job *models.ReportJob) *ReportJobView {
	v := &ReportJobView{
		ID:         job.ID,
		Type:       job.Type,
		Format:     job.Params.Format,
		Status:     job.Status,
		Progress:   job.Progress,
		Attempts:   job.Attempts,
		CreatedAt:  job.CreatedAt,
		FinishedAt: job.FinishedAt,
	}
	if job.Downloadable() {
		v.DownloadURL = job.ResultURL
	}
	if job.ErrorMessage != nil && *job.ErrorMessage != "" {
		v.Error = job.ErrorMessage
	}
	return v
}
