package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/civic-portal-api/internal/models"
	"github.com/noah-isme/civic-portal-api/internal/workflow"
	"github.com/noah-isme/civic-portal-api/pkg/export"
	"github.com/noah-isme/civic-portal-api/pkg/storage"
)

const (
	exportPageSize = 100
	exportRowLimit = 10000
)

type projectLister interface {
	List(ctx context.Context, filter models.ContentFilter) ([]models.Project, int, error)
}

type schemeLister interface {
	List(ctx context.Context, filter models.ContentFilter) ([]models.Scheme, int, error)
}

type eventLister interface {
	List(ctx context.Context, filter models.ContentFilter) ([]models.Event, int, error)
}

type complaintLister interface {
	List(ctx context.Context, filter models.ComplaintFilter) ([]models.Complaint, int, error)
}

type attendanceLister interface {
	ListRecords(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error)
}

// ExportSources are the repositories report datasets are read from.
type ExportSources struct {
	Projects   projectLister
	Schemes    schemeLister
	Events     eventLister
	Complaints complaintLister
	Attendance attendanceLister
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

// ExportService builds report datasets and persists rendered files.
type ExportService struct {
	sources ExportSources
	storage fileStorage
	csv     csvRenderer
	pdf     pdfRenderer
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
	cfg     ExportConfig
	now     func() time.Time
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// NewExportService constructs an ExportService.
func NewExportService(sources ExportSources, storage fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		sources: sources,
		storage: storage,
		csv:     csv,
		pdf:     pdf,
		signer:  signer,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Generate builds dataset according to job definition and stores the rendered export.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	dataset, title, err := s.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	relPath, err := s.storage.Save(s.buildFilename(job), payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	s.logger.Debug("report rendered",
		zap.String("job_id", job.ID),
		zap.String("type", string(job.Type)),
		zap.Int("rows", len(dataset.Rows)),
	)

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/export/%s", prefix, token),
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ReportJob) string {
	timestamp := s.now().UTC().Format("20060102_150405")
	scope := deref(job.Params.Season)
	if scope == "" {
		scope = deref(job.Params.Status)
	}
	suffix := job.ID
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	return fmt.Sprintf("%s_%s_%s_%s.%s", strings.ToLower(string(job.Type)), sanitizeFilename(scope), timestamp, sanitizeFilename(suffix), job.Params.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "all"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, string, error) {
	switch job.Type {
	case models.ReportTypeProjects:
		return s.buildProjectDataset(ctx, job.Params)
	case models.ReportTypeSchemes:
		return s.buildSchemeDataset(ctx, job.Params)
	case models.ReportTypeEvents:
		return s.buildEventDataset(ctx, job.Params)
	case models.ReportTypeComplaints:
		return s.buildComplaintDataset(ctx, job.Params)
	case models.ReportTypeAttendance:
		return s.buildAttendanceDataset(ctx, job.Params)
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported report type %s", job.Type)
	}
}

// collectPages walks a paged listing until it is exhausted or exportRowLimit is reached.
func collectPages[T any](fetch func(page, size int) ([]T, int, error)) ([]T, error) {
	var out []T
	for page := 1; ; page++ {
		rows, total, err := fetch(page, exportPageSize)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
		if len(rows) == 0 || len(out) >= total || len(out) >= exportRowLimit {
			if len(out) > exportRowLimit {
				out = out[:exportRowLimit]
			}
			return out, nil
		}
	}
}

func contentExportFilter(params models.ReportJobParams) models.ContentFilter {
	filter := models.ContentFilter{SortBy: "created_at", SortOrder: "asc"}
	if params.Status != nil && *params.Status != "" {
		status := models.ApprovalStatus(strings.ToLower(*params.Status))
		filter.Status = &status
	}
	return filter
}

func reportTitle(kind string, params models.ReportJobParams) string {
	scope := deref(params.Season)
	if scope == "" {
		scope = deref(params.Status)
	}
	if scope == "" {
		return kind + " Report"
	}
	return fmt.Sprintf("%s Report (%s)", kind, scope)
}

func (s *ExportService) buildProjectDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	if s.sources.Projects == nil {
		return export.Dataset{}, "", fmt.Errorf("project source not configured")
	}
	base := contentExportFilter(params)
	projects, err := collectPages(func(page, size int) ([]models.Project, int, error) {
		filter := base
		filter.Page, filter.PageSize = page, size
		return s.sources.Projects.List(ctx, filter)
	})
	if err != nil {
		return export.Dataset{}, "", err
	}
	rows := make([]map[string]string, 0, len(projects))
	for _, p := range projects {
		rows = append(rows, map[string]string{
			"ID":              p.ID,
			"Title":           p.Title,
			"Category":        deref(p.Category),
			"Location":        deref(p.Location),
			"Funds Allocated": formatAmount(p.FundsAllocated),
			"Funds Utilized":  formatAmount(p.FundsUtilized),
			"Status":          string(p.Status),
			"Average Rating":  formatAmount(p.AverageRating),
			"Ratings":         strconv.Itoa(p.TotalRatings),
			"Created At":      formatReportTime(&p.CreatedAt),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"ID", "Title", "Category", "Location", "Funds Allocated", "Funds Utilized", "Status", "Average Rating", "Ratings", "Created At"},
		Rows:    rows,
	}
	return dataset, reportTitle("Projects", params), nil
}

func (s *ExportService) buildSchemeDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	if s.sources.Schemes == nil {
		return export.Dataset{}, "", fmt.Errorf("scheme source not configured")
	}
	base := contentExportFilter(params)
	schemes, err := collectPages(func(page, size int) ([]models.Scheme, int, error) {
		filter := base
		filter.Page, filter.PageSize = page, size
		return s.sources.Schemes.List(ctx, filter)
	})
	if err != nil {
		return export.Dataset{}, "", err
	}
	rows := make([]map[string]string, 0, len(schemes))
	for _, sc := range schemes {
		rows = append(rows, map[string]string{
			"ID":             sc.ID,
			"Title":          sc.Title,
			"Eligibility":    deref(sc.Eligibility),
			"Budget":         formatAmount(sc.Budget),
			"Status":         string(sc.Status),
			"Average Rating": formatAmount(sc.AverageRating),
			"Ratings":        strconv.Itoa(sc.TotalRatings),
			"Created At":     formatReportTime(&sc.CreatedAt),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"ID", "Title", "Eligibility", "Budget", "Status", "Average Rating", "Ratings", "Created At"},
		Rows:    rows,
	}
	return dataset, reportTitle("Schemes", params), nil
}

func (s *ExportService) buildEventDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	if s.sources.Events == nil {
		return export.Dataset{}, "", fmt.Errorf("event source not configured")
	}
	base := contentExportFilter(params)
	events, err := collectPages(func(page, size int) ([]models.Event, int, error) {
		filter := base
		filter.Page, filter.PageSize = page, size
		return s.sources.Events.List(ctx, filter)
	})
	if err != nil {
		return export.Dataset{}, "", err
	}
	rows := make([]map[string]string, 0, len(events))
	for _, ev := range events {
		rows = append(rows, map[string]string{
			"ID":             ev.ID,
			"Title":          ev.Title,
			"Location":       ev.Location,
			"Event Date":     formatReportTime(&ev.EventDate),
			"Status":         string(ev.Status),
			"Average Rating": formatAmount(ev.AverageRating),
			"Ratings":        strconv.Itoa(ev.TotalRatings),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"ID", "Title", "Location", "Event Date", "Status", "Average Rating", "Ratings"},
		Rows:    rows,
	}
	return dataset, reportTitle("Events", params), nil
}

func (s *ExportService) buildComplaintDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	if s.sources.Complaints == nil {
		return export.Dataset{}, "", fmt.Errorf("complaint source not configured")
	}
	base := models.ComplaintFilter{SortOrder: "asc"}
	if params.Status != nil && *params.Status != "" {
		status := models.ComplaintStatus(*params.Status)
		base.Status = &status
	}
	complaints, err := collectPages(func(page, size int) ([]models.Complaint, int, error) {
		filter := base
		filter.Page, filter.PageSize = page, size
		return s.sources.Complaints.List(ctx, filter)
	})
	if err != nil {
		return export.Dataset{}, "", err
	}
	rows := make([]map[string]string, 0, len(complaints))
	for _, c := range complaints {
		rows = append(rows, map[string]string{
			"ID":          c.ID,
			"Title":       c.Title,
			"Category":    deref(c.Category),
			"Location":    deref(c.Location),
			"Status":      string(c.Status),
			"Priority":    string(c.Priority),
			"Assigned To": deref(c.AssignedTo),
			"Created At":  formatReportTime(&c.CreatedAt),
			"Updated At":  formatReportTime(&c.UpdatedAt),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"ID", "Title", "Category", "Location", "Status", "Priority", "Assigned To", "Created At", "Updated At"},
		Rows:    rows,
	}
	return dataset, reportTitle("Complaints", params), nil
}

func (s *ExportService) buildAttendanceDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	if s.sources.Attendance == nil {
		return export.Dataset{}, "", fmt.Errorf("attendance source not configured")
	}
	base := models.AttendanceFilter{Season: deref(params.Season), MLAID: deref(params.MLAID)}
	records, err := collectPages(func(page, size int) ([]models.AttendanceRecord, int, error) {
		filter := base
		filter.Page, filter.PageSize = page, size
		return s.sources.Attendance.ListRecords(ctx, filter)
	})
	if err != nil {
		return export.Dataset{}, "", err
	}
	rows := make([]map[string]string, 0, len(records))
	for _, rec := range records {
		counts := workflow.CountDays(rec.Days)
		rows = append(rows, map[string]string{
			"Season":         rec.Season,
			"MLA ID":         rec.MLAID,
			"Verified Days":  strconv.Itoa(counts.Verified),
			"Total Days":     strconv.Itoa(counts.Total),
			"Attendance (%)": formatAmount(workflow.Percentage(counts)),
			"Updated At":     formatReportTime(&rec.UpdatedAt),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Season", "MLA ID", "Verified Days", "Total Days", "Attendance (%)", "Updated At"},
		Rows:    rows,
	}
	return dataset, reportTitle("Attendance", params), nil
}

func deref(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatReportTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
