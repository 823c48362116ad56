package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/civic-portal-api/internal/models"
)

const attendanceDayColumns = `id, record_id, date, present, status, verified_by, verified_at, remarks, created_at, updated_at`

// AttendanceRepository persists the MLA attendance ledger.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// InsertDay appends a pending day to the (season, mla) record, creating the record on first use.
// Returns sql.ErrNoRows when the date already exists in that record.
func (r *AttendanceRepository) InsertDay(ctx context.Context, season, mlaID string, day *models.AttendanceDay) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin attendance day: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback() //nolint:errcheck
		}
	}()

	now := time.Now().UTC()
	const upsertRecord = `INSERT INTO attendance_records (id, season, mla_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $4)
ON CONFLICT (season, mla_id) DO UPDATE SET updated_at = EXCLUDED.updated_at
RETURNING id`
	var recordID string
	if err := tx.QueryRowxContext(ctx, upsertRecord, uuid.NewString(), season, mlaID, now).Scan(&recordID); err != nil {
		return fmt.Errorf("upsert attendance record: %w", err)
	}

	if day.ID == "" {
		day.ID = uuid.NewString()
	}
	day.RecordID = recordID
	day.Status = models.AttendancePending
	day.CreatedAt = now
	day.UpdatedAt = now
	const insertDay = `INSERT INTO attendance_days (id, record_id, date, present, status, remarks, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
ON CONFLICT (record_id, date) DO NOTHING RETURNING id`
	var insertedID string
	if err := tx.QueryRowxContext(ctx, insertDay, day.ID, recordID, day.Date, day.Present, day.Status, day.Remarks, now).Scan(&insertedID); err != nil {
		if err == sql.ErrNoRows {
			return err
		}
		return fmt.Errorf("insert attendance day: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit attendance day: %w", err)
	}
	commit = true
	return nil
}

// FindDay fetches a single attendance day.
func (r *AttendanceRepository) FindDay(ctx context.Context, id string) (*models.AttendanceDay, error) {
	var day models.AttendanceDay
	if err := r.db.GetContext(ctx, &day, `SELECT `+attendanceDayColumns+` FROM attendance_days WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find attendance day: %w", err)
	}
	return &day, nil
}

// VerifyDay records a verification decision on a day.
func (r *AttendanceRepository) VerifyDay(ctx context.Context, id string, status models.AttendanceDayStatus, verifiedBy string, remarks *string, at time.Time) error {
	const query = `UPDATE attendance_days SET status = $2, verified_by = $3, verified_at = $4, remarks = COALESCE($5, remarks), updated_at = $4 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, status, verifiedBy, at, remarks)
	if err != nil {
		return fmt.Errorf("verify attendance day: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check attendance verify rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// FindRecord loads the ledger of one MLA for a season including its days ordered by date.
func (r *AttendanceRepository) FindRecord(ctx context.Context, season, mlaID string) (*models.AttendanceRecord, error) {
	var record models.AttendanceRecord
	const recordQuery = `SELECT id, season, mla_id, created_at, updated_at FROM attendance_records WHERE season = $1 AND mla_id = $2`
	if err := r.db.GetContext(ctx, &record, recordQuery, season, mlaID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find attendance record: %w", err)
	}
	days, err := r.listDays(ctx, []string{record.ID})
	if err != nil {
		return nil, err
	}
	record.Days = days[record.ID]
	if record.Days == nil {
		record.Days = []models.AttendanceDay{}
	}
	return &record, nil
}

// ListRecords returns ledgers matching the filter with their days.
func (r *AttendanceRepository) ListRecords(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error) {
	var (
		conditions []string
		args       []interface{}
	)
	if filter.Season != "" {
		args = append(args, filter.Season)
		conditions = append(conditions, fmt.Sprintf("season = $%d", len(args)))
	}
	if filter.MLAID != "" {
		args = append(args, filter.MLAID)
		conditions = append(conditions, fmt.Sprintf("mla_id = $%d", len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}
	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	listQuery := fmt.Sprintf(`SELECT id, season, mla_id, created_at, updated_at FROM attendance_records%s ORDER BY season DESC, mla_id ASC LIMIT %d OFFSET %d`, where, pageSize, (page-1)*pageSize)

	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list attendance records: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM attendance_records`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count attendance records: %w", err)
	}
	if len(records) == 0 {
		return records, total, nil
	}
	ids := make([]string, len(records))
	for i := range records {
		ids[i] = records[i].ID
	}
	days, err := r.listDays(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range records {
		records[i].Days = days[records[i].ID]
		if records[i].Days == nil {
			records[i].Days = []models.AttendanceDay{}
		}
	}
	return records, total, nil
}

func (r *AttendanceRepository) listDays(ctx context.Context, recordIDs []string) (map[string][]models.AttendanceDay, error) {
	query, args, err := sqlx.In(`SELECT `+attendanceDayColumns+` FROM attendance_days WHERE record_id IN (?) ORDER BY date ASC`, recordIDs)
	if err != nil {
		return nil, fmt.Errorf("build attendance days query: %w", err)
	}
	var days []models.AttendanceDay
	if err := r.db.SelectContext(ctx, &days, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list attendance days: %w", err)
	}
	grouped := make(map[string][]models.AttendanceDay, len(recordIDs))
	for _, day := range days {
		grouped[day.RecordID] = append(grouped[day.RecordID], day)
	}
	return grouped, nil
}

// CountAll returns verified and total day counts across every MLA and season.
func (r *AttendanceRepository) CountAll(ctx context.Context) (*models.AttendanceCounts, error) {
	const query = `SELECT COUNT(*) FILTER (WHERE status = 'Verified') AS verified, COUNT(*) AS total FROM attendance_days`
	var counts models.AttendanceCounts
	if err := r.db.GetContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("count attendance days: %w", err)
	}
	return &counts, nil
}

// CountForMLA returns verified and total day counts for one MLA, optionally within a season.
func (r *AttendanceRepository) CountForMLA(ctx context.Context, mlaID string, season *string) (*models.AttendanceCounts, error) {
	query := `SELECT COUNT(d.id) FILTER (WHERE d.status = 'Verified') AS verified, COUNT(d.id) AS total
FROM attendance_records r
JOIN attendance_days d ON d.record_id = r.id
WHERE r.mla_id = $1`
	args := []interface{}{mlaID}
	if season != nil {
		query += ` AND r.season = $2`
		args = append(args, *season)
	}
	var counts models.AttendanceCounts
	if err := r.db.GetContext(ctx, &counts, query, args...); err != nil {
		return nil, fmt.Errorf("count mla attendance days: %w", err)
	}
	return &counts, nil
}
