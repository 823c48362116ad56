package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/civic-portal-api/internal/models"
)

func TestAttendanceRepositoryInsertDay(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	date := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO attendance_records")).
		WithArgs(sqlmock.AnyArg(), "2026-monsoon", "mla-1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("rec-1"))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO attendance_days")).
		WithArgs(sqlmock.AnyArg(), "rec-1", date, true, models.AttendancePending, nil, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("day-1"))
	mock.ExpectCommit()

	day := &models.AttendanceDay{Date: date, Present: true}
	require.NoError(t, repo.InsertDay(context.Background(), "2026-monsoon", "mla-1", day))
	require.Equal(t, "rec-1", day.RecordID)
	require.Equal(t, models.AttendancePending, day.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryInsertDuplicateDay(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO attendance_records")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("rec-1"))
	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (record_id, date) DO NOTHING RETURNING id")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	err := repo.InsertDay(context.Background(), "2026-monsoon", "mla-1", &models.AttendanceDay{Date: time.Now()})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryFindRecordWithDays(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM attendance_records WHERE season = $1 AND mla_id = $2")).
		WithArgs("2026-monsoon", "mla-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "season", "mla_id", "created_at", "updated_at"}).AddRow("rec-1", "2026-monsoon", "mla-1", now, now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM attendance_days WHERE record_id IN (?) ORDER BY date ASC")).
		WithArgs("rec-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "record_id", "date", "present", "status", "verified_by", "verified_at", "remarks", "created_at", "updated_at"}).
			AddRow("day-1", "rec-1", now, true, "Verified", "admin-1", now, nil, now, now).
			AddRow("day-2", "rec-1", now.Add(24*time.Hour), false, "Pending", nil, nil, nil, now, now))

	record, err := repo.FindRecord(context.Background(), "2026-monsoon", "mla-1")
	require.NoError(t, err)
	require.Len(t, record.Days, 2)
	require.Equal(t, models.AttendanceVerified, record.Days[0].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryCounts(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM attendance_days")).
		WillReturnRows(sqlmock.NewRows([]string{"verified", "total"}).AddRow(3, 4))
	counts, err := repo.CountAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, models.AttendanceCounts{Verified: 3, Total: 4}, *counts)

	season := "2026-monsoon"
	mock.ExpectQuery(regexp.QuoteMeta("WHERE r.mla_id = $1 AND r.season = $2")).
		WithArgs("mla-1", season).
		WillReturnRows(sqlmock.NewRows([]string{"verified", "total"}).AddRow(1, 2))
	counts, err = repo.CountForMLA(context.Background(), "mla-1", &season)
	require.NoError(t, err)
	require.Equal(t, 2, counts.Total)
	require.NoError(t, mock.ExpectationsWereMet())
}
