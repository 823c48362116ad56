package workflow

import (
	"fmt"
	"math"
	"time"

	"github.com/noah-isme/civic-portal-api/internal/models"
)

// DateLayout is the wire format of attendance dates.
const DateLayout = "2006-01-02"

// ParseDate parses a calendar date into UTC midnight.
func ParseDate(raw string) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, raw, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse attendance date %q: %w", raw, err)
	}
	return d, nil
}

// Percentage is verified days over all recorded days, times 100, to two decimals. Zero days yields 0.
func Percentage(counts models.AttendanceCounts) float64 {
	if counts.Total <= 0 {
		return 0
	}
	return math.Round(float64(counts.Verified)/float64(counts.Total)*10000) / 100
}

// CountDays tallies verified and total days of a ledger.
func CountDays(days []models.AttendanceDay) models.AttendanceCounts {
	counts := models.AttendanceCounts{Total: len(days)}
	for _, d := range days {
		if d.Status == models.AttendanceVerified {
			counts.Verified++
		}
	}
	return counts
}

// CanVerify reports whether a day may be moved to status.
func CanVerify(status models.AttendanceDayStatus) bool {
	return status == models.AttendanceVerified || status == models.AttendanceNonVerified
}
