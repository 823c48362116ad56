package workflow

import (
	"time"

	"github.com/noah-isme/civic-portal-api/internal/models"
)

const (
	MinRating = 1
	MaxRating = 5
)

// ValidRating reports whether value is within the accepted scale.
func ValidRating(value int) bool {
	return value >= MinRating && value <= MaxRating
}

// UpsertRating returns a copy of ratings where userID's entry is replaced in place or appended.
func UpsertRating(ratings models.Ratings, userID string, value int, comment *string, now time.Time) models.Ratings {
	out := make(models.Ratings, len(ratings), len(ratings)+1)
	copy(out, ratings)
	for i := range out {
		if out[i].UserID == userID {
			out[i].Rating = value
			out[i].Comment = comment
			out[i].CreatedAt = now
			return out
		}
	}
	return append(out, models.Rating{UserID: userID, Rating: value, Comment: comment, CreatedAt: now})
}

// Summarize recomputes the exact mean and count from the full list. An empty list averages 0.
func Summarize(ratings models.Ratings) (average float64, total int) {
	total = len(ratings)
	if total == 0 {
		return 0, 0
	}
	sum := 0
	for _, r := range ratings {
		sum += r.Rating
	}
	return float64(sum) / float64(total), total
}
