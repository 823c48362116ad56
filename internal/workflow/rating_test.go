package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/civic-portal-api/internal/models"
)

func TestValidRating(t *testing.T) {
	assert.False(t, ValidRating(0))
	assert.True(t, ValidRating(1))
	assert.True(t, ValidRating(5))
	assert.False(t, ValidRating(6))
}

func TestUpsertRatingReplacesInPlace(t *testing.T) {
	now := time.Now()
	ratings := models.Ratings{}
	ratings = UpsertRating(ratings, "a", 4, nil, now)
	ratings = UpsertRating(ratings, "b", 2, nil, now)

	avg, total := Summarize(ratings)
	assert.Equal(t, 2, total)
	assert.Equal(t, 3.0, avg)

	comment := "better now"
	updated := UpsertRating(ratings, "a", 5, &comment, now.Add(time.Minute))
	require.Len(t, updated, 2)
	assert.Equal(t, "a", updated[0].UserID)
	assert.Equal(t, 5, updated[0].Rating)
	assert.Equal(t, &comment, updated[0].Comment)
	assert.Equal(t, 4, ratings[0].Rating, "input slice is not mutated")

	avg, total = Summarize(updated)
	assert.Equal(t, 2, total)
	assert.Equal(t, 3.5, avg)
}

func TestSummarizeHoldsForAnySequence(t *testing.T) {
	now := time.Now()
	sequence := []struct {
		user  string
		value int
	}{
		{"u1", 3}, {"u2", 5}, {"u1", 1}, {"u3", 4}, {"u2", 2}, {"u4", 5}, {"u3", 3},
	}
	ratings := models.Ratings{}
	for _, step := range sequence {
		ratings = UpsertRating(ratings, step.user, step.value, nil, now)

		seen := map[string]bool{}
		sum := 0
		for _, r := range ratings {
			require.False(t, seen[r.UserID], "user %s rated twice", r.UserID)
			seen[r.UserID] = true
			sum += r.Rating
		}
		avg, total := Summarize(ratings)
		require.Equal(t, len(ratings), total)
		require.Equal(t, float64(sum)/float64(len(ratings)), avg)
	}
	assert.Len(t, ratings, 4)
}

func TestSummarizeEmpty(t *testing.T) {
	avg, total := Summarize(nil)
	assert.Zero(t, avg)
	assert.Zero(t, total)
}

func TestSummarizeKeepsExactMean(t *testing.T) {
	now := time.Now()
	ratings := models.Ratings{}
	ratings = UpsertRating(ratings, "u1", 1, nil, now)
	ratings = UpsertRating(ratings, "u2", 1, nil, now)
	ratings = UpsertRating(ratings, "u3", 2, nil, now)

	avg, total := Summarize(ratings)
	assert.Equal(t, 3, total)
	assert.Equal(t, 4.0/3.0, avg)
}
