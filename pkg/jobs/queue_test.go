package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueRetriesUntilSuccess(t *testing.T) {
	var calls int32
	done := make(chan Job, 1)
	q := NewQueue("reports", func(ctx context.Context, job Job) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("render failed")
		}
		done <- job
		return nil
	}, QueueConfig{MaxRetries: 3, RetryDelay: time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "job-1", Type: "projects"}))
	select {
	case job := <-done:
		assert.Equal(t, 2, job.Attempt)
	case <-time.After(2 * time.Second):
		t.Fatal("job never succeeded")
	}
	require.Eventually(t, func() bool { return q.Pending() == 0 }, time.Second, 5*time.Millisecond)
}

func TestQueueRejectsDuplicatePendingJob(t *testing.T) {
	release := make(chan struct{})
	q := NewQueue("reports", func(ctx context.Context, job Job) error {
		<-release
		return nil
	}, QueueConfig{})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "job-1"}))
	assert.ErrorIs(t, q.Enqueue(Job{ID: "job-1"}), ErrDuplicate)
	close(release)

	require.Eventually(t, func() bool { return q.Pending() == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, q.Enqueue(Job{ID: "job-1"}))
}

func TestQueueSurvivesPanickingHandler(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	q := NewQueue("reports", func(ctx context.Context, job Job) error {
		if job.ID == "bad" {
			panic("nil dataset")
		}
		mu.Lock()
		seen = append(seen, job.ID)
		mu.Unlock()
		return nil
	}, QueueConfig{MaxRetries: 1, RetryDelay: time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "bad"}))
	require.NoError(t, q.Enqueue(Job{ID: "good"}))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 1 && q.Pending() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestQueueRequiresStart(t *testing.T) {
	q := NewQueue("reports", func(context.Context, Job) error { return nil }, QueueConfig{})
	assert.Error(t, q.Enqueue(Job{ID: "job-1"}))
	q.Stop()
}

func TestQueueBackoffIsCapped(t *testing.T) {
	q := NewQueue("reports", nil, QueueConfig{RetryDelay: time.Second})
	assert.Equal(t, time.Second, q.backoff(1))
	assert.Equal(t, 4*time.Second, q.backoff(3))
	assert.Equal(t, maxRetryDelay, q.backoff(20))
}
