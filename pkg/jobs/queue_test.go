package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueRequiresStart(t *testing.T) {
	q := NewQueue("test", func(context.Context, Job) error { return nil }, QueueConfig{})
	_, err := q.Enqueue(Job{ID: "1"})
	require.Error(t, err)
}

func TestQueueProcessesJobs(t *testing.T) {
	done := make(chan string, 1)
	q := NewQueue("test", func(_ context.Context, job Job) error {
		done <- job.ID
		return nil
	}, QueueConfig{})
	q.Start(context.Background())
	defer q.Stop()

	queued, err := q.Enqueue(Job{ID: "job-1"})
	require.NoError(t, err)
	assert.True(t, queued)

	select {
	case id := <-done:
		assert.Equal(t, "job-1", id)
	case <-time.After(time.Second):
		t.Fatal("job not processed")
	}
}

func TestQueueCoalescesPendingKey(t *testing.T) {
	release := make(chan struct{})
	var runs int32
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&runs, 1)
		<-release
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 8})
	q.Start(context.Background())
	defer q.Stop()

	// first job is picked up and blocks the only worker
	_, err := q.Enqueue(Job{ID: "a", Key: "refresh"})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return atomic.LoadInt32(&runs) == 1 }, time.Second, 5*time.Millisecond)

	queued, err := q.Enqueue(Job{ID: "b", Key: "refresh"})
	require.NoError(t, err)
	assert.True(t, queued)
	assert.True(t, q.isPending("refresh"))

	queued, err = q.Enqueue(Job{ID: "c", Key: "refresh"})
	require.NoError(t, err)
	assert.False(t, queued)

	close(release)
	require.Eventually(t, func() bool { return atomic.LoadInt32(&runs) == 2 }, time.Second, 5*time.Millisecond)
	assert.False(t, q.isPending("refresh"))
}

func TestQueueRetriesFailures(t *testing.T) {
	var attempts int32
	q := NewQueue("test", func(context.Context, Job) error {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return errors.New("transient")
		}
		return nil
	}, QueueConfig{MaxRetries: 3, RetryDelay: 5 * time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	_, err := q.Enqueue(Job{ID: "retry"})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return atomic.LoadInt32(&attempts) == 3 }, time.Second, 5*time.Millisecond)
}

func TestQueueRetryDoesNotOutliveStop(t *testing.T) {
	var attempts int32
	q := NewQueue("test", func(context.Context, Job) error {
		atomic.AddInt32(&attempts, 1)
		return errors.New("always")
	}, QueueConfig{MaxRetries: 5, RetryDelay: 20 * time.Millisecond})

	q.Start(context.Background())
	_, err := q.Enqueue(Job{ID: "flaky"})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return atomic.LoadInt32(&attempts) == 1 }, time.Second, time.Millisecond)
	q.Stop()

	// the retry scheduled by the first run must not land in the second one
	q.Start(context.Background())
	defer q.Stop()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}
