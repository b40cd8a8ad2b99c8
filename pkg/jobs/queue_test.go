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

func TestQueueProcessesJobs(t *testing.T) {
	var handled int32
	done := make(chan struct{}, 3)
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&handled, 1)
		done <- struct{}{}
		return nil
	}, QueueConfig{Workers: 2})
	q.Start(context.Background())
	defer q.Stop()

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Enqueue(Job{Type: "lesson.event"}))
	}
	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("job not processed")
		}
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&handled))
}

func TestQueueRetriesFailedJobs(t *testing.T) {
	var attempts int32
	done := make(chan struct{})
	q := NewQueue("retry", func(ctx context.Context, job Job) error {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return errors.New("transient")
		}
		close(done)
		return nil
	}, QueueConfig{Workers: 1, MaxRetries: 3, RetryDelay: 5 * time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{Type: "lesson.event"}))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not retried")
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestQueueRejectsWhenNotStarted(t *testing.T) {
	q := NewQueue("idle", func(ctx context.Context, job Job) error { return nil }, QueueConfig{})
	assert.Error(t, q.Enqueue(Job{}))
}

func TestQueueReportsFullBuffer(t *testing.T) {
	block := make(chan struct{})
	q := NewQueue("full", func(ctx context.Context, job Job) error {
		<-block
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1})
	q.Start(context.Background())
	defer func() {
		close(block)
		q.Stop()
	}()

	var fullErr error
	for i := 0; i < 5 && fullErr == nil; i++ {
		fullErr = q.Enqueue(Job{})
	}
	assert.ErrorIs(t, fullErr, ErrQueueFull)
}
