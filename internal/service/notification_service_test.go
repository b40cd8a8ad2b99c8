package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lesson-scheduler-api/internal/models"
	"github.com/noah-isme/lesson-scheduler-api/pkg/jobs"
)

type channelStream struct {
	delivered chan models.LessonEvent
	err       error
}

func (s *channelStream) Publish(ctx context.Context, event models.LessonEvent) error {
	if s.err != nil {
		return s.err
	}
	s.delivered <- event
	return nil
}

func TestLessonEventDispatcherDeliversThroughQueue(t *testing.T) {
	metrics := NewMetricsService()
	stream := &channelStream{delivered: make(chan models.LessonEvent, 1)}
	queue := jobs.NewQueue("lesson-events", LessonEventHandler(stream, metrics, nil), jobs.QueueConfig{Workers: 1})
	queue.Start(context.Background())
	defer queue.Stop()

	dispatcher := NewLessonEventDispatcher(queue, metrics, nil)
	event := models.LessonEvent{Type: models.LessonCreated, LessonID: "l-1", ActorID: "teacher-1", OccurredAt: time.Now().UTC()}
	require.NoError(t, dispatcher.Publish(context.Background(), event))

	select {
	case got := <-stream.delivered:
		assert.Equal(t, event, got)
	case <-time.After(2 * time.Second):
		t.Fatal("lesson event was not delivered")
	}
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.eventsPublished.WithLabelValues(string(models.LessonCreated), "delivered")) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestLessonEventDispatcherReportsStoppedQueue(t *testing.T) {
	queue := jobs.NewQueue("lesson-events", func(context.Context, jobs.Job) error { return nil }, jobs.QueueConfig{})
	dispatcher := NewLessonEventDispatcher(queue, nil, nil)

	err := dispatcher.Publish(context.Background(), models.LessonEvent{Type: models.LessonCancelled, LessonID: "l-1"})
	assert.Error(t, err)
}

func TestLessonEventHandler(t *testing.T) {
	stream := &channelStream{err: errors.New("redis unavailable")}
	handler := LessonEventHandler(stream, nil, nil)

	err := handler(context.Background(), jobs.Job{Type: lessonEventJobType, Payload: models.LessonEvent{Type: models.LessonUpdated}})
	assert.Error(t, err, "delivery failures are returned so the queue retries")

	err = handler(context.Background(), jobs.Job{Type: lessonEventJobType, Payload: "not an event"})
	assert.NoError(t, err, "malformed payloads are dropped")
}
