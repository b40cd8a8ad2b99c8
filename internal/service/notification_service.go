package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/lesson-scheduler-api/internal/models"
	"github.com/noah-isme/lesson-scheduler-api/pkg/jobs"
)

const lessonEventJobType = "lesson.event"

type lessonEventStream interface {
	Publish(ctx context.Context, event models.LessonEvent) error
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// LessonEventDispatcher hands committed lesson events to background workers
// that deliver them to the notification stream. Publish never blocks on delivery.
type LessonEventDispatcher struct {
	queue   jobEnqueuer
	metrics *MetricsService
	logger  *zap.Logger
}

// NewLessonEventDispatcher constructs a dispatcher that enqueues on queue.
func NewLessonEventDispatcher(queue jobEnqueuer, metrics *MetricsService, logger *zap.Logger) *LessonEventDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LessonEventDispatcher{queue: queue, metrics: metrics, logger: logger}
}

// Publish enqueues the event for delivery.
func (d *LessonEventDispatcher) Publish(ctx context.Context, event models.LessonEvent) error {
	if d == nil || d.queue == nil {
		return nil
	}
	if err := d.queue.Enqueue(jobs.Job{Type: lessonEventJobType, Payload: event}); err != nil {
		d.metrics.RecordEventPublished(string(event.Type), false)
		return fmt.Errorf("enqueue lesson event: %w", err)
	}
	return nil
}

// LessonEventHandler returns the queue handler that delivers events to stream.
func LessonEventHandler(stream lessonEventStream, metrics *MetricsService, logger *zap.Logger) jobs.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, job jobs.Job) error {
		event, ok := job.Payload.(models.LessonEvent)
		if !ok {
			logger.Error("unexpected lesson event payload", zap.String("job_id", job.ID), zap.String("type", job.Type))
			return nil
		}
		if err := stream.Publish(ctx, event); err != nil {
			metrics.RecordEventPublished(string(event.Type), false)
			return err
		}
		metrics.RecordEventPublished(string(event.Type), true)
		logger.Debug("lesson event delivered", zap.String("lesson_id", event.LessonID), zap.String("type", string(event.Type)))
		return nil
	}
}
