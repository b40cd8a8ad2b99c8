package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/lesson-scheduler-api/internal/models"
)

// LessonEventStream publishes committed lesson events to a Redis channel
// consumed by the notification subsystem.
type LessonEventStream struct {
	client  *redis.Client
	channel string
}

// NewLessonEventStream constructs the publisher.
func NewLessonEventStream(client *redis.Client, channel string) *LessonEventStream {
	if channel == "" {
		channel = "lessons.events"
	}
	return &LessonEventStream{client: client, channel: channel}
}

// Publish sends the event as JSON.
func (s *LessonEventStream) Publish(ctx context.Context, event models.LessonEvent) error {
	if s.client == nil {
		return errors.New("lesson event stream: redis client not configured")
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal lesson event: %w", err)
	}
	if err := s.client.Publish(ctx, s.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish lesson event to %s: %w", s.channel, err)
	}
	return nil
}
