package models

import "time"

// LessonEventType names a committed lesson mutation.
type LessonEventType string

const (
	LessonCreated   LessonEventType = "LessonCreated"
	LessonUpdated   LessonEventType = "LessonUpdated"
	LessonCancelled LessonEventType = "LessonCancelled"
)

// LessonEvent is emitted after a lesson transaction commits.
type LessonEvent struct {
	Type       LessonEventType `json:"type"`
	LessonID   string          `json:"lesson_id"`
	ActorID    string          `json:"actor_id"`
	OccurredAt time.Time       `json:"occurred_at"`
}
