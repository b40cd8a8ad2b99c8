package models

import (
	"fmt"
	"time"
)

// LessonStatus represents the lifecycle state of a lesson.
type LessonStatus string

// Possible lesson statuses. Completed and cancelled are terminal.
const (
	LessonStatusPending   LessonStatus = "pending"
	LessonStatusConfirmed LessonStatus = "confirmed"
	LessonStatusCompleted LessonStatus = "completed"
	LessonStatusCancelled LessonStatus = "cancelled"
)

// Valid reports whether the status is one of the known values.
func (s LessonStatus) Valid() bool {
	switch s {
	case LessonStatusPending, LessonStatusConfirmed, LessonStatusCompleted, LessonStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed.
func (s LessonStatus) Terminal() bool {
	return s == LessonStatusCompleted || s == LessonStatusCancelled
}

// Lesson is a single tutoring session between a teacher and a student.
type Lesson struct {
	ID           string       `db:"id" json:"id"`
	TeacherID    string       `db:"teacher_id" json:"teacher_id"`
	StudentID    string       `db:"student_id" json:"student_id"`
	SubjectID    string       `db:"subject_id" json:"subject_id"`
	Date         Date         `db:"date" json:"date"`
	StartTime    TimeOfDay    `db:"start_time" json:"start_time"`
	EndTime      TimeOfDay    `db:"end_time" json:"end_time"`
	Status       LessonStatus `db:"status" json:"status"`
	Description  *string      `db:"description" json:"description,omitempty"`
	TelemostLink *string      `db:"telemost_link" json:"telemost_link,omitempty"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updated_at"`
}

// Interval returns the lesson's [start, end) window.
func (l Lesson) Interval() Interval {
	return Interval{Start: l.StartTime, End: l.EndTime}
}

// StartsAt returns the absolute start instant in loc.
func (l Lesson) StartsAt(loc *time.Location) time.Time {
	return l.Date.At(l.StartTime, loc)
}

// Snapshot captures every mutable field for the audit ledger.
func (l Lesson) Snapshot() FieldValues {
	return FieldValues{
		"teacher_id":    l.TeacherID,
		"student_id":    l.StudentID,
		"subject_id":    l.SubjectID,
		"date":          l.Date.String(),
		"start_time":    l.StartTime.String(),
		"end_time":      l.EndTime.String(),
		"status":        string(l.Status),
		"description":   l.Description,
		"telemost_link": l.TelemostLink,
	}
}

// LessonFilter narrows lesson listings. Empty fields are ignored.
type LessonFilter struct {
	TeacherID  string
	StudentID  string
	SubjectID  string
	StudentIDs []string
	DateFrom   *Date
	DateTo     *Date
	Status     LessonStatus
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

// LessonStats aggregates lesson counts per status.
type LessonStats struct {
	Total    int                  `json:"total"`
	ByStatus map[LessonStatus]int `json:"by_status"`
}

// LessonStatusCount is a single row of a grouped status count.
type LessonStatusCount struct {
	Status LessonStatus `db:"status"`
	Count  int          `db:"count"`
}

// Conflict dimensions.
const (
	ConflictDimensionTeacher = "TEACHER"
	ConflictDimensionStudent = "STUDENT"
)

// LessonConflict describes the existing lesson a candidate collides with.
type LessonConflict struct {
	LessonID  string    `json:"lesson_id"`
	TeacherID string    `json:"teacher_id"`
	StudentID string    `json:"student_id"`
	Date      Date      `json:"date"`
	StartTime TimeOfDay `json:"start_time"`
	EndTime   TimeOfDay `json:"end_time"`
	Dimension string    `json:"dimension"`
}

// LessonConflictError is returned when a candidate overlaps an active lesson.
type LessonConflictError struct {
	Message  string         `json:"message"`
	Conflict LessonConflict `json:"conflict"`
}

// NewLessonConflictError builds the error naming the colliding window.
func NewLessonConflictError(conflict LessonConflict) *LessonConflictError {
	who := "teacher"
	if conflict.Dimension == ConflictDimensionStudent {
		who = "student"
	}
	return &LessonConflictError{
		Message: fmt.Sprintf("%s already has a lesson on %s from %s to %s",
			who, conflict.Date, conflict.StartTime, conflict.EndTime),
		Conflict: conflict,
	}
}

// Error implements the error interface for conflict errors.
func (e *LessonConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}
