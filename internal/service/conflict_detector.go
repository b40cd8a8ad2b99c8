package service

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lesson-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/lesson-scheduler-api/pkg/errors"
)

type lessonScheduleReader interface {
	QueryByTeacherOrStudentAndDate(ctx context.Context, q sqlx.ExtContext, teacherID, studentID string, date models.Date, excludeID string) ([]models.Lesson, error)
}

// ConflictCandidate is a lesson slot to be checked against the schedule.
type ConflictCandidate struct {
	TeacherID       string
	StudentID       string
	Date            models.Date
	Start           models.TimeOfDay
	End             models.TimeOfDay
	ExcludeLessonID string
}

func (c ConflictCandidate) interval() models.Interval {
	return models.Interval{Start: c.Start, End: c.End}
}

// FindConflict returns the first existing lesson that collides with the
// candidate, or nil. Cancelled lessons, other dates and the excluded lesson
// never collide.
func FindConflict(candidate ConflictCandidate, existing []models.Lesson) *models.LessonConflict {
	want := candidate.interval()
	for _, lesson := range existing {
		if lesson.Status == models.LessonStatusCancelled {
			continue
		}
		if candidate.ExcludeLessonID != "" && lesson.ID == candidate.ExcludeLessonID {
			continue
		}
		if lesson.Date != candidate.Date {
			continue
		}
		var dimension string
		switch {
		case lesson.TeacherID == candidate.TeacherID:
			dimension = models.ConflictDimensionTeacher
		case lesson.StudentID == candidate.StudentID:
			dimension = models.ConflictDimensionStudent
		default:
			continue
		}
		if !lesson.Interval().Overlaps(want) {
			continue
		}
		return &models.LessonConflict{
			LessonID:  lesson.ID,
			TeacherID: lesson.TeacherID,
			StudentID: lesson.StudentID,
			Date:      lesson.Date,
			StartTime: lesson.StartTime,
			EndTime:   lesson.EndTime,
			Dimension: dimension,
		}
	}
	return nil
}

// ConflictDetector checks candidates against the stored schedule.
type ConflictDetector struct {
	repo lessonScheduleReader
}

// NewConflictDetector constructs a detector.
func NewConflictDetector(repo lessonScheduleReader) *ConflictDetector {
	return &ConflictDetector{repo: repo}
}

// Check returns the colliding lesson for candidate, if any. q should be the
// transaction that holds the schedule lock.
func (d *ConflictDetector) Check(ctx context.Context, q sqlx.ExtContext, candidate ConflictCandidate) (*models.LessonConflict, error) {
	existing, err := d.repo.QueryByTeacherOrStudentAndDate(ctx, q, candidate.TeacherID, candidate.StudentID, candidate.Date, candidate.ExcludeLessonID)
	if err != nil {
		return nil, storeError(err, "failed to check lesson conflicts")
	}
	return FindConflict(candidate, existing), nil
}

// HasConflict reports whether candidate overlaps any active lesson.
func (d *ConflictDetector) HasConflict(ctx context.Context, q sqlx.ExtContext, candidate ConflictCandidate) (bool, error) {
	conflict, err := d.Check(ctx, q, candidate)
	if err != nil {
		return false, err
	}
	return conflict != nil, nil
}

// Ensure returns a ConflictDetected error when candidate collides.
func (d *ConflictDetector) Ensure(ctx context.Context, q sqlx.ExtContext, candidate ConflictCandidate) error {
	conflict, err := d.Check(ctx, q, candidate)
	if err != nil {
		return err
	}
	if conflict == nil {
		return nil
	}
	conflictErr := models.NewLessonConflictError(*conflict)
	return appErrors.Wrap(conflictErr, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, conflictErr.Message)
}
