package service

import (
	"github.com/noah-isme/lesson-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/lesson-scheduler-api/pkg/errors"
)

// AccessPolicy decides which lessons an actor may read.
type AccessPolicy struct{}

// NewAccessPolicy constructs the policy.
func NewAccessPolicy() *AccessPolicy {
	return &AccessPolicy{}
}

// Scope narrows filter to the actor's visible lessons. The boolean is false
// when the actor can see nothing under the requested filter.
func (p *AccessPolicy) Scope(actor models.Actor, filter models.LessonFilter) (models.LessonFilter, bool, error) {
	switch a := actor.(type) {
	case models.TeacherActor:
		if filter.TeacherID != "" && filter.TeacherID != a.ID {
			return filter, false, nil
		}
		filter.TeacherID = a.ID
		return filter, true, nil
	case models.StudentActor:
		if filter.StudentID != "" && filter.StudentID != a.ID {
			return filter, false, nil
		}
		filter.StudentID = a.ID
		return filter, true, nil
	case models.TutorActor:
		if filter.StudentID != "" {
			if !a.Manages(filter.StudentID) {
				return filter, false, nil
			}
			return filter, true, nil
		}
		if len(a.ManagedStudentIDs) == 0 {
			return filter, false, nil
		}
		filter.StudentIDs = append([]string(nil), a.ManagedStudentIDs...)
		return filter, true, nil
	case models.AdminActor:
		return filter, true, nil
	case nil:
		return filter, false, appErrors.ErrUnauthorized
	default:
		return filter, false, appErrors.Clone(appErrors.ErrForbidden, "unsupported actor")
	}
}

// CanView returns nil when the actor may read lesson.
func (p *AccessPolicy) CanView(actor models.Actor, lesson *models.Lesson) error {
	visible := false
	switch a := actor.(type) {
	case models.TeacherActor:
		visible = lesson.TeacherID == a.ID
	case models.StudentActor:
		visible = lesson.StudentID == a.ID
	case models.TutorActor:
		visible = a.Manages(lesson.StudentID)
	case models.AdminActor:
		visible = true
	case nil:
		return appErrors.ErrUnauthorized
	}
	if !visible {
		return appErrors.Clone(appErrors.ErrForbidden, "lesson is not visible to this actor")
	}
	return nil
}

// CanMutate returns nil when the actor is the lesson's own teacher.
func (p *AccessPolicy) CanMutate(actor models.Actor, lesson *models.Lesson) error {
	switch a := actor.(type) {
	case models.TeacherActor:
		if lesson.TeacherID == a.ID {
			return nil
		}
	case nil:
		return appErrors.ErrUnauthorized
	}
	return appErrors.Clone(appErrors.ErrForbidden, "only the lesson's teacher may change it")
}

// RequireAdmin returns nil for administrators only.
func (p *AccessPolicy) RequireAdmin(actor models.Actor) error {
	switch actor.(type) {
	case models.AdminActor:
		return nil
	case nil:
		return appErrors.ErrUnauthorized
	default:
		return appErrors.Clone(appErrors.ErrForbidden, "administrator role required")
	}
}
