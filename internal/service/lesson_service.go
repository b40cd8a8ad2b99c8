package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/lesson-scheduler-api/internal/dto"
	"github.com/noah-isme/lesson-scheduler-api/internal/models"
	"github.com/noah-isme/lesson-scheduler-api/internal/repository"
	appErrors "github.com/noah-isme/lesson-scheduler-api/pkg/errors"
)

const (
	defaultCancellationWindow = 2 * time.Hour
	lessonStatsCachePattern   = "lessons:stats:*"
)

type lessonTxBeginner interface {
	BeginLessonTx(ctx context.Context) (repository.Tx, error)
}

type lessonStore interface {
	lessonScheduleReader
	GetByIDForUpdate(ctx context.Context, q sqlx.ExtContext, id string) (*models.Lesson, error)
	Insert(ctx context.Context, q sqlx.ExtContext, lesson *models.Lesson) error
	Update(ctx context.Context, q sqlx.ExtContext, lesson *models.Lesson) error
	LockSchedule(ctx context.Context, q sqlx.ExtContext, teacherID, studentID string, date models.Date) error
}

type enrollmentStore interface {
	HasActiveEnrollment(ctx context.Context, q sqlx.ExtContext, studentID, subjectID, teacherID string) (bool, error)
}

type lessonEventPublisher interface {
	Publish(ctx context.Context, event models.LessonEvent) error
}

type statsInvalidator interface {
	Invalidate(ctx context.Context, pattern string) error
}

// LessonServiceOption customises a LessonService.
type LessonServiceOption func(*LessonService)

// WithLessonClock overrides the time source, history timestamps included.
func WithLessonClock(clock func() time.Time) LessonServiceOption {
	return func(s *LessonService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLessonLocation sets the canonical scheduling timezone.
func WithLessonLocation(loc *time.Location) LessonServiceOption {
	return func(s *LessonService) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithCancellationWindow sets the minimum lead time for cancellation.
func WithCancellationWindow(window time.Duration) LessonServiceOption {
	return func(s *LessonService) {
		if window > 0 {
			s.cancellationWindow = window
		}
	}
}

// WithLessonEvents wires the post-commit event publisher.
func WithLessonEvents(events lessonEventPublisher) LessonServiceOption {
	return func(s *LessonService) { s.events = events }
}

// WithLessonCache wires the stats cache invalidated after each mutation.
func WithLessonCache(cache statsInvalidator) LessonServiceOption {
	return func(s *LessonService) { s.cache = cache }
}

// WithLessonMetrics wires operation counters.
func WithLessonMetrics(metrics *MetricsService) LessonServiceOption {
	return func(s *LessonService) { s.metrics = metrics }
}

// LessonService creates, updates and cancels lessons. Every mutation runs in
// one transaction holding the teacher/student day locks.
type LessonService struct {
	tx          lessonTxBeginner
	lessons     lessonStore
	enrollments enrollmentStore
	conflicts   *ConflictDetector
	audit       *AuditRecorder
	policy      *AccessPolicy
	validator   *validator.Validate
	logger      *zap.Logger

	events  lessonEventPublisher
	cache   statsInvalidator
	metrics *MetricsService

	clock              func() time.Time
	location           *time.Location
	cancellationWindow time.Duration
}

// NewLessonService constructs a LessonService.
func NewLessonService(tx lessonTxBeginner, lessons lessonStore, enrollments enrollmentStore, audit *AuditRecorder, validate *validator.Validate, logger *zap.Logger, opts ...LessonServiceOption) *LessonService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &LessonService{
		tx:                 tx,
		lessons:            lessons,
		enrollments:        enrollments,
		conflicts:          NewConflictDetector(lessons),
		audit:              audit,
		policy:             NewAccessPolicy(),
		validator:          validate,
		logger:             logger,
		clock:              time.Now,
		location:           time.UTC,
		cancellationWindow: defaultCancellationWindow,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.audit != nil {
		svc.audit = svc.audit.withClock(svc.clock)
	}
	return svc
}

// Create schedules a new pending lesson for the calling teacher.
func (s *LessonService) Create(ctx context.Context, actor models.Actor, req dto.CreateLessonRequest) (lesson *models.Lesson, err error) {
	defer func() { s.record("create", err) }()

	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	teacher, ok := actor.(models.TeacherActor)
	if !ok || teacher.ID != req.TeacherID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the teacher may create their own lesson")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lesson payload")
	}

	date, start, end, err := parseSlot(req.Date, req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}
	if date.Before(s.today()) {
		return nil, appErrors.ErrPastDate
	}
	if start >= end {
		return nil, appErrors.ErrInvalidTimeRange
	}

	candidate := &models.Lesson{
		TeacherID:    req.TeacherID,
		StudentID:    req.StudentID,
		SubjectID:    req.SubjectID,
		Date:         date,
		StartTime:    start,
		EndTime:      end,
		Status:       models.LessonStatusPending,
		Description:  trimOptional(req.Description),
		TelemostLink: trimOptional(req.TelemostLink),
	}

	err = s.inTx(ctx, func(tx repository.Tx) error {
		if err := s.lock(ctx, tx, candidate.TeacherID, candidate.StudentID, candidate.Date); err != nil {
			return err
		}
		enrolled, err := s.enrollments.HasActiveEnrollment(ctx, tx, candidate.StudentID, candidate.SubjectID, candidate.TeacherID)
		if err != nil {
			return storeError(err, "failed to check enrollment")
		}
		if !enrolled {
			return appErrors.ErrNoActiveEnrollment
		}
		if err := s.conflicts.Ensure(ctx, tx, candidateFor(candidate, "")); err != nil {
			return err
		}
		if err := s.lessons.Insert(ctx, tx, candidate); err != nil {
			return storeError(err, "failed to create lesson")
		}
		_, err = s.audit.Append(ctx, tx, candidate.ID, actor.ActorID(), models.LessonActionCreated, nil, candidate.Snapshot())
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("lesson created",
		zap.String("lesson_id", candidate.ID),
		zap.String("teacher_id", candidate.TeacherID),
		zap.String("student_id", candidate.StudentID),
		zap.String("date", candidate.Date.String()),
		zap.String("slot", candidate.Interval().String()),
	)
	s.afterCommit(ctx, models.LessonCreated, candidate.ID, actor.ActorID())
	return candidate, nil
}

// Update applies a partial change to a lesson that has not started yet.
func (s *LessonService) Update(ctx context.Context, actor models.Actor, id string, req dto.UpdateLessonRequest) (lesson *models.Lesson, err error) {
	defer func() { s.record("update", err) }()

	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lesson patch")
	}

	var updated models.Lesson
	err = s.inTx(ctx, func(tx repository.Tx) error {
		current, err := s.loadForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := s.policy.CanMutate(actor, current); err != nil {
			return err
		}
		if !current.StartsAt(s.location).After(s.now()) {
			return appErrors.ErrAlreadyStarted
		}
		if err := terminalError(current.Status); err != nil {
			return err
		}

		next, err := applyPatch(*current, req)
		if err != nil {
			return err
		}
		if req.TouchesSchedule() {
			if !next.Interval().Valid() {
				return appErrors.ErrInvalidTimeRange
			}
			if next.Date.Before(s.today()) {
				return appErrors.ErrPastDate
			}
			if err := s.lock(ctx, tx, next.TeacherID, next.StudentID, next.Date); err != nil {
				return err
			}
			if err := s.conflicts.Ensure(ctx, tx, candidateFor(&next, next.ID)); err != nil {
				return err
			}
		}

		if err := s.lessons.Update(ctx, tx, &next); err != nil {
			return storeError(err, "failed to update lesson")
		}
		oldValues, newValues := diffValues(current.Snapshot(), next.Snapshot())
		if _, err := s.audit.Append(ctx, tx, next.ID, actor.ActorID(), models.LessonActionUpdated, oldValues, newValues); err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("lesson updated", zap.String("lesson_id", updated.ID), zap.Bool("rescheduled", req.TouchesSchedule()))
	s.afterCommit(ctx, models.LessonUpdated, updated.ID, actor.ActorID())
	return &updated, nil
}

// Cancel moves a lesson to the terminal cancelled state.
func (s *LessonService) Cancel(ctx context.Context, actor models.Actor, id string) (lesson *models.Lesson, err error) {
	defer func() { s.record("cancel", err) }()

	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}

	var cancelled models.Lesson
	err = s.inTx(ctx, func(tx repository.Tx) error {
		current, err := s.loadForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := s.policy.CanMutate(actor, current); err != nil {
			return err
		}
		if err := terminalError(current.Status); err != nil {
			return err
		}
		if current.StartsAt(s.location).Sub(s.now()) <= s.cancellationWindow {
			return appErrors.Clone(appErrors.ErrCancellationWindow,
				fmt.Sprintf("lessons can only be cancelled more than %s before they start", s.cancellationWindow))
		}

		next := *current
		next.Status = models.LessonStatusCancelled
		if err := s.lessons.Update(ctx, tx, &next); err != nil {
			return storeError(err, "failed to cancel lesson")
		}
		_, err = s.audit.Append(ctx, tx, next.ID, actor.ActorID(), models.LessonActionCancelled,
			models.FieldValues{"status": string(current.Status)},
			models.FieldValues{"status": string(next.Status)},
		)
		if err != nil {
			return err
		}
		cancelled = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("lesson cancelled", zap.String("lesson_id", cancelled.ID))
	s.afterCommit(ctx, models.LessonCancelled, cancelled.ID, actor.ActorID())
	return &cancelled, nil
}

func (s *LessonService) inTx(ctx context.Context, fn func(tx repository.Tx) error) (err error) {
	if s.tx == nil {
		return appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	tx, err := s.tx.BeginLessonTx(ctx)
	if err != nil {
		return storeError(err, "failed to begin lesson transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return storeError(err, "failed to commit lesson transaction")
	}
	return nil
}

func (s *LessonService) lock(ctx context.Context, tx repository.Tx, teacherID, studentID string, date models.Date) error {
	if err := s.lessons.LockSchedule(ctx, tx, teacherID, studentID, date); err != nil {
		return storeError(err, "failed to lock schedule")
	}
	return nil
}

func (s *LessonService) loadForUpdate(ctx context.Context, tx repository.Tx, id string) (*models.Lesson, error) {
	lesson, err := s.lessons.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, storeError(err, "failed to load lesson")
	}
	return lesson, nil
}

func (s *LessonService) afterCommit(ctx context.Context, eventType models.LessonEventType, lessonID, actorID string) {
	if s.events != nil {
		event := models.LessonEvent{Type: eventType, LessonID: lessonID, ActorID: actorID, OccurredAt: s.now().UTC()}
		if err := s.events.Publish(ctx, event); err != nil {
			s.logger.Warn("lesson event not dispatched", zap.String("lesson_id", lessonID), zap.String("type", string(eventType)), zap.Error(err))
		}
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, lessonStatsCachePattern); err != nil {
			s.logger.Warn("lesson stats cache not invalidated", zap.Error(err))
		}
	}
}

func (s *LessonService) record(operation string, err error) {
	s.metrics.RecordLessonOperation(operation, operationOutcome(err))
}

func (s *LessonService) now() time.Time {
	return s.clock().In(s.location)
}

func (s *LessonService) today() models.Date {
	return models.DateOf(s.now())
}

func candidateFor(lesson *models.Lesson, excludeID string) ConflictCandidate {
	return ConflictCandidate{
		TeacherID:       lesson.TeacherID,
		StudentID:       lesson.StudentID,
		Date:            lesson.Date,
		Start:           lesson.StartTime,
		End:             lesson.EndTime,
		ExcludeLessonID: excludeID,
	}
}

func applyPatch(lesson models.Lesson, req dto.UpdateLessonRequest) (models.Lesson, error) {
	if req.Date != nil {
		date, err := models.ParseDate(*req.Date)
		if err != nil {
			return lesson, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lesson date")
		}
		lesson.Date = date
	}
	if req.StartTime != nil {
		start, err := models.ParseTimeOfDay(*req.StartTime)
		if err != nil {
			return lesson, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid start time")
		}
		lesson.StartTime = start
	}
	if req.EndTime != nil {
		end, err := models.ParseTimeOfDay(*req.EndTime)
		if err != nil {
			return lesson, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid end time")
		}
		lesson.EndTime = end
	}
	if req.Description != nil {
		lesson.Description = trimOptional(req.Description)
	}
	if req.TelemostLink != nil {
		lesson.TelemostLink = trimOptional(req.TelemostLink)
	}
	return lesson, nil
}

func parseSlot(rawDate, rawStart, rawEnd string) (models.Date, models.TimeOfDay, models.TimeOfDay, error) {
	date, err := models.ParseDate(rawDate)
	if err != nil {
		return models.Date{}, 0, 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lesson date")
	}
	start, err := models.ParseTimeOfDay(rawStart)
	if err != nil {
		return models.Date{}, 0, 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid start time")
	}
	end, err := models.ParseTimeOfDay(rawEnd)
	if err != nil {
		return models.Date{}, 0, 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid end time")
	}
	return date, start, end, nil
}

func terminalError(status models.LessonStatus) error {
	switch status {
	case models.LessonStatusCancelled:
		return appErrors.ErrAlreadyCancelled
	case models.LessonStatusCompleted:
		return appErrors.ErrAlreadyCompleted
	}
	return nil
}

// trimOptional maps blank strings to nil so a patch can clear a field.
func trimOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// storeError maps persistence failures, turning lock timeouts into Busy.
func storeError(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	if repository.IsRetryable(err) {
		return appErrors.Wrap(err, appErrors.ErrBusy.Code, appErrors.ErrBusy.Status, appErrors.ErrBusy.Message)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func operationOutcome(err error) string {
	if err == nil {
		return "success"
	}
	return strings.ToLower(appErrors.FromError(err).Code)
}
