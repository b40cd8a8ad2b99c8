package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/lesson-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/lesson-scheduler-api/pkg/errors"
)

type lessonHistoryRepository interface {
	Append(ctx context.Context, q sqlx.ExtContext, entry *models.LessonHistory) error
	ListByLesson(ctx context.Context, lessonID string) ([]models.LessonHistory, error)
}

// AuditRecorder writes the append-only lesson ledger.
type AuditRecorder struct {
	repo   lessonHistoryRepository
	clock  func() time.Time
	logger *zap.Logger
}

// NewAuditRecorder constructs an AuditRecorder.
func NewAuditRecorder(repo lessonHistoryRepository, logger *zap.Logger) *AuditRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditRecorder{repo: repo, clock: time.Now, logger: logger}
}

// withClock returns a recorder stamping entries from clock.
func (r *AuditRecorder) withClock(clock func() time.Time) *AuditRecorder {
	scoped := *r
	scoped.clock = clock
	return &scoped
}

// Append records a mutation inside q. A nil oldValues is stored as {}.
func (r *AuditRecorder) Append(ctx context.Context, q sqlx.ExtContext, lessonID, actorID string, action models.LessonAction, oldValues, newValues models.FieldValues) (*models.LessonHistory, error) {
	oldJSON, err := oldValues.JSON()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode lesson history")
	}
	newJSON, err := newValues.JSON()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode lesson history")
	}

	entry := &models.LessonHistory{
		LessonID:  lessonID,
		ActorID:   actorID,
		Action:    action,
		OldValues: oldJSON,
		NewValues: newJSON,
		CreatedAt: r.clock().UTC(),
	}
	if err := r.repo.Append(ctx, q, entry); err != nil {
		return nil, storeError(err, "failed to append lesson history")
	}
	r.logger.Debug("lesson history appended", zap.String("lesson_id", lessonID), zap.String("action", string(action)))
	return entry, nil
}

// ListFor returns a lesson's ledger, most recent first.
func (r *AuditRecorder) ListFor(ctx context.Context, lessonID string) ([]models.LessonHistory, error) {
	entries, err := r.repo.ListByLesson(ctx, lessonID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson history")
	}
	return entries, nil
}

// diffValues keeps only the keys whose values differ between before and after.
func diffValues(before, after models.FieldValues) (models.FieldValues, models.FieldValues) {
	oldValues := models.FieldValues{}
	newValues := models.FieldValues{}
	for key, next := range after {
		prev := before[key]
		if sameValue(prev, next) {
			continue
		}
		oldValues[key] = prev
		newValues[key] = next
	}
	return oldValues, newValues
}

func sameValue(a, b interface{}) bool {
	as, aPtr := a.(*string)
	bs, bPtr := b.(*string)
	if aPtr || bPtr {
		switch {
		case as == nil && bs == nil:
			return true
		case as == nil || bs == nil:
			return false
		default:
			return *as == *bs
		}
	}
	return a == b
}
