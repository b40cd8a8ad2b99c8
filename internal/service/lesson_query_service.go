package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/lesson-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/lesson-scheduler-api/pkg/errors"
)

type lessonReader interface {
	GetByID(ctx context.Context, q sqlx.ExtContext, id string) (*models.Lesson, error)
	QueryFiltered(ctx context.Context, q sqlx.ExtContext, filter models.LessonFilter) ([]models.Lesson, int, error)
}

// LessonQueryService serves role-scoped lesson reads.
type LessonQueryService struct {
	lessons lessonReader
	audit   *AuditRecorder
	admin   *AdminQueryService
	policy  *AccessPolicy
	logger  *zap.Logger
}

// NewLessonQueryService constructs a LessonQueryService.
func NewLessonQueryService(lessons lessonReader, audit *AuditRecorder, admin *AdminQueryService, logger *zap.Logger) *LessonQueryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LessonQueryService{lessons: lessons, audit: audit, admin: admin, policy: NewAccessPolicy(), logger: logger}
}

// List returns the lessons visible to actor that match filter.
func (s *LessonQueryService) List(ctx context.Context, actor models.Actor, filter models.LessonFilter) ([]models.Lesson, *models.Pagination, error) {
	if _, ok := actor.(models.AdminActor); ok && s.admin != nil {
		return s.admin.ListAll(ctx, actor, filter)
	}

	scoped, visible, err := s.policy.Scope(actor, filter)
	if err != nil {
		return nil, nil, err
	}
	if !visible {
		return []models.Lesson{}, paginationFor(filter, 0), nil
	}

	lessons, total, err := s.lessons.QueryFiltered(ctx, nil, scoped)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list lessons")
	}
	if lessons == nil {
		lessons = []models.Lesson{}
	}
	return lessons, paginationFor(filter, total), nil
}

// Get loads a single lesson after the visibility check.
func (s *LessonQueryService) Get(ctx context.Context, actor models.Actor, id string) (*models.Lesson, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	lesson, err := s.lessons.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}
	if err := s.policy.CanView(actor, lesson); err != nil {
		return nil, err
	}
	return lesson, nil
}

// History returns a visible lesson's ledger, newest first.
func (s *LessonQueryService) History(ctx context.Context, actor models.Actor, id string) ([]models.LessonHistory, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.audit.ListFor(ctx, id)
}

func paginationFor(filter models.LessonFilter, total int) *models.Pagination {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 20
	}
	return &models.Pagination{Page: page, PageSize: size, TotalCount: total}
}
