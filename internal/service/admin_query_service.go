package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/lesson-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/lesson-scheduler-api/pkg/errors"
	"github.com/noah-isme/lesson-scheduler-api/pkg/export"
)

const exportPageSize = 200

type lessonAdminStore interface {
	QueryFiltered(ctx context.Context, q sqlx.ExtContext, filter models.LessonFilter) ([]models.Lesson, int, error)
	CountByStatus(ctx context.Context, q sqlx.ExtContext, filter models.LessonFilter) ([]models.LessonStatusCount, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type xlsxRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// AdminQueryConfig tunes admin reads.
type AdminQueryConfig struct {
	StatsTTL      time.Duration
	MaxExportRows int
}

// ExportResult is a rendered lesson export.
type ExportResult struct {
	Filename    string
	ContentType string
	Body        []byte
	Rows        int
}

// AdminQueryService serves unrestricted listings, stats and exports to administrators.
type AdminQueryService struct {
	lessons lessonAdminStore
	policy  *AccessPolicy
	cache   *CacheService
	metrics *MetricsService
	csv     csvRenderer
	pdf     pdfRenderer
	xlsx    xlsxRenderer
	logger  *zap.Logger
	cfg     AdminQueryConfig
	clock   func() time.Time
}

// NewAdminQueryService constructs an AdminQueryService.
func NewAdminQueryService(lessons lessonAdminStore, cache *CacheService, metrics *MetricsService, cfg AdminQueryConfig, logger *zap.Logger) *AdminQueryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxExportRows <= 0 {
		cfg.MaxExportRows = 10000
	}
	return &AdminQueryService{
		lessons: lessons,
		policy:  NewAccessPolicy(),
		cache:   cache,
		metrics: metrics,
		csv:     export.NewCSVExporter(','),
		pdf:     export.NewPDFExporter(),
		xlsx:    export.NewXLSXExporter("Lessons"),
		logger:  logger,
		cfg:     cfg,
		clock:   time.Now,
	}
}

// ListAll returns every lesson matching filter. Omitted filters are no-ops.
func (s *AdminQueryService) ListAll(ctx context.Context, actor models.Actor, filter models.LessonFilter) ([]models.Lesson, *models.Pagination, error) {
	if err := s.policy.RequireAdmin(actor); err != nil {
		return nil, nil, err
	}
	start := time.Now()
	lessons, total, err := s.lessons.QueryFiltered(ctx, nil, filter)
	s.metrics.ObserveDBQuery("lessons_query_filtered", time.Since(start))
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list lessons")
	}
	if lessons == nil {
		lessons = []models.Lesson{}
	}
	return lessons, paginationFor(filter, total), nil
}

// Stats counts the filtered lessons per status.
func (s *AdminQueryService) Stats(ctx context.Context, actor models.Actor, filter models.LessonFilter) (*models.LessonStats, error) {
	if err := s.policy.RequireAdmin(actor); err != nil {
		return nil, err
	}

	key := LessonStatsKey(filter)
	var cached models.LessonStats
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}

	start := time.Now()
	rows, err := s.lessons.CountByStatus(ctx, nil, filter)
	s.metrics.ObserveDBQuery("lessons_count_by_status", time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute lesson stats")
	}

	stats := &models.LessonStats{ByStatus: map[models.LessonStatus]int{
		models.LessonStatusPending:   0,
		models.LessonStatusConfirmed: 0,
		models.LessonStatusCompleted: 0,
		models.LessonStatusCancelled: 0,
	}}
	for _, row := range rows {
		stats.ByStatus[row.Status] += row.Count
		stats.Total += row.Count
	}

	_ = s.cache.Set(ctx, key, stats, s.cfg.StatsTTL)
	return stats, nil
}

// Export renders the filtered lessons as csv, pdf or xlsx.
func (s *AdminQueryService) Export(ctx context.Context, actor models.Actor, filter models.LessonFilter, format string) (*ExportResult, error) {
	if err := s.policy.RequireAdmin(actor); err != nil {
		return nil, err
	}
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = "csv"
	}

	lessons, err := s.collect(ctx, filter)
	if err != nil {
		return nil, err
	}
	dataset := lessonDataset(lessons)
	stamp := s.clock().UTC().Format("20060102T150405")

	var (
		body        []byte
		contentType string
	)
	switch format {
	case "csv":
		body, err = s.csv.Render(dataset)
		contentType = "text/csv"
	case "pdf":
		body, err = s.pdf.Render(dataset, "Lessons")
		contentType = "application/pdf"
	case "xlsx":
		body, err = s.xlsx.Render(dataset)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render lesson export")
	}

	s.logger.Info("lessons exported", zap.String("format", format), zap.Int("rows", len(lessons)), zap.String("actor_id", actor.ActorID()))
	return &ExportResult{
		Filename:    fmt.Sprintf("lessons-%s.%s", stamp, format),
		ContentType: contentType,
		Body:        body,
		Rows:        len(lessons),
	}, nil
}

func (s *AdminQueryService) collect(ctx context.Context, filter models.LessonFilter) ([]models.Lesson, error) {
	filter.PageSize = exportPageSize
	var out []models.Lesson
	for page := 1; ; page++ {
		filter.Page = page
		lessons, total, err := s.lessons.QueryFiltered(ctx, nil, filter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lessons for export")
		}
		out = append(out, lessons...)
		if len(lessons) < exportPageSize || len(out) >= total {
			break
		}
		if len(out) >= s.cfg.MaxExportRows {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("export exceeds %d rows, narrow the filter", s.cfg.MaxExportRows))
		}
	}
	return out, nil
}

func lessonDataset(lessons []models.Lesson) export.Dataset {
	headers := []string{"ID", "Date", "Start", "End", "Teacher", "Student", "Subject", "Status", "Description"}
	rows := make([]map[string]string, 0, len(lessons))
	for _, lesson := range lessons {
		description := ""
		if lesson.Description != nil {
			description = *lesson.Description
		}
		rows = append(rows, map[string]string{
			"ID":          lesson.ID,
			"Date":        lesson.Date.String(),
			"Start":       lesson.StartTime.String(),
			"End":         lesson.EndTime.String(),
			"Teacher":     lesson.TeacherID,
			"Student":     lesson.StudentID,
			"Subject":     lesson.SubjectID,
			"Status":      string(lesson.Status),
			"Description": description,
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}
