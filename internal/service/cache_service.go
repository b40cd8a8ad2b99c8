package service

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lesson-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/lesson-scheduler-api/pkg/errors"
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CacheService wraps the stats cache with metrics and a kill switch.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Get reports whether key was found and decoded into dest.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	s.metrics.RecordCacheOperation(err == nil, time.Since(start))
	if err != nil {
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return false, nil
		}
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return false, err
	}
	return true, nil
}

// Set stores value under key. A non-positive ttl uses the default.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	start := time.Now()
	err := s.repo.Set(ctx, key, value, ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
	return err
}

// Invalidate removes cached values for the provided pattern.
func (s *CacheService) Invalidate(ctx context.Context, pattern string) error {
	if !s.Enabled() {
		return nil
	}
	if err := s.repo.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("pattern", pattern), zap.Error(err))
		return err
	}
	return nil
}

// LessonStatsKey derives a stable cache key for a stats filter.
func LessonStatsKey(filter models.LessonFilter) string {
	parts := []string{
		"teacher=" + filter.TeacherID,
		"student=" + filter.StudentID,
		"subject=" + filter.SubjectID,
		"students=" + strings.Join(filter.StudentIDs, ","),
		"status=" + string(filter.Status),
	}
	if filter.DateFrom != nil {
		parts = append(parts, "from="+filter.DateFrom.String())
	}
	if filter.DateTo != nil {
		parts = append(parts, "to="+filter.DateTo.String())
	}
	sum := sha1.Sum([]byte(strings.Join(parts, "|")))
	return fmt.Sprintf("lessons:stats:%s", hex.EncodeToString(sum[:8]))
}
