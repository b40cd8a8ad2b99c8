package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lesson-scheduler-api/internal/models"
)

func TestMetricsServiceCountsLessonOutcomes(t *testing.T) {
	f := newLessonFixture(t)
	metrics := NewMetricsService()
	svc := NewLessonService(f.store, f.store, f.store, NewAuditRecorder(f.store, nil), nil, nil,
		WithLessonClock(f.clock.Now), WithLessonMetrics(metrics))
	ctx := context.Background()

	_, err := svc.Create(ctx, teacherOne, createReq("teacher-1", "student-1", "2099-01-10", "10:00", "11:00"))
	require.NoError(t, err)
	_, err = svc.Create(ctx, teacherOne, createReq("teacher-1", "student-1", "2099-01-10", "10:30", "11:30"))
	require.Error(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.lessonOps.WithLabelValues("create", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.lessonOps.WithLabelValues("create", "conflict")))

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "lesson_operations_total")
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var metrics *MetricsService
	assert.NotPanics(t, func() {
		metrics.RecordLessonOperation("create", "success")
		metrics.RecordEventPublished("LessonCreated", true)
		metrics.ObserveHTTPRequest(http.MethodGet, "/lessons", http.StatusOK, time.Millisecond)
		metrics.RecordCacheOperation(true, time.Millisecond)
		metrics.ObserveDBQuery("lessons", time.Millisecond)
	})

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCacheServiceDisabled(t *testing.T) {
	backing := newMemoryCache()
	cache := NewCacheService(backing, nil, 0, nil, false)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "lessons:stats:x", models.LessonStats{Total: 1}, 0))
	var out models.LessonStats
	hit, err := cache.Get(ctx, "lessons:stats:x", &out)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 0, backing.size())

	var none *CacheService
	assert.False(t, none.Enabled())
	assert.NoError(t, none.Invalidate(ctx, lessonStatsCachePattern))
}

func TestCacheServiceRoundTrip(t *testing.T) {
	backing := newMemoryCache()
	metrics := NewMetricsService()
	cache := NewCacheService(backing, metrics, time.Minute, nil, true)
	ctx := context.Background()

	var out models.LessonStats
	hit, err := cache.Get(ctx, "lessons:stats:a", &out)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, cache.Set(ctx, "lessons:stats:a", models.LessonStats{Total: 3}, 0))
	hit, err = cache.Get(ctx, "lessons:stats:a", &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 3, out.Total)

	require.NoError(t, cache.Invalidate(ctx, lessonStatsCachePattern))
	assert.Equal(t, 0, backing.size())
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.cacheHits))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.cacheMisses))
}
