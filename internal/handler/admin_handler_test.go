package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lesson-scheduler-api/internal/models"
	"github.com/noah-isme/lesson-scheduler-api/internal/service"
	appErrors "github.com/noah-isme/lesson-scheduler-api/pkg/errors"
)

type adminServiceMock struct {
	stats      *models.LessonStats
	export     *service.ExportResult
	err        error
	lastFilter models.LessonFilter
	lastFormat string
}

func (m *adminServiceMock) ListAll(ctx context.Context, actor models.Actor, filter models.LessonFilter) ([]models.Lesson, *models.Pagination, error) {
	m.lastFilter = filter
	return []models.Lesson{}, &models.Pagination{Page: 1, PageSize: 20}, m.err
}

func (m *adminServiceMock) Stats(ctx context.Context, actor models.Actor, filter models.LessonFilter) (*models.LessonStats, error) {
	m.lastFilter = filter
	return m.stats, m.err
}

func (m *adminServiceMock) Export(ctx context.Context, actor models.Actor, filter models.LessonFilter, format string) (*service.ExportResult, error) {
	m.lastFilter, m.lastFormat = filter, format
	return m.export, m.err
}

func TestAdminHandlerStats(t *testing.T) {
	svc := &adminServiceMock{stats: &models.LessonStats{Total: 2, ByStatus: map[models.LessonStatus]int{models.LessonStatusPending: 2}}}
	h := NewAdminHandler(svc)
	c, w := newTestContext(http.MethodGet, "/admin/lessons/stats?teacher_id=teacher-1", "", models.AdminActor{ID: "admin"})

	h.Stats(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "teacher-1", svc.lastFilter.TeacherID)
	env := decodeEnvelope(t, w)
	assert.JSONEq(t, `{"total":2,"by_status":{"pending":2}}`, string(env.Data))
}

func TestAdminHandlerExport(t *testing.T) {
	svc := &adminServiceMock{export: &service.ExportResult{Filename: "lessons.csv", ContentType: "text/csv", Body: []byte("ID\nl-1\n"), Rows: 1}}
	h := NewAdminHandler(svc)
	c, w := newTestContext(http.MethodGet, "/admin/lessons/export?format=csv&status=pending", "", models.AdminActor{ID: "admin"})

	h.Export(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "csv", svc.lastFormat)
	assert.Equal(t, models.LessonStatusPending, svc.lastFilter.Status)
	assert.Equal(t, `attachment; filename="lessons.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Equal(t, "ID\nl-1\n", w.Body.String())
}

func TestAdminHandlerForbidden(t *testing.T) {
	svc := &adminServiceMock{err: appErrors.Clone(appErrors.ErrForbidden, "administrator role required")}
	h := NewAdminHandler(svc)
	c, w := newTestContext(http.MethodGet, "/admin/lessons", "", models.TeacherActor{ID: "teacher-1"})

	h.List(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
}
