package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lesson-scheduler-api/internal/dto"
	"github.com/noah-isme/lesson-scheduler-api/internal/models"
	"github.com/noah-isme/lesson-scheduler-api/internal/service"
	"github.com/noah-isme/lesson-scheduler-api/pkg/response"
)

type adminLessonQueries interface {
	ListAll(ctx context.Context, actor models.Actor, filter models.LessonFilter) ([]models.Lesson, *models.Pagination, error)
	Stats(ctx context.Context, actor models.Actor, filter models.LessonFilter) (*models.LessonStats, error)
	Export(ctx context.Context, actor models.Actor, filter models.LessonFilter, format string) (*service.ExportResult, error)
}

// AdminHandler exposes unrestricted lesson reads for administrators.
type AdminHandler struct {
	service adminLessonQueries
}

// NewAdminHandler constructs an AdminHandler.
func NewAdminHandler(svc adminLessonQueries) *AdminHandler {
	return &AdminHandler{service: svc}
}

// List godoc
// @Summary List all lessons
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/lessons [get]
func (h *AdminHandler) List(c *gin.Context) {
	var query dto.LessonQuery
	filter, err := bindLessonFilter(c, &query)
	if err != nil {
		response.Error(c, err)
		return
	}
	lessons, pagination, err := h.service.ListAll(c.Request.Context(), actorFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lessons, pagination)
}

// Stats godoc
// @Summary Lesson counts per status
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/lessons/stats [get]
func (h *AdminHandler) Stats(c *gin.Context) {
	var query dto.LessonQuery
	filter, err := bindLessonFilter(c, &query)
	if err != nil {
		response.Error(c, err)
		return
	}
	stats, err := h.service.Stats(c.Request.Context(), actorFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Export godoc
// @Summary Export lessons
// @Tags Admin
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv, pdf or xlsx"
// @Success 200 {file} file
// @Router /admin/lessons/export [get]
func (h *AdminHandler) Export(c *gin.Context) {
	var query dto.LessonQuery
	filter, err := bindLessonFilter(c, &query)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.service.Export(c.Request.Context(), actorFromContext(c), filter, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, result.Filename, result.ContentType, result.Body)
}
