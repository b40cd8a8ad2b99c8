package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lesson-scheduler-api/internal/dto"
	"github.com/noah-isme/lesson-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/lesson-scheduler-api/pkg/errors"
	"github.com/noah-isme/lesson-scheduler-api/pkg/response"
)

type lessonCommands interface {
	Create(ctx context.Context, actor models.Actor, req dto.CreateLessonRequest) (*models.Lesson, error)
	Update(ctx context.Context, actor models.Actor, id string, req dto.UpdateLessonRequest) (*models.Lesson, error)
	Cancel(ctx context.Context, actor models.Actor, id string) (*models.Lesson, error)
}

type lessonQueries interface {
	List(ctx context.Context, actor models.Actor, filter models.LessonFilter) ([]models.Lesson, *models.Pagination, error)
	Get(ctx context.Context, actor models.Actor, id string) (*models.Lesson, error)
	History(ctx context.Context, actor models.Actor, id string) ([]models.LessonHistory, error)
}

// LessonHandler exposes the lesson lifecycle and role-scoped reads.
type LessonHandler struct {
	commands lessonCommands
	queries  lessonQueries
}

// NewLessonHandler constructs a LessonHandler.
func NewLessonHandler(commands lessonCommands, queries lessonQueries) *LessonHandler {
	return &LessonHandler{commands: commands, queries: queries}
}

// Create godoc
// @Summary Schedule a lesson
// @Tags Lessons
// @Accept json
// @Produce json
// @Param payload body dto.CreateLessonRequest true "Lesson payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /lessons [post]
func (h *LessonHandler) Create(c *gin.Context) {
	var req dto.CreateLessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lesson payload"))
		return
	}
	lesson, err := h.commands.Create(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, lesson)
}

// Update godoc
// @Summary Reschedule or edit a lesson
// @Tags Lessons
// @Accept json
// @Produce json
// @Param id path string true "Lesson ID"
// @Param payload body dto.UpdateLessonRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /lessons/{id} [patch]
func (h *LessonHandler) Update(c *gin.Context) {
	var req dto.UpdateLessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lesson patch"))
		return
	}
	lesson, err := h.commands.Update(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lesson, nil)
}

// Cancel godoc
// @Summary Cancel a lesson
// @Tags Lessons
// @Produce json
// @Param id path string true "Lesson ID"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /lessons/{id}/cancel [post]
func (h *LessonHandler) Cancel(c *gin.Context) {
	lesson, err := h.commands.Cancel(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lesson, nil)
}

// List godoc
// @Summary List visible lessons
// @Tags Lessons
// @Produce json
// @Param teacher_id query string false "Teacher filter"
// @Param student_id query string false "Student filter"
// @Param subject_id query string false "Subject filter"
// @Param date_from query string false "Inclusive start date (YYYY-MM-DD)"
// @Param date_to query string false "Inclusive end date (YYYY-MM-DD)"
// @Param status query string false "Lesson status"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /lessons [get]
func (h *LessonHandler) List(c *gin.Context) {
	var query dto.LessonQuery
	filter, err := bindLessonFilter(c, &query)
	if err != nil {
		response.Error(c, err)
		return
	}
	lessons, pagination, err := h.queries.List(c.Request.Context(), actorFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lessons, pagination)
}

// Get godoc
// @Summary Get a lesson
// @Tags Lessons
// @Produce json
// @Param id path string true "Lesson ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /lessons/{id} [get]
func (h *LessonHandler) Get(c *gin.Context) {
	lesson, err := h.queries.Get(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lesson, nil)
}

// History godoc
// @Summary Lesson change history, newest first
// @Tags Lessons
// @Produce json
// @Param id path string true "Lesson ID"
// @Success 200 {object} response.Envelope
// @Router /lessons/{id}/history [get]
func (h *LessonHandler) History(c *gin.Context) {
	entries, err := h.queries.History(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}
