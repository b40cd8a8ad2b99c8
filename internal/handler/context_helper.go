package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lesson-scheduler-api/internal/dto"
	"github.com/noah-isme/lesson-scheduler-api/internal/middleware"
	"github.com/noah-isme/lesson-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/lesson-scheduler-api/pkg/errors"
)

func actorFromContext(c *gin.Context) models.Actor {
	return middleware.ActorFromContext(c)
}

// bindLessonFilter reads the shared lesson list parameters.
func bindLessonFilter(c *gin.Context, query *dto.LessonQuery) (models.LessonFilter, error) {
	if err := c.ShouldBindQuery(query); err != nil {
		return models.LessonFilter{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid query parameters")
	}

	filter := models.LessonFilter{
		TeacherID: strings.TrimSpace(query.TeacherID),
		StudentID: strings.TrimSpace(query.StudentID),
		SubjectID: strings.TrimSpace(query.SubjectID),
		Page:      query.Page,
		PageSize:  query.PageSize,
		SortBy:    query.SortBy,
		SortOrder: query.SortOrder,
	}
	if query.DateFrom != "" {
		from, err := models.ParseDate(query.DateFrom)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "date_from must be YYYY-MM-DD")
		}
		filter.DateFrom = &from
	}
	if query.DateTo != "" {
		to, err := models.ParseDate(query.DateTo)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "date_to must be YYYY-MM-DD")
		}
		filter.DateTo = &to
	}
	if filter.DateFrom != nil && filter.DateTo != nil && filter.DateTo.Before(*filter.DateFrom) {
		return filter, appErrors.Clone(appErrors.ErrValidation, "date_to must not precede date_from")
	}
	if query.Status != "" {
		status := models.LessonStatus(strings.ToLower(query.Status))
		if !status.Valid() {
			return filter, appErrors.Clone(appErrors.ErrValidation, "unknown lesson status")
		}
		filter.Status = status
	}
	if filter.Page < 0 || filter.PageSize < 0 || filter.PageSize > 200 {
		return filter, appErrors.Clone(appErrors.ErrValidation, "invalid pagination")
	}
	return filter, nil
}
