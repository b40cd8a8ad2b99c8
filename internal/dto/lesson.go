package dto

// CreateLessonRequest schedules a new lesson for the calling teacher.
type CreateLessonRequest struct {
	TeacherID    string  `json:"teacherId" validate:"required"`
	StudentID    string  `json:"studentId" validate:"required"`
	SubjectID    string  `json:"subjectId" validate:"required"`
	Date         string  `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime    string  `json:"startTime" validate:"required,datetime=15:04"`
	EndTime      string  `json:"endTime" validate:"required,datetime=15:04"`
	Description  *string `json:"description" validate:"omitempty,max=2000"`
	TelemostLink *string `json:"telemostLink" validate:"omitempty,url"`
}

// UpdateLessonRequest patches a lesson. Nil fields are left untouched and
// unknown JSON fields are ignored.
type UpdateLessonRequest struct {
	Date         *string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	StartTime    *string `json:"startTime" validate:"omitempty,datetime=15:04"`
	EndTime      *string `json:"endTime" validate:"omitempty,datetime=15:04"`
	Description  *string `json:"description" validate:"omitempty,max=2000"`
	TelemostLink *string `json:"telemostLink" validate:"omitempty,url"`
}

// TouchesSchedule reports whether the patch carries any time field.
func (r UpdateLessonRequest) TouchesSchedule() bool {
	return r.Date != nil || r.StartTime != nil || r.EndTime != nil
}

// Empty reports whether the patch carries no recognised field.
func (r UpdateLessonRequest) Empty() bool {
	return !r.TouchesSchedule() && r.Description == nil && r.TelemostLink == nil
}

// LessonQuery binds list filters from query parameters.
type LessonQuery struct {
	TeacherID string `form:"teacher_id"`
	StudentID string `form:"student_id"`
	SubjectID string `form:"subject_id"`
	DateFrom  string `form:"date_from" validate:"omitempty,datetime=2006-01-02"`
	DateTo    string `form:"date_to" validate:"omitempty,datetime=2006-01-02"`
	Status    string `form:"status" validate:"omitempty,oneof=pending confirmed completed cancelled"`
	Page      int    `form:"page" validate:"omitempty,min=1"`
	PageSize  int    `form:"page_size" validate:"omitempty,min=1,max=200"`
	SortBy    string `form:"sort_by"`
	SortOrder string `form:"sort_order" validate:"omitempty,oneof=asc desc ASC DESC"`
}
