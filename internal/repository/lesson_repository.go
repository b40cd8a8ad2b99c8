package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/lesson-scheduler-api/internal/models"
)

const lessonColumns = "id, teacher_id, student_id, subject_id, date, start_time, end_time, status, description, telemost_link, created_at, updated_at"

// LessonRepository provides persistence for lessons. Every method accepts an
// optional transaction handle; nil runs against the pool.
type LessonRepository struct {
	db *sqlx.DB
}

// NewLessonRepository creates a new lesson repository.
func NewLessonRepository(db *sqlx.DB) *LessonRepository {
	return &LessonRepository{db: db}
}

// GetByID loads a lesson by id. Ids that are not UUIDs report sql.ErrNoRows.
func (r *LessonRepository) GetByID(ctx context.Context, q sqlx.ExtContext, id string) (*models.Lesson, error) {
	if !isLessonID(id) {
		return nil, sql.ErrNoRows
	}
	query := fmt.Sprintf("SELECT %s FROM lessons WHERE id = $1", lessonColumns)
	var lesson models.Lesson
	if err := sqlx.GetContext(ctx, execer(q, r.db), &lesson, query, id); err != nil {
		return nil, err
	}
	return &lesson, nil
}

// GetByIDForUpdate loads a lesson and holds its row lock until the transaction ends.
func (r *LessonRepository) GetByIDForUpdate(ctx context.Context, q sqlx.ExtContext, id string) (*models.Lesson, error) {
	if !isLessonID(id) {
		return nil, sql.ErrNoRows
	}
	query := fmt.Sprintf("SELECT %s FROM lessons WHERE id = $1 FOR UPDATE", lessonColumns)
	var lesson models.Lesson
	if err := sqlx.GetContext(ctx, execer(q, r.db), &lesson, query, id); err != nil {
		return nil, classify(err)
	}
	return &lesson, nil
}

// Insert stores a new lesson record.
func (r *LessonRepository) Insert(ctx context.Context, q sqlx.ExtContext, lesson *models.Lesson) error {
	if lesson.ID == "" {
		lesson.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if lesson.CreatedAt.IsZero() {
		lesson.CreatedAt = now
	}
	lesson.UpdatedAt = now

	const query = `INSERT INTO lessons (id, teacher_id, student_id, subject_id, date, start_time, end_time, status, description, telemost_link, created_at, updated_at) VALUES (:id, :teacher_id, :student_id, :subject_id, :date, :start_time, :end_time, :status, :description, :telemost_link, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, execer(q, r.db), query, lesson); err != nil {
		return fmt.Errorf("insert lesson: %w", classify(err))
	}
	return nil
}

// Update persists the mutable fields of a lesson.
func (r *LessonRepository) Update(ctx context.Context, q sqlx.ExtContext, lesson *models.Lesson) error {
	lesson.UpdatedAt = time.Now().UTC()
	const query = `UPDATE lessons SET date = :date, start_time = :start_time, end_time = :end_time, status = :status, description = :description, telemost_link = :telemost_link, updated_at = :updated_at WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, execer(q, r.db), query, lesson)
	if err != nil {
		return fmt.Errorf("update lesson: %w", classify(err))
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("update lesson %s: no rows affected", lesson.ID)
	}
	return nil
}

// QueryByTeacherOrStudentAndDate returns the active lessons on date that share
// the teacher or the student, excluding excludeID when set.
func (r *LessonRepository) QueryByTeacherOrStudentAndDate(ctx context.Context, q sqlx.ExtContext, teacherID, studentID string, date models.Date, excludeID string) ([]models.Lesson, error) {
	query := fmt.Sprintf(`SELECT %s FROM lessons WHERE date = $1 AND (teacher_id = $2 OR student_id = $3) AND status <> $4`, lessonColumns)
	args := []interface{}{date, teacherID, studentID, models.LessonStatusCancelled}
	if excludeID != "" {
		query += " AND id <> $5"
		args = append(args, excludeID)
	}
	query += " ORDER BY start_time ASC"

	var lessons []models.Lesson
	if err := sqlx.SelectContext(ctx, execer(q, r.db), &lessons, query, args...); err != nil {
		return nil, fmt.Errorf("query lessons by teacher or student: %w", classify(err))
	}
	return lessons, nil
}

// QueryFiltered returns lessons matching every provided filter with pagination.
func (r *LessonRepository) QueryFiltered(ctx context.Context, q sqlx.ExtContext, filter models.LessonFilter) ([]models.Lesson, int, error) {
	base, args := buildLessonWhere(filter)

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"date":       true,
		"start_time": true,
		"status":     true,
		"created_at": true,
		"updated_at": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "date"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 20
	}
	offset := (page - 1) * size

	exec := execer(q, r.db)
	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s, id ASC LIMIT %d OFFSET %d", lessonColumns, base, sortBy, order, size, offset)
	var lessons []models.Lesson
	if err := sqlx.SelectContext(ctx, exec, &lessons, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list lessons: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := sqlx.GetContext(ctx, exec, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count lessons: %w", err)
	}

	return lessons, total, nil
}

// CountByStatus groups the filtered lessons by status.
func (r *LessonRepository) CountByStatus(ctx context.Context, q sqlx.ExtContext, filter models.LessonFilter) ([]models.LessonStatusCount, error) {
	base, args := buildLessonWhere(filter)
	query := fmt.Sprintf("SELECT status, COUNT(*) AS count %s GROUP BY status ORDER BY status", base)
	var rows []models.LessonStatusCount
	if err := sqlx.SelectContext(ctx, execer(q, r.db), &rows, query, args...); err != nil {
		return nil, fmt.Errorf("count lessons by status: %w", err)
	}
	return rows, nil
}

// LockSchedule takes transaction-scoped advisory locks on the teacher's and
// the student's day. Keys are acquired in sorted order.
func (r *LessonRepository) LockSchedule(ctx context.Context, q sqlx.ExtContext, teacherID, studentID string, date models.Date) error {
	keys := ScheduleLockKeys(teacherID, studentID, date)
	exec := execer(q, r.db)
	for _, key := range keys {
		if _, err := exec.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", key); err != nil {
			return fmt.Errorf("lock schedule %s: %w", key, classify(err))
		}
	}
	return nil
}

// isLessonID guards lookups against the uuid column, which rejects other input with 22P02.
func isLessonID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// ScheduleLockKeys returns the sorted advisory lock keys for a teacher/student day.
func ScheduleLockKeys(teacherID, studentID string, date models.Date) []string {
	keys := []string{
		fmt.Sprintf("teacher:%s:%s", teacherID, date),
		fmt.Sprintf("student:%s:%s", studentID, date),
	}
	sort.Strings(keys)
	return keys
}

func buildLessonWhere(filter models.LessonFilter) (string, []interface{}) {
	base := "FROM lessons WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.StudentIDs != nil {
		conditions = append(conditions, fmt.Sprintf("student_id = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(filter.StudentIDs))
	}
	if filter.SubjectID != "" {
		conditions = append(conditions, fmt.Sprintf("subject_id = $%d", len(args)+1))
		args = append(args, filter.SubjectID)
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}
	return base, args
}
