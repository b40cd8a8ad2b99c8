package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// EnrollmentRepository answers enrollment lookups for lesson scheduling.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository creates a new enrollment repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// HasActiveEnrollment reports whether the student is actively enrolled in the
// subject with the given teacher.
func (r *EnrollmentRepository) HasActiveEnrollment(ctx context.Context, q sqlx.ExtContext, studentID, subjectID, teacherID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM enrollments WHERE student_id = $1 AND subject_id = $2 AND teacher_id = $3 AND is_active)`
	var exists bool
	if err := sqlx.GetContext(ctx, execer(q, r.db), &exists, query, studentID, subjectID, teacherID); err != nil {
		return false, fmt.Errorf("check active enrollment: %w", classify(err))
	}
	return exists, nil
}
