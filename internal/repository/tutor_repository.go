package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// TutorRepository reads tutor management relationships.
type TutorRepository struct {
	db *sqlx.DB
}

// NewTutorRepository creates a new tutor repository.
func NewTutorRepository(db *sqlx.DB) *TutorRepository {
	return &TutorRepository{db: db}
}

// ListManagedStudentIDs returns the students a tutor actively manages.
func (r *TutorRepository) ListManagedStudentIDs(ctx context.Context, tutorID string) ([]string, error) {
	const query = `SELECT student_id FROM tutor_students WHERE tutor_id = $1 AND is_active ORDER BY student_id`
	ids := []string{}
	if err := r.db.SelectContext(ctx, &ids, query, tutorID); err != nil {
		return nil, fmt.Errorf("list managed students: %w", err)
	}
	return ids, nil
}
