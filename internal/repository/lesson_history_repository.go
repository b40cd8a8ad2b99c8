package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lesson-scheduler-api/internal/models"
)

// LessonHistoryRepository is the append-only store of lesson mutations.
// It exposes no update or delete.
type LessonHistoryRepository struct {
	db *sqlx.DB
}

// NewLessonHistoryRepository creates a new history repository.
func NewLessonHistoryRepository(db *sqlx.DB) *LessonHistoryRepository {
	return &LessonHistoryRepository{db: db}
}

// Append writes a new history entry.
func (r *LessonHistoryRepository) Append(ctx context.Context, q sqlx.ExtContext, entry *models.LessonHistory) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO lesson_history (id, lesson_id, actor_id, action, old_values, new_values, created_at) VALUES (:id, :lesson_id, :actor_id, :action, :old_values, :new_values, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, execer(q, r.db), query, entry); err != nil {
		return fmt.Errorf("append lesson history: %w", classify(err))
	}
	return nil
}

// ListByLesson returns a lesson's history, most recent first.
func (r *LessonHistoryRepository) ListByLesson(ctx context.Context, lessonID string) ([]models.LessonHistory, error) {
	const query = `SELECT id, lesson_id, actor_id, action, old_values, new_values, created_at FROM lesson_history WHERE lesson_id = $1 ORDER BY created_at DESC, id DESC`
	entries := []models.LessonHistory{}
	if err := r.db.SelectContext(ctx, &entries, query, lessonID); err != nil {
		return nil, fmt.Errorf("list lesson history: %w", err)
	}
	return entries, nil
}
