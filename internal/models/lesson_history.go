package models

import (
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx/types"
)

// LessonAction enumerates the mutations recorded in the history ledger.
type LessonAction string

const (
	LessonActionCreated   LessonAction = "created"
	LessonActionUpdated   LessonAction = "updated"
	LessonActionCancelled LessonAction = "cancelled"
)

// FieldValues is a field-level snapshot keyed by column name.
type FieldValues map[string]interface{}

// JSON encodes the snapshot for a jsonb column. Nil encodes as an empty object.
func (f FieldValues) JSON() (types.JSONText, error) {
	if f == nil {
		return types.JSONText("{}"), nil
	}
	raw, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	return types.JSONText(raw), nil
}

// LessonHistory is an immutable ledger entry for a lesson mutation.
type LessonHistory struct {
	ID        string         `db:"id" json:"id"`
	LessonID  string         `db:"lesson_id" json:"lesson_id"`
	ActorID   string         `db:"actor_id" json:"actor_id"`
	Action    LessonAction   `db:"action" json:"action"`
	OldValues types.JSONText `db:"old_values" json:"old_values"`
	NewValues types.JSONText `db:"new_values" json:"new_values"`
	CreatedAt time.Time      `db:"created_at" json:"timestamp"`
}

// Values decodes a snapshot column back into a map.
func (h LessonHistory) Values(raw types.JSONText) (FieldValues, error) {
	out := FieldValues{}
	if len(raw) == 0 {
		return out, nil
	}
	if err := raw.Unmarshal(&out); err != nil {
		return nil, err
	}
	return out, nil
}
