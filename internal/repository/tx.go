package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// ErrLockTimeout marks a transaction that could not acquire its locks in time.
var ErrLockTimeout = errors.New("schedule lock timeout")

const (
	pqLockNotAvailable       = pq.ErrorCode("55P03")
	pqSerializationFailure   = pq.ErrorCode("40001")
	pqDeadlockDetected       = pq.ErrorCode("40P01")
	defaultLessonLockTimeout = 3 * time.Second
)

// Tx is a transaction handle accepted by the lesson stores.
type Tx interface {
	sqlx.ExtContext
	Commit() error
	Rollback() error
}

// TxManager opens lesson transactions with a bounded lock wait.
type TxManager struct {
	db          *sqlx.DB
	lockTimeout time.Duration
}

// NewTxManager constructs a transaction manager.
func NewTxManager(db *sqlx.DB, lockTimeout time.Duration) *TxManager {
	if lockTimeout <= 0 {
		lockTimeout = defaultLessonLockTimeout
	}
	return &TxManager{db: db, lockTimeout: lockTimeout}
}

// BeginLessonTx opens a READ COMMITTED transaction whose lock waits are bounded.
func (m *TxManager) BeginLessonTx(ctx context.Context) (Tx, error) {
	tx, err := m.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("begin lesson tx: %w", classify(err))
	}
	stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", m.lockTimeout.Milliseconds())
	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("set lock timeout: %w", classify(err))
	}
	return tx, nil
}

// IsRetryable reports whether err is a transient lock or serialization failure.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrLockTimeout) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqLockNotAvailable, pqSerializationFailure, pqDeadlockDetected:
			return true
		}
	}
	return false
}

// classify tags transient Postgres failures with ErrLockTimeout.
func classify(err error) error {
	if err == nil || errors.Is(err, ErrLockTimeout) {
		return err
	}
	if IsRetryable(err) {
		return fmt.Errorf("%w: %v", ErrLockTimeout, err)
	}
	return err
}

func execer(q sqlx.ExtContext, db *sqlx.DB) sqlx.ExtContext {
	if q == nil {
		return db
	}
	return q
}
