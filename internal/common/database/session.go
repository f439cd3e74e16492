// internal/common/database/session.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	reconerrors "vocab-reconciler/internal/common/errors"
	"vocab-reconciler/internal/common/logger"
)

// SessionState models the statement lifecycle of a reconciliation session.
type SessionState int32

const (
	// StateIdle means the session can accept the next statement.
	StateIdle SessionState = iota
	// StateActive means a statement is in flight.
	StateActive
	// StateFailed means the last statement errored and the transaction is
	// unusable until rolled back. Query rolls back internally on every error
	// path, so callers never observe this state.
	StateFailed
)

// StatementMeta carries the diagnostic context logged when a statement fails.
type StatementMeta struct {
	Entity  string
	Query   string // normalized query text
	Channel string // "fuzzy" or "semantic"
}

// Session owns one logical database transaction shared by the sub-queries of a
// batch. Its single correctness property: a failed statement always rolls the
// transaction back before control returns to the caller, so one bad sub-query
// cannot poison its siblings.
//
// The transaction is begun on txCtx, the session-lifetime context captured at
// NewSession. Statement contexts only bound the individual QueryContext call;
// database/sql rolls a transaction back the moment its begin context is done,
// so tying it to a per-statement deadline would kill the transaction under
// every following sibling.
type Session struct {
	db     *sql.DB
	txCtx  context.Context
	tx     *sql.Tx
	state  SessionState
	mu     sync.Mutex
	logger logger.Logger
}

// State returns the current session state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Query runs one statement inside the session transaction and hands the rows
// to scan, which must consume them fully. On any failure the transaction is
// rolled back and the session returns to IDLE before the error is returned;
// the next statement starts a fresh transaction.
func (s *Session) Query(ctx context.Context, meta StatementMeta, query string, args []interface{}, scan func(*sql.Rows) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateFailed {
		// Only legal exit from FAILED. Defensive: the error paths below
		// already roll back before returning.
		s.rollbackLocked()
	}

	if s.tx == nil {
		tx, err := s.db.BeginTx(s.txCtx, &sql.TxOptions{ReadOnly: true})
		if err != nil {
			return s.failLocked(meta, time.Duration(0), err)
		}
		s.tx = tx
	}

	s.state = StateActive
	start := time.Now()

	rows, err := s.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return s.failLocked(meta, time.Since(start), err)
	}

	if err := consumeRows(rows, scan); err != nil {
		return s.failLocked(meta, time.Since(start), err)
	}

	s.state = StateIdle
	return nil
}

func consumeRows(rows *sql.Rows, scan func(*sql.Rows) error) error {
	defer rows.Close()
	if err := scan(rows); err != nil {
		return err
	}
	return rows.Err()
}

// failLocked rolls back, restores IDLE, logs the failure with its diagnostic
// context, and maps the error into the retrieval taxonomy.
func (s *Session) failLocked(meta StatementMeta, elapsed time.Duration, err error) error {
	s.state = StateFailed
	s.rollbackLocked()

	s.logger.Error("retrieval statement failed", map[string]interface{}{
		"entity":    meta.Entity,
		"query":     meta.Query,
		"channel":   meta.Channel,
		"elapsedMs": elapsed.Milliseconds(),
		"error":     err.Error(),
	})

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return reconerrors.NewRetrievalTimeoutError(meta.Channel, meta.Entity)
	}
	return reconerrors.NewRetrievalFailedError(meta.Channel, meta.Entity, err)
}

func (s *Session) rollbackLocked() {
	if s.tx != nil {
		if err := s.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			s.logger.Warn("session rollback failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
		s.tx = nil
	}
	s.state = StateIdle
}

// Close finishes the session. A clean session commits its read-only
// transaction; a session with no open transaction is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tx == nil {
		s.state = StateIdle
		return nil
	}

	tx := s.tx
	s.tx = nil
	s.state = StateIdle

	if err := tx.Commit(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}
