// Package store implements the Job Store (C1, spec.md §4.1): a typed
// wrapper over the relational table with atomic state transitions and
// queue/inspection queries. It is grounded on the original
// implementation's raw-SQL, autocommit style rather than an ORM's
// migration model, since the spec gives a literal CREATE TABLE and
// requires every transition to be exactly one UPDATE.
package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/ikretus/asr/internal/asrerr"
	"github.com/ikretus/asr/internal/models"
)

// Store is the interface the scheduler, ingress and query handlers
// depend on, so tests can substitute a fake without a live Postgres.
type Store interface {
	Create(ctx context.Context, auid string, lang models.Lang, model models.Model) error
	MarkProcessing(ctx context.Context, auid string, ts *time.Time) error
	MarkSuccess(ctx context.Context, auid string, transcript json.RawMessage) error
	MarkFailed(ctx context.Context, auid string, reason string) error
	SetTarget(ctx context.Context, auid string, target json.RawMessage) error
	Pending(ctx context.Context) ([]models.Job, error)
	InFlight(ctx context.Context) ([]models.Job, error)
	Get(ctx context.Context, auid string) (*models.Job, error)
	Recent(ctx context.Context, limit int) ([]models.Job, error)
}

// SQLStore is the Postgres-backed Store implementation.
type SQLStore struct {
	db    *sqlx.DB
	table string
}

// Open connects to Postgres with lib/pq and wraps the connection in
// sqlx for typed scans. DSN follows the standard "host=... port=...
// user=... password=... dbname=... sslmode=..." form.
func Open(dsn, table string) (*SQLStore, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, asrerr.NewDBError("connect", "failed to connect to database", err)
	}
	return &SQLStore{db: db, table: table}, nil
}

// Close releases the underlying connection pool.
func (s *SQLStore) Close() error { return s.db.Close() }

// EnsureTable creates the table if it does not already exist, guarded
// by the create_table config flag (spec.md §6).
func (s *SQLStore) EnsureTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			auid       uuid PRIMARY KEY,
			lang       char(2)  NOT NULL,
			model      char(4)  NOT NULL,
			attempt    smallint NOT NULL DEFAULT 0,
			loaded     timestamp NOT NULL DEFAULT now(),
			processing timestamp,
			failed     timestamp,
			success    timestamp,
			log        text,
			result     jsonb,
			target     jsonb
		)`, s.table)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return asrerr.NewDBError("ensure_table", "failed to create table", err)
	}
	return nil
}

// Create inserts a new LOADED row. Fails on primary-key collision.
func (s *SQLStore) Create(ctx context.Context, auid string, lang models.Lang, model models.Model) error {
	query := fmt.Sprintf(`INSERT INTO %s (auid, lang, model) VALUES ($1, $2, $3)`, s.table)
	if _, err := s.db.ExecContext(ctx, query, auid, string(lang), string(model)); err != nil {
		return asrerr.NewDBError("create", "failed to insert job", err)
	}
	return nil
}

// MarkProcessing sets processing = ts and increments attempt. ts is
// now() on a fresh start, or nil to clear it after a reaper-ordered
// resume (spec.md §4.1). attempt increments unconditionally in both
// cases, per the original implementation (see SPEC_FULL.md).
func (s *SQLStore) MarkProcessing(ctx context.Context, auid string, ts *time.Time) error {
	query := fmt.Sprintf(`UPDATE %s SET processing = $1, attempt = attempt + 1 WHERE auid = $2`, s.table)
	if _, err := s.db.ExecContext(ctx, query, ts, auid); err != nil {
		return asrerr.NewDBError("mark_processing", "failed to update processing state", err)
	}
	return nil
}

// MarkSuccess sets success = now(), log = "success", result = transcript.
func (s *SQLStore) MarkSuccess(ctx context.Context, auid string, transcript json.RawMessage) error {
	query := fmt.Sprintf(`UPDATE %s SET success = now(), log = 'success', result = $1 WHERE auid = $2`, s.table)
	if _, err := s.db.ExecContext(ctx, query, []byte(transcript), auid); err != nil {
		return asrerr.NewDBError("mark_success", "failed to update success state", err)
	}
	return nil
}

// MarkFailed sets failed = now(), log = reason.
func (s *SQLStore) MarkFailed(ctx context.Context, auid string, reason string) error {
	query := fmt.Sprintf(`UPDATE %s SET failed = now(), log = $1 WHERE auid = $2`, s.table)
	if _, err := s.db.ExecContext(ctx, query, reason, auid); err != nil {
		return asrerr.NewDBError("mark_failed", "failed to update failed state", err)
	}
	return nil
}

// SetTarget writes the reference transcript reserved for evaluation
// tooling (spec.md §9: "written by no path in the code shown").
func (s *SQLStore) SetTarget(ctx context.Context, auid string, target json.RawMessage) error {
	query := fmt.Sprintf(`UPDATE %s SET target = $1 WHERE auid = $2`, s.table)
	if _, err := s.db.ExecContext(ctx, query, []byte(target), auid); err != nil {
		return asrerr.NewDBError("set_target", "failed to update target", err)
	}
	return nil
}

// Pending returns all rows with processing IS NULL, ordered by loaded
// ascending (the FIFO order admission relies on).
func (s *SQLStore) Pending(ctx context.Context) ([]models.Job, error) {
	query := fmt.Sprintf(`SELECT auid, lang, model, attempt, loaded, processing, failed, success, log, result, target
		FROM %s WHERE processing IS NULL ORDER BY loaded ASC`, s.table)
	return s.query(ctx, query)
}

// InFlight returns all rows with processing set and neither terminal
// timestamp set.
func (s *SQLStore) InFlight(ctx context.Context) ([]models.Job, error) {
	query := fmt.Sprintf(`SELECT auid, lang, model, attempt, loaded, processing, failed, success, log, result, target
		FROM %s WHERE processing IS NOT NULL AND failed IS NULL AND success IS NULL`, s.table)
	return s.query(ctx, query)
}

// Get projects a single row to its current state.
func (s *SQLStore) Get(ctx context.Context, auid string) (*models.Job, error) {
	query := fmt.Sprintf(`SELECT auid, lang, model, attempt, loaded, processing, failed, success, log, result, target
		FROM %s WHERE auid = $1`, s.table)
	var j models.Job
	if err := s.db.GetContext(ctx, &j, query, auid); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, asrerr.NewDBError("get", "failed to fetch job", err)
	}
	return &j, nil
}

// Recent returns up to limit rows ordered by loaded descending
// (newest first); callers that want ascending order (spec.md §4.7's
// GET / response) reverse the slice themselves.
func (s *SQLStore) Recent(ctx context.Context, limit int) ([]models.Job, error) {
	query := fmt.Sprintf(`SELECT auid, lang, model, attempt, loaded, processing, failed, success, log, result, target
		FROM %s ORDER BY loaded DESC LIMIT $1`, s.table)
	return s.query(ctx, query, limit)
}

func (s *SQLStore) query(ctx context.Context, query string, args ...any) ([]models.Job, error) {
	var jobs []models.Job
	if err := s.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, asrerr.NewDBError("query", "failed to query jobs", err)
	}
	return jobs, nil
}

// IsConnectionError reports whether err reflects a lost connection
// rather than a query-level failure (spec.md §4.1: "a lost connection
// yields a recoverable error; the caller may retry or abort the
// pass"). pq surfaces these as driver.ErrBadConn or net errors rather
// than a wire-protocol error, so this is a best-effort classification.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone)
}
