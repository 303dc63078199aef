// Package store implements durable article persistence over a single SQLite
// file: schema migrations, transactional mutations, and the fixed query
// surface the reader uses.
//
// Concurrency discipline: the write handle is capped at one connection so
// writers serialize, the read pool hands each worker its own connection, and
// the journal runs in WAL mode so readers are never blocked by an in-flight
// writer. Lock contention retries with bounded backoff and then surfaces as
// drift.ErrStorageContention.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"driftline/pkg/drift"
)

const (
	defaultReadPoolSize = 4

	busyInitialInterval = 10 * time.Millisecond
	busyMaxInterval     = 250 * time.Millisecond
	busyMaxRetries      = 6
)

// Store owns the SQLite handles and the query surface.
type Store struct {
	cfg config

	readDB  *sql.DB
	writeDB *sql.DB

	closed atomic.Bool
}

type config struct {
	path         string
	readPoolSize int
	logger       *slog.Logger
	clock        func() time.Time
}

// Option mutates store construction configuration.
type Option func(*config)

// WithLogger configures the logger used for migration and retry reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithReadPoolSize configures how many read connections the store keeps.
func WithReadPoolSize(size int) Option {
	return func(cfg *config) {
		if size > 0 {
			cfg.readPoolSize = size
		}
	}
}

// WithClock overrides the time source used for persisted timestamps.
func WithClock(clock func() time.Time) Option {
	return func(cfg *config) {
		if clock != nil {
			cfg.clock = clock
		}
	}
}

// Open opens (creating when absent) the store file, applies pending
// migrations, and returns a ready store.
//
// A migration failure closes the handles and returns an error; callers must
// treat that as fatal for startup.
func Open(path string, options ...Option) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("open store: empty path")
	}

	cfg := config{
		path:         path,
		readPoolSize: defaultReadPoolSize,
		logger:       slog.Default(),
		clock:        time.Now,
	}
	for _, option := range options {
		option(&cfg)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("open store: create directory: %w", err)
	}

	writeDB, err := sql.Open("sqlite", writeDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open store: write handle: %w", err)
	}
	writeDB.SetMaxOpenConns(1)

	readDB, err := sql.Open("sqlite", readDSN(path))
	if err != nil {
		_ = writeDB.Close()
		return nil, fmt.Errorf("open store: read handle: %w", err)
	}
	readDB.SetMaxOpenConns(cfg.readPoolSize)
	readDB.SetMaxIdleConns(cfg.readPoolSize)

	s := &Store{
		cfg:     cfg,
		readDB:  readDB,
		writeDB: writeDB,
	}

	if err := s.migrate(context.Background()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}

	return s, nil
}

// writeDSN enables WAL, normal sync, an in-engine busy wait, and foreign keys.
func writeDSN(path string) string {
	return "file:" + path +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=foreign_keys(ON)"
}

// readDSN opens read-only connections; WAL is a database property and needs
// no pragma on the read side.
func readDSN(path string) string {
	return "file:" + path +
		"?mode=ro" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=foreign_keys(ON)"
}

// Close releases both handles. The store rejects operations afterwards.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	if s.closed.Swap(true) {
		return nil
	}

	var closeErr error
	if s.readDB != nil {
		if err := s.readDB.Close(); err != nil {
			closeErr = errors.Join(closeErr, fmt.Errorf("close read handle: %w", err))
		}
	}
	if s.writeDB != nil {
		if err := s.writeDB.Close(); err != nil {
			closeErr = errors.Join(closeErr, fmt.Errorf("close write handle: %w", err))
		}
	}
	if closeErr != nil {
		return fmt.Errorf("close store: %w", closeErr)
	}

	return nil
}

// now returns the injected clock's current UTC time.
func (s *Store) now() time.Time {
	return s.cfg.clock().UTC()
}

// withWrite runs fn inside one transaction on the serialized write handle,
// retrying the whole transaction on lock contention.
//
// fn sees a transaction that is rolled back on any error, so mutations are
// either fully applied or not applied at all.
func (s *Store) withWrite(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	if s.closed.Load() {
		return fmt.Errorf("%s: %w", op, drift.ErrStoreClosed)
	}

	attempt := func() error {
		tx, err := s.writeDB.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if err := fn(tx); err != nil {
			_ = tx.Rollback()
			return err
		}

		return tx.Commit()
	}

	return s.retryBusy(ctx, op, attempt)
}

// withRead runs fn on the read pool, retrying on lock contention.
func (s *Store) withRead(ctx context.Context, op string, fn func(db *sql.DB) error) error {
	if s.closed.Load() {
		return fmt.Errorf("%s: %w", op, drift.ErrStoreClosed)
	}

	return s.retryBusy(ctx, op, func() error { return fn(s.readDB) })
}

// retryBusy retries attempt with exponential backoff while the failure is
// SQLITE_BUSY/SQLITE_LOCKED, up to a small ceiling, then surfaces the
// contention as a storage fault. Non-contention errors return immediately.
func (s *Store) retryBusy(ctx context.Context, op string, attempt func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = busyInitialInterval
	policy.MaxInterval = busyMaxInterval
	policy.MaxElapsedTime = 0

	retries := 0
	err := backoff.Retry(func() error {
		err := attempt()
		if err == nil {
			return nil
		}
		if !isBusy(err) {
			return backoff.Permanent(err)
		}
		retries++
		s.cfg.logger.DebugContext(ctx, "store retrying on contention",
			"op", op, "retry", retries, "error", err)

		return err
	}, backoff.WithContext(backoff.WithMaxRetries(policy, busyMaxRetries), ctx))
	if err == nil {
		return nil
	}
	if isBusy(err) {
		return fmt.Errorf("%s: %w: %w", op, drift.ErrStorageContention, err)
	}

	return fmt.Errorf("%s: %w", op, err)
}

// isBusy reports whether err is SQLite lock contention.
func isBusy(err error) bool {
	if err == nil {
		return false
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		// Mask extended result codes down to the primary code.
		switch sqliteErr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
	}

	return false
}

// timeToDB renders a timestamp as the stored UTC RFC3339 string.
func timeToDB(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	return t.UTC().Format(time.RFC3339Nano)
}

// timeFromDB parses a stored timestamp, returning zero on empty or malformed input.
func timeFromDB(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	parsed, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}

	return parsed
}
