package taskstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"redub/internal/config"
	"redub/internal/logging"
)

// Store manages task persistence backed by SQLite.
type Store struct {
	db        *sql.DB
	path      string
	lock      *flock.Flock
	logger    *slog.Logger
	capacity  int
	retention time.Duration
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond

	lockAcquireTimeout = 10 * time.Second
	lockRetryDelay     = 100 * time.Millisecond
)

// Open initializes or connects to the task database. The store holds an
// exclusive lock file for its lifetime so concurrent redub invocations
// never interleave mutations. A database that fails the integrity check
// is moved aside and recreated empty.
func Open(cfg *config.Config, logger *slog.Logger) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	logger = logging.NewComponentLogger(logger, "taskstore")

	lock := flock.New(cfg.LockPath())
	lockCtx, cancel := context.WithTimeout(context.Background(), lockAcquireTimeout)
	defer cancel()
	locked, err := lock.TryLockContext(lockCtx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("acquire store lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("acquire store lock: %s is held by another redub instance", cfg.LockPath())
	}

	dbPath := cfg.StorePath()
	db, err := openDatabase(dbPath)
	if err != nil {
		// Corrupt stored data degrades to an empty store instead of
		// failing the command.
		logger.Warn("task store unusable, recreating empty",
			logging.String(logging.FieldEventType, "taskstore_recovered"),
			logging.Error(err),
			logging.String(logging.FieldImpact, "previously tracked tasks were discarded"))
		db, err = recreateDatabase(dbPath)
		if err != nil {
			_ = lock.Unlock()
			return nil, err
		}
	}

	return &Store{
		db:        db,
		path:      dbPath,
		lock:      lock,
		logger:    logger,
		capacity:  cfg.Tracking.MaxStoredTasks,
		retention: cfg.Retention(),
	}, nil
}

func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func recreateDatabase(dbPath string) (*sql.DB, error) {
	backup := fmt.Sprintf("%s.corrupt-%d", dbPath, time.Now().Unix())
	if err := os.Rename(dbPath, backup); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("move corrupt db aside: %w", err)
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		_ = os.Remove(dbPath + suffix)
	}
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("recreate task db: %w", err)
	}
	return db, nil
}

// Close releases the database connection and the store lock.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	var closeErr error
	if s.db != nil {
		closeErr = s.db.Close()
	}
	if s.lock != nil {
		if err := s.lock.Unlock(); err != nil && closeErr == nil {
			closeErr = err
		}
	}
	return closeErr
}

// Capacity returns the maximum number of retained tasks.
func (s *Store) Capacity() int {
	return s.capacity
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}
