package taskstore

import (
	"context"
	"fmt"
	"time"

	"redub/internal/api"
	"redub/internal/logging"
)

// Count returns the number of retained tasks.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ensureContext(ctx), "SELECT COUNT(*) FROM tasks").Scan(&count); err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}
	return count, nil
}

// Prune removes terminal tasks older than the retention horizon.
// PENDING and PROCESSING tasks are never evicted by age.
func (s *Store) Prune(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-s.retention).UnixMilli()
	res, err := s.execWithRetry(ensureContext(ctx),
		"DELETE FROM tasks WHERE created_at < ? AND status NOT IN (?, ?)",
		cutoff, string(api.StatusPending), string(api.StatusProcessing))
	if err != nil {
		return 0, fmt.Errorf("prune tasks: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune tasks: rows affected: %w", err)
	}
	if removed > 0 {
		s.logger.Info("pruned expired tasks", logging.Int64("removed", removed))
	}
	return removed, nil
}

// enforceCapacity drops the oldest tasks beyond the capacity bound,
// preferring terminal tasks for eviction.
func (s *Store) enforceCapacity(ctx context.Context) error {
	ctx = ensureContext(ctx)
	count, err := s.Count(ctx)
	if err != nil {
		return err
	}
	overflow := count - s.capacity
	if overflow <= 0 {
		return nil
	}

	res, err := s.execWithRetry(ctx,
		`DELETE FROM tasks WHERE task_id IN (
            SELECT task_id FROM tasks WHERE status IN (?, ?)
            ORDER BY created_at ASC, task_id ASC LIMIT ?)`,
		string(api.StatusCompleted), string(api.StatusFailed), overflow)
	if err != nil {
		return fmt.Errorf("evict terminal tasks: %w", err)
	}
	evicted, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("evict terminal tasks: rows affected: %w", err)
	}

	if remaining := overflow - int(evicted); remaining > 0 {
		if _, err := s.execWithRetry(ctx,
			`DELETE FROM tasks WHERE task_id IN (
                SELECT task_id FROM tasks
                ORDER BY created_at ASC, task_id ASC LIMIT ?)`,
			remaining); err != nil {
			return fmt.Errorf("evict oldest tasks: %w", err)
		}
	}

	s.logger.Debug("capacity eviction", logging.Int("overflow", overflow))
	return nil
}
