package taskstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"redub/internal/api"
	"redub/internal/logging"
)

const taskColumns = "task_id, status, result_url, error_message, created_at, updated_at"

// List returns a snapshot of all tracked tasks ordered by creation time
// descending. Read failures degrade to an empty list with a logged
// diagnostic; callers never see storage corruption.
func (s *Store) List(ctx context.Context) []Task {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, "SELECT "+taskColumns+" FROM tasks ORDER BY created_at DESC, task_id ASC")
	if err != nil {
		s.logger.Warn("task list unavailable",
			logging.String(logging.FieldEventType, "taskstore_list_failed"),
			logging.Error(err))
		return nil
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			s.logger.Warn("skipping unreadable task row",
				logging.String(logging.FieldEventType, "taskstore_row_skipped"),
				logging.Error(err))
			continue
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		s.logger.Warn("task list truncated",
			logging.String(logging.FieldEventType, "taskstore_list_failed"),
			logging.Error(err))
	}
	return tasks
}

// Get returns the task with the given id, or nil when absent.
func (s *Store) Get(ctx context.Context, taskID string) (*Task, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, "SELECT "+taskColumns+" FROM tasks WHERE task_id = ?", taskID)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get task %s: %w", taskID, err)
	}
	return &task, nil
}

// Upsert inserts the task if its id is absent, otherwise merges the
// supplied fields into the existing record and refreshes updated_at.
// Inserting beyond the store's capacity evicts the oldest retained
// tasks, preferring terminal ones.
func (s *Store) Upsert(ctx context.Context, task Task) error {
	taskID := strings.TrimSpace(task.TaskID)
	if taskID == "" {
		return errors.New("upsert task: task id is empty")
	}
	if !task.Status.Valid() {
		return fmt.Errorf("upsert task %s: invalid status %q", taskID, task.Status)
	}

	now := time.Now()
	createdAt := task.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	_, err := s.execWithRetry(ensureContext(ctx),
		`INSERT INTO tasks (task_id, status, result_url, error_message, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT(task_id) DO UPDATE SET
             status        = excluded.status,
             result_url    = CASE WHEN excluded.result_url != '' THEN excluded.result_url ELSE result_url END,
             error_message = CASE WHEN excluded.error_message != '' THEN excluded.error_message ELSE error_message END,
             updated_at    = excluded.updated_at`,
		taskID,
		string(task.Status),
		task.ResultURL,
		task.ErrorMessage,
		createdAt.UnixMilli(),
		now.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("upsert task %s: %w", taskID, err)
	}

	return s.enforceCapacity(ctx)
}

// Remove deletes the task by id; removing an absent id is a no-op.
func (s *Store) Remove(ctx context.Context, taskID string) error {
	_, err := s.execWithRetry(ensureContext(ctx), "DELETE FROM tasks WHERE task_id = ?", taskID)
	if err != nil {
		return fmt.Errorf("remove task %s: %w", taskID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (Task, error) {
	var (
		task      Task
		status    string
		createdAt int64
		updatedAt int64
	)
	if err := row.Scan(&task.TaskID, &status, &task.ResultURL, &task.ErrorMessage, &createdAt, &updatedAt); err != nil {
		return Task{}, err
	}
	task.Status = api.Status(status)
	task.CreatedAt = time.UnixMilli(createdAt)
	task.UpdatedAt = time.UnixMilli(updatedAt)
	return task, nil
}
