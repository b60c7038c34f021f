package testsupport

import (
	"context"
	"testing"
	"time"

	"redub/internal/api"
	"redub/internal/config"
	"redub/internal/logging"
	"redub/internal/taskstore"
)

// MustOpenStore opens a taskstore.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *taskstore.Store {
	t.Helper()

	store, err := taskstore.Open(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("taskstore.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// SeedTask upserts a task with the given id, status, and age for tests.
func SeedTask(t testing.TB, store *taskstore.Store, taskID string, status api.Status, age time.Duration) {
	t.Helper()

	task := taskstore.Task{
		TaskID:    taskID,
		Status:    status,
		CreatedAt: time.Now().Add(-age),
	}
	if err := store.Upsert(context.Background(), task); err != nil {
		t.Fatalf("store.Upsert(%s): %v", taskID, err)
	}
}
