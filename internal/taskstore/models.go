package taskstore

import (
	"time"

	"redub/internal/api"
)

// Task is one locally tracked gateway task.
type Task struct {
	TaskID       string
	Status       api.Status
	ResultURL    string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Terminal reports whether the task has reached COMPLETED or FAILED.
func (t Task) Terminal() bool {
	return t.Status.Terminal()
}

// InFlight reports whether the task is still awaiting a terminal status.
func (t Task) InFlight() bool {
	return t.Status == api.StatusPending || t.Status == api.StatusProcessing
}
