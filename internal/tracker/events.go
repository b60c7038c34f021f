package tracker

import "redub/internal/taskstore"

// EventType distinguishes the tracking notifications.
type EventType string

const (
	// EventStatus reports a non-terminal status observation.
	EventStatus EventType = "status"
	// EventTerminal reports the task reaching COMPLETED or FAILED.
	// It is the last event on a subscription.
	EventTerminal EventType = "terminal"
	// EventTrackingLost reports that polling stopped without a
	// terminal status. The task itself may still be running on the
	// gateway; only this client's view of it ended.
	EventTrackingLost EventType = "tracking_lost"
)

// Event is one tracking notification. Task holds the stored record as
// of the event; Err is set only for EventTrackingLost.
type Event struct {
	Type EventType
	Task taskstore.Task
	Err  error
}
