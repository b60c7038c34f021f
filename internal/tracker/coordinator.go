package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"redub/internal/api"
	"redub/internal/config"
	"redub/internal/logging"
	"redub/internal/poller"
	"redub/internal/taskstore"
)

// Coordinator drives tracking for every registered task.
type Coordinator struct {
	store  *taskstore.Store
	source poller.Source
	engine *poller.Engine
	logger *slog.Logger

	mu     sync.Mutex
	subs   map[string][]*Subscription
	closed bool
}

// New wires a coordinator over the store and status source.
func New(cfg *config.Config, store *taskstore.Store, source poller.Source, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = logging.NewNop()
	}
	c := &Coordinator{
		store:  store,
		source: source,
		logger: logging.NewComponentLogger(logger, "tracker"),
		subs:   make(map[string][]*Subscription),
	}
	c.engine = poller.New(poller.Config{
		Source:          source,
		InitialInterval: cfg.PollInitialInterval(),
		MaxInterval:     cfg.PollMaxInterval(),
		Logger:          logger,
	})
	return c
}

// Register begins polling the task, recording it as PENDING when it
// is not yet in the store. A stored status is never rewritten here;
// only poll responses advance it. Returns false when the task is
// already terminal or already being tracked.
func (c *Coordinator) Register(ctx context.Context, taskID string) (bool, error) {
	if taskID == "" {
		return false, fmt.Errorf("register task: task id is empty")
	}

	existing, err := c.store.Get(ctx, taskID)
	if err != nil {
		c.logger.Warn("task lookup failed during register",
			logging.String(logging.FieldTaskID, taskID),
			logging.Error(err))
	}
	if existing != nil && existing.Terminal() {
		return false, nil
	}
	if existing == nil {
		if err := c.store.Upsert(ctx, taskstore.Task{TaskID: taskID, Status: api.StatusPending}); err != nil {
			return false, fmt.Errorf("register task %s: %w", taskID, err)
		}
	}

	started := c.engine.Start(taskID, func(status *api.TaskStatus, pollErr error) {
		c.handlePoll(taskID, status, pollErr)
	})
	if started {
		c.logger.Info("tracking task",
			logging.String(logging.FieldTaskID, taskID),
			logging.String(logging.FieldEventType, "tracking_started"))
	}
	return started, nil
}

// Resume restarts poll sessions for every stored in-flight task.
// Returns the number of sessions started.
func (c *Coordinator) Resume(ctx context.Context) int {
	resumed := 0
	for _, task := range c.store.List(ctx) {
		if !task.InFlight() {
			continue
		}
		started := c.engine.Start(task.TaskID, func(status *api.TaskStatus, pollErr error) {
			c.handlePoll(task.TaskID, status, pollErr)
		})
		if started {
			resumed++
		}
	}
	if resumed > 0 {
		c.logger.Info("resumed tracking",
			logging.Int("tasks", resumed),
			logging.String(logging.FieldEventType, "tracking_resumed"))
	}
	return resumed
}

// Subscribe returns a stream of tracking events for the task. A task
// already in a terminal state yields that event immediately and the
// stream closes.
func (c *Coordinator) Subscribe(ctx context.Context, taskID string) *Subscription {
	sub := newSubscription(taskID)

	stored, err := c.store.Get(ctx, taskID)
	if err != nil {
		c.logger.Warn("task lookup failed during subscribe",
			logging.String(logging.FieldTaskID, taskID),
			logging.Error(err))
	}
	if stored != nil && stored.Terminal() {
		sub.deliver(Event{Type: EventTerminal, Task: *stored})
		sub.close()
		return sub
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		sub.close()
		return sub
	}
	c.subs[taskID] = append(c.subs[taskID], sub)
	c.mu.Unlock()
	return sub
}

// Unsubscribe detaches the subscription and closes its channel.
func (c *Coordinator) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	c.mu.Lock()
	remaining := c.subs[sub.taskID][:0]
	for _, existing := range c.subs[sub.taskID] {
		if existing != sub {
			remaining = append(remaining, existing)
		}
	}
	if len(remaining) == 0 {
		delete(c.subs, sub.taskID)
	} else {
		c.subs[sub.taskID] = remaining
	}
	c.mu.Unlock()
	sub.close()
}

// Tasks returns the stored task snapshot, newest first.
func (c *Coordinator) Tasks(ctx context.Context) []taskstore.Task {
	return c.store.List(ctx)
}

// Refresh performs a one-shot status query for every stored in-flight
// task that has no active poll session, persisting what it learns.
// Returns the number of tasks whose records were refreshed.
func (c *Coordinator) Refresh(ctx context.Context) int {
	refreshed := 0
	for _, task := range c.store.List(ctx) {
		if !task.InFlight() || c.engine.Tracking(task.TaskID) {
			continue
		}
		status, err := c.source.TaskStatus(ctx, task.TaskID)
		if err != nil {
			c.logger.Warn("refresh query failed",
				logging.String(logging.FieldTaskID, task.TaskID),
				logging.Error(err))
			continue
		}
		if err := c.store.Upsert(ctx, taskFromStatus(status)); err != nil {
			c.logger.Warn("refresh persist failed",
				logging.String(logging.FieldTaskID, task.TaskID),
				logging.Error(err))
			continue
		}
		refreshed++
	}
	return refreshed
}

// Remove stops tracking the task and deletes its stored record.
func (c *Coordinator) Remove(ctx context.Context, taskID string) error {
	c.engine.Stop(taskID)
	c.closeSubscribers(taskID, nil)
	return c.store.Remove(ctx, taskID)
}

// Prune drops terminal tasks past the retention horizon.
func (c *Coordinator) Prune(ctx context.Context) (int64, error) {
	return c.store.Prune(ctx)
}

// Tracking reports whether the task has an active poll session.
func (c *Coordinator) Tracking(taskID string) bool {
	return c.engine.Tracking(taskID)
}

// ActiveSessions returns the number of tasks currently being polled.
func (c *Coordinator) ActiveSessions() int {
	return c.engine.ActiveCount()
}

// Close stops every poll session and closes all subscriptions.
func (c *Coordinator) Close() {
	c.engine.StopAll()

	c.mu.Lock()
	c.closed = true
	subs := c.subs
	c.subs = make(map[string][]*Subscription)
	c.mu.Unlock()

	for _, list := range subs {
		for _, sub := range list {
			sub.close()
		}
	}
}

func (c *Coordinator) handlePoll(taskID string, status *api.TaskStatus, pollErr error) {
	ctx := context.Background()

	if pollErr != nil {
		task := taskstore.Task{TaskID: taskID}
		if stored, err := c.store.Get(ctx, taskID); err == nil && stored != nil {
			task = *stored
		}
		c.logger.Warn("tracking lost",
			logging.String(logging.FieldTaskID, taskID),
			logging.String(logging.FieldEventType, "tracking_lost"),
			logging.String(logging.FieldErrorHint, "run 'redub tasks list --refresh' to re-query the gateway"),
			logging.Error(pollErr))
		c.closeSubscribers(taskID, &Event{Type: EventTrackingLost, Task: task, Err: pollErr})
		return
	}

	task := taskFromStatus(status)
	if err := c.store.Upsert(ctx, task); err != nil {
		// Tracking continues on a persist failure; the store is a
		// cache of gateway truth, not the source of it.
		c.logger.Warn("status persist failed",
			logging.String(logging.FieldTaskID, taskID),
			logging.Error(err))
	}
	if stored, err := c.store.Get(ctx, taskID); err == nil && stored != nil {
		task = *stored
	}

	if task.Terminal() {
		c.logger.Info("task finished",
			logging.String(logging.FieldTaskID, taskID),
			logging.String(logging.FieldStatus, string(task.Status)))
		c.closeSubscribers(taskID, &Event{Type: EventTerminal, Task: task})
		return
	}
	c.publish(taskID, Event{Type: EventStatus, Task: task})
}

// publish delivers under the coordinator lock; delivery never blocks,
// and holding the lock keeps a send from racing a channel close.
func (c *Coordinator) publish(taskID string, event Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, sub := range c.subs[taskID] {
		sub.deliver(event)
	}
}

// closeSubscribers delivers an optional final event and closes every
// subscription for the task.
func (c *Coordinator) closeSubscribers(taskID string, final *Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	subs := c.subs[taskID]
	delete(c.subs, taskID)

	for _, sub := range subs {
		if final != nil {
			sub.deliver(*final)
		}
		sub.close()
	}
}

func taskFromStatus(status *api.TaskStatus) taskstore.Task {
	return taskstore.Task{
		TaskID:       status.TaskID,
		Status:       status.Status,
		ResultURL:    status.ResultURL,
		ErrorMessage: status.ErrorMessage,
	}
}
