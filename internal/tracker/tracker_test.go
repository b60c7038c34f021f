package tracker_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"redub/internal/api"
	"redub/internal/config"
	"redub/internal/gateway"
	"redub/internal/logging"
	"redub/internal/taskstore"
	"redub/internal/testsupport"
	"redub/internal/tracker"
)

const eventTimeout = 5 * time.Second

type fixture struct {
	cfg         *config.Config
	fakeGateway *testsupport.FakeGateway
	store       *taskstore.Store
	coordinator *tracker.Coordinator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	fg := testsupport.NewFakeGateway(t)
	cfg := testsupport.NewConfig(t,
		testsupport.WithGatewayURL(fg.URL()),
		testsupport.WithPollIntervals(5, 20),
	)
	store := testsupport.MustOpenStore(t, cfg)

	client, err := gateway.New(gateway.Config{BaseURL: fg.URL()})
	if err != nil {
		t.Fatalf("gateway.New: %v", err)
	}
	coordinator := tracker.New(cfg, store, client, logging.NewNop())
	t.Cleanup(coordinator.Close)

	return &fixture{cfg: cfg, fakeGateway: fg, store: store, coordinator: coordinator}
}

func recvEvent(t *testing.T, sub *tracker.Subscription) (tracker.Event, bool) {
	t.Helper()
	select {
	case event, ok := <-sub.Events():
		return event, ok
	case <-time.After(eventTimeout):
		t.Fatal("timed out waiting for tracking event")
		return tracker.Event{}, false
	}
}

func TestTrackToCompletionPersistsBeforeNotifying(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	fx.fakeGateway.ScriptStatuses("task-1",
		api.TaskStatus{Status: api.StatusPending},
		api.TaskStatus{Status: api.StatusProcessing},
		api.TaskStatus{Status: api.StatusCompleted, ResultURL: "/v1/tasks/download/task-1/result.mp4"},
	)

	sub := fx.coordinator.Subscribe(ctx, "task-1")
	started, err := fx.coordinator.Register(ctx, "task-1")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if !started {
		t.Fatal("register reported the task as already tracked")
	}

	var last tracker.Event
	for {
		event, ok := recvEvent(t, sub)
		if !ok {
			break
		}
		last = event

		// Every notification must already be on disk.
		stored, err := fx.store.Get(ctx, "task-1")
		if err != nil {
			t.Fatalf("store.Get: %v", err)
		}
		if stored == nil {
			t.Fatal("event delivered before the task was persisted")
		}
		if stored.Status != event.Task.Status {
			t.Fatalf("stored status %s lags event status %s", stored.Status, event.Task.Status)
		}
	}

	if last.Type != tracker.EventTerminal {
		t.Fatalf("final event type %s, want terminal", last.Type)
	}
	if last.Task.Status != api.StatusCompleted {
		t.Fatalf("final status %s, want COMPLETED", last.Task.Status)
	}
	if last.Task.ResultURL == "" {
		t.Fatal("terminal event lost the result url")
	}
	if fx.coordinator.Tracking("task-1") {
		t.Fatal("completed task still has a poll session")
	}
}

func TestFailedTaskIsTerminalNotLost(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	fx.fakeGateway.ScriptStatuses("task-1",
		api.TaskStatus{Status: api.StatusFailed, ErrorMessage: "voice cloning provider rejected the audio"},
	)

	sub := fx.coordinator.Subscribe(ctx, "task-1")
	if _, err := fx.coordinator.Register(ctx, "task-1"); err != nil {
		t.Fatalf("register: %v", err)
	}

	event, ok := recvEvent(t, sub)
	if !ok {
		t.Fatal("subscription closed without an event")
	}
	if event.Type != tracker.EventTerminal {
		t.Fatalf("event type %s, want terminal", event.Type)
	}
	if event.Task.Status != api.StatusFailed {
		t.Fatalf("status %s, want FAILED", event.Task.Status)
	}
	if event.Task.ErrorMessage == "" {
		t.Fatal("failure event lost the gateway error message")
	}
	if _, ok := recvEvent(t, sub); ok {
		t.Fatal("terminal event was not the last event")
	}
}

func TestPollFailureSurfacesTrackingLost(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	fx.fakeGateway.FailStatus("task-1", http.StatusServiceUnavailable)

	sub := fx.coordinator.Subscribe(ctx, "task-1")
	if _, err := fx.coordinator.Register(ctx, "task-1"); err != nil {
		t.Fatalf("register: %v", err)
	}

	event, ok := recvEvent(t, sub)
	if !ok {
		t.Fatal("subscription closed without an event")
	}
	if event.Type != tracker.EventTrackingLost {
		t.Fatalf("event type %s, want tracking_lost", event.Type)
	}
	if event.Err == nil {
		t.Fatal("tracking-lost event carries no error")
	}

	// The stored record keeps its last known status; losing the
	// poll session is not a task failure.
	stored, err := fx.store.Get(ctx, "task-1")
	if err != nil {
		t.Fatalf("store.Get: %v", err)
	}
	if stored == nil || stored.Status != api.StatusPending {
		t.Fatalf("stored record = %+v, want retained PENDING", stored)
	}
	if fx.coordinator.Tracking("task-1") {
		t.Fatal("lost task still has a poll session")
	}
}

func TestRegisterKeepsStoredStatusOnPollFailure(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	// The last poll response reported PROCESSING; the gateway is now
	// unreachable. Re-registering must not rewind the record to
	// PENDING, since no poll response ever reported that.
	testsupport.SeedTask(t, fx.store, "task-1", api.StatusProcessing, time.Hour)
	fx.fakeGateway.FailStatus("task-1", http.StatusServiceUnavailable)

	sub := fx.coordinator.Subscribe(ctx, "task-1")
	started, err := fx.coordinator.Register(ctx, "task-1")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if !started {
		t.Fatal("register did not start a session for an in-flight task")
	}

	event, ok := recvEvent(t, sub)
	if !ok || event.Type != tracker.EventTrackingLost {
		t.Fatalf("expected tracking-lost, got (%+v, %v)", event, ok)
	}

	stored, err := fx.store.Get(ctx, "task-1")
	if err != nil {
		t.Fatalf("store.Get: %v", err)
	}
	if stored == nil || stored.Status != api.StatusProcessing {
		t.Fatalf("stored status regressed: %+v, want retained PROCESSING", stored)
	}
}

func TestResumeRestartsOnlyInFlightTasks(t *testing.T) {
	fx := newFixture(t)

	testsupport.SeedTask(t, fx.store, "pending", api.StatusPending, time.Hour)
	testsupport.SeedTask(t, fx.store, "processing", api.StatusProcessing, time.Hour)
	testsupport.SeedTask(t, fx.store, "completed", api.StatusCompleted, time.Hour)
	testsupport.SeedTask(t, fx.store, "failed", api.StatusFailed, time.Hour)

	fx.fakeGateway.ScriptStatuses("pending", api.TaskStatus{Status: api.StatusCompleted})
	fx.fakeGateway.ScriptStatuses("processing", api.TaskStatus{Status: api.StatusCompleted})

	if resumed := fx.coordinator.Resume(context.Background()); resumed != 2 {
		t.Fatalf("resumed %d sessions, want 2", resumed)
	}
}

func TestSubscribeToTerminalTaskClosesImmediately(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	if err := fx.store.Upsert(ctx, taskstore.Task{
		TaskID:    "done",
		Status:    api.StatusCompleted,
		ResultURL: "/v1/tasks/download/done/result.mp4",
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	sub := fx.coordinator.Subscribe(ctx, "done")
	event, ok := recvEvent(t, sub)
	if !ok {
		t.Fatal("expected an immediate terminal event")
	}
	if event.Type != tracker.EventTerminal || event.Task.Status != api.StatusCompleted {
		t.Fatalf("event = %+v, want terminal COMPLETED", event)
	}
	if _, ok := recvEvent(t, sub); ok {
		t.Fatal("subscription stayed open after the terminal event")
	}
}

func TestRemoveStopsTrackingAndDeletes(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	fx.fakeGateway.ScriptStatuses("task-1",
		api.TaskStatus{Status: api.StatusPending},
		api.TaskStatus{Status: api.StatusPending},
		api.TaskStatus{Status: api.StatusPending},
	)
	if _, err := fx.coordinator.Register(ctx, "task-1"); err != nil {
		t.Fatalf("register: %v", err)
	}
	for fx.fakeGateway.PollCount("task-1") == 0 {
		time.Sleep(time.Millisecond)
	}

	if err := fx.coordinator.Remove(ctx, "task-1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if fx.coordinator.Tracking("task-1") {
		t.Fatal("removed task still has a poll session")
	}
	stored, err := fx.store.Get(ctx, "task-1")
	if err != nil {
		t.Fatalf("store.Get: %v", err)
	}
	if stored != nil {
		t.Fatal("removed task still stored")
	}
}

func TestRefreshUpdatesUntrackedInFlightTasks(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	testsupport.SeedTask(t, fx.store, "stale", api.StatusProcessing, time.Hour)
	fx.fakeGateway.ScriptStatuses("stale",
		api.TaskStatus{Status: api.StatusCompleted, ResultURL: "/v1/tasks/download/stale/result.mp4"},
	)

	if refreshed := fx.coordinator.Refresh(ctx); refreshed != 1 {
		t.Fatalf("refreshed %d tasks, want 1", refreshed)
	}
	stored, err := fx.store.Get(ctx, "stale")
	if err != nil {
		t.Fatalf("store.Get: %v", err)
	}
	if stored == nil || stored.Status != api.StatusCompleted {
		t.Fatalf("stored record = %+v, want COMPLETED", stored)
	}
}

func TestCloseStopsSessionsAndSubscriptions(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	fx.fakeGateway.ScriptStatuses("task-1",
		api.TaskStatus{Status: api.StatusPending},
		api.TaskStatus{Status: api.StatusPending},
	)
	sub := fx.coordinator.Subscribe(ctx, "task-1")
	if _, err := fx.coordinator.Register(ctx, "task-1"); err != nil {
		t.Fatalf("register: %v", err)
	}

	fx.coordinator.Close()

	if fx.coordinator.ActiveSessions() != 0 {
		t.Fatalf("expected 0 sessions after close, got %d", fx.coordinator.ActiveSessions())
	}
	deadline := time.After(eventTimeout)
	for {
		select {
		case _, ok := <-sub.Events():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("subscription not closed by coordinator shutdown")
		}
	}
}
