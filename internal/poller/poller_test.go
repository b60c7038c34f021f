package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"redub/internal/api"
)

type fakeTimer struct {
	mu      sync.Mutex
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	was := t.stopped
	t.stopped = true
	return !was
}

type scheduledPoll struct {
	delay time.Duration
	fn    func()
	timer *fakeTimer
}

// fakeClock records scheduled polls so tests drive time explicitly.
type fakeClock struct {
	mu      sync.Mutex
	pending []*scheduledPoll
	delays  []time.Duration
}

func (c *fakeClock) schedule(d time.Duration, fn func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry := &scheduledPoll{delay: d, fn: fn, timer: &fakeTimer{}}
	c.pending = append(c.pending, entry)
	c.delays = append(c.delays, d)
	return entry.timer
}

func (c *fakeClock) fireNext(t *testing.T) {
	t.Helper()
	c.mu.Lock()
	if len(c.pending) == 0 {
		c.mu.Unlock()
		t.Fatal("no scheduled poll to fire")
	}
	entry := c.pending[0]
	c.pending = c.pending[1:]
	c.mu.Unlock()
	entry.fn()
}

func (c *fakeClock) pendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

type pollResult struct {
	status *api.TaskStatus
	err    error
}

// scriptedSource replays a fixed sequence of status answers.
type scriptedSource struct {
	mu      sync.Mutex
	results []pollResult
	calls   int
	gate    chan struct{}
}

func (s *scriptedSource) TaskStatus(ctx context.Context, taskID string) (*api.TaskStatus, error) {
	s.mu.Lock()
	s.calls++
	var result pollResult
	if len(s.results) > 0 {
		result = s.results[0]
		s.results = s.results[1:]
	} else {
		result = pollResult{err: errors.New("script exhausted")}
	}
	gate := s.gate
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if result.status != nil {
		copied := *result.status
		copied.TaskID = taskID
		return &copied, result.err
	}
	return nil, result.err
}

func (s *scriptedSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type recorder struct {
	mu       sync.Mutex
	statuses []api.Status
	errs     []error
}

func (r *recorder) callback(status *api.TaskStatus, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if status != nil {
		r.statuses = append(r.statuses, status.Status)
	}
	if err != nil {
		r.errs = append(r.errs, err)
	}
}

func newTestEngine(source Source, clock *fakeClock) *Engine {
	engine := New(Config{
		Source:          source,
		InitialInterval: 3 * time.Second,
		MaxInterval:     10 * time.Second,
	})
	engine.schedule = clock.schedule
	return engine
}

func TestBackoffDoublesUpToCeiling(t *testing.T) {
	source := &scriptedSource{results: []pollResult{
		{status: &api.TaskStatus{Status: api.StatusPending}},
		{status: &api.TaskStatus{Status: api.StatusProcessing}},
		{status: &api.TaskStatus{Status: api.StatusProcessing}},
		{status: &api.TaskStatus{Status: api.StatusProcessing}},
		{status: &api.TaskStatus{Status: api.StatusCompleted}},
	}}
	clock := &fakeClock{}
	engine := newTestEngine(source, clock)
	rec := &recorder{}

	if !engine.Start("task-1", rec.callback) {
		t.Fatal("start returned false")
	}
	for i := 0; i < 5; i++ {
		clock.fireNext(t)
	}

	want := []time.Duration{0, 3 * time.Second, 6 * time.Second, 10 * time.Second, 10 * time.Second}
	if len(clock.delays) != len(want) {
		t.Fatalf("scheduled %d polls, want %d (%v)", len(clock.delays), len(want), clock.delays)
	}
	for i, d := range want {
		if clock.delays[i] != d {
			t.Fatalf("poll %d scheduled after %v, want %v", i, clock.delays[i], d)
		}
	}
	if clock.pendingCount() != 0 {
		t.Fatal("terminal status left a poll scheduled")
	}
	if engine.ActiveCount() != 0 {
		t.Fatal("terminal status left the session registered")
	}
	if last := rec.statuses[len(rec.statuses)-1]; last != api.StatusCompleted {
		t.Fatalf("last callback status %s, want COMPLETED", last)
	}
}

func TestSessionReleasedBeforeTerminalCallback(t *testing.T) {
	source := &scriptedSource{results: []pollResult{
		{status: &api.TaskStatus{Status: api.StatusCompleted}},
	}}
	clock := &fakeClock{}
	engine := newTestEngine(source, clock)

	sawActive := -1
	engine.Start("task-1", func(status *api.TaskStatus, err error) {
		sawActive = engine.ActiveCount()
	})
	clock.fireNext(t)

	if sawActive != 0 {
		t.Fatalf("callback observed %d active sessions, want 0", sawActive)
	}
}

func TestNextPollWaitsForCallbackReturn(t *testing.T) {
	source := &scriptedSource{results: []pollResult{
		{status: &api.TaskStatus{Status: api.StatusPending}},
		{status: &api.TaskStatus{Status: api.StatusProcessing}},
	}}
	clock := &fakeClock{}
	engine := newTestEngine(source, clock)

	// While a result is still being processed, its successor query
	// must not even be schedulable.
	scheduledDuringCallback := -1
	engine.Start("task-1", func(status *api.TaskStatus, err error) {
		scheduledDuringCallback = clock.pendingCount()
	})
	clock.fireNext(t)

	if scheduledDuringCallback != 0 {
		t.Fatalf("%d poll(s) scheduled before the callback returned, want 0", scheduledDuringCallback)
	}
	if clock.pendingCount() != 1 {
		t.Fatalf("%d poll(s) scheduled after the callback, want 1", clock.pendingCount())
	}
	if source.callCount() != 1 {
		t.Fatalf("source queried %d times while processing poll 1, want 1", source.callCount())
	}
}

func TestStopInsideCallbackPreventsReschedule(t *testing.T) {
	source := &scriptedSource{results: []pollResult{
		{status: &api.TaskStatus{Status: api.StatusPending}},
	}}
	clock := &fakeClock{}
	engine := newTestEngine(source, clock)

	engine.Start("task-1", func(status *api.TaskStatus, err error) {
		engine.Stop("task-1")
	})
	clock.fireNext(t)

	if clock.pendingCount() != 0 {
		t.Fatal("poll rescheduled after the callback stopped the session")
	}
	if engine.ActiveCount() != 0 {
		t.Fatal("session survived a stop from its own callback")
	}
}

func TestStartIsIdempotentPerTask(t *testing.T) {
	source := &scriptedSource{results: []pollResult{
		{status: &api.TaskStatus{Status: api.StatusPending}},
	}}
	clock := &fakeClock{}
	engine := newTestEngine(source, clock)
	rec := &recorder{}

	if !engine.Start("task-1", rec.callback) {
		t.Fatal("first start returned false")
	}
	if engine.Start("task-1", rec.callback) {
		t.Fatal("second start for the same task returned true")
	}
	if engine.ActiveCount() != 1 {
		t.Fatalf("expected 1 session, got %d", engine.ActiveCount())
	}
	if clock.pendingCount() != 1 {
		t.Fatalf("expected 1 scheduled poll, got %d", clock.pendingCount())
	}
}

func TestStopCancelsPendingPoll(t *testing.T) {
	source := &scriptedSource{results: []pollResult{
		{status: &api.TaskStatus{Status: api.StatusPending}},
	}}
	clock := &fakeClock{}
	engine := newTestEngine(source, clock)
	rec := &recorder{}

	engine.Start("task-1", rec.callback)
	clock.fireNext(t)

	if !engine.Stop("task-1") {
		t.Fatal("stop returned false for a tracked task")
	}
	if engine.ActiveCount() != 0 {
		t.Fatal("stop left the session registered")
	}

	// A stale timer firing after Stop must not reach the source.
	before := source.callCount()
	clock.fireNext(t)
	if source.callCount() != before {
		t.Fatal("stale timer queried the source after stop")
	}
	if engine.Stop("task-1") {
		t.Fatal("stop returned true for an untracked task")
	}
}

func TestStopSuppressesInFlightCallback(t *testing.T) {
	gate := make(chan struct{})
	source := &scriptedSource{
		gate: gate,
		results: []pollResult{
			{status: &api.TaskStatus{Status: api.StatusProcessing}},
		},
	}
	clock := &fakeClock{}
	engine := newTestEngine(source, clock)
	rec := &recorder{}

	engine.Start("task-1", rec.callback)

	done := make(chan struct{})
	go func() {
		defer close(done)
		clock.fireNext(t)
	}()

	for source.callCount() == 0 {
		time.Sleep(time.Millisecond)
	}
	engine.Stop("task-1")
	close(gate)
	<-done

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.statuses) != 0 || len(rec.errs) != 0 {
		t.Fatalf("callback fired after stop: statuses=%v errs=%v", rec.statuses, rec.errs)
	}
}

func TestPollFailureReleasesSession(t *testing.T) {
	pollErr := errors.New("gateway unreachable")
	source := &scriptedSource{results: []pollResult{{err: pollErr}}}
	clock := &fakeClock{}
	engine := newTestEngine(source, clock)
	rec := &recorder{}

	engine.Start("task-1", rec.callback)
	clock.fireNext(t)

	if engine.ActiveCount() != 0 {
		t.Fatal("failed poll left the session registered")
	}
	if clock.pendingCount() != 0 {
		t.Fatal("failed poll left a retry scheduled")
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.errs) != 1 || !errors.Is(rec.errs[0], pollErr) {
		t.Fatalf("expected the poll error in the callback, got %v", rec.errs)
	}
}

func TestStopAllReleasesEverySession(t *testing.T) {
	source := &scriptedSource{results: []pollResult{
		{status: &api.TaskStatus{Status: api.StatusPending}},
		{status: &api.TaskStatus{Status: api.StatusPending}},
	}}
	clock := &fakeClock{}
	engine := newTestEngine(source, clock)
	rec := &recorder{}

	engine.Start("task-1", rec.callback)
	engine.Start("task-2", rec.callback)
	if engine.ActiveCount() != 2 {
		t.Fatalf("expected 2 sessions, got %d", engine.ActiveCount())
	}

	engine.StopAll()
	if engine.ActiveCount() != 0 {
		t.Fatalf("expected 0 sessions after StopAll, got %d", engine.ActiveCount())
	}
}
