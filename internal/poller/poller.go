package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"redub/internal/api"
	"redub/internal/logging"
)

// Source answers status queries for tracked tasks.
type Source interface {
	TaskStatus(ctx context.Context, taskID string) (*api.TaskStatus, error)
}

// Callback receives each poll result. Exactly one of status and err is
// non-nil. After a terminal status or an error the session is gone and
// no further calls arrive for that task.
type Callback func(status *api.TaskStatus, err error)

// Timer is the handle for a scheduled poll.
type Timer interface {
	Stop() bool
}

type scheduleFunc func(d time.Duration, fn func()) Timer

// Config carries the engine's collaborators and backoff bounds.
type Config struct {
	Source          Source
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Logger          *slog.Logger
}

// Engine owns one poll session per tracked task.
type Engine struct {
	source   Source
	initial  time.Duration
	max      time.Duration
	logger   *slog.Logger
	schedule scheduleFunc

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	taskID   string
	callback Callback
	interval time.Duration
	timer    Timer
	ctx      context.Context
	cancel   context.CancelFunc
}

// New constructs an engine. Zero intervals fall back to sane bounds.
func New(cfg Config) *Engine {
	initial := cfg.InitialInterval
	if initial <= 0 {
		initial = 3 * time.Second
	}
	max := cfg.MaxInterval
	if max < initial {
		max = initial
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{
		source:  cfg.Source,
		initial: initial,
		max:     max,
		logger:  logging.NewComponentLogger(logger, "poller"),
		schedule: func(d time.Duration, fn func()) Timer {
			return time.AfterFunc(d, fn)
		},
		sessions: make(map[string]*session),
	}
}

// Start begins polling the task. The first query fires immediately.
// Returns false when a session for the id already exists.
func (e *Engine) Start(taskID string, callback Callback) bool {
	if taskID == "" || callback == nil {
		return false
	}

	e.mu.Lock()
	if _, exists := e.sessions[taskID]; exists {
		e.mu.Unlock()
		return false
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		taskID:   taskID,
		callback: callback,
		interval: e.initial,
		ctx:      ctx,
		cancel:   cancel,
	}
	e.sessions[taskID] = s
	s.timer = e.schedule(0, func() { e.poll(s) })
	e.mu.Unlock()

	e.logger.Debug("poll session started", logging.String(logging.FieldTaskID, taskID))
	return true
}

// Stop cancels the task's session, including any in-flight query.
// Returns false when no session exists for the id.
func (e *Engine) Stop(taskID string) bool {
	e.mu.Lock()
	s, ok := e.sessions[taskID]
	if ok {
		delete(e.sessions, taskID)
	}
	e.mu.Unlock()
	if !ok {
		return false
	}

	s.cancel()
	if s.timer != nil {
		s.timer.Stop()
	}
	e.logger.Debug("poll session stopped", logging.String(logging.FieldTaskID, taskID))
	return true
}

// StopAll cancels every session.
func (e *Engine) StopAll() {
	e.mu.Lock()
	stopped := make([]*session, 0, len(e.sessions))
	for id, s := range e.sessions {
		stopped = append(stopped, s)
		delete(e.sessions, id)
	}
	e.mu.Unlock()

	for _, s := range stopped {
		s.cancel()
		if s.timer != nil {
			s.timer.Stop()
		}
	}
}

// Tracking reports whether the task has an active session.
func (e *Engine) Tracking(taskID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.sessions[taskID]
	return ok
}

// ActiveCount returns the number of live sessions.
func (e *Engine) ActiveCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sessions)
}

func (e *Engine) poll(s *session) {
	if !e.owns(s) {
		return
	}

	status, err := e.source.TaskStatus(s.ctx, s.taskID)
	if s.ctx.Err() != nil {
		// Stopped while the query was in flight.
		return
	}

	e.mu.Lock()
	if e.sessions[s.taskID] != s {
		e.mu.Unlock()
		return
	}

	switch {
	case err != nil:
		delete(e.sessions, s.taskID)
		e.mu.Unlock()
		s.cancel()
		e.logger.Warn("poll failed, releasing session",
			logging.String(logging.FieldTaskID, s.taskID),
			logging.Error(err))
		s.callback(nil, err)

	case status.Status.Terminal():
		delete(e.sessions, s.taskID)
		e.mu.Unlock()
		s.cancel()
		e.logger.Debug("poll session finished",
			logging.String(logging.FieldTaskID, s.taskID),
			logging.String(logging.FieldStatus, string(status.Status)))
		s.callback(status, nil)

	default:
		wait := s.interval
		if next := s.interval * 2; next <= e.max {
			s.interval = next
		} else {
			s.interval = e.max
		}
		e.mu.Unlock()
		// The next query is scheduled only after the callback
		// returns, so a task's responses are processed strictly in
		// sequence even when the callback is slow.
		s.callback(status, nil)

		e.mu.Lock()
		if e.sessions[s.taskID] == s {
			s.timer = e.schedule(wait, func() { e.poll(s) })
		}
		e.mu.Unlock()
	}
}

func (e *Engine) owns(s *session) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessions[s.taskID] == s
}
