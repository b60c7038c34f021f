package testsupport

import (
	"path/filepath"
	"testing"

	"redub/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per
// test. It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Gateway.URL = "http://127.0.0.1:0"

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithGatewayURL points the test config at the provided gateway.
func WithGatewayURL(url string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Gateway.URL = url
	}
}

// WithCapacity bounds the task store to n tasks.
func WithCapacity(n int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Tracking.MaxStoredTasks = n
	}
}

// WithPollIntervals sets the poll backoff bounds in milliseconds.
func WithPollIntervals(initialMS, maxMS int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Tracking.PollInitialIntervalMS = initialMS
		cfg.Tracking.PollMaxIntervalMS = maxMS
	}
}

// WithRetentionDays sets the task store retention horizon.
func WithRetentionDays(days int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Tracking.RetentionDays = days
	}
}
