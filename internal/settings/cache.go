package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"redub/internal/logging"
)

const flagCacheTTL = time.Hour

// FlagCache remembers the gateway's is_configured answer between
// invocations. It only short-circuits the happy path; a miss, a stale
// entry, or an unreadable file all fall through to the gateway.
type FlagCache struct {
	path   string
	logger *slog.Logger
	ttl    time.Duration
}

type flagCacheEntry struct {
	Configured bool      `json:"is_configured"`
	CheckedAt  time.Time `json:"checked_at"`
}

// NewFlagCache creates a cache backed by the given file path.
func NewFlagCache(path string, logger *slog.Logger) *FlagCache {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &FlagCache{
		path:   path,
		logger: logging.NewComponentLogger(logger, "settings"),
		ttl:    flagCacheTTL,
	}
}

// Load returns the cached flag and whether it is usable.
func (c *FlagCache) Load() (bool, bool) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			c.logger.Warn("configured-flag cache unreadable", logging.Error(err))
		}
		return false, false
	}
	var entry flagCacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.logger.Warn("configured-flag cache corrupt, ignoring", logging.Error(err))
		return false, false
	}
	if time.Since(entry.CheckedAt) > c.ttl {
		return false, false
	}
	return entry.Configured, true
}

// Store writes the flag. Failures are logged and swallowed; the cache
// never blocks an operation.
func (c *FlagCache) Store(configured bool) {
	entry := flagCacheEntry{Configured: configured, CheckedAt: time.Now()}
	data, err := json.Marshal(entry)
	if err != nil {
		c.logger.Warn("configured-flag cache encode failed", logging.Error(err))
		return
	}
	if err := writeFileAtomic(c.path, data); err != nil {
		c.logger.Warn("configured-flag cache write failed", logging.Error(err))
	}
}

// Invalidate removes the cached flag.
func (c *FlagCache) Invalidate() {
	if err := os.Remove(c.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		c.logger.Warn("configured-flag cache remove failed", logging.Error(err))
	}
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write cache: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("commit cache: %w", err)
	}
	return nil
}
