package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Gateway contains the connection settings for the translation gateway.
type Gateway struct {
	URL            string `toml:"url"`
	RequestTimeout int    `toml:"request_timeout"`
	UploadTimeout  int    `toml:"upload_timeout"`
}

// Paths contains local directory configuration.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
}

// Upload contains client-side upload validation bounds.
type Upload struct {
	MaxSizeMiB int      `toml:"max_size_mib"`
	Extensions []string `toml:"extensions"`
}

// Tracking contains poll-backoff and local task store settings.
type Tracking struct {
	PollInitialIntervalMS int `toml:"poll_initial_interval_ms"`
	PollMaxIntervalMS     int `toml:"poll_max_interval_ms"`
	MaxStoredTasks        int `toml:"max_stored_tasks"`
	RetentionDays         int `toml:"retention_days"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for redub.
//
// Configuration sections by subsystem:
//   - Gateway: base URL and request timeouts for the translation gateway
//   - Paths: local state and log directories
//   - Upload: pre-flight validation bounds for video uploads
//   - Tracking: poll backoff intervals and task store retention
//   - Logging: log format and level
type Config struct {
	Gateway  Gateway  `toml:"gateway"`
	Paths    Paths    `toml:"paths"`
	Upload   Upload   `toml:"upload"`
	Tracking Tracking `toml:"tracking"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/redub/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("redub.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the local state and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// StorePath returns the task store database location.
func (c *Config) StorePath() string {
	return filepath.Join(c.Paths.StateDir, "tasks.db")
}

// LockPath returns the lock file guarding the task store.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "redub.lock")
}

// ConfiguredCachePath returns the advisory configured-flag cache location.
func (c *Config) ConfiguredCachePath() string {
	return filepath.Join(c.Paths.StateDir, "configured.json")
}

// RequestTimeout returns the per-request gateway timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Gateway.RequestTimeout) * time.Second
}

// UploadTimeout returns the upload request timeout.
func (c *Config) UploadTimeout() time.Duration {
	return time.Duration(c.Gateway.UploadTimeout) * time.Second
}

// PollInitialInterval returns the first poll backoff interval.
func (c *Config) PollInitialInterval() time.Duration {
	return time.Duration(c.Tracking.PollInitialIntervalMS) * time.Millisecond
}

// PollMaxInterval returns the poll backoff cap.
func (c *Config) PollMaxInterval() time.Duration {
	return time.Duration(c.Tracking.PollMaxIntervalMS) * time.Millisecond
}

// Retention returns the task store retention horizon.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.Tracking.RetentionDays) * 24 * time.Hour
}

// MaxUploadBytes returns the upload size bound in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Upload.MaxSizeMiB) * 1024 * 1024
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
