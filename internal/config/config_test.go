package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"redub/internal/config"
)

func TestDefaultValidates(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.PollInitialInterval() != 3*time.Second {
		t.Fatalf("unexpected initial interval: %v", cfg.PollInitialInterval())
	}
	if cfg.PollMaxInterval() != 10*time.Second {
		t.Fatalf("unexpected max interval: %v", cfg.PollMaxInterval())
	}
	if cfg.Tracking.MaxStoredTasks != 50 {
		t.Fatalf("unexpected capacity: %d", cfg.Tracking.MaxStoredTasks)
	}
	if cfg.Retention() != 7*24*time.Hour {
		t.Fatalf("unexpected retention: %v", cfg.Retention())
	}
}

func TestLoadAppliesOverridesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[gateway]
url = "https://translate.example.com/"

[paths]
state_dir = "` + filepath.Join(dir, "state") + `"
log_dir = "` + filepath.Join(dir, "logs") + `"

[upload]
extensions = ["MP4", ".mkv"]

[tracking]
retention_days = 3
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected existing config at %s, got %s exists=%v", path, resolved, exists)
	}
	if cfg.Gateway.URL != "https://translate.example.com" {
		t.Fatalf("trailing slash not trimmed: %q", cfg.Gateway.URL)
	}
	if got := cfg.Upload.Extensions; len(got) != 2 || got[0] != ".mp4" || got[1] != ".mkv" {
		t.Fatalf("extensions not normalized: %v", got)
	}
	if cfg.Tracking.RetentionDays != 3 {
		t.Fatalf("retention override lost: %d", cfg.Tracking.RetentionDays)
	}
	// Unset sections keep defaults.
	if cfg.Tracking.PollInitialIntervalMS != 3000 {
		t.Fatalf("poll interval default lost: %d", cfg.Tracking.PollInitialIntervalMS)
	}
	if !strings.HasSuffix(cfg.StorePath(), "tasks.db") {
		t.Fatalf("unexpected store path: %s", cfg.StorePath())
	}
}

func TestLoadRejectsBadGatewayURL(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[gateway]\nurl = \"ftp://example.com\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected validation error for ftp scheme")
	}
}

func TestLoadRejectsInvertedIntervals(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := "[tracking]\npoll_initial_interval_ms = 20000\npoll_max_interval_ms = 10000\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected validation error for initial > max")
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("sample config should exist")
	}
	defaults := config.Default()
	if cfg.Gateway.URL != defaults.Gateway.URL {
		t.Fatalf("sample gateway url %q differs from default %q", cfg.Gateway.URL, defaults.Gateway.URL)
	}
	if cfg.Tracking != defaults.Tracking {
		t.Fatalf("sample tracking %+v differs from default %+v", cfg.Tracking, defaults.Tracking)
	}
}
