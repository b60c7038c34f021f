package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeGateway()
	c.normalizeUpload()
	c.normalizeTracking()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeGateway() {
	c.Gateway.URL = strings.TrimRight(strings.TrimSpace(c.Gateway.URL), "/")
	if c.Gateway.URL == "" {
		c.Gateway.URL = defaultGatewayURL
	}
	if c.Gateway.RequestTimeout <= 0 {
		c.Gateway.RequestTimeout = defaultRequestTimeoutSeconds
	}
	if c.Gateway.UploadTimeout <= 0 {
		c.Gateway.UploadTimeout = defaultUploadTimeoutSeconds
	}
}

func (c *Config) normalizeUpload() {
	if c.Upload.MaxSizeMiB <= 0 {
		c.Upload.MaxSizeMiB = defaultMaxUploadSizeMiB
	}
	if len(c.Upload.Extensions) == 0 {
		c.Upload.Extensions = defaultExtensions()
	}
	normalized := make([]string, 0, len(c.Upload.Extensions))
	for _, ext := range c.Upload.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		normalized = append(normalized, ext)
	}
	c.Upload.Extensions = normalized
}

func (c *Config) normalizeTracking() {
	if c.Tracking.PollInitialIntervalMS <= 0 {
		c.Tracking.PollInitialIntervalMS = defaultPollInitialIntervalMS
	}
	if c.Tracking.PollMaxIntervalMS <= 0 {
		c.Tracking.PollMaxIntervalMS = defaultPollMaxIntervalMS
	}
	if c.Tracking.MaxStoredTasks <= 0 {
		c.Tracking.MaxStoredTasks = defaultMaxStoredTasks
	}
	if c.Tracking.RetentionDays <= 0 {
		c.Tracking.RetentionDays = defaultRetentionDays
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
