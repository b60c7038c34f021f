package main

import (
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"redub/internal/config"
	"redub/internal/gateway"
	"redub/internal/logging"
	"redub/internal/settings"
	"redub/internal/taskstore"
	"redub/internal/tracker"
)

type commandContext struct {
	configFlag *string

	configOnce   sync.Once
	config       *config.Config
	configPath   string
	configExists bool
	configErr    error

	logOnce sync.Once
	log     *slog.Logger
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.configPath = resolved
		c.configExists = exists
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// logger returns the shared file-backed logger. Command output goes to
// the terminal; diagnostics go here.
func (c *commandContext) logger() *slog.Logger {
	c.logOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.log = logging.NewNop()
			return
		}
		log, err := logging.New(logging.Options{
			Level:       cfg.Logging.Level,
			Format:      cfg.Logging.Format,
			OutputPaths: []string{filepath.Join(cfg.Paths.LogDir, "redub.log")},
		})
		if err != nil {
			c.log = logging.NewNop()
			return
		}
		c.log = log
	})
	return c.log
}

func (c *commandContext) gatewayClient() (*gateway.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return gateway.New(gateway.Config{
		BaseURL: cfg.Gateway.URL,
		Logger:  c.logger(),
	})
}

// withStore opens the task store for the duration of fn. The store
// holds an exclusive lock, so commands keep it open only while needed.
func (c *commandContext) withStore(fn func(*taskstore.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := taskstore.Open(cfg, c.logger())
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

// withCoordinator runs fn with a live tracking coordinator over an
// open store. The coordinator is shut down before the store closes.
func (c *commandContext) withCoordinator(fn func(*tracker.Coordinator, *taskstore.Store) error) error {
	client, err := c.gatewayClient()
	if err != nil {
		return err
	}
	cfg, _ := c.ensureConfig()
	return c.withStore(func(store *taskstore.Store) error {
		coordinator := tracker.New(cfg, store, client, c.logger())
		defer coordinator.Close()
		return fn(coordinator, store)
	})
}

func (c *commandContext) settingsService() (*settings.Service, error) {
	client, err := c.gatewayClient()
	if err != nil {
		return nil, err
	}
	cfg, _ := c.ensureConfig()
	cache := settings.NewFlagCache(cfg.ConfiguredCachePath(), c.logger())
	return settings.NewService(client, cache, c.logger()), nil
}
