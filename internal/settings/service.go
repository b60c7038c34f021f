package settings

import (
	"context"
	"log/slog"

	"redub/internal/api"
	"redub/internal/gateway"
	"redub/internal/logging"
)

// Gateway is the slice of the gateway client the service needs.
type Gateway interface {
	Settings(ctx context.Context) (*api.Settings, error)
	UpdateSettings(ctx context.Context, update api.SettingsUpdate) (gateway.UpdateOutcome, error)
}

// Service reads and updates the gateway's pipeline settings.
type Service struct {
	gateway Gateway
	cache   *FlagCache
	logger  *slog.Logger
}

// NewService wires a settings service. cache may be nil when no
// configured-flag caching is wanted.
func NewService(gw Gateway, cache *FlagCache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		gateway: gw,
		cache:   cache,
		logger:  logging.NewComponentLogger(logger, "settings"),
	}
}

// Read fetches the current settings and refreshes the configured-flag
// cache as a side effect.
func (s *Service) Read(ctx context.Context) (*api.Settings, error) {
	current, err := s.gateway.Settings(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Store(current.IsConfigured)
	}
	return current, nil
}

// Update validates and submits a partial settings change. A version
// conflict comes back as an outcome with Applied false; the caller
// should re-read, re-apply intent, and resubmit. Masked secret values
// are stripped before submission so they never overwrite stored keys.
func (s *Service) Update(ctx context.Context, update api.SettingsUpdate) (gateway.UpdateOutcome, error) {
	update = Normalize(update)
	if err := Validate(update); err != nil {
		return gateway.UpdateOutcome{}, err
	}

	outcome, err := s.gateway.UpdateSettings(ctx, update)
	if err != nil {
		return gateway.UpdateOutcome{}, err
	}
	if outcome.Applied {
		s.logger.Info("settings updated",
			logging.Int("version", outcome.Version),
			logging.String(logging.FieldEventType, "settings_updated"))
		if s.cache != nil {
			// The applied response does not carry is_configured;
			// drop the stale flag and let the next check re-read.
			s.cache.Invalidate()
		}
	}
	return outcome, nil
}

// Configured reports whether the gateway has all required providers
// set up. It consults the local cache first and fails open on network
// trouble: an unreachable gateway never blocks an upload attempt, the
// upload itself will surface the real failure.
func (s *Service) Configured(ctx context.Context) bool {
	if s.cache != nil {
		if configured, ok := s.cache.Load(); ok {
			return configured
		}
	}
	current, err := s.gateway.Settings(ctx)
	if err != nil {
		s.logger.Warn("configured check unavailable, assuming configured",
			logging.String(logging.FieldEventType, "configured_check_failed"),
			logging.Error(err))
		return true
	}
	if s.cache != nil {
		s.cache.Store(current.IsConfigured)
	}
	return current.IsConfigured
}
