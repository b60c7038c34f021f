package settings_test

import (
	"context"
	"path/filepath"
	"testing"

	"redub/internal/api"
	"redub/internal/gateway"
	"redub/internal/logging"
	"redub/internal/settings"
	"redub/internal/testsupport"
)

func ptr[T any](v T) *T { return &v }

func newService(t *testing.T) (*settings.Service, *testsupport.FakeGateway) {
	t.Helper()

	fg := testsupport.NewFakeGateway(t)
	client, err := gateway.New(gateway.Config{BaseURL: fg.URL()})
	if err != nil {
		t.Fatalf("gateway.New: %v", err)
	}
	cache := settings.NewFlagCache(filepath.Join(t.TempDir(), "configured.json"), logging.NewNop())
	return settings.NewService(client, cache, logging.NewNop()), fg
}

func TestUpdateAppliesAndBumpsVersion(t *testing.T) {
	service, fg := newService(t)
	ctx := context.Background()

	current, err := service.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	outcome, err := service.Update(ctx, api.SettingsUpdate{
		Version:             current.Version,
		ASRProvider:         ptr("whisper"),
		ASRAPIKey:           ptr("sk-asr"),
		TranslationProvider: ptr("deepl"),
		TranslationAPIKey:   ptr("sk-translate"),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !outcome.Applied {
		t.Fatalf("update not applied: %+v", outcome)
	}
	if outcome.Version != current.Version+1 {
		t.Fatalf("version %d, want %d", outcome.Version, current.Version+1)
	}

	applied := fg.CurrentSettings()
	if applied.ASRProvider != "whisper" || applied.TranslationAPIKey != "sk-translate" {
		t.Fatalf("gateway settings not updated: %+v", applied)
	}
}

func TestStaleVersionIsConflictOutcomeNotError(t *testing.T) {
	service, _ := newService(t)
	ctx := context.Background()

	current, err := service.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	// Another client lands an update first.
	first, err := service.Update(ctx, api.SettingsUpdate{
		Version:     current.Version,
		ASRProvider: ptr("whisper"),
	})
	if err != nil || !first.Applied {
		t.Fatalf("first update: outcome=%+v err=%v", first, err)
	}

	stale, err := service.Update(ctx, api.SettingsUpdate{
		Version:     current.Version,
		ASRProvider: ptr("deepgram"),
	})
	if err != nil {
		t.Fatalf("stale update should not error: %v", err)
	}
	if stale.Applied {
		t.Fatal("stale update was applied")
	}
	if stale.Version != first.Version {
		t.Fatalf("conflict reported version %d, want current %d", stale.Version, first.Version)
	}
}

func TestUpdateDropsMaskedSecrets(t *testing.T) {
	service, fg := newService(t)
	ctx := context.Background()

	fg.SetSettings(api.Settings{Version: 1, ASRProvider: "whisper", ASRAPIKey: "sk-original"})

	outcome, err := service.Update(ctx, api.SettingsUpdate{
		Version:     1,
		ASRAPIKey:   ptr(settings.MaskedSecret),
		ASRProvider: ptr("whisper-large"),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !outcome.Applied {
		t.Fatalf("update not applied: %+v", outcome)
	}

	applied := fg.CurrentSettings()
	if applied.ASRAPIKey != "sk-original" {
		t.Fatalf("masked placeholder overwrote the stored key: %q", applied.ASRAPIKey)
	}
	if applied.ASRProvider != "whisper-large" {
		t.Fatalf("provider change lost: %q", applied.ASRProvider)
	}
}

func TestUpdateWithOnlyMaskedSecretsIsRejected(t *testing.T) {
	service, _ := newService(t)

	_, err := service.Update(context.Background(), api.SettingsUpdate{
		Version:   1,
		ASRAPIKey: ptr(settings.MaskedSecret),
	})
	if !api.Recoverable(err) {
		t.Fatalf("expected a validation error, got %v", err)
	}
}

func TestConfiguredPrefersCacheThenGateway(t *testing.T) {
	service, fg := newService(t)
	ctx := context.Background()

	fg.SetSettings(api.Settings{
		Version: 3, IsConfigured: true,
		ASRProvider: "whisper", ASRAPIKey: "k",
		TranslationProvider: "deepl", TranslationAPIKey: "k",
		VoiceCloningProvider: "eleven", VoiceCloningAPIKey: "k",
	})

	if !service.Configured(ctx) {
		t.Fatal("configured gateway reported as unconfigured")
	}

	// The first check primed the cache; flipping the gateway flag is
	// not visible until the cache expires or is invalidated.
	fg.SetSettings(api.Settings{Version: 4, IsConfigured: false})
	if !service.Configured(ctx) {
		t.Fatal("cached flag was bypassed")
	}
}

func TestConfiguredFailsOpenWhenGatewayUnreachable(t *testing.T) {
	cache := settings.NewFlagCache(filepath.Join(t.TempDir(), "configured.json"), logging.NewNop())
	client, err := gateway.New(gateway.Config{BaseURL: "http://127.0.0.1:1"})
	if err != nil {
		t.Fatalf("gateway.New: %v", err)
	}
	service := settings.NewService(client, cache, logging.NewNop())

	if !service.Configured(context.Background()) {
		t.Fatal("unreachable gateway should not block as unconfigured")
	}
}
