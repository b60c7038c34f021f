package settings

import (
	"fmt"
	"net/url"
	"strings"

	"redub/internal/api"
)

// MaskedSecret is the placeholder the client shows in place of stored
// API keys. Submitting it back means "keep the stored key".
const MaskedSecret = "***"

// Normalize strips masked secrets from the update so a round-tripped
// display value never overwrites the stored key. Returns the update
// with those fields cleared.
func Normalize(update api.SettingsUpdate) api.SettingsUpdate {
	dropMasked := func(field **string) {
		if *field != nil && strings.TrimSpace(**field) == MaskedSecret {
			*field = nil
		}
	}
	dropMasked(&update.ASRAPIKey)
	dropMasked(&update.PolishingAPIKey)
	dropMasked(&update.TranslationAPIKey)
	dropMasked(&update.VoiceCloningAPIKey)
	return update
}

// Validate rejects updates the gateway would refuse, before any
// network round trip. Failures are tagged api.ErrValidation.
func Validate(update api.SettingsUpdate) error {
	if update.Empty() {
		return api.Wrap(api.ErrValidation, "validate settings", "no settings were changed", nil)
	}
	if update.Version <= 0 {
		return api.Wrap(api.ErrValidation, "validate settings",
			fmt.Sprintf("version %d is not a valid read token", update.Version), nil)
	}

	type endpointField struct {
		name  string
		value *string
	}
	for _, field := range []endpointField{
		{"asr endpoint", update.ASREndpoint},
		{"polishing endpoint", update.PolishingEndpoint},
		{"translation endpoint", update.TranslationEndpoint},
		{"voice cloning endpoint", update.VoiceCloningEndpoint},
	} {
		if err := validateEndpoint(field.name, field.value); err != nil {
			return err
		}
	}

	type keyField struct {
		name  string
		value *string
	}
	for _, field := range []keyField{
		{"asr api key", update.ASRAPIKey},
		{"polishing api key", update.PolishingAPIKey},
		{"translation api key", update.TranslationAPIKey},
		{"voice cloning api key", update.VoiceCloningAPIKey},
	} {
		if field.value != nil && strings.TrimSpace(*field.value) == "" {
			return api.Wrap(api.ErrValidation, "validate settings",
				fmt.Sprintf("%s must not be empty", field.name), nil)
		}
	}

	if update.ProcessingMode != nil {
		mode := strings.TrimSpace(*update.ProcessingMode)
		if mode != "standard" && mode != "high_quality" {
			return api.Wrap(api.ErrValidation, "validate settings",
				fmt.Sprintf("unknown processing mode %q", mode), nil)
		}
	}
	return nil
}

// validateEndpoint accepts unset and empty endpoints; an empty value
// clears the override and falls back to the provider default.
func validateEndpoint(name string, value *string) error {
	if value == nil {
		return nil
	}
	endpoint := strings.TrimSpace(*value)
	if endpoint == "" {
		return nil
	}
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return api.Wrap(api.ErrValidation, "validate settings",
			fmt.Sprintf("%s is not a valid url", name), err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return api.Wrap(api.ErrValidation, "validate settings",
			fmt.Sprintf("%s must use http or https", name), nil)
	}
	if parsed.Host == "" {
		return api.Wrap(api.ErrValidation, "validate settings",
			fmt.Sprintf("%s is missing a host", name), nil)
	}
	return nil
}
