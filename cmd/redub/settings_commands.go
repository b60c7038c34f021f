package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"redub/internal/api"
	"redub/internal/settings"
)

func newSettingsCommand(ctx *commandContext) *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Inspect and change the shared pipeline settings",
	}

	settingsCmd.AddCommand(newSettingsShowCommand(ctx))
	settingsCmd.AddCommand(newSettingsSetCommand(ctx))

	return settingsCmd
}

func newSettingsShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the gateway's current pipeline settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			service, err := ctx.settingsService()
			if err != nil {
				return err
			}
			current, err := service.Read(cmd.Context())
			if err != nil {
				return err
			}
			masked := maskSecrets(*current)
			if asJSON {
				return writeJSON(cmd, masked)
			}
			printSettings(cmd, masked)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

type settingsFlags struct {
	processingMode string

	asrProvider string
	asrAPIKey   string
	asrEndpoint string

	audioSeparation bool

	polishing         bool
	polishingProvider string
	polishingAPIKey   string
	polishingEndpoint string

	translationProvider string
	translationAPIKey   string
	translationEndpoint string

	voiceProvider string
	voiceAPIKey   string
	voiceEndpoint string
}

func newSettingsSetCommand(ctx *commandContext) *cobra.Command {
	var flags settingsFlags

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change pipeline settings",
		Long: "Change one or more pipeline settings. The update is applied\n" +
			"under optimistic concurrency: if another client changed the\n" +
			"settings since this command read them, nothing is written and\n" +
			"the fresh settings are shown instead.",
		RunE: func(cmd *cobra.Command, args []string) error {
			service, err := ctx.settingsService()
			if err != nil {
				return err
			}
			current, err := service.Read(cmd.Context())
			if err != nil {
				return err
			}

			update := buildUpdate(cmd, flags, current.Version)
			outcome, err := service.Update(cmd.Context(), update)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !outcome.Applied {
				fmt.Fprintf(out, "Settings changed elsewhere (now at version %d); nothing was written\n", outcome.Version)
				fresh, readErr := service.Read(cmd.Context())
				if readErr == nil {
					fmt.Fprintln(out, "Current settings:")
					printSettings(cmd, maskSecrets(*fresh))
				}
				return fmt.Errorf("settings update conflicted; review the current values and retry")
			}

			fmt.Fprintf(out, "Settings updated to version %d\n", outcome.Version)
			return nil
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&flags.processingMode, "processing-mode", "", "Processing mode (standard or high_quality)")
	fs.StringVar(&flags.asrProvider, "asr-provider", "", "Speech recognition provider")
	fs.StringVar(&flags.asrAPIKey, "asr-api-key", "", "Speech recognition API key")
	fs.StringVar(&flags.asrEndpoint, "asr-endpoint", "", "Speech recognition endpoint override")
	fs.BoolVar(&flags.audioSeparation, "audio-separation", false, "Separate vocals from background audio before recognition")
	fs.BoolVar(&flags.polishing, "polishing", false, "Polish translated subtitles with an LLM pass")
	fs.StringVar(&flags.polishingProvider, "polishing-provider", "", "Subtitle polishing provider")
	fs.StringVar(&flags.polishingAPIKey, "polishing-api-key", "", "Subtitle polishing API key")
	fs.StringVar(&flags.polishingEndpoint, "polishing-endpoint", "", "Subtitle polishing endpoint override")
	fs.StringVar(&flags.translationProvider, "translation-provider", "", "Translation provider")
	fs.StringVar(&flags.translationAPIKey, "translation-api-key", "", "Translation API key")
	fs.StringVar(&flags.translationEndpoint, "translation-endpoint", "", "Translation endpoint override")
	fs.StringVar(&flags.voiceProvider, "voice-cloning-provider", "", "Voice cloning provider")
	fs.StringVar(&flags.voiceAPIKey, "voice-cloning-api-key", "", "Voice cloning API key")
	fs.StringVar(&flags.voiceEndpoint, "voice-cloning-endpoint", "", "Voice cloning endpoint override")

	return cmd
}

// buildUpdate converts only the flags the user actually passed into
// update fields, so untouched settings stay untouched.
func buildUpdate(cmd *cobra.Command, flags settingsFlags, version int) api.SettingsUpdate {
	update := api.SettingsUpdate{Version: version}

	setString := func(name string, value string, dst **string) {
		if cmd.Flags().Changed(name) {
			v := value
			*dst = &v
		}
	}
	setBool := func(name string, value bool, dst **bool) {
		if cmd.Flags().Changed(name) {
			v := value
			*dst = &v
		}
	}

	setString("processing-mode", flags.processingMode, &update.ProcessingMode)
	setString("asr-provider", flags.asrProvider, &update.ASRProvider)
	setString("asr-api-key", flags.asrAPIKey, &update.ASRAPIKey)
	setString("asr-endpoint", flags.asrEndpoint, &update.ASREndpoint)
	setBool("audio-separation", flags.audioSeparation, &update.AudioSeparationEnabled)
	setBool("polishing", flags.polishing, &update.PolishingEnabled)
	setString("polishing-provider", flags.polishingProvider, &update.PolishingProvider)
	setString("polishing-api-key", flags.polishingAPIKey, &update.PolishingAPIKey)
	setString("polishing-endpoint", flags.polishingEndpoint, &update.PolishingEndpoint)
	setString("translation-provider", flags.translationProvider, &update.TranslationProvider)
	setString("translation-api-key", flags.translationAPIKey, &update.TranslationAPIKey)
	setString("translation-endpoint", flags.translationEndpoint, &update.TranslationEndpoint)
	setString("voice-cloning-provider", flags.voiceProvider, &update.VoiceCloningProvider)
	setString("voice-cloning-api-key", flags.voiceAPIKey, &update.VoiceCloningAPIKey)
	setString("voice-cloning-endpoint", flags.voiceEndpoint, &update.VoiceCloningEndpoint)

	return update
}

// maskSecrets replaces stored API keys with a placeholder for display.
func maskSecrets(s api.Settings) api.Settings {
	mask := func(value string) string {
		if value == "" {
			return ""
		}
		return settings.MaskedSecret
	}
	s.ASRAPIKey = mask(s.ASRAPIKey)
	s.PolishingAPIKey = mask(s.PolishingAPIKey)
	s.TranslationAPIKey = mask(s.TranslationAPIKey)
	s.VoiceCloningAPIKey = mask(s.VoiceCloningAPIKey)
	return s
}

func printSettings(cmd *cobra.Command, s api.Settings) {
	rows := [][]string{
		{"version", fmt.Sprintf("%d", s.Version)},
		{"configured", yesNo(s.IsConfigured)},
		{"processing mode", s.ProcessingMode},
		{"audio separation", yesNo(s.AudioSeparationEnabled)},
		{"asr provider", s.ASRProvider},
		{"asr api key", s.ASRAPIKey},
		{"asr endpoint", s.ASREndpoint},
		{"translation provider", s.TranslationProvider},
		{"translation api key", s.TranslationAPIKey},
		{"translation endpoint", s.TranslationEndpoint},
		{"voice cloning provider", s.VoiceCloningProvider},
		{"voice cloning api key", s.VoiceCloningAPIKey},
		{"voice cloning endpoint", s.VoiceCloningEndpoint},
		{"polishing", yesNo(s.PolishingEnabled)},
		{"polishing provider", s.PolishingProvider},
		{"polishing api key", s.PolishingAPIKey},
		{"polishing endpoint", s.PolishingEndpoint},
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"SETTING", "VALUE"}, rows))
}
