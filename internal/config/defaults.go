package config

const (
	defaultGatewayURL            = "http://localhost:8080"
	defaultRequestTimeoutSeconds = 30
	defaultUploadTimeoutSeconds  = 300
	defaultStateDir              = "~/.local/share/redub"
	defaultLogDir                = "~/.local/share/redub/logs"
	defaultMaxUploadSizeMiB      = 2048
	defaultPollInitialIntervalMS = 3000
	defaultPollMaxIntervalMS     = 10000
	defaultMaxStoredTasks        = 50
	defaultRetentionDays         = 7
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

func defaultExtensions() []string {
	return []string{".mp4", ".mov", ".mkv"}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Gateway: Gateway{
			URL:            defaultGatewayURL,
			RequestTimeout: defaultRequestTimeoutSeconds,
			UploadTimeout:  defaultUploadTimeoutSeconds,
		},
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Upload: Upload{
			MaxSizeMiB: defaultMaxUploadSizeMiB,
			Extensions: defaultExtensions(),
		},
		Tracking: Tracking{
			PollInitialIntervalMS: defaultPollInitialIntervalMS,
			PollMaxIntervalMS:     defaultPollMaxIntervalMS,
			MaxStoredTasks:        defaultMaxStoredTasks,
			RetentionDays:         defaultRetentionDays,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
