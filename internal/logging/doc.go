// Package logging constructs slog loggers for the CLI and defines the
// standardized structured field vocabulary used across the client.
package logging
