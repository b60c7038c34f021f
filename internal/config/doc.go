// Package config loads, validates, and normalizes the redub
// configuration file.
package config
