// Package config provides configuration management for gofile-downloader.
//
// This package handles:
//   - Loading and saving settings from YAML files
//   - Default configuration values
//   - Environment overrides, including a .env file
//   - Validation and conversion to a retry.Policy
//
// # Default Settings
//
// Use DefaultSettings() to get sensible defaults:
//
//	settings := config.DefaultSettings()
//	// Downloads to ~/Downloads/GoFile
//	// Four concurrent transfers
//	// Tracker records under ~/.local/state/gofile-downloader
//
// # Loading from File
//
//	settings, err := config.Load("/etc/gofile-downloader/config.yaml")
//	if err != nil {
//	    // Uses defaults if file doesn't exist
//	}
//	if err := settings.LoadEnv(".env"); err != nil {
//	    return err
//	}
//	if err := settings.Validate(); err != nil {
//	    return err
//	}
//
// # Configuration Options
//
// Settings includes options for:
//   - Listen address, base directory and tracker state location
//   - Concurrency, chunk size, throttling and timeouts
//   - Retry behavior
//   - Incremental sync and folder rename patterns
//   - Logging, dashboard auth and completion webhooks
package config
