// Package logging provides structured logging for the thermostat service.
//
// It wraps log/slog so every entry carries the service name and version,
// with JSON output for production and text output for development.
//
// Logging is configured via the LoggingConfig in config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr, discard
//
// Never log secrets, tokens, or passwords.
package logging
