// Package logging provides structured logging for the Habitat backend.
//
// It wraps log/slog with JSON or text output, level filtering, and default
// service/version fields on every entry.
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Never log passwords, password hashes, access tokens, or reset tokens.
// Email addresses are logged at debug level only.
package logging
