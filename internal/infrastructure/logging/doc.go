// Package logging provides structured logging for netpanel.
//
// It wraps Go's standard log/slog package to give every component
// consistent, structured output.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("starting", "port", 8099)
//	logger.Error("poll failed", "error", err)
//
// Never log secrets: the app token, the session token and the computed
// login password must not appear in log output at any level.
package logging
