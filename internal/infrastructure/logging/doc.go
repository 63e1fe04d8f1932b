// Package logging provides structured logging for EdgeLink Core.
//
// It wraps log/slog so every entry carries the service name and build
// version, and every subsystem derives a child logger tagged with its
// component name.
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
//	logger := logging.New(cfg.Logging, version)
//	wsLog := logger.Component("websocket")
//	wsLog.Info("client connected", "conn_id", id)
//
// Never log session tokens, passwords, or JWT secrets.
package logging
