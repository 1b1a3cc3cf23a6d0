// Package log provides the structured logging abstraction used across ebridge.
//
// Components depend on the Logger interface only. A zerolog-backed adapter is
// provided for production use and a no-op logger for tests:
//
//	logger := log.NewZerologAdapter(log.FormatConsole, zerolog.InfoLevel)
//	connLog := logger.With(log.String("conn_id", id))
//
// Or use the no-op logger for testing:
//
//	logger := log.NewNoopLogger()
//
// Implement the Logger interface to integrate with your existing logging
// infrastructure; With must return a logger that prefixes every entry with
// the given fields.
package log
