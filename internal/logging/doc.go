// Package logging provides structured logging for sigmalink.
//
// This package wraps zap logger with convenience functions for common logging
// patterns used throughout the client engine. It provides both general logging
// functions and specialized functions for panel-specific logging needs.
//
// # Log Levels
//
// The package supports standard log levels:
//   - Debug: Detailed debugging info (per-request retries, poll cycles)
//   - Info: Normal operations (session events, successful actions)
//   - Warn: Non-fatal issues (failed attempts, retries, stale sessions)
//   - Error: Fatal issues (startup failures, exhausted retries)
//
// # Structured Logging
//
// All log functions use structured fields for queryability:
//
//	logging.Info("Panel armed",
//	    zap.String("panel", "192.168.1.50"),
//	    zap.String("action", "arm_away"),
//	)
//
// # Specialized Logging
//
// The package provides domain-specific logging functions:
//
//	logging.LogSessionEvent(host, "login")
//	logging.LogSessionEvent(host, "invalidated")
//	logging.LogPollCycle(host, success, consecutiveFailures)
//	logging.LogActionAttempt(host, "arm_away", attempt, err)
//
// # Configuration
//
// Initialize logging at startup:
//
//	if err := logging.InitializeFromEnv(); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// Verbosity is controlled by the SIGMALINK_LOG_LEVEL environment variable;
// when it is unset all output is suppressed so CLI output stays clean.
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. The underlying zap logger
// handles synchronization automatically.
package logging
