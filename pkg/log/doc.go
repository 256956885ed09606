/*
Package log provides structured logging for storebroker using zerolog.

The log package wraps zerolog to provide JSON-structured logging with
component-specific child loggers, configurable log levels, and helper
functions for common logging patterns. All logs include timestamps and
support filtering by severity level for production debugging.

# Core Components

Global Logger:
  - Package-level zerolog.Logger instance
  - Initialized once via log.Init()
  - Accessible from all storebroker packages
  - Thread-safe concurrent writes

Log Levels:
  - Debug: Detailed debugging information
  - Info: General informational messages
  - Warn: Warning messages (potential issues)
  - Error: Error messages (operation failed)
  - Fatal: Critical errors (process exits)

Configuration:
  - Level: Filter messages below threshold
  - JSONOutput: JSON vs human-readable console
  - Output: io.Writer for log destination (stdout, file)

Context Loggers:
  - WithComponent: Add component name to all logs
  - WithStore: Add store_name context (store actor, frontend, proxy)
  - WithClone: Add clone_id context (clone-side command application)
  - WithRequest: Add req_id context (frontend/proxy request tracing)

# Usage

Initializing the Logger:

	import "github.com/cuemby/storebroker/pkg/log"

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

Simple Logging:

	log.Info("store actor started")
	log.Debug("checking expiry index")
	log.Warn("clone gap detected")
	log.Error("backend open failed")
	log.Fatal("cannot bind default store manifest") // exits process

Component Loggers:

	actorLog := log.WithComponent("storeactor")
	actorLog.Info().Msg("tick scan starting")

	storeLog := log.WithStore("S").With().Str("role", "master").Logger()
	storeLog.Info().Uint64("seq", 42).Msg("command broadcast")

	cloneLog := log.WithClone("clone-1")
	cloneLog.Warn().Uint64("expected_seq", 10).Uint64("got_seq", 13).Msg("sequence gap, resyncing")

# Integration Points

This package integrates with:

  - pkg/storeactor: logs failed writes, dropped or failed commands, snapshot and expiry-scan errors
  - pkg/frontend: logs fire-and-forget submissions that could not be enqueued
  - pkg/proxy: no direct logging
  - pkg/command: no direct logging (pure message types)
  - cmd/storebroker: logs store actor startup; cmd/storectl: configures the logger

# Design Patterns

Global Logger Pattern:
  - Single package-level Logger instance, initialized once at startup
  - Accessible from all packages without passing references through constructors

Context Logger Pattern:
  - Create child loggers with context fields (store, clone, request)
  - Pass them into the store actor/frontend/proxy so every log line they
    emit already carries the fields a reader needs to correlate it

Error Logging Pattern:
  - Always use .Err(err) for error values, never string-interpolate them
  - Consistent error field name across the codebase

# Security

  - Never log raw value payloads that may carry sensitive application data
  - Restrict log file permissions
  - Use structured fields (.Str, .Uint64) instead of concatenating
    caller-controlled strings into the message
*/
package log
