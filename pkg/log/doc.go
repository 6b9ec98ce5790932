/*
Package log provides structured logging for Hammersbald using zerolog.

It wraps zerolog to give every engine subsystem a consistent, structured
logger: JSON or console output, a configurable level, and child loggers
carrying the fields that matter for diagnosing an embedded storage engine
rather than a networked service.

# Architecture

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Global Logger                    │          │
	│  │  - zerolog.Logger, set by log.Init()        │          │
	│  │  - safe for concurrent use                  │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Component Loggers                   │          │
	│  │  - WithComponent("cache"|"writer"|"journal"| │          │
	│  │                   "index"|"recovery")        │          │
	│  │  - WithDB(path)                              │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │            Log Output                       │          │
	│  │                                              │          │
	│  │  JSON Format:                               │          │
	│  │  {"level":"info","db":"/var/db","instance_id"│          │
	│  │   :"3f9e...","component":"db","message":     │          │
	│  │   "hammersbald database opened"}             │          │
	│  │                                              │          │
	│  │  Console Format:                            │          │
	│  │  10:30AM INF hammersbald database opened     │          │
	│  │    db=/var/db component=db                   │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Core Components

Global Logger:
  - Package-level zerolog.Logger instance
  - Initialized once via log.Init()
  - Accessible from every pkg/hammersbald source file and from the
    cmd/ tools

Log Levels (as emitted by the engine and the CLI):
  - Debug, Warn: no lines are emitted at these levels
  - Info: database opens/closes, recovery start and completion, the
    CLI's metrics server start
  - Error: terminal-state transitions (Io/Corrupt), metrics server exit

Configuration:
  - Level: filter messages below threshold
  - JSONOutput: JSON vs human-readable console
  - Output: io.Writer for log destination (stdout, file)

Context Loggers:
  - WithComponent: tag a logger with the engine subsystem emitting the
    line (cache, writer, journal, index, recovery, db, metrics-server)
  - WithDB: tag a logger with the database directory a line concerns,
    so lines from an open/recover/close cycle sharing one sink can be
    told apart

# Log Levels

Debug Level:
  - Purpose: development and incident investigation only
  - The engine emits no Debug lines

Info Level:
  - Purpose: lifecycle events
  - Usage: default production level
  - Example: "hammersbald database opened" / "hammersbald database closed"

Warn Level:
  - Purpose: degraded-but-recovered conditions
  - The engine emits no Warn lines; an out-of-range fill target is
    clamped to [1, 64] without a log line

Error Level:
  - Purpose: failures that need investigation, including ones that put
    the engine into the terminal error state
  - Usage: Io/Corrupt failures on the write path
  - Example: "engine entering terminal error state"

# Usage

Initializing the Logger:

	import "github.com/cuemby/hammersbald/pkg/log"

	// JSON output (production)
	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	// Console output at debug level (development)
	log.Init(log.Config{
		Level:      log.DebugLevel,
		JSONOutput: false,
		Output:     os.Stdout,
	})

Simple Logging:

	log.Logger.Info().Msg("hammersbald database opened")
	log.Logger.Error().Err(err).Msg("fsync failed")

Structured Logging:

	log.Logger.Info().
		Str("db", dir).
		Str("instance_id", instanceID).
		Uint64("slot_count", slotCount).
		Msg("batch committed")

Component Loggers:

	journalLog := log.WithComponent("journal")
	journalLog.Info().Str("db", path).Msg("batch committed")

	cacheLog := log.WithComponent("cache")
	cacheLog.Debug().Uint64("page", pageIndex).Msg("page evicted")

Per-Database Loggers:

	dbLog := log.WithDB(dir).With().Str("instance_id", instanceID).Logger()
	dbLog.Info().Msg("hammersbald database opened")
	dbLog.Error().Err(err).Msg("engine entering terminal error state")

Do not log key or value bytes at Info level or above — Hammersbald is
frequently used to store key material and other sensitive payloads; only
Debug-level logging may include payload lengths, never payload content.

# Integration Points

This package is used by:

  - pkg/hammersbald: db.go (open/close/terminal-state lines) and
    recovery.go (journal replay lines)
  - cmd/hammersbald-cli: logger setup from --log-level/--log-json and
    the optional background metrics server

cmd/hammersbald-migrate prints its progress through the standard
library log package, not this one.

# Performance Characteristics

Logging Overhead:
  - Disabled level: effectively free (zerolog short-circuits before
    formatting)
  - JSON encode: sub-microsecond per log line
  - Console format: slightly higher due to color/alignment formatting

Log Level Impact:
  - Debug: high volume if enabled during a large batch; development use
    only
  - Info: a few lines per Open/Create and Shutdown call and none per
    Batch() call, safe in production
  - Warn/Error: rare by design — Error lines correlate with the
    terminal error state gauge in pkg/metrics

# Troubleshooting

No Log Output:
  - Check: log.Init() called before the first Database operation
  - Check: level set appropriately (Debug < Info < Warn < Error)

Missing db/instance_id Fields:
  - Cause: logging through log.Logger directly instead of the per-open
    child logger stored on Database
  - Solution: use WithDB/WithComponent, or the child logger a Database
    already built at Open/Create time

Log Parsing Fails:
  - Cause: invalid JSON in a message field (shouldn't happen - never
    pass key/value bytes through .Str(); pass lengths instead)

# Security

Log Content:
  - Never log key or value bytes - they may be sensitive payload data
    a caller is storing in the engine
  - Debug-level lines may include lengths and PRefs, never payload
    content

# See Also

  - Zerolog documentation: https://github.com/rs/zerolog
  - Structured logging: https://www.thoughtworks.com/radar/techniques/structured-logging
*/
package log
