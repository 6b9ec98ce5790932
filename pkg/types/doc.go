/*
Package types holds the small value types shared between the engine,
the metrics package, and the command-line tools: host-supplied
configuration and point-in-time statistics snapshots. It intentionally
holds no business logic and no type that could carry a schema over
arbitrary keys — that would reintroduce the "schema" and "query
language" this engine explicitly does not have.

# Core Components

Config:
  - The host-supplied shape behind hammersbald.CreateOptions and the
    hammersbald-cli YAML config file: Path, CachePages, FillTarget,
    WriterQueueDepth
  - DefaultConfig(path) returns the values a fresh database is created
    with when a host doesn't override a field

Stats:
  - A point-in-time snapshot of engine state: format version, table
    level/split pointer/slot count, store end offsets, cache occupancy,
    terminal-error flag, and the instance id stamped at Open/Create
  - Used by hammersbald-cli's stat --json output and by any host that
    wants to expose the same shape over its own status endpoint

# Usage

	cfg := types.DefaultConfig("/var/lib/chain/hammersbald")
	cfg.CachePages = 16384

	// later, after hammersbald.Database.Stats():
	snap := types.Stats{
		Path:          raw.Path,
		SlotCount:     raw.SlotCount,
		TerminalError: raw.TerminalError,
		OpenedAt:      time.Now(),
		InstanceID:    raw.InstanceID,
	}
	json.NewEncoder(w).Encode(snap)

# Design Notes

This package exists to give the CLI and a future embedding host a
shared, YAML/JSON-tagged shape without importing pkg/hammersbald's
internal Stats type directly, and without pkg/hammersbald importing a
presentation concern (YAML/JSON tags) into its own public API.

# See Also

  - pkg/hammersbald: Database.Stats() returns the internal shape these
    types are adapted from
  - cmd/hammersbald-cli: stat.go converts hammersbald.Stats into
    types.Stats for display
*/
package types
