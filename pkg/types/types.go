package types

import "time"

// Config is the set of values the host supplies to an open call (spec
// §6 "Supplied to the engine by the host"). It is also the shape loaded
// from the hammersbald-cli YAML config file.
type Config struct {
	// Path is the directory holding the four file families (*.bc, *.bl,
	// *.tb, *.lg).
	Path string `yaml:"path"`

	// CachePages bounds the page cache's resident page count.
	CachePages int `yaml:"cachePages"`

	// FillTarget is the linear-hash bucket-fill target (average chain
	// length before a split is triggered). Clamped to [1, 64].
	FillTarget int `yaml:"fillTarget"`

	// WriterQueueDepth bounds the async writer's work channel.
	WriterQueueDepth int `yaml:"writerQueueDepth"`
}

// DefaultConfig returns the configuration a fresh database is created
// with when the host does not override a field.
func DefaultConfig(path string) Config {
	return Config{
		Path:             path,
		CachePages:       4096,
		FillTarget:       2,
		WriterQueueDepth: 256,
	}
}

// Stats is a point-in-time snapshot of engine state, used by the CLI's
// stat command and by health/metrics reporting.
type Stats struct {
	Path           string    `json:"path"`
	FormatVersion  uint16    `json:"formatVersion"`
	Level          uint32    `json:"level"`
	SplitPointer   uint32    `json:"splitPointer"`
	SlotCount      uint64    `json:"slotCount"`
	FillTarget     uint32    `json:"fillTarget"`
	DataStoreEnd   uint64    `json:"dataStoreEnd"`
	LinkStoreEnd   uint64    `json:"linkStoreEnd"`
	CachedPages    int       `json:"cachedPages"`
	DirtyPages     int       `json:"dirtyPages"`
	TerminalError  bool      `json:"terminalError"`
	OpenedAt       time.Time `json:"openedAt"`
	InstanceID     string    `json:"instanceId"`
}
