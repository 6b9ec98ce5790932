/*
Package metrics provides Prometheus metrics and health reporting for
Hammersbald.

Metrics are package-level prometheus collectors, registered once at init
and updated directly by the engine (cache, writer, journal, index) the
same way the rest of this codebase calls into shared packages: no
metrics-owned polling loop inspects engine state from the outside.

# Architecture

	┌──────────────────── METRICS SYSTEM ───────────────────────┐
	│                                                             │
	│  pkg/hammersbald -------- direct Inc()/Set()/Observe() --->│
	│                                                             │
	│  ┌────────────────────────────────────────────┐           │
	│  │          Prometheus Registry                 │           │
	│  │  - cache hit/miss counters, dirty gauge      │           │
	│  │  - writer queue depth, bytes written         │           │
	│  │  - batch duration histogram, batch counter   │           │
	│  │  - slot count, split pointer, splits total   │           │
	│  │  - terminal-error gauge                      │           │
	│  └──────────────────┬─────────────────────────┘            │
	│                     │ metrics.Handler()                     │
	│  ┌──────────────────▼─────────────────────────┐            │
	│  │        /metrics HTTP endpoint                │            │
	│  └────────────────────────────────────────────┘             │
	│                                                             │
	│  ┌────────────────────────────────────────────┐           │
	│  │          HealthChecker                       │           │
	│  │  - RegisterComponent/UpdateComponent         │           │
	│  │  - critical components: cache, writer,       │           │
	│  │    journal, index                            │           │
	│  │  - /health, /ready, /live HTTP handlers       │           │
	│  └────────────────────────────────────────────┘             │
	└─────────────────────────────────────────────────────────────┘

# Core Components

Collectors (package-level, registered in init):
  - CacheHitsTotal / CacheMissesTotal: page cache effectiveness
  - CacheDirtyPages / CacheSizePages: cache occupancy gauges
  - WriterQueueDepth / WriterBytesWrittenTotal: async writer backlog
    and throughput, split by store (data/link)
  - BatchDuration / BatchesTotal: commit latency and count
  - RecoveriesTotal: crash recoveries performed on Open
  - SlotCount / SplitPointer / SplitsTotal / EntriesTotal: linear-hash
    table shape over time
  - TerminalErrors: 1 once the engine has entered the read-only
    terminal error state, 0 otherwise

HealthChecker:
  - In-memory component registry (cache/writer/journal/index)
  - GetHealth aggregates to "healthy"/"unhealthy"
  - GetReadiness additionally requires every critical component to be
    registered and healthy before reporting "ready"

Timer:
  - NewTimer()/ObserveDuration(histogram) pairs a start time with a
    single histogram observation, used around commitBatch

# Metric Reference

| Metric                                   | Type      | Meaning                                   |
|-------------------------------------------|-----------|--------------------------------------------|
| hammersbald_cache_hits_total               | Counter   | page cache hits                             |
| hammersbald_cache_misses_total             | Counter   | page cache misses                           |
| hammersbald_cache_dirty_pages               | Gauge     | dirty pages pinned against eviction         |
| hammersbald_cache_size_pages                 | Gauge     | pages currently resident                    |
| hammersbald_writer_queue_depth               | Gauge     | queued async writer requests                |
| hammersbald_writer_bytes_written_total       | CounterVec| bytes appended, by store (data/link)        |
| hammersbald_batch_duration_seconds            | Histogram | time to commit a batch, including fsyncs    |
| hammersbald_batches_total                     | Counter   | batches committed                           |
| hammersbald_recoveries_total                  | Counter   | crash recoveries performed on open          |
| hammersbald_slot_count                        | Gauge     | current S in the linear hash table          |
| hammersbald_split_pointer                     | Gauge     | current linear-hash split pointer           |
| hammersbald_splits_total                      | Counter   | bucket splits performed                     |
| hammersbald_entries_total                     | Gauge     | keyed index entries currently tracked       |
| hammersbald_terminal_error                    | Gauge     | 1 if in the terminal error state            |

# Usage

Recording a batch commit:

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.BatchDuration)
	metrics.BatchesTotal.Inc()

Registering component health:

	metrics.RegisterComponent("writer", true, "")
	metrics.SetVersion(Version)

Serving the HTTP endpoints:

	http.Handle("/metrics", metrics.Handler())
	http.Handle("/health", metrics.HealthHandler())
	http.Handle("/ready", metrics.ReadyHandler())
	http.Handle("/live", metrics.LivenessHandler())

# Monitoring

Suggested Alerts:
  - hammersbald_terminal_error == 1: the engine has stopped accepting
    writes and needs a reopen/recovery cycle; page immediately.
  - rate(hammersbald_recoveries_total[1h]) > 0: a process is crashing
    mid-batch; investigate the host, not just the database.
  - hammersbald_writer_queue_depth at WriterQueueDepth capacity for an
    extended period: the writer can't keep up with insert rate; raise
    WriterQueueDepth or investigate slow fsyncs.
  - hammersbald_cache_dirty_pages growing without a corresponding
    hammersbald_batches_total increase: Batch() isn't being called
    often enough for the workload's write volume.

# Performance Characteristics

  - Every collector is a package-level prometheus primitive; Inc/Set/
    Observe calls are lock-free counter/gauge updates, negligible next
    to the I/O they describe.
  - BatchDuration is the one histogram on the hot path; it is observed
    once per commitBatch call, not per write, so its overhead is
    amortized across an entire batch.

# Troubleshooting

Metrics Server Not Responding:
  - Check: --metrics-addr was passed to hammersbald-cli, or the
    embedding host started its own HTTP server with metrics.Handler()
  - Check: the address isn't already in use by another process

Health Always Unhealthy:
  - Check: every critical component (cache, writer, journal, index)
    called RegisterComponent(..., true, ...) after a successful Open
  - Cause: a component left registered unhealthy from an earlier,
    since-reopened database shares the same process-wide registry

# See Also

  - Prometheus client_golang: https://github.com/prometheus/client_golang
  - Prometheus histogram guidance: https://prometheus.io/docs/practices/histograms/
*/
package metrics
