package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Page cache metrics
	CacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hammersbald_cache_hits_total",
			Help: "Total number of page cache hits",
		},
	)

	CacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hammersbald_cache_misses_total",
			Help: "Total number of page cache misses",
		},
	)

	CacheDirtyPages = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hammersbald_cache_dirty_pages",
			Help: "Number of dirty pages currently pinned in the cache",
		},
	)

	CacheSizePages = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hammersbald_cache_size_pages",
			Help: "Number of pages currently resident in the cache",
		},
	)

	// Writer metrics
	WriterQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hammersbald_writer_queue_depth",
			Help: "Number of write requests queued for the async writer",
		},
	)

	WriterBytesWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hammersbald_writer_bytes_written_total",
			Help: "Total bytes appended, by store",
		},
		[]string{"store"},
	)

	// Batch / journal metrics
	BatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hammersbald_batch_duration_seconds",
			Help:    "Time taken to commit a batch, including fsyncs",
			Buckets: prometheus.DefBuckets,
		},
	)

	BatchesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hammersbald_batches_total",
			Help: "Total number of batches committed",
		},
	)

	RecoveriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hammersbald_recoveries_total",
			Help: "Total number of crash recoveries performed on open",
		},
	)

	// Index metrics
	SlotCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hammersbald_slot_count",
			Help: "Current number of slots S in the linear hash table",
		},
	)

	SplitPointer = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hammersbald_split_pointer",
			Help: "Current linear-hash split pointer",
		},
	)

	SplitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hammersbald_splits_total",
			Help: "Total number of bucket splits performed",
		},
	)

	EntriesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hammersbald_entries_total",
			Help: "Total number of keyed index entries currently tracked",
		},
	)

	// Engine state
	TerminalErrors = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hammersbald_terminal_error",
			Help: "1 if the engine has transitioned to the read-only terminal error state, 0 otherwise",
		},
	)
)

func init() {
	prometheus.MustRegister(CacheHitsTotal)
	prometheus.MustRegister(CacheMissesTotal)
	prometheus.MustRegister(CacheDirtyPages)
	prometheus.MustRegister(CacheSizePages)
	prometheus.MustRegister(WriterQueueDepth)
	prometheus.MustRegister(WriterBytesWrittenTotal)
	prometheus.MustRegister(BatchDuration)
	prometheus.MustRegister(BatchesTotal)
	prometheus.MustRegister(RecoveriesTotal)
	prometheus.MustRegister(SlotCount)
	prometheus.MustRegister(SplitPointer)
	prometheus.MustRegister(SplitsTotal)
	prometheus.MustRegister(EntriesTotal)
	prometheus.MustRegister(TerminalErrors)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
