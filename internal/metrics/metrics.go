// Package metrics holds the Prometheus counters and histograms emitted by
// the pipeline and store, the same lazily-registered singleton pattern
// used by the ingestion pipeline's metrics.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type indexMetrics struct {
	once sync.Once

	filesDiscovered prometheus.Counter
	filesChanged    prometheus.Counter
	filesUnchanged  prometheus.Counter
	filesDeleted    prometheus.Counter
	filesFailed     prometheus.Counter

	chunksCommitted   prometheus.Counter
	contentionRetries prometheus.Counter
	contentionFailed  prometheus.Counter
	aggressiveFallback prometheus.Counter

	parseDuration   prometheus.Histogram
	extractDuration prometheus.Histogram
	chunkDuration   prometheus.Histogram
	queryDuration   *prometheus.HistogramVec
}

var m indexMetrics

func (m *indexMetrics) init() {
	m.once.Do(func() {
		m.filesDiscovered = prometheus.NewCounter(prometheus.CounterOpts{Name: "coreindex_files_discovered_total", Help: "Files seen by the walker"})
		m.filesChanged = prometheus.NewCounter(prometheus.CounterOpts{Name: "coreindex_files_changed_total", Help: "Files dispatched for parse+extract"})
		m.filesUnchanged = prometheus.NewCounter(prometheus.CounterOpts{Name: "coreindex_files_unchanged_total", Help: "Files skipped by the staleness split"})
		m.filesDeleted = prometheus.NewCounter(prometheus.CounterOpts{Name: "coreindex_files_deleted_total", Help: "Files removed from tracking"})
		m.filesFailed = prometheus.NewCounter(prometheus.CounterOpts{Name: "coreindex_files_failed_total", Help: "Files that failed to parse"})

		m.chunksCommitted = prometheus.NewCounter(prometheus.CounterOpts{Name: "coreindex_chunks_committed_total", Help: "Persistence chunks committed"})
		m.contentionRetries = prometheus.NewCounter(prometheus.CounterOpts{Name: "coreindex_contention_retries_total", Help: "Write retries due to a busy store"})
		m.contentionFailed = prometheus.NewCounter(prometheus.CounterOpts{Name: "coreindex_contention_failed_total", Help: "Writes that exhausted retry and surfaced ContentionError"})
		m.aggressiveFallback = prometheus.NewCounter(prometheus.CounterOpts{Name: "coreindex_aggressive_fallback_total", Help: "Cold-run aggressive pragma acquisitions that fell back to fast mode"})

		buckets := []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}
		m.parseDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "coreindex_parse_seconds", Help: "Per-file parse duration", Buckets: buckets})
		m.extractDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "coreindex_extract_seconds", Help: "Per-file extraction duration", Buckets: buckets})
		m.chunkDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "coreindex_chunk_commit_seconds", Help: "Chunk commit duration", Buckets: buckets})
		m.queryDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "coreindex_query_seconds", Help: "Query engine call duration", Buckets: buckets}, []string{"op"})

		prometheus.MustRegister(
			m.filesDiscovered, m.filesChanged, m.filesUnchanged, m.filesDeleted, m.filesFailed,
			m.chunksCommitted, m.contentionRetries, m.contentionFailed, m.aggressiveFallback,
			m.parseDuration, m.extractDuration, m.chunkDuration, m.queryDuration,
		)
	})
}

func RecordDiscovered(n int)      { m.init(); m.filesDiscovered.Add(float64(n)) }
func RecordChanged(n int)         { m.init(); m.filesChanged.Add(float64(n)) }
func RecordUnchanged(n int)       { m.init(); m.filesUnchanged.Add(float64(n)) }
func RecordDeleted(n int)         { m.init(); m.filesDeleted.Add(float64(n)) }
func RecordFailed()               { m.init(); m.filesFailed.Inc() }
func RecordChunkCommitted()       { m.init(); m.chunksCommitted.Inc() }
func RecordContentionRetry()      { m.init(); m.contentionRetries.Inc() }
func RecordContentionFailed()     { m.init(); m.contentionFailed.Inc() }
func RecordAggressiveFallback()   { m.init(); m.aggressiveFallback.Inc() }

func ObserveParse(seconds float64)   { m.init(); m.parseDuration.Observe(seconds) }
func ObserveExtract(seconds float64) { m.init(); m.extractDuration.Observe(seconds) }
func ObserveChunk(seconds float64)   { m.init(); m.chunkDuration.Observe(seconds) }
func ObserveQuery(op string, seconds float64) {
	m.init()
	m.queryDuration.WithLabelValues(op).Observe(seconds)
}
