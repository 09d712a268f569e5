// Package progress implements the shared, lock-free progress handle
// described in the design notes: an immutable handle wrapping atomic
// counters, updated by many workers and read without locks by the CLI
// renderer.
package progress

import (
	"sync/atomic"
	"time"
)

// Handle is {total, processed, started_at} as atomics. The zero value is
// usable but New is preferred so StartedAt reflects run start.
type Handle struct {
	total     atomic.Int64
	processed int64 // atomic
	failed    int64 // atomic
	startedAt atomic.Int64 // UnixNano
	done      atomic.Bool
}

// New returns a Handle with StartedAt set to now.
func New() *Handle {
	h := &Handle{}
	h.startedAt.Store(time.Now().UnixNano())
	return h
}

// SetTotal records the total unit count for this run (e.g. discovered files).
func (h *Handle) SetTotal(total int) {
	h.total.Store(int64(total))
}

// IncProcessed records one more completed unit.
func (h *Handle) IncProcessed() {
	atomic.AddInt64(&h.processed, 1)
}

// IncFailed records one more unit that failed (still counted as processed
// by the Pipeline, since a per-file parse failure is tracked, not retried
// every run).
func (h *Handle) IncFailed() {
	atomic.AddInt64(&h.failed, 1)
}

// Finish marks the run complete.
func (h *Handle) Finish() {
	h.done.Store(true)
}

// Snapshot is a point-in-time read of the handle, safe to pass around.
type Snapshot struct {
	Total      int
	Processed  int
	Failed     int
	StartedAt  time.Time
	Done       bool
	Elapsed    time.Duration
	Throughput float64 // units/sec
	ETA        time.Duration
}

// Read takes a lock-free snapshot and derives throughput/ETA.
func (h *Handle) Read() Snapshot {
	total := int(h.total.Load())
	processed := int(atomic.LoadInt64(&h.processed))
	failed := int(atomic.LoadInt64(&h.failed))
	started := time.Unix(0, h.startedAt.Load())
	elapsed := time.Since(started)

	s := Snapshot{
		Total:     total,
		Processed: processed,
		Failed:    failed,
		StartedAt: started,
		Done:      h.done.Load(),
		Elapsed:   elapsed,
	}
	if elapsed > 0 {
		s.Throughput = float64(processed) / elapsed.Seconds()
	}
	if s.Throughput > 0 && total > processed {
		remaining := total - processed
		s.ETA = time.Duration(float64(remaining)/s.Throughput) * time.Second
	}
	return s
}
