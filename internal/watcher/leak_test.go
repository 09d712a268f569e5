//go:build leaktests

package watcher

import (
	"testing"

	"go.uber.org/goleak"
)

// TestRunStopLeavesNoGoroutinesBehind guards the processEvents goroutine
// started by Run: Stop must cancel the context, close the fsnotify
// watcher and wait on the WaitGroup before returning.
func TestRunStopLeavesNoGoroutinesBehind(t *testing.T) {
	defer goleak.VerifyNone(t)

	w, _, _ := newTestWatcher(t)
	w.Run()
	w.Stop()
}
