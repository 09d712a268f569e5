package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/coreindex/internal/config"
	"github.com/standardbeagle/coreindex/internal/pipeline"
	"github.com/standardbeagle/coreindex/internal/store"
)

func newTestWatcher(t *testing.T) (*Watcher, *pipeline.Pipeline, string) {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default(root)
	cfg.Index.WatchDebounceMs = 20

	st, err := store.Open(filepath.Join(root, ".code-index.db"), 2000)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	p := pipeline.New(root, cfg, st)
	w, err := New(cfg, p)
	require.NoError(t, err)

	return w, p, root
}

func TestWatcherIndexesAFileCreatedAfterRunStarts(t *testing.T) {
	w, p, root := newTestWatcher(t)
	w.Run()
	defer w.Stop()

	path := filepath.Join(root, "new.go")
	require.NoError(t, os.WriteFile(path, []byte("package main\n\nfunc Created() {}\n"), 0o644))

	assert.Eventually(t, func() bool {
		symbols, err := p.Store.FindSymbolsByName(context.Background(), "Created", "")
		return err == nil && len(symbols) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatcherForgetsAFileRemovedAfterRunStarts(t *testing.T) {
	w, p, root := newTestWatcher(t)
	path := filepath.Join(root, "gone.go")
	require.NoError(t, os.WriteFile(path, []byte("package main\n\nfunc Gone() {}\n"), 0o644))
	require.NoError(t, p.IndexSingle(context.Background(), "gone.go", path))

	w.Run()
	defer w.Stop()

	require.NoError(t, os.Remove(path))

	assert.Eventually(t, func() bool {
		symbols, err := p.Store.FindSymbolsByName(context.Background(), "Gone", "")
		return err == nil && len(symbols) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStopDropsPendingDebouncedEventsWithoutBlocking(t *testing.T) {
	w, _, root := newTestWatcher(t)
	w.Run()

	require.NoError(t, os.WriteFile(filepath.Join(root, "late.go"), []byte("package main\n"), 0o644))

	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return promptly")
	}
}

func TestShouldIgnoreDirMatchesConfiguredExcludeGlobs(t *testing.T) {
	root := t.TempDir()
	cfg := config.Default(root)
	cfg.Exclude = []string{"vendor/**", "vendor"}

	assert.True(t, shouldIgnoreDir(cfg, filepath.Join(root, "vendor")))
	assert.False(t, shouldIgnoreDir(cfg, filepath.Join(root, "internal")))
}
