package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/coreindex/internal/config"
	"github.com/standardbeagle/coreindex/internal/store"
	"github.com/standardbeagle/coreindex/internal/types"
)

func newTestPipeline(t *testing.T) (*Pipeline, string) {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default(root)

	st, err := store.Open(filepath.Join(root, ".code-index.db"), 2000)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	return New(root, cfg, st), root
}

func TestIndexDiscoversAndPersistsNewFiles(t *testing.T) {
	p, root := newTestPipeline(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("package main\n\nfunc main() {}\n"), 0o644))

	res, err := p.Index(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Discovered)
	assert.Equal(t, 1, res.Changed)
	assert.Equal(t, 0, res.Unchanged)

	symbols, err := p.Store.FindSymbolsByName(context.Background(), "main", "")
	require.NoError(t, err)
	assert.Len(t, symbols, 1)
}

func TestIndexTreatsUnchangedFilesAsNoOpOnSecondRun(t *testing.T) {
	p, root := newTestPipeline(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("package main\n\nfunc main() {}\n"), 0o644))

	_, err := p.Index(context.Background())
	require.NoError(t, err)

	res, err := p.Index(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Changed)
	assert.Equal(t, 1, res.Unchanged)
}

func TestIndexRemovesRowsForDeletedFiles(t *testing.T) {
	p, root := newTestPipeline(t)
	path := filepath.Join(root, "gone.go")
	require.NoError(t, os.WriteFile(path, []byte("package main\n\nfunc Gone() {}\n"), 0o644))

	_, err := p.Index(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.Remove(path))

	res, err := p.Index(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Removed)

	symbols, err := p.Store.FindSymbolsByName(context.Background(), "Gone", "")
	require.NoError(t, err)
	assert.Empty(t, symbols)
}

func TestIndexTreatsMtimeOnlyChangeAsMetadataRefreshNotAReindex(t *testing.T) {
	p, root := newTestPipeline(t)
	path := filepath.Join(root, "main.go")
	content := []byte("package main\n\nfunc main() {}\n")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	_, err := p.Index(context.Background())
	require.NoError(t, err)

	before, err := p.Store.FindSymbolsByName(context.Background(), "main", "")
	require.NoError(t, err)
	require.Len(t, before, 1)
	beforeID := before[0].ID

	// Rewrite identical bytes so mtime and inode metadata move but the
	// content hash does not, simulating a touch or checkout.
	later := time.Now().Add(time.Hour)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	require.NoError(t, os.Chtimes(path, later, later))

	res, err := p.Index(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Changed, "a hash-identical rewrite must be classified as metadata refresh, not a real change")
	assert.Equal(t, 1, res.Unchanged)

	after, err := p.Store.FindSymbolsByName(context.Background(), "main", "")
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, beforeID, after[0].ID, "symbol identity must survive a run that leaves file content unchanged")
}

func TestIndexTracksOversizedFilesInsteadOfDroppingOrPurgingThem(t *testing.T) {
	p, root := newTestPipeline(t)
	p.Cfg.Index.MaxFileSize = 20
	path := filepath.Join(root, "big.go")
	require.NoError(t, os.WriteFile(path, []byte("package main\n\nfunc Big() {}\n"), 0o644))

	res, err := p.Index(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Discovered)
	assert.Equal(t, 1, res.Failed, "an oversized file is tracked via a ParseError placeholder, not silently skipped")
	assert.Equal(t, 0, res.Removed)

	files, err := p.Store.GetTrackedFiles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"big.go"}, files, "an oversized file must remain a tracked File row")

	// A second run over the same still-oversized file must not treat it
	// as deleted just because it can never be "unchanged".
	res2, err := p.Index(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res2.Removed)
	files2, err := p.Store.GetTrackedFiles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"big.go"}, files2)
}

func TestIndexGrowingAFilePastMaxSizeKeepsItTracked(t *testing.T) {
	p, root := newTestPipeline(t)
	p.Cfg.Index.MaxFileSize = 100
	path := filepath.Join(root, "grows.go")
	require.NoError(t, os.WriteFile(path, []byte("package main\n\nfunc Keep() {}\n"), 0o644))

	_, err := p.Index(context.Background())
	require.NoError(t, err)

	symbols, err := p.Store.FindSymbolsByName(context.Background(), "Keep", "")
	require.NoError(t, err)
	require.Len(t, symbols, 1)

	grown := []byte("package main\n\nfunc Keep() {\n\t// " + string(make([]byte, 256)) + "\n}\n")
	require.NoError(t, os.WriteFile(path, grown, 0o644))

	res, err := p.Index(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Removed, "a file that merely grew past the cap must not be treated as removed")

	files, err := p.Store.GetTrackedFiles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"grows.go"}, files, "the file row must survive, even though the file is no longer parsed")
}

func TestIndexSingleReprocessesOneFileOutsideAFullWalk(t *testing.T) {
	p, root := newTestPipeline(t)
	path := filepath.Join(root, "single.go")
	require.NoError(t, os.WriteFile(path, []byte("package main\n\nfunc Solo() {}\n"), 0o644))

	err := p.IndexSingle(context.Background(), "single.go", path)
	require.NoError(t, err)

	symbols, err := p.Store.FindSymbolsByName(context.Background(), "Solo", "")
	require.NoError(t, err)
	assert.Len(t, symbols, 1)
}

func TestForgetRemovesTrackedRowsWithoutTouchingDisk(t *testing.T) {
	p, root := newTestPipeline(t)
	path := filepath.Join(root, "tracked.go")
	require.NoError(t, os.WriteFile(path, []byte("package main\n\nfunc Tracked() {}\n"), 0o644))

	require.NoError(t, p.IndexSingle(context.Background(), "tracked.go", path))
	require.NoError(t, p.Forget(context.Background(), "tracked.go"))

	symbols, err := p.Store.FindSymbolsByName(context.Background(), "Tracked", "")
	require.NoError(t, err)
	assert.Empty(t, symbols)

	_, statErr := os.Stat(path)
	assert.NoError(t, statErr, "Forget must not delete the file from disk")
}

func TestChunkStringsSplitsAtMaxFiles(t *testing.T) {
	chunks := chunkStrings([]string{"a", "b", "c", "d", "e"}, 2)
	require.Len(t, chunks, 3)
	assert.Equal(t, []string{"a", "b"}, chunks[0])
	assert.Equal(t, []string{"e"}, chunks[2])
}

func TestChunkStringsDefaultsWhenMaxFilesIsZero(t *testing.T) {
	chunks := chunkStrings([]string{"a", "b"}, 0)
	require.Len(t, chunks, 1)
}

func TestChunkResultsSplitsOnFileCountOrSymbolBudget(t *testing.T) {
	results := []types.ExtractionResult{
		{File: "a", Symbols: make([]types.Symbol, 3)},
		{File: "b", Symbols: make([]types.Symbol, 3)},
		{File: "c", Symbols: make([]types.Symbol, 3)},
	}
	chunks := chunkResults(results, 256, 5)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 1)
	assert.Len(t, chunks[1], 1)
}

func TestHasPublicSymbolTreatsNilVisibilityAsPublic(t *testing.T) {
	assert.True(t, hasPublicSymbol([]types.Symbol{{Visibility: nil}}))

	priv := types.VisibilityPrivate
	assert.False(t, hasPublicSymbol([]types.Symbol{{Visibility: &priv}}))
}

func TestExtOfFindsExtensionWithoutCrossingPathSeparator(t *testing.T) {
	assert.Equal(t, ".go", extOf("internal/pipeline/pipeline.go"))
	assert.Equal(t, "", extOf("Makefile"))
	assert.Equal(t, "", extOf("dir.with.dots/file"))
}

func TestProfileForRestoresToFastWhenEitherFlagIsSet(t *testing.T) {
	assert.Equal(t, store.ProfileFast, profileFor(config.Store{AggressiveColdRun: true}))
	assert.Equal(t, store.ProfileFast, profileFor(config.Store{FastMode: true}))
	assert.Equal(t, store.ProfileSafe, profileFor(config.Store{}))
}
