// Package pipeline is the orchestration heart of the index: it turns a
// project root into a sequence of discovery, staleness-split,
// parse+extract and chunked-persistence phases.
//
// The bounded worker pool uses a semaphore channel plus
// golang.org/x/sync/errgroup so a single worker's fatal error cancels the
// remaining workers via the shared context instead of every goroutine
// running to completion regardless.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/coreindex/internal/config"
	coreerrors "github.com/standardbeagle/coreindex/internal/errors"
	"github.com/standardbeagle/coreindex/internal/extractor"
	"github.com/standardbeagle/coreindex/internal/metrics"
	"github.com/standardbeagle/coreindex/internal/parsercache"
	"github.com/standardbeagle/coreindex/internal/progress"
	"github.com/standardbeagle/coreindex/internal/registry"
	"github.com/standardbeagle/coreindex/internal/sidecar"
	"github.com/standardbeagle/coreindex/internal/store"
	"github.com/standardbeagle/coreindex/internal/types"
	"github.com/standardbeagle/coreindex/internal/walker"
)

// Pipeline wires the Walker, Parser Cache fleet, Extractor and Store
// together for one project root.
type Pipeline struct {
	Root    string
	Cfg     *config.Config
	Store   *store.Store
	Handle  *progress.Handle
}

// New builds a Pipeline over an already-open Store.
func New(root string, cfg *config.Config, st *store.Store) *Pipeline {
	return &Pipeline{Root: root, Cfg: cfg, Store: st, Handle: progress.New()}
}

// Result summarizes one run of Index.
type Result struct {
	RunID      string
	Discovered int
	Changed    int
	Unchanged  int
	Removed    int
	Failed     int
	Warnings   []error
}

// Index runs a full discovery -> staleness split -> parse+extract ->
// persist cycle over the whole project root. A run with no prior tracked
// files is treated as cold; when store.AggressiveColdRun is set it uses
// the aggressive pragma profile for its duration (restored
// unconditionally afterward).
func (p *Pipeline) Index(ctx context.Context) (*Result, error) {
	runID := uuid.NewString()

	tracked, err := p.Store.GetTrackedFileHashes(ctx)
	if err != nil {
		return nil, err
	}
	isCold := len(tracked) == 0

	var restore func()
	if isCold && p.Cfg.Store.AggressiveColdRun {
		restore, err = p.Store.BeginColdRun(profileFor(p.Cfg.Store))
		if err != nil {
			return nil, err
		}
		defer restore()
	}

	files, err := walker.Walk(p.Root, walker.Options{
		Include:        p.Cfg.Include,
		Exclude:        p.Cfg.Exclude,
		MaxFileSize:    p.Cfg.Index.MaxFileSize,
		FollowSymlinks: p.Cfg.Index.FollowSymlinks,
	})
	if err != nil {
		return nil, coreerrors.IO("walk", err)
	}
	p.Handle.SetTotal(len(files))
	metrics.RecordDiscovered(len(files))

	seen := make(map[string]bool, len(files))
	var changed []walker.File
	var oversized []walker.File
	var unchangedRecords []types.FileRecord
	for _, f := range files {
		seen[f.RelPath] = true

		// Oversized files are never parsed, but they must stay "seen" so
		// the removal pass below never mistakes them for deleted and
		// purges their prior rows outright.
		if f.Oversized {
			oversized = append(oversized, f)
			continue
		}

		prior, ok := tracked[f.RelPath]
		if ok && prior.Size == f.Size && prior.ModTimeNanos == f.ModTime {
			unchangedRecords = append(unchangedRecords, types.FileRecord{Path: f.RelPath, ModTimeNanos: f.ModTime, Size: f.Size})
			continue
		}

		// A (size, mtime) mismatch against a previously tracked file isn't
		// proof the content changed (a touch or checkout can bump mtime
		// alone): read once and compare content hashes before deciding.
		if ok {
			if content, readErr := os.ReadFile(f.Path); readErr == nil {
				if xxhash.Sum64(content) == prior.ContentHash {
					unchangedRecords = append(unchangedRecords, types.FileRecord{Path: f.RelPath, ModTimeNanos: f.ModTime, Size: f.Size})
					continue
				}
			}
		}

		changed = append(changed, f)
	}

	var removed []string
	for path := range tracked {
		if !seen[path] {
			removed = append(removed, path)
		}
	}
	sort.Strings(removed)

	res := &Result{RunID: runID, Discovered: len(files), Unchanged: len(unchangedRecords)}

	sidecarDoc, _ := sidecar.Load(p.Root)

	// Removals commit before additions so a rename (delete old path, add
	// new path) never leaves the new path's rows visible under the old
	// tracking entry between chunks.
	if len(removed) > 0 {
		for _, chunk := range chunkStrings(removed, p.Cfg.Index.ChunkMaxFiles) {
			if err := p.Store.RemoveFilesBatch(ctx, chunk); err != nil {
				return res, err
			}
		}
		res.Removed = len(removed)
	}

	if len(unchangedRecords) > 0 {
		if err := p.Store.UpdateFileTrackingMetadataBatch(ctx, unchangedRecords); err != nil {
			return res, err
		}
		metrics.RecordUnchanged(len(unchangedRecords))
	}

	extractions, warnings := p.extractAll(ctx, changed)
	for _, f := range oversized {
		warn := coreerrors.Parse("oversized_file", fmt.Errorf("file size %d exceeds configured max_file_size %d", f.Size, p.Cfg.Index.MaxFileSize)).WithPath(f.RelPath)
		extractions = append(extractions, types.ExtractionResult{
			File:         f.RelPath,
			Language:     f.Language,
			Size:         f.Size,
			ModTimeNanos: f.ModTime,
			ParseFailed:  true,
			ParseError:   warn,
		})
		warnings = append(warnings, warn)
		metrics.RecordFailed()
	}
	res.Warnings = warnings
	res.Failed = countFailed(extractions)
	res.Changed = len(extractions)
	metrics.RecordChanged(len(extractions))

	for _, chunk := range chunkResults(extractions, p.Cfg.Index.ChunkMaxFiles, p.Cfg.Index.ChunkMaxSymbols) {
		if err := p.Store.AddExtractionResultsBatch(ctx, chunk); err != nil {
			return res, err
		}
		for _, r := range chunk {
			if r.ParseFailed {
				continue
			}
			rel := r.File
			hasPublic := hasPublicSymbol(r.Symbols)
			if sidecarDoc != nil && sidecar.ShouldMaterialize(sidecarDoc, rel, hasPublic) {
				if override, ok := sidecar.OverrideFor(sidecarDoc, rel); ok {
					_ = p.Store.UpsertFileMeta(ctx, override.ToFileMeta())
				}
				tags := sidecar.TagsForPath(sidecarDoc, rel)
				if len(tags) > 0 {
					_ = p.Store.UpsertTagsBatch(ctx, rel, tags)
				}
			}
		}
	}

	p.Handle.Finish()
	return res, nil
}

// IndexSingle reprocesses exactly one path (used by the Watcher on a
// create/write event), bypassing the full walk and staleness split.
func (p *Pipeline) IndexSingle(ctx context.Context, relPath, absPath string) error {
	lang, ok := registry.Get(extOf(relPath))
	if !ok {
		return nil
	}
	content, hash, modNanos, size, err := readHashed(absPath)
	if err != nil {
		return coreerrors.IO("read_single", err).WithPath(relPath)
	}

	cache := parsercache.New()
	defer cache.Close()

	tree, err := cache.Parse(lang, content, nil)
	if err != nil {
		metrics.RecordFailed()
		result := types.ExtractionResult{File: relPath, Language: lang.Name, ContentHash: hash, Size: size, ModTimeNanos: modNanos, ParseFailed: true, ParseError: err}
		return p.Store.AddExtractionResultsBatch(ctx, []types.ExtractionResult{result})
	}
	defer tree.Close()

	result := extractor.Extract(lang, relPath, content, tree)
	result.ContentHash = hash
	result.ModTimeNanos = modNanos
	result.Size = size

	if err := p.Store.RemoveFilesBatch(ctx, []string{relPath}); err != nil {
		return err
	}
	return p.Store.AddExtractionResultsBatch(ctx, []types.ExtractionResult{result})
}

// Forget removes one path's tracked rows without re-indexing, for the
// Watcher's delete handling.
func (p *Pipeline) Forget(ctx context.Context, relPath string) error {
	return p.Store.RemoveFilesBatch(ctx, []string{relPath})
}

func (p *Pipeline) extractAll(ctx context.Context, files []walker.File) ([]types.ExtractionResult, []error) {
	if len(files) == 0 {
		return nil, nil
	}

	workers := p.Cfg.ThreadPoolSize(runtime.NumCPU())
	if workers < 1 {
		workers = 1
	}

	results := make([]types.ExtractionResult, len(files))
	warningsCh := make(chan error, len(files))

	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, workers)
	// A Cache is only taken while holding sem, so at most `workers` of
	// them ever exist; each is handed on to the next file a worker runs.
	caches := make(chan *parsercache.Cache, workers)
	throttle := time.Duration(p.Cfg.Index.ThrottleMs) * time.Millisecond

	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			defer func() { <-sem }()

			var cache *parsercache.Cache
			select {
			case cache = <-caches:
			default:
				cache = parsercache.New()
			}
			defer func() { caches <- cache }()

			result, warn := extractOne(cache, f)
			results[i] = result
			if warn != nil {
				warningsCh <- warn
			}
			p.Handle.IncProcessed()
			if result.ParseFailed {
				p.Handle.IncFailed()
			}
			if throttle > 0 {
				time.Sleep(throttle)
			}
			return nil
		})
	}
	_ = g.Wait()
	close(warningsCh)
	close(caches)
	for c := range caches {
		c.Close()
	}

	var warnings []error
	for w := range warningsCh {
		warnings = append(warnings, w)
	}
	return results, warnings
}

func extractOne(cache *parsercache.Cache, f walker.File) (types.ExtractionResult, error) {
	lang, ok := registry.Get(extOf(f.RelPath))
	if !ok {
		return types.ExtractionResult{}, nil
	}

	content, hash, modNanos, size, err := readHashed(f.Path)
	if err != nil {
		metrics.RecordFailed()
		return types.ExtractionResult{File: f.RelPath, Language: lang.Name, ParseFailed: true, ParseError: err}, coreerrors.IO("read", err).WithPath(f.RelPath)
	}

	start := types.Now()
	tree, err := cache.Parse(lang, content, nil)
	metrics.ObserveParse(types.Now().Sub(start).Seconds())
	if err != nil {
		metrics.RecordFailed()
		warn := coreerrors.Parse("parse", err).WithPath(f.RelPath)
		return types.ExtractionResult{File: f.RelPath, Language: lang.Name, ContentHash: hash, Size: size, ModTimeNanos: modNanos, ParseFailed: true, ParseError: warn}, warn
	}
	defer tree.Close()

	extractStart := types.Now()
	result := extractor.Extract(lang, f.RelPath, content, tree)
	metrics.ObserveExtract(types.Now().Sub(extractStart).Seconds())
	result.ContentHash = hash
	result.ModTimeNanos = modNanos
	result.Size = size
	return result, nil
}

func readHashed(path string) (content []byte, hash uint64, modNanos int64, size int64, err error) {
	content, err = os.ReadFile(path)
	if err != nil {
		return nil, 0, 0, 0, err
	}
	hash = xxhash.Sum64(content)
	info, err := os.Stat(path)
	if err != nil {
		return nil, 0, 0, 0, err
	}
	return content, hash, info.ModTime().UnixNano(), info.Size(), nil
}

func hasPublicSymbol(symbols []types.Symbol) bool {
	for _, s := range symbols {
		if s.Visibility == nil || *s.Visibility == types.VisibilityPublic {
			return true
		}
	}
	return false
}

func countFailed(results []types.ExtractionResult) int {
	n := 0
	for _, r := range results {
		if r.ParseFailed {
			n++
		}
	}
	return n
}

func profileFor(s config.Store) store.Profile {
	if s.AggressiveColdRun {
		return store.ProfileFast
	}
	if s.FastMode {
		return store.ProfileFast
	}
	return store.ProfileSafe
}

func extOf(relPath string) string {
	for i := len(relPath) - 1; i >= 0; i-- {
		if relPath[i] == '.' {
			return relPath[i:]
		}
		if relPath[i] == '/' {
			break
		}
	}
	return ""
}

func chunkStrings(items []string, maxFiles int) [][]string {
	if maxFiles <= 0 {
		maxFiles = 256
	}
	var out [][]string
	for len(items) > 0 {
		n := maxFiles
		if n > len(items) {
			n = len(items)
		}
		out = append(out, items[:n])
		items = items[n:]
	}
	return out
}

// chunkResults bounds each persistence chunk by BOTH file count and
// cumulative symbol count, whichever limit is hit first, so one
// enormous file can't blow a single transaction past a safe size.
func chunkResults(results []types.ExtractionResult, maxFiles, maxSymbols int) [][]types.ExtractionResult {
	if maxFiles <= 0 {
		maxFiles = 256
	}
	if maxSymbols <= 0 {
		maxSymbols = 100000
	}
	var out [][]types.ExtractionResult
	var cur []types.ExtractionResult
	symCount := 0
	flush := func() {
		if len(cur) > 0 {
			out = append(out, cur)
			cur = nil
			symCount = 0
		}
	}
	for _, r := range results {
		if len(cur) >= maxFiles || symCount+len(r.Symbols) > maxSymbols {
			flush()
		}
		cur = append(cur, r)
		symCount += len(r.Symbols)
	}
	flush()
	return out
}
