// Package walker implements the Walker: deterministic file discovery
// under a root, honoring the configured include/exclude globs, skipping
// symlink cycles, and handing back only files whose extension the
// registry recognizes.
//
// The scan is a single filepath.Walk pass with early directory pruning
// and a visited-real-path set to break symlink loops.
package walker

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/standardbeagle/coreindex/internal/registry"
)

// File is one discovered, recognized source file.
type File struct {
	Path      string // absolute path
	RelPath   string // slash-separated, relative to root
	Language  string
	Size      int64
	ModTime   int64 // UnixNano
	Oversized bool  // exceeds Options.MaxFileSize; still tracked, never parsed
}

// Options controls which files Walk returns.
type Options struct {
	Include         []string
	Exclude         []string
	MaxFileSize     int64
	FollowSymlinks  bool
}

// Walk returns every recognized source file under root, sorted by
// RelPath so repeated runs over unchanged input produce the same order.
func Walk(root string, opts Options) ([]File, error) {
	var out []File
	visitedDirs := make(map[string]bool)

	err := filepath.Walk(root, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return nil // best-effort: skip unreadable entries, don't abort the run
		}

		if info.IsDir() {
			if path == root {
				return nil
			}
			real, err := filepath.EvalSymlinks(path)
			if err != nil {
				return nil
			}
			if visitedDirs[real] {
				return filepath.SkipDir
			}
			visitedDirs[real] = true

			rel, _ := filepath.Rel(root, path)
			rel = filepath.ToSlash(rel)
			if matchesAny(opts.Exclude, rel) || matchesAny(opts.Exclude, rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		if info.Mode()&os.ModeSymlink != 0 {
			if !opts.FollowSymlinks {
				return nil
			}
			resolved, err := filepath.EvalSymlinks(path)
			if err != nil {
				return nil
			}
			fi, err := os.Stat(resolved)
			if err != nil || fi.IsDir() {
				return nil
			}
			info = fi
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)

		if matchesAny(opts.Exclude, rel) {
			return nil
		}
		if len(opts.Include) > 0 && !matchesAny(opts.Include, rel) {
			return nil
		}

		lang, ok := registry.Get(filepath.Ext(path))
		if !ok {
			return nil
		}

		// An oversized file is still reported (so the Pipeline can keep it
		// tracked, rather than mistaking it for a deleted file) but flagged
		// so the caller skips parsing it.
		oversized := opts.MaxFileSize > 0 && info.Size() > opts.MaxFileSize

		out = append(out, File{
			Path:      path,
			RelPath:   rel,
			Language:  lang.Name,
			Size:      info.Size(),
			ModTime:   info.ModTime().UnixNano(),
			Oversized: oversized,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].RelPath < out[j].RelPath })
	return out, nil
}

func matchesAny(patterns []string, path string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, path); ok {
			return true
		}
	}
	return false
}
