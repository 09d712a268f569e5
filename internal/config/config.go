// Package config loads the indexer's KDL configuration file
// (".coreindex.kdl") via a small hand-rolled walk over the kdl-go
// document model rather than a generic unmarshal, because the shape
// (nested blocks, bare-arg nodes, block-form lists) doesn't map cleanly
// onto struct tags.
package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// Profile selects the Pipeline's worker-pool sizing strategy.
type Profile string

const (
	ProfileEco      Profile = "eco"
	ProfileBalanced Profile = "balanced"
	ProfileMax      Profile = "max"
)

// Config is the full set of knobs the Pipeline, Store, Watcher and Query
// Engine read at startup.
type Config struct {
	Version int
	Project Project
	Index   Index
	Store   Store
	Search  Search
	Include []string
	Exclude []string
}

type Project struct {
	Root string
	Name string
}

type Index struct {
	MaxFileSize      int64
	FollowSymlinks   bool
	RespectGitignore bool
	WatchMode        bool
	WatchDebounceMs  int

	Profile        Profile
	ThreadCount    int // 0 = derive from Profile
	ThrottleMs     int // per-item micro-sleep, 0 disables
	ChunkMaxFiles  int
	ChunkMaxSymbols int
}

type Store struct {
	Path      string // overrides the default "<root>/.code-index.db"
	FastMode  bool
	// AggressiveColdRun requests the one-shot aggressive pragma profile
	// during a cold run (ProfileFast is restored afterward); it is always
	// downgraded automatically if it cannot be acquired.
	AggressiveColdRun bool
	BusyTimeoutMs     int
	MaxRetries        int
}

type Search struct {
	FuzzyThreshold float64
	MaxResults     int
	MaxPerDirectory int
}

// Default returns the baseline configuration applied before any KDL file
// contents are overlaid on top of it.
func Default(root string) *Config {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		absRoot = root
	}
	return &Config{
		Version: 1,
		Project: Project{Root: absRoot},
		Index: Index{
			MaxFileSize:      10 * 1024 * 1024,
			FollowSymlinks:   false,
			RespectGitignore: true,
			WatchDebounceMs:  75,
			Profile:          ProfileBalanced,
			ChunkMaxFiles:    256,
			ChunkMaxSymbols:  100_000,
		},
		Store: Store{
			BusyTimeoutMs: 5000,
			MaxRetries:    5,
		},
		Search: Search{
			FuzzyThreshold:  0.7,
			MaxResults:      100,
			MaxPerDirectory: 0,
		},
		Exclude: []string{
			".git/**", "node_modules/**", "vendor/**", "dist/**", "build/**",
		},
	}
}

// Load reads "<root>/.coreindex.kdl" if present, overlaying it onto
// Default(root). A missing file is not an error.
func Load(root string) (*Config, error) {
	cfg := Default(root)

	kdlPath := filepath.Join(root, ".coreindex.kdl")
	content, err := os.ReadFile(kdlPath)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read .coreindex.kdl: %w", err)
	}

	if err := overlayKDL(cfg, string(content)); err != nil {
		return nil, err
	}
	return cfg, nil
}

func overlayKDL(cfg *Config, content string) error {
	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return fmt.Errorf("parse .coreindex.kdl: %w", err)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "project":
			for _, cn := range n.Children {
				assignSimpleString(cn, "root", func(v string) { cfg.Project.Root = v })
				assignSimpleString(cn, "name", func(v string) { cfg.Project.Name = v })
			}
		case "index":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "max_file_size":
					if v, ok := firstIntArg(cn); ok {
						cfg.Index.MaxFileSize = int64(v)
					}
				case "follow_symlinks":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Index.FollowSymlinks = b
					}
				case "respect_gitignore":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Index.RespectGitignore = b
					}
				case "watch_mode":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Index.WatchMode = b
					}
				case "watch_debounce_ms":
					if v, ok := firstIntArg(cn); ok {
						cfg.Index.WatchDebounceMs = v
					}
				case "profile":
					if s, ok := firstStringArg(cn); ok {
						cfg.Index.Profile = Profile(s)
					}
				case "thread_count":
					if v, ok := firstIntArg(cn); ok {
						cfg.Index.ThreadCount = v
					}
				case "throttle_ms":
					if v, ok := firstIntArg(cn); ok {
						cfg.Index.ThrottleMs = v
					}
				case "chunk_max_files":
					if v, ok := firstIntArg(cn); ok {
						cfg.Index.ChunkMaxFiles = v
					}
				case "chunk_max_symbols":
					if v, ok := firstIntArg(cn); ok {
						cfg.Index.ChunkMaxSymbols = v
					}
				}
			}
		case "store":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "path":
					if s, ok := firstStringArg(cn); ok {
						cfg.Store.Path = s
					}
				case "fast_mode":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Store.FastMode = b
					}
				case "aggressive_cold_run":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Store.AggressiveColdRun = b
					}
				case "busy_timeout_ms":
					if v, ok := firstIntArg(cn); ok {
						cfg.Store.BusyTimeoutMs = v
					}
				case "max_retries":
					if v, ok := firstIntArg(cn); ok {
						cfg.Store.MaxRetries = v
					}
				}
			}
		case "search":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "fuzzy_threshold":
					if v, ok := firstFloatArg(cn); ok {
						cfg.Search.FuzzyThreshold = v
					}
				case "max_results":
					if v, ok := firstIntArg(cn); ok {
						cfg.Search.MaxResults = v
					}
				case "max_per_directory":
					if v, ok := firstIntArg(cn); ok {
						cfg.Search.MaxPerDirectory = v
					}
				}
			}
		case "include":
			cfg.Include = append(cfg.Include, collectStringArgs(n)...)
		case "exclude":
			cfg.Exclude = collectStringArgs(n)
		}
	}
	return nil
}

// --- kdl-go document helpers: walk document.Node directly rather than
// unmarshal into structs. ---

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}

func firstFloatArg(n *document.Node) (float64, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	default:
		log.Printf("warning: invalid numeric value for %q in .coreindex.kdl, got %T", nodeName(n), n.Arguments[0].Value)
		return 0, false
	}
}

func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 && len(n.Children) > 0 {
		out = make([]string, 0, len(n.Children))
		for _, child := range n.Children {
			if s, ok := firstStringArg(child); ok {
				out = append(out, s)
			} else if child.Name != nil {
				if s, ok := child.Name.Value.(string); ok {
					out = append(out, s)
				}
			}
		}
	}
	return out
}

func assignSimpleString(n *document.Node, target string, set func(string)) {
	if nodeName(n) == target {
		if s, ok := firstStringArg(n); ok {
			set(s)
		}
	}
}

// DBPath resolves the effective database path for a configuration.
func (c *Config) DBPath() string {
	if c.Store.Path != "" {
		if filepath.IsAbs(c.Store.Path) {
			return c.Store.Path
		}
		return filepath.Join(c.Project.Root, c.Store.Path)
	}
	return filepath.Join(c.Project.Root, ".code-index.db")
}

// ThreadPoolSize resolves the worker count the Pipeline should use.
func (c *Config) ThreadPoolSize(numCPU int) int {
	if c.Index.ThreadCount > 0 {
		return c.Index.ThreadCount
	}
	switch c.Index.Profile {
	case ProfileEco:
		n := numCPU / 4
		if n < 1 {
			n = 1
		}
		return n
	case ProfileMax:
		return numCPU
	default: // balanced
		n := numCPU / 2
		if n < 1 {
			n = 1
		}
		return n
	}
}
