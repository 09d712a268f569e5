package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSeedsBalancedProfileAndExcludes(t *testing.T) {
	cfg := Default(t.TempDir())
	assert.Equal(t, ProfileBalanced, cfg.Index.Profile)
	assert.Contains(t, cfg.Exclude, ".git/**")
	assert.Equal(t, 0.7, cfg.Search.FuzzyThreshold)
}

func TestLoadWithoutFileReturnsDefault(t *testing.T) {
	root := t.TempDir()
	cfg, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, ProfileBalanced, cfg.Index.Profile)
}

func TestLoadOverlaysKDLFile(t *testing.T) {
	root := t.TempDir()
	kdl := `
project {
	name "demo"
}
index {
	profile "max"
	thread_count 4
	watch_debounce_ms 50
}
store {
	fast_mode true
	busy_timeout_ms 2000
}
search {
	fuzzy_threshold 0.85
	max_per_directory 5
}
exclude "vendor/**" "tmp/**"
`
	require.NoError(t, os.WriteFile(filepath.Join(root, ".coreindex.kdl"), []byte(kdl), 0o644))

	cfg, err := Load(root)
	require.NoError(t, err)

	assert.Equal(t, "demo", cfg.Project.Name)
	assert.Equal(t, ProfileMax, cfg.Index.Profile)
	assert.Equal(t, 4, cfg.Index.ThreadCount)
	assert.Equal(t, 50, cfg.Index.WatchDebounceMs)
	assert.True(t, cfg.Store.FastMode)
	assert.Equal(t, 2000, cfg.Store.BusyTimeoutMs)
	assert.Equal(t, 0.85, cfg.Search.FuzzyThreshold)
	assert.Equal(t, 5, cfg.Search.MaxPerDirectory)
	assert.Equal(t, []string{"vendor/**", "tmp/**"}, cfg.Exclude)
}

func TestLoadRejectsMalformedKDL(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".coreindex.kdl"), []byte("index {"), 0o644))
	_, err := Load(root)
	assert.Error(t, err)
}

func TestDBPathDefaultsUnderRoot(t *testing.T) {
	root := t.TempDir()
	cfg := Default(root)
	assert.Equal(t, filepath.Join(cfg.Project.Root, ".code-index.db"), cfg.DBPath())
}

func TestDBPathHonorsRelativeOverride(t *testing.T) {
	root := t.TempDir()
	cfg := Default(root)
	cfg.Store.Path = "custom.db"
	assert.Equal(t, filepath.Join(cfg.Project.Root, "custom.db"), cfg.DBPath())
}

func TestDBPathHonorsAbsoluteOverride(t *testing.T) {
	cfg := Default(t.TempDir())
	cfg.Store.Path = "/tmp/abs.db"
	assert.Equal(t, "/tmp/abs.db", cfg.DBPath())
}

func TestThreadPoolSizeRespectsExplicitOverride(t *testing.T) {
	cfg := Default(t.TempDir())
	cfg.Index.ThreadCount = 7
	assert.Equal(t, 7, cfg.ThreadPoolSize(16))
}

func TestThreadPoolSizeScalesByProfile(t *testing.T) {
	cfg := Default(t.TempDir())
	cfg.Index.Profile = ProfileEco
	assert.Equal(t, 2, cfg.ThreadPoolSize(8))

	cfg.Index.Profile = ProfileMax
	assert.Equal(t, 8, cfg.ThreadPoolSize(8))

	cfg.Index.Profile = ProfileBalanced
	assert.Equal(t, 4, cfg.ThreadPoolSize(8))
}

func TestThreadPoolSizeNeverReturnsZero(t *testing.T) {
	cfg := Default(t.TempDir())
	cfg.Index.Profile = ProfileEco
	assert.Equal(t, 1, cfg.ThreadPoolSize(1))
}
