package walker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestWalkReturnsOnlyRecognizedExtensionsSortedByRelPath(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "b.go", "package b\n")
	writeFile(t, root, "a.go", "package a\n")
	writeFile(t, root, "notes.txt", "not source")

	files, err := Walk(root, Options{})
	require.NoError(t, err)

	require.Len(t, files, 2)
	assert.Equal(t, "a.go", files[0].RelPath)
	assert.Equal(t, "b.go", files[1].RelPath)
	assert.Equal(t, "go", files[0].Language)
}

func TestWalkHonorsExcludeGlobForDirectories(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "vendor/dep.go", "package dep\n")
	writeFile(t, root, "main.go", "package main\n")

	files, err := Walk(root, Options{Exclude: []string{"vendor/**", "vendor"}})
	require.NoError(t, err)

	require.Len(t, files, 1)
	assert.Equal(t, "main.go", files[0].RelPath)
}

func TestWalkHonorsIncludeGlob(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/a.go", "package a\n")
	writeFile(t, root, "tools/b.go", "package b\n")

	files, err := Walk(root, Options{Include: []string{"src/**"}})
	require.NoError(t, err)

	require.Len(t, files, 1)
	assert.Equal(t, "src/a.go", files[0].RelPath)
}

func TestWalkFlagsFilesOverMaxSizeAsOversizedRatherThanDropThem(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "big.go", "package big\n\n// "+string(make([]byte, 64))+"\n")
	writeFile(t, root, "small.go", "package small\n")

	files, err := Walk(root, Options{MaxFileSize: 20})
	require.NoError(t, err)

	require.Len(t, files, 2)
	assert.Equal(t, "big.go", files[0].RelPath)
	assert.True(t, files[0].Oversized)
	assert.Equal(t, "small.go", files[1].RelPath)
	assert.False(t, files[1].Oversized)
}

func TestWalkIgnoresSymlinksByDefault(t *testing.T) {
	root := t.TempDir()
	target := writeFile(t, root, "real.go", "package real\n")
	link := filepath.Join(root, "link.go")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	files, err := Walk(root, Options{FollowSymlinks: false})
	require.NoError(t, err)

	require.Len(t, files, 1)
	assert.Equal(t, "real.go", files[0].RelPath)
}

func TestWalkFollowsSymlinksWhenEnabled(t *testing.T) {
	root := t.TempDir()
	target := writeFile(t, root, "real.go", "package real\n")
	link := filepath.Join(root, "link.go")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	files, err := Walk(root, Options{FollowSymlinks: true})
	require.NoError(t, err)

	assert.Len(t, files, 2)
}

func TestWalkOnEmptyDirReturnsEmptySlice(t *testing.T) {
	root := t.TempDir()
	files, err := Walk(root, Options{})
	require.NoError(t, err)
	assert.Empty(t, files)
}
