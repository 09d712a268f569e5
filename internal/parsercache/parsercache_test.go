package parsercache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/coreindex/internal/registry"
)

func TestParseGoSourceProducesATree(t *testing.T) {
	c := New()
	defer c.Close()

	lang, ok := registry.Get(".go")
	require.True(t, ok)

	tree, err := c.Parse(lang, []byte("package main\n\nfunc main() {}\n"), nil)
	require.NoError(t, err)
	require.NotNil(t, tree)
	defer tree.Close()

	assert.False(t, tree.RootNode().HasError())
}

func TestParseReusesParserAcrossCalls(t *testing.T) {
	c := New()
	defer c.Close()

	lang, ok := registry.Get(".go")
	require.True(t, ok)

	tree1, err := c.Parse(lang, []byte("package a\n"), nil)
	require.NoError(t, err)
	tree1.Close()

	// Second call for the same language must not allocate a new parser;
	// parserFor's map lookup hits the cached entry.
	before := len(c.parsers)
	tree2, err := c.Parse(lang, []byte("package b\n"), nil)
	require.NoError(t, err)
	defer tree2.Close()
	assert.Equal(t, before, len(c.parsers))
}

func TestParseToleratesSyntaxErrorsWithoutFailing(t *testing.T) {
	c := New()
	defer c.Close()

	lang, ok := registry.Get(".go")
	require.True(t, ok)

	tree, err := c.Parse(lang, []byte("package main\nfunc ( {{{"), nil)
	require.NoError(t, err)
	require.NotNil(t, tree)
	defer tree.Close()

	assert.True(t, tree.RootNode().HasError())
}

func TestCloseReleasesAllParsers(t *testing.T) {
	c := New()
	lang, ok := registry.Get(".go")
	require.True(t, ok)

	tree, err := c.Parse(lang, []byte("package main\n"), nil)
	require.NoError(t, err)
	tree.Close()

	require.NotEmpty(t, c.parsers)
	c.Close()
	assert.Nil(t, c.parsers)
}
