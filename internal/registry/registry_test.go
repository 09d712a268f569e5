package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetKnownExtensionReturnsLanguage(t *testing.T) {
	lang, ok := Get(".go")
	require.True(t, ok)
	assert.Equal(t, "go", lang.Name)
}

func TestGetUnknownExtensionReturnsFalse(t *testing.T) {
	_, ok := Get(".does-not-exist")
	assert.False(t, ok)
}

func TestAllReturnsACopyNotTheLiveSlice(t *testing.T) {
	langs := All()
	require.NotEmpty(t, langs)
	langs[0] = nil

	again := All()
	assert.NotNil(t, again[0])
}

func TestEveryRegisteredLanguageCompiledItsQuery(t *testing.T) {
	for _, lang := range All() {
		t.Run(lang.Name, func(t *testing.T) {
			assert.NotNil(t, lang.Query(), "language %s failed to compile its query", lang.Name)
		})
	}
}

func TestExtensionsCoversAllLanguageExtensions(t *testing.T) {
	exts := Extensions()
	assert.Contains(t, exts, ".go")
	assert.Contains(t, exts, ".py")
	assert.Contains(t, exts, ".rs")
}

func TestNewLanguageReturnsFreshInstance(t *testing.T) {
	lang, ok := Get(".go")
	require.True(t, ok)
	a := lang.NewLanguage()
	b := lang.NewLanguage()
	assert.NotSame(t, a, b)
}
