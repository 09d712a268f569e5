package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func runCLI(t *testing.T, root string, args ...string) (*bytes.Buffer, error) {
	t.Helper()
	out := new(bytes.Buffer)
	app := newApp()
	app.Writer = out
	app.ErrWriter = out
	app.ExitErrHandler = func(c *cli.Context, err error) {}

	full := append([]string{"coreindex", "--root", root}, args...)
	err := app.Run(full)
	return out, err
}

func setupProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte(`package main

func helper() {}

func main() {
	helper()
}
`), 0o644))
	return root
}

func TestIndexThenStatusReportsPersistedCounts(t *testing.T) {
	root := setupProject(t)

	_, err := runCLI(t, root, "index")
	require.NoError(t, err)

	out, err := runCLI(t, root, "status")
	require.NoError(t, err)

	var stats map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &stats))
	assert.EqualValues(t, 1, stats["TotalFiles"])
}

func TestSearchRequiresAQueryArgument(t *testing.T) {
	root := setupProject(t)
	_, err := runCLI(t, root, "search")
	assert.Error(t, err)
}

func TestDefFindsAnIndexedSymbolByExactName(t *testing.T) {
	root := setupProject(t)
	_, err := runCLI(t, root, "index")
	require.NoError(t, err)

	out, err := runCLI(t, root, "def", "helper")
	require.NoError(t, err)

	var symbols []map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &symbols))
	require.Len(t, symbols, 1)
	assert.Equal(t, "helper", symbols[0]["Name"])
}

func TestDiagnosticsFlagsTheUncalledPrivateFunction(t *testing.T) {
	root := setupProject(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "dead.go"), []byte(`package main

func unused() {}
`), 0o644))

	_, err := runCLI(t, root, "index")
	require.NoError(t, err)

	out, err := runCLI(t, root, "diagnostics")
	require.NoError(t, err)

	var candidates []map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &candidates))

	var names []string
	for _, c := range candidates {
		sym := c["Symbol"].(map[string]interface{})
		names = append(names, sym["Name"].(string))
	}
	assert.Contains(t, names, "unused")
}
