package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/coreindex/internal/parsercache"
	"github.com/standardbeagle/coreindex/internal/registry"
	"github.com/standardbeagle/coreindex/internal/types"
)

func extractGo(t *testing.T, source string) types.ExtractionResult {
	t.Helper()
	lang, ok := registry.Get(".go")
	require.True(t, ok)

	c := parsercache.New()
	defer c.Close()

	tree, err := c.Parse(lang, []byte(source), nil)
	require.NoError(t, err)
	defer tree.Close()

	return Extract(lang, "example.go", []byte(source), tree)
}

func extractLang(t *testing.T, ext, source string) types.ExtractionResult {
	t.Helper()
	lang, ok := registry.Get(ext)
	require.True(t, ok)

	c := parsercache.New()
	defer c.Close()

	tree, err := c.Parse(lang, []byte(source), nil)
	require.NoError(t, err)
	defer tree.Close()

	return Extract(lang, "example"+ext, []byte(source), tree)
}

func findSymbol(result types.ExtractionResult, name string) *types.Symbol {
	for i := range result.Symbols {
		if result.Symbols[i].Name == name {
			return &result.Symbols[i]
		}
	}
	return nil
}

func TestExtractFindsTopLevelFunctionAndCall(t *testing.T) {
	src := `package main

func helper() {}

func main() {
	helper()
}
`
	result := extractGo(t, src)

	helper := findSymbol(result, "helper")
	main := findSymbol(result, "main")
	require.NotNil(t, helper)
	require.NotNil(t, main)
	assert.Equal(t, types.KindFunction, helper.Kind)
	assert.Equal(t, types.KindFunction, main.Kind)
	assert.Nil(t, main.ParentID)

	var call *types.CallEdge
	for i := range result.CallEdges {
		if result.CallEdges[i].CalleeName == "helper" {
			call = &result.CallEdges[i]
		}
	}
	require.NotNil(t, call)
	assert.Equal(t, types.ConfidenceCertain, call.Confidence)
	require.NotNil(t, call.CalleeID)
	assert.Equal(t, helper.ID, *call.CalleeID)
	assert.Equal(t, main.ID, call.CallerID)
}

func TestExtractAssignsMethodContainmentAndQualifiedName(t *testing.T) {
	src := `package main

type Greeter struct{}

func (g *Greeter) Greet() {
	g.log()
}
`
	result := extractGo(t, src)

	greeter := findSymbol(result, "Greeter")
	greet := findSymbol(result, "Greet")
	require.NotNil(t, greeter)
	require.NotNil(t, greet)

	require.NotNil(t, greet.ParentID)
	assert.Equal(t, greeter.ID, *greet.ParentID)
	assert.Equal(t, "Greeter.Greet", greet.QualifiedName)
}

func TestExtractClassifiesReceiverCallAsPossible(t *testing.T) {
	src := `package main

type Greeter struct{}

func (g *Greeter) Greet() {
	g.log()
}
`
	result := extractGo(t, src)

	var call *types.CallEdge
	for i := range result.CallEdges {
		if result.CallEdges[i].CalleeName == "log" {
			call = &result.CallEdges[i]
		}
	}
	require.NotNil(t, call)
	assert.Equal(t, types.ConfidencePossible, call.Confidence)
	require.NotNil(t, call.Reason)
	assert.Equal(t, types.ReasonExternalLibrary, *call.Reason)
}

func TestExtractClassifiesCallToUnknownCalleeAsExternal(t *testing.T) {
	src := `package main

func main() {
	undefinedHelper()
}
`
	result := extractGo(t, src)

	var call *types.CallEdge
	for i := range result.CallEdges {
		if result.CallEdges[i].CalleeName == "undefinedHelper" {
			call = &result.CallEdges[i]
		}
	}
	require.NotNil(t, call)
	assert.Equal(t, types.ConfidencePossible, call.Confidence)
	require.NotNil(t, call.Reason)
	assert.Equal(t, types.ReasonExternalLibrary, *call.Reason)
}

func TestExtractClassifiesMultipleCandidatesAsPossible(t *testing.T) {
	src := `package main

func dup() {}

type T struct{}

func (t *T) dup() {}

func main() {
	dup()
}
`
	result := extractGo(t, src)

	var call *types.CallEdge
	for i := range result.CallEdges {
		if result.CallEdges[i].CalleeName == "dup" {
			call = &result.CallEdges[i]
		}
	}
	require.NotNil(t, call)
	assert.Equal(t, types.ConfidencePossible, call.Confidence)
	require.NotNil(t, call.Reason)
	assert.Equal(t, types.ReasonMultipleCandidates, *call.Reason)
}

func TestExtractRecordsImportsAndPathIsUnquoted(t *testing.T) {
	src := `package main

import "fmt"

func main() {}
`
	result := extractGo(t, src)

	require.Len(t, result.Imports, 1)
	assert.Equal(t, "fmt", result.Imports[0].Path)
	assert.Equal(t, types.ImportModule, result.Imports[0].Kind)

	var ref *types.Reference
	for i := range result.References {
		if result.References[i].Kind == types.RefImport {
			ref = &result.References[i]
		}
	}
	require.NotNil(t, ref)
	assert.Equal(t, "fmt", ref.TargetName)
}

func TestExtractEmitsTypeUseReferenceForAParameterTypeOccurrence(t *testing.T) {
	src := `package main

type Widget struct{}

func process(w Widget) {}
`
	result := extractGo(t, src)

	widget := findSymbol(result, "Widget")
	require.NotNil(t, widget)

	var typeUses []types.Reference
	for _, r := range result.References {
		if r.Kind == types.RefTypeUse && r.TargetName == "Widget" {
			typeUses = append(typeUses, r)
		}
	}
	require.Len(t, typeUses, 1, "the parameter's type occurrence must be reported, but not the struct's own declaration")
	assert.NotEqual(t, widget.Offset, typeUses[0].Offset)
}

func TestExtractEmitsFieldAccessReferenceForAFieldUsedOutsideItsDeclaration(t *testing.T) {
	src := `class Widget {
    int count;
    void reset() {
        this.count = 0;
    }
}
`
	result := extractLang(t, ".java", src)

	field := findSymbol(result, "count")
	require.NotNil(t, field)
	assert.Equal(t, types.KindField, field.Kind)

	var fieldUses []types.Reference
	for _, r := range result.References {
		if r.Kind == types.RefFieldAccess && r.TargetName == "count" {
			fieldUses = append(fieldUses, r)
		}
	}
	require.Len(t, fieldUses, 1, "the this.count use site must be reported, but not the field's own declaration")
	assert.NotEqual(t, field.Offset, fieldUses[0].Offset)
}

func TestExtractBuildsFileScopeAndNestedContainerScope(t *testing.T) {
	src := `package main

type Box struct{}

func (b *Box) Open() {
	x := 1
	_ = x
}
`
	result := extractGo(t, src)

	require.NotEmpty(t, result.Scopes)
	fileScope := result.Scopes[0]
	assert.Equal(t, "file", fileScope.Kind)
	assert.Nil(t, fileScope.ParentID)

	open := findSymbol(result, "Open")
	require.NotNil(t, open)
	require.Equal(t, fileScope.ID, open.ScopeID, "a Go method is declared at file level, outside its receiver type's body")
}

func TestExtractHigherOrderCallUsesParameterName(t *testing.T) {
	src := `package main

func run(fn func()) {
	fn()
}
`
	result := extractGo(t, src)

	var call *types.CallEdge
	for i := range result.CallEdges {
		if result.CallEdges[i].CalleeName == "fn" {
			call = &result.CallEdges[i]
		}
	}
	require.NotNil(t, call)
	assert.Equal(t, types.ConfidencePossible, call.Confidence)
	require.NotNil(t, call.Reason)
	assert.Equal(t, types.ReasonHigherOrderFunc, *call.Reason)
}

func TestExtractLeadingCommentBecomesDoc(t *testing.T) {
	src := `package main

// Helper does the thing.
func Helper() {}
`
	result := extractGo(t, src)

	helper := findSymbol(result, "Helper")
	require.NotNil(t, helper)
	require.NotNil(t, helper.Doc)
	assert.Contains(t, *helper.Doc, "Helper does the thing.")
}

func TestExtractAnonymousLiteralGetsPlaceholderName(t *testing.T) {
	src := `package main

var f = func() {
	_ = 1
}

func main() {
	_ = f
}
`
	result := extractGo(t, src)

	var anon *types.Symbol
	for i := range result.Symbols {
		if result.Symbols[i].Name == "<anonymous>" {
			anon = &result.Symbols[i]
		}
	}
	require.NotNil(t, anon)
	assert.Equal(t, types.KindFunction, anon.Kind)
}

func TestExtractOnEmptyFileReturnsNoSymbols(t *testing.T) {
	result := extractGo(t, "package main\n")
	assert.Equal(t, "go", result.Language)
	assert.Equal(t, "example.go", result.File)
	assert.Empty(t, result.Symbols)
}
