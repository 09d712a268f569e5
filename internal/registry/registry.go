// Package registry is the Language Registry: an immutable, process-global
// map from file extension to a (parser-language, query) tuple. It is built
// once at process start and never mutated afterward; callers only ever
// read from it, matching the design note "hot-path extension-to-parser
// lookup... an immutable map built at startup."
//
// Adding a language means adding one entry here; no other package needs to
// change (Walker, Parser Cache and Extractor are all generic over Language).
package registry

import (
	sitter "github.com/tree-sitter/go-tree-sitter"

	tree_sitter_zig "github.com/tree-sitter-grammars/tree-sitter-zig/bindings/go"
	tree_sitter_csharp "github.com/tree-sitter/tree-sitter-c-sharp/bindings/go"
	tree_sitter_cpp "github.com/tree-sitter/tree-sitter-cpp/bindings/go"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_php "github.com/tree-sitter/tree-sitter-php/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// Language is one registry entry: everything the Parser Cache and
// Extractor need to handle files of this language.
type Language struct {
	Name       string
	Extensions []string

	// newLanguage builds a fresh *sitter.Language. The Parser Cache calls
	// this once per worker (worker-init hook), never per file.
	newLanguage func() *sitter.Language

	// Query is the single combined declarative query covering symbol
	// definitions, imports and call-expression sites for this language.
	// A query compile failure at registry-init time leaves the query nil;
	// the language stays registered, so the Walker still yields files with
	// its extensions and the Parser Cache reports each one as a parse
	// failure.
	QuerySource string
	query       *sitter.Query
}

// NewLanguage returns a fresh, unshared *sitter.Language for a worker's
// own Parser Cache entry.
func (l *Language) NewLanguage() *sitter.Language {
	return l.newLanguage()
}

// Query returns the compiled query, or nil if compilation failed.
func (l *Language) Query() *sitter.Query {
	return l.query
}

var byExtension map[string]*Language
var all []*Language

func init() {
	defs := []*Language{
		{Name: "go", Extensions: []string{".go"}, newLanguage: func() *sitter.Language {
			return sitter.NewLanguage(tree_sitter_go.Language())
		}, QuerySource: goQuery},
		{Name: "javascript", Extensions: []string{".js", ".jsx", ".mjs", ".cjs"}, newLanguage: func() *sitter.Language {
			return sitter.NewLanguage(tree_sitter_javascript.Language())
		}, QuerySource: javascriptQuery},
		{Name: "typescript", Extensions: []string{".ts", ".tsx"}, newLanguage: func() *sitter.Language {
			return sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript())
		}, QuerySource: typescriptQuery},
		{Name: "python", Extensions: []string{".py", ".pyi"}, newLanguage: func() *sitter.Language {
			return sitter.NewLanguage(tree_sitter_python.Language())
		}, QuerySource: pythonQuery},
		{Name: "rust", Extensions: []string{".rs"}, newLanguage: func() *sitter.Language {
			return sitter.NewLanguage(tree_sitter_rust.Language())
		}, QuerySource: rustQuery},
		{Name: "java", Extensions: []string{".java"}, newLanguage: func() *sitter.Language {
			return sitter.NewLanguage(tree_sitter_java.Language())
		}, QuerySource: javaQuery},
		{Name: "csharp", Extensions: []string{".cs"}, newLanguage: func() *sitter.Language {
			return sitter.NewLanguage(tree_sitter_csharp.Language())
		}, QuerySource: csharpQuery},
		{Name: "cpp", Extensions: []string{".cpp", ".cc", ".cxx", ".c", ".h", ".hpp"}, newLanguage: func() *sitter.Language {
			return sitter.NewLanguage(tree_sitter_cpp.Language())
		}, QuerySource: cppQuery},
		{Name: "php", Extensions: []string{".php", ".phtml"}, newLanguage: func() *sitter.Language {
			return sitter.NewLanguage(tree_sitter_php.LanguagePHP())
		}, QuerySource: phpQuery},
		{Name: "zig", Extensions: []string{".zig"}, newLanguage: func() *sitter.Language {
			return sitter.NewLanguage(tree_sitter_zig.Language())
		}, QuerySource: zigQuery},
	}

	byExtension = make(map[string]*Language)
	all = make([]*Language, 0, len(defs))
	for _, l := range defs {
		lang := l.newLanguage()
		q, err := sitter.NewQuery(lang, l.QuerySource)
		// tree-sitter's Go binding can return a typed-nil error on success;
		// only treat a nil *Query as a real failure.
		if err == nil && q != nil {
			l.query = q
		}
		all = append(all, l)
		for _, ext := range l.Extensions {
			byExtension[ext] = l
		}
	}
}

// Get looks up the Language registered for a file extension (including
// the leading dot, e.g. ".go"). Reports ok=false for unregistered
// extensions, which the Walker treats as "silently skip".
func Get(ext string) (*Language, bool) {
	l, ok := byExtension[ext]
	return l, ok
}

// All returns every registered language, for enumeration (e.g. CLI
// `status` output, or building the Walker's extension allowlist).
func All() []*Language {
	out := make([]*Language, len(all))
	copy(out, all)
	return out
}

// Extensions returns the full set of extensions the registry recognizes.
func Extensions() []string {
	exts := make([]string, 0, len(byExtension))
	for ext := range byExtension {
		exts = append(exts, ext)
	}
	return exts
}
