// Package parsercache implements the Parser Cache: it turns
// (language, source bytes, optional previous tree) into a syntax tree.
//
// A Cache is per-worker, never shared: the design note "a per-worker
// parser value initialized once by the thread pool's worker-init hook"
// is realized by the Pipeline keeping at most one Cache per worker slot and
// reusing it for every file that slot processes, lazily instantiating
// one *sitter.Parser per language the worker actually encounters.
package parsercache

import (
	"fmt"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/coreindex/internal/registry"
)

// Cache owns one tree-sitter parser per language for the lifetime of a
// single worker. It is not safe for concurrent use; each Pipeline worker
// must have its own.
type Cache struct {
	parsers map[string]*sitter.Parser
}

// New returns an empty, worker-local Cache.
func New() *Cache {
	return &Cache{parsers: make(map[string]*sitter.Parser)}
}

// Close releases every parser the cache lazily created.
func (c *Cache) Close() {
	for _, p := range c.parsers {
		p.Close()
	}
	c.parsers = nil
}

func (c *Cache) parserFor(lang *registry.Language) (*sitter.Parser, error) {
	if p, ok := c.parsers[lang.Name]; ok {
		return p, nil
	}
	p := sitter.NewParser()
	if err := p.SetLanguage(lang.NewLanguage()); err != nil {
		p.Close()
		return nil, fmt.Errorf("set language %s: %w", lang.Name, err)
	}
	c.parsers[lang.Name] = p
	return p, nil
}

// Parse returns a syntax tree for source under the given language. When
// prevTree is non-nil (incremental mode, same worker saw a prior version
// of this file in memory during the current run), it is passed to the
// parser so tree-sitter can reuse unchanged subtrees; cold mode always
// passes nil.
//
// The caller owns the returned tree and must Close it; the cache does not
// retain trees across calls (only the parser itself is cached).
func (c *Cache) Parse(lang *registry.Language, source []byte, prevTree *sitter.Tree) (*sitter.Tree, error) {
	if lang.Query() == nil {
		return nil, fmt.Errorf("language %s has no compiled query, registry init failed", lang.Name)
	}
	p, err := c.parserFor(lang)
	if err != nil {
		return nil, err
	}
	tree := p.Parse(source, prevTree)
	if tree == nil {
		return nil, fmt.Errorf("parser returned no tree for language %s", lang.Name)
	}
	if tree.RootNode().HasError() {
		// A recoverable parse tree (tree-sitter's error-recovery nodes)
		// is not itself a fatal error — only a nil tree is, handled above.
		return tree, nil
	}
	return tree, nil
}
