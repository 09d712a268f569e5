// Package sidecar reads the optional `.code-indexer.yml` metadata
// overlay: tag rules (glob -> tags with a confidence) and a tag
// dictionary (canonical names with synonyms), unmarshaled directly into
// structs with yaml.v3.
//
// File-level metadata (FileMeta) is only ever materialized for a path
// when that file has at least one exported/public symbol or an explicit
// sidecar entry names it — an unexported, untagged file gets no row at
// all, keeping file_meta's storage growth proportional to what a reader
// could actually want to look up.
package sidecar

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/standardbeagle/coreindex/internal/types"
)

// Document is the on-disk shape of .code-indexer.yml.
type Document struct {
	Rules      []Rule          `yaml:"rules"`
	Dictionary []DictEntry     `yaml:"dictionary"`
	Files      []FileOverride  `yaml:"files"`
}

// Rule maps a glob pattern to a set of tags applied to every matching path.
type Rule struct {
	Pattern    string   `yaml:"pattern"`
	Tags       []string `yaml:"tags"`
	Confidence float64  `yaml:"confidence"`
}

// DictEntry normalizes a vocabulary term and its synonyms so tag matching
// treats them as one canonical tag.
type DictEntry struct {
	Category  string   `yaml:"category"`
	Canonical string   `yaml:"canonical"`
	Synonyms  []string `yaml:"synonyms"`
}

// FileOverride is an explicit, authored metadata block for one path.
type FileOverride struct {
	Path          string   `yaml:"path"`
	OneLine       string   `yaml:"one_line"`
	Purpose       string   `yaml:"purpose"`
	Capabilities  []string `yaml:"capabilities"`
	Invariants    []string `yaml:"invariants"`
	NonGoals      []string `yaml:"non_goals"`
	SecurityNotes []string `yaml:"security_notes"`
	Owner         string   `yaml:"owner"`
	Stability     string   `yaml:"stability"`
}

// Load reads root/.code-indexer.yml. A missing file is not an error — it
// simply yields an empty Document, mirroring config.Load's treatment of a
// missing .coreindex.kdl.
func Load(root string) (*Document, error) {
	data, err := os.ReadFile(filepath.Join(root, ".code-indexer.yml"))
	if os.IsNotExist(err) {
		return &Document{}, nil
	}
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Dictionary is the compiled synonym -> canonical lookup built from a
// Document's Dictionary section.
type Dictionary struct {
	canonicalBySynonym map[string]string
	entries            []DictEntry
}

// BuildDictionary compiles a Document's dictionary entries into a
// case-insensitive synonym lookup.
func BuildDictionary(doc *Document) *Dictionary {
	d := &Dictionary{canonicalBySynonym: make(map[string]string)}
	for _, e := range doc.Dictionary {
		d.entries = append(d.entries, e)
		d.canonicalBySynonym[strings.ToLower(e.Canonical)] = e.Canonical
		for _, syn := range e.Synonyms {
			d.canonicalBySynonym[strings.ToLower(syn)] = e.Canonical
		}
	}
	return d
}

// Expand returns term's canonical form if the dictionary recognizes it as
// a synonym, otherwise term unchanged. Used to normalize a search query's
// words before the fuzzy/full-text pass so "cfg" and "config" hit the
// same results.
func (d *Dictionary) Expand(term string) string {
	if d == nil {
		return term
	}
	if canon, ok := d.canonicalBySynonym[strings.ToLower(term)]; ok {
		return canon
	}
	return term
}

// ExpandQuery normalizes every whitespace-separated word of a query
// string through Expand.
func (d *Dictionary) ExpandQuery(query string) string {
	words := strings.Fields(query)
	for i, w := range words {
		words[i] = d.Expand(w)
	}
	return strings.Join(words, " ")
}

// TagsForPath evaluates every rule against relPath (slash-separated,
// relative to the project root) and returns the union of matched tags.
func TagsForPath(doc *Document, relPath string) []types.Tag {
	var out []types.Tag
	seen := make(map[string]bool)
	for _, rule := range doc.Rules {
		ok, err := doublestar.Match(rule.Pattern, relPath)
		if err != nil || !ok {
			continue
		}
		conf := rule.Confidence
		if conf == 0 {
			conf = 1.0
		}
		for _, tag := range rule.Tags {
			if seen[tag] {
				continue
			}
			seen[tag] = true
			out = append(out, types.Tag{Path: relPath, Name: tag, Confidence: conf})
		}
	}
	return out
}

// OverrideFor returns the explicit FileOverride authored for relPath, if
// any.
func OverrideFor(doc *Document, relPath string) (FileOverride, bool) {
	for _, f := range doc.Files {
		if f.Path == relPath {
			return f, true
		}
	}
	return FileOverride{}, false
}

// ShouldMaterialize reports whether relPath deserves a file_meta row:
// either it has an explicit sidecar override, at least one tag rule
// matched, or the file extracted at least one public/exported symbol.
func ShouldMaterialize(doc *Document, relPath string, hasPublicSymbol bool) bool {
	if _, ok := OverrideFor(doc, relPath); ok {
		return true
	}
	if len(TagsForPath(doc, relPath)) > 0 {
		return true
	}
	return hasPublicSymbol
}

// ToFileMeta converts an explicit override into a types.FileMeta row with
// Provenance set to Explicit.
func (f FileOverride) ToFileMeta() types.FileMeta {
	return types.FileMeta{
		Path:          f.Path,
		OneLine:       f.OneLine,
		Purpose:       f.Purpose,
		Capabilities:  f.Capabilities,
		Invariants:    f.Invariants,
		NonGoals:      f.NonGoals,
		SecurityNotes: f.SecurityNotes,
		Owner:         f.Owner,
		Stability:     types.Stability(f.Stability),
		Provenance:    types.ProvenanceExplicit,
		Confidence:    1.0,
	}
}
