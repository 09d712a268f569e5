// Package types holds the value types shared across the indexing pipeline
// and the query engine: the extraction data model (symbols, references,
// imports, scopes, call edges, file records) plus the metadata/tag
// overlay.
package types

import "time"

// SymbolKind enumerates the definition-site kinds the extractor recognizes.
// The set intentionally spans the constructs found across the registry's
// languages rather than any single one of them.
type SymbolKind string

const (
	KindFunction     SymbolKind = "function"
	KindMethod       SymbolKind = "method"
	KindClass        SymbolKind = "class"
	KindStruct       SymbolKind = "struct"
	KindInterface    SymbolKind = "interface"
	KindTrait        SymbolKind = "trait"
	KindEnum         SymbolKind = "enum"
	KindEnumMember   SymbolKind = "enum_member"
	KindTypeAlias    SymbolKind = "type_alias"
	KindConstant     SymbolKind = "constant"
	KindVariable     SymbolKind = "variable"
	KindField        SymbolKind = "field"
	KindModule       SymbolKind = "module"
	KindNamespace    SymbolKind = "namespace"
	KindMacro        SymbolKind = "macro"
)

// Visibility is optional: languages without a visibility keyword (most
// dynamically-typed ones) leave a symbol's Visibility nil.
type Visibility string

const (
	VisibilityPublic    Visibility = "public"
	VisibilityProtected Visibility = "protected"
	VisibilityPrivate   Visibility = "private"
	VisibilityInternal  Visibility = "internal"
)

// ReferenceKind classifies a use site.
type ReferenceKind string

const (
	RefCall        ReferenceKind = "call"
	RefTypeUse     ReferenceKind = "type_use"
	RefImport      ReferenceKind = "import"
	RefExtend      ReferenceKind = "extend"
	RefFieldAccess ReferenceKind = "field_access"
)

// ImportKind classifies an import edge.
type ImportKind string

const (
	ImportModule   ImportKind = "module"
	ImportNamed    ImportKind = "named"
	ImportWildcard ImportKind = "wildcard"
	ImportRelative ImportKind = "relative"
)

// Confidence tags a call edge as statically certain or merely possible.
type Confidence string

const (
	ConfidenceCertain  Confidence = "certain"
	ConfidencePossible Confidence = "possible"
)

// UncertaintyReason explains why a call edge is only Possible.
type UncertaintyReason string

const (
	ReasonVirtualDispatch    UncertaintyReason = "virtual_dispatch"
	ReasonDynamicReceiver    UncertaintyReason = "dynamic_receiver"
	ReasonMultipleCandidates UncertaintyReason = "multiple_candidates"
	ReasonExternalLibrary    UncertaintyReason = "external_library"
	ReasonHigherOrderFunc    UncertaintyReason = "higher_order_function"
)

// Provenance records how a FileMeta row came to exist.
type Provenance string

const (
	ProvenanceSidecar  Provenance = "sidecar"
	ProvenanceExplicit Provenance = "explicit"
	ProvenanceInferred Provenance = "inferred"
)

// Stability mirrors the sidecar's stability field.
type Stability string

const (
	StabilityExperimental Stability = "experimental"
	StabilityEvolving     Stability = "evolving"
	StabilityStable       Stability = "stable"
	StabilityFrozen       Stability = "frozen"
)

// Offset is a half-open byte range [Start, End) into a file's bytes.
type Offset struct {
	Start int
	End   int
}

// Position is a 1-based line/column pair.
type Position struct {
	Line   int
	Column int
}

// FileRecord is the tracking row for one indexed path.
type FileRecord struct {
	Path         string
	Language     string
	ContentHash  uint64
	Size         int64
	ModTimeNanos int64
	SymbolCount  int
}

// Symbol is a definition site.
type Symbol struct {
	ID              int64
	Name            string
	Kind            SymbolKind
	File            string
	Offset          Offset
	Start           Position
	End             Position
	Language        string
	Visibility      *Visibility
	Signature       *string
	Doc             *string
	ParentID        *int64
	ScopeID         int64
	QualifiedName   string
	TypeParams      []string // stored as JSON in the store
	Params          []Param  // stored as JSON in the store
	ReturnType      *string
}

// Param is one entry of a symbol's typed parameter list.
type Param struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// Reference is a use site of a name.
type Reference struct {
	ID             int64
	File           string
	Offset         Offset
	Start          Position
	Kind           ReferenceKind
	TargetName     string
	TargetSymbolID *int64
	CallerSymbolID *int64 // set for Call references, feeds the call graph
}

// Import is a directed file -> module/path edge.
type Import struct {
	ID     int64
	File   string
	Path   string
	Kind   ImportKind
	Offset Offset
}

// Scope is a node of a per-file lexical tree.
type Scope struct {
	ID       int64
	File     string
	ParentID *int64
	Kind     string
	Name     *string
	Offset   Offset
}

// CallEdge is a directed caller -> callee relation.
type CallEdge struct {
	ID          int64
	CallerID    int64
	CalleeName  string
	CalleeID    *int64
	Confidence  Confidence
	Reason      *UncertaintyReason
}

// ExtractionResult is everything the Extractor produces for one file.
type ExtractionResult struct {
	File        string
	Language    string
	ContentHash uint64
	Size        int64
	ModTimeNanos int64
	Symbols     []Symbol
	References  []Reference
	Imports     []Import
	Scopes      []Scope
	CallEdges   []CallEdge
	// ParseFailed indicates the grammar reported a fatal parse failure;
	// the result is still tracked (empty extraction) so the file is not
	// retried on every run.
	ParseFailed bool
	ParseError  error
}

// FileMeta is the optional per-file metadata/tags layer.
type FileMeta struct {
	Path         string
	OneLine      string
	Purpose      string
	Capabilities []string
	Invariants   []string
	NonGoals     []string
	SecurityNotes []string
	Owner        string
	Stability    Stability
	ExportedHash uint64
	Provenance   Provenance
	Confidence   float64
}

// Tag is a (path, tag, confidence) row.
type Tag struct {
	Path       string
	Name       string
	Confidence float64
}

// TagRuleEntry maps a glob pattern to a set of tags with a confidence.
type TagRuleEntry struct {
	Pattern    string
	Tags       []string
	Confidence float64
}

// TagDictEntry is one normalized vocabulary entry.
type TagDictEntry struct {
	Category  string
	Canonical string
	Synonyms  []string
}

// Stats is the result of get_stats.
type Stats struct {
	TotalFiles      int
	TotalSymbols    int
	ByKind          map[SymbolKind]int
	ByLanguage      map[string]int
	ByLanguageKind  map[string]map[SymbolKind]int
	RowCounts       map[string]int
}

// now exists so call sites needing "time of extraction" can be mocked in
// tests without reaching for time.Now directly.
var Now = time.Now
