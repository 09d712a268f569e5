// Package query implements the read surface over the Store: definition
// lookup, reference lookup, call-graph traversal, file outlines, symbol
// search, and dead-code diagnostics.
//
// Fuzzy scoring uses Jaro-Winkler similarity via hbollon/go-edlib,
// threshold-gated; full-text query normalization stems each query word
// with surgebase/porter2 before the lookup reaches FTS.
package query

import (
	"context"
	"sort"
	"strings"

	"github.com/hbollon/go-edlib"
	"github.com/surgebase/porter2"

	"github.com/standardbeagle/coreindex/internal/config"
	"github.com/standardbeagle/coreindex/internal/metrics"
	"github.com/standardbeagle/coreindex/internal/sidecar"
	"github.com/standardbeagle/coreindex/internal/store"
	"github.com/standardbeagle/coreindex/internal/types"
)

// Engine answers read queries against a Store.
type Engine struct {
	Store *store.Store
	Cfg   *config.Config
	Dict  *sidecar.Dictionary
}

// New builds an Engine. dict may be nil (no synonym expansion).
func New(st *store.Store, cfg *config.Config, dict *sidecar.Dictionary) *Engine {
	return &Engine{Store: st, Cfg: cfg, Dict: dict}
}

// SearchMode selects how SearchSymbols matches name against candidates.
type SearchMode string

const (
	ModeExact    SearchMode = "exact"
	ModeFullText SearchMode = "fulltext"
	ModeFuzzy    SearchMode = "fuzzy"
)

// SearchOptions controls one search_symbols call.
type SearchOptions struct {
	Mode            SearchMode
	Language        string
	Limit           int
	MaxPerDirectory int
}

// FindDefinition returns every symbol named exactly name (a bare
// identifier resolves to possibly many candidates across files; the
// caller picks, same as find_references never guessing).
func (e *Engine) FindDefinition(ctx context.Context, name, file string) ([]types.Symbol, error) {
	defer observe("find_definition")()
	return e.Store.FindSymbolsByName(ctx, name, file)
}

// GetSymbol loads one symbol by id.
func (e *Engine) GetSymbol(ctx context.Context, id int64) (*types.Symbol, error) {
	defer observe("get_symbol")()
	return e.Store.GetSymbol(ctx, id)
}

// FindReferences returns every reference to name across the index.
func (e *Engine) FindReferences(ctx context.Context, name string) ([]types.Reference, error) {
	defer observe("find_references")()
	return e.Store.FindReferences(ctx, name)
}

// GetFileOutline returns every symbol in file in source order.
func (e *Engine) GetFileOutline(ctx context.Context, file string) ([]types.Symbol, error) {
	defer observe("get_file_outline")()
	return e.Store.ListSymbolsByFile(ctx, file)
}

// GetImports returns a file's import edges as stored. The resolve flag has
// no effect: no import is matched to a tracked file or to a symbol.
func (e *Engine) GetImports(ctx context.Context, file string, resolve bool) ([]types.Import, error) {
	defer observe("get_imports")()
	return e.Store.GetImports(ctx, file)
}

// GetStats returns the language x kind cross-tabbed summary.
func (e *Engine) GetStats(ctx context.Context) (*types.Stats, error) {
	defer observe("get_stats")()
	return e.Store.GetStats(ctx)
}

// CallGraphDirection selects which edge direction AnalyzeCallGraph walks.
type CallGraphDirection string

const (
	DirectionCallees CallGraphDirection = "callees" // what this symbol calls
	DirectionCallers CallGraphDirection = "callers" // what calls this symbol
)

// CallGraphNode is one BFS frontier entry in AnalyzeCallGraph's result.
type CallGraphNode struct {
	SymbolID   int64
	Depth      int
	Edge       types.CallEdge
}

// AnalyzeCallGraph performs a breadth-first traversal of the call graph
// starting at rootID, up to maxDepth hops, breaking cycles with a
// visited-id set so a recursive or mutually-recursive call chain
// terminates.
func (e *Engine) AnalyzeCallGraph(ctx context.Context, rootID int64, direction CallGraphDirection, maxDepth int) ([]CallGraphNode, error) {
	defer observe("analyze_call_graph")()
	if maxDepth <= 0 {
		maxDepth = 5
	}

	visited := map[int64]bool{rootID: true}
	frontier := []int64{rootID}
	var out []CallGraphNode

	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var next []int64
		for _, id := range frontier {
			var edges []types.CallEdge
			var err error
			if direction == DirectionCallers {
				edges, err = e.Store.GetCallers(ctx, id)
			} else {
				edges, err = e.Store.GetCallees(ctx, id)
			}
			if err != nil {
				return nil, err
			}
			for _, edge := range edges {
				target := edge.CalleeID
				if direction == DirectionCallers {
					t := edge.CallerID
					target = &t
				}
				if target == nil || visited[*target] {
					continue
				}
				visited[*target] = true
				out = append(out, CallGraphNode{SymbolID: *target, Depth: depth, Edge: edge})
				next = append(next, *target)
			}
		}
		frontier = next
	}
	return out, nil
}

// DeadCodeCandidate is a symbol with zero inbound Certain call edges and
// no matching export/visibility signal.
type DeadCodeCandidate struct {
	Symbol types.Symbol
	Reason string
}

// entryPointNames are top-level symbol names the runtime invokes without
// any indexed call edge pointing at them, so they must never be flagged
// dead regardless of inbound references.
var entryPointNames = map[string]bool{
	"main": true,
	"Main": true,
	"init": true,
}

// isEntryPoint reports whether s is a conventional program entry point:
// a symbol of kind KindFunction named main/Main/init.
// A method named "Main" (a type's own lifecycle hook) is not an entry
// point by this heuristic, since methods carry KindMethod.
func isEntryPoint(s types.Symbol) bool {
	if s.Kind != types.KindFunction {
		return false
	}
	return entryPointNames[s.Name]
}

// deadCodeEligibleKinds are the symbol kinds GetDiagnostics evaluates.
// Callable kinds are checked against inbound call edges; the rest (types
// and fields) can never have a call edge pointing at them, so they're
// judged purely on inbound references.
var deadCodeEligibleKinds = map[types.SymbolKind]bool{
	types.KindFunction:  true,
	types.KindMethod:    true,
	types.KindStruct:    true,
	types.KindClass:     true,
	types.KindInterface: true,
	types.KindTrait:     true,
	types.KindEnum:      true,
	types.KindTypeAlias: true,
	types.KindField:     true,
}

// GetDiagnostics reports dead-code candidates: functions, methods, types
// and fields with no Certain inbound call edge, no inbound non-call
// reference (TypeUse/FieldAccess/Extend — a type used only as a field's
// type or an interface's embedded clause is still live even though
// nothing ever calls it), and no entry-point status anywhere in the
// index. Only symbols explicitly marked Public or Protected are treated
// as live by visibility alone — a nil Visibility (languages with no
// public/private keyword, e.g. JavaScript or module-scope Python) does
// not grant a free pass; it is still evaluated like any private symbol,
// since silently trusting "we don't know" would make dead-code detection
// useless for most dynamically-typed languages in the registry.
func (e *Engine) GetDiagnostics(ctx context.Context) ([]DeadCodeCandidate, error) {
	defer observe("get_diagnostics")()
	symbols, err := e.Store.ListSymbols(ctx, "", "", 0)
	if err != nil {
		return nil, err
	}

	var out []DeadCodeCandidate
	for _, s := range symbols {
		if !deadCodeEligibleKinds[s.Kind] {
			continue
		}
		if s.Visibility != nil && (*s.Visibility == types.VisibilityPublic || *s.Visibility == types.VisibilityProtected) {
			continue
		}
		if isEntryPoint(s) {
			continue
		}

		var callers []types.CallEdge
		if s.Kind == types.KindFunction || s.Kind == types.KindMethod {
			callers, err = e.Store.GetCallers(ctx, s.ID)
			if err != nil {
				return nil, err
			}
		}
		hasCertainCaller := false
		for _, c := range callers {
			if c.Confidence == types.ConfidenceCertain {
				hasCertainCaller = true
				break
			}
		}
		if hasCertainCaller {
			continue
		}

		refs, err := e.Store.FindReferences(ctx, s.Name)
		if err != nil {
			return nil, err
		}
		hasLiveReference := false
		for _, r := range refs {
			switch r.Kind {
			case types.RefTypeUse, types.RefFieldAccess, types.RefExtend:
				hasLiveReference = true
			}
			if hasLiveReference {
				break
			}
		}
		if hasLiveReference {
			continue
		}

		out = append(out, DeadCodeCandidate{Symbol: s, Reason: "no certain inbound call edge or reference"})
	}
	return out, nil
}

// SearchSymbols is the unified entry point for search_symbols: it
// dispatches on Mode, applies the tag-dictionary synonym expansion before
// matching, and (when MaxPerDirectory > 0) round-robins results across
// directories so one large package cannot crowd out everything else.
func (e *Engine) SearchSymbols(ctx context.Context, query string, opts SearchOptions) ([]types.Symbol, error) {
	defer observe("search_symbols")()
	if opts.Limit <= 0 {
		opts.Limit = e.Cfg.Search.MaxResults
	}
	if opts.MaxPerDirectory <= 0 {
		opts.MaxPerDirectory = e.Cfg.Search.MaxPerDirectory
	}

	expanded := query
	if e.Dict != nil {
		expanded = e.Dict.ExpandQuery(query)
	}

	var results []types.Symbol
	var err error
	switch opts.Mode {
	case ModeFullText:
		results, err = e.Store.SearchSymbolsFTS(ctx, buildFTSQuery(expanded), opts.Limit*4)
	case ModeFuzzy:
		results, err = e.fuzzySearch(ctx, expanded, opts)
	default:
		results, err = e.Store.FindSymbolsByName(ctx, expanded, "")
	}
	if err != nil {
		return nil, err
	}
	if opts.Language != "" {
		results = filterLanguage(results, opts.Language)
	}

	if opts.MaxPerDirectory > 0 {
		results = bucketRoundRobin(results, opts.MaxPerDirectory)
	}
	if opts.Limit > 0 && len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

// fuzzySearch scores every candidate symbol name against query with
// Jaro-Winkler similarity and keeps the ones at or above the configured
// threshold, ranked best-first.
func (e *Engine) fuzzySearch(ctx context.Context, query string, opts SearchOptions) ([]types.Symbol, error) {
	candidates, err := e.Store.ListSymbols(ctx, "", opts.Language, 0)
	if err != nil {
		return nil, err
	}

	threshold := e.Cfg.Search.FuzzyThreshold
	if threshold <= 0 {
		threshold = 0.7
	}

	type scored struct {
		sym   types.Symbol
		score float64
	}
	var matches []scored
	for _, c := range candidates {
		score, simErr := edlib.StringsSimilarity(strings.ToLower(query), strings.ToLower(c.Name), edlib.JaroWinkler)
		if simErr != nil {
			continue
		}
		if float64(score) >= threshold {
			matches = append(matches, scored{sym: c, score: float64(score)})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].score > matches[j].score })

	out := make([]types.Symbol, len(matches))
	for i, m := range matches {
		out[i] = m.sym
	}
	return out, nil
}

// buildFTSQuery stems each word with porter2, turns each stem into a
// prefix term and joins them with OR, so a search for "connecting"
// becomes connect* and also matches stored "connect"/"connection" tokens.
func buildFTSQuery(query string) string {
	words := strings.Fields(query)
	stemmed := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(w)
		if w == "" {
			continue
		}
		stemmed = append(stemmed, `"`+porter2.Stem(w)+`"*`)
	}
	if len(stemmed) == 0 {
		return `""`
	}
	return strings.Join(stemmed, " OR ")
}

func filterLanguage(symbols []types.Symbol, lang string) []types.Symbol {
	out := symbols[:0]
	for _, s := range symbols {
		if s.Language == lang {
			out = append(out, s)
		}
	}
	return out
}

// bucketRoundRobin fills result slots by round-robin across each
// symbol's directory bucket rather than exhausting one directory's
// matches before moving to the next, so a search across a large
// monorepo surfaces breadth before depth.
func bucketRoundRobin(symbols []types.Symbol, maxPerDirectory int) []types.Symbol {
	buckets := make(map[string][]types.Symbol)
	var order []string
	for _, s := range symbols {
		dir := dirOf(s.File)
		if _, ok := buckets[dir]; !ok {
			order = append(order, dir)
		}
		buckets[dir] = append(buckets[dir], s)
	}

	var out []types.Symbol
	taken := make(map[string]int)
	for {
		progressed := false
		for _, dir := range order {
			if taken[dir] >= maxPerDirectory || taken[dir] >= len(buckets[dir]) {
				continue
			}
			out = append(out, buckets[dir][taken[dir]])
			taken[dir]++
			progressed = true
		}
		if !progressed {
			break
		}
	}
	return out
}

func dirOf(file string) string {
	idx := strings.LastIndexByte(file, '/')
	if idx < 0 {
		return "."
	}
	return file[:idx]
}

func observe(op string) func() {
	start := types.Now()
	return func() { metrics.ObserveQuery(op, types.Now().Sub(start).Seconds()) }
}
