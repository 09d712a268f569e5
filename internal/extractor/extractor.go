// Package extractor implements the Extractor: for one file+tree it runs
// the registry's declarative query and produces an ExtractionResult
// (symbols, references, imports, scopes, call edges).
//
// Extraction is deterministic: the same input bytes always produce the
// same result, because every derived field (fully-qualified name, scope
// id, call confidence) is computed purely from the syntax tree and the
// query captures, never from wall-clock time or map iteration order
// (captures are always walked in query-match order and re-sorted by byte
// offset before ids are assigned).
package extractor

import (
	"sort"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/coreindex/internal/registry"
	"github.com/standardbeagle/coreindex/internal/types"
)

// containerKinds are symbol kinds that also introduce a Scope (their body
// can contain other symbols).
var containerKinds = map[types.SymbolKind]bool{
	types.KindFunction:  true,
	types.KindMethod:    true,
	types.KindClass:     true,
	types.KindStruct:    true,
	types.KindInterface: true,
	types.KindTrait:     true,
	types.KindEnum:      true,
	types.KindModule:    true,
	types.KindNamespace: true,
}

// nameCaptureToKind maps a query's primary capture name to a SymbolKind.
// Capture names not listed here are either import/call markers or
// name/secondary captures, handled separately.
var nameCaptureToKind = map[string]types.SymbolKind{
	"function":    types.KindFunction,
	"method":      types.KindMethod,
	"constructor": types.KindMethod,
	"class":       types.KindClass,
	"struct":      types.KindStruct,
	"interface":   types.KindInterface,
	"trait":       types.KindTrait,
	"enum":        types.KindEnum,
	"type":        types.KindTypeAlias,
	"constant":    types.KindConstant,
	"variable":    types.KindVariable,
	"field":       types.KindField,
	"property":    types.KindField,
	"module":      types.KindModule,
	"namespace":   types.KindNamespace,
	"record":      types.KindClass,
	"delegate":    types.KindTypeAlias,
	"event":       types.KindField,
	"annotation":  types.KindInterface,
}

// receiverCallReason picks the UncertaintyReason for a call whose callee
// was reached through a member/selector/field access rather than a bare
// identifier, since the extractor does no type inference and cannot know
// the receiver's concrete type.
var receiverCallReason = map[string]types.UncertaintyReason{
	"go":         types.ReasonExternalLibrary, // selector_expression is predominantly pkg.Func in Go source
	"javascript": types.ReasonDynamicReceiver,
	"typescript": types.ReasonDynamicReceiver,
	"python":     types.ReasonDynamicReceiver,
	"rust":       types.ReasonVirtualDispatch,
	"java":       types.ReasonVirtualDispatch,
	"csharp":     types.ReasonVirtualDispatch,
	"cpp":        types.ReasonVirtualDispatch,
	"php":        types.ReasonVirtualDispatch,
}

// receiverNodeKinds are the tree-sitter node kinds that represent "access
// through a receiver" immediately enclosing a @call.callee capture, across
// the languages whose queries capture member calls.
var receiverNodeKinds = map[string]bool{
	"selector_expression":       true, // go
	"member_expression":         true, // js/ts
	"attribute":                 true, // python
	"field_expression":          true, // rust, cpp
	"member_access_expression":  true, // csharp
	"member_call_expression":    true, // php
}

// Extract runs lang's query over tree and builds an ExtractionResult for
// file. source must be the exact bytes the tree was parsed from.
func Extract(lang *registry.Language, file string, source []byte, tree *sitter.Tree) types.ExtractionResult {
	result := types.ExtractionResult{
		File:     file,
		Language: lang.Name,
		Size:     int64(len(source)),
	}

	query := lang.Query()
	if query == nil {
		return result
	}

	root := tree.RootNode()
	captureNames := query.CaptureNames()

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	matches := qc.Matches(query, root, source)

	type pendingSymbol struct {
		kind      types.SymbolKind
		node      sitter.Node
		nameNode  *sitter.Node
	}
	type pendingCall struct {
		node         sitter.Node
		calleeName   string
		calleeOffset types.Offset
		viaReceiver  bool
	}
	type pendingImport struct {
		node sitter.Node
		path string
	}
	type pendingRef struct {
		node sitter.Node
		name string
	}

	var pendingSymbols []pendingSymbol
	var pendingCalls []pendingCall
	var pendingImports []pendingImport
	var pendingRefs []pendingRef

	for {
		match := matches.Next()
		if match == nil {
			break
		}

		// Collect ".name"/".callee"/".path"/".source" sub-captures for this
		// match first, then process the primary captures in a second pass.
		var nameNode *sitter.Node
		var calleeNode *sitter.Node
		var pathNode *sitter.Node
		for _, c := range match.Captures {
			cn := captureNames[c.Index]
			node := c.Node
			switch {
			case strings.HasSuffix(cn, ".name"):
				n := node
				nameNode = &n
			case strings.HasSuffix(cn, ".callee"):
				n := node
				calleeNode = &n
			case strings.HasSuffix(cn, ".path") || strings.HasSuffix(cn, ".source"):
				n := node
				pathNode = &n
			}
		}

		for _, c := range match.Captures {
			cn := captureNames[c.Index]
			node := c.Node
			if strings.Contains(cn, ".") {
				continue // secondary capture, already consumed above
			}
			switch cn {
			case "import":
				p := ""
				if pathNode != nil {
					p = nodeText(pathNode, source)
				}
				pendingImports = append(pendingImports, pendingImport{node: node, path: strings.Trim(p, `"'`)})
			case "call":
				if calleeNode == nil {
					continue
				}
				viaReceiver := false
				if parent := calleeNode.Parent(); parent != nil {
					viaReceiver = receiverNodeKinds[parent.Kind()] ||
						(parent.Kind() == "method_invocation" && parent.ChildByFieldName("object") != nil) // java
				}
				pendingCalls = append(pendingCalls, pendingCall{
					node:       node,
					calleeName: nodeText(calleeNode, source),
					calleeOffset: types.Offset{
						Start: int(calleeNode.StartByte()),
						End:   int(calleeNode.EndByte()),
					},
					viaReceiver: viaReceiver,
				})
			case "ref":
				pendingRefs = append(pendingRefs, pendingRef{node: node, name: nodeText(&node, source)})
			case "export", "package", "using":
				// structural markers only, not symbols themselves
			default:
				if kind, ok := nameCaptureToKind[cn]; ok {
					pendingSymbols = append(pendingSymbols, pendingSymbol{kind: kind, node: node, nameNode: nameNode})
				}
			}
		}
	}

	// Build symbols sorted by start offset so ids are assigned
	// deterministically in source order.
	sort.SliceStable(pendingSymbols, func(i, j int) bool {
		return pendingSymbols[i].node.StartByte() < pendingSymbols[j].node.StartByte()
	})

	symbols := make([]types.Symbol, 0, len(pendingSymbols))
	for i, ps := range pendingSymbols {
		name := "<anonymous>"
		if ps.nameNode != nil {
			name = nodeText(ps.nameNode, source)
		}
		start := ps.node.StartPosition()
		end := ps.node.EndPosition()
		sym := types.Symbol{
			ID:   int64(i + 1), // local id, re-keyed by the Store on insert
			Name: name,
			Kind: ps.kind,
			File: file,
			Offset: types.Offset{
				Start: int(ps.node.StartByte()),
				End:   int(ps.node.EndByte()),
			},
			Start:    types.Position{Line: int(start.Row) + 1, Column: int(start.Column) + 1},
			End:      types.Position{Line: int(end.Row) + 1, Column: int(end.Column) + 1},
			Language: lang.Name,
		}
		if doc := leadingComment(&ps.node, source); doc != "" {
			sym.Doc = &doc
		}
		if params := ps.node.ChildByFieldName("parameters"); params != nil {
			for k := uint(0); k < params.NamedChildCount(); k++ {
				p := params.NamedChild(k)
				if p == nil {
					continue
				}
				pn := p.ChildByFieldName("name")
				if p.Kind() == "identifier" {
					pn = p
				}
				if pn != nil {
					sym.Params = append(sym.Params, types.Param{Name: nodeText(pn, source)})
				}
			}
		}
		symbols = append(symbols, sym)
	}

	assignContainment(symbols)
	scopes := buildScopes(file, root, symbols)
	assignScopes(symbols, scopes)
	assignQualifiedNames(symbols)

	references := make([]types.Reference, 0, len(pendingImports)+len(pendingCalls))
	imports := make([]types.Import, 0, len(pendingImports))
	for i, pi := range pendingImports {
		start := pi.node.StartPosition()
		off := types.Offset{Start: int(pi.node.StartByte()), End: int(pi.node.EndByte())}
		imports = append(imports, types.Import{
			ID:     int64(i + 1),
			File:   file,
			Path:   pi.path,
			Kind:   classifyImportKind(lang.Name, pi.path),
			Offset: off,
		})
		references = append(references, types.Reference{
			ID:         int64(len(references) + 1),
			File:       file,
			Offset:     off,
			Start:      types.Position{Line: int(start.Row) + 1, Column: int(start.Column) + 1},
			Kind:       types.RefImport,
			TargetName: pi.path,
		})
	}

	callEdges := make([]types.CallEdge, 0, len(pendingCalls))
	for _, pc := range pendingCalls {
		start := pc.node.StartPosition()
		off := types.Offset{Start: int(pc.node.StartByte()), End: int(pc.node.EndByte())}
		ref := types.Reference{
			ID:         int64(len(references) + 1),
			File:       file,
			Offset:     off,
			Start:      types.Position{Line: int(start.Row) + 1, Column: int(start.Column) + 1},
			Kind:       types.RefCall,
			TargetName: pc.calleeName,
		}

		caller := enclosingCallable(symbols, off)
		if caller != nil {
			id := caller.ID
			ref.CallerSymbolID = &id
			edge := buildCallEdge(lang.Name, id, pc.calleeName, pc.viaReceiver, caller, symbols)
			callEdges = append(callEdges, edge)
		}
		references = append(references, ref)
	}

	// A bare identifier occurrence is only interesting once it's neither a
	// declaration name nor a call callee (both already classified above)
	// and its text matches a known type or field name declared somewhere
	// in this file — anything else is a local variable, parameter, or
	// keyword-adjacent identifier the grammar's generic @ref pattern also
	// swept up, and emitting a reference for every one of those would
	// make every symbol look "referenced" and defeat dead-code detection.
	excluded := make(map[types.Offset]bool, len(pendingSymbols)+len(pendingCalls))
	for _, ps := range pendingSymbols {
		if ps.nameNode != nil {
			excluded[types.Offset{Start: int(ps.nameNode.StartByte()), End: int(ps.nameNode.EndByte())}] = true
		}
	}
	for _, pc := range pendingCalls {
		excluded[pc.calleeOffset] = true
	}

	typeNames := make(map[string]bool)
	fieldNames := make(map[string]bool)
	for _, s := range symbols {
		switch s.Kind {
		case types.KindStruct, types.KindInterface, types.KindClass, types.KindTypeAlias, types.KindEnum, types.KindTrait:
			typeNames[s.Name] = true
		case types.KindField:
			fieldNames[s.Name] = true
		}
	}

	for _, pr := range pendingRefs {
		off := types.Offset{Start: int(pr.node.StartByte()), End: int(pr.node.EndByte())}
		if excluded[off] {
			continue
		}
		var kind types.ReferenceKind
		switch {
		case typeNames[pr.name]:
			kind = types.RefTypeUse
		case fieldNames[pr.name]:
			kind = types.RefFieldAccess
		default:
			continue
		}
		start := pr.node.StartPosition()
		references = append(references, types.Reference{
			ID:         int64(len(references) + 1),
			File:       file,
			Offset:     off,
			Start:      types.Position{Line: int(start.Row) + 1, Column: int(start.Column) + 1},
			Kind:       kind,
			TargetName: pr.name,
		})
	}

	result.Symbols = symbols
	result.References = references
	result.Imports = imports
	result.Scopes = scopes
	result.CallEdges = callEdges
	return result
}

func nodeText(n *sitter.Node, source []byte) string {
	return string(source[n.StartByte():n.EndByte()])
}

// leadingComment returns the text of a comment node immediately preceding
// node, if any — a generic heuristic for doc strings that works across
// every language in the registry without per-grammar doc-comment queries.
func leadingComment(n *sitter.Node, source []byte) string {
	prev := n.PrevSibling()
	if prev == nil || !strings.Contains(prev.Kind(), "comment") {
		return ""
	}
	return strings.TrimSpace(nodeText(prev, source))
}

// assignContainment sets each symbol's ParentID to the innermost other
// container symbol whose offset strictly contains it, per the invariant
// "a symbol's parent (if set) resides in the same file" (trivially true
// here, every symbol in this slice is from the same file).
func assignContainment(symbols []types.Symbol) {
	for i := range symbols {
		var best *types.Symbol
		for j := range symbols {
			if i == j {
				continue
			}
			cand := &symbols[j]
			if !containerKinds[cand.Kind] {
				continue
			}
			if !strictlyContains(cand.Offset, symbols[i].Offset) {
				continue
			}
			if best == nil || strictlyContains(best.Offset, cand.Offset) {
				best = cand
			}
		}
		if best != nil {
			id := best.ID
			symbols[i].ParentID = &id
		}
	}
}

func strictlyContains(outer, inner types.Offset) bool {
	if outer == inner {
		return false
	}
	return outer.Start <= inner.Start && inner.End <= outer.End
}

// buildScopes derives the per-file lexical scope tree from container
// symbols plus an implicit file-level root scope.
func buildScopes(file string, root *sitter.Node, symbols []types.Symbol) []types.Scope {
	rootOffset := types.Offset{Start: int(root.StartByte()), End: int(root.EndByte())}
	scopes := []types.Scope{{
		ID:     1,
		File:   file,
		Kind:   "file",
		Offset: rootOffset,
	}}

	type byOffset struct {
		sym *types.Symbol
	}
	containers := make([]byOffset, 0)
	for i := range symbols {
		if containerKinds[symbols[i].Kind] {
			containers = append(containers, byOffset{sym: &symbols[i]})
		}
	}
	sort.Slice(containers, func(i, j int) bool {
		return containers[i].sym.Offset.Start < containers[j].sym.Offset.Start
	})

	scopeIDBySymbol := make(map[int64]int64, len(containers))
	for _, c := range containers {
		nextID := int64(len(scopes) + 1)
		// Parent scope is the innermost existing scope that contains this one.
		parentID := int64(1)
		for i := len(scopes) - 1; i >= 0; i-- {
			if scopes[i].Offset != c.sym.Offset && strictlyContains(scopes[i].Offset, c.sym.Offset) {
				parentID = scopes[i].ID
				break
			}
			if scopes[i].Offset.Start <= c.sym.Offset.Start && c.sym.Offset.End <= scopes[i].Offset.End {
				parentID = scopes[i].ID
				break
			}
		}
		name := c.sym.Name
		scopes = append(scopes, types.Scope{
			ID:       nextID,
			File:     file,
			ParentID: &parentID,
			Kind:     string(c.sym.Kind),
			Name:     &name,
			Offset:   c.sym.Offset,
		})
		scopeIDBySymbol[c.sym.ID] = nextID
	}
	return scopes
}

// assignScopes sets each symbol's ScopeID to the innermost scope that
// encloses it, excluding the scope the symbol itself introduces.
func assignScopes(symbols []types.Symbol, scopes []types.Scope) {
	for i := range symbols {
		best := scopes[0] // file root
		for _, sc := range scopes {
			if sc.Offset == symbols[i].Offset {
				continue // a container's own scope never holds itself
			}
			if sc.Offset.Start <= symbols[i].Offset.Start && symbols[i].Offset.End <= sc.Offset.End {
				if sc.Offset.Start >= best.Offset.Start && sc.Offset.End <= best.Offset.End {
					best = sc
				}
			}
		}
		symbols[i].ScopeID = best.ID
	}
}

// assignQualifiedNames walks each symbol's ParentID chain to compute its
// fully-qualified, dot-joined name.
func assignQualifiedNames(symbols []types.Symbol) {
	byID := make(map[int64]*types.Symbol, len(symbols))
	for i := range symbols {
		byID[symbols[i].ID] = &symbols[i]
	}
	for i := range symbols {
		parts := []string{symbols[i].Name}
		cur := symbols[i].ParentID
		seen := map[int64]bool{}
		for cur != nil && !seen[*cur] {
			seen[*cur] = true
			parent, ok := byID[*cur]
			if !ok {
				break
			}
			parts = append([]string{parent.Name}, parts...)
			cur = parent.ParentID
		}
		symbols[i].QualifiedName = strings.Join(parts, ".")
	}
}

// enclosingCallable returns the innermost Function/Method symbol whose
// offset contains off, or nil if the call site is at file scope (e.g. a
// top-level script statement).
func enclosingCallable(symbols []types.Symbol, off types.Offset) *types.Symbol {
	var best *types.Symbol
	for i := range symbols {
		s := &symbols[i]
		if s.Kind != types.KindFunction && s.Kind != types.KindMethod {
			continue
		}
		if s.Offset.Start <= off.Start && off.End <= s.Offset.End {
			if best == nil || strictlyContains(best.Offset, s.Offset) {
				best = s
			}
		}
	}
	return best
}

// buildCallEdge classifies a call site's confidence: a direct,
// statically-resolved call with a single same-file candidate is
// Certain; everything else is Possible with the matching reason.
func buildCallEdge(language string, callerID int64, calleeName string, viaReceiver bool, caller *types.Symbol, symbols []types.Symbol) types.CallEdge {
	edge := types.CallEdge{CallerID: callerID, CalleeName: calleeName}

	if viaReceiver {
		edge.Confidence = types.ConfidencePossible
		reason := receiverCallReason[language]
		if reason == "" {
			reason = types.ReasonDynamicReceiver
		}
		edge.Reason = &reason
		return edge
	}

	// A call to one of the caller's own parameter names is a higher-order
	// invocation (calling a value passed in), not a resolvable definition.
	for _, p := range caller.Params {
		if p.Name == calleeName {
			edge.Confidence = types.ConfidencePossible
			reason := types.ReasonHigherOrderFunc
			edge.Reason = &reason
			return edge
		}
	}

	var candidates []*types.Symbol
	for i := range symbols {
		s := &symbols[i]
		if s.Name == calleeName && (s.Kind == types.KindFunction || s.Kind == types.KindMethod) {
			candidates = append(candidates, s)
		}
	}

	switch len(candidates) {
	case 0:
		edge.Confidence = types.ConfidencePossible
		reason := types.ReasonExternalLibrary
		edge.Reason = &reason
	case 1:
		edge.Confidence = types.ConfidenceCertain
		id := candidates[0].ID
		edge.CalleeID = &id
	default:
		edge.Confidence = types.ConfidencePossible
		reason := types.ReasonMultipleCandidates
		edge.Reason = &reason
	}
	return edge
}

// classifyImportKind derives an ImportKind from the raw import path text.
// Paths starting with "." (./, ../, or a bare leading dot) are Relative;
// a trailing "*" or any "{" group marker is Wildcard; everything else
// defaults to Module, matching the common case across the registry's
// languages.
func classifyImportKind(language, path string) types.ImportKind {
	switch {
	case strings.HasPrefix(path, "./") || strings.HasPrefix(path, "../") || strings.HasPrefix(path, "."):
		return types.ImportRelative
	case strings.HasSuffix(path, "*") || strings.Contains(path, "{"):
		return types.ImportWildcard
	default:
		return types.ImportModule
	}
}
