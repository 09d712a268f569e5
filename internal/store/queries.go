package store

import (
	"context"
	"database/sql"
	"encoding/json"

	coreerrors "github.com/standardbeagle/coreindex/internal/errors"
	"github.com/standardbeagle/coreindex/internal/types"
)

// GetSymbol loads one symbol by id.
func (s *Store) GetSymbol(ctx context.Context, id int64) (*types.Symbol, error) {
	row := s.db.QueryRowContext(ctx, symbolSelect+` WHERE id = ?`, id)
	sym, err := scanSymbol(row)
	if err == sql.ErrNoRows {
		return nil, errNotFound
	}
	if err != nil {
		return nil, coreerrors.Storage("get_symbol", err)
	}
	return sym, nil
}

// FindSymbolsByName returns every symbol with an exact name match,
// optionally restricted to one file.
func (s *Store) FindSymbolsByName(ctx context.Context, name string, file string) ([]types.Symbol, error) {
	var rows *sql.Rows
	var err error
	if file != "" {
		rows, err = s.db.QueryContext(ctx, symbolSelect+` WHERE name = ? AND file = ? ORDER BY file, start_off`, name, file)
	} else {
		rows, err = s.db.QueryContext(ctx, symbolSelect+` WHERE name = ? ORDER BY file, start_off`, name)
	}
	if err != nil {
		return nil, coreerrors.Storage("find_symbols_by_name", err)
	}
	defer rows.Close()
	return scanSymbolRows(rows)
}

// ListSymbolsByFile returns every symbol in one file in source order, for
// get_file_outline.
func (s *Store) ListSymbolsByFile(ctx context.Context, file string) ([]types.Symbol, error) {
	rows, err := s.db.QueryContext(ctx, symbolSelect+` WHERE file = ? ORDER BY start_off`, file)
	if err != nil {
		return nil, coreerrors.Storage("list_symbols_by_file", err)
	}
	defer rows.Close()
	return scanSymbolRows(rows)
}

// ListSymbols returns every symbol in a deterministic order, optionally
// filtered by kind and/or language, for list_symbols and as the candidate
// pool for fuzzy search.
func (s *Store) ListSymbols(ctx context.Context, kind, language string, limit int) ([]types.Symbol, error) {
	q := symbolSelect + ` WHERE 1=1`
	var args []interface{}
	if kind != "" {
		q += ` AND kind = ?`
		args = append(args, kind)
	}
	if language != "" {
		q += ` AND language = ?`
		args = append(args, language)
	}
	q += ` ORDER BY file, start_off`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, coreerrors.Storage("list_symbols", err)
	}
	defer rows.Close()
	return scanSymbolRows(rows)
}

// SearchSymbolsFTS runs a full-text match against name/qualified_name/
// signature/doc, ranked by bm25, for search_symbols' "fulltext" mode.
func (s *Store) SearchSymbolsFTS(ctx context.Context, ftsQuery string, limit int) ([]types.Symbol, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+symbolColumns+`
		FROM symbols_fts f
		JOIN symbols s ON f.rowid = s.id
		WHERE symbols_fts MATCH ?
		ORDER BY bm25(symbols_fts)
		LIMIT ?
	`, ftsQuery, limit)
	if err != nil {
		return nil, coreerrors.Storage("search_symbols_fts", err)
	}
	defer rows.Close()
	return scanSymbolRows(rows)
}

// FindReferences returns every reference whose target_name matches name,
// for find_references.
func (s *Store) FindReferences(ctx context.Context, name string) ([]types.Reference, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, file, start_off, end_off, start_line, start_col, kind, target_name, target_symbol_id, caller_symbol_id
		FROM "references" WHERE target_name = ? ORDER BY file, start_off
	`, name)
	if err != nil {
		return nil, coreerrors.Storage("find_references", err)
	}
	defer rows.Close()

	var out []types.Reference
	for rows.Next() {
		var r types.Reference
		var targetSym, callerSym sql.NullInt64
		if err := rows.Scan(&r.ID, &r.File, &r.Offset.Start, &r.Offset.End, &r.Start.Line, &r.Start.Column, &r.Kind, &r.TargetName, &targetSym, &callerSym); err != nil {
			return nil, coreerrors.Storage("find_references_scan", err)
		}
		if targetSym.Valid {
			v := targetSym.Int64
			r.TargetSymbolID = &v
		}
		if callerSym.Valid {
			v := callerSym.Int64
			r.CallerSymbolID = &v
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetImports returns every import edge declared by file.
func (s *Store) GetImports(ctx context.Context, file string) ([]types.Import, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, file, path, kind, start_off, end_off FROM imports WHERE file = ? ORDER BY start_off
	`, file)
	if err != nil {
		return nil, coreerrors.Storage("get_imports", err)
	}
	defer rows.Close()

	var out []types.Import
	for rows.Next() {
		var im types.Import
		if err := rows.Scan(&im.ID, &im.File, &im.Path, &im.Kind, &im.Offset.Start, &im.Offset.End); err != nil {
			return nil, coreerrors.Storage("get_imports_scan", err)
		}
		out = append(out, im)
	}
	return out, rows.Err()
}

// GetCallees returns the outbound call edges from callerID, for
// analyze_call_graph's forward traversal.
func (s *Store) GetCallees(ctx context.Context, callerID int64) ([]types.CallEdge, error) {
	return scanCallEdges(s.db.QueryContext(ctx, `
		SELECT id, caller_id, callee_name, callee_id, confidence, reason FROM call_edges WHERE caller_id = ?
	`, callerID))
}

// GetCallers returns every call edge whose resolved callee is calleeID,
// for analyze_call_graph's reverse traversal ("who calls this").
func (s *Store) GetCallers(ctx context.Context, calleeID int64) ([]types.CallEdge, error) {
	return scanCallEdges(s.db.QueryContext(ctx, `
		SELECT id, caller_id, callee_name, callee_id, confidence, reason FROM call_edges WHERE callee_id = ?
	`, calleeID))
}

func scanCallEdges(rows *sql.Rows, err error) ([]types.CallEdge, error) {
	if err != nil {
		return nil, coreerrors.Storage("call_edges", err)
	}
	defer rows.Close()

	var out []types.CallEdge
	for rows.Next() {
		var ce types.CallEdge
		var calleeID sql.NullInt64
		var reason sql.NullString
		if err := rows.Scan(&ce.ID, &ce.CallerID, &ce.CalleeName, &calleeID, &ce.Confidence, &reason); err != nil {
			return nil, coreerrors.Storage("call_edges_scan", err)
		}
		if calleeID.Valid {
			v := calleeID.Int64
			ce.CalleeID = &v
		}
		if reason.Valid {
			r := types.UncertaintyReason(reason.String)
			ce.Reason = &r
		}
		out = append(out, ce)
	}
	return out, rows.Err()
}

// GetStats computes the cross-tabbed index summary for get_stats.
func (s *Store) GetStats(ctx context.Context) (*types.Stats, error) {
	stats := &types.Stats{
		ByKind:         make(map[types.SymbolKind]int),
		ByLanguage:     make(map[string]int),
		ByLanguageKind: make(map[string]map[types.SymbolKind]int),
		RowCounts:      make(map[string]int),
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM files`).Scan(&stats.TotalFiles); err != nil {
		return nil, coreerrors.Storage("get_stats_files", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM symbols`).Scan(&stats.TotalSymbols); err != nil {
		return nil, coreerrors.Storage("get_stats_symbols", err)
	}

	for _, t := range []string{"files", "symbols", "references", "imports", "scopes", "call_edges", "tags"} {
		var n int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM "`+t+`"`).Scan(&n); err == nil {
			stats.RowCounts[t] = n
		}
	}

	rows, err := s.db.QueryContext(ctx, `SELECT language, kind, COUNT(*) FROM symbols GROUP BY language, kind`)
	if err != nil {
		return nil, coreerrors.Storage("get_stats_crosstab", err)
	}
	defer rows.Close()
	for rows.Next() {
		var lang, kind string
		var n int
		if err := rows.Scan(&lang, &kind, &n); err != nil {
			return nil, coreerrors.Storage("get_stats_crosstab_scan", err)
		}
		stats.ByLanguage[lang] += n
		stats.ByKind[types.SymbolKind(kind)] += n
		if stats.ByLanguageKind[lang] == nil {
			stats.ByLanguageKind[lang] = make(map[types.SymbolKind]int)
		}
		stats.ByLanguageKind[lang][types.SymbolKind(kind)] = n
	}
	return stats, rows.Err()
}

// GetFileMeta loads the metadata overlay row for path, if any.
func (s *Store) GetFileMeta(ctx context.Context, path string) (*types.FileMeta, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT path, one_line, purpose, capabilities, invariants, non_goals, security_notes, owner, stability, exported_hash, provenance, confidence
		FROM file_meta WHERE path = ?
	`, path)
	var m types.FileMeta
	var capabilities, invariants, nonGoals, securityNotes string
	var oneLine, purpose, owner, stability sql.NullString
	if err := row.Scan(&m.Path, &oneLine, &purpose, &capabilities, &invariants, &nonGoals, &securityNotes, &owner, &stability, &m.ExportedHash, &m.Provenance, &m.Confidence); err != nil {
		if err == sql.ErrNoRows {
			return nil, errNotFound
		}
		return nil, coreerrors.Storage("get_file_meta", err)
	}
	m.OneLine = oneLine.String
	m.Purpose = purpose.String
	m.Owner = owner.String
	m.Stability = types.Stability(stability.String)
	_ = json.Unmarshal([]byte(capabilities), &m.Capabilities)
	_ = json.Unmarshal([]byte(invariants), &m.Invariants)
	_ = json.Unmarshal([]byte(nonGoals), &m.NonGoals)
	_ = json.Unmarshal([]byte(securityNotes), &m.SecurityNotes)
	return &m, nil
}

// UpsertFileMeta writes or replaces the metadata overlay row for path.
func (s *Store) UpsertFileMeta(ctx context.Context, m types.FileMeta) error {
	capabilities, _ := json.Marshal(m.Capabilities)
	invariants, _ := json.Marshal(m.Invariants)
	nonGoals, _ := json.Marshal(m.NonGoals)
	securityNotes, _ := json.Marshal(m.SecurityNotes)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO file_meta (path, one_line, purpose, capabilities, invariants, non_goals, security_notes, owner, stability, exported_hash, provenance, confidence)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(path) DO UPDATE SET
			one_line=excluded.one_line, purpose=excluded.purpose, capabilities=excluded.capabilities,
			invariants=excluded.invariants, non_goals=excluded.non_goals, security_notes=excluded.security_notes,
			owner=excluded.owner, stability=excluded.stability, exported_hash=excluded.exported_hash,
			provenance=excluded.provenance, confidence=excluded.confidence
	`, m.Path, m.OneLine, m.Purpose, string(capabilities), string(invariants), string(nonGoals), string(securityNotes),
		m.Owner, string(m.Stability), int64(m.ExportedHash), string(m.Provenance), m.Confidence)
	if err != nil {
		return coreerrors.Storage("upsert_file_meta", err)
	}
	return nil
}

// UpsertTagsBatch replaces the tag set for path.
func (s *Store) UpsertTagsBatch(ctx context.Context, path string, tags []types.Tag) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return coreerrors.Storage("upsert_tags", err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM tags WHERE path = ?`, path); err != nil {
		return coreerrors.Storage("upsert_tags_clear", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO tags (path, name, confidence) VALUES (?, ?, ?)`)
	if err != nil {
		return coreerrors.Storage("upsert_tags_prepare", err)
	}
	defer stmt.Close()
	for _, t := range tags {
		if _, err := stmt.ExecContext(ctx, path, t.Name, t.Confidence); err != nil {
			return coreerrors.Storage("upsert_tags_insert", err)
		}
	}
	return tx.Commit()
}

// GetTags returns the tag set for path.
func (s *Store) GetTags(ctx context.Context, path string) ([]types.Tag, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path, name, confidence FROM tags WHERE path = ?`, path)
	if err != nil {
		return nil, coreerrors.Storage("get_tags", err)
	}
	defer rows.Close()
	var out []types.Tag
	for rows.Next() {
		var t types.Tag
		if err := rows.Scan(&t.Path, &t.Name, &t.Confidence); err != nil {
			return nil, coreerrors.Storage("get_tags_scan", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

const symbolColumns = `
	id, name, kind, file, start_off, end_off, start_line, start_col, end_line, end_col,
	language, visibility, signature, doc, parent_id, scope_id, qualified_name, type_params, params, return_type`

const symbolSelect = `SELECT ` + symbolColumns + ` FROM symbols`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSymbol(row rowScanner) (*types.Symbol, error) {
	var sym types.Symbol
	var visibility, signature, doc, returnType sql.NullString
	var parentID, scopeID sql.NullInt64
	var typeParamsJSON, paramsJSON string

	err := row.Scan(&sym.ID, &sym.Name, &sym.Kind, &sym.File, &sym.Offset.Start, &sym.Offset.End,
		&sym.Start.Line, &sym.Start.Column, &sym.End.Line, &sym.End.Column,
		&sym.Language, &visibility, &signature, &doc, &parentID, &scopeID, &sym.QualifiedName,
		&typeParamsJSON, &paramsJSON, &returnType)
	if err != nil {
		return nil, err
	}
	if visibility.Valid {
		v := types.Visibility(visibility.String)
		sym.Visibility = &v
	}
	if signature.Valid {
		s := signature.String
		sym.Signature = &s
	}
	if doc.Valid {
		d := doc.String
		sym.Doc = &d
	}
	if returnType.Valid {
		r := returnType.String
		sym.ReturnType = &r
	}
	if parentID.Valid {
		p := parentID.Int64
		sym.ParentID = &p
	}
	if scopeID.Valid {
		sym.ScopeID = scopeID.Int64
	}
	_ = json.Unmarshal([]byte(typeParamsJSON), &sym.TypeParams)
	_ = json.Unmarshal([]byte(paramsJSON), &sym.Params)
	return &sym, nil
}

func scanSymbolRows(rows *sql.Rows) ([]types.Symbol, error) {
	var out []types.Symbol
	for rows.Next() {
		sym, err := scanSymbol(rows)
		if err != nil {
			return nil, coreerrors.Storage("scan_symbol", err)
		}
		out = append(out, *sym)
	}
	return out, rows.Err()
}
