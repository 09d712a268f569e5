// Package store implements the embedded relational index: a
// modernc.org/sqlite-backed (pure Go, no cgo) database holding file
// tracking rows, symbols, references, imports, scopes, call edges and
// the metadata/tag overlay, plus an FTS5 projection kept in sync by
// triggers.
//
// Schema shape follows a SQLite-backed repository/store design; symbol
// rows are inserted and their ids read back via LastInsertId. WAL mode plus a busy_timeout
// DSN pragma handle single-writer concurrency. Chunked batch persistence,
// pragma profiles and busy-retry are layered on top for large-repository
// indexing runs.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	coreerrors "github.com/standardbeagle/coreindex/internal/errors"
	"github.com/standardbeagle/coreindex/internal/metrics"
	"github.com/standardbeagle/coreindex/internal/types"
)

// Profile selects a PRAGMA durability/throughput tradeoff.
type Profile int

const (
	// ProfileSafe is the default: WAL journal, synchronous=FULL.
	ProfileSafe Profile = iota
	// ProfileFast trades fsync-per-commit durability for throughput:
	// synchronous=NORMAL, still WAL.
	ProfileFast
	// ProfileAggressive is for a cold (first-ever) run only:
	// synchronous=OFF, temp_store=MEMORY. The caller MUST restore
	// ProfileSafe or ProfileFast once the cold run finishes, win or lose —
	// see BeginColdRun.
	ProfileAggressive
)

// Store owns the database handle and is safe for concurrent use; the
// underlying *sql.DB pools connections and SQLite's own locking plus our
// busy_timeout pragma serialize writers.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates (if needed) and opens the database at path, applies the
// base schema, and sets the default safe pragma profile.
func Open(path string, busyTimeoutMs int) (*Store, error) {
	if busyTimeoutMs <= 0 {
		busyTimeoutMs = 5000
	}
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)", path, busyTimeoutMs)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, coreerrors.Storage("open", err).WithPath(path)
	}
	// SQLite allows only one writer; a single shared connection avoids
	// SQLITE_BUSY storms from this process's own goroutines racing.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path}
	if err := s.ApplyProfile(ProfileSafe); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, coreerrors.Schema("migrate", err).WithPath(path)
	}
	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// ApplyProfile switches the PRAGMA durability profile. Safe to call at
// any time; it does not touch table data.
func (s *Store) ApplyProfile(p Profile) error {
	stmts := []string{"PRAGMA journal_mode=WAL"}
	switch p {
	case ProfileFast:
		stmts = append(stmts, "PRAGMA synchronous=NORMAL")
	case ProfileAggressive:
		stmts = append(stmts, "PRAGMA synchronous=OFF", "PRAGMA temp_store=MEMORY")
	default:
		stmts = append(stmts, "PRAGMA synchronous=FULL")
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return coreerrors.Storage("apply_profile", err)
		}
	}
	return nil
}

// BeginColdRun switches to ProfileAggressive for the duration of a
// first-ever index of a project and returns a restore function that must
// be called exactly once (typically via defer) to bring the store back to
// a durable profile, whether or not the cold run succeeded. If the
// aggressive pragma set can't be applied (e.g. another process holds a
// lock), it falls back to ProfileFast and reports that via the metrics
// counter, never leaving the store silently undurable.
func (s *Store) BeginColdRun(restoreTo Profile) (restore func(), err error) {
	if err := s.ApplyProfile(ProfileAggressive); err != nil {
		metrics.RecordAggressiveFallback()
		if err := s.ApplyProfile(ProfileFast); err != nil {
			return func() {}, err
		}
		return func() { _ = s.ApplyProfile(restoreTo) }, nil
	}
	return func() { _ = s.ApplyProfile(restoreTo) }, nil
}

// withRetry runs fn, retrying with jittered backoff when SQLite reports
// the database as busy, up to maxRetries times, before surfacing a
// ContentionError. Each retry is recorded in metrics so sustained
// contention is visible without reading logs.
func withRetry(ctx context.Context, maxRetries int, fn func() error) error {
	if maxRetries <= 0 {
		maxRetries = 5
	}
	var lastErr error
	backoff := 10 * time.Millisecond
	for attempt := 0; attempt <= maxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isBusyErr(lastErr) {
			return lastErr
		}
		if attempt == maxRetries {
			break
		}
		metrics.RecordContentionRetry()
		jitter := time.Duration(rand.Int63n(int64(backoff)))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff + jitter):
		}
		backoff *= 2
	}
	metrics.RecordContentionFailed()
	return coreerrors.Contention("write", lastErr)
}

func isBusyErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "locked") || strings.Contains(msg, "busy")
}

// GetTrackedFiles returns every path currently tracked, for staleness
// comparison against a fresh Walker pass.
func (s *Store) GetTrackedFiles(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path FROM files`)
	if err != nil {
		return nil, coreerrors.Storage("get_tracked_files", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, coreerrors.Storage("get_tracked_files_scan", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetTrackedFileHashes returns path -> (content_hash, size, mod_time_nanos)
// for the staleness prefilter: a (size, mtime) mismatch is checked first
// without touching content_hash; only an ambiguous case falls back to
// comparing content_hash against a freshly computed one.
func (s *Store) GetTrackedFileHashes(ctx context.Context) (map[string]types.FileRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path, language, content_hash, size, mod_time_nanos, symbol_count FROM files`)
	if err != nil {
		return nil, coreerrors.Storage("get_tracked_file_hashes", err)
	}
	defer rows.Close()

	out := make(map[string]types.FileRecord)
	for rows.Next() {
		var rec types.FileRecord
		if err := rows.Scan(&rec.Path, &rec.Language, &rec.ContentHash, &rec.Size, &rec.ModTimeNanos, &rec.SymbolCount); err != nil {
			return nil, coreerrors.Storage("get_tracked_file_hashes_scan", err)
		}
		out[rec.Path] = rec
	}
	return out, rows.Err()
}

// RemoveFilesBatch deletes every row derived from the given paths. It
// loads the paths into a temporary table and joins against it rather than
// building a large SQL IN (...) list, which both avoids SQLite's
// parameter-count ceiling and keeps the query plan an index join instead
// of a linear OR chain.
//
// SQLite's declarative FOREIGN KEY ... ON DELETE CASCADE clauses in the
// schema are never enforced (PRAGMA foreign_keys is off by default and
// this store never turns it on, and call_edges has no FK to files at
// all), so every child table is deleted explicitly here rather than
// relying on cascade.
func (s *Store) RemoveFilesBatch(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	return withRetry(ctx, 5, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.ExecContext(ctx, `CREATE TEMP TABLE IF NOT EXISTS removal_set (path TEXT PRIMARY KEY)`); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM removal_set`); err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO removal_set (path) VALUES (?)`)
		if err != nil {
			return err
		}
		for _, p := range paths {
			if _, err := stmt.ExecContext(ctx, p); err != nil {
				stmt.Close()
				return err
			}
		}
		stmt.Close()

		if err := deleteFileRowsIn(ctx, tx, `SELECT path FROM removal_set`); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM removal_set`); err != nil {
			return err
		}
		metrics.RecordDeleted(len(paths))
		return tx.Commit()
	})
}

// deleteFileRowsIn removes every row in every table derived from files whose
// path is returned by pathSubquery (a correlated-free SELECT with no bind
// parameters of its own, e.g. "SELECT path FROM removal_set"), in
// dependency order: call_edges and references key off symbols.id, so
// they're cleared before symbols itself.
func deleteFileRowsIn(ctx context.Context, tx *sql.Tx, pathSubquery string) error {
	stmts := []string{
		`DELETE FROM call_edges WHERE caller_id IN (SELECT id FROM symbols WHERE file IN (` + pathSubquery + `))
			OR callee_id IN (SELECT id FROM symbols WHERE file IN (` + pathSubquery + `))`,
		`DELETE FROM "references" WHERE file IN (` + pathSubquery + `)`,
		`DELETE FROM imports WHERE file IN (` + pathSubquery + `)`,
		`DELETE FROM scopes WHERE file IN (` + pathSubquery + `)`,
		`DELETE FROM tags WHERE path IN (` + pathSubquery + `)`,
		`DELETE FROM file_meta WHERE path IN (` + pathSubquery + `)`,
		`DELETE FROM symbols WHERE file IN (` + pathSubquery + `)`,
		`DELETE FROM files WHERE path IN (` + pathSubquery + `)`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// deleteFileRowsForPath removes every row in every table derived from one
// file path, for the delete-then-reinsert path in replaceFileExtraction.
func deleteFileRowsForPath(ctx context.Context, tx *sql.Tx, path string) error {
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM call_edges WHERE caller_id IN (SELECT id FROM symbols WHERE file = ?)
			OR callee_id IN (SELECT id FROM symbols WHERE file = ?)
	`, path, path); err != nil {
		return err
	}
	stmts := []struct {
		sql string
	}{
		{`DELETE FROM "references" WHERE file = ?`},
		{`DELETE FROM imports WHERE file = ?`},
		{`DELETE FROM scopes WHERE file = ?`},
		{`DELETE FROM tags WHERE path = ?`},
		{`DELETE FROM file_meta WHERE path = ?`},
		{`DELETE FROM symbols WHERE file = ?`},
		{`DELETE FROM files WHERE path = ?`},
	}
	for _, s := range stmts {
		if _, err := tx.ExecContext(ctx, s.sql, path); err != nil {
			return err
		}
	}
	return nil
}

// AddExtractionResultsBatch persists one chunk of ExtractionResults in a
// single transaction: each file's prior rows are replaced (delete-then-
// insert, cheaper than diffing at this grain) and its tracking row is
// upserted. Ordering within the chunk does not matter; ordering BETWEEN
// chunks does (removals must commit before additions, enforced by the
// Pipeline calling RemoveFilesBatch first).
func (s *Store) AddExtractionResultsBatch(ctx context.Context, results []types.ExtractionResult) error {
	if len(results) == 0 {
		return nil
	}
	start := types.Now()
	err := withRetry(ctx, 5, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		for _, r := range results {
			if err := replaceFileExtraction(ctx, tx, r); err != nil {
				return fmt.Errorf("file %s: %w", r.File, err)
			}
		}
		return tx.Commit()
	})
	metrics.ObserveChunk(types.Now().Sub(start).Seconds())
	if err == nil {
		metrics.RecordChunkCommitted()
	}
	return err
}

func replaceFileExtraction(ctx context.Context, tx *sql.Tx, r types.ExtractionResult) error {
	if err := deleteFileRowsForPath(ctx, tx, r.File); err != nil {
		return err
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO files (path, language, content_hash, size, mod_time_nanos, symbol_count)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.File, r.Language, int64(r.ContentHash), r.Size, r.ModTimeNanos, len(r.Symbols))
	if err != nil {
		return err
	}

	idRemap := make(map[int64]int64, len(r.Symbols))
	for _, sym := range r.Symbols {
		typeParamsJSON, _ := json.Marshal(sym.TypeParams)
		paramsJSON, _ := json.Marshal(sym.Params)
		var visibility, signature, doc, returnType *string
		if sym.Visibility != nil {
			v := string(*sym.Visibility)
			visibility = &v
		}
		signature = sym.Signature
		doc = sym.Doc
		returnType = sym.ReturnType

		res, err := tx.ExecContext(ctx, `
			INSERT INTO symbols (
				name, kind, file, start_off, end_off, start_line, start_col, end_line, end_col,
				language, visibility, signature, doc, parent_id, scope_id, qualified_name,
				type_params, params, return_type
			) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		`, sym.Name, string(sym.Kind), sym.File, sym.Offset.Start, sym.Offset.End,
			sym.Start.Line, sym.Start.Column, sym.End.Line, sym.End.Column,
			sym.Language, visibility, signature, doc, nil, sym.ScopeID, sym.QualifiedName,
			string(typeParamsJSON), string(paramsJSON), returnType)
		if err != nil {
			return fmt.Errorf("insert symbol %s: %w", sym.Name, err)
		}
		newID, err := res.LastInsertId()
		if err != nil {
			return err
		}
		idRemap[sym.ID] = newID
	}

	// Second pass: patch parent_id now that every local id has a real row id.
	for _, sym := range r.Symbols {
		if sym.ParentID == nil {
			continue
		}
		parentReal, ok := idRemap[*sym.ParentID]
		if !ok {
			continue
		}
		if _, err := tx.ExecContext(ctx, `UPDATE symbols SET parent_id = ? WHERE id = ?`, parentReal, idRemap[sym.ID]); err != nil {
			return err
		}
	}

	for _, sc := range r.Scopes {
		var parentID interface{}
		if sc.ParentID != nil {
			parentID = *sc.ParentID
		}
		var name interface{}
		if sc.Name != nil {
			name = *sc.Name
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO scopes (file, parent_id, kind, name, start_off, end_off)
			VALUES (?, ?, ?, ?, ?, ?)
		`, sc.File, parentID, sc.Kind, name, sc.Offset.Start, sc.Offset.End); err != nil {
			return err
		}
	}

	for _, im := range r.Imports {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO imports (file, path, kind, start_off, end_off)
			VALUES (?, ?, ?, ?, ?)
		`, im.File, im.Path, string(im.Kind), im.Offset.Start, im.Offset.End); err != nil {
			return err
		}
	}

	for _, ref := range r.References {
		var callerID interface{}
		if ref.CallerSymbolID != nil {
			if real, ok := idRemap[*ref.CallerSymbolID]; ok {
				callerID = real
			}
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO "references" (file, start_off, end_off, start_line, start_col, kind, target_name, target_symbol_id, caller_symbol_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, ref.File, ref.Offset.Start, ref.Offset.End, ref.Start.Line, ref.Start.Column,
			string(ref.Kind), ref.TargetName, nil, callerID); err != nil {
			return err
		}
	}

	for _, ce := range r.CallEdges {
		callerReal, ok := idRemap[ce.CallerID]
		if !ok {
			continue
		}
		var reason interface{}
		if ce.Reason != nil {
			reason = string(*ce.Reason)
		}
		var calleeReal interface{}
		if ce.CalleeID != nil {
			if real, ok := idRemap[*ce.CalleeID]; ok {
				calleeReal = real
			}
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO call_edges (caller_id, callee_name, callee_id, confidence, reason)
			VALUES (?, ?, ?, ?, ?)
		`, callerReal, ce.CalleeName, calleeReal, string(ce.Confidence), reason); err != nil {
			return err
		}
	}

	return nil
}

// UpdateFileTrackingMetadataBatch refreshes only the tracking columns
// (not symbols/references) for files whose content did not change but
// whose mtime did — the common "touch without edit" case, avoiding a full
// re-extraction write.
func (s *Store) UpdateFileTrackingMetadataBatch(ctx context.Context, records []types.FileRecord) error {
	if len(records) == 0 {
		return nil
	}
	return withRetry(ctx, 5, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()
		stmt, err := tx.PrepareContext(ctx, `UPDATE files SET mod_time_nanos = ?, size = ? WHERE path = ?`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, rec := range records {
			if _, err := stmt.ExecContext(ctx, rec.ModTimeNanos, rec.Size, rec.Path); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

// errNotFound is returned by lookups with no matching row.
var errNotFound = errors.New("not found")

// ErrNotFound reports whether err is the store's not-found sentinel.
func ErrNotFound(err error) bool { return errors.Is(err, errNotFound) }
