package store

// schema is applied with CREATE TABLE/INDEX/TRIGGER IF NOT EXISTS so it is
// safe to run against both a brand-new database file and one left over
// from a previous run: one schema string executed at open time rather
// than a migration runner.
const schema = `
CREATE TABLE IF NOT EXISTS files (
	path            TEXT PRIMARY KEY,
	language        TEXT NOT NULL,
	content_hash    INTEGER NOT NULL,
	size            INTEGER NOT NULL,
	mod_time_nanos  INTEGER NOT NULL,
	symbol_count    INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS symbols (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	name           TEXT NOT NULL,
	kind           TEXT NOT NULL,
	file           TEXT NOT NULL,
	start_off      INTEGER NOT NULL,
	end_off        INTEGER NOT NULL,
	start_line     INTEGER NOT NULL,
	start_col      INTEGER NOT NULL,
	end_line       INTEGER NOT NULL,
	end_col        INTEGER NOT NULL,
	language       TEXT NOT NULL,
	visibility     TEXT,
	signature      TEXT,
	doc            TEXT,
	parent_id      INTEGER,
	scope_id       INTEGER,
	qualified_name TEXT NOT NULL,
	type_params    TEXT,
	params         TEXT,
	return_type    TEXT,
	FOREIGN KEY (file) REFERENCES files(path) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_symbols_file ON symbols(file);
CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(name);
CREATE INDEX IF NOT EXISTS idx_symbols_kind ON symbols(kind);
CREATE INDEX IF NOT EXISTS idx_symbols_parent ON symbols(parent_id);

CREATE TABLE IF NOT EXISTS scopes (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	file      TEXT NOT NULL,
	parent_id INTEGER,
	kind      TEXT NOT NULL,
	name      TEXT,
	start_off INTEGER NOT NULL,
	end_off   INTEGER NOT NULL,
	FOREIGN KEY (file) REFERENCES files(path) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_scopes_file ON scopes(file);

CREATE TABLE IF NOT EXISTS imports (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	file      TEXT NOT NULL,
	path      TEXT NOT NULL,
	kind      TEXT NOT NULL,
	start_off INTEGER NOT NULL,
	end_off   INTEGER NOT NULL,
	FOREIGN KEY (file) REFERENCES files(path) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_imports_file ON imports(file);

CREATE TABLE IF NOT EXISTS "references" (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	file             TEXT NOT NULL,
	start_off        INTEGER NOT NULL,
	end_off          INTEGER NOT NULL,
	start_line       INTEGER NOT NULL,
	start_col        INTEGER NOT NULL,
	kind             TEXT NOT NULL,
	target_name      TEXT NOT NULL,
	target_symbol_id INTEGER,
	caller_symbol_id INTEGER,
	FOREIGN KEY (file) REFERENCES files(path) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_references_file ON "references"(file);
CREATE INDEX IF NOT EXISTS idx_references_target ON "references"(target_name);
CREATE INDEX IF NOT EXISTS idx_references_caller ON "references"(caller_symbol_id);

CREATE TABLE IF NOT EXISTS call_edges (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	caller_id   INTEGER NOT NULL,
	callee_name TEXT NOT NULL,
	callee_id   INTEGER,
	confidence  TEXT NOT NULL,
	reason      TEXT
);
CREATE INDEX IF NOT EXISTS idx_call_edges_caller ON call_edges(caller_id);
CREATE INDEX IF NOT EXISTS idx_call_edges_callee_name ON call_edges(callee_name);
CREATE INDEX IF NOT EXISTS idx_call_edges_callee_id ON call_edges(callee_id);

CREATE TABLE IF NOT EXISTS file_meta (
	path           TEXT PRIMARY KEY,
	one_line       TEXT,
	purpose        TEXT,
	capabilities   TEXT,
	invariants     TEXT,
	non_goals      TEXT,
	security_notes TEXT,
	owner          TEXT,
	stability      TEXT,
	exported_hash  INTEGER NOT NULL DEFAULT 0,
	provenance     TEXT NOT NULL,
	confidence     REAL NOT NULL DEFAULT 1.0,
	FOREIGN KEY (path) REFERENCES files(path) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS tags (
	path       TEXT NOT NULL,
	name       TEXT NOT NULL,
	confidence REAL NOT NULL DEFAULT 1.0,
	PRIMARY KEY (path, name),
	FOREIGN KEY (path) REFERENCES files(path) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_tags_name ON tags(name);

CREATE VIRTUAL TABLE IF NOT EXISTS symbols_fts USING fts5(
	name, qualified_name, signature, doc,
	content='symbols', content_rowid='id'
);

CREATE TRIGGER IF NOT EXISTS symbols_fts_insert AFTER INSERT ON symbols BEGIN
	INSERT INTO symbols_fts(rowid, name, qualified_name, signature, doc)
	VALUES (new.id, new.name, new.qualified_name, coalesce(new.signature, ''), coalesce(new.doc, ''));
END;

CREATE TRIGGER IF NOT EXISTS symbols_fts_delete AFTER DELETE ON symbols BEGIN
	INSERT INTO symbols_fts(symbols_fts, rowid, name, qualified_name, signature, doc)
	VALUES ('delete', old.id, old.name, old.qualified_name, coalesce(old.signature, ''), coalesce(old.doc, ''));
END;

CREATE TRIGGER IF NOT EXISTS symbols_fts_update AFTER UPDATE ON symbols BEGIN
	INSERT INTO symbols_fts(symbols_fts, rowid, name, qualified_name, signature, doc)
	VALUES ('delete', old.id, old.name, old.qualified_name, coalesce(old.signature, ''), coalesce(old.doc, ''));
	INSERT INTO symbols_fts(rowid, name, qualified_name, signature, doc)
	VALUES (new.id, new.name, new.qualified_name, coalesce(new.signature, ''), coalesce(new.doc, ''));
END;
`
