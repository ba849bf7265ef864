package database

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// Initial schema SQL
const initialSchemaSQL = `
-- Users own snippets
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    email TEXT UNIQUE NOT NULL,
    name TEXT DEFAULT '',
    password_hash TEXT NOT NULL,
    created_at DATETIME NOT NULL
);

-- Snippets table - core entity. A snippet is trashed when trashed_at is set.
CREATE TABLE IF NOT EXISTS snippets (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    title TEXT NOT NULL,
    description TEXT DEFAULT '',
    code TEXT NOT NULL,
    language TEXT DEFAULT 'javascript',
    is_favorite INTEGER DEFAULT 0,
    trashed_at DATETIME DEFAULT NULL,
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL,
    FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
);

-- Tags, in the order they were contributed
CREATE TABLE IF NOT EXISTS snippet_tags (
    snippet_id TEXT NOT NULL,
    name TEXT NOT NULL,
    position INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (snippet_id, name),
    FOREIGN KEY (snippet_id) REFERENCES snippets(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_snippets_user ON snippets(user_id);
CREATE INDEX IF NOT EXISTS idx_snippets_trashed ON snippets(user_id, trashed_at);
CREATE INDEX IF NOT EXISTS idx_snippets_favorite ON snippets(user_id, is_favorite);
CREATE INDEX IF NOT EXISTS idx_snippets_updated ON snippets(updated_at DESC);
CREATE INDEX IF NOT EXISTS idx_snippet_tags_name ON snippet_tags(name);
`

// Migration 2: version history
const addVersionsSQL = `
-- Archived states of a snippet, oldest first by id
CREATE TABLE IF NOT EXISTS snippet_versions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    snippet_id TEXT NOT NULL,
    title TEXT NOT NULL,
    description TEXT DEFAULT '',
    code TEXT NOT NULL,
    language TEXT DEFAULT 'javascript',
    tags TEXT DEFAULT '[]',
    created_at DATETIME NOT NULL,
    FOREIGN KEY (snippet_id) REFERENCES snippets(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_snippet_versions_snippet ON snippet_versions(snippet_id, id);
`

// Migration 3: full-text search
const addSearchSQL = `
-- Full-text search (external content FTS5 table)
CREATE VIRTUAL TABLE IF NOT EXISTS snippets_fts USING fts5(
    title,
    description,
    code,
    content='snippets',
    content_rowid='rowid'
);

-- Triggers to keep FTS in sync
CREATE TRIGGER IF NOT EXISTS snippets_ai AFTER INSERT ON snippets BEGIN
    INSERT INTO snippets_fts(rowid, title, description, code)
    VALUES (NEW.rowid, NEW.title, NEW.description, NEW.code);
END;

CREATE TRIGGER IF NOT EXISTS snippets_ad AFTER DELETE ON snippets BEGIN
    INSERT INTO snippets_fts(snippets_fts, rowid, title, description, code)
    VALUES('delete', OLD.rowid, OLD.title, OLD.description, OLD.code);
END;

CREATE TRIGGER IF NOT EXISTS snippets_au AFTER UPDATE ON snippets BEGIN
    INSERT INTO snippets_fts(snippets_fts, rowid, title, description, code)
    VALUES('delete', OLD.rowid, OLD.title, OLD.description, OLD.code);
    INSERT INTO snippets_fts(rowid, title, description, code)
    VALUES (NEW.rowid, NEW.title, NEW.description, NEW.code);
END;
`

// Migrations returns all available migrations in order
func Migrations() []Migration {
	return []Migration{
		{Version: 1, Name: "initial_schema", SQL: initialSchemaSQL},
		{Version: 2, Name: "add_snippet_versions", SQL: addVersionsSQL},
		{Version: 3, Name: "add_search", SQL: addSearchSQL},
	}
}
