package store

import "fmt"

// validKinds is the closed enumeration spec §3 defines for File.kind.
// The core treats kind as an opaque label; the Store only validates
// membership at PutFile time (SPEC_FULL.md §C.1).
var validKinds = map[string]bool{
	"guide":         true,
	"command":       true,
	"reference":     true,
	"agent":         true,
	"plugin":        true,
	"hook":          true,
	"config":        true,
	"output-style":  true,
	"script":        true,
	"documentation": true,
}

// validShapes is the closed enumeration for File.shape (spec §3).
var validShapes = map[string]bool{
	"headings":   true,
	"tags":       true,
	"mixed":      true,
	"json":       true,
	"shell":      true,
	"multi-file": true,
	"opaque":     true,
}

// schemaSQL returns the base DDL (schema_version 1). embeddingDim sizes
// the vec0 virtual table.
func schemaSQL(embeddingDim int) string {
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS files (
    id INTEGER PRIMARY KEY,
    path TEXT NOT NULL UNIQUE,
    kind TEXT NOT NULL,
    shape TEXT NOT NULL,
    header_blob BLOB,
    content_hash TEXT NOT NULL,
    fingerprint INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS sections (
    id INTEGER PRIMARY KEY,
    file_id INTEGER NOT NULL REFERENCES files(id) ON DELETE CASCADE,
    parent_id INTEGER REFERENCES sections(id) ON DELETE CASCADE,
    depth INTEGER NOT NULL,
    title TEXT NOT NULL,
    body BLOB NOT NULL,
    order_index INTEGER NOT NULL,
    line_start INTEGER NOT NULL,
    line_end INTEGER NOT NULL,
    closing_suffix BLOB
);

CREATE VIRTUAL TABLE IF NOT EXISTS sections_fts USING fts5(
    title,
    body,
    content='sections',
    content_rowid='id',
    tokenize='porter unicode61'
);

CREATE TRIGGER IF NOT EXISTS sections_ai AFTER INSERT ON sections BEGIN
    INSERT INTO sections_fts(rowid, title, body) VALUES (new.id, new.title, new.body);
END;
CREATE TRIGGER IF NOT EXISTS sections_ad AFTER DELETE ON sections BEGIN
    INSERT INTO sections_fts(sections_fts, rowid, title, body) VALUES ('delete', old.id, old.title, old.body);
END;
CREATE TRIGGER IF NOT EXISTS sections_au AFTER UPDATE ON sections BEGIN
    INSERT INTO sections_fts(sections_fts, rowid, title, body) VALUES ('delete', old.id, old.title, old.body);
    INSERT INTO sections_fts(rowid, title, body) VALUES (new.id, new.title, new.body);
END;

CREATE TABLE IF NOT EXISTS embeddings (
    section_id INTEGER PRIMARY KEY REFERENCES sections(id) ON DELETE CASCADE,
    file_id INTEGER NOT NULL REFERENCES files(id) ON DELETE CASCADE,
    model_id TEXT NOT NULL
);

CREATE VIRTUAL TABLE IF NOT EXISTS vec_embeddings USING vec0(
    section_id INTEGER PRIMARY KEY,
    embedding float[%d] distance_metric=cosine
);

CREATE INDEX IF NOT EXISTS idx_sections_file ON sections(file_id);
CREATE INDEX IF NOT EXISTS idx_sections_parent ON sections(parent_id);
CREATE INDEX IF NOT EXISTS idx_sections_file_order ON sections(file_id, order_index);
CREATE INDEX IF NOT EXISTS idx_files_hash ON files(content_hash);
CREATE INDEX IF NOT EXISTS idx_embeddings_file ON embeddings(file_id);
`, embeddingDim)
}
