// Package store implements the embedded relational store (spec §4.4,
// component C4): schema, CRUD, cascade deletes, and full-text index
// maintenance over a single SQLite file. The Store never interprets body
// bytes; it is a typed byte store (§4.4).
package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

// File mirrors a row of the files table (spec §3).
type File struct {
	ID          int64
	Path        string
	Kind        string
	Shape       string
	HeaderBlob  []byte
	ContentHash string
	Fingerprint uint64
	CreatedAt   string
	UpdatedAt   string
}

// Section mirrors a row of the sections table (spec §3).
type Section struct {
	ID            int64
	FileID        int64
	ParentID      *int64
	Depth         int
	Title         string
	Body          []byte
	OrderIndex    int
	LineStart     int
	LineEnd       int
	ClosingSuffix []byte
}

// SectionInput is what callers (the ingest pipeline) supply to PutFile.
// ParentIndex references another element of the same slice by position,
// or -1 for a top-level section; OrderIndex is assigned as the slice
// index, matching the parser's Flatten order.
type SectionInput struct {
	ParentIndex   int
	Depth         int
	Title         string
	Body          []byte
	ClosingSuffix []byte
	LineStart     int
	LineEnd       int
}

// SearchHit is one ranked result from Search or VectorSearch.
type SearchHit struct {
	SectionID int64
	FileID    int64
	Title     string
	Score     float64
}

// Stats summarizes store contents (SPEC_FULL.md §C.2).
type Stats struct {
	Files      int
	Sections   int
	Embeddings int
}

// Store wraps the SQLite database backing one secsplit corpus.
type Store struct {
	db           *sql.DB
	embeddingDim int
	path         string
}

// openPaths tracks store files currently open for writes within this
// process (spec §5: "the store file is owned exclusively by the running
// process"). SQLite itself arbitrates across processes via its file
// locks; this guards against the same process opening two writer
// handles onto one path, which SQLite's locking alone would not catch
// quickly (the second handle would simply block on first write).
var (
	openPathsMu sync.Mutex
	openPaths   = map[string]bool{}
)

// New opens (or creates) a SQLite database at dbPath and initializes the
// schema, including the sqlite-vec and FTS5 virtual tables. Per §5, the
// store file is owned exclusively by the running process; a second
// attempt to open the same path for writes from this process is an error.
func New(dbPath string, embeddingDim int) (*Store, error) {
	abs, err := filepath.Abs(dbPath)
	if err != nil {
		return nil, fmt.Errorf("resolving store path: %w", err)
	}

	openPathsMu.Lock()
	if openPaths[abs] {
		openPathsMu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrAlreadyOpen, abs)
	}
	openPaths[abs] = true
	openPathsMu.Unlock()

	s, err := open(dbPath, embeddingDim)
	if err != nil {
		openPathsMu.Lock()
		delete(openPaths, abs)
		openPathsMu.Unlock()
		return nil, err
	}
	s.path = abs
	return s, nil
}

func open(dbPath string, embeddingDim int) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging store: %w", err)
	}

	if _, err := db.Exec(schemaSQL(embeddingDim)); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db, embeddingDim: embeddingDim}

	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close releases the underlying database connection and releases this
// process's claim on the store path. Per §5, closing flushes pending FTS
// index writes.
func (s *Store) Close() error {
	if s.path != "" {
		openPathsMu.Lock()
		delete(openPaths, s.path)
		openPathsMu.Unlock()
	}
	return s.db.Close()
}

// DB returns the underlying *sql.DB for operations this package doesn't
// wrap directly.
func (s *Store) DB() *sql.DB {
	return s.db
}

// EmbeddingDim returns the configured vector dimension.
func (s *Store) EmbeddingDim() int {
	return s.embeddingDim
}

// PutFile implements §4.4's put_file contract: within one transaction,
// deletes any existing file at path (cascading), inserts the new file
// row, inserts all sections assigning order_index in document order,
// wires parent_id, and refreshes the FTS index. Atomic: on any error the
// store is left exactly as it was.
//
// fingerprint is the caller's fast xxhash digest of the raw input bytes
// (hashutil.Fingerprint). If it matches the fingerprint recorded by the
// prior ingest at path, and contentHash agrees too, PutFile treats the
// re-ingest as a no-op and skips the delete+reinsert entirely rather than
// recomputing anything below this call (§4.4 re-ingest).
func (s *Store) PutFile(ctx context.Context, path, kind, shape string, headerBlob []byte, contentHash string, fingerprint uint64, sections []SectionInput) (int64, error) {
	if !validKinds[kind] {
		return 0, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	if !validShapes[shape] {
		return 0, fmt.Errorf("%w: %q", ErrInvalidShape, shape)
	}

	var fileID int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		existing, err := s.getFileRowTx(ctx, tx, path)
		if err != nil && err != ErrNotFound {
			return err
		}
		if err == nil && existing.Fingerprint == fingerprint && existing.ContentHash == contentHash {
			fileID = existing.ID
			return nil
		}

		if _, err := tx.ExecContext(ctx, `
			DELETE FROM vec_embeddings WHERE section_id IN (
				SELECT id FROM sections WHERE file_id = (SELECT id FROM files WHERE path = ?)
			)`, path); err != nil {
			return fmt.Errorf("deleting prior vector embeddings: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM files WHERE path = ?", path); err != nil {
			return fmt.Errorf("deleting prior file: %w", err)
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO files (path, kind, shape, header_blob, content_hash, fingerprint)
			VALUES (?, ?, ?, ?, ?, ?)
		`, path, kind, shape, headerBlob, contentHash, fingerprint)
		if err != nil {
			return fmt.Errorf("inserting file: %w", err)
		}
		fileID, err = res.LastInsertId()
		if err != nil {
			return err
		}

		ids := make([]int64, len(sections))
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO sections
				(file_id, parent_id, depth, title, body, order_index, line_start, line_end, closing_suffix)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, sec := range sections {
			var parentID interface{}
			if sec.ParentIndex >= 0 {
				if sec.ParentIndex >= i {
					return fmt.Errorf("section %d: parent_index %d does not precede it", i, sec.ParentIndex)
				}
				parentID = ids[sec.ParentIndex]
			}
			res, err := stmt.ExecContext(ctx, fileID, parentID, sec.Depth, sec.Title,
				sec.Body, i, sec.LineStart, sec.LineEnd, sec.ClosingSuffix)
			if err != nil {
				return fmt.Errorf("inserting section %d: %w", i, err)
			}
			ids[i], err = res.LastInsertId()
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return fileID, nil
}

// GetFile returns the file row and its sections in order_index order.
func (s *Store) GetFile(ctx context.Context, path string) (*File, []Section, error) {
	f, err := s.getFileRow(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	sections, err := s.sectionsByFile(ctx, f.ID)
	if err != nil {
		return nil, nil, err
	}
	return f, sections, nil
}

func (s *Store) getFileRow(ctx context.Context, path string) (*File, error) {
	var f File
	row := s.db.QueryRowContext(ctx, `
		SELECT id, path, kind, shape, header_blob, content_hash, fingerprint, created_at, updated_at
		FROM files WHERE path = ?
	`, path)
	if err := row.Scan(&f.ID, &f.Path, &f.Kind, &f.Shape, &f.HeaderBlob, &f.ContentHash, &f.Fingerprint, &f.CreatedAt, &f.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &f, nil
}

func (s *Store) sectionsByFile(ctx context.Context, fileID int64) ([]Section, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, file_id, parent_id, depth, title, body, order_index, line_start, line_end, closing_suffix
		FROM sections WHERE file_id = ? ORDER BY order_index
	`, fileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Section
	for rows.Next() {
		var sec Section
		var parentID sql.NullInt64
		var closingSuffix []byte
		if err := rows.Scan(&sec.ID, &sec.FileID, &parentID, &sec.Depth, &sec.Title,
			&sec.Body, &sec.OrderIndex, &sec.LineStart, &sec.LineEnd, &closingSuffix); err != nil {
			return nil, err
		}
		if parentID.Valid {
			v := parentID.Int64
			sec.ParentID = &v
		}
		sec.ClosingSuffix = closingSuffix
		out = append(out, sec)
	}
	return out, rows.Err()
}

// GetSection returns one section by id.
func (s *Store) GetSection(ctx context.Context, id int64) (*Section, error) {
	var sec Section
	var parentID sql.NullInt64
	row := s.db.QueryRowContext(ctx, `
		SELECT id, file_id, parent_id, depth, title, body, order_index, line_start, line_end, closing_suffix
		FROM sections WHERE id = ?
	`, id)
	if err := row.Scan(&sec.ID, &sec.FileID, &parentID, &sec.Depth, &sec.Title,
		&sec.Body, &sec.OrderIndex, &sec.LineStart, &sec.LineEnd, &sec.ClosingSuffix); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if parentID.Valid {
		v := parentID.Int64
		sec.ParentID = &v
	}
	return &sec, nil
}

// DeleteFile cascades the removal of a file, its sections, and any
// embedding rows keyed by those sections (spec invariant 5).
func (s *Store) DeleteFile(ctx context.Context, path string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		f, err := s.getFileRowTx(ctx, tx, path)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM vec_embeddings WHERE section_id IN (
				SELECT id FROM sections WHERE file_id = ?
			)`, f.ID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM embeddings WHERE file_id = ?", f.ID); err != nil {
			return err
		}
		// sections cascade via ON DELETE CASCADE; triggers clean up FTS.
		if _, err := tx.ExecContext(ctx, "DELETE FROM files WHERE id = ?", f.ID); err != nil {
			return err
		}
		return nil
	})
}

func (s *Store) getFileRowTx(ctx context.Context, tx *sql.Tx, path string) (*File, error) {
	var f File
	row := tx.QueryRowContext(ctx, "SELECT id, content_hash, fingerprint FROM files WHERE path = ?", path)
	if err := row.Scan(&f.ID, &f.ContentHash, &f.Fingerprint); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &f, nil
}

// NextSibling returns the section in the same file with the smallest
// order_index greater than section's, sharing its parent_id (spec §4.4).
func (s *Store) NextSibling(ctx context.Context, sectionID int64) (*Section, error) {
	cur, err := s.GetSection(ctx, sectionID)
	if err != nil {
		return nil, err
	}

	var query string
	var args []interface{}
	if cur.ParentID == nil {
		query = `
			SELECT id FROM sections
			WHERE file_id = ? AND parent_id IS NULL AND order_index > ?
			ORDER BY order_index LIMIT 1`
		args = []interface{}{cur.FileID, cur.OrderIndex}
	} else {
		query = `
			SELECT id FROM sections
			WHERE file_id = ? AND parent_id = ? AND order_index > ?
			ORDER BY order_index LIMIT 1`
		args = []interface{}{cur.FileID, *cur.ParentID, cur.OrderIndex}
	}

	var id int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s.GetSection(ctx, id)
}

// FirstChild returns the child of sectionID with the smallest order_index.
func (s *Store) FirstChild(ctx context.Context, sectionID int64) (*Section, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM sections WHERE parent_id = ? ORDER BY order_index LIMIT 1
	`, sectionID).Scan(&id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s.GetSection(ctx, id)
}

// TreeNode is one entry of Tree's depth-first, body-elided hierarchy.
type TreeNode struct {
	ID       int64
	Depth    int
	Title    string
	Children []*TreeNode
}

// Tree returns a depth-first traversal of path's sections with bodies
// omitted (spec §4.7).
func (s *Store) Tree(ctx context.Context, path string) ([]*TreeNode, error) {
	_, sections, err := s.GetFile(ctx, path)
	if err != nil {
		return nil, err
	}

	nodes := make(map[int64]*TreeNode, len(sections))
	var roots []*TreeNode
	// sections are already in order_index order, i.e. parent before child.
	for _, sec := range sections {
		n := &TreeNode{ID: sec.ID, Depth: sec.Depth, Title: sec.Title}
		nodes[sec.ID] = n
		if sec.ParentID == nil {
			roots = append(roots, n)
			continue
		}
		parent := nodes[*sec.ParentID]
		parent.Children = append(parent.Children, n)
	}
	return roots, nil
}

// Search runs an FTS5 MATCH query over (title, body), scored by BM25.
// rewrittenQuery is expected to already be rewritten per §4.8; this is a
// thin wrapper that just executes it and scopes by file path if given.
func (s *Store) Search(ctx context.Context, rewrittenQuery string, pathScope string, limit int) ([]SearchHit, error) {
	var rows *sql.Rows
	var err error
	if pathScope != "" {
		rows, err = s.db.QueryContext(ctx, `
			SELECT f.rowid, s.file_id, s.title, f.rank
			FROM sections_fts f
			JOIN sections s ON s.id = f.rowid
			JOIN files ON files.id = s.file_id
			WHERE sections_fts MATCH ? AND files.path = ?
			ORDER BY f.rank LIMIT ?
		`, rewrittenQuery, pathScope, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT f.rowid, s.file_id, s.title, f.rank
			FROM sections_fts f
			JOIN sections s ON s.id = f.rowid
			WHERE sections_fts MATCH ?
			ORDER BY f.rank LIMIT ?
		`, rewrittenQuery, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SearchHit
	for rows.Next() {
		var hit SearchHit
		var rank float64
		if err := rows.Scan(&hit.SectionID, &hit.FileID, &hit.Title, &rank); err != nil {
			return nil, err
		}
		// FTS5 rank is negative (lower = better); flip so higher = better,
		// matching the convention the rest of this package's callers expect.
		hit.Score = -rank
		out = append(out, hit)
	}
	return out, rows.Err()
}

// InsertEmbedding stores a vector for a section, replacing any existing
// one. One current embedding per section is kept (most recent model
// wins); model_id is recorded so blend callers can tell which model
// produced it.
func (s *Store) InsertEmbedding(ctx context.Context, sectionID, fileID int64, modelID string, vector []float32) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO embeddings (section_id, file_id, model_id) VALUES (?, ?, ?)
			ON CONFLICT(section_id) DO UPDATE SET file_id = excluded.file_id, model_id = excluded.model_id
		`, sectionID, fileID, modelID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			"INSERT OR REPLACE INTO vec_embeddings (section_id, embedding) VALUES (?, ?)",
			sectionID, serializeFloat32(vector))
		return err
	})
}

// VectorSearch performs a KNN search over vec_embeddings, converting
// cosine distance to a [-1,1]-range similarity the way the collaborator
// contract in §4.9 expects.
func (s *Store) VectorSearch(ctx context.Context, queryVector []float32, k int) ([]SearchHit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT v.section_id, v.distance, s.file_id, s.title
		FROM vec_embeddings v
		JOIN sections s ON s.id = v.section_id
		WHERE v.embedding MATCH ? AND k = ?
		ORDER BY v.distance
	`, serializeFloat32(queryVector), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SearchHit
	for rows.Next() {
		var hit SearchHit
		var distance float64
		if err := rows.Scan(&hit.SectionID, &distance, &hit.FileID, &hit.Title); err != nil {
			return nil, err
		}
		hit.Score = 1.0 - distance
		out = append(out, hit)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, rows.Err()
}

// Query adapts VectorSearch to the blend.VectorIndex collaborator
// interface, so the store can be passed directly as a Blender's index.
func (s *Store) Query(ctx context.Context, vector []float32, k int) ([]SearchHit, error) {
	return s.VectorSearch(ctx, vector, k)
}

// Stats returns corpus-wide counts of files, sections, and embeddings.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM files").Scan(&st.Files); err != nil {
		return Stats{}, err
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sections").Scan(&st.Sections); err != nil {
		return Stats{}, err
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM embeddings").Scan(&st.Embeddings); err != nil {
		return Stats{}, err
	}
	return st, nil
}

// ListFiles returns every stored file's path, for the integrity runner.
func (s *Store) ListFiles(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT path FROM files ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// serializeFloat32 converts a float32 slice to little-endian bytes for
// sqlite-vec's vec0 storage format.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}
