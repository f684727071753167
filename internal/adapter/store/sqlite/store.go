// Package sqlite implements the document store over a single SQLite file.
// Foreign keys cascade Document -> Chunk -> Embedding, so deleting a document
// wipes every row that references it.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"kb/internal/adapter/store/sqlite/migrations"
	"kb/internal/domain"
	"kb/internal/port"
)

// Store is a SQLite-backed document store.
type Store struct {
	db   *sql.DB
	path string
}

var _ port.DocumentStore = (*Store)(nil)

// NewStore opens (creating if needed) the SQLite database at path and runs
// pending migrations.
func NewStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// UpsertDocument inserts the document or replaces an existing document with
// the same source. On replacement, the old chunk set is deleted (cascading to
// embeddings) and the document keeps its original ID, so consumers holding a
// document ID are not broken by content updates.
func (s *Store) UpsertDocument(ctx context.Context, doc *domain.Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := upsertDocumentTx(ctx, tx, doc); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// ReplaceDocument performs a full ingestion of one document in a single
// transaction: upsert by source, delete old chunks, insert the new chunks and
// their embeddings in index order. A crash mid-upsert leaves either the
// fully-old or fully-new chunk set, never a mix.
func (s *Store) ReplaceDocument(ctx context.Context, doc *domain.Document, chunks []domain.Chunk, embeddings []domain.Embedding) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := upsertDocumentTx(ctx, tx, doc); err != nil {
		return err
	}

	for i := range chunks {
		chunks[i].DocumentID = doc.ID
		if err := insertChunkTx(ctx, tx, &chunks[i]); err != nil {
			return err
		}
	}
	for i := range embeddings {
		if err := insertEmbeddingTx(ctx, tx, &embeddings[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func upsertDocumentTx(ctx context.Context, tx *sql.Tx, doc *domain.Document) error {
	tagsJSON, err := json.Marshal(tagsOrEmpty(doc.Tags))
	if err != nil {
		return fmt.Errorf("marshalling tags: %w", err)
	}
	metadataJSON, err := json.Marshal(metadataOrEmpty(doc.Metadata))
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}

	now := time.Now().UTC()

	var existingID string
	err = tx.QueryRowContext(ctx, "SELECT id FROM documents WHERE source = ?", doc.Source).Scan(&existingID)
	switch {
	case err == nil:
		// Existing source: wipe old chunks (embeddings cascade) and update
		// fields in place, keeping the ID stable.
		doc.ID = existingID
		doc.UpdatedAt = now
		if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", existingID); err != nil {
			return fmt.Errorf("deleting old chunks: %w", err)
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE documents
			SET title = ?, topic = ?, tags = ?, summary = ?, body = ?, metadata = ?, updated_at = ?
			WHERE id = ?
		`, doc.Title, doc.Topic, string(tagsJSON), doc.Summary, doc.Body, string(metadataJSON), doc.UpdatedAt, existingID)
		if err != nil {
			return fmt.Errorf("updating document: %w", err)
		}
		return nil

	case errors.Is(err, sql.ErrNoRows):
		if doc.ID == "" {
			doc.ID = uuid.NewString()
		}
		doc.CreatedAt = now
		doc.UpdatedAt = now
		_, err := tx.ExecContext(ctx, `
			INSERT INTO documents (id, source, title, topic, tags, summary, body, metadata, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, doc.ID, doc.Source, doc.Title, doc.Topic, string(tagsJSON), doc.Summary, doc.Body,
			string(metadataJSON), doc.CreatedAt, doc.UpdatedAt)
		if err != nil {
			return fmt.Errorf("inserting document: %w", err)
		}
		return nil

	default:
		return fmt.Errorf("looking up document by source: %w", err)
	}
}

// InsertChunk appends a chunk. Index ordering is preserved by the position
// column for later reconstruction of the original document flow.
func (s *Store) InsertChunk(ctx context.Context, chunk *domain.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := insertChunkTx(ctx, tx, chunk); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func insertChunkTx(ctx context.Context, tx *sql.Tx, chunk *domain.Chunk) error {
	if chunk.ID == "" {
		chunk.ID = uuid.NewString()
	}
	metadataJSON, err := json.Marshal(metadataOrEmpty(chunk.Metadata))
	if err != nil {
		return fmt.Errorf("marshalling chunk metadata: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO chunks (id, document_id, position, content, token_count, metadata)
		VALUES (?, ?, ?, ?, ?, ?)
	`, chunk.ID, chunk.DocumentID, chunk.Index, chunk.Content, chunk.TokenCount, string(metadataJSON))
	if err != nil {
		return fmt.Errorf("inserting chunk %d: %w", chunk.Index, err)
	}
	return nil
}

// InsertEmbedding attaches a vector to a chunk. Re-embedding a chunk with the
// same model replaces the stored vector; a different model gets its own row.
func (s *Store) InsertEmbedding(ctx context.Context, emb *domain.Embedding) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := insertEmbeddingTx(ctx, tx, emb); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func insertEmbeddingTx(ctx context.Context, tx *sql.Tx, emb *domain.Embedding) error {
	if emb.ID == "" {
		emb.ID = uuid.NewString()
	}
	if emb.CreatedAt.IsZero() {
		emb.CreatedAt = time.Now().UTC()
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO embeddings (id, chunk_id, model, dimension, vector, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id, model) DO UPDATE SET
			dimension = excluded.dimension,
			vector = excluded.vector,
			created_at = excluded.created_at
	`, emb.ID, emb.ChunkID, emb.Model, len(emb.Vector), float32SliceToBytes(emb.Vector), emb.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting embedding for chunk %s: %w", emb.ChunkID, err)
	}
	return nil
}

// GetDocument retrieves a document by ID.
func (s *Store) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, source, title, topic, tags, summary, body, metadata, created_at, updated_at
		FROM documents WHERE id = ?
	`, id)
	return scanDocument(row)
}

// GetDocumentBySource retrieves a document by its natural key.
func (s *Store) GetDocumentBySource(ctx context.Context, source string) (*domain.Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, source, title, topic, tags, summary, body, metadata, created_at, updated_at
		FROM documents WHERE source = ?
	`, source)
	return scanDocument(row)
}

// ListDocuments returns all documents ordered by source.
func (s *Store) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, title, topic, tags, summary, body, metadata, created_at, updated_at
		FROM documents ORDER BY source
	`)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document //nolint:prealloc // size unknown from query
	for rows.Next() {
		doc, err := scanDocumentRows(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

// DeleteDocument removes a document; chunks and embeddings cascade.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetChunks retrieves a document's chunks ordered by index.
func (s *Store) GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, position, content, token_count, metadata
		FROM chunks WHERE document_id = ?
		ORDER BY position
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, *chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return chunks, nil
}

// GetChunk retrieves a specific chunk by ID.
func (s *Store) GetChunk(ctx context.Context, id string) (*domain.Chunk, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, document_id, position, content, token_count, metadata
		FROM chunks WHERE id = ?
	`, id)

	var chunk domain.Chunk
	var metadataJSON string
	if err := row.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Index, &chunk.Content,
		&chunk.TokenCount, &metadataJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning chunk: %w", err)
	}
	if err := json.Unmarshal([]byte(metadataJSON), &chunk.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshaling chunk metadata: %w", err)
	}
	return &chunk, nil
}

// DeleteChunks removes all chunks for a document; embeddings cascade.
func (s *Store) DeleteChunks(ctx context.Context, documentID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", documentID); err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}
	return nil
}

// AllEmbeddings returns every stored embedding for the given model, suitable
// for loading into a vector index. Only embeddings from a single model are
// comparable: mixing models would put incomparable vectors in one space.
func (s *Store) AllEmbeddings(ctx context.Context, model string) ([]port.IndexEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT chunk_id, vector FROM embeddings WHERE model = ?
	`, model)
	if err != nil {
		return nil, fmt.Errorf("querying embeddings: %w", err)
	}
	defer rows.Close()

	var entries []port.IndexEntry //nolint:prealloc // size unknown from query
	for rows.Next() {
		var entry port.IndexEntry
		var blob []byte
		if err := rows.Scan(&entry.ChunkID, &blob); err != nil {
			return nil, fmt.Errorf("scanning embedding: %w", err)
		}
		entry.Vector = bytesToFloat32Slice(blob)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating embeddings: %w", err)
	}
	return entries, nil
}

// CountEmbeddings returns the number of stored embeddings for a model.
func (s *Store) CountEmbeddings(ctx context.Context, model string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM embeddings WHERE model = ?", model).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting embeddings: %w", err)
	}
	return n, nil
}

func scanDocument(row *sql.Row) (*domain.Document, error) {
	var doc domain.Document
	var tagsJSON, metadataJSON string
	var createdAt, updatedAt sql.NullTime
	if err := row.Scan(&doc.ID, &doc.Source, &doc.Title, &doc.Topic, &tagsJSON, &doc.Summary,
		&doc.Body, &metadataJSON, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}
	return finishDocument(&doc, tagsJSON, metadataJSON, createdAt, updatedAt)
}

func scanDocumentRows(rows *sql.Rows) (*domain.Document, error) {
	var doc domain.Document
	var tagsJSON, metadataJSON string
	var createdAt, updatedAt sql.NullTime
	if err := rows.Scan(&doc.ID, &doc.Source, &doc.Title, &doc.Topic, &tagsJSON, &doc.Summary,
		&doc.Body, &metadataJSON, &createdAt, &updatedAt); err != nil {
		return nil, fmt.Errorf("scanning document: %w", err)
	}
	return finishDocument(&doc, tagsJSON, metadataJSON, createdAt, updatedAt)
}

func finishDocument(doc *domain.Document, tagsJSON, metadataJSON string, createdAt, updatedAt sql.NullTime) (*domain.Document, error) {
	if err := json.Unmarshal([]byte(tagsJSON), &doc.Tags); err != nil {
		return nil, fmt.Errorf("unmarshaling tags: %w", err)
	}
	if err := json.Unmarshal([]byte(metadataJSON), &doc.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshaling metadata: %w", err)
	}
	if createdAt.Valid {
		doc.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		doc.UpdatedAt = updatedAt.Time
	}
	return doc, nil
}

func scanChunk(rows *sql.Rows) (*domain.Chunk, error) {
	var chunk domain.Chunk
	var metadataJSON string
	if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Index, &chunk.Content,
		&chunk.TokenCount, &metadataJSON); err != nil {
		return nil, fmt.Errorf("scanning chunk: %w", err)
	}
	if err := json.Unmarshal([]byte(metadataJSON), &chunk.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshaling chunk metadata: %w", err)
	}
	return &chunk, nil
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func metadataOrEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

// float32SliceToBytes encodes a vector as little-endian float32 bytes for
// BLOB storage.
func float32SliceToBytes(floats []float32) []byte {
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice decodes a BLOB back into a vector.
func bytesToFloat32Slice(data []byte) []float32 {
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
