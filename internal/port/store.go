package port

import (
	"context"

	"kb/internal/domain"
)

// DocumentStore persists documents, their chunks and chunk embeddings.
// Deleting a document cascades to its chunks and their embeddings.
type DocumentStore interface {
	// UpsertDocument inserts the document, or replaces an existing document
	// with the same Source in place. On replacement the existing chunks (and
	// their embeddings) are deleted and the document keeps its original ID.
	// doc.ID is populated on return.
	UpsertDocument(ctx context.Context, doc *domain.Document) error

	// ReplaceDocument performs a full document ingestion in one transaction:
	// upsert by source, delete old chunks, insert the new chunk set and their
	// embeddings. A crash mid-upsert leaves either the fully-old or fully-new
	// chunk set, never a mix.
	ReplaceDocument(ctx context.Context, doc *domain.Document, chunks []domain.Chunk, embeddings []domain.Embedding) error

	InsertChunk(ctx context.Context, chunk *domain.Chunk) error
	InsertEmbedding(ctx context.Context, emb *domain.Embedding) error

	GetDocument(ctx context.Context, id string) (*domain.Document, error)
	GetDocumentBySource(ctx context.Context, source string) (*domain.Document, error)
	ListDocuments(ctx context.Context) ([]domain.Document, error)
	DeleteDocument(ctx context.Context, id string) error

	// GetChunks returns a document's chunks ordered by index.
	GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error)
	GetChunk(ctx context.Context, id string) (*domain.Chunk, error)
	DeleteChunks(ctx context.Context, documentID string) error

	// AllEmbeddings returns every stored embedding for the given model,
	// suitable for loading into a vector index.
	AllEmbeddings(ctx context.Context, model string) ([]IndexEntry, error)

	Close() error
}
