package domain

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a document or chunk does not exist.
var ErrNotFound = errors.New("not found")

// Document is a logical knowledge-base article. Source is the natural key:
// re-ingesting the same source replaces the document's content in place and
// keeps the same ID.
type Document struct {
	ID        string
	Source    string
	Title     string
	Topic     string
	Tags      []string
	Summary   string
	Body      string
	Metadata  map[string]string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Chunk is an ordered text segment belonging to exactly one document.
// Index is zero-based and defines reconstruction order.
type Chunk struct {
	ID         string
	DocumentID string
	Index      int
	Content    string
	TokenCount int
	Metadata   map[string]string
}

// Embedding is the vector representation of one chunk for one model.
type Embedding struct {
	ID        string
	ChunkID   string
	Model     string
	Vector    []float32
	CreatedAt time.Time
}

// SearchResult is one ranked hit returned by a query, joined with its
// parent document's metadata.
type SearchResult struct {
	ChunkID string   `json:"chunk_id"`
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags"`
	Score   float64  `json:"score"`
	Source  string   `json:"source"`
}

// IngestReport summarizes a batch ingestion run.
type IngestReport struct {
	Ingested      int
	Failed        int
	ChunksCreated int
	Errors        []string
}
