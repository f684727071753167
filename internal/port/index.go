package port

// IndexEntry is one vector loaded into a search index.
type IndexEntry struct {
	ChunkID string
	Vector  []float32
}

// VectorHit is one scored result from a vector index.
type VectorHit struct {
	ChunkID string
	Score   float64
}

// VectorIndex finds the k nearest stored vectors to a query vector.
// The in-memory brute-force implementation is the default; an ANN structure
// can be swapped in behind this interface without touching callers.
type VectorIndex interface {
	Search(query []float32, k int) ([]VectorHit, error)
}

// IndexBuilder constructs a VectorIndex from stored embeddings.
type IndexBuilder func(entries []IndexEntry) VectorIndex
