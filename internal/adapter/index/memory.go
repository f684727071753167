// Package index provides vector index implementations.
package index

import (
	"fmt"
	"math"
	"sort"

	"kb/internal/port"
)

// Memory is a brute-force in-memory vector index: every query scans all
// entries. This is O(N) per query, which is fine at knowledge-base scale
// (hundreds to low thousands of chunks); swap in an ANN structure behind
// port.VectorIndex if that stops being true.
type Memory struct {
	entries []port.IndexEntry
}

// NewMemory builds an index over the given entries. The entries slice is not
// copied; callers must not mutate it afterwards.
func NewMemory(entries []port.IndexEntry) *Memory {
	return &Memory{entries: entries}
}

var _ port.VectorIndex = (*Memory)(nil)

// Search returns the top-k entries by cosine similarity, highest first.
// Ties keep scan order (stable sort). Returns min(k, len(entries)) results.
func (m *Memory) Search(query []float32, k int) ([]port.VectorHit, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if len(m.entries) == 0 {
		return nil, nil
	}

	hits := make([]port.VectorHit, 0, len(m.entries))
	for _, entry := range m.entries {
		hits = append(hits, port.VectorHit{
			ChunkID: entry.ChunkID,
			Score:   CosineSimilarity(query, entry.Vector),
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})

	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

// Len returns the number of indexed vectors.
func (m *Memory) Len() int {
	return len(m.entries)
}

// CosineSimilarity computes the cosine similarity between two vectors. The
// result is in [-1, 1]. Mismatched lengths or a zero-magnitude vector yield
// 0 rather than an error, so degenerate vectors never abort a search.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
