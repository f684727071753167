package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"kb/internal/adapter/cache"
	"kb/internal/adapter/index"
	"kb/internal/domain"
	"kb/internal/port"
)

// SearchUseCase answers free-text queries: embed the query with the same
// model used at ingestion, scan all stored embeddings by cosine similarity
// and join parent document metadata onto the top-k chunks.
type SearchUseCase struct {
	store    port.DocumentStore
	embedder port.Embedder
	build    port.IndexBuilder
	cache    *cache.QueryCache
}

func NewSearchUseCase(store port.DocumentStore, embedder port.Embedder, queryCache *cache.QueryCache) *SearchUseCase {
	return &SearchUseCase{
		store:    store,
		embedder: embedder,
		build: func(entries []port.IndexEntry) port.VectorIndex {
			return index.NewMemory(entries)
		},
		cache: queryCache,
	}
}

// WithIndexBuilder swaps the vector index implementation, e.g. for an ANN
// structure at larger scale.
func (u *SearchUseCase) WithIndexBuilder(build port.IndexBuilder) *SearchUseCase {
	u.build = build
	return u
}

// Search returns the top-k chunks for the query, ranked by descending cosine
// similarity. At most k results are returned; fewer only when the store holds
// fewer embeddings.
func (u *SearchUseCase) Search(ctx context.Context, query string, k int) ([]domain.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query must not be empty")
	}
	if k <= 0 {
		k = 5
	}

	if u.cache != nil {
		if results, ok := u.cache.Get(query, k); ok {
			return results, nil
		}
	}

	vectors, err := u.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedding returned empty result")
	}

	entries, err := u.store.AllEmbeddings(ctx, u.embedder.ModelName())
	if err != nil {
		return nil, fmt.Errorf("failed to load embeddings: %w", err)
	}

	hits, err := u.build(entries).Search(vectors[0], k)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	results := make([]domain.SearchResult, 0, len(hits))
	for _, hit := range hits {
		chunk, err := u.store.GetChunk(ctx, hit.ChunkID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to load chunk %s: %w", hit.ChunkID, err)
		}
		doc, err := u.store.GetDocument(ctx, chunk.DocumentID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to load document %s: %w", chunk.DocumentID, err)
		}

		results = append(results, domain.SearchResult{
			ChunkID: chunk.ID,
			Title:   doc.Title,
			Content: chunk.Content,
			Tags:    doc.Tags,
			Score:   hit.Score,
			Source:  doc.Source,
		})
	}

	if u.cache != nil {
		u.cache.Put(query, k, results)
	}
	return results, nil
}

// InvalidateCache marks cached search results stale after a store write.
func (u *SearchUseCase) InvalidateCache() {
	if u.cache != nil {
		u.cache.Invalidate()
	}
}
