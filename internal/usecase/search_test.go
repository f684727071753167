package usecase

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kb/internal/adapter/cache"
	"kb/internal/adapter/embedding"
	"kb/internal/adapter/store/sqlite"
	"kb/internal/domain"
	"kb/internal/port"
)

// countingEmbedder counts Embed calls, for cache verification.
type countingEmbedder struct {
	port.Embedder
	calls atomic.Int64
}

func (c *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls.Add(1)
	return c.Embedder.Embed(ctx, texts)
}

func seedSearchStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.NewStore(filepath.Join(t.TempDir(), "kb.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	embedder := embedding.NewMockEmbedder(16)
	ctx := context.Background()

	docs := []struct {
		source, title, content string
		tags                   []string
	}{
		{"pricing.md", "Pricing Guide", "how to price a digital product for maximum revenue", []string{"pricing"}},
		{"seo.md", "SEO Basics", "improving search ranking with better page titles", []string{"seo", "marketing"}},
		{"email.md", "Email Lists", "growing an email list before your product launch", []string{"email"}},
	}
	for _, d := range docs {
		doc := &domain.Document{Source: d.source, Title: d.title, Tags: d.tags, Body: d.content}
		chunk := domain.Chunk{Index: 0, Content: d.content, TokenCount: len(d.content) / 4}

		vecs, err := embedder.Embed(ctx, []string{d.content})
		require.NoError(t, err)

		chunk.ID = d.source + "-chunk-0"
		emb := domain.Embedding{ChunkID: chunk.ID, Model: "mock", Vector: vecs[0]}
		require.NoError(t, store.ReplaceDocument(ctx, doc, []domain.Chunk{chunk}, []domain.Embedding{emb}))
	}
	return store
}

func TestSearchRanksExactMatchFirst(t *testing.T) {
	store := seedSearchStore(t)
	uc := NewSearchUseCase(store, embedding.NewMockEmbedder(16), nil)

	results, err := uc.Search(context.Background(), "how to price a digital product for maximum revenue", 3)
	require.NoError(t, err)
	require.Len(t, results, 3)

	top := results[0]
	assert.Equal(t, "pricing.md", top.Source)
	assert.Equal(t, "Pricing Guide", top.Title)
	assert.Equal(t, []string{"pricing"}, top.Tags)
	assert.InDelta(t, 1.0, top.Score, 1e-6, "identical text embeds to an identical vector")

	for i := 0; i < len(results)-1; i++ {
		assert.GreaterOrEqual(t, results[i].Score, results[i+1].Score, "scores must be non-increasing")
	}
}

func TestSearchRespectsLimit(t *testing.T) {
	store := seedSearchStore(t)
	uc := NewSearchUseCase(store, embedding.NewMockEmbedder(16), nil)

	results, err := uc.Search(context.Background(), "product launch", 1)
	require.NoError(t, err)
	assert.Len(t, results, 1)

	results, err = uc.Search(context.Background(), "product launch", 50)
	require.NoError(t, err)
	assert.Len(t, results, 3, "never more than the number of stored embeddings")
}

func TestSearchEmptyQuery(t *testing.T) {
	store := seedSearchStore(t)
	uc := NewSearchUseCase(store, embedding.NewMockEmbedder(16), nil)

	_, err := uc.Search(context.Background(), "   ", 5)
	assert.Error(t, err)
}

func TestSearchEmptyStore(t *testing.T) {
	store, err := sqlite.NewStore(filepath.Join(t.TempDir(), "kb.db"))
	require.NoError(t, err)
	defer store.Close()

	uc := NewSearchUseCase(store, embedding.NewMockEmbedder(16), nil)
	results, err := uc.Search(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchUsesCache(t *testing.T) {
	store := seedSearchStore(t)
	counting := &countingEmbedder{Embedder: embedding.NewMockEmbedder(16)}
	uc := NewSearchUseCase(store, counting, cache.NewQueryCache(10, time.Minute))
	ctx := context.Background()

	_, err := uc.Search(ctx, "pricing strategy", 2)
	require.NoError(t, err)
	_, err = uc.Search(ctx, "pricing strategy", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counting.calls.Load(), "second identical query served from cache")

	uc.InvalidateCache()
	_, err = uc.Search(ctx, "pricing strategy", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counting.calls.Load(), "invalidation forces a fresh scan")
}
