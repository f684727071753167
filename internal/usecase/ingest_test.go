package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kb/internal/adapter/chunker"
	"kb/internal/adapter/embedding"
	"kb/internal/adapter/fs"
	"kb/internal/adapter/store/sqlite"
	"kb/internal/port"
)

const failMarker = "EMBEDDING-QUOTA-TRAP"

// flakyEmbedder fails any text containing failMarker, simulating a provider
// error for one specific document.
type flakyEmbedder struct {
	inner port.Embedder
}

func (f *flakyEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	for _, text := range texts {
		if strings.Contains(text, failMarker) {
			return nil, fmt.Errorf("provider rejected request: quota exceeded")
		}
	}
	return f.inner.Embed(ctx, texts)
}

func (f *flakyEmbedder) Dimension() int    { return f.inner.Dimension() }
func (f *flakyEmbedder) ModelName() string { return f.inner.ModelName() }

func writeDoc(t *testing.T, dir, name, title, body string) {
	t.Helper()
	content := fmt.Sprintf("---\ntitle: %q\ntags: [test, fixture]\nsummary: \"fixture doc\"\n---\n%s", title, body)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func newTestIngest(t *testing.T, embedder port.Embedder) (*IngestUseCase, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.NewStore(filepath.Join(t.TempDir(), "kb.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	uc := NewIngestUseCase(
		store,
		fs.NewWalker(nil, nil),
		chunker.NewMarkdownChunker(600, 100, nil),
		embedder,
		slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})),
	)
	return uc, store
}

func TestIngestDirectory(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "pricing.md", "Pricing Guide",
		"# Pricing\nPricing your digital product well matters more than any other decision you make at launch.")
	writeDoc(t, dir, "seo.md", "SEO Basics",
		"# SEO\nSearch engines reward consistent publishing and descriptive titles over clever keyword stuffing.")

	uc, store := newTestIngest(t, embedding.NewMockEmbedder(16))
	ctx := context.Background()

	report, err := uc.Ingest(ctx, dir, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Ingested)
	assert.Equal(t, 0, report.Failed)
	assert.Positive(t, report.ChunksCreated)

	doc, err := store.GetDocumentBySource(ctx, "pricing.md")
	require.NoError(t, err)
	assert.Equal(t, "Pricing Guide", doc.Title)
	assert.Equal(t, []string{"test", "fixture"}, doc.Tags)

	chunks, err := store.GetChunks(ctx, doc.ID)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	count, err := store.CountEmbeddings(ctx, "mock")
	require.NoError(t, err)
	assert.Equal(t, report.ChunksCreated, count, "every stored chunk gets an embedding")
}

func TestIngestIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "guide.md", "Guide",
		"# Guide\nRe-ingesting the same source twice must not duplicate documents or chunks in the store.")

	uc, store := newTestIngest(t, embedding.NewMockEmbedder(16))
	ctx := context.Background()

	first, err := uc.Ingest(ctx, dir, nil)
	require.NoError(t, err)
	doc, err := store.GetDocumentBySource(ctx, "guide.md")
	require.NoError(t, err)
	firstID := doc.ID

	second, err := uc.Ingest(ctx, dir, nil)
	require.NoError(t, err)
	assert.Equal(t, first.ChunksCreated, second.ChunksCreated)

	docs, err := store.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, firstID, docs[0].ID, "document ID stable across re-ingestion")

	chunks, err := store.GetChunks(ctx, firstID)
	require.NoError(t, err)
	assert.Len(t, chunks, first.ChunksCreated)

	count, err := store.CountEmbeddings(ctx, "mock")
	require.NoError(t, err)
	assert.Equal(t, first.ChunksCreated, count, "re-ingestion must not leak embeddings")
}

func TestIngestFailureIsolation(t *testing.T) {
	dir := t.TempDir()
	for i := 1; i <= 5; i++ {
		body := fmt.Sprintf("# Doc %d\nThis is the body of document number %d with enough text to produce a chunk.", i, i)
		if i == 3 {
			body += " " + failMarker
		}
		writeDoc(t, dir, fmt.Sprintf("doc%d.md", i), fmt.Sprintf("Doc %d", i), body)
	}

	uc, store := newTestIngest(t, &flakyEmbedder{inner: embedding.NewMockEmbedder(16)})
	ctx := context.Background()

	var progressed int
	report, err := uc.Ingest(ctx, dir, func(processed, total int, source string, err error) {
		progressed = processed
		assert.Equal(t, 5, total)
	})
	require.NoError(t, err, "batch run itself must not abort")

	assert.Equal(t, 4, report.Ingested)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 5, progressed, "all documents attempted despite the failure")
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "doc3.md")

	docs, err := store.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 4)

	_, err = store.GetDocumentBySource(ctx, "doc3.md")
	assert.Error(t, err, "failed document must not be partially stored")
}

// namedEmbedder overrides the reported model name, for re-embedding tests.
type namedEmbedder struct {
	port.Embedder
	name string
}

func (n *namedEmbedder) ModelName() string { return n.name }

func TestReembed(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "guide.md", "Guide",
		"# Guide\nRe-embedding regenerates vectors for existing chunks without touching their content.")

	uc, store := newTestIngest(t, embedding.NewMockEmbedder(16))
	ctx := context.Background()

	report, err := uc.Ingest(ctx, dir, nil)
	require.NoError(t, err)

	other := NewIngestUseCase(store, fs.NewWalker(nil, nil),
		chunker.NewMarkdownChunker(600, 100, nil),
		&namedEmbedder{Embedder: embedding.NewMockEmbedder(16), name: "mock-v2"},
		nil)

	n, err := other.Reembed(ctx, "guide.md")
	require.NoError(t, err)
	assert.Equal(t, report.ChunksCreated, n)

	count, err := store.CountEmbeddings(ctx, "mock-v2")
	require.NoError(t, err)
	assert.Equal(t, report.ChunksCreated, count)

	// The original model's embeddings are untouched.
	count, err = store.CountEmbeddings(ctx, "mock")
	require.NoError(t, err)
	assert.Equal(t, report.ChunksCreated, count)
}

func TestReembedUnknownSource(t *testing.T) {
	uc, _ := newTestIngest(t, embedding.NewMockEmbedder(16))
	_, err := uc.Reembed(context.Background(), "missing.md")
	assert.Error(t, err)
}
