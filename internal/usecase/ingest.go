package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"kb/internal/adapter/fs"
	"kb/internal/adapter/frontmatter"
	"kb/internal/domain"
	"kb/internal/port"
)

// IngestUseCase drives the ingestion pipeline: walk a directory of source
// documents and run parse -> chunk -> embed -> store for each. Failures are
// isolated per document; one bad file never aborts the batch.
type IngestUseCase struct {
	store    port.DocumentStore
	walker   port.FileWalker
	chunker  port.Chunker
	embedder port.Embedder
	log      *slog.Logger
}

func NewIngestUseCase(
	store port.DocumentStore,
	walker port.FileWalker,
	chunker port.Chunker,
	embedder port.Embedder,
	log *slog.Logger,
) *IngestUseCase {
	if log == nil {
		log = slog.Default()
	}
	return &IngestUseCase{
		store:    store,
		walker:   walker,
		chunker:  chunker,
		embedder: embedder,
		log:      log,
	}
}

// ProgressFunc reports batch progress after each file.
type ProgressFunc func(processed, total int, source string, err error)

// Ingest processes every matching file under root. The returned report
// carries a per-document success/failure tally; the error return is reserved
// for failures that prevent the batch from running at all.
func (u *IngestUseCase) Ingest(ctx context.Context, root string, progress ProgressFunc) (*domain.IngestReport, error) {
	files, err := u.walker.Walk(root)
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	report := &domain.IngestReport{}
	for i, file := range files {
		chunks, err := u.ingestFile(ctx, file)
		if err != nil {
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", file.RelPath, err))
			u.log.Warn("document ingestion failed", "source", file.RelPath, "error", err)
		} else {
			report.Ingested++
			report.ChunksCreated += chunks
		}
		if progress != nil {
			progress(i+1, len(files), file.RelPath, err)
		}
	}

	return report, nil
}

// ingestFile runs the full pipeline for a single source document. Chunks are
// embedded sequentially in index order, then the document, its chunks and
// their embeddings are stored in one transaction so a crash leaves either the
// fully-old or fully-new chunk set.
func (u *IngestUseCase) ingestFile(ctx context.Context, file port.FileInfo) (int, error) {
	content, err := fs.ReadFile(file.Path)
	if err != nil {
		return 0, fmt.Errorf("failed to read file: %w", err)
	}

	parsed := frontmatter.Parse(content)
	for _, line := range parsed.Skipped {
		u.log.Warn("skipped malformed frontmatter line", "source", file.RelPath, "line", line)
	}

	chunks := u.chunker.Chunk(parsed.Body)

	embeddings := make([]domain.Embedding, 0, len(chunks))
	for i := range chunks {
		chunks[i].ID = uuid.NewString()

		vectors, err := u.embedder.Embed(ctx, []string{chunks[i].Content})
		if err != nil {
			return 0, fmt.Errorf("failed to embed chunk %d: %w", chunks[i].Index, err)
		}
		if len(vectors) != 1 {
			return 0, fmt.Errorf("embedder returned %d vectors for chunk %d", len(vectors), chunks[i].Index)
		}

		embeddings = append(embeddings, domain.Embedding{
			ChunkID: chunks[i].ID,
			Model:   u.embedder.ModelName(),
			Vector:  vectors[0],
		})
	}

	doc := &domain.Document{
		Source:   file.RelPath,
		Title:    parsed.Meta.Title,
		Topic:    parsed.Meta.Topic,
		Tags:     parsed.Meta.Tags,
		Summary:  parsed.Meta.Summary,
		Body:     parsed.Body,
		Metadata: parsed.Meta.Extra,
	}

	if err := u.store.ReplaceDocument(ctx, doc, chunks, embeddings); err != nil {
		return 0, fmt.Errorf("failed to store document: %w", err)
	}

	return len(chunks), nil
}

// Reembed regenerates embeddings for one document's existing chunks, e.g.
// after switching embedding models. Chunk content is left untouched.
func (u *IngestUseCase) Reembed(ctx context.Context, source string) (int, error) {
	doc, err := u.store.GetDocumentBySource(ctx, source)
	if err != nil {
		return 0, fmt.Errorf("failed to look up document: %w", err)
	}

	chunks, err := u.store.GetChunks(ctx, doc.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to load chunks: %w", err)
	}

	for _, chunk := range chunks {
		vectors, err := u.embedder.Embed(ctx, []string{chunk.Content})
		if err != nil {
			return 0, fmt.Errorf("failed to embed chunk %d: %w", chunk.Index, err)
		}
		if len(vectors) != 1 {
			return 0, fmt.Errorf("embedder returned %d vectors for chunk %d", len(vectors), chunk.Index)
		}
		err = u.store.InsertEmbedding(ctx, &domain.Embedding{
			ChunkID: chunk.ID,
			Model:   u.embedder.ModelName(),
			Vector:  vectors[0],
		})
		if err != nil {
			return 0, fmt.Errorf("failed to store embedding for chunk %d: %w", chunk.Index, err)
		}
	}

	return len(chunks), nil
}
