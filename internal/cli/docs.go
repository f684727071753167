package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"kb/internal/adapter/chunker"
	"kb/internal/adapter/fs"
	"kb/internal/domain"
	"kb/internal/usecase"
)

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Manage ingested documents",
}

var docsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ingested documents",
	RunE:  runDocsList,
}

var docsShowCmd = &cobra.Command{
	Use:   "show <source>",
	Short: "Show a document and its chunks",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocsShow,
}

var docsDeleteCmd = &cobra.Command{
	Use:   "delete <source>",
	Short: "Delete a document, its chunks and embeddings",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocsDelete,
}

var docsReembedCmd = &cobra.Command{
	Use:   "reembed <source>",
	Short: "Regenerate embeddings for a document's existing chunks",
	Long: `Regenerate embeddings for one document without re-reading its source file,
e.g. after switching embedding models. Chunk content is left untouched.`,
	Args: cobra.ExactArgs(1),
	RunE: runDocsReembed,
}

func init() {
	rootCmd.AddCommand(docsCmd)
	docsCmd.AddCommand(docsListCmd)
	docsCmd.AddCommand(docsShowCmd)
	docsCmd.AddCommand(docsDeleteCmd)
	docsCmd.AddCommand(docsReembedCmd)
}

func runDocsList(cmd *cobra.Command, args []string) error {
	st, err := openStore(GetConfig())
	if err != nil {
		return err
	}
	defer st.Close()

	docs, err := st.ListDocuments(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if len(docs) == 0 {
		fmt.Println("No documents ingested.")
		return nil
	}

	fmt.Printf("%d documents:\n\n", len(docs))
	for _, doc := range docs {
		tags := ""
		if len(doc.Tags) > 0 {
			tags = " [" + strings.Join(doc.Tags, ", ") + "]"
		}
		fmt.Printf("  %-40s %s%s\n", doc.Source, doc.Title, tags)
	}
	return nil
}

func runDocsShow(cmd *cobra.Command, args []string) error {
	st, err := openStore(GetConfig())
	if err != nil {
		return err
	}
	defer st.Close()

	doc, err := st.GetDocumentBySource(cmd.Context(), args[0])
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("no document with source %q", args[0])
		}
		return err
	}

	chunks, err := st.GetChunks(cmd.Context(), doc.ID)
	if err != nil {
		return fmt.Errorf("failed to load chunks: %w", err)
	}

	fmt.Printf("Source:  %s\n", doc.Source)
	fmt.Printf("Title:   %s\n", doc.Title)
	if doc.Topic != "" {
		fmt.Printf("Topic:   %s\n", doc.Topic)
	}
	if len(doc.Tags) > 0 {
		fmt.Printf("Tags:    %s\n", strings.Join(doc.Tags, ", "))
	}
	if doc.Summary != "" {
		fmt.Printf("Summary: %s\n", doc.Summary)
	}
	fmt.Printf("Updated: %s\n", doc.UpdatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Chunks:  %d\n\n", len(chunks))

	for _, chunk := range chunks {
		fmt.Printf("--- chunk %d (~%d tokens) ---\n", chunk.Index, chunk.TokenCount)
		text := chunk.Content
		if len(text) > 300 {
			text = text[:300] + "..."
		}
		fmt.Println(text)
		fmt.Println()
	}
	return nil
}

func runDocsDelete(cmd *cobra.Command, args []string) error {
	st, err := openStore(GetConfig())
	if err != nil {
		return err
	}
	defer st.Close()

	doc, err := st.GetDocumentBySource(cmd.Context(), args[0])
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("no document with source %q", args[0])
		}
		return err
	}

	if err := st.DeleteDocument(cmd.Context(), doc.ID); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	fmt.Printf("Deleted %s and its chunks.\n", doc.Source)
	return nil
}

func runDocsReembed(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	embedder, err := newRateLimitedEmbedder(cfg)
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	ingestUC := usecase.NewIngestUseCase(
		st,
		fs.NewWalker(cfg.Ingest.Includes, cfg.Ingest.Excludes),
		chunker.NewMarkdownChunker(cfg.Ingest.ChunkTokens, cfg.Ingest.OverlapWords, nil),
		embedder,
		nil,
	)

	n, err := ingestUC.Reembed(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("re-embedding failed: %w", err)
	}

	fmt.Printf("Re-embedded %d chunks of %s with model %s.\n", n, args[0], embedder.ModelName())
	return nil
}
