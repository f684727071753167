package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"kb/internal/adapter/chunker"
	"kb/internal/adapter/fs"
	"kb/internal/usecase"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [path]",
	Short: "Ingest markdown documents into the knowledge base",
	Long: `Ingest all matching markdown files under the given directory. Each file is
parsed, chunked, embedded and stored. Re-ingesting a source replaces its
previous chunks and embeddings.

Examples:
  kb ingest ./docs            # Ingest a documentation directory
  kb ingest                   # Ingest the configured docs_dir`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	path := filepath.Join(GetRootDir(), cfg.Ingest.DocsDir)
	if len(args) > 0 {
		var err error
		path, err = filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("path does not exist: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	embedder, err := newRateLimitedEmbedder(cfg)
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	walker := fs.NewWalker(cfg.Ingest.Includes, cfg.Ingest.Excludes)
	chk := chunker.NewMarkdownChunker(cfg.Ingest.ChunkTokens, cfg.Ingest.OverlapWords, nil)
	ingestUC := usecase.NewIngestUseCase(st, walker, chk, embedder, nil)

	fmt.Printf("Ingesting %s...\n", path)

	var bar *progressbar.ProgressBar
	var barMu sync.Mutex
	var initialized bool

	progress := func(processed, total int, source string, err error) {
		barMu.Lock()
		defer barMu.Unlock()

		if !initialized {
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Ingesting[reset]"),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
			initialized = true
		}
		bar.Set(processed)
	}

	report, err := ingestUC.Ingest(cmd.Context(), path, progress)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	fmt.Printf("\nIngestion complete:\n")
	fmt.Printf("  Documents ingested: %d\n", report.Ingested)
	fmt.Printf("  Documents failed:   %d\n", report.Failed)
	fmt.Printf("  Chunks created:     %d\n", report.ChunksCreated)

	if len(report.Errors) > 0 {
		fmt.Printf("\nFailures:\n")
		for _, e := range report.Errors {
			fmt.Printf("  - %s\n", e)
		}
		return fmt.Errorf("%d of %d documents failed", report.Failed, report.Ingested+report.Failed)
	}

	return nil
}
