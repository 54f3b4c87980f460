package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"esgkb/internal/adapter/chunker"
	"esgkb/internal/adapter/extractor"
	"esgkb/internal/adapter/fs"
	"esgkb/internal/adapter/ledger"
	"esgkb/internal/adapter/metadata"
	"esgkb/internal/adapter/store"
	"esgkb/internal/buildlog"
	"esgkb/internal/usecase"
)

var buildCmd = &cobra.Command{
	Use:   "build [corpus]",
	Short: "Index the document corpus",
	Long: `Walk the corpus directory, extract and chunk every PDF that is not yet
in the build record, embed the chunks and persist the vector index.
Re-running build only processes documents added since the last run.

Examples:
  esgkb build                    # Index the configured corpus
  esgkb build /path/to/corpus    # Index a specific directory`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	root := corpusRoot()
	if len(args) > 0 {
		var err error
		root, err = filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
	}

	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("corpus does not exist: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("corpus is not a directory: %s", root)
	}

	outDir := outputDir()

	log, closeLog, err := buildlog.New(outDir, cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer closeLog()

	embedder, err := newEmbedder()
	if err != nil {
		return err
	}

	// Resume from the persisted index when one exists, so new documents
	// append rather than replace.
	var index *store.FlatIndex
	if store.Exists(outDir) {
		index, err = store.Load(outDir, embedder.Dimension(), embedder.ModelName())
		if err != nil {
			return fmt.Errorf("failed to load existing index: %w", err)
		}
	} else {
		index = store.NewFlatIndex(embedder.Dimension(), embedder.ModelName())
	}

	led, err := ledger.Open(outDir)
	if err != nil {
		return fmt.Errorf("failed to open build record: %w", err)
	}

	splitter := chunker.NewRecursiveSplitter(cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap, cfg.Chunking.Separators)
	enricher := metadata.NewEnricher(
		enrichmentRules(cfg.Enrichment.TopicRules),
		enrichmentRules(cfg.Enrichment.IndustryRules),
	)

	builder := usecase.NewBuilder(
		fs.NewWalker(cfg.Corpus.Includes, cfg.Corpus.Excludes),
		extractor.NewPDFExtractor(root, splitter),
		enricher,
		embedder,
		index,
		led,
		log,
		usecase.BuilderOptions{
			OutputDir:             outDir,
			FlushPerFile:          cfg.Build.Flush != "at_end",
			AbortFileOnEmbedError: cfg.Build.OnEmbedError == "abort_file",
			FileTimeout:           time.Duration(cfg.Build.FileTimeoutSec) * time.Second,
			EmbedBatchSize:        cfg.Embedding.BatchSize,
		},
	)

	fmt.Printf("Scanning %s...\n", root)

	var bar *progressbar.ProgressBar
	var barMu sync.Mutex
	var startTime time.Time

	progress := func(done, total int, file string) {
		barMu.Lock()
		defer barMu.Unlock()

		if bar == nil {
			startTime = time.Now()
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Indexing[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
		}
		_ = bar.Set(done)
	}

	result, err := builder.Run(cmd.Context(), root, progress)
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	elapsed := time.Duration(0)
	if !startTime.IsZero() {
		elapsed = time.Since(startTime).Round(time.Millisecond)
	}

	fmt.Printf("\nIndexed %d documents (%d chunks) in %s\n", result.FilesProcessed, result.ChunksIndexed, elapsed)
	if result.FilesSkipped > 0 {
		fmt.Printf("Skipped %d already-indexed documents\n", result.FilesSkipped)
	}
	if result.ChunksDropped > 0 {
		fmt.Printf("Dropped %d chunks that failed to embed (see %s)\n", result.ChunksDropped, filepath.Join(outDir, buildlog.LogFile))
	}
	if result.FilesFailed > 0 {
		fmt.Printf("Failed %d documents:\n", result.FilesFailed)
		for _, msg := range result.Errors {
			fmt.Printf("  %s\n", msg)
		}
	}

	return nil
}
