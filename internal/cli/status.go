package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"esgkb/internal/adapter/fs"
	"esgkb/internal/usecase"
)

var statusVerbose bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Compare the corpus against the build record",
	Long: `Show which corpus documents are already in the knowledge base and which
a build run would still pick up, plus the provenance of the persisted
index (embedding model, dimension, chunk count).`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVarP(&statusVerbose, "verbose", "v", false, "list every document, not just counts")
}

func runStatus(cmd *cobra.Command, args []string) error {
	report, err := usecase.Status(
		fs.NewWalker(cfg.Corpus.Includes, cfg.Corpus.Excludes),
		corpusRoot(),
		outputDir(),
	)
	if err != nil {
		return fmt.Errorf("status failed: %w", err)
	}

	if report.Info == nil {
		fmt.Println("Index: not built")
	} else {
		fmt.Printf("Index: %d chunks, model %s, dimension %d\n", report.ChunkCount, report.Info.Model, report.Info.VectorDim)
	}
	fmt.Printf("Documents: %d indexed, %d pending\n", len(report.Built), len(report.Pending))

	if statusVerbose {
		for _, p := range report.Built {
			fmt.Printf("  [done]    %s\n", p)
		}
		for _, p := range report.Pending {
			fmt.Printf("  [pending] %s\n", p)
		}
	} else if len(report.Pending) > 0 {
		fmt.Println("Run 'esgkb build' to index pending documents.")
	}

	return nil
}
