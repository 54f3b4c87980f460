package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"esgkb/internal/domain"
	"esgkb/internal/usecase"
)

var (
	queryText string
	queryTopK int
	queryJSON bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Retrieve the most relevant chunks for a question",
	Long: `Embed the question and return the top-k most similar chunks from the
knowledge base, with their classification tags and similarity scores.

Examples:
  esgkb query -q "什麼是範疇三排放"
  esgkb query -q "board diversity disclosure" --top-k 10 --json`,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVarP(&queryText, "question", "q", "", "question to retrieve context for (required)")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of results (default from config)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
	queryCmd.MarkFlagRequired("question")
}

func runQuery(cmd *cobra.Command, args []string) error {
	embedder, err := newEmbedder()
	if err != nil {
		return err
	}

	svc := usecase.NewQueryService(embedder, outputDir(), cfg.Query.TopK, cfg.Query.MinScore)

	results, err := svc.Query(cmd.Context(), queryText, queryTopK)
	if errors.Is(err, domain.ErrNotReady) {
		return fmt.Errorf("no knowledge base found in %s. Run 'esgkb build' first", outputDir())
	}
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if queryJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		fmt.Println("No matching chunks found.")
		return nil
	}

	fmt.Printf("Found %d chunks for: %s\n\n", len(results), queryText)
	for i, r := range results {
		fmt.Printf("--- [%d] %s p.%d (score: %.4f) ---\n", i+1, r.Chunk.Source, r.Chunk.Page, r.Score)
		fmt.Printf("    topic=%s industry=%s region=%s lang=%s\n", r.Chunk.MainTopic, r.Chunk.Industry, r.Chunk.Region, r.Chunk.Language)
		// Truncate on a rune boundary; byte slicing would cut CJK text
		// mid-character.
		text := r.Chunk.Text
		if runes := []rune(text); len(runes) > 500 {
			text = string(runes[:500]) + "..."
		}
		fmt.Println(text)
		fmt.Println()
	}

	return nil
}
