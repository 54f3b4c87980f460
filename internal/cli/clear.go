package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"esgkb/internal/usecase"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the vector index and build record",
	Long: `Remove the persisted index artifacts and the build record together, so
the next build reprocesses the whole corpus. The build log is kept.`,
	RunE: runClear,
}

func init() {
	rootCmd.AddCommand(clearCmd)
}

func runClear(cmd *cobra.Command, args []string) error {
	if err := usecase.Clear(outputDir()); err != nil {
		return fmt.Errorf("clear failed: %w", err)
	}
	fmt.Printf("Removed index and build record from %s\n", outputDir())
	return nil
}
