package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"esgkb/config"
	"esgkb/internal/adapter/embedding"
	"esgkb/internal/adapter/metadata"
	"esgkb/internal/domain"
	"esgkb/internal/port"
)

var (
	cfgFile string
	cfg     *config.Config
	rootDir string
)

var rootCmd = &cobra.Command{
	Use:   "esgkb",
	Short: "ESG knowledge base - index sustainability documents and retrieve context",
	Long: `esgkb builds a searchable knowledge base from a corpus of ESG report
and standards PDFs. Documents are split into chunks, tagged with topic,
industry, region and language, embedded, and stored in a local vector
index. Queries return the most similar chunks for use as LLM context.

Example usage:
  esgkb build                       # Index the configured corpus
  esgkb query -q "什麼是範疇三排放"   # Retrieve relevant chunks
  esgkb status                      # Compare corpus against the index`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		// Missing .env is fine; real deployments may set the key elsewhere.
		_ = godotenv.Load()

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./esgkb.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "project directory (default is current directory)")
}

// corpusRoot and outputDir resolve the configured paths against the project
// directory, leaving absolute paths untouched.
func corpusRoot() string { return resolvePath(cfg.Corpus.Root) }
func outputDir() string  { return resolvePath(cfg.Corpus.OutputDir) }

func resolvePath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(rootDir, p)
}

// newEmbedder builds the configured embedding provider.
func newEmbedder() (port.Embedder, error) {
	e := cfg.Embedding
	switch e.Provider {
	case "openai":
		return embedding.NewOpenAIEmbedder(e.APIKeyEnv, e.Model, e.Dimension)
	case "ollama":
		return embedding.NewOllamaEmbedder(e.Model, e.BaseURL, e.Dimension)
	case "mock":
		return embedding.NewMockEmbedder(e.Dimension), nil
	default:
		return nil, &domain.ConfigurationError{
			Reason: fmt.Sprintf("unknown embedding provider %q (want openai, ollama or mock)", e.Provider),
		}
	}
}

// enrichmentRules converts configured rule overrides to the enricher's form.
func enrichmentRules(rules []config.Rule) []metadata.Rule {
	if len(rules) == 0 {
		return nil
	}
	out := make([]metadata.Rule, len(rules))
	for i, r := range rules {
		out[i] = metadata.Rule{Category: r.Category, Keywords: r.Keywords}
	}
	return out
}
