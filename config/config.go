package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the knowledge-base tool.
type Config struct {
	Corpus     CorpusConfig     `yaml:"corpus"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Build      BuildConfig      `yaml:"build"`
	Query      QueryConfig      `yaml:"query"`
	Enrichment EnrichmentConfig `yaml:"enrichment"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// CorpusConfig locates the source documents and the output directory that
// receives the persisted index, ledger and build log.
type CorpusConfig struct {
	Root      string   `yaml:"root"`
	OutputDir string   `yaml:"output_dir"`
	Includes  []string `yaml:"includes"`
	Excludes  []string `yaml:"excludes"`
}

// ChunkingConfig configures the boundary-aware splitter. Separators are
// tried in order; earlier entries are preferred split points.
type ChunkingConfig struct {
	ChunkSize    int      `yaml:"chunk_size"`
	ChunkOverlap int      `yaml:"chunk_overlap"`
	Separators   []string `yaml:"separators"`
}

// EmbeddingConfig holds embedding provider configuration.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"`    // "openai", "ollama", "mock"
	Model     string `yaml:"model"`       // e.g., "text-embedding-3-small"
	APIKeyEnv string `yaml:"api_key_env"` // Environment variable for API key
	BaseURL   string `yaml:"base_url"`
	Dimension int    `yaml:"dimension"`
	BatchSize int    `yaml:"batch_size"`
}

// BuildConfig holds index-builder behavior.
//
// Flush "per_file" persists the index after every document so a crash loses
// at most the in-flight file; "at_end" saves once when the run completes.
// OnEmbedError "skip_chunk" drops the failing chunk and logs it;
// "abort_file" fails the whole file so the next run retries it.
type BuildConfig struct {
	Flush          string `yaml:"flush"`
	OnEmbedError   string `yaml:"on_embed_error"`
	FileTimeoutSec int    `yaml:"file_timeout_sec"`
}

// QueryConfig holds retrieval configuration.
type QueryConfig struct {
	TopK     int     `yaml:"top_k"`
	MinScore float64 `yaml:"min_score"` // Filter results below this score (0 = disabled)
}

// Rule maps a classification category to the keywords that select it.
type Rule struct {
	Category string   `yaml:"category"`
	Keywords []string `yaml:"keywords"`
}

// EnrichmentConfig overrides the built-in classification rule tables.
// Empty slices keep the defaults. Rules are first-match-wins, in order.
type EnrichmentConfig struct {
	TopicRules    []Rule `yaml:"topic_rules"`
	IndustryRules []Rule `yaml:"industry_rules"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Corpus: CorpusConfig{
			Root:      "data/db_pdf_data",
			OutputDir: "data/vector_output",
			Includes:  []string{"**/*.pdf"},
			Excludes:  []string{},
		},
		Chunking: ChunkingConfig{
			ChunkSize:    400,
			ChunkOverlap: 50,
			Separators:   []string{"\n\n", "\n", "。", ".", "!", "?", "！", "？"},
		},
		Embedding: EmbeddingConfig{
			Provider:  "openai",
			Model:     "text-embedding-3-small",
			APIKeyEnv: "OPENAI_API_KEY",
			Dimension: 1536,
			BatchSize: 100,
		},
		Build: BuildConfig{
			Flush:          "per_file",
			OnEmbedError:   "skip_chunk",
			FileTimeoutSec: 300,
		},
		Query: QueryConfig{
			TopK:     5,
			MinScore: 0,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for esgkb.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "esgkb.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".esgkb", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
