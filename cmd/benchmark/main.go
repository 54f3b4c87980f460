// Command benchmark exercises a built knowledge base end to end: it embeds a
// question, searches the index and reports scores and latency. Useful for
// eyeballing retrieval quality after swapping embedding models or re-chunking
// the corpus.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"esgkb/config"
	"esgkb/internal/adapter/embedding"
	"esgkb/internal/adapter/store"
	"esgkb/internal/port"
)

func main() {
	dir := flag.String("dir", ".", "project directory holding esgkb.yaml")
	question := flag.String("q", "", "question to test")
	topK := flag.Int("k", 10, "number of results")
	flag.Parse()

	if *question == "" {
		fmt.Println("Usage: go run cmd/benchmark/main.go -dir . -q \"question\"")
		fmt.Println("\nChecks:")
		fmt.Println("  1. Embedding provider connectivity")
		fmt.Println("  2. Index load and search latency")
		fmt.Println("  3. Score distribution for the question")
		os.Exit(1)
	}

	cfg, err := config.LoadFromDir(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	embedder, err := newEmbedder(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Embedding provider not available: %v\n", err)
		os.Exit(1)
	}

	outDir := cfg.Corpus.OutputDir
	if !store.Exists(outDir) {
		fmt.Fprintf(os.Stderr, "No index in %s. Run 'esgkb build' first.\n", outDir)
		os.Exit(1)
	}

	loadStart := time.Now()
	index, err := store.Load(outDir, embedder.Dimension(), embedder.ModelName())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading index: %v\n", err)
		os.Exit(1)
	}
	loadTime := time.Since(loadStart)

	fmt.Println("RETRIEVAL BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Chunks indexed: %d\n", index.Count())
	fmt.Printf("Model: %s (%s)\n", cfg.Embedding.Model, cfg.Embedding.Provider)
	fmt.Printf("Dimension: %d\n", embedder.Dimension())
	fmt.Printf("Index load: %s\n", loadTime.Round(time.Millisecond))
	fmt.Println()

	fmt.Printf("Question: %q\n", *question)
	fmt.Println(strings.Repeat("-", 70))

	embedStart := time.Now()
	vectors, err := embedder.Embed(context.Background(), []string{*question})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Embedding error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Question embedded in %s\n", time.Since(embedStart).Round(time.Millisecond))

	searchStart := time.Now()
	results, err := index.Search(vectors[0], *topK)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Searched %d vectors in %s\n\n", index.Count(), time.Since(searchStart).Round(time.Microsecond))

	fmt.Printf("Top %d matches:\n\n", len(results))

	total := 0.0
	for i, r := range results {
		preview := strings.ReplaceAll(r.Chunk.Text, "\n", " ")
		if runes := []rune(preview); len(runes) > 150 {
			preview = string(runes[:150]) + "..."
		}
		total += r.Score

		rating := "LOW"
		switch {
		case r.Score > 0.7:
			rating = "HIGH"
		case r.Score > 0.5:
			rating = "GOOD"
		case r.Score > 0.3:
			rating = "OK"
		}

		fmt.Printf("%d. [%s %.3f] %s p.%d (%s/%s)\n", i+1, rating, r.Score, r.Chunk.Source, r.Chunk.Page, r.Chunk.MainTopic, r.Chunk.Region)
		fmt.Printf("   %s\n\n", preview)
	}

	if len(results) > 0 {
		fmt.Println(strings.Repeat("-", 70))
		fmt.Printf("Mean score: %.3f\n", total/float64(len(results)))
	}
}

func newEmbedder(cfg *config.Config) (port.Embedder, error) {
	e := cfg.Embedding
	switch e.Provider {
	case "ollama":
		return embedding.NewOllamaEmbedder(e.Model, e.BaseURL, e.Dimension)
	case "mock":
		return embedding.NewMockEmbedder(e.Dimension), nil
	default:
		return embedding.NewOpenAIEmbedder(e.APIKeyEnv, e.Model, e.Dimension)
	}
}
