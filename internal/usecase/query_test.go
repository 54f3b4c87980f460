package usecase

import (
	"context"
	"errors"
	"testing"

	"esgkb/internal/adapter/store"
	"esgkb/internal/domain"
)

// rankedEmbedder maps known texts to fixed unit-direction vectors so test
// rankings are exact: the query about scope 3 emissions is collinear with the
// scope 3 chunk and orthogonal to the governance chunk.
type rankedEmbedder struct{}

func (rankedEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		switch text {
		case "範疇三排放涵蓋價值鏈上下游的間接排放。":
			out[i] = []float32{1, 0, 0}
		case "董事會每年審查公司治理準則。":
			out[i] = []float32{0, 1, 0}
		case "什麼是範疇三排放":
			out[i] = []float32{0.9, 0.1, 0}
		default:
			out[i] = []float32{0, 0, 1}
		}
	}
	return out, nil
}

func (rankedEmbedder) Dimension() int    { return 3 }
func (rankedEmbedder) ModelName() string { return "ranked" }

func buildTestIndex(t *testing.T, dir string) {
	t.Helper()
	emb := rankedEmbedder{}
	index := store.NewFlatIndex(emb.Dimension(), emb.ModelName())

	chunks := []domain.Chunk{
		{ChunkID: "ghg-p1-s1", Source: "ghg.pdf", Text: "範疇三排放涵蓋價值鏈上下游的間接排放。", Language: "zh"},
		{ChunkID: "gov-p1-s1", Source: "gov.pdf", Text: "董事會每年審查公司治理準則。", Language: "zh"},
	}
	vectors := make([][]float32, len(chunks))
	for i, c := range chunks {
		vs, err := emb.Embed(context.Background(), []string{c.Text})
		if err != nil {
			t.Fatal(err)
		}
		vectors[i] = vs[0]
	}
	if err := index.Add(vectors, chunks); err != nil {
		t.Fatal(err)
	}
	if err := index.Save(dir); err != nil {
		t.Fatal(err)
	}
}

func TestQueryNotReady(t *testing.T) {
	s := NewQueryService(rankedEmbedder{}, t.TempDir(), 5, 0)

	if s.Ready() {
		t.Error("empty directory must not be ready")
	}
	if _, err := s.Query(context.Background(), "anything", 5); !errors.Is(err, domain.ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
}

func TestQueryRanksRelevantChunkFirst(t *testing.T) {
	dir := t.TempDir()
	buildTestIndex(t, dir)

	s := NewQueryService(rankedEmbedder{}, dir, 5, 0)
	if !s.Ready() {
		t.Fatal("built index not detected")
	}

	scored, err := s.Query(context.Background(), "什麼是範疇三排放", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(scored) != 2 {
		t.Fatalf("expected 2 results, got %d", len(scored))
	}
	if scored[0].Chunk.ChunkID != "ghg-p1-s1" {
		t.Errorf("expected scope 3 chunk first, got %s", scored[0].Chunk.ChunkID)
	}
	if scored[0].Score <= scored[1].Score {
		t.Errorf("scores not descending: %f then %f", scored[0].Score, scored[1].Score)
	}
}

func TestQueryMinScoreFilters(t *testing.T) {
	dir := t.TempDir()
	buildTestIndex(t, dir)

	s := NewQueryService(rankedEmbedder{}, dir, 5, 0.5)
	scored, err := s.Query(context.Background(), "什麼是範疇三排放", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(scored) != 1 {
		t.Fatalf("expected only the high-scoring chunk, got %d results", len(scored))
	}
	if scored[0].Chunk.ChunkID != "ghg-p1-s1" {
		t.Errorf("unexpected surviving chunk %s", scored[0].Chunk.ChunkID)
	}
}

func TestQueryDefaultTopK(t *testing.T) {
	dir := t.TempDir()
	buildTestIndex(t, dir)

	s := NewQueryService(rankedEmbedder{}, dir, 1, 0)
	scored, err := s.Query(context.Background(), "什麼是範疇三排放", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(scored) != 1 {
		t.Errorf("topK 0 should fall back to the configured default of 1, got %d results", len(scored))
	}
}

func TestContextJoinsChunkTexts(t *testing.T) {
	dir := t.TempDir()
	buildTestIndex(t, dir)

	s := NewQueryService(rankedEmbedder{}, dir, 5, 0)
	block, err := s.Context(context.Background(), "什麼是範疇三排放", 2)
	if err != nil {
		t.Fatal(err)
	}

	want := "範疇三排放涵蓋價值鏈上下游的間接排放。\n\n董事會每年審查公司治理準則。"
	if block != want {
		t.Errorf("unexpected context block:\n%q", block)
	}
}

// countingEmbedder wraps rankedEmbedder and counts Embed calls.
type countingEmbedder struct {
	rankedEmbedder
	calls int
}

func (c *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls++
	return c.rankedEmbedder.Embed(ctx, texts)
}

func TestRepeatedQueryHitsCache(t *testing.T) {
	dir := t.TempDir()
	buildTestIndex(t, dir)

	emb := &countingEmbedder{}
	s := NewQueryService(emb, dir, 5, 0)

	first, err := s.Query(context.Background(), "什麼是範疇三排放", 2)
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.Query(context.Background(), "什麼是範疇三排放", 2)
	if err != nil {
		t.Fatal(err)
	}

	if emb.calls != 1 {
		t.Errorf("expected 1 embedding call for a repeated question, got %d", emb.calls)
	}
	if len(first) != len(second) || first[0].Chunk.ChunkID != second[0].Chunk.ChunkID {
		t.Error("cached result differs from original")
	}
}

func TestQueryDimensionMismatchSurfacesAsConfigurationError(t *testing.T) {
	dir := t.TempDir()
	buildTestIndex(t, dir)

	s := NewQueryService(stubEmbedder{}, dir, 5, 0) // dimension 4 vs persisted 3
	_, err := s.Query(context.Background(), "anything", 5)

	var confErr *domain.ConfigurationError
	if !errors.As(err, &confErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}
