package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"esgkb/internal/domain"
)

func rec(id string) domain.Chunk {
	return domain.Chunk{
		ChunkID: id,
		Source:  "doc.pdf",
		Page:    1,
		Text:    "text for " + id,
	}
}

func TestAddAndSearch(t *testing.T) {
	x := NewFlatIndex(3, "mock")

	vectors := [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0.9, 0.1, 0},
	}
	records := []domain.Chunk{rec("a-p1-s1"), rec("a-p1-s2"), rec("a-p2-s1")}
	if err := x.Add(vectors, records); err != nil {
		t.Fatal(err)
	}

	results, err := x.Search([]float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Chunk.ChunkID != "a-p1-s1" {
		t.Errorf("expected best match a-p1-s1, got %s", results[0].Chunk.ChunkID)
	}
	if results[0].Score < results[1].Score {
		t.Errorf("results not ordered by descending score: %f < %f", results[0].Score, results[1].Score)
	}
}

func TestSearchNormalizesScores(t *testing.T) {
	x := NewFlatIndex(2, "mock")

	// Stored vector is not unit length; scores must still be cosine.
	if err := x.Add([][]float32{{10, 0}}, []domain.Chunk{rec("a-p1-s1")}); err != nil {
		t.Fatal(err)
	}

	results, err := x.Search([]float32{5, 0}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got := results[0].Score; got < 0.999 || got > 1.001 {
		t.Errorf("expected cosine score ~1.0, got %f", got)
	}
}

func TestAddLengthMismatch(t *testing.T) {
	x := NewFlatIndex(2, "mock")

	err := x.Add([][]float32{{1, 0}, {0, 1}}, []domain.Chunk{rec("a-p1-s1")})
	if err == nil {
		t.Fatal("expected error for mismatched lengths")
	}
	if x.Count() != 0 {
		t.Errorf("failed add must not modify the index, count=%d", x.Count())
	}
}

func TestAddDimensionMismatch(t *testing.T) {
	x := NewFlatIndex(3, "mock")

	err := x.Add([][]float32{{1, 0}}, []domain.Chunk{rec("a-p1-s1")})
	if err == nil {
		t.Fatal("expected error for wrong vector dimension")
	}
}

func TestAddDuplicateChunkID(t *testing.T) {
	x := NewFlatIndex(2, "mock")

	if err := x.Add([][]float32{{1, 0}}, []domain.Chunk{rec("a-p1-s1")}); err != nil {
		t.Fatal(err)
	}
	err := x.Add([][]float32{{0, 1}}, []domain.Chunk{rec("a-p1-s1")})
	if err == nil {
		t.Fatal("expected error for duplicate chunk ID")
	}
	if x.Count() != 1 {
		t.Errorf("expected count to stay 1, got %d", x.Count())
	}
}

func TestAddDuplicateChunkIDWithinBatch(t *testing.T) {
	x := NewFlatIndex(2, "mock")

	err := x.Add(
		[][]float32{{1, 0}, {0, 1}},
		[]domain.Chunk{rec("a-p1-s1"), rec("a-p1-s1")},
	)
	if err == nil {
		t.Fatal("expected error for duplicate chunk ID within one batch")
	}
	if x.Count() != 0 {
		t.Errorf("expected count to stay 0, got %d", x.Count())
	}

	// A rejected batch must leave no trace: a later save/load round trip
	// stays consistent.
	if err := x.Add([][]float32{{1, 0}}, []domain.Chunk{rec("a-p1-s1")}); err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	if err := x.Save(dir); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(dir, 2, "mock")
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Count() != 1 {
		t.Errorf("expected 1 vector after reload, got %d", loaded.Count())
	}
}

func TestParallelismInvariant(t *testing.T) {
	x := NewFlatIndex(2, "mock")

	for i := 0; i < 5; i++ {
		vectors := [][]float32{{1, float32(i)}, {float32(i + 1), 1}}
		records := []domain.Chunk{
			rec(fmt.Sprintf("doc%d-p1-s1", i)),
			rec(fmt.Sprintf("doc%d-p1-s2", i)),
		}
		if err := x.Add(vectors, records); err != nil {
			t.Fatal(err)
		}
		if len(x.records) != x.Count() {
			t.Fatalf("after add %d: %d records for %d vectors", i, len(x.records), x.Count())
		}
	}
}

func TestSearchEmptyIndex(t *testing.T) {
	x := NewFlatIndex(4, "mock")

	results, err := x.Search([]float32{1, 0, 0, 0}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("expected empty result from empty index, got %d", len(results))
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	x := NewFlatIndex(3, "text-embedding-3-small")
	vectors := [][]float32{{1, 0, 0}, {0, 1, 0}}
	records := []domain.Chunk{rec("a-p1-s1"), rec("b-p1-s1")}
	if err := x.Add(vectors, records); err != nil {
		t.Fatal(err)
	}
	if err := x.Save(dir); err != nil {
		t.Fatal(err)
	}

	if !Exists(dir) {
		t.Fatal("Exists should be true after save")
	}

	loaded, err := Load(dir, 3, "text-embedding-3-small")
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Count() != 2 {
		t.Fatalf("expected 2 vectors after load, got %d", loaded.Count())
	}

	results, err := loaded.Search([]float32{0, 1, 0}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Chunk.ChunkID != "b-p1-s1" {
		t.Errorf("expected b-p1-s1 after reload, got %s", results[0].Chunk.ChunkID)
	}
	if results[0].Chunk.Text == "" {
		t.Error("persisted metadata must retain chunk text")
	}
}

func TestSaveIsRepeatable(t *testing.T) {
	dir := t.TempDir()

	x := NewFlatIndex(2, "mock")
	if err := x.Add([][]float32{{1, 0}}, []domain.Chunk{rec("a-p1-s1")}); err != nil {
		t.Fatal(err)
	}
	if err := x.Save(dir); err != nil {
		t.Fatal(err)
	}

	// Per-file flush saves after every document; a second save of a grown
	// index must fully replace the first.
	if err := x.Add([][]float32{{0, 1}}, []domain.Chunk{rec("b-p1-s1")}); err != nil {
		t.Fatal(err)
	}
	if err := x.Save(dir); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(dir, 2, "mock")
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Count() != 2 {
		t.Errorf("expected 2 vectors, got %d", loaded.Count())
	}
}

func TestLoadDimensionMismatch(t *testing.T) {
	dir := t.TempDir()

	x := NewFlatIndex(3, "all-minilm")
	if err := x.Add([][]float32{{1, 0, 0}}, []domain.Chunk{rec("a-p1-s1")}); err != nil {
		t.Fatal(err)
	}
	if err := x.Save(dir); err != nil {
		t.Fatal(err)
	}

	_, err := Load(dir, 1536, "text-embedding-3-small")
	if err == nil {
		t.Fatal("expected error loading dim-3 index with dim-1536 provider")
	}
	var cfgErr *domain.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Errorf("expected ConfigurationError, got %T: %v", err, err)
	}
}

func TestLoadMissingArtifact(t *testing.T) {
	dir := t.TempDir()

	x := NewFlatIndex(2, "mock")
	if err := x.Add([][]float32{{1, 0}}, []domain.Chunk{rec("a-p1-s1")}); err != nil {
		t.Fatal(err)
	}
	if err := x.Save(dir); err != nil {
		t.Fatal(err)
	}

	if err := os.Remove(filepath.Join(dir, MetadataFile)); err != nil {
		t.Fatal(err)
	}

	if Exists(dir) {
		t.Error("Exists must be false with a missing artifact")
	}

	_, err := Load(dir, 2, "mock")
	var corruptErr *domain.IndexCorruptionError
	if !errors.As(err, &corruptErr) {
		t.Errorf("expected IndexCorruptionError, got %T: %v", err, err)
	}
}

func TestExistsEmptyDir(t *testing.T) {
	if Exists(t.TempDir()) {
		t.Error("Exists must be false for an empty directory")
	}
}

func TestAddZeroVector(t *testing.T) {
	x := NewFlatIndex(2, "mock")

	err := x.Add([][]float32{{0, 0}}, []domain.Chunk{rec("a-p1-s1")})
	if err == nil {
		t.Fatal("expected error for zero vector")
	}
}
