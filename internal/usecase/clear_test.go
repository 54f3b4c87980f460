package usecase

import (
	"context"
	"testing"

	"esgkb/internal/adapter/ledger"
	"esgkb/internal/adapter/store"
	"esgkb/internal/domain"
)

func TestClearRemovesIndexAndRecordTogether(t *testing.T) {
	root := t.TempDir()
	outDir := t.TempDir()
	writeCorpus(t, root, "a.pdf")

	ext := &fakeExtractor{chunksFor: func(path string) ([]domain.Chunk, error) {
		return chunksFromStem(path, "some text"), nil
	}}
	b, _ := newTestBuilder(t, outDir, ext, BuilderOptions{FlushPerFile: true})
	if _, err := b.Run(context.Background(), root, nil); err != nil {
		t.Fatal(err)
	}

	if !store.Exists(outDir) {
		t.Fatal("precondition: index should exist after build")
	}

	if err := Clear(outDir); err != nil {
		t.Fatal(err)
	}

	if store.Exists(outDir) {
		t.Error("index artifacts survived clear")
	}
	led, err := ledger.Open(outDir)
	if err != nil {
		t.Fatal(err)
	}
	if led.Len() != 0 {
		t.Errorf("build record survived clear with %d entries", led.Len())
	}

	// A rebuild after clear starts from scratch.
	b2, _ := newTestBuilder(t, outDir, ext, BuilderOptions{FlushPerFile: true})
	result, err := b2.Run(context.Background(), root, nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.FilesProcessed != 1 || result.FilesSkipped != 0 {
		t.Errorf("expected full rebuild, got processed=%d skipped=%d", result.FilesProcessed, result.FilesSkipped)
	}
}

func TestClearEmptyDirIsNoop(t *testing.T) {
	if err := Clear(t.TempDir()); err != nil {
		t.Fatal(err)
	}
}
