package usecase

import (
	"fmt"
	"path/filepath"

	"esgkb/internal/adapter/fs"
	"esgkb/internal/adapter/ledger"
	"esgkb/internal/adapter/store"
	"esgkb/internal/domain"
)

// StatusReport compares the corpus on disk against the build record: which
// documents are in the index and which a build run would still pick up.
type StatusReport struct {
	Built   []string
	Pending []string

	// Info and ChunkCount describe the persisted index; Info is nil when no
	// complete index exists yet.
	Info       *domain.VectorInfo
	ChunkCount int
}

// Status walks the corpus under root and classifies every document by its
// presence in the build record. Paths in the report are relative to root.
func Status(walker *fs.Walker, root, outputDir string) (*StatusReport, error) {
	led, err := ledger.Open(outputDir)
	if err != nil {
		return nil, fmt.Errorf("open build record: %w", err)
	}

	files, err := walker.Walk(root)
	if err != nil {
		return nil, fmt.Errorf("scan corpus %s: %w", root, err)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	report := &StatusReport{}
	for _, file := range files {
		rel, err := filepath.Rel(absRoot, file.Path)
		if err != nil {
			rel = file.Path
		}
		rel = filepath.ToSlash(rel)

		id, err := ledger.FileIdentity(file.Path)
		if err != nil || !led.Contains(id) {
			report.Pending = append(report.Pending, rel)
			continue
		}
		report.Built = append(report.Built, rel)
	}

	if store.Exists(outputDir) {
		index, err := store.Load(outputDir, 0, "")
		if err != nil {
			return nil, err
		}
		info := index.Info()
		report.Info = &info
		report.ChunkCount = index.Count()
	}

	return report, nil
}
