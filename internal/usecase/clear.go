package usecase

import (
	"fmt"
	"os"
	"path/filepath"

	"esgkb/internal/adapter/ledger"
	"esgkb/internal/adapter/store"
)

// Clear removes the persisted index artifacts and the build record from dir
// as one operation. Keeping the record while deleting the index (or the other
// way around) would leave the builder convinced the corpus is indexed when it
// is not, so they only ever go together. The build log is kept.
func Clear(dir string) error {
	artifacts := []string{
		store.IndexFile,
		store.MetadataFile,
		store.InfoFile,
		ledger.RecordFile,
	}
	for _, name := range artifacts {
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", name, err)
		}
	}
	return nil
}
