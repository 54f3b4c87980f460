package port

import (
	"context"

	"esgkb/internal/domain"
)

// Extractor reads one source document and emits its chunks in reading order
// (page ascending, then segment ascending). A document with no extractable
// text yields an empty slice and no error.
type Extractor interface {
	Extract(ctx context.Context, path string) ([]domain.Chunk, error)
}
