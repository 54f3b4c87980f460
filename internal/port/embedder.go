package port

import "context"

// Embedder generates vector embeddings for text. The build path and the
// query path must use the same provider instance (or at least the same model
// and dimension), otherwise similarity scores are undefined.
type Embedder interface {
	// Embed generates embeddings for the given texts.
	// Returns a slice of vectors, one per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}
