package domain

import (
	"errors"
	"fmt"
)

// ErrNotReady is returned by the query service when the knowledge base has
// not been built yet. Callers must be able to tell this apart from an index
// that exists but holds no relevant matches.
var ErrNotReady = errors.New("knowledge base not ready: run the index builder first")

// DocumentReadError means a source file could not be opened or parsed.
// Recovered at file granularity: the builder logs it and moves on.
type DocumentReadError struct {
	Path string
	Err  error
}

func (e *DocumentReadError) Error() string {
	return fmt.Sprintf("read document %s: %v", e.Path, e.Err)
}

func (e *DocumentReadError) Unwrap() error { return e.Err }

// EmbeddingError is a failure from the embedding provider. Retryable covers
// transient conditions (timeouts, rate limits, 5xx); during a build the
// failing chunk is dropped and logged, at query time it is a hard failure.
type EmbeddingError struct {
	Retryable bool
	Err       error
}

func (e *EmbeddingError) Error() string {
	if e.Retryable {
		return fmt.Sprintf("embedding failed (retryable): %v", e.Err)
	}
	return fmt.Sprintf("embedding failed: %v", e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// IndexCorruptionError means the persisted artifacts are missing or
// inconsistent with each other. Never absorbed; requires an explicit rebuild.
type IndexCorruptionError struct {
	Dir    string
	Reason string
}

func (e *IndexCorruptionError) Error() string {
	return fmt.Sprintf("index corrupt in %s: %s", e.Dir, e.Reason)
}

// ConfigurationError means the loaded index and the configured embedding
// provider disagree on dimensionality. Fatal at load time.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}
