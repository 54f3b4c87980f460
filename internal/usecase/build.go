package usecase

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"esgkb/internal/adapter/fs"
	"esgkb/internal/adapter/ledger"
	"esgkb/internal/adapter/metadata"
	"esgkb/internal/adapter/store"
	"esgkb/internal/domain"
	"esgkb/internal/port"
)

// BuilderOptions controls orchestration behavior.
type BuilderOptions struct {
	OutputDir string

	// FlushPerFile persists the index after every document, so a crash
	// loses at most the in-flight file's work. Disabling it defers
	// persistence (index and ledger both) to end-of-run.
	FlushPerFile bool

	// AbortFileOnEmbedError fails the whole file on any embedding error so
	// the next run retries it. Off by default: the failing chunk is
	// dropped and logged, the rest of the file is kept.
	AbortFileOnEmbedError bool

	// FileTimeout bounds the processing of one document; expiry is treated
	// the same as an extraction failure (log, skip, continue).
	FileTimeout time.Duration

	// EmbedBatchSize is the number of chunks embedded per provider call.
	EmbedBatchSize int
}

// Builder walks a corpus and feeds each not-yet-processed document through
// extraction, enrichment and embedding into the vector index, one file at a
// time. Per-file failures are logged and skipped; the ledger is only updated
// for files whose vectors reached the persisted index, so failed files are
// retried on the next run.
type Builder struct {
	walker    *fs.Walker
	extractor port.Extractor
	enricher  *metadata.Enricher
	embedder  port.Embedder
	index     *store.FlatIndex
	ledger    *ledger.Ledger
	log       *logrus.Logger
	opts      BuilderOptions
}

func NewBuilder(
	walker *fs.Walker,
	extractor port.Extractor,
	enricher *metadata.Enricher,
	embedder port.Embedder,
	index *store.FlatIndex,
	ledger *ledger.Ledger,
	log *logrus.Logger,
	opts BuilderOptions,
) *Builder {
	if opts.FileTimeout <= 0 {
		opts.FileTimeout = 5 * time.Minute
	}
	if opts.EmbedBatchSize <= 0 {
		opts.EmbedBatchSize = 100
	}
	return &Builder{
		walker:    walker,
		extractor: extractor,
		enricher:  enricher,
		embedder:  embedder,
		index:     index,
		ledger:    ledger,
		log:       log,
		opts:      opts,
	}
}

// BuildResult summarizes one builder run.
type BuildResult struct {
	FilesProcessed int
	FilesSkipped   int
	FilesFailed    int
	ChunksIndexed  int
	ChunksDropped  int
	Errors         []string
}

type pendingMark struct {
	id       string
	filename string
}

// Run processes every document under root. Re-running on an unchanged
// corpus is a no-op: ledger hits are skipped without extraction or any
// embedding calls. Only structural failures (index inconsistency, output
// directory unwritable) abort the run.
func (b *Builder) Run(ctx context.Context, root string, progress func(done, total int, file string)) (*BuildResult, error) {
	result := &BuildResult{}
	runID := uuid.New().String()

	files, err := b.walker.Walk(root)
	if err != nil {
		return nil, fmt.Errorf("scan corpus %s: %w", root, err)
	}

	b.log.WithFields(logrus.Fields{
		"run_id": runID,
		"corpus": root,
		"files":  len(files),
	}).Info("build started")

	var pending []pendingMark
	var runErr error

	for i, file := range files {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		id, err := ledger.FileIdentity(file.Path)
		if err != nil {
			b.fileFailed(result, file.Path, fmt.Errorf("resolve identity: %w", err))
			continue
		}

		if b.ledger.Contains(id) {
			result.FilesSkipped++
			if progress != nil {
				progress(i+1, len(files), file.Path)
			}
			continue
		}

		added, dropped, err := b.processFile(ctx, file, id, &pending)
		if err != nil {
			if isFatal(err) {
				return result, err
			}
			b.fileFailed(result, file.Path, err)
			continue
		}

		result.FilesProcessed++
		result.ChunksIndexed += added
		result.ChunksDropped += dropped
		if progress != nil {
			progress(i+1, len(files), file.Path)
		}
	}

	// In deferred mode nothing has been persisted yet; flush now so a
	// cancelled run still keeps every completed file.
	if !b.opts.FlushPerFile && len(pending) > 0 {
		if err := b.index.Save(b.opts.OutputDir); err != nil {
			return result, fmt.Errorf("persist index: %w", err)
		}
		for _, m := range pending {
			if err := b.ledger.MarkDone(m.id, m.filename); err != nil {
				return result, fmt.Errorf("update build record: %w", err)
			}
		}
	}

	b.log.WithFields(logrus.Fields{
		"run_id":         runID,
		"files_indexed":  result.FilesProcessed,
		"files_skipped":  result.FilesSkipped,
		"files_failed":   result.FilesFailed,
		"chunks_indexed": result.ChunksIndexed,
		"chunks_dropped": result.ChunksDropped,
	}).Info("build finished")

	return result, runErr
}

// processFile runs one document through the pipeline. The returned error is
// a file-level failure unless wrapped as fatal.
func (b *Builder) processFile(ctx context.Context, file fs.FileInfo, id string, pending *[]pendingMark) (added, dropped int, err error) {
	fctx, cancel := context.WithTimeout(ctx, b.opts.FileTimeout)
	defer cancel()

	b.log.WithFields(logrus.Fields{
		"file": file.Path,
		"size": file.Size,
	}).Info("processing document")

	chunks, err := b.extractor.Extract(fctx, file.Path)
	if err != nil {
		return 0, 0, err
	}

	filename := filepath.Base(file.Path)

	if len(chunks) == 0 {
		// Nothing to embed, but the file counts as processed so it is
		// not re-read on every run.
		b.log.WithField("file", file.Path).Warn("document has no extractable text")
		return 0, 0, b.finishFile(id, filename, false, pending)
	}

	for i := range chunks {
		chunks[i] = b.enricher.Enrich(chunks[i])
	}

	vectors, kept, dropped, err := b.embedChunks(fctx, chunks)
	if err != nil {
		return 0, 0, err
	}

	if len(kept) > 0 {
		if err := b.index.Add(vectors, kept); err != nil {
			// Index preconditions are never absorbed.
			return 0, 0, fatal(fmt.Errorf("add to index: %w", err))
		}
	}

	return len(kept), dropped, b.finishFile(id, filename, len(kept) > 0, pending)
}

// finishFile persists the index (per-file mode) and records the file in the
// ledger. Persist order matters: a ledger entry means the file's chunks are
// already in the persisted index.
func (b *Builder) finishFile(id, filename string, grew bool, pending *[]pendingMark) error {
	if !b.opts.FlushPerFile {
		*pending = append(*pending, pendingMark{id: id, filename: filename})
		return nil
	}

	if grew {
		if err := b.index.Save(b.opts.OutputDir); err != nil {
			return fatal(fmt.Errorf("persist index: %w", err))
		}
	}
	if err := b.ledger.MarkDone(id, filename); err != nil {
		return fatal(fmt.Errorf("update build record: %w", err))
	}
	return nil
}

// embedChunks embeds a file's chunks in batches, preserving chunk order.
// When a batch fails and the skip-chunk policy is active, its chunks are
// retried one by one and only the failing ones are dropped (and logged);
// under the abort-file policy any embedding error fails the whole file.
func (b *Builder) embedChunks(ctx context.Context, chunks []domain.Chunk) (vectors [][]float32, kept []domain.Chunk, dropped int, err error) {
	for start := 0; start < len(chunks); start += b.opts.EmbedBatchSize {
		end := start + b.opts.EmbedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		batchVectors, err := b.embedder.Embed(ctx, texts)
		if err == nil {
			vectors = append(vectors, batchVectors...)
			kept = append(kept, batch...)
			continue
		}

		// A dead context means the file timed out or the run was
		// cancelled, not that these chunks are unembeddable. Fail the
		// file so the next run retries it intact.
		if b.opts.AbortFileOnEmbedError || ctx.Err() != nil {
			return nil, nil, 0, err
		}

		for _, c := range batch {
			if err := ctx.Err(); err != nil {
				return nil, nil, 0, err
			}
			single, err := b.embedder.Embed(ctx, []string{c.Text})
			if err != nil {
				if ctx.Err() != nil {
					return nil, nil, 0, err
				}
				dropped++
				b.log.WithFields(logrus.Fields{
					"chunk_id": c.ChunkID,
					"source":   c.Source,
				}).WithError(err).Error("embedding failed, chunk dropped")
				continue
			}
			vectors = append(vectors, single[0])
			kept = append(kept, c)
		}
	}
	return vectors, kept, dropped, nil
}

func (b *Builder) fileFailed(result *BuildResult, path string, err error) {
	result.FilesFailed++
	result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", path, err))
	b.log.WithField("file", path).WithError(err).Error("document failed, continuing with next file")
}

type fatalError struct{ err error }

func (e *fatalError) Error() string { return e.err.Error() }
func (e *fatalError) Unwrap() error { return e.err }

func fatal(err error) error { return &fatalError{err: err} }

func isFatal(err error) bool {
	_, ok := err.(*fatalError)
	return ok
}
