package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"esgkb/internal/adapter/cache"
	"esgkb/internal/adapter/store"
	"esgkb/internal/domain"
	"esgkb/internal/port"
)

// QueryService answers questions against a previously built index. The index
// is loaded lazily on first use and kept in memory for the life of the
// service; the load is mutex-guarded so the service can be shared between
// request handlers.
type QueryService struct {
	embedder port.Embedder
	indexDir string
	topK     int
	minScore float64
	cache    *cache.QueryCache

	mu    sync.Mutex
	index *store.FlatIndex
}

func NewQueryService(embedder port.Embedder, indexDir string, topK int, minScore float64) *QueryService {
	if topK <= 0 {
		topK = 5
	}
	return &QueryService{
		embedder: embedder,
		indexDir: indexDir,
		topK:     topK,
		minScore: minScore,
		cache:    cache.NewQueryCache(100, 5*time.Minute),
	}
}

// Ready reports whether a complete index exists on disk without loading it.
func (s *QueryService) Ready() bool {
	return store.Exists(s.indexDir)
}

// Query embeds the question and returns up to topK chunks by descending
// similarity, dropping anything under the minimum score. topK <= 0 uses the
// configured default. An unbuilt knowledge base yields ErrNotReady; a built
// one with no sufficiently similar chunks yields an empty slice.
func (s *QueryService) Query(ctx context.Context, question string, topK int) ([]domain.ScoredChunk, error) {
	index, err := s.load()
	if err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = s.topK
	}

	// Repeated questions skip the embedding call entirely.
	if hit, ok := s.cache.Get(question, topK, s.minScore); ok {
		return hit, nil
	}

	vectors, err := s.embedder.Embed(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	scored, err := index.Search(vectors[0], topK)
	if err != nil {
		return nil, err
	}

	if s.minScore > 0 {
		filtered := scored[:0]
		for _, sc := range scored {
			if sc.Score >= s.minScore {
				filtered = append(filtered, sc)
			}
		}
		scored = filtered
	}

	s.cache.Put(question, topK, s.minScore, scored)
	return scored, nil
}

// Context runs Query and joins the result texts with blank lines into a
// single block, ready to be spliced into a prompt by the consuming layer.
func (s *QueryService) Context(ctx context.Context, question string, topK int) (string, error) {
	scored, err := s.Query(ctx, question, topK)
	if err != nil {
		return "", err
	}
	texts := make([]string, len(scored))
	for i, sc := range scored {
		texts[i] = sc.Chunk.Text
	}
	return strings.Join(texts, "\n\n"), nil
}

// Info returns the provenance record of the loaded index.
func (s *QueryService) Info() (domain.VectorInfo, error) {
	index, err := s.load()
	if err != nil {
		return domain.VectorInfo{}, err
	}
	return index.Info(), nil
}

func (s *QueryService) load() (*store.FlatIndex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.index != nil {
		return s.index, nil
	}
	if !store.Exists(s.indexDir) {
		return nil, domain.ErrNotReady
	}

	index, err := store.Load(s.indexDir, s.embedder.Dimension(), s.embedder.ModelName())
	if err != nil {
		return nil, err
	}
	s.index = index
	return index, nil
}
