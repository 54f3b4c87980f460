package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"esgkb/internal/domain"
)

// QueryCache memoizes retrieval results per question, saving the embedding
// call for repeated questions. Questionnaire answering tends to re-ask the
// same question across companies, so hit rates are high in practice.
//
// Entries expire after a TTL and the cache evicts least-recently-used entries
// beyond its size bound. Clear wipes everything; callers do that whenever the
// underlying index changes.
type QueryCache struct {
	mu      sync.Mutex
	entries map[string]*entry
	order   []string
	maxSize int
	ttl     time.Duration
}

type entry struct {
	results []domain.ScoredChunk
	addedAt time.Time
}

func NewQueryCache(maxSize int, ttl time.Duration) *QueryCache {
	if maxSize <= 0 {
		maxSize = 100
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &QueryCache{
		entries: make(map[string]*entry),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

// key hashes the question together with the retrieval parameters, since the
// same question with a different topK or threshold is a different result set.
func key(question string, topK int, minScore float64) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%d|%g|%s", topK, minScore, question)))
	return hex.EncodeToString(h[:16])
}

func (c *QueryCache) Get(question string, topK int, minScore float64) ([]domain.ScoredChunk, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := key(question, topK, minScore)
	e, ok := c.entries[k]
	if !ok {
		return nil, false
	}
	if time.Since(e.addedAt) > c.ttl {
		delete(c.entries, k)
		c.dropKey(k)
		return nil, false
	}

	c.touch(k)
	return e.results, true
}

func (c *QueryCache) Put(question string, topK int, minScore float64, results []domain.ScoredChunk) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := key(question, topK, minScore)
	if _, ok := c.entries[k]; ok {
		c.entries[k] = &entry{results: results, addedAt: time.Now()}
		c.touch(k)
		return
	}

	if len(c.entries) >= c.maxSize && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[k] = &entry{results: results, addedAt: time.Now()}
	c.order = append(c.order, k)
}

func (c *QueryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
	c.order = c.order[:0]
}

func (c *QueryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *QueryCache) touch(k string) {
	c.dropKey(k)
	c.order = append(c.order, k)
}

func (c *QueryCache) dropKey(k string) {
	for i, o := range c.order {
		if o == k {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
