package store

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	"go.etcd.io/bbolt"

	"esgkb/internal/domain"
)

// Persisted artifact names. A directory counts as a built index only when
// all three are present; anything less is treated as corrupt state.
const (
	IndexFile    = "vector_index.db"
	MetadataFile = "chunk_metadata.json"
	InfoFile     = "vector_info.json"
)

var bucketVectors = []byte("vectors")

// FlatIndex is an exact inner-product nearest-neighbor index over unit
// vectors, paired with a parallel list of chunk records: the vector at
// position i always corresponds to records[i]. Vectors are L2-normalized on
// the way in, so inner product equals cosine similarity regardless of what
// the embedding provider emits.
//
// Persistence is a bbolt file of position-keyed vectors plus a JSON metadata
// list and a JSON provenance record; brute-force search is plenty for a
// corpus of document chunks.
type FlatIndex struct {
	mu      sync.RWMutex
	dim     int
	model   string
	vectors [][]float32
	records []domain.Chunk
	ids     map[string]struct{}
}

// NewFlatIndex creates an empty index for the given embedding dimension and
// model identifier. Both are fixed for the life of the persisted index.
func NewFlatIndex(dim int, model string) *FlatIndex {
	return &FlatIndex{
		dim:   dim,
		model: model,
		ids:   make(map[string]struct{}),
	}
}

// Add appends vectors and their records to the index. Mismatched lengths,
// wrong dimensions, zero vectors and duplicate chunk IDs are caller bugs and
// fail fast without modifying the index.
func (x *FlatIndex) Add(vectors [][]float32, records []domain.Chunk) error {
	if len(vectors) != len(records) {
		return fmt.Errorf("add: %d vectors for %d records", len(vectors), len(records))
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	normalized := make([][]float32, len(vectors))
	for i, v := range vectors {
		if len(v) != x.dim {
			return fmt.Errorf("add: vector %d has dimension %d, index expects %d", i, len(v), x.dim)
		}
		nv, ok := normalizeCopy(v)
		if !ok {
			return fmt.Errorf("add: vector %d for chunk %s is all zeros", i, records[i].ChunkID)
		}
		normalized[i] = nv
	}
	seen := make(map[string]struct{}, len(records))
	for i, r := range records {
		if _, dup := x.ids[r.ChunkID]; dup {
			return fmt.Errorf("add: duplicate chunk ID %s (record %d)", r.ChunkID, i)
		}
		if _, dup := seen[r.ChunkID]; dup {
			return fmt.Errorf("add: duplicate chunk ID %s within batch (record %d)", r.ChunkID, i)
		}
		seen[r.ChunkID] = struct{}{}
	}

	x.vectors = append(x.vectors, normalized...)
	x.records = append(x.records, records...)
	for _, r := range records {
		x.ids[r.ChunkID] = struct{}{}
	}
	return nil
}

// Search returns up to topK records ordered by descending similarity score.
// An empty index yields an empty result, not an error.
func (x *FlatIndex) Search(query []float32, topK int) ([]domain.ScoredChunk, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if len(query) != x.dim {
		return nil, fmt.Errorf("search: query has dimension %d, index expects %d", len(query), x.dim)
	}
	if len(x.vectors) == 0 || topK <= 0 {
		return []domain.ScoredChunk{}, nil
	}

	q, ok := normalizeCopy(query)
	if !ok {
		return []domain.ScoredChunk{}, nil
	}

	scored := make([]domain.ScoredChunk, len(x.vectors))
	for i, v := range x.vectors {
		scored[i] = domain.ScoredChunk{
			Chunk: x.records[i],
			Score: innerProduct(q, v),
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if topK > len(scored) {
		topK = len(scored)
	}
	return scored[:topK], nil
}

// Count returns the number of vectors in the index.
func (x *FlatIndex) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.vectors)
}

// Info returns the provenance record the index persists alongside its data.
func (x *FlatIndex) Info() domain.VectorInfo {
	return domain.VectorInfo{VectorDim: x.dim, Model: x.model}
}

// Save persists the index structure, the ordered metadata list and the
// provenance record into dir. The three artifacts are written together; a
// save that produced only some of them is corrupt persisted state, which
// Load detects via its consistency checks.
func (x *FlatIndex) Save(dir string) error {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	if err := x.saveVectors(filepath.Join(dir, IndexFile)); err != nil {
		return fmt.Errorf("save index: %w", err)
	}

	meta, err := marshalJSON(x.records)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(dir, MetadataFile), meta); err != nil {
		return fmt.Errorf("save metadata: %w", err)
	}

	info, err := marshalJSON(x.Info())
	if err != nil {
		return fmt.Errorf("marshal provenance: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(dir, InfoFile), info); err != nil {
		return fmt.Errorf("save provenance: %w", err)
	}

	return nil
}

func (x *FlatIndex) saveVectors(path string) error {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return err
	}
	defer db.Close()

	return db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketVectors) != nil {
			if err := tx.DeleteBucket(bucketVectors); err != nil {
				return err
			}
		}
		b, err := tx.CreateBucket(bucketVectors)
		if err != nil {
			return err
		}
		for i, v := range x.vectors {
			if err := b.Put(positionKey(i), encodeVector(v)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Load reconstructs an index from dir. The persisted dimension must match
// expectDim or the load fails with a ConfigurationError; a differing model
// identifier is only warned about, since providers can be interchangeable at
// the same dimensionality. Inconsistent artifacts fail with an
// IndexCorruptionError.
func Load(dir string, expectDim int, expectModel string) (*FlatIndex, error) {
	for _, name := range []string{IndexFile, MetadataFile, InfoFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			return nil, &domain.IndexCorruptionError{Dir: dir, Reason: "missing artifact " + name}
		}
	}

	infoData, err := os.ReadFile(filepath.Join(dir, InfoFile))
	if err != nil {
		return nil, &domain.IndexCorruptionError{Dir: dir, Reason: "unreadable " + InfoFile + ": " + err.Error()}
	}
	var info domain.VectorInfo
	if err := json.Unmarshal(infoData, &info); err != nil {
		return nil, &domain.IndexCorruptionError{Dir: dir, Reason: "malformed " + InfoFile + ": " + err.Error()}
	}

	if expectDim > 0 && info.VectorDim != expectDim {
		return nil, &domain.ConfigurationError{
			Reason: fmt.Sprintf("index in %s was built with dimension %d, embedding provider is configured for %d", dir, info.VectorDim, expectDim),
		}
	}
	if expectModel != "" && info.Model != expectModel {
		logrus.Warnf("index in %s was built with model %q, configured model is %q; scores may be inconsistent", dir, info.Model, expectModel)
	}

	metaData, err := os.ReadFile(filepath.Join(dir, MetadataFile))
	if err != nil {
		return nil, &domain.IndexCorruptionError{Dir: dir, Reason: "unreadable " + MetadataFile + ": " + err.Error()}
	}
	var records []domain.Chunk
	if err := json.Unmarshal(metaData, &records); err != nil {
		return nil, &domain.IndexCorruptionError{Dir: dir, Reason: "malformed " + MetadataFile + ": " + err.Error()}
	}

	x := NewFlatIndex(info.VectorDim, info.Model)
	x.records = records
	for _, r := range records {
		if _, dup := x.ids[r.ChunkID]; dup {
			return nil, &domain.IndexCorruptionError{Dir: dir, Reason: "duplicate chunk ID " + r.ChunkID}
		}
		x.ids[r.ChunkID] = struct{}{}
	}

	if err := x.loadVectors(filepath.Join(dir, IndexFile)); err != nil {
		return nil, err
	}

	if len(x.vectors) != len(x.records) {
		return nil, &domain.IndexCorruptionError{
			Dir:    dir,
			Reason: fmt.Sprintf("%d vectors but %d metadata records", len(x.vectors), len(x.records)),
		}
	}

	return x, nil
}

func (x *FlatIndex) loadVectors(path string) error {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{ReadOnly: true})
	if err != nil {
		return &domain.IndexCorruptionError{Dir: filepath.Dir(path), Reason: "cannot open " + IndexFile + ": " + err.Error()}
	}
	defer db.Close()

	return db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVectors)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			vec, err := decodeVector(v)
			if err != nil {
				return &domain.IndexCorruptionError{Dir: filepath.Dir(path), Reason: err.Error()}
			}
			if len(vec) != x.dim {
				return &domain.IndexCorruptionError{
					Dir:    filepath.Dir(path),
					Reason: fmt.Sprintf("stored vector has dimension %d, provenance says %d", len(vec), x.dim),
				}
			}
			x.vectors = append(x.vectors, vec)
			return nil
		})
	})
}

// Exists reports whether dir holds a complete persisted index: all three
// artifacts present, nothing less.
func Exists(dir string) bool {
	for _, name := range []string{IndexFile, MetadataFile, InfoFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			return false
		}
	}
	return true
}

func positionKey(i int) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], uint64(i))
	return k[:]
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("stored vector has %d bytes, not a multiple of 4", len(data))
	}
	v := make([]float32, len(data)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return v, nil
}

// normalizeCopy returns a unit-length copy of v, or ok=false for a zero
// vector.
func normalizeCopy(v []float32) ([]float32, bool) {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	if sum == 0 {
		return nil, false
	}
	norm := math.Sqrt(sum)

	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(float64(f) / norm)
	}
	return out, true
}

func innerProduct(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// marshalJSON encodes with indentation and without HTML escaping, keeping
// CJK text readable in the persisted files.
func marshalJSON(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it into place, so readers never observe a half-written file.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
