package domain

// Chunk is one retrievable unit of text extracted from a source document.
// The vector at position i of the index always corresponds to the chunk at
// position i of the persisted metadata list.
type Chunk struct {
	ChunkID   string `json:"chunk_id"`
	Source    string `json:"source"`
	Path      string `json:"path"`
	Page      int    `json:"page"`
	Title     string `json:"title"`
	Text      string `json:"text"`
	MainTopic string `json:"main_topic"`
	Industry  string `json:"industry"`
	Region    string `json:"region"`
	Language  string `json:"language"`
}

// ScoredChunk pairs a chunk with its similarity score for a query.
type ScoredChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// VectorInfo is the provenance record persisted next to the index. The
// dimension and model are fixed at first build; every later load must match.
type VectorInfo struct {
	VectorDim int    `json:"vector_dim"`
	Model     string `json:"model"`
}

// LedgerEntry marks a source file whose chunks are already part of the
// persisted index. Keyed by resolved absolute path in the build record.
type LedgerEntry struct {
	Filename string `json:"filename"`
}
