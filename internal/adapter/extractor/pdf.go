package extractor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"esgkb/internal/adapter/chunker"
	"esgkb/internal/domain"
	"esgkb/internal/port"
)

// PDFExtractor reads PDF documents page by page and splits each page into
// overlapping chunks with positional metadata. Chunk IDs are derived from
// the file stem, page and segment position, so re-extracting the same file
// with the same splitter configuration yields the same IDs.
type PDFExtractor struct {
	root     string
	splitter *chunker.RecursiveSplitter
}

// NewPDFExtractor creates an extractor for documents under the given corpus
// root. The root is only used to derive the relative provenance path.
func NewPDFExtractor(root string, splitter *chunker.RecursiveSplitter) *PDFExtractor {
	return &PDFExtractor{
		root:     root,
		splitter: splitter,
	}
}

// Extract emits the document's chunks in reading order (page ascending,
// segment ascending). A document with zero extractable pages yields an empty
// slice. A corrupt or unreadable document returns a DocumentReadError.
func (e *PDFExtractor) Extract(ctx context.Context, path string) (chunks []domain.Chunk, err error) {
	// ledongthuc/pdf panics on some malformed documents; treat that the
	// same as an open failure so the build can skip the file and continue.
	defer func() {
		if r := recover(); r != nil {
			chunks = nil
			err = &domain.DocumentReadError{Path: path, Err: fmt.Errorf("panic while parsing: %v", r)}
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, &domain.DocumentReadError{Path: path, Err: err}
	}
	defer f.Close()

	source := filepath.Base(path)
	relDir := e.relDir(path)
	stem := strings.TrimSuffix(source, filepath.Ext(source))

	total := reader.NumPage()
	for pageNum := 1; pageNum <= total; pageNum++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single unreadable page does not fail the document.
			continue
		}

		chunks = append(chunks, pageChunks(stem, source, relDir, pageNum, text, e.splitter)...)
	}

	return chunks, nil
}

// relDir returns the source's directory path relative to the corpus root,
// used for provenance and path-based classification.
func (e *PDFExtractor) relDir(path string) string {
	rel, err := filepath.Rel(e.root, path)
	if err != nil {
		return filepath.Base(filepath.Dir(path))
	}
	dir := filepath.Dir(rel)
	if dir == "." {
		return ""
	}
	return filepath.ToSlash(dir)
}

// pageChunks splits one page's text and attaches positional metadata.
// Whitespace-only pages yield no chunks.
func pageChunks(stem, source, relDir string, pageNum int, text string, splitter *chunker.RecursiveSplitter) []domain.Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	segments := splitter.Split(text)
	chunks := make([]domain.Chunk, 0, len(segments))
	for i, seg := range segments {
		chunks = append(chunks, domain.Chunk{
			ChunkID: fmt.Sprintf("%s-p%d-s%d", stem, pageNum, i+1),
			Source:  source,
			Path:    relDir,
			Page:    pageNum,
			Title:   firstLine(seg),
			Text:    seg,
		})
	}
	return chunks
}

// firstLine returns the first non-empty line of a chunk, used as its
// display label.
func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

var _ port.Extractor = (*PDFExtractor)(nil)
