package chunker

import "strings"

// RecursiveSplitter splits text into overlapping chunks along natural
// boundaries. Separators are tried in order: text is cut on the
// earliest-listed separator that keeps pieces under the target size, falling
// back to finer separators only for oversized pieces. The separator stays
// attached to the end of the piece it terminates, so sentence punctuation is
// never lost from the emitted chunks.
//
// Sizes are measured in runes, not bytes, so CJK text is budgeted the same
// way as Latin text.
type RecursiveSplitter struct {
	chunkSize  int
	overlap    int
	separators []string
}

// NewRecursiveSplitter creates a splitter with the given target chunk size
// and overlap. Empty separators fall back to the default boundary list.
func NewRecursiveSplitter(chunkSize, overlap int, separators []string) *RecursiveSplitter {
	if chunkSize <= 0 {
		chunkSize = 400
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}
	if len(separators) == 0 {
		separators = []string{"\n\n", "\n", "。", ".", "!", "?", "！", "？"}
	}
	return &RecursiveSplitter{
		chunkSize:  chunkSize,
		overlap:    overlap,
		separators: separators,
	}
}

// Split breaks text into chunks. Whitespace-only input yields no chunks.
// A piece that contains none of the separators and still exceeds the target
// size is emitted as-is rather than cut mid-word.
func (s *RecursiveSplitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return s.split(text, s.separators)
}

func (s *RecursiveSplitter) split(text string, separators []string) []string {
	sep, rest := pickSeparator(text, separators)
	if sep == "" {
		// No boundary left to cut on.
		return []string{text}
	}

	pieces := splitKeep(text, sep)

	var chunks []string
	var pending []string
	for _, piece := range pieces {
		if runeLen(piece) <= s.chunkSize {
			pending = append(pending, piece)
			continue
		}
		chunks = append(chunks, s.merge(pending)...)
		pending = nil
		if len(rest) == 0 {
			chunks = append(chunks, piece)
		} else {
			chunks = append(chunks, s.split(piece, rest)...)
		}
	}
	chunks = append(chunks, s.merge(pending)...)
	return chunks
}

// merge joins small pieces into chunks up to the target size, carrying the
// trailing pieces worth up to the overlap budget into the next chunk.
func (s *RecursiveSplitter) merge(pieces []string) []string {
	var chunks []string
	var window []string
	windowLen := 0

	flush := func() {
		joined := strings.TrimSpace(strings.Join(window, ""))
		if joined != "" {
			chunks = append(chunks, joined)
		}
	}

	for _, piece := range pieces {
		pl := runeLen(piece)
		if windowLen > 0 && windowLen+pl > s.chunkSize {
			flush()
			for windowLen > s.overlap && len(window) > 0 {
				windowLen -= runeLen(window[0])
				window = window[1:]
			}
		}
		window = append(window, piece)
		windowLen += pl
	}
	if windowLen > 0 {
		flush()
	}
	return chunks
}

// pickSeparator returns the first listed separator present in text, along
// with the finer separators remaining after it.
func pickSeparator(text string, separators []string) (string, []string) {
	for i, sep := range separators {
		if strings.Contains(text, sep) {
			return sep, separators[i+1:]
		}
	}
	return "", nil
}

// splitKeep splits text on sep, keeping sep at the end of each piece.
func splitKeep(text, sep string) []string {
	parts := strings.Split(text, sep)
	out := make([]string, 0, len(parts))
	for i, p := range parts {
		if i < len(parts)-1 {
			p += sep
		}
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func runeLen(s string) int {
	return len([]rune(s))
}
