package chunker

import (
	"fmt"
	"reflect"
	"strings"
	"testing"
)

func TestSplitShortText(t *testing.T) {
	s := NewRecursiveSplitter(400, 50, nil)

	chunks := s.Split("A short disclosure statement.")
	if len(chunks) != 1 {
		t.Fatalf("expected exactly 1 chunk, got %d", len(chunks))
	}
	if chunks[0] != "A short disclosure statement." {
		t.Errorf("unexpected chunk text: %q", chunks[0])
	}
}

func TestSplitEmptyText(t *testing.T) {
	s := NewRecursiveSplitter(400, 50, nil)

	if got := s.Split(""); got != nil {
		t.Errorf("expected nil for empty text, got %v", got)
	}
	if got := s.Split("   \n\t  "); got != nil {
		t.Errorf("expected nil for whitespace text, got %v", got)
	}
}

func TestSplitLongPageText(t *testing.T) {
	s := NewRecursiveSplitter(400, 50, nil)

	// ~900 chars of sentence-terminated text, as one page of a report.
	var b strings.Builder
	for i := 0; b.Len() < 900; i++ {
		fmt.Fprintf(&b, "Sentence %d covers scope emissions and reduction targets in detail. ", i)
	}
	text := b.String()

	chunks := s.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected >=2 chunks for ~900 chars at size 400, got %d", len(chunks))
	}
	for i, c := range chunks {
		if runeLen(c) > 400+80 {
			t.Errorf("chunk %d far exceeds target size: %d runes", i, runeLen(c))
		}
	}
}

func TestSplitKeepsSeparator(t *testing.T) {
	s := NewRecursiveSplitter(30, 0, []string{"。", "."})

	chunks := s.Split("範疇三排放涵蓋價值鏈上下游。供應商數據品質是一大挑戰。Methodology follows the GHG Protocol.")
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for _, c := range chunks {
		last := []rune(c)[len([]rune(c))-1]
		if last != '。' && last != '.' {
			t.Errorf("chunk does not end on a retained separator: %q", c)
		}
	}
}

func TestSplitPrefersParagraphBreaks(t *testing.T) {
	s := NewRecursiveSplitter(40, 0, []string{"\n\n", "\n", "."})

	text := "First paragraph stays whole.\n\nSecond paragraph stays whole too."
	chunks := s.Split(text)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks split on paragraph break, got %d: %v", len(chunks), chunks)
	}
	if !strings.HasPrefix(chunks[1], "Second") {
		t.Errorf("expected second chunk to start at paragraph boundary, got %q", chunks[1])
	}
}

func TestSplitOverlap(t *testing.T) {
	s := NewRecursiveSplitter(20, 10, []string{" "})

	chunks := s.Split("one two three four five six seven eight nine ten")
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	// With overlap, consecutive chunks share trailing/leading words.
	overlapFound := false
	for i := 1; i < len(chunks); i++ {
		prevWords := strings.Fields(chunks[i-1])
		if len(prevWords) == 0 {
			continue
		}
		if strings.Contains(chunks[i], prevWords[len(prevWords)-1]) {
			overlapFound = true
		}
	}
	if !overlapFound {
		t.Errorf("expected overlapping content between consecutive chunks: %v", chunks)
	}
}

func TestSplitDeterministic(t *testing.T) {
	s := NewRecursiveSplitter(50, 10, nil)

	text := "Emissions fell by ten percent. Water usage held steady.\nWaste recycling improved. Governance training expanded."
	first := s.Split(text)
	second := s.Split(text)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("splitting is not deterministic:\n%v\n%v", first, second)
	}
}

func TestSplitNoSeparatorOversized(t *testing.T) {
	s := NewRecursiveSplitter(10, 0, []string{"."})

	text := strings.Repeat("x", 50)
	chunks := s.Split(text)
	if len(chunks) != 1 || chunks[0] != text {
		t.Errorf("expected oversized unbreakable text emitted as-is, got %v", chunks)
	}
}
