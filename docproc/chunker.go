package docproc

import "strings"

const (
	defaultChunkSize    = 800
	defaultChunkOverlap = 100
)

// Chunker splits normalized text into overlapping spans. Each span ends
// on a sentence terminator when one falls inside the size budget, and
// every span after the first starts exactly Overlap characters before
// the previous span's end, so the overlapping region is byte-identical
// between neighbours. Splitting the same text twice yields the same
// spans.
type Chunker struct {
	Size    int
	Overlap int
}

func NewChunker(size, overlap int) Chunker {
	if size <= 0 {
		size = defaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = defaultChunkOverlap
		if overlap >= size {
			overlap = 0
		}
	}
	return Chunker{Size: size, Overlap: overlap}
}

func (c Chunker) Split(text string) []string {
	normalized := NormalizeText(text)
	if normalized == "" {
		return nil
	}

	chunks := make([]string, 0, len(normalized)/c.Size+1)
	start := 0
	for start < len(normalized) {
		end := start + c.Size
		if end >= len(normalized) {
			chunks = append(chunks, normalized[start:])
			break
		}
		// Prefer a sentence boundary, but never one inside the overlap
		// region of the previous chunk: the next start must advance.
		if b := lastSentenceEnd(normalized, start+c.Overlap, end); b > 0 {
			end = b
		}
		chunks = append(chunks, normalized[start:end])
		start = end - c.Overlap
	}

	return chunks
}

// NormalizeText collapses all whitespace runs to single spaces. Chunk
// boundaries are offsets into this normalized form, which keeps them
// stable under formatting noise in the source document.
func NormalizeText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// lastSentenceEnd returns the largest offset e with lo < e <= hi such
// that s[:e] ends just after a sentence terminator followed by a space
// (or the end of s), or 0 when no such offset exists.
func lastSentenceEnd(s string, lo, hi int) int {
	for i := hi - 1; i > lo; i-- {
		switch s[i] {
		case '.', '!', '?':
			if i+1 == len(s) || s[i+1] == ' ' {
				return i + 1
			}
		}
	}
	return 0
}
