package index

import (
	"fmt"
	"strings"
)

const (
	defaultChunkSize    = 1000
	defaultChunkOverlap = 200
)

// Chunker splits text into overlapping chunks. Overlap keeps context from
// being lost at chunk boundaries.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker creates a chunker with the given size and overlap in characters.
// Zero values select the defaults. The overlap must be smaller than the size.
func NewChunker(size, overlap int) (Chunker, error) {
	if size == 0 {
		size = defaultChunkSize
	}
	if overlap == 0 {
		overlap = defaultChunkOverlap
	}
	if overlap >= size {
		return Chunker{}, fmt.Errorf("chunk overlap %d must be less than chunk size %d", overlap, size)
	}
	return Chunker{size: size, overlap: overlap}, nil
}

// Chunk splits text into overlapping chunks, avoiding cuts in the middle of a
// word where possible. Boundaries are measured in runes, so multi-byte text is
// never cut inside a character. Empty or whitespace-only input yields no
// chunks.
func (c Chunker) Chunk(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	var chunks []string
	start := 0
	lastStart := -1

	for start < len(runes) {
		end := start + c.size

		if end < len(runes) {
			for i := end - 1; i > start; i-- {
				if runes[i] == ' ' {
					end = i
					break
				}
			}
		} else {
			end = len(runes)
		}

		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}

		next := end - c.overlap
		if next <= lastStart || next <= start {
			// Overlap would revisit ground already covered.
			next = end
		}
		lastStart = start
		start = next
	}

	return chunks
}
