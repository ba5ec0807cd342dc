package ingest

import "strings"

// Chunker splits raw text into overlapping word-window chunks before
// indexing. Size and Overlap are counted in words.
type Chunker struct {
	Size    int
	Overlap int
}

// NewChunker clamps nonsensical settings: Size must be positive and Overlap
// strictly smaller than Size.
func NewChunker(size, overlap int) Chunker {
	if size <= 0 {
		size = 800
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 4
	}
	return Chunker{Size: size, Overlap: overlap}
}

// Split cuts text into chunks of Size words, each sharing Overlap words with
// its predecessor. Whitespace-only input yields nothing.
func (c Chunker) Split(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if len(words) <= c.Size {
		return []string{strings.Join(words, " ")}
	}

	step := c.Size - c.Overlap
	var chunks []string
	for start := 0; start < len(words); start += step {
		end := start + c.Size
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return chunks
}
