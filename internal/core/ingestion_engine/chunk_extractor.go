package ingestion_engine

import (
	"fmt"
	"strings"

	"github.com/markdave123-py/ragchat/internal/models"
)

// ChunkText splits text into n contiguous slices of floor(len/n) characters; the
// last slice absorbs the remainder. Slices are trimmed and empty ones dropped.
// Boundaries ignore sentence structure, which is fine for the short, uniformly
// structured pages this is used on.
func ChunkText(text, source string, n int) ([]models.Chunk, error) {
	if n < 1 {
		return nil, fmt.Errorf("chunk count must be >= 1, got %d", n)
	}

	runes := []rune(text)
	size := len(runes) / n

	chunks := make([]models.Chunk, 0, n)
	for i := 0; i < n; i++ {
		start := i * size
		end := start + size
		if i == n-1 {
			end = len(runes)
		}

		piece := strings.TrimSpace(string(runes[start:end]))
		if piece == "" {
			continue
		}
		chunks = append(chunks, models.Chunk{
			ID:   fmt.Sprintf("%s_chunk_%d", source, i+1),
			Text: piece,
		})
	}
	return chunks, nil
}
