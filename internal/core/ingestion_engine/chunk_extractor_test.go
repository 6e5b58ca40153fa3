package ingestion_engine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/ragchat/internal/models"
)

func TestChunkTextEvenSplit(t *testing.T) {
	chunks, err := ChunkText("AAAABBBB", "x", 2)
	require.NoError(t, err)

	assert.Equal(t, []models.Chunk{
		{ID: "x_chunk_1", Text: "AAAA"},
		{ID: "x_chunk_2", Text: "BBBB"},
	}, chunks)
}

func TestChunkTextLastSliceTakesRemainder(t *testing.T) {
	chunks, err := ChunkText("abcdefghij", "doc.html", 3)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Equal(t, "abc", chunks[0].Text)
	assert.Equal(t, "def", chunks[1].Text)
	assert.Equal(t, "ghij", chunks[2].Text)
	assert.Equal(t, "doc.html_chunk_3", chunks[2].ID)
}

func TestChunkTextReconstructsInput(t *testing.T) {
	texts := []string{
		"The quick brown fox jumps over the lazy dog.",
		"short",
		"naïve café über straße: multi-byte text survives",
		strings.Repeat("lorem ipsum ", 37),
	}
	for _, text := range texts {
		for n := 1; n <= 9; n++ {
			chunks, err := ChunkText(text, "src", n)
			require.NoError(t, err)
			assert.LessOrEqual(t, len(chunks), n)

			var joined strings.Builder
			for _, c := range chunks {
				joined.WriteString(c.Text)
			}
			assert.Equal(t, stripSpace(text), stripSpace(joined.String()), "n=%d", n)
		}
	}
}

func TestChunkTextDropsEmptySlices(t *testing.T) {
	chunks, err := ChunkText("ab", "s", 5)
	require.NoError(t, err)

	// size is 0 so only the last slice carries text
	require.Len(t, chunks, 1)
	assert.Equal(t, "s_chunk_5", chunks[0].ID)
	assert.Equal(t, "ab", chunks[0].Text)

	chunks, err = ChunkText("   \n\t  ", "s", 2)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestChunkTextDeterministic(t *testing.T) {
	text := strings.Repeat("student organizations ", 20)
	a, err := ChunkText(text, "orgs.html", 4)
	require.NoError(t, err)
	b, err := ChunkText(text, "orgs.html", 4)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestChunkTextRejectsZeroCount(t *testing.T) {
	_, err := ChunkText("anything", "s", 0)
	assert.Error(t, err)
}

func stripSpace(s string) string {
	return strings.Join(strings.Fields(s), "")
}
