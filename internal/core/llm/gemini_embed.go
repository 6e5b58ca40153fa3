package llm

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/markdave123-py/ragchat/internal/core"
)

// geminiMaxBatch is the request limit of batchEmbedContents.
const geminiMaxBatch = 100

var _ core.EmbeddingProvider = (*GeminiEmbedder)(nil)

// GeminiEmbedder embeds corpus chunks and user queries with one Gemini embedding model.
type GeminiEmbedder struct {
	client    *genai.Client
	modelName string
	maxBatch  int
}

func NewGeminiEmbedder(ctx context.Context, apiKey, modelName string) (*GeminiEmbedder, error) {
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini embed client: %w", err)
	}
	if modelName == "" {
		modelName = "gemini-embedding-001"
	}
	return &GeminiEmbedder{client: cl, modelName: modelName, maxBatch: geminiMaxBatch}, nil
}

func (g *GeminiEmbedder) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// EmbedTexts embeds texts in input order, splitting into requests of at most maxBatch.
// Any failed request fails the whole call; no partial result is returned.
func (g *GeminiEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	em := g.client.EmbeddingModel(g.modelName)

	out := make([][]float32, 0, len(texts))
	for _, span := range batchSpans(len(texts), g.maxBatch) {
		part := texts[span[0]:span[1]]
		batch := em.NewBatch()
		for _, t := range part {
			batch.AddContent(genai.Text(t))
		}

		resp, err := em.BatchEmbedContents(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("%w: gemini batch embed: %w", core.ErrEmbedding, err)
		}
		vecs, err := geminiVectors(resp.Embeddings, len(part))
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// geminiVectors checks one batch response: one non-empty vector per input.
func geminiVectors(embs []*genai.ContentEmbedding, want int) ([][]float32, error) {
	if len(embs) != want {
		return nil, fmt.Errorf("%w: got %d embeddings for %d inputs", core.ErrEmbedding, len(embs), want)
	}
	out := make([][]float32, len(embs))
	for i, e := range embs {
		if e == nil || len(e.Values) == 0 {
			return nil, fmt.Errorf("%w: empty embedding at position %d", core.ErrEmbedding, i)
		}
		out[i] = e.Values
	}
	return out, nil
}

// batchSpans splits [0,n) into consecutive [start,end) ranges of at most size.
func batchSpans(n, size int) [][2]int {
	if size < 1 {
		size = n
	}
	var spans [][2]int
	for start := 0; start < n; start += size {
		spans = append(spans, [2]int{start, min(start+size, n)})
	}
	return spans
}
