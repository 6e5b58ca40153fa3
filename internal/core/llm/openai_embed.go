package llm

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
	log "github.com/sirupsen/logrus"

	"github.com/markdave123-py/ragchat/internal/core"
)

var _ core.EmbeddingProvider = (*OpenAIEmbedder)(nil)

type OpenAIEmbedder struct {
	client    *openai.Client
	modelName string
}

// NewOpenAIEmbedder builds an embedder; baseURL may be empty for the public API.
func NewOpenAIEmbedder(apiKey, baseURL, modelName string) *OpenAIEmbedder {
	if modelName == "" {
		modelName = string(openai.SmallEmbedding3)
	}
	return &OpenAIEmbedder{client: newOpenAIClient(apiKey, baseURL), modelName: modelName}
}

// EmbedTexts sends all texts in one request and orders the vectors by input index.
func (o *OpenAIEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(o.modelName),
	})
	if err != nil {
		log.Errorf("openai: embeddings request failed: %v", err)
		return nil, fmt.Errorf("%w: %w", core.ErrEmbedding, err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d inputs", core.ErrEmbedding, len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) || out[d.Index] != nil {
			return nil, fmt.Errorf("%w: bad embedding index %d", core.ErrEmbedding, d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

func newOpenAIClient(apiKey, baseURL string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg)
}
