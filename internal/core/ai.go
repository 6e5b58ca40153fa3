package core

import (
	"context"
	"fmt"

	"github.com/markdave123-py/ragchat/internal/models"
)

type EmbeddingProvider interface {
	// EmbedTexts returns one vector per input, in input order.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// ToolSpec describes a function the model may ask the caller to run.
// Parameters is a JSON schema object.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// CompletionRequest is what every LLMProvider receives.
type CompletionRequest struct {
	Model    string
	Messages []models.ChatTurn
	Tools    []ToolSpec
}

// Completion is a non-streamed model answer. Message.ToolCalls is non-empty when
// the model asked for a function call instead of answering.
type Completion struct {
	Message models.ChatTurn
}

// TokenStream yields text fragments until Recv returns io.EOF.
type TokenStream interface {
	Recv() (string, error)
	Close() error
}

type LLMProvider interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
	Stream(ctx context.Context, req CompletionRequest) (TokenStream, error)
}

// EmbedText embeds a single text through p.
func EmbedText(ctx context.Context, p EmbeddingProvider, text string) ([]float32, error) {
	vecs, err := p.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("%w: got %d embeddings for 1 input", ErrEmbedding, len(vecs))
	}
	return vecs[0], nil
}
