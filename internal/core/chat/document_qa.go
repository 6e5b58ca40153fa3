package chat

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/markdave123-py/ragchat/internal/config"
	"github.com/markdave123-py/ragchat/internal/core"
	"github.com/markdave123-py/ragchat/internal/models"
)

var ErrUnknownSummaryFormat = errors.New("unknown summary format")

// DocumentQA answers one-off questions about a single document. It keeps no history.
type DocumentQA struct {
	llm     core.LLMProvider
	prompts *config.Prompts
	model   string
}

func NewDocumentQA(llm core.LLMProvider, prompts *config.Prompts, model string) *DocumentQA {
	return &DocumentQA{llm: llm, prompts: prompts, model: model}
}

// AskDocument streams an answer to question about doc. An empty model uses the default.
func (d *DocumentQA) AskDocument(ctx context.Context, doc *models.Document, question, model string) (*Stream, error) {
	if doc == nil {
		return nil, fmt.Errorf("nil document")
	}
	content := config.Render(d.prompts.DocumentQuestion, map[string]string{
		"document": doc.Text,
		"question": question,
	})
	if model == "" {
		model = d.model
	}

	src, err := d.llm.Stream(ctx, core.CompletionRequest{
		Model:    model,
		Messages: []models.ChatTurn{{Role: models.RoleUser, Content: content}},
	})
	if err != nil {
		return nil, err
	}
	return newStream(src, nil), nil
}

// Summarize asks for a summary of doc in one of SummaryFormats.
func (d *DocumentQA) Summarize(ctx context.Context, doc *models.Document, format, model string) (*Stream, error) {
	instruction, ok := d.prompts.Summaries[format]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSummaryFormat, format)
	}
	return d.AskDocument(ctx, doc, instruction, model)
}

// SummaryFormats lists the configured summary styles.
func (d *DocumentQA) SummaryFormats() []string {
	out := make([]string, 0, len(d.prompts.Summaries))
	for k := range d.prompts.Summaries {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
