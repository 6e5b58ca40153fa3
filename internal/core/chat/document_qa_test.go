package chat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/ragchat/internal/models"
)

func TestAskDocumentSendsSingleUserMessage(t *testing.T) {
	llm := &fakeLLM{frags: []string{"It is about ", "pandas."}}
	qa := NewDocumentQA(llm, testPrompts(t), "gpt-4o-mini")
	doc := &models.Document{Source: "notes.txt", Text: "pandas dataframes"}

	s, err := qa.AskDocument(context.Background(), doc, "What is this about?", "")
	require.NoError(t, err)
	answer, err := Collect(s)
	require.NoError(t, err)
	assert.Equal(t, "It is about pandas.", answer)

	require.Len(t, llm.streams, 1)
	req := llm.streams[0]
	assert.Equal(t, "gpt-4o-mini", req.Model)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, models.RoleUser, req.Messages[0].Role)
	assert.Equal(t, "Here's a document: pandas dataframes \n\n---\n\n What is this about?", req.Messages[0].Content)
}

func TestSummarizeFormats(t *testing.T) {
	llm := &fakeLLM{frags: []string{"- one"}}
	qa := NewDocumentQA(llm, testPrompts(t), "gpt-4o-mini")
	doc := &models.Document{Text: "body"}

	assert.Equal(t, []string{"100-word", "bullets", "paragraphs"}, qa.SummaryFormats())

	s, err := qa.Summarize(context.Background(), doc, "bullets", "gpt-4o")
	require.NoError(t, err)
	_, _ = Collect(s)
	assert.Equal(t, "gpt-4o", llm.streams[0].Model)
	assert.Contains(t, llm.streams[0].Messages[0].Content, "five bullet points")

	_, err = qa.Summarize(context.Background(), doc, "haiku", "")
	assert.ErrorIs(t, err, ErrUnknownSummaryFormat)
}
