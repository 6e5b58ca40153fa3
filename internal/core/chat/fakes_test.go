package chat

import (
	"context"
	"io"
	"sync"

	"github.com/markdave123-py/ragchat/internal/core"
	"github.com/markdave123-py/ragchat/internal/models"
)

type fakeTokens struct {
	frags  []string
	failAt int // fail when this many fragments have been sent; 0 never fails
	err    error
	sent   int
	closed bool
}

func (f *fakeTokens) Recv() (string, error) {
	if f.closed {
		return "", io.ErrClosedPipe
	}
	if f.failAt > 0 && f.sent == f.failAt {
		return "", f.err
	}
	if f.sent >= len(f.frags) {
		return "", io.EOF
	}
	f.sent++
	return f.frags[f.sent-1], nil
}

func (f *fakeTokens) Close() error {
	f.closed = true
	return nil
}

// fakeLLM records every request. Complete answers with completion; Stream
// replays frags, or fails to open with streamErr.
type fakeLLM struct {
	mu          sync.Mutex
	completion  models.ChatTurn
	completeErr error
	frags       []string
	failAt      int
	recvErr     error
	streamErr   error

	completes []core.CompletionRequest
	streams   []core.CompletionRequest
	opened    []*fakeTokens
}

func (f *fakeLLM) Complete(_ context.Context, req core.CompletionRequest) (*core.Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completes = append(f.completes, req)
	if f.completeErr != nil {
		return nil, f.completeErr
	}
	return &core.Completion{Message: f.completion}, nil
}

func (f *fakeLLM) Stream(_ context.Context, req core.CompletionRequest) (core.TokenStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.streams = append(f.streams, req)
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	t := &fakeTokens{frags: f.frags, failAt: f.failAt, err: f.recvErr}
	f.opened = append(f.opened, t)
	return t, nil
}

type fakeEmbedder struct {
	inputs []string
	err    error
}

func (f *fakeEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	f.inputs = append(f.inputs, texts...)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

type fakeStore struct {
	results []models.QueryResult
	queries int
	lastK   int
}

func (f *fakeStore) Add(context.Context, []models.CollectionEntry) error { return nil }

func (f *fakeStore) Count(context.Context) (int, error) { return len(f.results), nil }

func (f *fakeStore) Query(_ context.Context, _ []float32, k int) ([]models.QueryResult, error) {
	f.queries++
	f.lastK = k
	return f.results[:min(k, len(f.results))], nil
}

func (f *fakeStore) Close() error { return nil }

func hit(id, text string) models.QueryResult {
	return models.QueryResult{Entry: models.CollectionEntry{ID: id, Text: text}}
}
