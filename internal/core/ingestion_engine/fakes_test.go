package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/markdave123-py/ragchat/internal/core"
	"github.com/markdave123-py/ragchat/internal/models"
)

type memStore struct {
	mu      sync.Mutex
	entries map[string]models.CollectionEntry
	adds    int
}

func newMemStore() *memStore {
	return &memStore{entries: map[string]models.CollectionEntry{}}
}

func (s *memStore) Add(_ context.Context, entries []models.CollectionEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adds++
	for _, e := range entries {
		s.entries[e.ID] = e
	}
	return nil
}

func (s *memStore) Count(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries), nil
}

func (s *memStore) Query(context.Context, []float32, int) ([]models.QueryResult, error) {
	return nil, nil
}

func (s *memStore) Close() error { return nil }

func (s *memStore) ids() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for id := range s.entries {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// fakeEmbedder returns dim-sized vectors; failOnCall > 0 makes that call fail.
type fakeEmbedder struct {
	mu         sync.Mutex
	dim        int
	calls      int
	failOnCall int
}

func (f *fakeEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failOnCall > 0 && f.calls == f.failOnCall {
		return nil, fmt.Errorf("%w: quota exceeded", core.ErrEmbedding)
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, f.dim)
		v[0] = float32(len(t))
		out[i] = v
	}
	return out, nil
}

// mapObjects is an in-memory core.ObjectClient.
type mapObjects map[string][]byte

func (m mapObjects) UploadFile(_ context.Context, key string, data []byte, _ string) (string, error) {
	m[key] = data
	return "mem://" + key, nil
}

func (m mapObjects) GetFile(_ context.Context, key string) ([]byte, error) {
	b, ok := m[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return b, nil
}

func (m mapObjects) ListKeys(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	for k := range m {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			keys = append(keys, k)
		}
	}
	return keys, nil
}
