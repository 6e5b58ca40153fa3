package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/ragchat/internal/core"
	"github.com/markdave123-py/ragchat/internal/models"
)

func TestOpenAIEmbedderOrdersByIndex(t *testing.T) {
	var got struct {
		Input []string `json:"input"`
		Model string   `json:"model"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"object":"list","model":"text-embedding-3-small","data":[
			{"object":"embedding","index":1,"embedding":[0,1]},
			{"object":"embedding","index":0,"embedding":[1,0]}
		]}`)
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder("test-key", srv.URL, "")
	vecs, err := e.EmbedTexts(context.Background(), []string{"first", "second"})
	require.NoError(t, err)

	assert.Equal(t, []string{"first", "second"}, got.Input)
	assert.Equal(t, "text-embedding-3-small", got.Model)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vecs)
}

func TestOpenAIEmbedderFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"quota","type":"insufficient_quota"}}`)
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder("test-key", srv.URL, "")
	_, err := e.EmbedTexts(context.Background(), []string{"x"})
	assert.ErrorIs(t, err, core.ErrEmbedding)
}

func TestOpenAICompleteReturnsToolCalls(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"c1","object":"chat.completion","model":"gpt-4o-mini","choices":[{
			"index":0,"finish_reason":"tool_calls",
			"message":{"role":"assistant","content":"","tool_calls":[{
				"id":"call_1","type":"function",
				"function":{"name":"relevant_course_info","arguments":"{\"query\":\"capstone\"}"}
			}]}
		}]}`)
	}))
	defer srv.Close()

	l := NewOpenAILLM("test-key", srv.URL, "")
	out, err := l.Complete(context.Background(), core.CompletionRequest{
		Messages: []models.ChatTurn{
			{Role: models.RoleSystem, Content: "be helpful"},
			{Role: models.RoleUser, Content: "what is the capstone?"},
		},
		Tools: []core.ToolSpec{{
			Name:        "relevant_course_info",
			Description: "search",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"query": map[string]any{"type": "string"}},
				"required":   []string{"query"},
			},
		}},
	})
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o-mini", body["model"])
	tools, _ := body["tools"].([]any)
	require.Len(t, tools, 1)
	msgs, _ := body["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])

	assert.Equal(t, models.RoleAssistant, out.Message.Role)
	require.Len(t, out.Message.ToolCalls, 1)
	assert.Equal(t, models.ToolCall{ID: "call_1", Name: "relevant_course_info", Arguments: `{"query":"capstone"}`}, out.Message.ToolCalls[0])
}

func TestOpenAICompleteTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	l := NewOpenAILLM("test-key", srv.URL, "")
	_, err := l.Complete(context.Background(), core.CompletionRequest{
		Messages: []models.ChatTurn{{Role: models.RoleUser, Content: "hi"}},
	})
	assert.ErrorIs(t, err, core.ErrTransport)
}

func TestOpenAIStreamYieldsFragments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, frag := range []string{"Hel", "", "lo"} {
			fmt.Fprintf(w, "data: {\"id\":\"s\",\"object\":\"chat.completion.chunk\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", frag)
		}
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	l := NewOpenAILLM("test-key", srv.URL, "")
	s, err := l.Stream(context.Background(), core.CompletionRequest{
		Messages: []models.ChatTurn{{Role: models.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	defer s.Close()

	var frags []string
	for {
		f, err := s.Recv()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		frags = append(frags, f)
	}
	assert.Equal(t, []string{"Hel", "lo"}, frags)
}

func TestToOpenAIMessagesCarriesToolTurns(t *testing.T) {
	msgs, err := toOpenAIMessages([]models.ChatTurn{
		{Role: models.RoleAssistant, ToolCalls: []models.ToolCall{{ID: "c1", Name: "f", Arguments: "{}"}}},
		{Role: models.RoleTool, ToolCallID: "c1", Content: "result"},
	})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "c1", msgs[0].ToolCalls[0].ID)
	assert.Equal(t, "tool", msgs[1].Role)
	assert.Equal(t, "c1", msgs[1].ToolCallID)

	_, err = toOpenAIMessages([]models.ChatTurn{{Content: "no role"}})
	assert.Error(t, err)
}
