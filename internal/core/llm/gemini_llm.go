package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/generative-ai-go/genai"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/markdave123-py/ragchat/internal/core"
	"github.com/markdave123-py/ragchat/internal/models"
)

var _ core.LLMProvider = (*GeminiLLM)(nil)

type GeminiLLM struct {
	client    *genai.Client
	modelName string
}

func NewGeminiLLM(ctx context.Context, apiKey, modelName string) (*GeminiLLM, error) {
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	return &GeminiLLM{client: cl, modelName: modelName}, nil
}

func (g *GeminiLLM) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// session prepares a chat session holding every turn but the last, which is returned as parts.
func (g *GeminiLLM) session(req core.CompletionRequest) (*genai.ChatSession, []genai.Part, error) {
	name := req.Model
	if name == "" {
		name = g.modelName
	}
	m := g.client.GenerativeModel(name)

	system, contents, err := toGeminiContents(req.Messages)
	if err != nil {
		return nil, nil, err
	}
	if len(contents) == 0 {
		return nil, nil, fmt.Errorf("gemini: no user turn to send")
	}
	if system != "" {
		m.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(system)},
		}
	}
	if len(req.Tools) > 0 {
		m.Tools = toGeminiTools(req.Tools)
	}

	cs := m.StartChat()
	cs.History = contents[:len(contents)-1]
	return cs, contents[len(contents)-1].Parts, nil
}

func (g *GeminiLLM) Complete(ctx context.Context, req core.CompletionRequest) (*core.Completion, error) {
	cs, parts, err := g.session(req)
	if err != nil {
		return nil, err
	}

	resp, err := cs.SendMessage(ctx, parts...)
	if err != nil {
		log.Errorf("gemini: generate error: %v", err)
		return nil, fmt.Errorf("%w: gemini generate: %w", core.ErrTransport, err)
	}

	turn := models.ChatTurn{Role: models.RoleAssistant}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return &core.Completion{Message: turn}, nil
	}
	turn.Content, turn.ToolCalls, err = fromGeminiParts(resp.Candidates[0].Content.Parts)
	if err != nil {
		return nil, err
	}
	return &core.Completion{Message: turn}, nil
}

func (g *GeminiLLM) Stream(ctx context.Context, req core.CompletionRequest) (core.TokenStream, error) {
	cs, parts, err := g.session(req)
	if err != nil {
		return nil, err
	}
	sctx, cancel := context.WithCancel(ctx)
	return &geminiStream{iter: cs.SendMessageStream(sctx, parts...), cancel: cancel}, nil
}

type geminiStream struct {
	iter    *genai.GenerateContentResponseIterator
	cancel  context.CancelFunc
	pending []string
}

func (s *geminiStream) Recv() (string, error) {
	for len(s.pending) == 0 {
		resp, err := s.iter.Next()
		if errors.Is(err, iterator.Done) {
			return "", io.EOF
		}
		if err != nil {
			return "", fmt.Errorf("%w: gemini stream: %w", core.ErrTransport, err)
		}
		for _, c := range resp.Candidates {
			if c.Content == nil {
				continue
			}
			for _, p := range c.Content.Parts {
				if t, ok := p.(genai.Text); ok && t != "" {
					s.pending = append(s.pending, string(t))
				}
			}
		}
	}
	next := s.pending[0]
	s.pending = s.pending[1:]
	return next, nil
}

func (s *geminiStream) Close() error {
	s.cancel()
	return nil
}

// toGeminiContents folds every system turn into one instruction, in order, since
// Gemini has no system role inside the history. Tool results become function
// responses named after the call they answer.
func toGeminiContents(turns []models.ChatTurn) (string, []*genai.Content, error) {
	var (
		system   []string
		contents []*genai.Content
		callName = map[string]string{}
	)
	for _, t := range turns {
		switch t.Role {
		case models.RoleSystem:
			system = append(system, t.Content)
		case models.RoleUser:
			contents = append(contents, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(t.Content)}})
		case models.RoleAssistant:
			c := &genai.Content{Role: "model"}
			if t.Content != "" {
				c.Parts = append(c.Parts, genai.Text(t.Content))
			}
			for _, tc := range t.ToolCalls {
				args := map[string]any{}
				if tc.Arguments != "" {
					if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
						return "", nil, fmt.Errorf("%w: %s: %w", core.ErrToolArgument, tc.Name, err)
					}
				}
				callName[tc.ID] = tc.Name
				c.Parts = append(c.Parts, genai.FunctionCall{Name: tc.Name, Args: args})
			}
			contents = append(contents, c)
		case models.RoleTool:
			name, ok := callName[t.ToolCallID]
			if !ok {
				return "", nil, fmt.Errorf("tool result %q answers no known call", t.ToolCallID)
			}
			contents = append(contents, &genai.Content{Role: "user", Parts: []genai.Part{
				genai.FunctionResponse{Name: name, Response: map[string]any{"content": t.Content}},
			}})
		default:
			return "", nil, fmt.Errorf("cannot send turn with role %s", t.Role)
		}
	}
	// Gemini history must open with a user turn; a leading greeting becomes instruction text.
	for len(contents) > 0 && contents[0].Role == "model" {
		for _, p := range contents[0].Parts {
			if txt, ok := p.(genai.Text); ok && txt != "" {
				system = append(system, "You opened the conversation with: "+string(txt))
			}
		}
		contents = contents[1:]
	}
	return strings.Join(system, "\n\n"), contents, nil
}

func fromGeminiParts(parts []genai.Part) (string, []models.ToolCall, error) {
	var (
		b     strings.Builder
		calls []models.ToolCall
	)
	for _, p := range parts {
		switch v := p.(type) {
		case genai.Text:
			b.WriteString(string(v))
		case genai.FunctionCall:
			raw, err := json.Marshal(v.Args)
			if err != nil {
				return "", nil, fmt.Errorf("%w: %s: %w", core.ErrToolArgument, v.Name, err)
			}
			calls = append(calls, models.ToolCall{
				ID:        fmt.Sprintf("%s_%d", v.Name, len(calls)+1),
				Name:      v.Name,
				Arguments: string(raw),
			})
		}
	}
	return b.String(), calls, nil
}

func toGeminiTools(specs []core.ToolSpec) []*genai.Tool {
	decls := make([]*genai.FunctionDeclaration, 0, len(specs))
	for _, s := range specs {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        s.Name,
			Description: s.Description,
			Parameters:  toGeminiSchema(s.Parameters),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

// toGeminiSchema converts the subset of JSON schema the tools use.
func toGeminiSchema(js map[string]any) *genai.Schema {
	if js == nil {
		return nil
	}
	s := &genai.Schema{}
	switch js["type"] {
	case "object":
		s.Type = genai.TypeObject
	case "string":
		s.Type = genai.TypeString
	case "integer":
		s.Type = genai.TypeInteger
	case "number":
		s.Type = genai.TypeNumber
	case "boolean":
		s.Type = genai.TypeBoolean
	case "array":
		s.Type = genai.TypeArray
	}
	if d, ok := js["description"].(string); ok {
		s.Description = d
	}
	if props, ok := js["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for k, v := range props {
			if sub, ok := v.(map[string]any); ok {
				s.Properties[k] = toGeminiSchema(sub)
			}
		}
	}
	if items, ok := js["items"].(map[string]any); ok {
		s.Items = toGeminiSchema(items)
	}
	switch req := js["required"].(type) {
	case []string:
		s.Required = req
	case []any:
		for _, r := range req {
			if name, ok := r.(string); ok {
				s.Required = append(s.Required, name)
			}
		}
	}
	return s
}
