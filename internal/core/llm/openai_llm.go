package llm

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sashabaranov/go-openai"
	log "github.com/sirupsen/logrus"

	"github.com/markdave123-py/ragchat/internal/core"
	"github.com/markdave123-py/ragchat/internal/models"
)

var _ core.LLMProvider = (*OpenAILLM)(nil)

type OpenAILLM struct {
	client    *openai.Client
	modelName string
}

func NewOpenAILLM(apiKey, baseURL, modelName string) *OpenAILLM {
	if modelName == "" {
		modelName = openai.GPT4oMini
	}
	return &OpenAILLM{client: newOpenAIClient(apiKey, baseURL), modelName: modelName}
}

func (o *OpenAILLM) request(req core.CompletionRequest) (openai.ChatCompletionRequest, error) {
	model := req.Model
	if model == "" {
		model = o.modelName
	}
	msgs, err := toOpenAIMessages(req.Messages)
	if err != nil {
		return openai.ChatCompletionRequest{}, err
	}
	return openai.ChatCompletionRequest{
		Model:    model,
		Messages: msgs,
		Tools:    toOpenAITools(req.Tools),
	}, nil
}

// Complete runs a single non-streamed completion.
func (o *OpenAILLM) Complete(ctx context.Context, req core.CompletionRequest) (*core.Completion, error) {
	r, err := o.request(req)
	if err != nil {
		return nil, err
	}

	resp, err := o.client.CreateChatCompletion(ctx, r)
	if err != nil {
		log.Errorf("openai: chat completion error: %v", err)
		return nil, fmt.Errorf("%w: %w", core.ErrTransport, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: response had no choices", core.ErrTransport)
	}

	msg := resp.Choices[0].Message
	turn := models.ChatTurn{Role: models.RoleAssistant, Content: msg.Content}
	for _, tc := range msg.ToolCalls {
		turn.ToolCalls = append(turn.ToolCalls, models.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return &core.Completion{Message: turn}, nil
}

// Stream opens a streamed completion. Tool calls are not surfaced on streams.
func (o *OpenAILLM) Stream(ctx context.Context, req core.CompletionRequest) (core.TokenStream, error) {
	r, err := o.request(req)
	if err != nil {
		return nil, err
	}
	r.Stream = true

	stream, err := o.client.CreateChatCompletionStream(ctx, r)
	if err != nil {
		log.Errorf("openai: stream creation error: %v", err)
		return nil, fmt.Errorf("%w: %w", core.ErrTransport, err)
	}
	return &openAIStream{stream: stream}, nil
}

type openAIStream struct {
	stream *openai.ChatCompletionStream
}

func (s *openAIStream) Recv() (string, error) {
	for {
		resp, err := s.stream.Recv()
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		if err != nil {
			return "", fmt.Errorf("%w: %w", core.ErrTransport, err)
		}
		if len(resp.Choices) == 0 || resp.Choices[0].Delta.Content == "" {
			continue
		}
		return resp.Choices[0].Delta.Content, nil
	}
}

func (s *openAIStream) Close() error {
	return s.stream.Close()
}

func toOpenAIMessages(turns []models.ChatTurn) ([]openai.ChatCompletionMessage, error) {
	out := make([]openai.ChatCompletionMessage, 0, len(turns))
	for _, t := range turns {
		m := openai.ChatCompletionMessage{Content: t.Content}
		switch t.Role {
		case models.RoleSystem:
			m.Role = openai.ChatMessageRoleSystem
		case models.RoleUser:
			m.Role = openai.ChatMessageRoleUser
		case models.RoleAssistant:
			m.Role = openai.ChatMessageRoleAssistant
			for _, tc := range t.ToolCalls {
				m.ToolCalls = append(m.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				})
			}
		case models.RoleTool:
			m.Role = openai.ChatMessageRoleTool
			m.ToolCallID = t.ToolCallID
		default:
			return nil, fmt.Errorf("cannot send turn with role %s", t.Role)
		}
		out = append(out, m)
	}
	return out, nil
}

func toOpenAITools(specs []core.ToolSpec) []openai.Tool {
	if len(specs) == 0 {
		return nil
	}
	tools := make([]openai.Tool, 0, len(specs))
	for _, s := range specs {
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        s.Name,
				Description: s.Description,
				Parameters:  s.Parameters,
			},
		})
	}
	return tools
}
