package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/markdave123-py/ragchat/internal/config"
	"github.com/markdave123-py/ragchat/internal/core"
	"github.com/markdave123-py/ragchat/internal/models"
)

// ToolName is the single function offered to the model in tool mode.
const ToolName = "relevant_course_info"

const contextSeparator = "\n\n---\n\n"

type Mode string

const (
	ModeDirect Mode = "direct"
	ModeTool   Mode = "tool"
)

// Options are the orchestrator defaults; Model can be overridden per call.
type Options struct {
	Model       string
	TopK        int
	Retrieval   bool
	Mode        Mode
	KeepPartial bool
}

type Orchestrator struct {
	llm     core.LLMProvider
	emb     core.EmbeddingProvider
	store   core.VectorStore
	prompts *config.Prompts
	opts    Options
}

// NewOrchestrator wires the chat loop. emb and store may be nil when retrieval is off.
// Retrieval applies to the direct mode only.
func NewOrchestrator(llm core.LLMProvider, emb core.EmbeddingProvider, store core.VectorStore, prompts *config.Prompts, opts Options) *Orchestrator {
	if opts.TopK < 1 {
		opts.TopK = 3
	}
	if opts.Mode == "" {
		opts.Mode = ModeDirect
	}
	// the tool variant retrieves only through the model's tool calls
	if emb == nil || store == nil || opts.Mode == ModeTool {
		opts.Retrieval = false
	}
	return &Orchestrator{llm: llm, emb: emb, store: store, prompts: prompts, opts: opts}
}

type callOptions struct {
	model string
}

type CallOption func(*callOptions)

// WithModel overrides the model id for one call.
func WithModel(model string) CallOption {
	return func(o *callOptions) { o.model = model }
}

// Respond runs one turn of the conversation in sess and streams the answer.
// When it returns an error the buffer is left as it was before the call. Once a
// stream is returned the user turn stays; the answer is kept only if the stream
// ends cleanly (or partially, with KeepPartial).
func (o *Orchestrator) Respond(ctx context.Context, sess *Session, query string, opts ...CallOption) (*Stream, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty query")
	}
	co := callOptions{model: o.opts.Model}
	for _, opt := range opts {
		opt(&co)
	}

	buf := sess.Buffer
	buf.RemoveWhere(IsRetrievalContext)
	before := buf.snapshot()
	fail := func(err error) (*Stream, error) {
		buf.restore(before)
		return nil, err
	}

	buf.Append(models.ChatTurn{Role: models.RoleUser, Content: query})

	if o.opts.Retrieval {
		results, err := o.retrieve(ctx, query)
		if err != nil {
			return fail(err)
		}
		if len(results) > 0 {
			buf.InsertBeforeLast(o.contextTurn(results))
		}
	}
	buf.Evict()

	finish := func(answer string, complete bool) {
		if complete || (o.opts.KeepPartial && answer != "") {
			buf.Append(models.ChatTurn{Role: models.RoleAssistant, Content: answer})
		}
		buf.RemoveWhere(IsRetrievalContext)
		buf.Evict()
		log.Debugf("chat: session %s finished turn (complete=%t, %d turns buffered)", sess.ID, complete, buf.Len())
	}

	if o.opts.Mode == ModeTool {
		return o.respondWithTool(ctx, buf, co.model, finish, fail)
	}

	src, err := o.llm.Stream(ctx, core.CompletionRequest{Model: co.model, Messages: buf.Messages()})
	if err != nil {
		return fail(err)
	}
	return newStream(src, finish), nil
}

func (o *Orchestrator) respondWithTool(ctx context.Context, buf *Buffer, model string, finish func(string, bool), fail func(error) (*Stream, error)) (*Stream, error) {
	first, err := o.llm.Complete(ctx, core.CompletionRequest{
		Model:    model,
		Messages: buf.Messages(),
		Tools:    []core.ToolSpec{o.toolSpec()},
	})
	if err != nil {
		return fail(err)
	}
	if len(first.Message.ToolCalls) == 0 {
		return newStaticStream(first.Message.Content, finish), nil
	}

	queries := make([]string, len(first.Message.ToolCalls))
	for i, call := range first.Message.ToolCalls {
		q, err := parseToolQuery(call)
		if err != nil {
			return fail(err)
		}
		queries[i] = q
	}

	results := make([]models.ChatTurn, len(queries))
	for i, q := range queries {
		log.Debugf("chat: model called %s(%q)", ToolName, q)
		hits, err := o.retrieve(ctx, q)
		if err != nil {
			return fail(err)
		}
		results[i] = models.ChatTurn{
			Role:       models.RoleTool,
			ToolCallID: first.Message.ToolCalls[i].ID,
			Content:    toolResult(hits),
		}
	}

	call := first.Message
	call.Role = models.RoleAssistant
	buf.Append(call)
	for _, r := range results {
		buf.Append(r)
	}

	src, err := o.llm.Stream(ctx, core.CompletionRequest{Model: model, Messages: buf.Messages()})
	if err != nil {
		return fail(err)
	}
	return newStream(src, finish), nil
}

// retrieve embeds text and returns the nearest entries, or nil when retrieval has nothing to search.
func (o *Orchestrator) retrieve(ctx context.Context, text string) ([]models.QueryResult, error) {
	if o.emb == nil || o.store == nil {
		return nil, nil
	}
	vec, err := core.EmbedText(ctx, o.emb, text)
	if err != nil {
		return nil, err
	}
	results, err := o.store.Query(ctx, vec, o.opts.TopK)
	if err != nil {
		return nil, fmt.Errorf("query vector store: %w", err)
	}
	return results, nil
}

func (o *Orchestrator) contextTurn(results []models.QueryResult) models.ChatTurn {
	texts, ids := splitResults(results)
	content := config.Render(o.prompts.ContextTemplate, map[string]string{
		"context": strings.Join(texts, contextSeparator),
		"sources": strings.Join(ids, ", "),
	})
	if !strings.Contains(content, ContextMarker) {
		content = ContextMarker + "\n" + content
	}
	return models.ChatTurn{Role: models.RoleSystem, Content: content}
}

func (o *Orchestrator) toolSpec() core.ToolSpec {
	return core.ToolSpec{
		Name:        ToolName,
		Description: o.prompts.ToolDescription,
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "What to look up in the course material.",
				},
			},
			"required": []string{"query"},
		},
	}
}

func parseToolQuery(call models.ToolCall) (string, error) {
	if call.Name != ToolName {
		return "", fmt.Errorf("%w: unknown function %q", core.ErrToolArgument, call.Name)
	}
	var args struct {
		Query *string `json:"query"`
	}
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
		return "", fmt.Errorf("%w: %s arguments: %w", core.ErrToolArgument, call.Name, err)
	}
	if args.Query == nil {
		return "", fmt.Errorf("%w: %s called without a query", core.ErrToolArgument, call.Name)
	}
	return *args.Query, nil
}

func toolResult(hits []models.QueryResult) string {
	if len(hits) == 0 {
		return "No relevant course material found."
	}
	texts, ids := splitResults(hits)
	return strings.Join(texts, contextSeparator) + "\n\nSources: " + strings.Join(ids, ", ")
}

func splitResults(results []models.QueryResult) (texts, ids []string) {
	for _, r := range results {
		texts = append(texts, r.Entry.Text)
		ids = append(ids, r.Entry.ID)
	}
	return texts, ids
}
