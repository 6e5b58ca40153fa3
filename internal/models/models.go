package models

import (
	"fmt"
	"strings"
)

// Format tags the encoding of an uploaded document.
type Format string

const (
	FormatText Format = "text"
	FormatPDF  Format = "pdf"
	FormatHTML Format = "html"
)

// Document is the flat text extracted from an upload or a fetched URL.
type Document struct {
	Source string `json:"source"` // file name or URL
	Format Format `json:"format"`
	Text   string `json:"text"`
}

// Chunk is one contiguous slice of a document stored as its own retrievable unit.
type Chunk struct {
	ID   string `json:"id"` // {source}_chunk_{n}
	Text string `json:"text"`
}

// CollectionEntry is the row persisted by a vector store. ID is the primary key.
type CollectionEntry struct {
	ID        string    `db:"id" json:"id"`
	Text      string    `db:"text" json:"text"`
	Embedding []float32 `db:"embedding" json:"-"`
}

// QueryResult is one nearest-neighbour hit. Lower distance means closer.
type QueryResult struct {
	Entry    CollectionEntry `json:"entry"`
	Distance float64         `json:"distance"`
}

// Role is the closed set of chat participants.
type Role uint8

const (
	RoleSystem Role = iota + 1
	RoleUser
	RoleAssistant
	RoleTool
)

var roleNames = map[Role]string{
	RoleSystem:    "system",
	RoleUser:      "user",
	RoleAssistant: "assistant",
	RoleTool:      "tool",
}

func (r Role) String() string {
	if s, ok := roleNames[r]; ok {
		return s
	}
	return fmt.Sprintf("Role(%d)", uint8(r))
}

// ParseRole maps a wire name to a Role and rejects anything outside the set.
func ParseRole(s string) (Role, error) {
	for r, name := range roleNames {
		if strings.EqualFold(s, name) {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown chat role %q", s)
}

func (r Role) MarshalText() ([]byte, error) {
	if _, ok := roleNames[r]; !ok {
		return nil, fmt.Errorf("invalid chat role %d", uint8(r))
	}
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ToolCall is a function invocation requested by the model.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // raw JSON object
}

// ChatTurn is a single message in a conversation.
type ChatTurn struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}
