package chat

import (
	"time"

	"github.com/markdave123-py/ragchat/internal/models"
)

// Session owns one conversation. Callers serialise access to it.
type Session struct {
	ID        string
	Buffer    *Buffer
	CreatedAt time.Time
}

func NewSession(id, systemPrompt string, maxHistory int, seed ...models.ChatTurn) *Session {
	return &Session{
		ID:        id,
		Buffer:    NewBuffer(systemPrompt, maxHistory, seed...),
		CreatedAt: time.Now(),
	}
}

// Visible is the history a user sees: no system turns, no tool plumbing.
func (s *Session) Visible() []models.ChatTurn {
	var out []models.ChatTurn
	for _, t := range s.Buffer.Messages() {
		switch {
		case t.Role == models.RoleSystem, t.Role == models.RoleTool:
			continue
		case t.Role == models.RoleAssistant && len(t.ToolCalls) > 0 && t.Content == "":
			continue
		}
		out = append(out, t)
	}
	return out
}
