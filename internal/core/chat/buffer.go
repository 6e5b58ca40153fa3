package chat

import (
	"strings"

	"github.com/markdave123-py/ragchat/internal/models"
)

// ContextMarker tags system turns that carry injected retrieval context.
const ContextMarker = "Context:"

// IsRetrievalContext reports whether t is a transient retrieval turn.
func IsRetrievalContext(t models.ChatTurn) bool {
	return t.Role == models.RoleSystem && strings.Contains(t.Content, ContextMarker)
}

// Buffer is a conversation with a pinned system message and a bounded tail.
// It is not safe for concurrent use; a session has a single writer.
type Buffer struct {
	system     *models.ChatTurn
	tail       []models.ChatTurn
	maxHistory int
}

// NewBuffer creates a buffer. An empty systemPrompt means no pinned head.
// maxHistory below 1 is raised to 1.
func NewBuffer(systemPrompt string, maxHistory int, seed ...models.ChatTurn) *Buffer {
	b := &Buffer{maxHistory: max(maxHistory, 1)}
	if systemPrompt != "" {
		b.system = &models.ChatTurn{Role: models.RoleSystem, Content: systemPrompt}
	}
	b.tail = append(b.tail, seed...)
	b.Evict()
	return b
}

func (b *Buffer) Append(t models.ChatTurn) {
	b.tail = append(b.tail, t)
}

// InsertBeforeLast places t just before the most recent turn, or appends it to an empty tail.
func (b *Buffer) InsertBeforeLast(t models.ChatTurn) {
	if len(b.tail) == 0 {
		b.tail = append(b.tail, t)
		return
	}
	last := len(b.tail) - 1
	b.tail = append(b.tail, models.ChatTurn{})
	copy(b.tail[last+1:], b.tail[last:])
	b.tail[last] = t
}

// RemoveWhere drops every tail turn matching pred and returns how many went.
// The pinned system message is never removed.
func (b *Buffer) RemoveWhere(pred func(models.ChatTurn) bool) int {
	kept := b.tail[:0]
	removed := 0
	for _, t := range b.tail {
		if pred(t) {
			removed++
			continue
		}
		kept = append(kept, t)
	}
	clear(b.tail[len(kept):])
	b.tail = kept
	return removed
}

// Evict keeps the newest maxHistory tail turns, then drops tool results at the
// front whose requesting assistant turn has already gone.
func (b *Buffer) Evict() {
	if over := len(b.tail) - b.maxHistory; over > 0 {
		b.tail = append([]models.ChatTurn(nil), b.tail[over:]...)
	}
	for len(b.tail) > 0 && b.tail[0].Role == models.RoleTool {
		b.tail = b.tail[1:]
	}
}

// Messages returns a copy of the full sequence, head first.
func (b *Buffer) Messages() []models.ChatTurn {
	out := make([]models.ChatTurn, 0, b.Len())
	if b.system != nil {
		out = append(out, *b.system)
	}
	return append(out, b.tail...)
}

func (b *Buffer) Len() int {
	if b.system != nil {
		return len(b.tail) + 1
	}
	return len(b.tail)
}

func (b *Buffer) MaxHistory() int { return b.maxHistory }

func (b *Buffer) snapshot() []models.ChatTurn {
	return append([]models.ChatTurn(nil), b.tail...)
}

func (b *Buffer) restore(tail []models.ChatTurn) {
	b.tail = tail
}
