// Package dialogue produces grounded assistant replies about a single book.
package dialogue

import (
	"context"

	"github.com/kalambet/booktalk/internal/catalog"
)

// Conversation roles. RoleSystem is added by the orchestrator and is never
// accepted from callers.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is one conversational turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TurnRequest carries the full prior history for one chat turn. Nothing is
// remembered between turns, so callers resend the history every time.
type TurnRequest struct {
	UniqueID string    `json:"unique_id"`
	Messages []Message `json:"messages"`
}

// Backend produces one assistant reply for a system instruction and the
// conversation so far. A failed call returns no text.
type Backend interface {
	Complete(ctx context.Context, system string, history []Message) (string, error)
}

// BackendFunc adapts a plain function to Backend.
type BackendFunc func(ctx context.Context, system string, history []Message) (string, error)

func (f BackendFunc) Complete(ctx context.Context, system string, history []Message) (string, error) {
	return f(ctx, system, history)
}

// BookFinder resolves a book by unique id. *catalog.Store satisfies it.
type BookFinder interface {
	FindByID(id string) (catalog.Book, bool)
}
