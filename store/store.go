// Package store keeps conversation history per chat within the process.
package store

import (
	"context"

	"github.com/effective-security/mcpllm/pkg/llms"
)

// MessageStore keeps the history of the chat identified by the context.
type MessageStore interface {
	// Messages returns a copy of the chat history.
	Messages(ctx context.Context) []llms.Message
	// Add appends messages to the chat history.
	Add(ctx context.Context, msgs ...llms.Message) error
	// Reset removes the chat history.
	Reset(ctx context.Context) error
}
