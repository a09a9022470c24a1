package store

import (
	"context"
	"time"

	"github.com/effective-security/agentic/pkg/llms"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/agentic", "store")

// MessageStore persists conversation history per chat session. The chat ID is
// taken from the chatmodel context.
type MessageStore interface {
	Messages(ctx context.Context) []llms.Message
	Add(ctx context.Context, msg llms.Message) error
	Reset(ctx context.Context) error
}

// ChatInfo describes a stored chat session.
type ChatInfo struct {
	ChatID    string         `json:"chat_id"`
	Title     string         `json:"title"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Messages  []llms.Message `json:"messages,omitempty"`
}

// MessageStoreManager extends MessageStore with chat management operations.
type MessageStoreManager interface {
	MessageStore

	// UpdateChat creates or updates the chat info for the chat ID from context.
	UpdateChat(ctx context.Context, title string, metadata map[string]any) error
	// ListChats returns the chat IDs known to the store.
	ListChats(ctx context.Context) ([]string, error)
	// GetChatInfo returns the chat info with messages.
	GetChatInfo(ctx context.Context, id string) (*ChatInfo, error)
	// Cleanup removes chats not updated within the given duration,
	// and returns the number of removed chats.
	Cleanup(ctx context.Context, olderThan time.Duration) (uint32, error)
}
