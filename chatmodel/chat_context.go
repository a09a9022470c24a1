package chatmodel

import (
	"context"
	"strconv"
	"sync"

	"github.com/effective-security/x/values"
	"github.com/effective-security/xdb/pkg/flake"
)

// ChatContext is the per-invocation context for the agent and its tools.
// It carries the session identifier, the working directory for file and
// subprocess tools, and an optional progress callback. The session ID is an
// opaque string; the loop performs no storage itself.
type ChatContext interface {
	// GetChatID returns the opaque session identifier.
	GetChatID() string
	// GetWorkDir returns the working directory for tool execution.
	GetWorkDir() string
	// ReportProgress delivers a human-readable progress note from a
	// long-running tool. Safe to call with a nil-configured callback.
	ReportProgress(message string)
	// GetMetadata retrieves metadata by key
	GetMetadata(key string) (value any, ok bool)
	// SetMetadata sets metadata by key
	SetMetadata(key string, value any)
}

type chatContext struct {
	chatID     string
	workDir    string
	onProgress func(string)
	metadata   sync.Map
}

func (c *chatContext) GetChatID() string {
	return c.chatID
}

func (c *chatContext) GetWorkDir() string {
	return c.workDir
}

func (c *chatContext) ReportProgress(message string) {
	if c.onProgress != nil {
		c.onProgress(message)
	}
}

func (c *chatContext) GetMetadata(key string) (value any, ok bool) {
	return c.metadata.Load(key)
}

func (c *chatContext) SetMetadata(key string, value any) {
	c.metadata.Store(key, value)
}

// NewChatContext creates a ChatContext. An empty chatID is replaced with a
// generated one.
func NewChatContext(chatID, workDir string, onProgress func(string)) ChatContext {
	return &chatContext{
		chatID:     values.StringsCoalesce(chatID, NewChatID()),
		workDir:    workDir,
		onProgress: onProgress,
	}
}

type contextKey int

const (
	keyContext contextKey = iota
)

// WithChatContext returns a new context with ChatContext value
func WithChatContext(ctx context.Context, chatCtx ChatContext) context.Context {
	return context.WithValue(ctx, keyContext, chatCtx)
}

// GetChatContext retrieves the ChatContext from the context
func GetChatContext(ctx context.Context) ChatContext {
	if v, ok := ctx.Value(keyContext).(ChatContext); ok {
		return v
	}
	return nil
}

// GetChatID retrieves the chat ID from the provided context.
// If the context does not contain a ChatContext, it returns an empty string.
func GetChatID(ctx context.Context) string {
	if v, ok := ctx.Value(keyContext).(ChatContext); ok {
		return v.GetChatID()
	}
	return ""
}

// GetWorkDir retrieves the tool working directory from the provided context.
func GetWorkDir(ctx context.Context) string {
	if v, ok := ctx.Value(keyContext).(ChatContext); ok {
		return v.GetWorkDir()
	}
	return ""
}

// ReportProgress forwards a progress note to the ChatContext in ctx, if any.
func ReportProgress(ctx context.Context, message string) {
	if v, ok := ctx.Value(keyContext).(ChatContext); ok {
		v.ReportProgress(message)
	}
}

// NewChatID generates a new chat ID using the flake ID generator.
func NewChatID() string {
	return strconv.FormatUint(flake.DefaultIDGenerator.NextID(), 10)
}
