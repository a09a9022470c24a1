package agent

import (
	"github.com/effective-security/agentic/pkg/llms"
	"github.com/effective-security/agentic/store"
	"github.com/effective-security/agentic/streaming"
)

const (
	// DefaultMaxIterations caps the completion rounds of one run.
	DefaultMaxIterations = 10
	// DefaultMaxToolCalls caps tool executions across one run.
	DefaultMaxToolCalls = 25
	// DefaultMaxConcurrentTools bounds the tool fan-out within a round.
	DefaultMaxConcurrentTools = 4
)

// Config holds the run configuration.
type Config struct {
	// SystemPrompt is prepended to the history of every run.
	SystemPrompt string
	// MaxIterations caps the completion rounds of one run.
	MaxIterations int
	// MaxToolCalls caps tool executions across one run. Calls past the
	// ceiling receive a synthesized error result instead of being executed.
	MaxToolCalls int
	// MaxConcurrentTools bounds the number of tools running at once.
	MaxConcurrentTools int
	// EventHandler receives the normalized event stream of the run.
	EventHandler streaming.Handler
	// Callback receives lifecycle notifications.
	Callback Callback
	// Store persists conversation history; nil disables persistence.
	Store store.MessageStore
	// CallOptions are passed through to every provider call.
	CallOptions []llms.CallOption
}

// Option mutates the run configuration.
type Option func(*Config)

// NewConfig applies options over defaults.
func NewConfig(opts ...Option) *Config {
	cfg := &Config{
		MaxIterations:      DefaultMaxIterations,
		MaxToolCalls:       DefaultMaxToolCalls,
		MaxConcurrentTools: DefaultMaxConcurrentTools,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.MaxToolCalls <= 0 {
		cfg.MaxToolCalls = DefaultMaxToolCalls
	}
	if cfg.MaxConcurrentTools <= 0 {
		cfg.MaxConcurrentTools = DefaultMaxConcurrentTools
	}
	return cfg
}

// WithSystemPrompt sets the system prompt.
func WithSystemPrompt(prompt string) Option {
	return func(c *Config) {
		c.SystemPrompt = prompt
	}
}

// WithMaxIterations caps the completion rounds of one run.
func WithMaxIterations(n int) Option {
	return func(c *Config) {
		c.MaxIterations = n
	}
}

// WithMaxToolCalls caps tool executions across one run.
func WithMaxToolCalls(n int) Option {
	return func(c *Config) {
		c.MaxToolCalls = n
	}
}

// WithMaxConcurrentTools bounds the tool fan-out within a round.
func WithMaxConcurrentTools(n int) Option {
	return func(c *Config) {
		c.MaxConcurrentTools = n
	}
}

// WithEventHandler sets the normalized event handler of the run.
func WithEventHandler(h streaming.Handler) Option {
	return func(c *Config) {
		c.EventHandler = h
	}
}

// WithCallback sets the lifecycle callback.
func WithCallback(cb Callback) Option {
	return func(c *Config) {
		c.Callback = cb
	}
}

// WithStore sets the message store.
func WithStore(s store.MessageStore) Option {
	return func(c *Config) {
		c.Store = s
	}
}

// WithCallOptions appends provider call options.
func WithCallOptions(opts ...llms.CallOption) Option {
	return func(c *Config) {
		c.CallOptions = append(c.CallOptions, opts...)
	}
}
