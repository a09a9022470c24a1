package llms

import (
	"context"
)

//go:generate mockgen -source=llms.go -destination=../../mocks/mockllms/llms_mock.gen.go -package mockllms

// ProviderType is the type of provider.
type ProviderType string

const (
	// ProviderAnthropic is the type of provider.
	ProviderAnthropic ProviderType = "ANTHROPIC"
	// ProviderAzure is the type of provider.
	ProviderAzure ProviderType = "AZURE"
	// ProviderOpenAI is the type of provider.
	ProviderOpenAI ProviderType = "OPENAI"
	// ProviderSelfHosted is an OpenAI-compatible self-hosted endpoint,
	// e.g. vLLM or llama.cpp serving an open-weight model.
	ProviderSelfHosted ProviderType = "SELF_HOSTED"
)

// Model is an interface implemented by chat model providers.
type Model interface {
	// GetName returns the configured model name.
	GetName() string
	// GetProviderType returns the type of provider.
	GetProviderType() ProviderType
	// GenerateContent asks the model to generate content from a sequence of
	// messages. It's the most general interface for chat-like interactions.
	GenerateContent(ctx context.Context, messages []Message, options ...CallOption) (*ContentResponse, error)
	// StreamContent is like GenerateContent, but invokes fn for every
	// provider-native chunk as it arrives. The final aggregated response is
	// returned once the stream completes.
	StreamContent(ctx context.Context, messages []Message, fn StreamFunc, options ...CallOption) (*ContentResponse, error)
	// ListModels returns the model identifiers available from the provider.
	ListModels(ctx context.Context) ([]string, error)
	// HealthCheck reports whether the provider endpoint is reachable.
	HealthCheck(ctx context.Context) bool
}

// Capability is a bitmask indicating supported features of an LLM provider.
type Capability uint64

const (
	// Basic text or chat generation
	CapabilityText Capability = 1 << iota

	// Function/tool calling
	CapabilityFunctionCalling
	CapabilityMultiToolCalling
	CapabilityToolCallStreaming

	// System prompt support
	CapabilitySystemPrompt

	// Open weight models / self-hosted
	CapabilitySelfHosted
)

var providerCapabilities = map[ProviderType]Capability{
	ProviderOpenAI: CapabilityText |
		CapabilityFunctionCalling |
		CapabilityMultiToolCalling |
		CapabilityToolCallStreaming |
		CapabilitySystemPrompt,

	ProviderAzure: CapabilityText |
		CapabilityFunctionCalling |
		CapabilityMultiToolCalling |
		CapabilityToolCallStreaming |
		CapabilitySystemPrompt,

	ProviderAnthropic: CapabilityText |
		CapabilityFunctionCalling |
		CapabilityMultiToolCalling |
		CapabilityToolCallStreaming |
		CapabilitySystemPrompt,

	// Self-hosted endpoints speak the OpenAI wire format, but some models
	// emit tool calls as inline sentinel markers in the text channel
	// instead of structured deltas. The stream normalizer detects that by
	// content, so no capability flag is needed for it.
	ProviderSelfHosted: CapabilityText |
		CapabilityFunctionCalling |
		CapabilityMultiToolCalling |
		CapabilitySystemPrompt |
		CapabilitySelfHosted,
}

func ProviderCapabilities(pt ProviderType) Capability {
	return providerCapabilities[pt]
}

func (p ProviderType) Supports(cap Capability) bool {
	return ProviderCapabilities(p)&cap != 0
}
