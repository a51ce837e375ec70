package llms

//go:generate mockgen -source=llms.go -destination=../../mocks/mockllms/llms_mock.gen.go -package mockllms

import (
	"context"
)

// ProviderType is the type of provider.
type ProviderType string

const (
	// ProviderAnthropic is the Anthropic Messages API.
	ProviderAnthropic ProviderType = "ANTHROPIC"
	// ProviderBedrock is AWS Bedrock with Anthropic models.
	ProviderBedrock ProviderType = "BEDROCK"
	// ProviderGoogleAI is the Gemini API.
	ProviderGoogleAI ProviderType = "GOOGLEAI"
	// ProviderOpenAI is the OpenAI chat completions API, or a compatible server.
	ProviderOpenAI ProviderType = "OPENAI"
)

// Model is the model-provider collaborator.
type Model interface {
	// GetName returns the default model name.
	GetName() string
	// GetProviderType returns the type of provider.
	GetProviderType() ProviderType
	// StreamCompletion sends the history and tool catalog to the model
	// and returns the ordered events of one turn.
	// The returned stream must be fully consumed or closed by the caller.
	StreamCompletion(ctx context.Context, messages []Message, options ...CallOption) (EventStream, error)
}

// Capability is a bitmask indicating supported features of an LLM provider.
type Capability uint64

const (
	// CapabilityText is basic text or chat generation
	CapabilityText Capability = 1 << iota
	// CapabilityFunctionCalling is tool calling
	CapabilityFunctionCalling
	// CapabilityToolCallStreaming means tool arguments arrive as JSON fragments
	CapabilityToolCallStreaming
	// CapabilitySystemPrompt is system prompt support
	CapabilitySystemPrompt
)

var providerCapabilities = map[ProviderType]Capability{
	ProviderAnthropic: CapabilityText |
		CapabilityFunctionCalling |
		CapabilityToolCallStreaming |
		CapabilitySystemPrompt,

	// Use Bedrock with Anthropic models
	ProviderBedrock: CapabilityText |
		CapabilityFunctionCalling |
		CapabilityToolCallStreaming |
		CapabilitySystemPrompt,

	// Gemini returns complete function calls, the adapter re-emits them as one fragment
	ProviderGoogleAI: CapabilityText |
		CapabilityFunctionCalling |
		CapabilitySystemPrompt,

	ProviderOpenAI: CapabilityText |
		CapabilityFunctionCalling |
		CapabilityToolCallStreaming |
		CapabilitySystemPrompt,
}

// ProviderCapabilities returns the capabilities of the provider type.
func ProviderCapabilities(pt ProviderType) Capability {
	return providerCapabilities[pt]
}

// Supports returns true if the provider supports the capability.
func (p ProviderType) Supports(cap Capability) bool {
	return ProviderCapabilities(p)&cap != 0
}
