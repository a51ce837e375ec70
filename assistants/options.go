package assistants

import (
	"maps"
	"time"

	"github.com/effective-security/mcpllm/pkg/llms"
	"github.com/effective-security/mcpllm/store"
)

// Defaults
const (
	DefaultMaxTokens    = 4096
	DefaultTemperature  = 0.7
	DefaultMaxToolTurns = 25
)

// Option is a function that can be used to modify the behavior of the Assistant Config.
type Option func(*Config)

// Config of the conversation loop.
type Config struct {
	// Model is the model to use in an LLM call, empty for the model default.
	Model string
	// MaxTokens is the maximum number of tokens to generate per turn.
	MaxTokens int
	// Temperature is the temperature for sampling, between 0 and 1.
	Temperature float64
	// SystemPrompt is a template rendered with the connected servers and tools,
	// see prompts.PromptTemplate.
	SystemPrompt string
	// PromptInput is extra input for the system prompt template.
	PromptInput map[string]any

	// MaxToolTurns bounds the tool invocations of one response.
	MaxToolTurns int
	// ToolTimeout bounds each tool call, zero for no deadline.
	ToolTimeout time.Duration
	// TurnTimeout bounds each model turn, zero for no deadline.
	TurnTimeout time.Duration

	// CallbackHandler is the callback handler
	CallbackHandler Callback
	// Store keeps the chat history between queries, nil for a fresh history per query.
	Store store.MessageStore
}

// NewConfig returns the config with defaults and the options applied.
func NewConfig(opts ...Option) *Config {
	cfg := &Config{
		MaxTokens:    DefaultMaxTokens,
		Temperature:  DefaultTemperature,
		MaxToolTurns: DefaultMaxToolTurns,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Apply returns a copy of the config with the options applied.
func (c *Config) Apply(opts ...Option) *Config {
	cfg := *c
	cfg.PromptInput = maps.Clone(c.PromptInput)
	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// GetCallOptions returns the options of a model call.
func (c *Config) GetCallOptions(systemPrompt string, tools []llms.Tool) []llms.CallOption {
	var opts []llms.CallOption
	if c.Model != "" {
		opts = append(opts, llms.WithModel(c.Model))
	}
	if c.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(c.MaxTokens))
	}
	opts = append(opts, llms.WithTemperature(c.Temperature))
	if systemPrompt != "" {
		opts = append(opts, llms.WithSystemPrompt(systemPrompt))
	}
	if len(tools) > 0 {
		opts = append(opts, llms.WithTools(tools))
	}
	return opts
}

// WithModel is an option for LLM.Call.
func WithModel(model string) Option {
	return func(o *Config) {
		o.Model = model
	}
}

// WithMaxTokens is an option for LLM.Call.
func WithMaxTokens(maxTokens int) Option {
	return func(o *Config) {
		o.MaxTokens = maxTokens
	}
}

// WithTemperature is an option for LLM.Call.
func WithTemperature(temperature float64) Option {
	return func(o *Config) {
		o.Temperature = temperature
	}
}

// WithSystemPrompt sets the system prompt template.
func WithSystemPrompt(prompt string) Option {
	return func(o *Config) {
		o.SystemPrompt = prompt
	}
}

// WithPromptInput is an option that allows the user to specify the system prompt input.
func WithPromptInput(input map[string]any) Option {
	return func(o *Config) {
		o.PromptInput = input
	}
}

// WithMaxToolTurns sets the limit of tool invocations per response.
func WithMaxToolTurns(n int) Option {
	return func(o *Config) {
		o.MaxToolTurns = n
	}
}

// WithToolTimeout sets the deadline of each tool call.
func WithToolTimeout(d time.Duration) Option {
	return func(o *Config) {
		o.ToolTimeout = d
	}
}

// WithTurnTimeout sets the deadline of each model turn.
func WithTurnTimeout(d time.Duration) Option {
	return func(o *Config) {
		o.TurnTimeout = d
	}
}

// WithCallback allows setting a custom Callback Handler.
func WithCallback(callbackHandler Callback) Option {
	return func(o *Config) {
		o.CallbackHandler = callbackHandler
	}
}

// WithStore sets the message store.
func WithStore(s store.MessageStore) Option {
	return func(o *Config) {
		o.Store = s
	}
}
