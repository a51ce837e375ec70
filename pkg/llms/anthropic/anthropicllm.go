package anthropic

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpllm/pkg/llms"
	"github.com/effective-security/x/values"
)

var (
	ErrMissingToken           = errors.New("anthropic: missing API key, set it in the ANTHROPIC_API_KEY environment variable")
	ErrUnsupportedMessageType = errors.New("anthropic: unsupported message type")
	ErrUnsupportedContentType = errors.New("anthropic: unsupported content type")
)

const (
	DefaultMaxTokens = 4096
)

type LLM struct {
	Client  *anthropic.Client
	Options *Options
}

var _ llms.Model = (*LLM)(nil)

// New creates a new Anthropic LLM client using the official Anthropic SDK.
//
// If no token is provided via options, it will attempt to read the API key
// from the ANTHROPIC_API_KEY environment variable.
//
// Example usage:
//
//	llm, err := anthropic.New(
//	    anthropic.WithToken("your-api-key"),
//	    anthropic.WithModel("claude-3-7-sonnet-latest"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	stream, err := llm.StreamCompletion(ctx, messages)
func New(opts ...Option) (*LLM, error) {
	options := &Options{
		Token:      os.Getenv(TokenEnvVarName),
		BaseURL:    "https://api.anthropic.com",
		HttpClient: http.DefaultClient,
	}

	for _, opt := range opts {
		opt(options)
	}

	if len(options.Token) == 0 {
		return nil, ErrMissingToken
	}
	if options.Model == "" {
		return nil, errors.New("anthropic: model is required")
	}

	return &LLM{
		Client:  newClient(options),
		Options: options,
	}, nil
}

func newClient(options *Options) *anthropic.Client {
	sdkOpts := []option.RequestOption{
		option.WithAPIKey(options.Token),
		option.WithMaxRetries(options.MaxRetries),
		option.WithRequestTimeout(5 * time.Minute),
	}

	if options.BaseURL != "" {
		sdkOpts = append(sdkOpts, option.WithBaseURL(options.BaseURL))
	}

	if options.HttpClient != nil {
		sdkOpts = append(sdkOpts, option.WithHTTPClient(options.HttpClient))
	}

	if options.AnthropicBetaHeader != "" {
		sdkOpts = append(sdkOpts, option.WithHeader("anthropic-beta", options.AnthropicBetaHeader))
	}

	client := anthropic.NewClient(sdkOpts...)
	return &client
}

// GetName implements the Model interface.
func (o *LLM) GetName() string {
	return o.Options.Model
}

// GetProviderType implements the Model interface.
func (o *LLM) GetProviderType() llms.ProviderType {
	return llms.ProviderAnthropic
}

// StreamCompletion implements the Model interface.
// Request failures are reported by Err of the returned stream.
func (o *LLM) StreamCompletion(ctx context.Context, messages []llms.Message, options ...llms.CallOption) (llms.EventStream, error) {
	opts := llms.CallOptions{
		Model: o.Options.Model,
	}
	for _, opt := range options {
		opt(&opts)
	}

	params, err := NewMessageParams(messages, &opts)
	if err != nil {
		return nil, err
	}
	return NewEventStream(o.Client.Messages.NewStreaming(ctx, params)), nil
}

// NewMessageParams builds the request of a turn.
func NewMessageParams(messages []llms.Message, opts *llms.CallOptions) (anthropic.MessageNewParams, error) {
	sdkMessages, err := ProcessMessages(messages)
	if err != nil {
		return anthropic.MessageNewParams{}, errors.WithMessage(err, "anthropic: failed to process messages")
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(opts.Model),
		Messages:    sdkMessages,
		MaxTokens:   values.NumbersCoalesce(int64(opts.MaxTokens), DefaultMaxTokens),
		Temperature: anthropic.Float(opts.Temperature),
	}

	if opts.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{
			{
				Type: "text",
				Text: opts.SystemPrompt,
			},
		}
	}

	if tools := ToTools(opts.Tools); len(tools) > 0 {
		params.Tools = tools
	}
	return params, nil
}

// EventStream adapts the SDK message stream to llms.EventStream.
type EventStream struct {
	stream *ssestream.Stream[anthropic.MessageStreamEventUnion]
}

// NewEventStream returns the adapter over the SDK stream.
func NewEventStream(stream *ssestream.Stream[anthropic.MessageStreamEventUnion]) *EventStream {
	return &EventStream{stream: stream}
}

// Next implements llms.EventStream.
func (s *EventStream) Next() bool {
	return s.stream.Next()
}

// Current implements llms.EventStream.
func (s *EventStream) Current() llms.Event {
	return ConvertEvent(s.stream.Current())
}

// Err implements llms.EventStream.
func (s *EventStream) Err() error {
	if err := s.stream.Err(); err != nil {
		return errors.Wrap(err, "anthropic: streaming error")
	}
	return nil
}

// Close implements llms.EventStream.
func (s *EventStream) Close() error {
	return s.stream.Close()
}

// ConvertEvent translates an SDK stream event,
// anything not modeled by llms.Event becomes llms.Unknown.
func ConvertEvent(ev anthropic.MessageStreamEventUnion) llms.Event {
	switch evt := ev.AsAny().(type) {
	case anthropic.MessageStartEvent:
		return llms.MessageStart{
			ID:          evt.Message.ID,
			Model:       string(evt.Message.Model),
			InputTokens: evt.Message.Usage.InputTokens,
		}
	case anthropic.ContentBlockStartEvent:
		switch block := evt.ContentBlock.AsAny().(type) {
		case anthropic.TextBlock:
			return llms.BlockStart{Index: evt.Index, Kind: llms.BlockText}
		case anthropic.ToolUseBlock:
			return llms.BlockStart{
				Index:     evt.Index,
				Kind:      llms.BlockToolUse,
				ToolName:  block.Name,
				ToolUseID: block.ID,
			}
		}
		return llms.BlockStart{Index: evt.Index, Kind: llms.BlockKind(evt.ContentBlock.Type)}
	case anthropic.ContentBlockDeltaEvent:
		switch delta := evt.Delta.AsAny().(type) {
		case anthropic.TextDelta:
			return llms.BlockDelta{Index: evt.Index, Kind: llms.DeltaText, Text: delta.Text}
		case anthropic.InputJSONDelta:
			return llms.BlockDelta{Index: evt.Index, Kind: llms.DeltaJSON, PartialJSON: delta.PartialJSON}
		}
		return llms.Unknown{Type: ev.Type + "/" + evt.Delta.Type}
	case anthropic.ContentBlockStopEvent:
		return llms.BlockStop{Index: evt.Index}
	case anthropic.MessageDeltaEvent:
		return llms.MessageDelta{
			StopReason:   string(evt.Delta.StopReason),
			OutputTokens: evt.Usage.OutputTokens,
		}
	case anthropic.MessageStopEvent:
		return llms.MessageStop{}
	}
	return llms.Unknown{Type: ev.Type}
}

// ToTools converts the tool catalog to Anthropic SDK tool parameters.
// Schema keywords other than properties and required are passed through as is.
func ToTools(tools []llms.Tool) []anthropic.ToolUnionParam {
	if len(tools) == 0 {
		return nil
	}

	sdkTools := make([]anthropic.ToolUnionParam, len(tools))
	for i, tool := range tools {
		inputSchema := anthropic.ToolInputSchemaParam{
			Properties: tool.Properties(),
			Required:   tool.Required(),
		}
		for k, v := range tool.InputSchema {
			switch k {
			case "type", "properties", "required":
			default:
				if inputSchema.ExtraFields == nil {
					inputSchema.ExtraFields = map[string]any{}
				}
				inputSchema.ExtraFields[k] = v
			}
		}

		sdkTools[i] = anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        tool.Name,
				Description: anthropic.String(tool.Description),
				InputSchema: inputSchema,
			},
		}
	}
	return sdkTools
}

// ProcessMessages converts the history to Anthropic SDK message parameters.
// Tool results travel as tool_result blocks of user messages,
// tool requests as tool_use blocks of assistant messages.
func ProcessMessages(messages []llms.Message) ([]anthropic.MessageParam, error) {
	chatMessages := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		if len(msg.Parts) == 0 {
			continue
		}
		contents, err := contentBlocks(msg)
		if err != nil {
			return nil, err
		}
		switch msg.Role {
		case llms.RoleUser:
			chatMessages = append(chatMessages, anthropic.NewUserMessage(contents...))
		case llms.RoleAssistant:
			chatMessages = append(chatMessages, anthropic.NewAssistantMessage(contents...))
		default:
			return nil, errors.WithMessagef(ErrUnsupportedMessageType, "anthropic: %v", msg.Role)
		}
	}
	return chatMessages, nil
}

func contentBlocks(msg llms.Message) ([]anthropic.ContentBlockParamUnion, error) {
	contents := make([]anthropic.ContentBlockParamUnion, 0, len(msg.Parts))
	for _, part := range msg.Parts {
		switch p := part.(type) {
		case llms.TextContent:
			contents = append(contents, anthropic.NewTextBlock(p.Text))
		case llms.ToolUse:
			if msg.Role != llms.RoleAssistant {
				return nil, errors.WithMessagef(ErrUnsupportedContentType, "anthropic: tool use in %s message", msg.Role)
			}
			input := p.Input
			if input == nil {
				input = map[string]any{}
			}
			contents = append(contents, anthropic.NewToolUseBlock(p.ID, input, p.Name))
		case llms.ToolResult:
			if msg.Role != llms.RoleUser {
				return nil, errors.WithMessagef(ErrUnsupportedContentType, "anthropic: tool result in %s message", msg.Role)
			}
			contents = append(contents, anthropic.NewToolResultBlock(p.ToolUseID, p.Content, p.IsError))
		default:
			return nil, errors.WithMessagef(ErrUnsupportedContentType, "anthropic: %T", part)
		}
	}
	return contents, nil
}
