// Package openai provides the model-provider collaborator over the
// OpenAI chat completions streaming API.
package openai

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpllm/pkg/llms"
	"github.com/effective-security/xlog"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpllm", "openai")

var (
	ErrMissingToken           = errors.New("openai: missing API key, set it in the OPENAI_API_KEY environment variable")
	ErrUnsupportedContentType = errors.New("openai: unsupported content type")
)

// ErrorPrefix marks the content of a failed tool result,
// chat completions have no error flag for tool messages.
const ErrorPrefix = "Error: "

type LLM struct {
	client openai.Client
	model  string
}

var _ llms.Model = (*LLM)(nil)

// New returns a new OpenAI LLM.
func New(opts ...Option) (*LLM, error) {
	o := &options{
		token:        os.Getenv(TokenEnvVarName),
		model:        os.Getenv(modelEnvVarName),
		baseURL:      os.Getenv(baseURLEnvVarName),
		organization: os.Getenv(organizationEnvVarName),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.token == "" {
		return nil, ErrMissingToken
	}
	if o.model == "" {
		return nil, errors.New("openai: model is required")
	}

	sdkOpts := []option.RequestOption{
		option.WithAPIKey(o.token),
		option.WithMaxRetries(o.maxRetries),
		option.WithRequestTimeout(5 * time.Minute),
	}
	if o.baseURL != "" {
		sdkOpts = append(sdkOpts, option.WithBaseURL(o.baseURL))
	}
	if o.organization != "" {
		sdkOpts = append(sdkOpts, option.WithOrganization(o.organization))
	}
	if o.httpClient != nil {
		sdkOpts = append(sdkOpts, option.WithHTTPClient(o.httpClient))
	}

	return &LLM{
		client: openai.NewClient(sdkOpts...),
		model:  o.model,
	}, nil
}

// GetName implements the Model interface.
func (o *LLM) GetName() string {
	return o.model
}

// GetProviderType implements the Model interface.
func (o *LLM) GetProviderType() llms.ProviderType {
	return llms.ProviderOpenAI
}

// StreamCompletion implements the Model interface.
// Request failures are reported by Err of the returned stream.
func (o *LLM) StreamCompletion(ctx context.Context, messages []llms.Message, options ...llms.CallOption) (llms.EventStream, error) {
	opts := llms.CallOptions{
		Model: o.model,
	}
	for _, opt := range options {
		opt(&opts)
	}

	params, err := NewChatParams(messages, &opts)
	if err != nil {
		return nil, err
	}
	return NewEventStream(o.client.Chat.Completions.NewStreaming(ctx, params)), nil
}

// NewChatParams returns the request of the turn.
func NewChatParams(messages []llms.Message, opts *llms.CallOptions) (openai.ChatCompletionNewParams, error) {
	msgs, err := ConvertMessages(messages)
	if err != nil {
		return openai.ChatCompletionNewParams{}, err
	}
	if opts.SystemPrompt != "" {
		msgs = append([]openai.ChatCompletionMessageParamUnion{openai.SystemMessage(opts.SystemPrompt)}, msgs...)
	}

	params := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(opts.Model),
		Messages:    msgs,
		Temperature: openai.Float(opts.Temperature),
		StreamOptions: openai.ChatCompletionStreamOptionsParam{
			IncludeUsage: openai.Bool(true),
		},
		Tools: ToTools(opts.Tools),
	}
	if opts.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(opts.MaxTokens))
	}
	return params, nil
}

// ToTools returns the function tools of the catalog.
func ToTools(tools []llms.Tool) []openai.ChatCompletionToolUnionParam {
	if len(tools) == 0 {
		return nil
	}
	list := make([]openai.ChatCompletionToolUnionParam, 0, len(tools))
	for _, t := range tools {
		schema := t.InputSchema
		if schema == nil {
			schema = map[string]any{"type": "object"}
		}
		fn := shared.FunctionDefinitionParam{
			Name:       t.Name,
			Parameters: shared.FunctionParameters(schema),
		}
		if t.Description != "" {
			fn.Description = openai.String(t.Description)
		}
		list = append(list, openai.ChatCompletionFunctionTool(fn))
	}
	return list
}

// ConvertMessages returns the chat messages of the history.
// Tool results of a user message become tool messages,
// they are placed before the text of the message.
func ConvertMessages(messages []llms.Message) ([]openai.ChatCompletionMessageParamUnion, error) {
	list := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case llms.RoleUser:
			var text []string
			for _, part := range msg.Parts {
				switch p := part.(type) {
				case llms.TextContent:
					text = append(text, p.Text)
				case llms.ToolResult:
					content := p.Content
					if p.IsError {
						content = ErrorPrefix + content
					}
					list = append(list, openai.ToolMessage(content, p.ToolUseID))
				default:
					return nil, errors.Wrapf(ErrUnsupportedContentType, "%T in user message", part)
				}
			}
			if len(text) > 0 {
				list = append(list, openai.UserMessage(strings.Join(text, "\n")))
			}

		case llms.RoleAssistant:
			asst := openai.ChatCompletionAssistantMessageParam{}
			var text []string
			for _, part := range msg.Parts {
				switch p := part.(type) {
				case llms.TextContent:
					text = append(text, p.Text)
				case llms.ToolUse:
					input := p.Input
					if input == nil {
						input = map[string]any{}
					}
					args, err := json.Marshal(input)
					if err != nil {
						return nil, errors.Wrapf(err, "openai: failed to encode arguments of %s", p.Name)
					}
					asst.ToolCalls = append(asst.ToolCalls, openai.ChatCompletionMessageToolCallUnionParam{
						OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
							ID: p.ID,
							Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
								Name:      p.Name,
								Arguments: string(args),
							},
						},
					})
				default:
					return nil, errors.Wrapf(ErrUnsupportedContentType, "%T in assistant message", part)
				}
			}
			if len(text) == 0 && len(asst.ToolCalls) == 0 {
				continue
			}
			if len(text) > 0 {
				asst.Content.OfString = openai.String(strings.Join(text, "\n"))
			}
			list = append(list, openai.ChatCompletionMessageParamUnion{OfAssistant: &asst})

		default:
			return nil, errors.Wrapf(llms.ErrUnexpectedRole, "openai: %s", msg.Role)
		}
	}
	return list, nil
}
