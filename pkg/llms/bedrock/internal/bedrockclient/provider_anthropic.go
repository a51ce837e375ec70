package bedrockclient

import (
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpllm/pkg/llms"
	"github.com/effective-security/x/values"
)

// Ref: https://docs.aws.amazon.com/bedrock/latest/userguide/model-parameters-anthropic-claude-messages.html
// Also: https://docs.anthropic.com/claude/reference/messages_post

// anthropicTextGenerationInputContent is a single content block of a message.
type anthropicTextGenerationInputContent struct {
	// The type of the content. Required.
	// One of: "text", "tool_use", "tool_result"
	Type string `json:"type"`
	// The text content. Required if type is "text"
	Text string `json:"text,omitempty"`
	// Tool use fields
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Input any    `json:"input,omitempty"`
	// Tool result fields
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

type anthropicTextGenerationInputMessage struct {
	// One of: ["user", "assistant"]
	Role    string                                `json:"role"`
	Content []anthropicTextGenerationInputContent `json:"content"`
}

// anthropicTool represents a tool that can be used by the model
type anthropicTool struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	InputSchema anthropicInputSchema `json:"input_schema"`
}

// anthropicInputSchema represents the JSON schema for tool input
type anthropicInputSchema struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties,omitempty"`
	Required   []string       `json:"required,omitempty"`
}

// anthropicTextGenerationInput is the body of the invocation.
type anthropicTextGenerationInput struct {
	AnthropicVersion string                                 `json:"anthropic_version"`
	MaxTokens        int                                    `json:"max_tokens"`
	System           string                                 `json:"system,omitempty"`
	Messages         []*anthropicTextGenerationInputMessage `json:"messages"`
	// The amount of randomness injected into the response. Optional, default = 1
	Temperature float64         `json:"temperature,omitempty"`
	Tools       []anthropicTool `json:"tools,omitempty"`
}

const (
	AnthropicLatestVersion = "bedrock-2023-05-31"
	AnthropicMaxTokens     = 2048
)

// Role attribute for the anthropic message.
const (
	AnthropicRoleUser      = "user"
	AnthropicRoleAssistant = "assistant"
)

// Type attribute for the anthropic message.
const (
	AnthropicMessageTypeText       = "text"
	AnthropicMessageTypeToolUse    = "tool_use"
	AnthropicMessageTypeToolResult = "tool_result"
)

func newAnthropicStreamInput(modelID string, messages []llms.Message, options llms.CallOptions) (*bedrockruntime.InvokeModelWithResponseStreamInput, error) {
	inputContents, err := processInputMessagesAnthropic(messages)
	if err != nil {
		return nil, err
	}

	var tools []anthropicTool
	if len(options.Tools) > 0 {
		tools = make([]anthropicTool, len(options.Tools))
		for i, tool := range options.Tools {
			tools[i] = anthropicTool{
				Name:        tool.Name,
				Description: tool.Description,
				InputSchema: anthropicInputSchema{
					Type:       "object",
					Properties: tool.Properties(),
					Required:   tool.Required(),
				},
			}
		}
	}

	input := anthropicTextGenerationInput{
		AnthropicVersion: AnthropicLatestVersion,
		MaxTokens:        values.NumbersCoalesce(options.MaxTokens, AnthropicMaxTokens),
		System:           options.SystemPrompt,
		Messages:         inputContents,
		Temperature:      options.Temperature,
		Tools:            tools,
	}

	body, err := json.Marshal(input)
	if err != nil {
		return nil, errors.Wrap(err, "bedrock: failed to encode request")
	}

	return &bedrockruntime.InvokeModelWithResponseStreamInput{
		ModelId:     aws.String(modelID),
		Accept:      aws.String("*/*"),
		ContentType: aws.String("application/json"),
		Body:        body,
	}, nil
}

// processInputMessagesAnthropic converts the history,
// consecutive messages of the same role are merged into one.
func processInputMessagesAnthropic(messages []llms.Message) ([]*anthropicTextGenerationInputMessage, error) {
	inputContents := make([]*anthropicTextGenerationInputMessage, 0, len(messages))
	var last *anthropicTextGenerationInputMessage
	for _, message := range messages {
		if len(message.Parts) == 0 {
			continue
		}
		role, err := getAnthropicRole(message.Role)
		if err != nil {
			return nil, err
		}
		if last == nil || last.Role != role {
			last = &anthropicTextGenerationInputMessage{Role: role}
			inputContents = append(inputContents, last)
		}
		for _, part := range message.Parts {
			c, err := getAnthropicInputContent(part)
			if err != nil {
				return nil, err
			}
			last.Content = append(last.Content, c)
		}
	}
	return inputContents, nil
}

func getAnthropicRole(role llms.Role) (string, error) {
	switch role {
	case llms.RoleAssistant:
		return AnthropicRoleAssistant, nil
	case llms.RoleUser:
		return AnthropicRoleUser, nil
	default:
		return "", errors.Newf("bedrock: role not supported: %s", role)
	}
}

func getAnthropicInputContent(part llms.ContentPart) (anthropicTextGenerationInputContent, error) {
	switch p := part.(type) {
	case llms.TextContent:
		return anthropicTextGenerationInputContent{
			Type: AnthropicMessageTypeText,
			Text: p.Text,
		}, nil
	case llms.ToolUse:
		input := p.Input
		if input == nil {
			input = map[string]any{}
		}
		return anthropicTextGenerationInputContent{
			Type:  AnthropicMessageTypeToolUse,
			ID:    p.ID,
			Name:  p.Name,
			Input: input,
		}, nil
	case llms.ToolResult:
		return anthropicTextGenerationInputContent{
			Type:      AnthropicMessageTypeToolResult,
			ToolUseID: p.ToolUseID,
			Content:   p.Content,
			IsError:   p.IsError,
		}, nil
	}
	return anthropicTextGenerationInputContent{}, errors.Newf("bedrock: unsupported content type %T", part)
}
