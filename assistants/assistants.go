package assistants

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpllm/pkg/llms"
	"github.com/effective-security/mcpllm/streaming"
	"github.com/effective-security/mcpllm/tools"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpllm", "assistants")

// ErrTooManyToolTurns is returned when the model keeps requesting tools
// beyond the configured limit.
var ErrTooManyToolTurns = errors.New("too many tool turns")

// ToolSuccessText replaces the empty text of a successful tool result.
const ToolSuccessText = "Tool executed successfully"

// IAssistant is the conversation loop as seen by callbacks.
type IAssistant interface {
	// Name returns the name of the Assistant.
	Name() string
	// Model returns the model collaborator.
	Model() llms.Model
}

// Callback observes the conversation loop.
type Callback interface {
	tools.Callback
	OnAssistantStart(ctx context.Context, agent IAssistant, input string)
	OnAssistantEnd(ctx context.Context, agent IAssistant, input string, resp *Response)
	OnAssistantError(ctx context.Context, agent IAssistant, input string, err error, messages []llms.Message)
	OnAssistantLLMCallStart(ctx context.Context, agent IAssistant, llm llms.Model, payload []llms.Message)
	OnAssistantLLMCallEnd(ctx context.Context, agent IAssistant, llm llms.Model, turn *streaming.Turn)
	OnToolNotFound(ctx context.Context, agent IAssistant, tool string)
}

// ToolResultText returns the tool result content sent back to the model.
func ToolResultText(out *tools.Outcome) string {
	if out.Text == "" && !out.IsError {
		return ToolSuccessText
	}
	return out.Text
}

// ToolResultDelimiter returns the chunk emitted after a tool invocation.
func ToolResultDelimiter(out *tools.Outcome) string {
	text := ToolResultText(out)
	if out.IsError {
		text = "Error: " + text
	}
	return fmt.Sprintf("\n[Tool result: %s]\n", text)
}

// ToolErrorDelimiter returns the chunk emitted when a tool call could not be performed.
func ToolErrorDelimiter(tool string, err error) string {
	return fmt.Sprintf("\n[Error executing tool %s: %s]\n", tool, err.Error())
}
