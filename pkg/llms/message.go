package llms

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrUnexpectedRole is returned when a message role is of an unexpected type.
var ErrUnexpectedRole = errors.New("unexpected role")

// Role is the type of chat message.
type Role string

const (
	// RoleUser is a message sent by the user, tool results travel with this role.
	RoleUser Role = "user"
	// RoleAssistant is a message produced by the model.
	RoleAssistant Role = "assistant"
)

// Message is one conversational turn: a role and ordered content parts.
// The order of parts, and of messages in a history, is the order
// in which they are re-sent to the model.
type Message struct {
	Role  Role          `json:"role"`
	Parts []ContentPart `json:"parts"`
}

// ContentPart is an interface all parts of content have to implement.
type ContentPart interface {
	isPart()
}

// TextContent is content with some text.
type TextContent struct {
	Text string `json:"text"`
}

func (tc TextContent) String() string {
	return tc.Text
}

func (TextContent) isPart() {}

// ToolUse is a tool invocation requested by the model.
type ToolUse struct {
	// ID is the invocation id assigned by the model provider.
	ID string `json:"id"`
	// Name is the namespaced tool id.
	Name string `json:"name"`
	// Input is the argument object.
	Input map[string]any `json:"input"`
}

func (tu ToolUse) String() string {
	return fmt.Sprintf("ToolUse: %s (%s)", tu.ID, tu.Name)
}

func (ToolUse) isPart() {}

// ToolResult is the outcome of a tool invocation, keyed by the invocation id.
type ToolResult struct {
	// ToolUseID is the id of the ToolUse this result answers.
	ToolUseID string `json:"tool_use_id"`
	// Content is the textual result.
	Content string `json:"content"`
	// IsError is set when the tool or its resolution failed.
	IsError bool `json:"is_error,omitempty"`
}

func (tr ToolResult) String() string {
	return fmt.Sprintf("ToolResult: %s, error: %t, size: %d", tr.ToolUseID, tr.IsError, len(tr.Content))
}

func (ToolResult) isPart() {}

// TextPart creates TextContent from a given string.
func TextPart(s string) TextContent {
	return TextContent{Text: s}
}

// MessageFromParts is a helper function to create a Message with a role and a
// list of parts.
func MessageFromParts(role Role, parts ...ContentPart) Message {
	return Message{
		Role:  role,
		Parts: parts,
	}
}

// MessageFromTextParts is a helper function to create a Message with a role and a
// list of text parts.
func MessageFromTextParts(role Role, parts ...string) Message {
	result := Message{
		Role:  role,
		Parts: make([]ContentPart, 0, len(parts)),
	}
	for _, part := range parts {
		result.Parts = append(result.Parts, TextPart(part))
	}
	return result
}

// ToolUseMessage returns the assistant message carrying a tool-use request.
func ToolUseMessage(id, name string, input map[string]any) Message {
	if input == nil {
		input = map[string]any{}
	}
	return MessageFromParts(RoleAssistant, ToolUse{ID: id, Name: name, Input: input})
}

// ToolResultMessage returns the user message carrying a tool result.
func ToolResultMessage(toolUseID, content string, isError bool) Message {
	return MessageFromParts(RoleUser, ToolResult{ToolUseID: toolUseID, Content: content, IsError: isError})
}

// GetContent returns the concatenated text of the message.
func (m Message) GetContent() string {
	var sb strings.Builder
	for _, part := range m.Parts {
		if tc, ok := part.(TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}
	return sb.String()
}

// ToolUseNames returns the map of invocation id to tool name found in the history.
// Providers that key tool results by name instead of id use it.
func ToolUseNames(messages []Message) map[string]string {
	names := map[string]string{}
	for _, m := range messages {
		for _, part := range m.Parts {
			if tu, ok := part.(ToolUse); ok {
				names[tu.ID] = tu.Name
			}
		}
	}
	return names
}
