package llmutils

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/effective-security/mcpllm/pkg/llms"
	"github.com/effective-security/x/slices"
	"gopkg.in/yaml.v3"
)

func ToJSON(val any) string {
	js, _ := json.Marshal(val)
	return string(js)
}

func ToJSONIndent(val any) string {
	js, _ := json.MarshalIndent(val, "", "\t")
	return string(js)
}

func ToYAML(val any) string {
	js, _ := yaml.Marshal(val)
	return string(js)
}

// PrintMessages is a debugging helper for the conversation history.
func PrintMessages(w io.Writer, msgs []llms.Message) {
	for _, m := range msgs {
		fmt.Fprintf(w, "%s: ", strings.ToUpper(string(m.Role)))
		for i, p := range m.Parts {
			if i > 0 {
				fmt.Fprint(w, "  ")
			}
			switch pp := p.(type) {
			case llms.TextContent:
				fmt.Fprintln(w, pp.Text)
			case llms.ToolUse:
				fmt.Fprintf(w, "ToolUse ID=%s, Name=%s(%s)\n", pp.ID, pp.Name, ToJSON(pp.Input))
			case llms.ToolResult:
				fmt.Fprintf(w, "ToolResult ID=%s, Error=%t, Content=%s\n", pp.ToolUseID, pp.IsError, slices.StringUpto(pp.Content, 256))
			}
		}
		if len(m.Parts) == 0 {
			fmt.Fprintln(w)
		}
	}
}

// CountMessagesContentSize counts the size of the content in the messages
func CountMessagesContentSize(msgs []llms.Message) uint64 {
	var size uint64
	for _, m := range msgs {
		size += uint64(len(m.Role))
		for _, p := range m.Parts {
			switch pp := p.(type) {
			case llms.TextContent:
				size += uint64(len(pp.Text))
			case llms.ToolUse:
				size += uint64(len(pp.ID))
				size += uint64(len(pp.Name))
				size += uint64(len(ToJSON(pp.Input)))
			case llms.ToolResult:
				size += uint64(len(pp.ToolUseID))
				size += uint64(len(pp.Content))
			}
		}
	}
	return size
}

// FindLastUserQuestion returns the text of the last user message with text.
// Tool results travel as user messages and are skipped.
func FindLastUserQuestion(messages []llms.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		if msg.Role != llms.RoleUser {
			continue
		}
		for _, part := range msg.Parts {
			if textPart, ok := part.(llms.TextContent); ok {
				return textPart.Text
			}
		}
	}
	return ""
}

// EnsureEndsWithNewline ensures the message ends with a newline,
// it also removes any extra leading and trailing spaces.
func EnsureEndsWithNewline(s string) string {
	s = strings.TrimSpace(s)
	c := len(s)
	if c == 0 {
		return s
	}
	if s[c-1] != '\n' {
		return s + "\n"
	}
	return s
}
