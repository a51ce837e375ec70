package llmutils_test

import (
	"strings"
	"testing"

	"github.com/effective-security/mcpllm/pkg/llms"
	"github.com/effective-security/mcpllm/pkg/llmutils"
	"github.com/stretchr/testify/assert"
)

func history() []llms.Message {
	return []llms.Message{
		llms.MessageFromTextParts(llms.RoleUser, "find notes"),
		llms.ToolUseMessage("toolu_1", "fs__search", map[string]any{"q": "notes"}),
		llms.ToolResultMessage("toolu_1", "notes.txt", false),
		llms.MessageFromTextParts(llms.RoleAssistant, "Found notes.txt"),
	}
}

func Test_PrintMessages(t *testing.T) {
	var w strings.Builder
	llmutils.PrintMessages(&w, history())

	exp := `USER: find notes
ASSISTANT: ToolUse ID=toolu_1, Name=fs__search({"q":"notes"})
USER: ToolResult ID=toolu_1, Error=false, Content=notes.txt
ASSISTANT: Found notes.txt
`
	assert.Equal(t, exp, w.String())
}

func Test_CountMessagesContentSize(t *testing.T) {
	assert.Equal(t, uint64(0), llmutils.CountMessagesContentSize(nil))

	msgs := []llms.Message{llms.MessageFromTextParts(llms.RoleUser, "hello")}
	assert.Equal(t, uint64(len("user")+len("hello")), llmutils.CountMessagesContentSize(msgs))

	// role + text, role + id + name + args, role + id + content, role + text
	exp := 4 + 10 + 9 + 7 + 10 + 13 + 4 + 7 + 9 + 9 + 15
	assert.Equal(t, uint64(exp), llmutils.CountMessagesContentSize(history()))
}

func Test_FindLastUserQuestion(t *testing.T) {
	assert.Equal(t, "find notes", llmutils.FindLastUserQuestion(history()))
	assert.Empty(t, llmutils.FindLastUserQuestion(nil))
}

func Test_Encoders(t *testing.T) {
	val := map[string]any{"servers": []string{"fs", "web"}}
	assert.Equal(t, `{"servers":["fs","web"]}`, llmutils.ToJSON(val))
	assert.Equal(t, "{\n\t\"servers\": [\n\t\t\"fs\",\n\t\t\"web\"\n\t]\n}", llmutils.ToJSONIndent(val))
	assert.Equal(t, "servers:\n    - fs\n    - web\n", llmutils.ToYAML(val))
}

func Test_EnsureEndsWithNewline(t *testing.T) {
	assert.Equal(t, "", llmutils.EnsureEndsWithNewline("  "))
	assert.Equal(t, "hi\n", llmutils.EnsureEndsWithNewline(" hi "))
	assert.Equal(t, "hi\n", llmutils.EnsureEndsWithNewline("hi\n\n"))
}
