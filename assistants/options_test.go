package assistants_test

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpllm/assistants"
	"github.com/effective-security/mcpllm/pkg/llms"
	"github.com/effective-security/mcpllm/store"
	"github.com/effective-security/mcpllm/tools"
	"github.com/stretchr/testify/assert"
)

func TestConfig_Defaults(t *testing.T) {
	t.Parallel()

	cfg := assistants.NewConfig()
	assert.Equal(t, assistants.DefaultMaxTokens, cfg.MaxTokens)
	assert.Equal(t, assistants.DefaultTemperature, cfg.Temperature)
	assert.Equal(t, assistants.DefaultMaxToolTurns, cfg.MaxToolTurns)
	assert.Empty(t, cfg.Model)
	assert.Zero(t, cfg.ToolTimeout)
	assert.Zero(t, cfg.TurnTimeout)
	assert.Nil(t, cfg.CallbackHandler)
	assert.Nil(t, cfg.Store)
}

func TestConfig_Apply(t *testing.T) {
	t.Parallel()

	st := store.NewMemoryStore()
	cb := &recorder{}
	cfg := assistants.NewConfig(
		assistants.WithModel("claude-3-7-sonnet-latest"),
		assistants.WithPromptInput(map[string]any{"user": "Ada"}),
	)
	applied := cfg.Apply(
		assistants.WithMaxTokens(100),
		assistants.WithTemperature(0.1),
		assistants.WithSystemPrompt("Be brief."),
		assistants.WithMaxToolTurns(3),
		assistants.WithToolTimeout(time.Second),
		assistants.WithTurnTimeout(time.Minute),
		assistants.WithCallback(cb),
		assistants.WithStore(st),
	)
	applied.PromptInput["user"] = "Bob"

	assert.Equal(t, "claude-3-7-sonnet-latest", applied.Model)
	assert.Equal(t, 100, applied.MaxTokens)
	assert.Equal(t, 0.1, applied.Temperature)
	assert.Equal(t, "Be brief.", applied.SystemPrompt)
	assert.Equal(t, 3, applied.MaxToolTurns)
	assert.Equal(t, time.Second, applied.ToolTimeout)
	assert.Equal(t, time.Minute, applied.TurnTimeout)
	assert.Same(t, cb, applied.CallbackHandler)
	assert.Equal(t, st, applied.Store)

	// the source config is left as is
	assert.Equal(t, assistants.DefaultMaxTokens, cfg.MaxTokens)
	assert.Equal(t, "Ada", cfg.PromptInput["user"])
	assert.Nil(t, cfg.CallbackHandler)
}

func TestConfig_GetCallOptions(t *testing.T) {
	t.Parallel()

	apply := func(opts []llms.CallOption) llms.CallOptions {
		var o llms.CallOptions
		for _, opt := range opts {
			opt(&o)
		}
		return o
	}

	o := apply(assistants.NewConfig(assistants.WithMaxTokens(0)).GetCallOptions("", nil))
	assert.Equal(t, llms.CallOptions{Temperature: assistants.DefaultTemperature}, o)

	catalog := []llms.Tool{{Name: "fs__search"}}
	o = apply(assistants.NewConfig(assistants.WithModel("m")).GetCallOptions("sys", catalog))
	assert.Equal(t, llms.CallOptions{
		Model:        "m",
		MaxTokens:    assistants.DefaultMaxTokens,
		Temperature:  assistants.DefaultTemperature,
		SystemPrompt: "sys",
		Tools:        catalog,
	}, o)
}

func TestToolResultDelimiter(t *testing.T) {
	t.Parallel()

	tcases := []struct {
		out *tools.Outcome
		exp string
	}{
		{out: &tools.Outcome{Text: "3 files"}, exp: "\n[Tool result: 3 files]\n"},
		{out: &tools.Outcome{}, exp: "\n[Tool result: Tool executed successfully]\n"},
		{out: &tools.Outcome{Text: "disk is full", IsError: true}, exp: "\n[Tool result: Error: disk is full]\n"},
		{out: &tools.Outcome{IsError: true}, exp: "\n[Tool result: Error: ]\n"},
	}
	for _, tc := range tcases {
		assert.Equal(t, tc.exp, assistants.ToolResultDelimiter(tc.out))
	}

	assert.Equal(t, "3 files", assistants.ToolResultText(&tools.Outcome{Text: "3 files"}))
	assert.Equal(t, assistants.ToolSuccessText, assistants.ToolResultText(&tools.Outcome{}))
	assert.Equal(t, "denied", assistants.ToolResultText(&tools.Outcome{Text: "denied", IsError: true}))

	assert.Equal(t, "\n[Error executing tool fs__read: broken pipe]\n",
		assistants.ToolErrorDelimiter("fs__read", errors.New("broken pipe")))
}
