package anthropic_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/effective-security/mcpllm/pkg/llms"
	"github.com/effective-security/mcpllm/pkg/llms/anthropic"
	"github.com/effective-security/mcpllm/streaming"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testModel = "claude-3-7-sonnet-latest"

func TestNew(t *testing.T) {
	t.Setenv(anthropic.TokenEnvVarName, "")

	tests := []struct {
		name        string
		opts        []anthropic.Option
		wantErr     bool
		errContains string
	}{
		{
			name:        "missing token",
			opts:        []anthropic.Option{anthropic.WithModel(testModel)},
			wantErr:     true,
			errContains: "missing API key",
		},
		{
			name:        "missing model",
			opts:        []anthropic.Option{anthropic.WithToken("fake-token")},
			wantErr:     true,
			errContains: "model is required",
		},
		{
			name: "valid configuration",
			opts: []anthropic.Option{
				anthropic.WithToken("fake-token"),
				anthropic.WithModel(testModel),
			},
		},
		{
			name: "with custom base URL",
			opts: []anthropic.Option{
				anthropic.WithToken("fake-token"),
				anthropic.WithModel(testModel),
				anthropic.WithBaseURL("https://custom.anthropic.com"),
			},
		},
		{
			name: "with custom HTTP client and retries",
			opts: []anthropic.Option{
				anthropic.WithToken("fake-token"),
				anthropic.WithModel(testModel),
				anthropic.WithHTTPClient(&http.Client{}),
				anthropic.WithMaxRetries(2),
			},
		},
		{
			name: "with beta header",
			opts: []anthropic.Option{
				anthropic.WithToken("fake-token"),
				anthropic.WithModel(testModel),
				anthropic.WithAnthropicBetaHeader("beta-feature-1"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			allm, err := anthropic.New(tt.opts...)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				assert.Nil(t, allm)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, allm.Client)
			assert.Equal(t, testModel, allm.GetName())
			assert.Equal(t, llms.ProviderAnthropic, allm.GetProviderType())
		})
	}
}

func TestNewWithEnvironmentVariable(t *testing.T) {
	t.Setenv(anthropic.TokenEnvVarName, "env-token")

	llm, err := anthropic.New(anthropic.WithModel(testModel))
	require.NoError(t, err)
	assert.Equal(t, "env-token", llm.Options.Token)
}

func TestProcessMessages(t *testing.T) {
	t.Parallel()

	history := []llms.Message{
		llms.MessageFromTextParts(llms.RoleUser, "list files"),
		{
			Role: llms.RoleAssistant,
			Parts: []llms.ContentPart{
				llms.TextPart("Let me check."),
				llms.ToolUse{ID: "toolu_1", Name: "fs__list", Input: map[string]any{"path": "/tmp"}},
			},
		},
		llms.ToolResultMessage("toolu_1", "a.txt\nb.txt", false),
		{Role: llms.RoleAssistant},
		llms.MessageFromTextParts(llms.RoleAssistant, "Two files."),
	}

	msgs, err := anthropic.ProcessMessages(history)
	require.NoError(t, err)
	require.Len(t, msgs, 4, "empty messages are skipped")

	assert.Equal(t, sdk.MessageParamRoleUser, msgs[0].Role)
	require.Len(t, msgs[0].Content, 1)
	require.NotNil(t, msgs[0].Content[0].OfText)
	assert.Equal(t, "list files", msgs[0].Content[0].OfText.Text)

	assert.Equal(t, sdk.MessageParamRoleAssistant, msgs[1].Role)
	require.Len(t, msgs[1].Content, 2)
	tu := msgs[1].Content[1].OfToolUse
	require.NotNil(t, tu)
	assert.Equal(t, "toolu_1", tu.ID)
	assert.Equal(t, "fs__list", tu.Name)
	assert.Equal(t, map[string]any{"path": "/tmp"}, tu.Input)

	assert.Equal(t, sdk.MessageParamRoleUser, msgs[2].Role)
	tr := msgs[2].Content[0].OfToolResult
	require.NotNil(t, tr)
	assert.Equal(t, "toolu_1", tr.ToolUseID)
	require.Len(t, tr.Content, 1)
	assert.Equal(t, "a.txt\nb.txt", tr.Content[0].OfText.Text)
	assert.False(t, tr.IsError.Value)

	assert.Equal(t, sdk.MessageParamRoleAssistant, msgs[3].Role)
}

func TestProcessMessages_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		msg  llms.Message
		exp  string
	}{
		{
			name: "unknown role",
			msg:  llms.MessageFromTextParts(llms.Role("system"), "x"),
			exp:  "unsupported message type",
		},
		{
			name: "tool use from user",
			msg:  llms.MessageFromParts(llms.RoleUser, llms.ToolUse{ID: "1", Name: "a__b"}),
			exp:  "tool use in user message",
		},
		{
			name: "tool result from assistant",
			msg:  llms.MessageFromParts(llms.RoleAssistant, llms.ToolResult{ToolUseID: "1"}),
			exp:  "tool result in assistant message",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := anthropic.ProcessMessages([]llms.Message{tt.msg})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.exp)
		})
	}
}

func TestToTools(t *testing.T) {
	t.Parallel()

	assert.Nil(t, anthropic.ToTools(nil))

	res := anthropic.ToTools([]llms.Tool{
		{
			Name:        "fs__search",
			Description: "Search files",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{"type": "string"},
				},
				"required":             []string{"query"},
				"additionalProperties": false,
			},
		},
		{Name: "clock__now"},
	})
	require.Len(t, res, 2)

	tool := res[0].OfTool
	require.NotNil(t, tool)
	assert.Equal(t, "fs__search", tool.Name)
	assert.Equal(t, "Search files", tool.Description.Value)
	assert.Equal(t, map[string]any{"query": map[string]any{"type": "string"}}, tool.InputSchema.Properties)
	assert.Equal(t, []string{"query"}, tool.InputSchema.Required)
	assert.Equal(t, map[string]any{"additionalProperties": false}, tool.InputSchema.ExtraFields)

	tool = res[1].OfTool
	require.NotNil(t, tool)
	assert.Equal(t, "clock__now", tool.Name)
	assert.Empty(t, tool.InputSchema.Required)
	assert.Nil(t, tool.InputSchema.ExtraFields)
}

func TestConvertEvent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		data string
		exp  llms.Event
	}{
		{
			data: `{"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","model":"claude-3-7-sonnet-latest","content":[],"usage":{"input_tokens":12,"output_tokens":1}}}`,
			exp:  llms.MessageStart{ID: "msg_1", Model: testModel, InputTokens: 12},
		},
		{
			data: `{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`,
			exp:  llms.BlockStart{Index: 0, Kind: llms.BlockText},
		},
		{
			data: `{"type":"content_block_start","index":1,"content_block":{"type":"tool_use","id":"toolu_1","name":"fs__list","input":{}}}`,
			exp:  llms.BlockStart{Index: 1, Kind: llms.BlockToolUse, ToolName: "fs__list", ToolUseID: "toolu_1"},
		},
		{
			data: `{"type":"content_block_start","index":2,"content_block":{"type":"thinking","thinking":"","signature":""}}`,
			exp:  llms.BlockStart{Index: 2, Kind: llms.BlockKind("thinking")},
		},
		{
			data: `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hi"}}`,
			exp:  llms.BlockDelta{Index: 0, Kind: llms.DeltaText, Text: "Hi"},
		},
		{
			data: `{"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"{\"pa"}}`,
			exp:  llms.BlockDelta{Index: 1, Kind: llms.DeltaJSON, PartialJSON: `{"pa`},
		},
		{
			data: `{"type":"content_block_delta","index":2,"delta":{"type":"thinking_delta","thinking":"hmm"}}`,
			exp:  llms.Unknown{Type: "content_block_delta/thinking_delta"},
		},
		{
			data: `{"type":"content_block_stop","index":1}`,
			exp:  llms.BlockStop{Index: 1},
		},
		{
			data: `{"type":"message_delta","delta":{"stop_reason":"tool_use"},"usage":{"output_tokens":42}}`,
			exp:  llms.MessageDelta{StopReason: llms.StopReasonToolUse, OutputTokens: 42},
		},
		{
			data: `{"type":"message_stop"}`,
			exp:  llms.MessageStop{},
		},
	}
	for _, tt := range tests {
		var ev sdk.MessageStreamEventUnion
		require.NoError(t, json.Unmarshal([]byte(tt.data), &ev), tt.data)
		assert.Equal(t, tt.exp, anthropic.ConvertEvent(ev), tt.data)
	}
}

// sseServer replays the events as a Messages API stream
// and captures the request body.
func sseServer(t *testing.T, body *map[string]any, events ...string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "fake-token", r.Header.Get("X-Api-Key"))

		raw, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.NoError(t, json.Unmarshal(raw, body))

		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		for _, data := range events {
			var typ struct {
				Type string `json:"type"`
			}
			assert.NoError(t, json.Unmarshal([]byte(data), &typ))
			_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", typ.Type, data)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, baseURL string) llms.Model {
	t.Helper()
	llm, err := anthropic.New(
		anthropic.WithToken("fake-token"),
		anthropic.WithModel(testModel),
		anthropic.WithBaseURL(baseURL),
	)
	require.NoError(t, err)
	return llm
}

func TestStreamCompletion(t *testing.T) {
	t.Parallel()

	var body map[string]any
	srv := sseServer(t, &body,
		`{"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","model":"claude-3-7-sonnet-latest","content":[],"usage":{"input_tokens":30,"output_tokens":1}}}`,
		`{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Let me "}}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"check."}}`,
		`{"type":"content_block_stop","index":0}`,
		`{"type":"ping"}`,
		`{"type":"content_block_start","index":1,"content_block":{"type":"tool_use","id":"toolu_1","name":"fs__list","input":{}}}`,
		`{"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"{\"path\":"}}`,
		`{"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"\"/tmp\"}"}}`,
		`{"type":"content_block_stop","index":1}`,
		`{"type":"message_delta","delta":{"stop_reason":"tool_use"},"usage":{"output_tokens":17}}`,
		`{"type":"message_stop"}`,
	)

	llm := newTestClient(t, srv.URL)
	stream, err := llm.StreamCompletion(context.Background(),
		[]llms.Message{llms.MessageFromTextParts(llms.RoleUser, "list /tmp")},
		llms.WithSystemPrompt("Be brief."),
		llms.WithMaxTokens(256),
		llms.WithTemperature(0.2),
		llms.WithTools([]llms.Tool{{Name: "fs__list", Description: "List files"}}),
	)
	require.NoError(t, err)

	var chunks []string
	turn, err := streaming.Drain(context.Background(), stream, func(_ context.Context, chunk []byte) error {
		chunks = append(chunks, string(chunk))
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Let me ", "check."}, chunks)
	assert.Equal(t, "msg_1", turn.ID)
	assert.Equal(t, "Let me check.", turn.Text)
	assert.Equal(t, llms.StopReasonToolUse, turn.StopReason)
	assert.EqualValues(t, 30, turn.InputTokens)
	assert.EqualValues(t, 17, turn.OutputTokens)
	require.NotNil(t, turn.ToolRequest)
	assert.Equal(t, "toolu_1", turn.ToolRequest.ID)
	assert.Equal(t, "fs__list", turn.ToolRequest.Name)
	assert.Equal(t, map[string]any{"path": "/tmp"}, turn.ToolRequest.Arguments)

	assert.Equal(t, testModel, body["model"])
	assert.EqualValues(t, 256, body["max_tokens"])
	assert.EqualValues(t, 0.2, body["temperature"])
	assert.Equal(t, true, body["stream"])
	system, _ := json.Marshal(body["system"])
	assert.Contains(t, string(system), "Be brief.")
	tools, _ := json.Marshal(body["tools"])
	assert.Contains(t, string(tools), `"name":"fs__list"`)
}

func TestStreamCompletion_DefaultsAndModelOverride(t *testing.T) {
	t.Parallel()

	var body map[string]any
	srv := sseServer(t, &body,
		`{"type":"message_start","message":{"id":"msg_2","type":"message","role":"assistant","model":"claude-3-5-haiku-latest","content":[],"usage":{"input_tokens":3,"output_tokens":1}}}`,
		`{"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"output_tokens":1}}`,
		`{"type":"message_stop"}`,
	)

	llm := newTestClient(t, srv.URL)
	stream, err := llm.StreamCompletion(context.Background(),
		[]llms.Message{llms.MessageFromTextParts(llms.RoleUser, "hi")},
		llms.WithModel("claude-3-5-haiku-latest"),
	)
	require.NoError(t, err)
	turn, err := streaming.Drain(context.Background(), stream, nil)
	require.NoError(t, err)
	assert.Empty(t, turn.Text)
	assert.Nil(t, turn.ToolRequest)
	assert.Equal(t, llms.StopReasonEndTurn, turn.StopReason)

	assert.Equal(t, "claude-3-5-haiku-latest", body["model"])
	assert.EqualValues(t, anthropic.DefaultMaxTokens, body["max_tokens"])
	assert.NotContains(t, body, "system")
	assert.NotContains(t, body, "tools")
}

func TestStreamCompletion_Errors(t *testing.T) {
	t.Parallel()

	t.Run("stream error event", func(t *testing.T) {
		t.Parallel()
		var body map[string]any
		srv := sseServer(t, &body,
			`{"type":"message_start","message":{"id":"msg_3","type":"message","role":"assistant","model":"claude-3-7-sonnet-latest","content":[],"usage":{"input_tokens":3,"output_tokens":1}}}`,
			`{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`,
		)
		stream, err := newTestClient(t, srv.URL).StreamCompletion(context.Background(),
			[]llms.Message{llms.MessageFromTextParts(llms.RoleUser, "hi")})
		require.NoError(t, err)
		_, err = streaming.Drain(context.Background(), stream, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Overloaded")
	})

	t.Run("http error", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"type":"error","error":{"type":"invalid_request_error","message":"bad model"}}`)
		}))
		t.Cleanup(srv.Close)

		stream, err := newTestClient(t, srv.URL).StreamCompletion(context.Background(),
			[]llms.Message{llms.MessageFromTextParts(llms.RoleUser, "hi")})
		require.NoError(t, err)
		_, err = streaming.Drain(context.Background(), stream, nil)
		require.Error(t, err)
		assert.True(t, strings.Contains(err.Error(), "400") || strings.Contains(err.Error(), "bad model"), err.Error())
	})

	t.Run("invalid history", func(t *testing.T) {
		t.Parallel()
		_, err := newTestClient(t, "http://127.0.0.1:0").StreamCompletion(context.Background(),
			[]llms.Message{llms.MessageFromTextParts(llms.Role("system"), "hi")})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to process messages")
	})
}

func BenchmarkProcessMessages(b *testing.B) {
	history := []llms.Message{
		llms.MessageFromTextParts(llms.RoleUser, "list files"),
		llms.ToolUseMessage("toolu_1", "fs__list", map[string]any{"path": "/tmp"}),
		llms.ToolResultMessage("toolu_1", "a.txt", false),
		llms.MessageFromTextParts(llms.RoleAssistant, "One file."),
	}
	for b.Loop() {
		_, _ = anthropic.ProcessMessages(history)
	}
}
