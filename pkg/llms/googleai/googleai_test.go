package googleai_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpllm/pkg/llms"
	"github.com/effective-security/mcpllm/pkg/llms/googleai"
	"github.com/effective-security/mcpllm/streaming"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func responses(err error, resps ...*genai.GenerateContentResponse) iter.Seq2[*genai.GenerateContentResponse, error] {
	return func(yield func(*genai.GenerateContentResponse, error) bool) {
		for _, r := range resps {
			if !yield(r, nil) {
				return
			}
		}
		if err != nil {
			yield(nil, err)
		}
	}
}

func candidate(finish genai.FinishReason, parts ...*genai.Part) []*genai.Candidate {
	return []*genai.Candidate{{
		Content:      &genai.Content{Role: googleai.RoleModel, Parts: parts},
		FinishReason: finish,
	}}
}

func drain(t *testing.T, s llms.EventStream) []llms.Event {
	t.Helper()
	var events []llms.Event
	for s.Next() {
		events = append(events, s.Current())
	}
	return events
}

func TestEventStream_TextAndToolCall(t *testing.T) {
	t.Parallel()

	s := googleai.NewEventStream(responses(nil,
		&genai.GenerateContentResponse{
			ResponseID:    "resp_1",
			ModelVersion:  "gemini-2.5-pro",
			UsageMetadata: &genai.GenerateContentResponseUsageMetadata{PromptTokenCount: 11},
			Candidates:    candidate("", &genai.Part{Text: "Let me "}),
		},
		&genai.GenerateContentResponse{
			Candidates: candidate("", &genai.Part{Text: "check."}, &genai.Part{Thought: true, Text: "hmm"}),
		},
		&genai.GenerateContentResponse{
			UsageMetadata: &genai.GenerateContentResponseUsageMetadata{PromptTokenCount: 11, CandidatesTokenCount: 7},
			Candidates: candidate(genai.FinishReasonStop, &genai.Part{FunctionCall: &genai.FunctionCall{
				ID:   "call_1",
				Name: "fs__list",
				Args: map[string]any{"path": "/tmp"},
			}}),
		},
	))

	events := drain(t, s)
	require.NoError(t, s.Err())
	assert.Equal(t, []llms.Event{
		llms.MessageStart{ID: "resp_1", Model: "gemini-2.5-pro", InputTokens: 11},
		llms.BlockStart{Index: 0, Kind: llms.BlockText},
		llms.BlockDelta{Index: 0, Kind: llms.DeltaText, Text: "Let me "},
		llms.BlockDelta{Index: 0, Kind: llms.DeltaText, Text: "check."},
		llms.Unknown{Type: "thought"},
		llms.BlockStop{Index: 0},
		llms.BlockStart{Index: 1, Kind: llms.BlockToolUse, ToolName: "fs__list", ToolUseID: "call_1"},
		llms.BlockDelta{Index: 1, Kind: llms.DeltaJSON, PartialJSON: `{"path":"/tmp"}`},
		llms.BlockStop{Index: 1},
		llms.MessageDelta{StopReason: llms.StopReasonToolUse, OutputTokens: 7},
		llms.MessageStop{},
	}, events)
	require.NoError(t, s.Close())
	assert.False(t, s.Next())
}

func TestEventStream_ReducesToTurn(t *testing.T) {
	t.Parallel()

	s := googleai.NewEventStream(responses(nil,
		&genai.GenerateContentResponse{
			Candidates: candidate(genai.FinishReasonStop, &genai.Part{FunctionCall: &genai.FunctionCall{Name: "clock__now"}}),
		},
	))

	turn, err := streaming.Drain(context.Background(), s, nil)
	require.NoError(t, err)
	require.NotNil(t, turn.ToolRequest)
	assert.Equal(t, "clock__now", turn.ToolRequest.Name)
	assert.True(t, strings.HasPrefix(turn.ToolRequest.ID, "toolu_"), turn.ToolRequest.ID)
	assert.Equal(t, map[string]any{}, turn.ToolRequest.Arguments)
	assert.Equal(t, llms.StopReasonToolUse, turn.StopReason)
}

func TestEventStream_StopReasons(t *testing.T) {
	t.Parallel()

	tests := []struct {
		finish genai.FinishReason
		exp    string
	}{
		{finish: "", exp: llms.StopReasonEndTurn},
		{finish: genai.FinishReasonStop, exp: llms.StopReasonEndTurn},
		{finish: genai.FinishReasonMaxTokens, exp: llms.StopReasonMaxTokens},
		{finish: genai.FinishReasonSafety, exp: "safety"},
	}
	for _, tc := range tests {
		s := googleai.NewEventStream(responses(nil,
			&genai.GenerateContentResponse{Candidates: candidate(tc.finish, &genai.Part{Text: "x"})},
		))
		turn, err := streaming.Drain(context.Background(), s, nil)
		require.NoError(t, err)
		assert.Equal(t, tc.exp, turn.StopReason, string(tc.finish))
		assert.Equal(t, "x", turn.Text)
	}
}

func TestEventStream_Empty(t *testing.T) {
	t.Parallel()

	s := googleai.NewEventStream(responses(nil))
	assert.Equal(t, []llms.Event{
		llms.MessageStart{},
		llms.MessageDelta{StopReason: llms.StopReasonEndTurn},
		llms.MessageStop{},
	}, drain(t, s))
	require.NoError(t, s.Err())
}

func TestEventStream_Error(t *testing.T) {
	t.Parallel()

	s := googleai.NewEventStream(responses(errors.New("quota exceeded"),
		&genai.GenerateContentResponse{Candidates: candidate("", &genai.Part{Text: "partial"})},
	))
	events := drain(t, s)
	require.Len(t, events, 3)
	require.Error(t, s.Err())
	assert.Contains(t, s.Err().Error(), "quota exceeded")
	assert.False(t, s.Next())
}

func TestConvertMessages(t *testing.T) {
	t.Parallel()

	history, err := googleai.ConvertMessages([]llms.Message{
		llms.MessageFromTextParts(llms.RoleUser, "list"),
		llms.ToolUseMessage("call_1", "fs__list", map[string]any{"path": "/tmp"}),
		llms.ToolResultMessage("call_1", "a.txt", false),
		llms.ToolUseMessage("call_2", "fs__read", nil),
		llms.ToolResultMessage("call_2", "denied", true),
		{Role: llms.RoleAssistant},
	})
	require.NoError(t, err)
	require.Len(t, history, 5)

	assert.Equal(t, googleai.RoleUser, history[0].Role)
	assert.Equal(t, "list", history[0].Parts[0].Text)

	assert.Equal(t, googleai.RoleModel, history[1].Role)
	assert.Equal(t, &genai.FunctionCall{ID: "call_1", Name: "fs__list", Args: map[string]any{"path": "/tmp"}}, history[1].Parts[0].FunctionCall)

	assert.Equal(t, googleai.RoleUser, history[2].Role)
	assert.Equal(t, &genai.FunctionResponse{ID: "call_1", Name: "fs__list", Response: map[string]any{"output": "a.txt"}}, history[2].Parts[0].FunctionResponse)
	assert.Equal(t, &genai.FunctionResponse{ID: "call_2", Name: "fs__read", Response: map[string]any{"error": "denied"}}, history[4].Parts[0].FunctionResponse)

	_, err = googleai.ConvertMessages([]llms.Message{llms.MessageFromTextParts(llms.Role("system"), "x")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not supported")
}

func TestNew(t *testing.T) {
	t.Setenv(googleai.TokenEnvVarName, "")
	t.Setenv("GEMINI_API_KEY", "")

	_, err := googleai.New(context.Background())
	require.Error(t, err)

	t.Setenv(googleai.TokenEnvVarName, "env-key")
	g, err := googleai.New(context.Background(), googleai.WithModel("gemini-2.5-flash"))
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-flash", g.GetName())
	assert.Equal(t, llms.ProviderGoogleAI, g.GetProviderType())
}

func TestStreamCompletion(t *testing.T) {
	t.Parallel()

	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "gemini-2.5-flash:streamGenerateContent")
		raw, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.NoError(t, json.Unmarshal(raw, &body))

		w.Header().Set("Content-Type", "text/event-stream")
		for _, data := range []string{
			`{"responseId":"r1","modelVersion":"gemini-2.5-flash","candidates":[{"content":{"role":"model","parts":[{"text":"Hel"}]}}],"usageMetadata":{"promptTokenCount":5}}`,
			`{"candidates":[{"content":{"role":"model","parts":[{"text":"lo"}]},"finishReason":"STOP"}],"usageMetadata":{"promptTokenCount":5,"candidatesTokenCount":2}}`,
		} {
			_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
		}
	}))
	t.Cleanup(srv.Close)

	g, err := googleai.New(context.Background(),
		googleai.WithAPIKey("fake-key"),
		googleai.WithBaseURL(srv.URL),
		googleai.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)

	stream, err := g.StreamCompletion(context.Background(),
		[]llms.Message{llms.MessageFromTextParts(llms.RoleUser, "hi")},
		llms.WithModel("gemini-2.5-flash"),
		llms.WithSystemPrompt("Be brief."),
		llms.WithMaxTokens(64),
		llms.WithTools([]llms.Tool{{Name: "fs__list", InputSchema: map[string]any{"type": "object"}}}),
	)
	require.NoError(t, err)

	var chunks []string
	turn, err := streaming.Drain(context.Background(), stream, func(_ context.Context, chunk []byte) error {
		chunks = append(chunks, string(chunk))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Hel", "lo"}, chunks)
	assert.Equal(t, "Hello", turn.Text)
	assert.Equal(t, "r1", turn.ID)
	assert.EqualValues(t, 5, turn.InputTokens)
	assert.EqualValues(t, 2, turn.OutputTokens)
	assert.Equal(t, llms.StopReasonEndTurn, turn.StopReason)

	raw, _ := json.Marshal(body)
	assert.Contains(t, string(raw), "Be brief.")
	assert.Contains(t, string(raw), `"fs__list"`)
}
