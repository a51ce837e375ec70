package googleai

import (
	"context"
	"encoding/json"
	"iter"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpllm/pkg/llms"
	"github.com/effective-security/mcpllm/pkg/llms/googleai/internal/genaiutils"
	"github.com/effective-security/xlog"
	"github.com/google/uuid"
	"google.golang.org/genai"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpllm", "googleai")

const (
	RoleModel = "model"
	RoleUser  = "user"
)

// GetName implements the Model interface.
func (g *GoogleAI) GetName() string {
	return g.opts.Model
}

// GetProviderType implements the Model interface.
func (g *GoogleAI) GetProviderType() llms.ProviderType {
	return llms.ProviderGoogleAI
}

// StreamCompletion implements the [llms.Model] interface.
// Gemini streams whole parts, the returned stream synthesizes
// the block events of the turn from them.
func (g *GoogleAI) StreamCompletion(ctx context.Context, messages []llms.Message, options ...llms.CallOption) (llms.EventStream, error) {
	opts := llms.CallOptions{
		Model:       g.opts.Model,
		MaxTokens:   g.opts.MaxTokens,
		Temperature: g.opts.Temperature,
	}
	for _, opt := range options {
		opt(&opts)
	}

	callCfg, err := g.newConfig(&opts)
	if err != nil {
		return nil, err
	}
	history, err := ConvertMessages(messages)
	if err != nil {
		return nil, err
	}

	return NewEventStream(g.client.Models.GenerateContentStream(ctx, opts.Model, history, callCfg)), nil
}

func (g *GoogleAI) newConfig(opts *llms.CallOptions) (*genai.GenerateContentConfig, error) {
	callCfg := &genai.GenerateContentConfig{
		CandidateCount:  1,
		MaxOutputTokens: int32(opts.MaxTokens),
		Temperature:     genaiutils.Float32Ptr(float32(opts.Temperature)),
		TopP:            genaiutils.Float32Ptr(float32(g.opts.TopP)),
		TopK:            genaiutils.Float32Ptr(float32(g.opts.TopK)),
	}
	if opts.SystemPrompt != "" {
		callCfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: opts.SystemPrompt}},
		}
	}

	for _, category := range []genai.HarmCategory{
		genai.HarmCategoryDangerousContent,
		genai.HarmCategoryHarassment,
		genai.HarmCategoryHateSpeech,
		genai.HarmCategorySexuallyExplicit,
	} {
		callCfg.SafetySettings = append(callCfg.SafetySettings, &genai.SafetySetting{
			Category:  category,
			Threshold: g.opts.HarmThreshold,
		})
	}

	var err error
	if callCfg.Tools, err = genaiutils.ConvertTools(opts.Tools); err != nil {
		return nil, errors.WithMessage(err, "googleai: invalid tools")
	}
	return callCfg, nil
}

// ConvertMessages converts the history to genai contents.
// Tool results are sent as function responses named after their tool-use request.
func ConvertMessages(messages []llms.Message) ([]*genai.Content, error) {
	names := llms.ToolUseNames(messages)

	history := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		if len(m.Parts) == 0 {
			continue
		}
		c := &genai.Content{}
		switch m.Role {
		case llms.RoleAssistant:
			c.Role = RoleModel
		case llms.RoleUser:
			c.Role = RoleUser
		default:
			return nil, errors.Errorf("googleai: role %v not supported", m.Role)
		}

		for _, part := range m.Parts {
			out := new(genai.Part)
			switch p := part.(type) {
			case llms.TextContent:
				out.Text = p.Text
			case llms.ToolUse:
				out.FunctionCall = &genai.FunctionCall{
					ID:   p.ID,
					Name: p.Name,
					Args: p.Input,
				}
			case llms.ToolResult:
				key := "output"
				if p.IsError {
					key = "error"
				}
				out.FunctionResponse = &genai.FunctionResponse{
					ID:       p.ToolUseID,
					Name:     names[p.ToolUseID],
					Response: map[string]any{key: p.Content},
				}
			default:
				return nil, errors.Errorf("googleai: unsupported content type %T", part)
			}
			c.Parts = append(c.Parts, out)
		}
		history = append(history, c)
	}
	return history, nil
}

// EventStream synthesizes the turn events from a genai response stream.
type EventStream struct {
	next func() (*genai.GenerateContentResponse, error, bool)
	stop func()

	queue []llms.Event
	cur   llms.Event
	err   error
	done  bool

	started      bool
	textIndex    int64
	nextIndex    int64
	toolUsed     bool
	finishReason genai.FinishReason
	outputTokens int64
}

// NewEventStream returns the llms.EventStream over the genai responses.
func NewEventStream(seq iter.Seq2[*genai.GenerateContentResponse, error]) *EventStream {
	next, stop := iter.Pull2(seq)
	return &EventStream{
		next:      next,
		stop:      stop,
		textIndex: -1,
	}
}

// Next implements llms.EventStream.
func (s *EventStream) Next() bool {
	for len(s.queue) == 0 {
		if s.done {
			return false
		}
		resp, err, ok := s.next()
		switch {
		case !ok:
			s.finish()
		case err != nil:
			s.err = errors.Wrap(err, "googleai: streaming error")
			s.done = true
			s.stop()
			return false
		default:
			if err := s.apply(resp); err != nil {
				s.err = err
				s.done = true
				s.stop()
				return false
			}
		}
	}
	s.cur, s.queue = s.queue[0], s.queue[1:]
	return true
}

// Current implements llms.EventStream.
func (s *EventStream) Current() llms.Event {
	return s.cur
}

// Err implements llms.EventStream.
func (s *EventStream) Err() error {
	return s.err
}

// Close implements llms.EventStream.
func (s *EventStream) Close() error {
	s.done = true
	s.stop()
	return nil
}

func (s *EventStream) push(events ...llms.Event) {
	s.queue = append(s.queue, events...)
}

func (s *EventStream) apply(resp *genai.GenerateContentResponse) error {
	if !s.started {
		s.started = true
		start := llms.MessageStart{
			ID:    resp.ResponseID,
			Model: resp.ModelVersion,
		}
		if resp.UsageMetadata != nil {
			start.InputTokens = int64(resp.UsageMetadata.PromptTokenCount)
		}
		s.push(start)
	}
	if resp.UsageMetadata != nil {
		s.outputTokens = int64(resp.UsageMetadata.CandidatesTokenCount + resp.UsageMetadata.ThoughtsTokenCount)
	}
	if len(resp.Candidates) == 0 {
		return nil
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason != "" {
		s.finishReason = candidate.FinishReason
	}
	if candidate.Content == nil {
		return nil
	}

	for _, part := range candidate.Content.Parts {
		switch {
		case part.Thought:
			s.push(llms.Unknown{Type: "thought"})
		case part.FunctionCall != nil:
			s.closeText()
			fc := part.FunctionCall
			id := fc.ID
			if id == "" {
				id = "toolu_" + uuid.NewString()
			}
			args := fc.Args
			if args == nil {
				args = map[string]any{}
			}
			raw, err := json.Marshal(args)
			if err != nil {
				return errors.Wrapf(err, "googleai: failed to encode arguments of %s", fc.Name)
			}
			idx := s.nextIndex
			s.nextIndex++
			s.toolUsed = true
			s.push(
				llms.BlockStart{Index: idx, Kind: llms.BlockToolUse, ToolName: fc.Name, ToolUseID: id},
				llms.BlockDelta{Index: idx, Kind: llms.DeltaJSON, PartialJSON: string(raw)},
				llms.BlockStop{Index: idx},
			)
		case part.Text != "":
			if s.textIndex < 0 {
				s.textIndex = s.nextIndex
				s.nextIndex++
				s.push(llms.BlockStart{Index: s.textIndex, Kind: llms.BlockText})
			}
			s.push(llms.BlockDelta{Index: s.textIndex, Kind: llms.DeltaText, Text: part.Text})
		default:
			logger.KV(xlog.DEBUG, "status", "unknown_event", "type", "part")
			s.push(llms.Unknown{Type: "part"})
		}
	}
	return nil
}

func (s *EventStream) closeText() {
	if s.textIndex >= 0 {
		s.push(llms.BlockStop{Index: s.textIndex})
		s.textIndex = -1
	}
}

func (s *EventStream) finish() {
	if !s.started {
		s.started = true
		s.push(llms.MessageStart{})
	}
	s.closeText()
	s.push(
		llms.MessageDelta{StopReason: s.stopReason(), OutputTokens: s.outputTokens},
		llms.MessageStop{},
	)
	s.done = true
	s.stop()
}

func (s *EventStream) stopReason() string {
	switch {
	case s.toolUsed:
		return llms.StopReasonToolUse
	case s.finishReason == genai.FinishReasonMaxTokens:
		return llms.StopReasonMaxTokens
	case s.finishReason == "" || s.finishReason == genai.FinishReasonStop:
		return llms.StopReasonEndTurn
	}
	return strings.ToLower(string(s.finishReason))
}
