package openai

import (
	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpllm/pkg/llms"
	"github.com/effective-security/xlog"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/packages/ssestream"
)

// chunkStream is the stream of chat completion chunks.
type chunkStream interface {
	Next() bool
	Current() openai.ChatCompletionChunk
	Err() error
	Close() error
}

var _ chunkStream = (*ssestream.Stream[openai.ChatCompletionChunk])(nil)

// EventStream synthesizes the turn events from chat completion chunks.
// Tool calls arrive as argument fragments keyed by the call index,
// each call becomes one tool use block.
type EventStream struct {
	stream chunkStream

	queue []llms.Event
	cur   llms.Event
	err   error
	done  bool

	started   bool
	nextIndex int64
	// block is the index of the open block, -1 if none
	block     int64
	blockKind llms.BlockKind
	// toolCall is the call index of the open tool block
	toolCall int64

	toolUsed     bool
	finishReason string
	inputTokens  int64
	outputTokens int64
}

// NewEventStream returns the llms.EventStream over the chunk stream.
func NewEventStream(stream chunkStream) *EventStream {
	return &EventStream{
		stream:   stream,
		block:    -1,
		toolCall: -1,
	}
}

// Next implements llms.EventStream.
func (s *EventStream) Next() bool {
	for len(s.queue) == 0 {
		if s.done {
			return false
		}
		if s.stream.Next() {
			s.apply(s.stream.Current())
			continue
		}
		if err := s.stream.Err(); err != nil {
			s.err = errors.Wrap(err, "openai: streaming error")
			s.done = true
			return false
		}
		s.finish()
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
	return s.stream.Close()
}

func (s *EventStream) push(events ...llms.Event) {
	s.queue = append(s.queue, events...)
}

func (s *EventStream) apply(chunk openai.ChatCompletionChunk) {
	if !s.started {
		s.started = true
		s.push(llms.MessageStart{ID: chunk.ID, Model: chunk.Model})
	}
	if chunk.Usage.PromptTokens > 0 || chunk.Usage.CompletionTokens > 0 {
		s.inputTokens = chunk.Usage.PromptTokens
		s.outputTokens = chunk.Usage.CompletionTokens
	}
	if len(chunk.Choices) == 0 {
		return
	}

	choice := chunk.Choices[0]
	if choice.FinishReason != "" {
		s.finishReason = choice.FinishReason
	}

	delta := choice.Delta
	if delta.Content != "" {
		if s.block < 0 || s.blockKind != llms.BlockText {
			s.open(llms.BlockStart{Kind: llms.BlockText})
		}
		s.push(llms.BlockDelta{Index: s.block, Kind: llms.DeltaText, Text: delta.Content})
	}
	if delta.Refusal != "" {
		logger.KV(xlog.DEBUG, "status", "unknown_event", "type", "refusal")
		s.push(llms.Unknown{Type: "refusal"})
	}

	for _, tc := range delta.ToolCalls {
		if s.blockKind != llms.BlockToolUse || s.block < 0 || tc.Index != s.toolCall {
			if tc.ID == "" || tc.Function.Name == "" {
				// continuation of a call that is no longer open
				logger.KV(xlog.DEBUG, "status", "unknown_event", "type", "tool_call_fragment", "index", tc.Index)
				continue
			}
			s.open(llms.BlockStart{Kind: llms.BlockToolUse, ToolName: tc.Function.Name, ToolUseID: tc.ID})
			s.toolCall = tc.Index
			s.toolUsed = true
		}
		if tc.Function.Arguments != "" {
			s.push(llms.BlockDelta{Index: s.block, Kind: llms.DeltaJSON, PartialJSON: tc.Function.Arguments})
		}
	}
}

// open closes the open block and starts a new one.
func (s *EventStream) open(start llms.BlockStart) {
	s.closeBlock()
	start.Index = s.nextIndex
	s.nextIndex++
	s.block = start.Index
	s.blockKind = start.Kind
	s.push(start)
}

func (s *EventStream) closeBlock() {
	if s.block >= 0 {
		s.push(llms.BlockStop{Index: s.block})
		s.block = -1
		s.blockKind = ""
		s.toolCall = -1
	}
}

func (s *EventStream) finish() {
	if !s.started {
		s.started = true
		s.push(llms.MessageStart{})
	}
	s.closeBlock()
	s.push(
		llms.MessageDelta{
			StopReason:   s.stopReason(),
			InputTokens:  s.inputTokens,
			OutputTokens: s.outputTokens,
		},
		llms.MessageStop{},
	)
	s.done = true
}

func (s *EventStream) stopReason() string {
	switch {
	case s.toolUsed, s.finishReason == "tool_calls":
		return llms.StopReasonToolUse
	case s.finishReason == "length":
		return llms.StopReasonMaxTokens
	case s.finishReason == "" || s.finishReason == "stop":
		return llms.StopReasonEndTurn
	}
	return s.finishReason
}
