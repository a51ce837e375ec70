package streaming

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpllm/pkg/llms"
	"github.com/effective-security/mcpllm/pkg/metricskey"
	"github.com/effective-security/x/slices"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpllm", "streaming")

// ErrArgumentParse is logged when the accumulated tool arguments are not a JSON object.
var ErrArgumentParse = errors.New("invalid tool arguments")

// StreamingFunc is called for each text chunk as soon as it is received.
// Return an error to stop streaming early.
type StreamingFunc func(ctx context.Context, chunk []byte) error

// State of the reducer.
type State int

const (
	// StateIdle is outside of any block.
	StateIdle State = iota
	// StateText is inside a text block.
	StateText
	// StateTool is inside a tool-use block.
	StateTool
	// StateDone is after the turn-stop event.
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateText:
		return "text"
	case StateTool:
		return "tool"
	case StateDone:
		return "done"
	}
	return "unknown"
}

// ToolRequest is a tool invocation reconstructed from a turn.
type ToolRequest struct {
	// ID is the invocation id.
	ID string
	// Name is the namespaced tool id.
	Name string
	// Arguments is the parsed argument object, never nil.
	Arguments map[string]any
	// RawArguments is the accumulated JSON text.
	RawArguments string
}

// Turn is the reduced result of one model turn.
type Turn struct {
	ID           string
	Model        string
	Text         string
	StopReason   string
	InputTokens  int64
	OutputTokens int64
	// ToolRequest is nil when the turn requested no tool.
	ToolRequest *ToolRequest
}

type toolAccumulator struct {
	id   string
	name string
	args strings.Builder
}

// Reducer is the state machine for one turn. It is not reusable:
// create a new Reducer per model call.
type Reducer struct {
	sink  StreamingFunc
	state State
	text  strings.Builder
	// current is the tool block in progress
	current *toolAccumulator
	// completed is the first tool block that reached its block-stop
	completed *toolAccumulator
	turn      Turn
}

// NewReducer returns a reducer that pushes text chunks to sink,
// sink may be nil.
func NewReducer(sink StreamingFunc) *Reducer {
	return &Reducer{sink: sink}
}

// State returns the current state.
func (r *Reducer) State() State {
	return r.state
}

// Text returns the text accumulated so far.
func (r *Reducer) Text() string {
	return r.text.String()
}

// Apply advances the state machine by one event.
// The only error it returns is the one returned by the sink.
func (r *Reducer) Apply(ctx context.Context, ev llms.Event) error {
	if r.state == StateDone {
		return nil
	}

	switch e := ev.(type) {
	case llms.MessageStart:
		r.turn.ID = e.ID
		r.turn.Model = e.Model
		r.turn.InputTokens = e.InputTokens

	case llms.BlockStart:
		if r.current != nil {
			logger.ContextKV(ctx, xlog.WARNING,
				"status", "unterminated_tool_block",
				"tool", r.current.name,
			)
			r.current = nil
		}
		switch e.Kind {
		case llms.BlockText:
			r.state = StateText
		case llms.BlockToolUse:
			r.state = StateTool
			r.current = &toolAccumulator{id: e.ToolUseID, name: e.ToolName}
		default:
			// blocks of other kinds carry nothing the loop consumes
			r.state = StateIdle
		}

	case llms.BlockDelta:
		switch e.Kind {
		case llms.DeltaText:
			if r.state != StateText || e.Text == "" {
				return nil
			}
			r.text.WriteString(e.Text)
			if r.sink != nil {
				if err := r.sink(ctx, []byte(e.Text)); err != nil {
					return errors.WithMessage(err, "streaming function error")
				}
			}
		case llms.DeltaJSON:
			if r.state == StateTool && r.current != nil {
				r.current.args.WriteString(e.PartialJSON)
			}
		}

	case llms.BlockStop:
		if r.state == StateTool && r.current != nil {
			if r.completed == nil {
				r.completed = r.current
			} else {
				logger.ContextKV(ctx, xlog.WARNING,
					"status", "extra_tool_request_dropped",
					"tool", r.current.name,
					"id", r.current.id,
				)
			}
			r.current = nil
		}
		r.state = StateIdle

	case llms.MessageDelta:
		if e.StopReason != "" {
			r.turn.StopReason = e.StopReason
		}
		r.turn.OutputTokens = e.OutputTokens
		if e.InputTokens > 0 {
			r.turn.InputTokens = e.InputTokens
		}

	case llms.MessageStop:
		r.state = StateDone

	default:
		logger.ContextKV(ctx, xlog.DEBUG,
			"status", "unknown_event",
			"event", eventType(ev),
		)
	}
	return nil
}

// Finish ends the turn and returns its result.
// A tool request is returned only if its block was closed.
func (r *Reducer) Finish(ctx context.Context) *Turn {
	if r.current != nil {
		logger.ContextKV(ctx, xlog.WARNING,
			"status", "unterminated_tool_block",
			"tool", r.current.name,
		)
		r.current = nil
	}
	r.state = StateDone

	turn := r.turn
	turn.Text = r.text.String()
	if r.completed != nil {
		raw := r.completed.args.String()
		turn.ToolRequest = &ToolRequest{
			ID:           r.completed.id,
			Name:         r.completed.name,
			RawArguments: raw,
			Arguments:    ParseArguments(ctx, r.completed.name, raw),
		}
	}
	return &turn
}

// ParseArguments parses the accumulated tool arguments.
// An empty buffer is an empty object, anything that is not a JSON object
// is logged and replaced with an empty object.
func ParseArguments(ctx context.Context, tool, raw string) map[string]any {
	args := map[string]any{}
	if strings.TrimSpace(raw) == "" {
		return args
	}
	err := json.Unmarshal([]byte(raw), &args)
	if err == nil && args == nil {
		err = errors.New("null arguments")
	}
	if err != nil {
		metricskey.StatsToolArgumentParseErrors.IncrCounter(1, tool)
		logger.ContextKV(ctx, xlog.ERROR,
			"status", "argument_parse_failed",
			"tool", tool,
			"raw", slices.StringUpto(raw, 128),
			"err", errors.Mark(err, ErrArgumentParse).Error(),
		)
		return map[string]any{}
	}
	return args
}

// Drain consumes the whole stream and closes it.
// Text chunks go to sink as they arrive. The returned turn is built
// only after the stream ends, so a tool request is never visible early.
func Drain(ctx context.Context, stream llms.EventStream, sink StreamingFunc) (*Turn, error) {
	defer func() {
		_ = stream.Close()
	}()

	r := NewReducer(sink)
	for stream.Next() {
		if err := ctx.Err(); err != nil {
			return nil, errors.WithStack(err)
		}
		if err := r.Apply(ctx, stream.Current()); err != nil {
			return nil, err
		}
	}
	if err := stream.Err(); err != nil {
		return nil, errors.Wrap(err, "streaming error")
	}
	return r.Finish(ctx), nil
}

func eventType(ev llms.Event) string {
	if u, ok := ev.(llms.Unknown); ok {
		return u.Type
	}
	return "unmodeled"
}
