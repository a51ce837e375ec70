package assistants

import (
	"context"
	"iter"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpllm/chatmodel"
	"github.com/effective-security/mcpllm/pkg/llms"
	"github.com/effective-security/mcpllm/pkg/metricskey"
	"github.com/effective-security/mcpllm/pkg/prompts"
	"github.com/effective-security/mcpllm/providers"
	"github.com/effective-security/mcpllm/streaming"
	"github.com/effective-security/mcpllm/tools"
	"github.com/effective-security/x/slices"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
)

// Response is the result of one response of the conversation loop.
type Response struct {
	// History is the input history with the messages appended by the loop.
	History []llms.Message
	// Text is the text of the final turn.
	Text string
	// StopReason of the final turn.
	StopReason string
	// Turns is the number of model turns.
	Turns int
	// ToolTurns is the number of tool invocations.
	ToolTurns    int
	InputTokens  int64
	OutputTokens int64
}

// Assistant drives the conversation between the model and the connected providers.
// It serves one conversation at a time: Respond must not be called concurrently.
type Assistant struct {
	llm      llms.Model
	registry *providers.Registry
	cfg      *Config
	name     string
}

var _ IAssistant = (*Assistant)(nil)

// NewAssistant returns the conversation loop over the model and the providers of the registry.
func NewAssistant(llmModel llms.Model, registry *providers.Registry, options ...Option) *Assistant {
	if registry == nil {
		registry = providers.NewRegistry(nil, nil)
	}
	return &Assistant{
		llm:      llmModel,
		registry: registry,
		cfg:      NewConfig(options...),
		name:     "MCP Assistant",
	}
}

// WithName sets the name of the Assistant.
func (a *Assistant) WithName(name string) *Assistant {
	a.name = name
	return a
}

// Name returns the name of the Assistant.
func (a *Assistant) Name() string {
	return a.name
}

// Model returns the model collaborator.
func (a *Assistant) Model() llms.Model {
	return a.llm
}

// Registry returns the provider registry.
func (a *Assistant) Registry() *providers.Registry {
	return a.registry
}

// GetCallConfig returns the config of a call with the options applied.
func (a *Assistant) GetCallConfig(opts ...Option) *Config {
	return a.cfg.Apply(opts...)
}

// Connect connects the named providers, the first failure is returned.
func (a *Assistant) Connect(ctx context.Context, ids ...string) error {
	return a.registry.ConnectServers(ctx, ids...)
}

// ConnectAll connects every configured provider, failures are logged and skipped.
func (a *Assistant) ConnectAll(ctx context.Context) []string {
	return a.registry.ConnectAll(ctx)
}

// Close closes all provider sessions.
func (a *Assistant) Close() error {
	return a.registry.Close()
}

// Tools returns the catalog of the connected providers.
func (a *Assistant) Tools() *tools.Catalog {
	return tools.Build(a.registry.Listings())
}

// GetSystemPrompt renders the system prompt template.
// The template gets "servers" and "tools" inputs, merged with the configured prompt input.
func (a *Assistant) GetSystemPrompt(cfg *Config, catalog *tools.Catalog) (string, error) {
	tmpl, err := prompts.NewPromptTemplate(values.StringsCoalesce(cfg.SystemPrompt, prompts.DefaultSystemPrompt), nil)
	if err != nil {
		return "", err
	}

	var names []string
	for _, e := range catalog.Entries() {
		names = append(names, e.ID)
	}
	return tmpl.FormatPrompt(prompts.MergeInputs(
		map[string]any{
			"servers": a.registry.IDs(),
			"tools":   names,
		},
		cfg.PromptInput,
	))
}

// Query answers the user input. When a store is configured,
// the chat history of the context is prepended and the new messages are saved.
func (a *Assistant) Query(ctx context.Context, input string, sink streaming.StreamingFunc, opts ...Option) (*Response, error) {
	started := time.Now()
	defer metricskey.PerfAssistantCall.MeasureSince(started, a.modelName(nil))

	cfg := a.cfg.Apply(opts...)
	if chatmodel.GetChatContext(ctx) == nil {
		ctx = chatmodel.WithChatContext(ctx, chatmodel.NewChatContext("", nil))
	} else {
		ctx, _ = chatmodel.NewRun(ctx)
	}

	callback := cfg.CallbackHandler
	if callback != nil {
		callback.OnAssistantStart(ctx, a, input)
	}

	var history []llms.Message
	if cfg.Store != nil {
		history = cfg.Store.Messages(ctx)
		logger.ContextKV(ctx, xlog.DEBUG,
			"assistant", a.name,
			"chat_id", chatmodel.GetChatID(ctx),
			"message_history", len(history))
	}
	prev := len(history)
	history = append(history, llms.MessageFromTextParts(llms.RoleUser, input))

	resp, err := a.respond(ctx, cfg, history, sink)
	if err != nil {
		metricskey.StatsAssistantCallsFailed.IncrCounter(1, a.modelName(cfg))
		if callback != nil {
			callback.OnAssistantError(ctx, a, input, err, resp.History)
		}
		return resp, err
	}
	metricskey.StatsAssistantCallsSucceeded.IncrCounter(1, a.modelName(cfg))

	if cfg.Store != nil {
		if err := cfg.Store.Add(ctx, resp.History[prev:]...); err != nil {
			logger.ContextKV(ctx, xlog.ERROR,
				"assistant", a.name,
				"status", "store_failed",
				"err", err.Error(),
			)
		}
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"assistant", a.name,
		"status", "query_completed",
		"turns", resp.Turns,
		"tool_turns", resp.ToolTurns,
		"input", slices.StringUpto(input, 64),
		"output", slices.StringUpto(resp.Text, 64),
	)

	if callback != nil {
		callback.OnAssistantEnd(ctx, a, input, resp)
	}
	return resp, nil
}

var errConsumerStopped = errors.New("consumer stopped")

// Chunks returns the lazy sequence of text chunks answering the input.
// Breaking out of the loop aborts the response; a failure is yielded
// as the last element with an empty chunk.
func (a *Assistant) Chunks(ctx context.Context, input string, opts ...Option) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		_, err := a.Query(ctx, input, func(_ context.Context, chunk []byte) error {
			if !yield(string(chunk), nil) {
				return errConsumerStopped
			}
			return nil
		}, opts...)
		if err != nil && !errors.Is(err, errConsumerStopped) {
			yield("", err)
		}
	}
}

// Respond runs the conversation loop over the history and pushes the text chunks to sink.
// The input history is not modified, the returned Response carries a new history
// even when an error is returned.
func (a *Assistant) Respond(ctx context.Context, history []llms.Message, sink streaming.StreamingFunc, opts ...Option) (*Response, error) {
	return a.respond(ctx, a.cfg.Apply(opts...), history, sink)
}

func (a *Assistant) respond(ctx context.Context, cfg *Config, history []llms.Message, sink streaming.StreamingFunc) (*Response, error) {
	resp := &Response{
		History: append(make([]llms.Message, 0, len(history)+2), history...),
	}

	// the catalog is built once per response, tools of providers connected
	// during the response are not advertised until the next one
	catalog := a.Tools()
	var toolCallback tools.Callback
	if cfg.CallbackHandler != nil {
		toolCallback = cfg.CallbackHandler
	}
	invoker := tools.NewInvoker(catalog, a.registry,
		tools.WithTimeout(cfg.ToolTimeout),
		tools.WithCallback(toolCallback),
	)

	systemPrompt, err := a.GetSystemPrompt(cfg, catalog)
	if err != nil {
		return resp, errors.WithMessage(err, "failed to format system prompt")
	}
	callOpts := cfg.GetCallOptions(systemPrompt, catalog.Tools())
	modelName := a.modelName(cfg)

	for {
		turn, err := a.turn(ctx, cfg, resp.History, sink, callOpts)
		if err != nil {
			return resp, err
		}
		resp.Turns++
		resp.InputTokens += turn.InputTokens
		resp.OutputTokens += turn.OutputTokens
		resp.Text = turn.Text
		resp.StopReason = turn.StopReason

		req := turn.ToolRequest
		if req == nil {
			if turn.Text != "" {
				resp.History = append(resp.History, llms.MessageFromTextParts(llms.RoleAssistant, turn.Text))
			}
			return resp, nil
		}

		if resp.ToolTurns >= cfg.MaxToolTurns {
			metricskey.StatsAssistantToolTurnsExceeded.IncrCounter(1, modelName)
			logger.ContextKV(ctx, xlog.WARNING,
				"assistant", a.name,
				"status", "too_many_tool_turns",
				"limit", cfg.MaxToolTurns,
				"tool", req.Name,
			)
			return resp, errors.Mark(errors.Newf("tool turns limit %d exceeded, tool %q not invoked", cfg.MaxToolTurns, req.Name), ErrTooManyToolTurns)
		}
		resp.ToolTurns++

		out, err := invoker.Invoke(ctx, req.Name, req.Arguments)
		if err != nil {
			switch {
			case errors.Is(err, tools.ErrUnknownTool):
				if cfg.CallbackHandler != nil {
					cfg.CallbackHandler.OnToolNotFound(ctx, a, req.Name)
				}
				out = tools.ErrorOutcome(err)
			case errors.Is(err, tools.ErrProviderNotConnected):
				out = tools.ErrorOutcome(err)
			default:
				if sink != nil {
					_ = sink(ctx, []byte(ToolErrorDelimiter(req.Name, err)))
				}
				return resp, errors.WithMessagef(err, "failed to execute tool %s", req.Name)
			}
		}

		resp.History = append(resp.History,
			llms.ToolUseMessage(req.ID, req.Name, req.Arguments),
			llms.ToolResultMessage(req.ID, ToolResultText(out), out.IsError),
		)

		logger.ContextKV(ctx, xlog.DEBUG,
			"assistant", a.name,
			"status", "tool_turn",
			"tool", req.Name,
			"tool_use_id", req.ID,
			"is_error", out.IsError,
			"content_length", len(out.Text),
		)

		if sink != nil {
			if err := sink(ctx, []byte(ToolResultDelimiter(out))); err != nil {
				return resp, errors.WithMessage(err, "streaming function error")
			}
		}
	}
}

// turn streams one model turn.
func (a *Assistant) turn(ctx context.Context, cfg *Config, history []llms.Message, sink streaming.StreamingFunc, callOpts []llms.CallOption) (*streaming.Turn, error) {
	modelName := a.modelName(cfg)
	started := time.Now()
	defer metricskey.PerfLLMTurn.MeasureSince(started, modelName)

	if cfg.TurnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.TurnTimeout)
		defer cancel()
	}

	if cfg.CallbackHandler != nil {
		cfg.CallbackHandler.OnAssistantLLMCallStart(ctx, a, a.llm, history)
	}
	metricskey.StatsLLMTurns.IncrCounter(1, modelName)
	metricskey.StatsLLMMessagesSent.IncrCounter(float64(len(history)), modelName)

	stream, err := a.llm.StreamCompletion(ctx, history, callOpts...)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to stream content from LLM")
	}
	turn, err := streaming.Drain(ctx, stream, sink)
	if err != nil {
		return nil, err
	}

	metricskey.StatsLLMInputTokens.IncrCounter(float64(turn.InputTokens), modelName)
	metricskey.StatsLLMOutputTokens.IncrCounter(float64(turn.OutputTokens), modelName)

	if cfg.CallbackHandler != nil {
		cfg.CallbackHandler.OnAssistantLLMCallEnd(ctx, a, a.llm, turn)
	}
	return turn, nil
}

func (a *Assistant) modelName(cfg *Config) string {
	if cfg != nil && cfg.Model != "" {
		return cfg.Model
	}
	if a.llm == nil {
		return ""
	}
	return a.llm.GetName()
}
