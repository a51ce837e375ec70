package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpllm/assistants"
	"github.com/effective-security/mcpllm/callbacks"
	"github.com/effective-security/mcpllm/chatmodel"
	"github.com/effective-security/mcpllm/mcp"
	"github.com/effective-security/mcpllm/pkg/llmfactory"
	"github.com/effective-security/mcpllm/pkg/llms"
	"github.com/effective-security/mcpllm/providers"
	"github.com/effective-security/mcpllm/store"
	"github.com/effective-security/mcpllm/tools/tavily"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
)

type chatCmd struct {
	Server       []string      `short:"s" help:"MCP server to connect, may be repeated. All configured servers are connected if none is given"`
	APIKey       string        `short:"k" name:"api-key" help:"API key of the LLM provider, read from the provider environment variable if empty"`
	Provider     string        `help:"LLM provider: ANTHROPIC, BEDROCK, GOOGLEAI or OPENAI" enum:"ANTHROPIC,BEDROCK,GOOGLEAI,OPENAI" default:"ANTHROPIC"`
	LLMConfig    string        `name:"llm-config" help:"LLM providers configuration file, overrides --provider and --api-key" type:"path"`
	Model        string        `short:"m" help:"Model to use" default:"claude-3-7-sonnet-latest"`
	MaxTokens    int           `short:"t" help:"Maximum tokens of a model turn" default:"4096"`
	Temperature  float64       `help:"Sampling temperature" default:"0.7"`
	System       string        `help:"System prompt template"`
	MaxToolTurns int           `name:"max-tool-turns" help:"Maximum tool invocations per query" default:"25"`
	ToolTimeout  time.Duration `name:"tool-timeout" help:"Timeout of a tool invocation, 0 for none" default:"0s"`
	Query        string        `short:"q" help:"Answer the query and exit"`
	KeepHistory  bool          `name:"keep-history" help:"Send the conversation history with every query"`
	Stats        bool          `help:"Print the statistics of every query"`
	Verbose      bool          `help:"Print the model and tool events"`
}

// assistantName is the key of the model in the assistant_models section of --llm-config.
const assistantName = "mcpllm"

// newModel returns the model, replaced in tests.
var newModel = func(c *chatCmd) (llms.Model, error) {
	if c.LLMConfig != "" {
		f, err := llmfactory.Load(c.LLMConfig)
		if err != nil {
			return nil, err
		}
		return f.AssistantModel(assistantName, c.Model)
	}
	return llmfactory.NewLLM(&llmfactory.ProviderConfig{
		Name:         strings.ToLower(c.Provider),
		Type:         c.Provider,
		Token:        c.APIKey,
		DefaultModel: c.Model,
	}, c.Model)
}

// newConnector returns the MCP connector, replaced in tests.
var newConnector = func() mcp.Connector {
	return mcp.NewClient(
		mcp.WithImplementation("mcpllm", "1.0.0"),
		mcp.WithBuiltin(tavily.ServerName, tavily.NewServer),
	)
}

var exitCommands = map[string]bool{
	"exit": true,
	"quit": true,
	"q":    true,
}

func (c *chatCmd) Run(ctx *runContext) error {
	cfg, err := mcp.LoadConfig(ctx.cli.Config)
	if err != nil {
		return err
	}

	model, err := newModel(c)
	if err != nil {
		return errors.WithMessage(err, "failed to create LLM")
	}

	var handlers []assistants.Callback
	handlers = append(handlers, callbacks.NewPackageLogger(logger))
	if c.Verbose {
		handlers = append(handlers, callbacks.NewPrinter(ctx.Err, callbacks.ModeVerbose))
	}
	var pad *callbacks.Scratchpad
	if c.Stats {
		pad = callbacks.NewScratchpad(callbacks.ModeDefault)
		handlers = append(handlers, pad)
	}

	opts := []assistants.Option{
		assistants.WithModel(c.Model),
		assistants.WithMaxTokens(c.MaxTokens),
		assistants.WithTemperature(c.Temperature),
		assistants.WithMaxToolTurns(c.MaxToolTurns),
		assistants.WithToolTimeout(c.ToolTimeout),
		assistants.WithCallback(callbacks.NewFanout(handlers...)),
	}
	if c.System != "" {
		opts = append(opts, assistants.WithSystemPrompt(c.System))
	}
	if c.KeepHistory {
		opts = append(opts, assistants.WithStore(store.NewMemoryStore()))
	}

	a := assistants.NewAssistant(model, providers.NewRegistry(cfg, newConnector()), opts...)
	defer func() {
		_ = a.Close()
	}()

	if len(c.Server) > 0 {
		if err := a.Connect(ctx.Context, c.Server...); err != nil {
			return err
		}
	} else {
		connected := a.ConnectAll(ctx.Context)
		if len(connected) == 0 && len(cfg.Servers) > 0 {
			fmt.Fprintln(ctx.Err, errorStyle.Render("No MCP servers connected"))
		}
	}
	fmt.Fprintln(ctx.Err, infoStyle.Render(fmt.Sprintf("Connected servers: %s, tools: %d",
		values.StringsCoalesce(strings.Join(a.Registry().IDs(), ", "), "none"),
		len(a.Tools().Entries()))))

	// one chat for the session, so the history store keeps the conversation
	chatCtx := chatmodel.WithChatContext(ctx.Context, chatmodel.NewChatContext("", nil))
	session := &chatSession{
		assistant: a,
		pad:       pad,
		out:       ctx.Out,
		errOut:    ctx.Err,
	}

	if c.Query != "" {
		return session.ask(chatCtx, c.Query)
	}
	return session.loop(chatCtx, ctx.In)
}

type chatSession struct {
	assistant *assistants.Assistant
	pad       *callbacks.Scratchpad
	out       io.Writer
	errOut    io.Writer
}

// loop reads the queries line by line until EOF or an exit command.
// Failed queries are reported and the loop continues.
func (s *chatSession) loop(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for {
		fmt.Fprint(s.out, promptStyle.Render("> "))
		if !scanner.Scan() {
			fmt.Fprintln(s.out)
			return errors.WithStack(scanner.Err())
		}
		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}
		if exitCommands[strings.ToLower(query)] {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := s.ask(ctx, query); err != nil {
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				return err
			}
			fmt.Fprintln(s.errOut, errorStyle.Render("Error: "+err.Error()))
		}
	}
}

// ask answers one query, streaming the chunks to the output.
func (s *chatSession) ask(ctx context.Context, query string) error {
	if s.pad != nil {
		s.pad.StartRun(ctx)
	}

	_, err := s.assistant.Query(ctx, query, func(_ context.Context, chunk []byte) error {
		return writeString(s.out, renderChunk(string(chunk)))
	})
	fmt.Fprintln(s.out)

	if s.pad != nil {
		stats, report := s.pad.EndRun(ctx)
		if stats != nil {
			logger.ContextKV(ctx, xlog.DEBUG,
				"status", "run_completed",
				"duration", stats.Duration.String(),
				"assistant_calls", stats.AssistantCalls,
				"tool_calls", stats.ToolsCalls,
			)
		}
		if len(report) > 0 {
			fmt.Fprintln(s.errOut, infoStyle.Render(string(report)))
		}
	}
	if err != nil {
		if errors.Is(err, assistants.ErrTooManyToolTurns) {
			return errors.WithMessage(err, "the model kept requesting tools")
		}
		return err
	}
	return nil
}
