package tools

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpllm/mcp"
	"github.com/effective-security/mcpllm/pkg/metricskey"
	"github.com/effective-security/x/slices"
	"github.com/effective-security/xlog"
)

// SessionSource returns the active session of a provider.
type SessionSource interface {
	Session(provider string) (mcp.Session, bool)
}

// Invoker routes namespaced tool requests to provider sessions.
type Invoker struct {
	catalog  *Catalog
	sessions SessionSource
	timeout  time.Duration
	callback Callback
}

// InvokerOption configures the Invoker
type InvokerOption func(*Invoker)

// WithTimeout bounds each tool call, zero means no deadline.
// An expired deadline produces an error-flagged outcome.
func WithTimeout(d time.Duration) InvokerOption {
	return func(i *Invoker) {
		i.timeout = d
	}
}

// WithCallback sets the tool callback.
func WithCallback(cb Callback) InvokerOption {
	return func(i *Invoker) {
		i.callback = cb
	}
}

// NewInvoker returns an invoker over the catalog built from the sessions' providers.
func NewInvoker(catalog *Catalog, sessions SessionSource, opts ...InvokerOption) *Invoker {
	i := &Invoker{
		catalog:  catalog,
		sessions: sessions,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Catalog returns the catalog the invoker resolves against.
func (i *Invoker) Catalog() *Catalog {
	return i.catalog
}

// Invoke resolves the namespaced id and calls the tool.
// Tool errors reported by the provider are returned as an error-flagged outcome.
// Errors are returned only for ErrUnknownTool, ErrProviderNotConnected,
// and failed session calls marked with ErrToolTransport.
func (i *Invoker) Invoke(ctx context.Context, id string, args map[string]any) (*Outcome, error) {
	provider, name, err := i.catalog.Resolve(id)
	if err != nil {
		metricskey.StatsToolCallsNotFound.IncrCounter(1, id)
		logger.ContextKV(ctx, xlog.WARNING,
			"status", "tool_not_found",
			"tool", id,
		)
		return nil, err
	}

	session, ok := i.sessions.Session(provider)
	if !ok || session == nil {
		metricskey.StatsToolCallsFailed.IncrCounter(1, id)
		logger.ContextKV(ctx, xlog.WARNING,
			"status", "provider_not_connected",
			"tool", id,
			"provider", provider,
		)
		return nil, errors.Mark(errors.Newf("provider %q for tool %q is not connected", provider, id), ErrProviderNotConnected)
	}

	if args == nil {
		args = map[string]any{}
	}
	if i.callback != nil {
		i.callback.OnToolStart(ctx, id, args)
	}

	started := time.Now()
	defer metricskey.PerfToolCall.MeasureSince(started, id)

	callCtx := ctx
	if i.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	res, err := session.CallTool(callCtx, name, args)
	if err != nil {
		metricskey.StatsToolCallsFailed.IncrCounter(1, id)
		if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			out := &Outcome{
				Text:    "tool call timed out after " + i.timeout.String(),
				IsError: true,
			}
			logger.ContextKV(ctx, xlog.WARNING,
				"status", "tool_timeout",
				"tool", id,
				"timeout", i.timeout,
			)
			if i.callback != nil {
				i.callback.OnToolEnd(ctx, id, args, out)
			}
			return out, nil
		}

		logger.ContextKV(ctx, xlog.ERROR,
			"status", "tool_call_failed",
			"tool", id,
			"err", err.Error(),
		)
		if i.callback != nil {
			i.callback.OnToolError(ctx, id, args, err)
		}
		return nil, errors.Mark(err, ErrToolTransport)
	}

	out := NormalizeResult(res)
	if out.IsError {
		metricskey.StatsToolCallsFailed.IncrCounter(1, id)
		logger.ContextKV(ctx, xlog.DEBUG,
			"status", "tool_error",
			"tool", id,
			"result", slices.StringUpto(out.Text, 256),
		)
	} else {
		metricskey.StatsToolCallsSucceeded.IncrCounter(1, id)
	}
	if i.callback != nil {
		i.callback.OnToolEnd(ctx, id, args, out)
	}
	return out, nil
}

// NormalizeResult joins the text fragments of a raw result with newlines
// and carries over the provider's error flag.
func NormalizeResult(res *mcp.CallResult) *Outcome {
	if res == nil {
		return &Outcome{}
	}
	var texts []string
	for _, f := range res.Content {
		if f.HasText() {
			texts = append(texts, f.Text)
		}
	}
	return &Outcome{
		Text:    strings.Join(texts, "\n"),
		IsError: res.IsError,
	}
}
