package mcp

//go:generate mockgen -source=session.go -destination=../mocks/mockmcp/mcp_mock.gen.go -package mockmcp

import (
	"context"
	"encoding/json"
	"os/exec"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpllm", "mcp")

// ErrConnection is returned when a provider cannot be launched or the handshake fails.
var ErrConnection = errors.New("connection error")

// Fragment types
const (
	FragmentText     = "text"
	FragmentImage    = "image"
	FragmentAudio    = "audio"
	FragmentResource = "resource"
	FragmentLink     = "resource_link"
)

// ToolDescriptor describes a tool exposed by a provider.
type ToolDescriptor struct {
	// Name is unique within its provider only.
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema,omitempty" yaml:"input_schema,omitempty"`
}

// Fragment is one content item of a tool result.
type Fragment struct {
	Type string
	// Text is set for text fragments and text resources.
	Text string
}

// HasText returns true if the fragment carries text.
func (f Fragment) HasText() bool {
	return f.Type == FragmentText || f.Text != ""
}

// CallResult is the raw result of a tool call.
type CallResult struct {
	Content []Fragment
	// IsError is the provider's own error indicator.
	IsError bool
}

// Session is a connected tool provider.
type Session interface {
	// ListTools returns the tools the provider exposes.
	ListTools(ctx context.Context) ([]ToolDescriptor, error)
	// CallTool invokes a tool by its native name.
	CallTool(ctx context.Context, name string, args map[string]any) (*CallResult, error)
	// Close releases the session, safe to call multiple times.
	Close() error
}

// Connector establishes provider sessions.
type Connector interface {
	// Connect launches the provider described by cfg,
	// the returned error is marked with ErrConnection.
	Connect(ctx context.Context, id string, cfg *ServerConfig) (Session, error)
}

// TransportFunc builds the transport for a provider.
type TransportFunc func(ctx context.Context, cfg *ServerConfig) (mcpsdk.Transport, error)

// Client implements Connector with the MCP SDK client.
type Client struct {
	impl      *mcpsdk.Implementation
	transport TransportFunc
	builtins  map[string]ServerFactory
}

// ClientOption configures the Client
type ClientOption func(*Client)

// WithTransport overrides the transport, by default providers are launched as subprocesses.
func WithTransport(t TransportFunc) ClientOption {
	return func(c *Client) {
		c.transport = t
	}
}

// WithImplementation sets the client name and version sent in the handshake.
func WithImplementation(name, version string) ClientOption {
	return func(c *Client) {
		c.impl = &mcpsdk.Implementation{Name: name, Version: version}
	}
}

// NewClient returns a Connector.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		impl:      &mcpsdk.Implementation{Name: "mcpllm", Version: "dev"},
		transport: CommandTransport,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ Connector = (*Client)(nil)

// Connect implements Connector.
func (c *Client) Connect(ctx context.Context, id string, cfg *ServerConfig) (Session, error) {
	if cfg == nil {
		return nil, errors.Mark(errors.Newf("server %q: missing configuration", id), ErrConfiguration)
	}
	t, err := c.transportFor(ctx, cfg)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "server %q: failed to create transport", id), ErrConnection)
	}

	cs, err := mcpsdk.NewClient(c.impl, nil).Connect(ctx, t, nil)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "server %q: failed to connect", id), ErrConnection)
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"status", "connected",
		"server", id,
		"session", cs.ID(),
	)
	return &session{id: id, cs: cs}, nil
}

// CommandTransport launches the provider as a subprocess talking over stdin/stdout.
// The process is not bound to ctx, it lives until the session is closed.
func CommandTransport(_ context.Context, cfg *ServerConfig) (mcpsdk.Transport, error) {
	if cfg.Command == "" {
		return nil, errors.New("command is required")
	}
	// #nosec G204 -- the command comes from the provider configuration file
	cmd := exec.Command(cfg.Command, cfg.Args...)
	cmd.Env = cfg.Environ()
	return &mcpsdk.CommandTransport{Command: cmd}, nil
}

type session struct {
	id       string
	cs       *mcpsdk.ClientSession
	once     sync.Once
	closeErr error
}

func (s *session) ListTools(ctx context.Context) ([]ToolDescriptor, error) {
	var list []ToolDescriptor
	for tool, err := range s.cs.Tools(ctx, nil) {
		if err != nil {
			return nil, errors.Wrapf(err, "server %q: failed to list tools", s.id)
		}
		list = append(list, ToolDescriptor{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: schemaObject(tool.InputSchema),
		})
	}
	return list, nil
}

func (s *session) CallTool(ctx context.Context, name string, args map[string]any) (*CallResult, error) {
	res, err := s.cs.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "server %q: failed to call tool %q", s.id, name)
	}
	return toCallResult(res), nil
}

func (s *session) Close() error {
	s.once.Do(func() {
		s.closeErr = s.cs.Close()
		logger.KV(xlog.DEBUG,
			"status", "closed",
			"server", s.id,
		)
	})
	return s.closeErr
}

func toCallResult(res *mcpsdk.CallToolResult) *CallResult {
	out := &CallResult{IsError: res.IsError}
	for _, c := range res.Content {
		switch v := c.(type) {
		case *mcpsdk.TextContent:
			out.Content = append(out.Content, Fragment{Type: FragmentText, Text: v.Text})
		case *mcpsdk.ImageContent:
			out.Content = append(out.Content, Fragment{Type: FragmentImage})
		case *mcpsdk.AudioContent:
			out.Content = append(out.Content, Fragment{Type: FragmentAudio})
		case *mcpsdk.ResourceLink:
			out.Content = append(out.Content, Fragment{Type: FragmentLink})
		case *mcpsdk.EmbeddedResource:
			f := Fragment{Type: FragmentResource}
			if v.Resource != nil {
				f.Text = v.Resource.Text
			}
			out.Content = append(out.Content, f)
		}
	}
	return out
}

// schemaObject returns the tool input schema as a JSON object.
func schemaObject(v any) map[string]any {
	switch s := v.(type) {
	case map[string]any:
		return s
	case nil:
		return map[string]any{"type": "object"}
	}
	js, err := json.Marshal(v)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	m := map[string]any{}
	if err = json.Unmarshal(js, &m); err != nil {
		return map[string]any{"type": "object"}
	}
	return m
}
