package mcp

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// BuiltinPrefix marks the command of a provider served in process,
// for example "builtin:websearch".
const BuiltinPrefix = "builtin:"

// ServerFactory returns a new in-process provider.
type ServerFactory func() (*mcpsdk.Server, error)

// WithBuiltin registers an in-process provider,
// configured servers with the "builtin:<name>" command connect to it.
func WithBuiltin(name string, factory ServerFactory) ClientOption {
	return func(c *Client) {
		if c.builtins == nil {
			c.builtins = make(map[string]ServerFactory)
		}
		c.builtins[name] = factory
	}
}

// BuiltinName returns the name of the in-process provider of the command.
func BuiltinName(command string) (string, bool) {
	return strings.CutPrefix(command, BuiltinPrefix)
}

// transportFor returns the transport of the provider,
// in-memory for builtin providers.
func (c *Client) transportFor(ctx context.Context, cfg *ServerConfig) (mcpsdk.Transport, error) {
	name, ok := BuiltinName(cfg.Command)
	if !ok {
		return c.transport(ctx, cfg)
	}

	factory, ok := c.builtins[name]
	if !ok {
		return nil, errors.Newf("unknown builtin server %q", name)
	}
	server, err := factory()
	if err != nil {
		return nil, errors.WithMessagef(err, "builtin server %q", name)
	}

	serverTransport, clientTransport := mcpsdk.NewInMemoryTransports()
	// the server session ends when the client closes the connection
	if _, err = server.Connect(ctx, serverTransport, nil); err != nil {
		return nil, errors.Wrapf(err, "builtin server %q", name)
	}
	return clientTransport, nil
}
