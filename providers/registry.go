package providers

import (
	"context"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpllm/mcp"
	"github.com/effective-security/mcpllm/pkg/metricskey"
	"github.com/effective-security/xlog"
	"golang.org/x/sync/errgroup"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpllm", "providers")

// Provider is a connected tool provider.
type Provider struct {
	// ID is unique within the registry.
	ID string
	// Session is the connection handle.
	Session mcp.Session
	// Tools are discovered at connect time, in the order the provider listed them.
	Tools []mcp.ToolDescriptor
}

// Registry tracks connected providers and their tools.
// It is safe for concurrent use.
type Registry struct {
	cfg       *mcp.Config
	connector mcp.Connector

	lock      sync.RWMutex
	providers map[string]*Provider
	closed    bool
}

// NewRegistry returns a registry that launches providers described by cfg.
// cfg may be nil when providers are only added with Register.
func NewRegistry(cfg *mcp.Config, connector mcp.Connector) *Registry {
	if connector == nil {
		connector = mcp.NewClient()
	}
	return &Registry{
		cfg:       cfg,
		connector: connector,
		providers: map[string]*Provider{},
	}
}

// Config returns the provider configuration.
func (r *Registry) Config() *mcp.Config {
	return r.cfg
}

// Connect launches the provider with the given id and lists its tools.
// An already connected provider is returned as is.
func (r *Registry) Connect(ctx context.Context, id string) (*Provider, error) {
	if p := r.provider(id); p != nil {
		return p, nil
	}
	if r.cfg == nil {
		return nil, errors.Mark(errors.Newf("server '%s' not found in configuration", id), mcp.ErrConfiguration)
	}
	sc, err := r.cfg.Server(id)
	if err != nil {
		return nil, err
	}

	s, err := r.connector.Connect(ctx, id, sc)
	if err != nil {
		metricskey.StatsProvidersFailed.IncrCounter(1, id)
		return nil, err
	}
	p, err := r.Register(ctx, id, s)
	if err != nil {
		metricskey.StatsProvidersFailed.IncrCounter(1, id)
		return nil, err
	}
	return p, nil
}

// Register adds an established session under id and discovers its tools.
// The session is closed if discovery fails.
func (r *Registry) Register(ctx context.Context, id string, s mcp.Session) (*Provider, error) {
	list, err := s.ListTools(ctx)
	if err != nil {
		_ = s.Close()
		return nil, errors.Mark(errors.WithMessagef(err, "server %q: failed to list tools", id), mcp.ErrConnection)
	}

	p := &Provider{ID: id, Session: s, Tools: list}

	r.lock.Lock()
	if r.closed {
		r.lock.Unlock()
		_ = s.Close()
		return nil, errors.Newf("server %q: registry is closed", id)
	}
	old := r.providers[id]
	r.providers[id] = p
	r.lock.Unlock()

	if old != nil && old.Session != s {
		_ = old.Session.Close()
	}

	metricskey.StatsProvidersConnected.IncrCounter(1, id)
	logger.ContextKV(ctx, xlog.INFO,
		"status", "provider_connected",
		"server", id,
		"tools", len(list),
	)
	return p, nil
}

// ConnectServers connects the explicitly requested providers concurrently.
// The first failure is returned.
func (r *Registry) ConnectServers(ctx context.Context, ids ...string) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		g.Go(func() error {
			_, err := r.Connect(gctx, id)
			return err
		})
	}
	return g.Wait()
}

// ConnectAll connects every configured provider concurrently.
// Failures are logged and skipped, the ids of connected providers are returned sorted.
func (r *Registry) ConnectAll(ctx context.Context) []string {
	if r.cfg == nil {
		return r.IDs()
	}

	var g errgroup.Group
	for _, id := range r.cfg.ServerIDs() {
		g.Go(func() error {
			if _, err := r.Connect(ctx, id); err != nil {
				logger.ContextKV(ctx, xlog.ERROR,
					"status", "connect_failed",
					"server", id,
					"err", err.Error(),
				)
			}
			return nil
		})
	}
	_ = g.Wait()

	return r.IDs()
}

// Session returns the active session of the provider.
func (r *Registry) Session(id string) (mcp.Session, bool) {
	p := r.provider(id)
	if p == nil {
		return nil, false
	}
	return p.Session, true
}

// IDs returns the sorted ids of connected providers.
func (r *Registry) IDs() []string {
	r.lock.RLock()
	defer r.lock.RUnlock()

	ids := make([]string, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Providers returns a snapshot of connected providers sorted by id.
func (r *Registry) Providers() []*Provider {
	r.lock.RLock()
	defer r.lock.RUnlock()

	list := make([]*Provider, 0, len(r.providers))
	for _, p := range r.providers {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].ID < list[j].ID
	})
	return list
}

// Listings returns the tool descriptors of each connected provider.
func (r *Registry) Listings() map[string][]mcp.ToolDescriptor {
	r.lock.RLock()
	defer r.lock.RUnlock()

	m := make(map[string][]mcp.ToolDescriptor, len(r.providers))
	for id, p := range r.providers {
		m[id] = p.Tools
	}
	return m
}

// Disconnect closes and removes the provider.
func (r *Registry) Disconnect(id string) error {
	r.lock.Lock()
	p := r.providers[id]
	delete(r.providers, id)
	r.lock.Unlock()

	if p == nil {
		return nil
	}
	return p.Session.Close()
}

// Close closes all sessions. It is safe to call multiple times.
func (r *Registry) Close() error {
	r.lock.Lock()
	list := r.providers
	r.providers = map[string]*Provider{}
	r.closed = true
	r.lock.Unlock()

	var errs error
	for id, p := range list {
		if err := p.Session.Close(); err != nil {
			logger.KV(xlog.WARNING,
				"status", "close_failed",
				"server", id,
				"err", err.Error(),
			)
			errs = errors.CombineErrors(errs, errors.WithMessagef(err, "server %q", id))
		}
	}
	return errs
}

func (r *Registry) provider(id string) *Provider {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.providers[id]
}
