package tools

import (
	"sort"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpllm/mcp"
	"github.com/effective-security/mcpllm/pkg/llms"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
)

// Separator joins the provider part and the tool name of a namespaced id.
const Separator = "__"

// Normalize returns the provider part of namespaced ids:
// every run of "-" and "_" becomes a single "_" and trailing ones are dropped,
// so the result never contains the separator nor ends next to it.
// The mapping is not invertible, "my-fs", "my__fs" and "my_fs" all normalize to "my_fs".
func Normalize(providerID string) string {
	var b strings.Builder
	b.Grow(len(providerID))
	run := false
	for _, r := range providerID {
		if r == '-' || r == '_' {
			if !run {
				b.WriteByte('_')
			}
			run = true
			continue
		}
		run = false
		b.WriteRune(r)
	}
	if s := strings.TrimRight(b.String(), "_"); s != "" {
		return s
	}
	return "provider"
}

// Entry is one namespaced tool.
type Entry struct {
	// ID is the namespaced id advertised to the model.
	ID string
	// Provider is the provider id as registered.
	Provider string
	// Tool is the native tool name.
	Tool        string
	Description string
	InputSchema map[string]any
}

type pair struct {
	provider string
	tool     string
}

// Catalog is the namespaced tool catalog with its reverse lookup table.
// A Catalog is immutable, rebuild it when the provider set changes.
type Catalog struct {
	entries []Entry
	byID    map[string]int
	byPair  map[pair]string
}

// Build returns a fresh catalog for the tools listed by each provider.
// Providers are processed in sorted id order and tools in listed order,
// so the result is deterministic.
// Two providers normalizing to the same prefix are disambiguated
// with a numeric suffix on the later one: "my_fs", "my_fs_2".
func Build(listings map[string][]mcp.ToolDescriptor) *Catalog {
	c := &Catalog{
		byID:   map[string]int{},
		byPair: map[pair]string{},
	}

	ids := make([]string, 0, len(listings))
	for id := range listings {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	prefixes := map[string]string{}
	for _, provider := range ids {
		base := Normalize(provider)
		prefix := base
		for n := 2; ; n++ {
			if _, taken := prefixes[prefix]; !taken {
				break
			}
			prefix = base + "_" + strconv.Itoa(n)
		}
		prefixes[prefix] = provider
		if prefix != base {
			logger.KV(xlog.WARNING,
				"status", "provider_prefix_collision",
				"provider", provider,
				"prefix", prefix,
				"owner", prefixes[base],
			)
		}

		for _, td := range listings[provider] {
			key := pair{provider: provider, tool: td.Name}
			if _, dup := c.byPair[key]; dup {
				logger.KV(xlog.WARNING,
					"status", "duplicate_tool_dropped",
					"provider", provider,
					"tool", td.Name,
				)
				continue
			}
			id := prefix + Separator + td.Name
			if _, taken := c.byID[id]; taken {
				logger.KV(xlog.WARNING,
					"status", "duplicate_tool_id_dropped",
					"provider", provider,
					"tool", td.Name,
					"id", id,
				)
				continue
			}

			c.byID[id] = len(c.entries)
			c.byPair[key] = id
			c.entries = append(c.entries, Entry{
				ID:          id,
				Provider:    provider,
				Tool:        td.Name,
				Description: td.Description,
				InputSchema: td.InputSchema,
			})
		}
	}
	return c
}

// Len returns the number of tools in the catalog.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// Entries returns the catalog entries in build order.
func (c *Catalog) Entries() []Entry {
	return append([]Entry(nil), c.entries...)
}

// Tools returns the tool definitions advertised to the model.
func (c *Catalog) Tools() []llms.Tool {
	list := make([]llms.Tool, 0, len(c.entries))
	for _, e := range c.entries {
		schema := e.InputSchema
		if schema == nil {
			schema = map[string]any{"type": "object"}
		}
		list = append(list, llms.Tool{
			Name:        e.ID,
			Description: values.StringsCoalesce(e.Description, "Tool from "+e.Provider),
			InputSchema: schema,
		})
	}
	return list
}

// ID returns the namespaced id of the provider tool.
func (c *Catalog) ID(provider, tool string) (string, bool) {
	id, ok := c.byPair[pair{provider: provider, tool: tool}]
	return id, ok
}

// Resolve returns the provider id and native tool name of a namespaced id.
func (c *Catalog) Resolve(id string) (provider string, tool string, err error) {
	idx, ok := c.byID[id]
	if !ok {
		return "", "", errors.Mark(errors.Newf("tool %q not found", id), ErrUnknownTool)
	}
	e := c.entries[idx]
	return e.Provider, e.Tool, nil
}
