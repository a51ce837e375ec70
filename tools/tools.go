package tools

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	"gopkg.in/yaml.v3"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpllm", "tools")

var (
	// ErrUnknownTool is returned when a namespaced id is not in the catalog.
	ErrUnknownTool = errors.New("unknown tool")
	// ErrProviderNotConnected is returned when the provider of a tool has no active session.
	ErrProviderNotConnected = errors.New("provider not connected")
	// ErrToolTransport marks a failed call to the provider session,
	// as opposed to a tool error reported by the provider.
	ErrToolTransport = errors.New("tool transport error")
)

// Outcome is the normalized result of a tool invocation.
type Outcome struct {
	// Text is the newline-joined text content of the result.
	Text string
	// IsError is set when the provider reported a tool error.
	IsError bool
}

// ErrorOutcome returns an error-flagged outcome with the error message as text.
func ErrorOutcome(err error) *Outcome {
	return &Outcome{Text: err.Error(), IsError: true}
}

// Callback observes tool invocations.
type Callback interface {
	OnToolStart(ctx context.Context, tool string, args map[string]any)
	OnToolEnd(ctx context.Context, tool string, args map[string]any, out *Outcome)
	OnToolError(ctx context.Context, tool string, args map[string]any, err error)
}

type toolDescription struct {
	Name        string `json:"Name" yaml:"Name"`
	Provider    string `json:"Provider" yaml:"Provider"`
	Description string `json:"Description,omitempty" yaml:"Description,omitempty"`
}

type toolsDescription struct {
	Tools []toolDescription `json:"Tools" yaml:"Tools"`
}

// GetDescriptions returns the YAML listing of the catalog tools.
func GetDescriptions(c *Catalog) string {
	var d toolsDescription
	for _, e := range c.Entries() {
		d.Tools = append(d.Tools, toolDescription{
			Name:        e.ID,
			Provider:    e.Provider,
			Description: strings.TrimSpace(e.Description),
		})
	}
	b, err := yaml.Marshal(d)
	if err != nil {
		return ""
	}
	return string(b)
}
