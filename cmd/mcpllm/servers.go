package main

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpllm/mcp"
	"github.com/effective-security/mcpllm/pkg/llmutils"
)

type serversCmd struct {
	Format string `help:"Output format: text, json or yaml" enum:"text,json,yaml" default:"text"`
}

type serverInfo struct {
	ID      string   `json:"id" yaml:"id"`
	Command string   `json:"command" yaml:"command"`
	Args    []string `json:"args,omitempty" yaml:"args,omitempty"`
}

type serversList struct {
	Location string        `json:"location" yaml:"location"`
	Servers  []*serverInfo `json:"servers" yaml:"servers"`
}

func (c *serversCmd) Run(ctx *runContext) error {
	cfg, err := mcp.LoadConfig(ctx.cli.Config)
	if err != nil {
		return err
	}

	list := &serversList{Location: cfg.Location}
	for _, id := range cfg.ServerIDs() {
		info := &serverInfo{ID: id}
		if sc := cfg.Servers[id]; sc != nil {
			info.Command = sc.Command
			info.Args = sc.Args
		}
		list.Servers = append(list.Servers, info)
	}

	switch c.Format {
	case "json":
		return writeString(ctx.Out, llmutils.EnsureEndsWithNewline(llmutils.ToJSONIndent(list)))
	case "yaml":
		return writeString(ctx.Out, llmutils.ToYAML(list))
	case "text", "":
	default:
		return errors.Errorf("unsupported format: %s", c.Format)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Configuration: %s\n", list.Location)
	if len(list.Servers) == 0 {
		sb.WriteString("No servers configured\n")
	}
	for _, s := range list.Servers {
		fmt.Fprintf(&sb, "  %s: %s\n", s.ID, strings.TrimSpace(s.Command+" "+strings.Join(s.Args, " ")))
	}
	return writeString(ctx.Out, sb.String())
}
