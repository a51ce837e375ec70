// Command mcpllm chats with a model that can use the tools of MCP servers.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpllm", "cmd")

// cli is the command line of the tool.
type cli struct {
	Config   string `short:"c" help:"MCP servers configuration file, JSON, YAML or TOML" type:"path"`
	LogLevel string `help:"Log level: TRACE, DEBUG, INFO, NOTICE, WARNING, ERROR, CRITICAL" default:"ERROR"`

	Chat    chatCmd    `cmd:"" help:"Chat with the model, using the tools of the connected MCP servers"`
	Servers serversCmd `cmd:"" help:"List the configured MCP servers"`
}

// runContext is bound to the Run methods of the commands.
type runContext struct {
	context.Context
	cli *cli
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

var logLevels = map[string]xlog.LogLevel{
	"TRACE":    xlog.TRACE,
	"DEBUG":    xlog.DEBUG,
	"INFO":     xlog.INFO,
	"NOTICE":   xlog.NOTICE,
	"WARNING":  xlog.WARNING,
	"ERROR":    xlog.ERROR,
	"CRITICAL": xlog.CRITICAL,
}

func (c *cli) AfterApply() error {
	level, ok := logLevels[strings.ToUpper(c.LogLevel)]
	if !ok {
		return errors.Errorf("invalid log level: %s", c.LogLevel)
	}
	xlog.SetGlobalLogLevel(level)
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the command line and returns the exit code.
func run(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) int {
	var c cli
	exitCode := -1
	parser, err := kong.New(&c,
		kong.Name("mcpllm"),
		kong.Description("MCP client that lets a language model call the tools of MCP servers."),
		kong.UsageOnError(),
		kong.Writers(out, errOut),
		kong.Exit(func(code int) { exitCode = code }),
	)
	if err != nil {
		fmt.Fprintln(errOut, err.Error())
		return 1
	}

	kctx, err := parser.Parse(args)
	if exitCode >= 0 {
		// --help
		return exitCode
	}
	if err != nil {
		fmt.Fprintln(errOut, errorStyle.Render(err.Error()))
		return 2
	}

	err = kctx.Run(&runContext{
		Context: ctx,
		cli:     &c,
		In:      in,
		Out:     out,
		Err:     errOut,
	})
	if err != nil {
		fmt.Fprintln(errOut, errorStyle.Render("Error: "+err.Error()))
		return 1
	}
	return 0
}
