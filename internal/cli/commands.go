package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/dedbg/dedbg/internal/config"
	"github.com/dedbg/dedbg/internal/output"
	"github.com/dedbg/dedbg/internal/pending"
	"github.com/dedbg/dedbg/internal/session"
	"github.com/dedbg/dedbg/internal/wire"
)

// commandContext cancels on SIGINT/SIGTERM for graceful shutdown.
func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// requestContext bounds one request with the configured reply timeout. The
// command context already carries a cancellation source, which suppresses
// the session-level default, so the bound is applied here.
func requestContext(ctx context.Context, globals *Globals) (context.Context, context.CancelFunc) {
	if globals.Timeout > 0 {
		return context.WithTimeout(ctx, globals.Timeout)
	}
	return context.WithCancel(ctx)
}

// emitSendError maps session errors onto stable error codes.
func emitSendError(globals *Globals, err error) error {
	var fault *wire.RemoteFault
	switch {
	case errors.As(err, &fault):
		return outputErrorCommon(globals, "REMOTE_FAULT", fault.Message, fault.Type)
	case errors.Is(err, pending.ErrCancelled):
		return outputErrorCommon(globals, "CANCELLED", "request cancelled before a reply arrived",
			"the connection dropped or the timeout elapsed")
	case errors.Is(err, session.ErrNotConnected):
		return outputErrorCommon(globals, "NOT_CONNECTED", err.Error())
	default:
		return outputErrorCommon(globals, "SEND_FAILED", err.Error())
	}
}

// UseCmd selects the remote node used by subsequent commands
type UseCmd struct {
	Node string `arg:"" help:"Node path to select (e.g. /app/db)"`
}

// Run executes the use command
func (c *UseCmd) Run(globals *Globals) error {
	ctx, cancel := commandContext()
	defer cancel()

	s, err := openSession(ctx, globals)
	if err != nil {
		return outputErrorCommon(globals, "CONNECT_FAILED", err.Error())
	}
	defer s.Close()

	rctx, rcancel := requestContext(ctx, globals)
	defer rcancel()

	if err := s.Use(rctx, c.Node); err != nil {
		return emitSendError(globals, err)
	}
	if !globals.Quiet {
		fmt.Fprintf(globals.Stdout, "using %s\n", s.Path())
	}
	return nil
}

// ExecCmd executes a debugger command on the current node
type ExecCmd struct {
	Node    string `short:"n" default:"${config_node}" help:"Node to select before executing"`
	Command string `arg:"" help:"Command text to execute"`
}

// Run executes the exec command
func (c *ExecCmd) Run(globals *Globals) error {
	ctx, cancel := commandContext()
	defer cancel()

	s, err := openSession(ctx, globals)
	if err != nil {
		return outputErrorCommon(globals, "CONNECT_FAILED", err.Error())
	}
	defer s.Close()

	rctx, rcancel := requestContext(ctx, globals)
	defer rcancel()

	if c.Node != "" {
		if err := s.Use(rctx, c.Node); err != nil {
			return emitSendError(globals, err)
		}
	}

	globals.Debug("executing %q on %s", c.Command, s.Path())
	values, err := s.Execute(rctx, c.Command)
	if err != nil {
		return emitSendError(globals, err)
	}
	return emitValues(globals, values)
}

// MembersCmd lists members of the current node
type MembersCmd struct {
	Node string `short:"n" default:"${config_node}" help:"Node to select before listing"`
}

// Run executes the members command
func (c *MembersCmd) Run(globals *Globals) error {
	ctx, cancel := commandContext()
	defer cancel()

	s, err := openSession(ctx, globals)
	if err != nil {
		return outputErrorCommon(globals, "CONNECT_FAILED", err.Error())
	}
	defer s.Close()

	rctx, rcancel := requestContext(ctx, globals)
	defer rcancel()

	if c.Node != "" {
		if err := s.Use(rctx, c.Node); err != nil {
			return emitSendError(globals, err)
		}
	}

	values, err := s.Members(rctx)
	if err != nil {
		return emitSendError(globals, err)
	}
	return emitValues(globals, values)
}

// ListCmd lists the remote node tree
type ListCmd struct {
	Node      string `short:"n" default:"${config_node}" help:"Node to select before listing"`
	Recursive bool   `short:"r" help:"List nodes recursively"`
}

// Run executes the list command
func (c *ListCmd) Run(globals *Globals) error {
	ctx, cancel := commandContext()
	defer cancel()

	s, err := openSession(ctx, globals)
	if err != nil {
		return outputErrorCommon(globals, "CONNECT_FAILED", err.Error())
	}
	defer s.Close()

	rctx, rcancel := requestContext(ctx, globals)
	defer rcancel()

	if c.Node != "" {
		if err := s.Use(rctx, c.Node); err != nil {
			return emitSendError(globals, err)
		}
	}

	doc, err := s.List(rctx, c.Recursive)
	if err != nil {
		return emitSendError(globals, err)
	}

	// The listing is returned verbatim; the caller interprets the tree.
	doc.Indent(2)
	if _, err := doc.WriteTo(globals.Stdout); err != nil {
		return outputErrorCommon(globals, "OUTPUT_FAILED", err.Error())
	}
	fmt.Fprintln(globals.Stdout)
	return nil
}

// ConfigCmd groups configuration inspection commands
type ConfigCmd struct {
	Show ConfigShowCmd `cmd:"" help:"Show resolved configuration"`
	Path ConfigPathCmd `cmd:"" help:"Show the configuration file in use"`
}

// ConfigShowCmd prints the resolved configuration
type ConfigShowCmd struct{}

// Run executes the config show command
func (c *ConfigShowCmd) Run(globals *Globals) error {
	cfg := globals.Config
	if globals.Format == "ndjson" {
		return output.NewNDJSONWriter(globals.Stdout).Write(map[string]any{
			"type":    "config",
			"format":  cfg.Format,
			"quiet":   cfg.Quiet,
			"verbose": cfg.Verbose,
			"defaults": map[string]any{
				"server":  cfg.Defaults.Server,
				"node":    cfg.Defaults.Node,
				"timeout": cfg.Defaults.Timeout,
				"retry":   cfg.Defaults.Retry,
			},
		})
	}
	fmt.Fprintln(globals.Stdout, "Current Configuration:")
	fmt.Fprintf(globals.Stdout, "  format: %s\n", cfg.Format)
	fmt.Fprintf(globals.Stdout, "  quiet: %v\n", cfg.Quiet)
	fmt.Fprintf(globals.Stdout, "  verbose: %v\n", cfg.Verbose)
	fmt.Fprintln(globals.Stdout, "Defaults:")
	fmt.Fprintf(globals.Stdout, "  server: %s\n", cfg.Defaults.Server)
	fmt.Fprintf(globals.Stdout, "  node: %s\n", cfg.Defaults.Node)
	fmt.Fprintf(globals.Stdout, "  timeout: %s\n", cfg.Defaults.Timeout)
	fmt.Fprintf(globals.Stdout, "  retry: %s\n", cfg.Defaults.Retry)
	return nil
}

// ConfigPathCmd prints the configuration file location
type ConfigPathCmd struct{}

// Run executes the config path command
func (c *ConfigPathCmd) Run(globals *Globals) error {
	path := config.ConfigFile()
	if globals.Format == "ndjson" {
		return output.NewNDJSONWriter(globals.Stdout).Write(map[string]any{
			"type": "config_path",
			"path": path,
		})
	}
	if path == "" {
		fmt.Fprintln(globals.Stdout, "No configuration file found (using defaults)")
		return nil
	}
	fmt.Fprintf(globals.Stdout, "Config file: %s\n", path)
	return nil
}
