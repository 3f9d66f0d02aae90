package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/dedbg/dedbg/internal/config"
	"github.com/dedbg/dedbg/internal/session"
)

// CLI is the root command tree
type CLI struct {
	Server  string `short:"s" default:"${config_server}" help:"Debug server address (ws://, wss://, http(s):// accepted)"`
	Format  string `short:"f" enum:"auto,text,table,ndjson" default:"${config_format}" help:"Output format"`
	Timeout string `default:"${config_timeout}" help:"Reply timeout for commands that set no deadline"`
	Quiet   bool   `short:"q" help:"Suppress informational output"`
	Verbose bool   `short:"v" help:"Verbose debug logging"`

	Use     UseCmd     `cmd:"" help:"Select the remote node used by subsequent commands"`
	Exec    ExecCmd    `cmd:"" help:"Execute a debugger command on the current node"`
	Members MembersCmd `cmd:"" help:"List members of the current node"`
	List    ListCmd    `cmd:"" help:"List the remote node tree"`
	Watch   WatchCmd   `cmd:"" help:"Stay connected and report session lifecycle events"`
	Config  ConfigCmd  `cmd:"" help:"Inspect configuration"`
}

// Globals carries resolved settings and writers into every command
type Globals struct {
	Server  string
	Format  string
	Timeout time.Duration
	Retry   time.Duration
	Node    string
	Quiet   bool
	Verbose bool
	Stdout  io.Writer
	Stderr  io.Writer
	Config  *config.Config

	logger *sessionLogger
}

// NewGlobalsWithConfig resolves flags against config fallbacks
func NewGlobalsWithConfig(c *CLI, cfg *config.Config) *Globals {
	g := &Globals{
		Server:  c.Server,
		Format:  resolveFormat(c.Format, os.Stdout),
		Timeout: parseDurationOr(c.Timeout, cfg.ReplyTimeout()),
		Retry:   parseDurationOr(cfg.Defaults.Retry, time.Second),
		Node:    cfg.Defaults.Node,
		Quiet:   c.Quiet || cfg.Quiet,
		Verbose: c.Verbose || cfg.Verbose,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Config:  cfg,
	}
	g.logger = newSessionLogger(g.Verbose, g.Server)
	return g
}

// Debug logs a verbose diagnostic line; no-op unless --verbose is set
func (g *Globals) Debug(format string, args ...interface{}) {
	if g.logger != nil {
		g.logger.Debug(format, args...)
	}
}

// resolveFormat picks a concrete format for "auto": tables for humans on a
// terminal, NDJSON for pipes and agents.
func resolveFormat(format string, stdout *os.File) string {
	if format != "auto" && format != "" {
		return format
	}
	if isatty.IsTerminal(stdout.Fd()) || isatty.IsCygwinTerminal(stdout.Fd()) {
		return "table"
	}
	return "ndjson"
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

// openSession dials the configured server and waits for the first
// connection, honoring ctx for early abort.
func openSession(ctx context.Context, globals *Globals, opts ...session.Option) (*session.Session, error) {
	base := []session.Option{
		session.WithDefaultTimeout(globals.Timeout),
		session.WithRetryDelay(globals.Retry),
	}
	if globals.Verbose && globals.logger != nil && globals.logger.sugared != nil {
		base = append(base, session.WithObserver(session.NewLogObserver(globals.logger.sugared)))
	}
	s, err := session.New(globals.Server, append(base, opts...)...)
	if err != nil {
		return nil, err
	}
	globals.Debug("session opened against %s", s.Addr())

	if err := waitConnected(ctx, s, globals.Timeout); err != nil {
		s.Close()
		return nil, err
	}
	globals.Debug("connected")
	return s, nil
}

// waitConnected polls for the first successful connection. One-shot
// commands fail fast instead of retrying forever.
func waitConnected(ctx context.Context, s *session.Session, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()
	for {
		if s.IsConnected() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("no connection to %s within %s", s.Addr(), timeout)
		case <-tick.C:
		}
	}
}
