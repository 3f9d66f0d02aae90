package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/dedbg/dedbg/internal/cli"
	"github.com/dedbg/dedbg/internal/config"
)

const quickStart = `dedbg - remote interactive debugging client

Quick start:
  dedbg use /app -s ws://host:9001      Select a remote node
  dedbg exec "1+1" -s ws://host:9001    Run a command and print the values
  dedbg members -n /app                 List members of a node
  dedbg watch                           Stay connected, stream session events

For help:
  dedbg --help                          All commands and flags
`

func main() {
	// Show quick start if no args provided
	if len(os.Args) == 1 {
		fmt.Print(quickStart)
		return
	}

	// Load configuration from files/environment
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\n", err)
		cfg = config.Default()
	}

	var c cli.CLI

	// Apply config defaults before parsing
	// These will be overridden by CLI flags if specified
	vars := kong.Vars{
		"config_server":  cfg.Defaults.Server,
		"config_format":  cfg.Format,
		"config_timeout": cfg.Defaults.Timeout,
		"config_node":    cfg.Defaults.Node,
	}

	ctx := kong.Parse(&c,
		kong.Name("dedbg"),
		kong.Description("dedbg: client session for a remote interactive debugging protocol"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}),
		vars,
	)

	globals := cli.NewGlobalsWithConfig(&c, cfg)
	if err := ctx.Run(globals); err != nil {
		os.Exit(1)
	}
}
