// Package main is the entry point for the nodeseed CLI.
//
// nodeseed creates virtual machines on Hetzner Cloud, waits for them to
// get an address and bootstraps a configuration-management agent (a Salt
// minion by default) over SSH.
//
// Commands: create, images, sizes, list, destroy, version.
//
// For detailed usage information, run:
//
//	nodeseed --help
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/imamik/nodeseed/cmd/nodeseed/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
