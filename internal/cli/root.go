// Package cli wires the duel pipeline together for the command line: load
// the config, provision both runs, serve the HTTP API, and persist snapshots
// until the duel settles.
package cli

import (
	"context"
	"fmt"
	"strings"
)

func Run(ctx context.Context, args []string) {
	if len(args) < 1 {
		printUsage()
		return
	}

	switch strings.TrimSpace(args[0]) {
	case "duel":
		runDuel(ctx, args[1:])
	case "snapshots":
		listSnapshots(ctx, args[1:])
	case "providers":
		listProviders()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Printf("unknown command %q\n\n", args[0])
		printUsage()
	}
}
