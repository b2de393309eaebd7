package cli

import (
	"strconv"
	"strings"
)

type cliOptions struct {
	configPath string
	addr       string
	duelID     string
	limit      int
}

func parseArgs(args []string) (cliOptions, []string) {
	opts := cliOptions{}
	positional := make([]string, 0, len(args))
	for _, arg := range args {
		switch {
		case strings.HasPrefix(arg, "--config="):
			opts.configPath = strings.TrimSpace(strings.TrimPrefix(arg, "--config="))
		case strings.HasPrefix(arg, "--addr="):
			opts.addr = strings.TrimSpace(strings.TrimPrefix(arg, "--addr="))
		case strings.HasPrefix(arg, "--duel="):
			opts.duelID = strings.TrimSpace(strings.TrimPrefix(arg, "--duel="))
		case strings.HasPrefix(arg, "--limit="):
			if n, err := strconv.Atoi(strings.TrimPrefix(arg, "--limit=")); err == nil {
				opts.limit = n
			}
		default:
			positional = append(positional, arg)
		}
	}
	return opts, positional
}
