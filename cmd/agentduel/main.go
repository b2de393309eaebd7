package main

import (
	"context"
	"os"

	"github.com/agentduel/agentduel/internal/cli"
)

func main() {
	cli.Run(context.Background(), os.Args[1:])
}
