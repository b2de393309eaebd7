package cli

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/agentduel/agentduel/providers/factory"
	"github.com/agentduel/agentduel/state"
	statefactory "github.com/agentduel/agentduel/state/factory"
)

func listSnapshots(ctx context.Context, args []string) {
	opts, positional := parseArgs(args)
	if opts.duelID == "" && len(positional) > 0 {
		opts.duelID = strings.TrimSpace(positional[0])
	}

	store, err := statefactory.FromEnv()
	if err != nil {
		log.Fatalf("state store: %v", err)
	}
	defer store.Close()

	records, err := store.ListSnapshots(ctx, state.ListQuery{
		DuelID: opts.duelID,
		Limit:  opts.limit,
	})
	if err != nil {
		log.Fatalf("list snapshots: %v", err)
	}
	if len(records) == 0 {
		fmt.Println("no stored runs")
		return
	}

	for _, record := range records {
		status := "running"
		switch {
		case record.Snapshot.Error != "":
			status = "failed: " + record.Snapshot.Error
		case record.Snapshot.IsFinished:
			status = "finished"
		}
		fmt.Printf("%s  duel=%s side=%s provider=%s steps=%d  %s\n",
			record.RunID, record.DuelID, record.Side, record.Provider,
			len(record.Snapshot.Steps), status)
	}
}

func listProviders() {
	for _, name := range factory.Names() {
		fmt.Println(name)
	}
}
