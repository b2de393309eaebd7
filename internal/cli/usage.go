package cli

import (
	"fmt"
	"strings"

	"github.com/agentduel/agentduel/providers/factory"
)

func printUsage() {
	fmt.Println("agentduel - watch two computer-use agents race the same goal")
	fmt.Println("Usage:")
	fmt.Println("  agentduel duel --config=duel.json [--addr=:8080]")
	fmt.Println("  agentduel snapshots [--duel=DUEL_ID] [--limit=20]")
	fmt.Println("  agentduel providers")
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println("  --config=FILE                Duel config (JSON or YAML)")
	fmt.Println("  --addr=HOST:PORT             HTTP listen address (overrides config)")
	fmt.Println()
	fmt.Printf("  available providers: %s\n", strings.Join(factory.Names(), ", "))
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  DUEL_STATE_BACKEND           Snapshot store: sqlite (default) or redis")
	fmt.Println("  DUEL_SQLITE_PATH             SQLite snapshot db path")
	fmt.Println("  DUEL_REDIS_ADDR              Redis address for the redis backend")
	fmt.Println("  DUEL_AUDIT_DB_PATH           Audit trail db path")
	fmt.Println("  DUEL_SESSION_API_KEY         API key for the session backend")
}
