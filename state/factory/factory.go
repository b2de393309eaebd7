// Package factory builds the snapshot store named by the environment.
package factory

import (
	"fmt"
	"strings"
	"time"

	"github.com/agentduel/agentduel/internal/config"
	"github.com/agentduel/agentduel/state"
	redisstore "github.com/agentduel/agentduel/state/redis"
	sqlitestore "github.com/agentduel/agentduel/state/sqlite"
)

// FromEnv resolves the snapshot backend from DUEL_STATE_BACKEND: "sqlite"
// (default) or "redis".
func FromEnv() (state.Store, error) {
	backend := strings.ToLower(config.Getenv("DUEL_STATE_BACKEND", "sqlite"))
	switch backend {
	case "sqlite":
		path := config.Getenv("DUEL_SQLITE_PATH", "./.agentduel/state.db")
		return sqlitestore.New(path)

	case "redis":
		addr := config.Getenv("DUEL_REDIS_ADDR", "127.0.0.1:6379")
		opts := []redisstore.Option{
			redisstore.WithTTL(config.GetenvDuration("DUEL_REDIS_TTL", 24*time.Hour)),
			redisstore.WithDB(config.GetenvInt("DUEL_REDIS_DB", 0)),
		}
		if password := config.Getenv("DUEL_REDIS_PASSWORD", ""); password != "" {
			opts = append(opts, redisstore.WithPassword(password))
		}
		if prefix := config.Getenv("DUEL_REDIS_PREFIX", ""); prefix != "" {
			opts = append(opts, redisstore.WithPrefix(prefix))
		}
		return redisstore.New(addr, opts...)

	default:
		return nil, fmt.Errorf("unsupported DUEL_STATE_BACKEND %q (use sqlite or redis)", backend)
	}
}
