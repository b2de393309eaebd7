// Package state persists run snapshots so a finished or restarted duel can
// be replayed without the original push channels.
package state

import (
	"time"

	"github.com/agentduel/agentduel/stream"
)

// SnapshotRecord is one run's persisted projection plus its identity within
// a duel.
type SnapshotRecord struct {
	RunID     string          `json:"runId"`
	DuelID    string          `json:"duelId"`
	Side      string          `json:"side"`
	Provider  string          `json:"provider"`
	Goal      string          `json:"goal"`
	Snapshot  stream.Snapshot `json:"snapshot"`
	CreatedAt *time.Time      `json:"createdAt,omitempty"`
	UpdatedAt *time.Time      `json:"updatedAt,omitempty"`
}
