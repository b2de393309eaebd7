package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/agentduel/agentduel/state"
	"github.com/agentduel/agentduel/stream"
)

//go:embed schema.sql
var schemaSQL string

const defaultLimit = 50

type Store struct {
	db *sql.DB
}

func New(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite state path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state db dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open state sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable wal: %w", err)
	}
	if _, err := db.ExecContext(context.Background(), schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize state schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) SaveSnapshot(ctx context.Context, record state.SnapshotRecord) error {
	if record.RunID == "" {
		return fmt.Errorf("runId is required")
	}
	now := time.Now().UTC()
	if record.UpdatedAt == nil {
		record.UpdatedAt = &now
	}
	if record.CreatedAt == nil {
		record.CreatedAt = &now
	}
	snap, err := json.Marshal(record.Snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	const q = `
INSERT INTO run_snapshots (run_id, duel_id, side, provider, goal, snapshot, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (run_id) DO UPDATE SET
  duel_id = excluded.duel_id,
  side = excluded.side,
  provider = excluded.provider,
  goal = excluded.goal,
  snapshot = excluded.snapshot,
  updated_at = excluded.updated_at;
`
	_, err = s.db.ExecContext(
		ctx,
		q,
		record.RunID,
		record.DuelID,
		record.Side,
		record.Provider,
		record.Goal,
		string(snap),
		record.CreatedAt.UTC().Format(time.RFC3339Nano),
		record.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

func (s *Store) LoadSnapshot(ctx context.Context, runID string) (state.SnapshotRecord, error) {
	if runID == "" {
		return state.SnapshotRecord{}, fmt.Errorf("runId is required")
	}
	const q = `
SELECT run_id, duel_id, side, provider, goal, snapshot, created_at, updated_at
FROM run_snapshots WHERE run_id = ?;
`
	record, err := scanRecord(s.db.QueryRowContext(ctx, q, runID))
	if err == sql.ErrNoRows {
		return state.SnapshotRecord{}, state.ErrNotFound
	}
	if err != nil {
		return state.SnapshotRecord{}, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return record, nil
}

func (s *Store) ListSnapshots(ctx context.Context, query state.ListQuery) ([]state.SnapshotRecord, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	offset := query.Offset
	if offset < 0 {
		offset = 0
	}

	predicate := "1=1"
	args := []any{}
	if query.DuelID != "" {
		predicate = "duel_id = ?"
		args = append(args, query.DuelID)
	}
	args = append(args, limit, offset)

	q := fmt.Sprintf(`
SELECT run_id, duel_id, side, provider, goal, snapshot, created_at, updated_at
FROM run_snapshots
WHERE %s
ORDER BY updated_at DESC
LIMIT ? OFFSET ?;
`, predicate)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	out := make([]state.SnapshotRecord, 0, limit)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate snapshots: %w", err)
	}
	return out, nil
}

func scanRecord(scanner interface{ Scan(dest ...any) error }) (state.SnapshotRecord, error) {
	var (
		record  state.SnapshotRecord
		snap    string
		created string
		updated string
	)
	if err := scanner.Scan(
		&record.RunID,
		&record.DuelID,
		&record.Side,
		&record.Provider,
		&record.Goal,
		&snap,
		&created,
		&updated,
	); err != nil {
		return state.SnapshotRecord{}, err
	}
	if snap != "" {
		var parsed stream.Snapshot
		if err := json.Unmarshal([]byte(snap), &parsed); err == nil {
			record.Snapshot = parsed
		}
	}
	if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
		record.CreatedAt = &ts
	}
	if ts, err := time.Parse(time.RFC3339Nano, updated); err == nil {
		record.UpdatedAt = &ts
	}
	return record, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

var _ state.Store = (*Store)(nil)
