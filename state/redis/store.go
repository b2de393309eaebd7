// Package redis keeps run snapshots in Redis with a TTL. It suits the
// live-serving path: snapshots are rewritten on every processed event and
// old duels age out on their own.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/agentduel/agentduel/state"
)

const (
	defaultTTL    = 24 * time.Hour
	defaultLimit  = 50
	defaultPrefix = "agentduel"
)

type Store struct {
	client   *goredis.Client
	ttl      time.Duration
	prefix   string
	addr     string
	db       int
	password string
}

type Option func(*Store)

func WithPassword(password string) Option {
	return func(s *Store) {
		s.password = password
	}
}

func WithDB(db int) Option {
	return func(s *Store) {
		s.db = db
	}
}

func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithPrefix(prefix string) Option {
	return func(s *Store) {
		if strings.TrimSpace(prefix) != "" {
			s.prefix = strings.TrimSpace(prefix)
		}
	}
}

func WithClient(client *goredis.Client) Option {
	return func(s *Store) {
		if client != nil {
			s.client = client
		}
	}
}

func New(addr string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(addr) == "" {
		return nil, fmt.Errorf("redis addr is required")
	}

	s := &Store{
		ttl:    defaultTTL,
		prefix: defaultPrefix,
		addr:   addr,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = goredis.NewClient(&goredis.Options{
			Addr:     s.addr,
			Password: s.password,
			DB:       s.db,
		})
	}

	if err := s.client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return s, nil
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

	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.runKey(record.RunID), string(raw), s.ttl)
	if record.DuelID != "" {
		idx := s.duelIndexKey(record.DuelID)
		pipe.ZAdd(ctx, idx, goredis.Z{
			Score:  float64(record.UpdatedAt.Unix()),
			Member: record.RunID,
		})
		pipe.Expire(ctx, idx, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save snapshot in redis: %w", err)
	}
	return nil
}

func (s *Store) LoadSnapshot(ctx context.Context, runID string) (state.SnapshotRecord, error) {
	if runID == "" {
		return state.SnapshotRecord{}, fmt.Errorf("runId is required")
	}

	raw, err := s.client.Get(ctx, s.runKey(runID)).Result()
	if err != nil {
		if err == goredis.Nil {
			return state.SnapshotRecord{}, state.ErrNotFound
		}
		return state.SnapshotRecord{}, fmt.Errorf("failed to load snapshot from redis: %w", err)
	}

	var record state.SnapshotRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return state.SnapshotRecord{}, fmt.Errorf("failed to decode snapshot from redis: %w", err)
	}
	return record, nil
}

func (s *Store) ListSnapshots(ctx context.Context, query state.ListQuery) ([]state.SnapshotRecord, error) {
	if query.DuelID == "" {
		return nil, fmt.Errorf("duelId is required for redis snapshot listing")
	}
	limit := query.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	offset := query.Offset
	if offset < 0 {
		offset = 0
	}

	ids, err := s.client.ZRevRange(ctx, s.duelIndexKey(query.DuelID), int64(offset), int64(offset+limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list run ids by duel: %w", err)
	}
	if len(ids) == 0 {
		return []state.SnapshotRecord{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.runKey(id)
	}
	loaded, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to mget snapshots from redis: %w", err)
	}

	out := make([]state.SnapshotRecord, 0, len(loaded))
	stale := make([]any, 0)
	for i, raw := range loaded {
		if raw == nil {
			// Snapshot expired but the index entry lingered.
			stale = append(stale, ids[i])
			continue
		}
		text, ok := raw.(string)
		if !ok {
			continue
		}
		var record state.SnapshotRecord
		if err := json.Unmarshal([]byte(text), &record); err != nil {
			continue
		}
		out = append(out, record)
	}
	if len(stale) > 0 {
		_ = s.client.ZRem(ctx, s.duelIndexKey(query.DuelID), stale...).Err()
	}
	return out, nil
}

func (s *Store) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *Store) runKey(runID string) string {
	return s.prefix + ":run:" + runID
}

func (s *Store) duelIndexKey(duelID string) string {
	return s.prefix + ":duel:" + duelID
}

var _ state.Store = (*Store)(nil)
