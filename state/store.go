package state

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("state: not found")

type ListQuery struct {
	DuelID string
	Limit  int
	Offset int
}

type Store interface {
	SaveSnapshot(ctx context.Context, record SnapshotRecord) error
	LoadSnapshot(ctx context.Context, runID string) (SnapshotRecord, error)
	ListSnapshots(ctx context.Context, query ListQuery) ([]SnapshotRecord, error)
	Close() error
}
