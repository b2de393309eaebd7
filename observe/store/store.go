package store

import (
	"context"
	"time"

	"github.com/agentduel/agentduel/observe"
)

type ListQuery struct {
	Limit  int
	Offset int
	Kind   observe.Kind
}

type Store interface {
	SaveEvent(ctx context.Context, event observe.Event) error
	ListEventsByRun(ctx context.Context, runID string, query ListQuery) ([]observe.Event, error)
	ListEventsBySession(ctx context.Context, sessionID string, query ListQuery) ([]observe.Event, error)
	DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	Close() error
}
