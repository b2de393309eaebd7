package api

import (
	"sync"

	"github.com/agentduel/agentduel/stream"
)

// snapshotHub fans run snapshots out to the SSE watchers of each run. Slow
// watchers lose intermediate snapshots rather than stalling the publisher;
// every snapshot is a full projection, so dropping one is harmless.
type snapshotHub struct {
	mu       sync.RWMutex
	nextID   int
	watchers map[string]map[int]chan stream.Snapshot
	latest   map[string]stream.Snapshot
}

func newSnapshotHub() *snapshotHub {
	return &snapshotHub{
		watchers: map[string]map[int]chan stream.Snapshot{},
		latest:   map[string]stream.Snapshot{},
	}
}

func (h *snapshotHub) subscribe(runID string, buffer int) (int, <-chan stream.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if buffer <= 0 {
		buffer = 64
	}
	id := h.nextID
	h.nextID++
	ch := make(chan stream.Snapshot, buffer)
	if h.watchers[runID] == nil {
		h.watchers[runID] = map[int]chan stream.Snapshot{}
	}
	h.watchers[runID][id] = ch
	// New watchers catch up from the latest snapshot immediately.
	if snap, ok := h.latest[runID]; ok {
		ch <- snap
	}
	return id, ch
}

func (h *snapshotHub) unsubscribe(runID string, id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if chans, ok := h.watchers[runID]; ok {
		if ch, ok := chans[id]; ok {
			delete(chans, id)
			close(ch)
		}
		if len(chans) == 0 {
			delete(h.watchers, runID)
		}
	}
}

func (h *snapshotHub) publish(runID string, snap stream.Snapshot) {
	h.mu.Lock()
	h.latest[runID] = snap
	chans := make([]chan stream.Snapshot, 0, len(h.watchers[runID]))
	for _, ch := range h.watchers[runID] {
		chans = append(chans, ch)
	}
	h.mu.Unlock()

	for _, ch := range chans {
		select {
		case ch <- snap:
		default:
		}
	}
}

func (h *snapshotHub) get(runID string) (stream.Snapshot, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	snap, ok := h.latest[runID]
	return snap, ok
}
