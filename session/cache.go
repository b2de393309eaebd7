package session

import (
	"context"
	"sync"
)

// Cache collapses concurrent provisioning of the same logical session into a
// single upstream request. The first caller for a key performs the create;
// everyone else arriving while it is in flight waits for the same result.
// Entries are removed once the create settles, on success as well as failure,
// so a later request provisions fresh rather than replaying a stale outcome.
type Cache struct {
	mu       sync.Mutex
	inflight map[string]*inflightCreate
}

type inflightCreate struct {
	done chan struct{}
	sess Session
	err  error
}

func NewCache() *Cache {
	return &Cache{inflight: make(map[string]*inflightCreate)}
}

// Acquire returns the session for key, creating it with create if no request
// for the same key is already in flight. The context cancels the caller's
// wait only; the underlying create keeps running for the other waiters.
func (c *Cache) Acquire(ctx context.Context, key string, create func(context.Context) (Session, error)) (Session, error) {
	c.mu.Lock()
	if entry, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		select {
		case <-entry.done:
			return entry.sess, entry.err
		case <-ctx.Done():
			return Session{}, ctx.Err()
		}
	}

	entry := &inflightCreate{done: make(chan struct{})}
	c.inflight[key] = entry
	c.mu.Unlock()

	entry.sess, entry.err = create(ctx)

	c.mu.Lock()
	delete(c.inflight, key)
	c.mu.Unlock()
	close(entry.done)

	return entry.sess, entry.err
}

// Pending reports how many creates are currently in flight.
func (c *Cache) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inflight)
}
