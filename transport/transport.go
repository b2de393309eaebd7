// Package transport implements the client side of the push channel that
// delivers agent runtime events for one run. Delivery is ordered per run;
// keepalive comments are swallowed before events reach the consumer.
package transport

import "context"

// Well-known event names shared by every provider family. Providers may
// additionally emit their own named events (step, reasoning, tool, message).
const (
	EventStart = "start"
	EventLog   = "log"
	EventDone  = "done"
	EventError = "error"

	// DefaultEventName is assigned to frames that carry no explicit name.
	// It deliberately matches the providers' named "message" event, so an
	// unnamed frame is interpreted exactly like an explicit message summary.
	DefaultEventName = "message"
)

// Event is one named frame delivered on the push channel.
type Event struct {
	Name string
	Data []byte
}

// Stream is a live, ordered sequence of push-channel events for one run.
// Events is closed when the channel ends for any reason; Err reports the
// terminal transport error, if any. Close is idempotent.
type Stream interface {
	Events() <-chan Event
	Err() error
	Close() error
}

// SubscribeRequest identifies one run's push-channel subscription.
type SubscribeRequest struct {
	SessionID string
	Goal      string
	Provider  string
}

// Subscriber opens a push-channel subscription for a run.
type Subscriber interface {
	Subscribe(ctx context.Context, req SubscribeRequest) (Stream, error)
}
