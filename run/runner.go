// Package run drives a single agent run end to end: provision a browser
// session, subscribe to the push channel, interpret every inbound event, and
// fold the canonical events into the run's step state until the run settles.
package run

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentduel/agentduel/observe"
	"github.com/agentduel/agentduel/providers"
	"github.com/agentduel/agentduel/session"
	"github.com/agentduel/agentduel/stream"
	"github.com/agentduel/agentduel/transport"
	"github.com/agentduel/agentduel/types"
)

const (
	defaultRunTimeout = 10 * time.Minute

	// errConnectionLost is the uniform message for any transport-level
	// failure: mid-stream disconnects, malformed channels, and provider
	// errors that carry no message of their own.
	errConnectionLost = "connection lost"
)

// SessionCreator provisions the remote browser session for a run.
type SessionCreator interface {
	Create(ctx context.Context, req session.CreateRequest) (session.Session, error)
}

// Dialer opens the push channel directly over a session's connect URL.
type Dialer interface {
	Dial(ctx context.Context, connectURL string, req transport.SubscribeRequest) (transport.Stream, error)
}

// LiveViewResolver rewrites a session page URL into its embeddable live view.
type LiveViewResolver interface {
	LiveViewURL(ctx context.Context, pageURL string) (string, error)
}

// Config wires one runner. Provider, Goal, Sessions, Subscriber, and
// Interpreter are required; everything else has a usable zero value.
type Config struct {
	Provider    string
	Goal        string
	RunKey      string
	Sessions    SessionCreator
	Cache       *session.Cache
	Subscriber  transport.Subscriber
	Dialer      Dialer
	LiveView    LiveViewResolver
	Interpreter providers.Interpreter
	Sink        observe.Sink
	OnSnapshot  func(runID string, snap stream.Snapshot)
	Timeout     time.Duration
}

// Runner owns one run. All state access goes through the mutex; once the
// runner is closed no further mutation or publication happens, whatever the
// push channel still has in flight.
type Runner struct {
	id  string
	cfg Config

	mu     sync.Mutex
	state  stream.State
	closed bool

	stopOnce sync.Once
	stopped  chan struct{}
	done     chan struct{}
}

func New(cfg Config) (*Runner, error) {
	if cfg.Provider == "" {
		return nil, fmt.Errorf("provider is required")
	}
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("session creator is required")
	}
	if cfg.Subscriber == nil {
		return nil, fmt.Errorf("subscriber is required")
	}
	if cfg.Interpreter == nil {
		return nil, fmt.Errorf("interpreter is required")
	}
	if cfg.Sink == nil {
		cfg.Sink = observe.NoopSink{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRunTimeout
	}
	if cfg.RunKey == "" {
		cfg.RunKey = cfg.Provider + ":" + cfg.Goal
	}
	return &Runner{
		id:      uuid.NewString(),
		cfg:     cfg,
		state:   stream.NewState(),
		stopped: make(chan struct{}),
		done:    make(chan struct{}),
	}, nil
}

func (r *Runner) ID() string { return r.id }

func (r *Runner) Provider() string { return r.cfg.Provider }

// Done is closed when the run has settled and no further snapshots will be
// published.
func (r *Runner) Done() <-chan struct{} { return r.done }

// Snapshot returns the current UI-facing projection of the run.
func (r *Runner) Snapshot() stream.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Snapshot()
}

// Stop detaches the runner from its push channel. It is idempotent and safe
// from any goroutine; events already in flight are discarded, not applied.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopped)
	})
}

// Start provisions the session and consumes the push channel until the run
// settles. It blocks; callers run it in a goroutine and watch Done.
func (r *Runner) Start(ctx context.Context) {
	defer close(r.done)

	r.emit(ctx, types.LifecycleEvent{Type: types.LifecycleRunStarted})

	sess, err := r.provision(ctx)
	if err != nil {
		// Provisioning never produced a live run, so the state stays
		// unfinished: the UI shows the error over the loading surface.
		r.mutate(func(st stream.State) stream.State {
			st.Error = fmt.Sprintf("failed to create session: %v", err)
			return st
		})
		r.emit(ctx, types.LifecycleEvent{Type: types.LifecycleRunFailed, Error: err.Error()})
		return
	}

	sessionURL := sess.SessionURL
	if r.cfg.LiveView != nil && sessionURL != "" {
		// Best effort: the plain session page still embeds the run when the
		// live-view lookup fails.
		if live, err := r.cfg.LiveView.LiveViewURL(ctx, sessionURL); err == nil && live != "" {
			sessionURL = live
		}
	}

	r.mutate(func(st stream.State) stream.State {
		return stream.WithSession(st, sess.SessionID, sessionURL, sess.ConnectURL)
	})
	r.emit(ctx, types.LifecycleEvent{Type: types.LifecycleSessionReady, SessionID: sess.SessionID})

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	st, err := r.subscribe(streamCtx, sess)
	if err != nil {
		r.fail(ctx, errConnectionLost)
		return
	}
	defer st.Close()

	r.mutate(stream.Started)

	timer := time.NewTimer(r.cfg.Timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			r.finishStopped(ctx)
			return
		case <-r.stopped:
			r.finishStopped(ctx)
			return
		case <-timer.C:
			msg := fmt.Sprintf("run timed out after %s", r.cfg.Timeout)
			r.mutate(func(st stream.State) stream.State {
				return stream.Fail(st, msg)
			})
			r.close()
			r.emit(ctx, types.LifecycleEvent{Type: types.LifecycleRunTimedOut, Error: msg})
			return
		case ev, ok := <-st.Events():
			if !ok {
				if err := st.Err(); err != nil {
					r.fail(ctx, errConnectionLost)
					return
				}
				// Channel ended cleanly without a done event. Whatever
				// arrived so far is the whole run.
				r.complete(ctx, types.Completion{})
				return
			}
			if settled := r.apply(ctx, ev); settled {
				return
			}
		}
	}
}

// subscribe prefers the session's websocket connect URL when a dialer is
// configured, falling back to the subscriber endpoint.
func (r *Runner) subscribe(ctx context.Context, sess session.Session) (transport.Stream, error) {
	req := transport.SubscribeRequest{
		SessionID: sess.SessionID,
		Goal:      r.cfg.Goal,
		Provider:  r.cfg.Provider,
	}
	if r.cfg.Dialer != nil && sess.ConnectURL != "" {
		return r.cfg.Dialer.Dial(ctx, sess.ConnectURL, req)
	}
	return r.cfg.Subscriber.Subscribe(ctx, req)
}

func (r *Runner) provision(ctx context.Context) (session.Session, error) {
	create := func(ctx context.Context) (session.Session, error) {
		return r.cfg.Sessions.Create(ctx, session.CreateRequest{
			Provider: r.cfg.Provider,
			Goal:     r.cfg.Goal,
		})
	}
	if r.cfg.Cache != nil {
		return r.cfg.Cache.Acquire(ctx, r.cfg.RunKey, create)
	}
	return create(ctx)
}

// apply routes one interpreted event into the state. The returned flag is
// true when the run has settled.
func (r *Runner) apply(ctx context.Context, ev transport.Event) bool {
	out := r.cfg.Interpreter.Interpret(ev)

	if out.Raw != nil {
		r.mutate(func(st stream.State) stream.State {
			return stream.RecordRaw(st, *out.Raw)
		})
		r.emit(ctx, types.LifecycleEvent{
			Type:     types.LifecycleRawLog,
			Category: string(out.Raw.Category),
			Message:  out.Raw.Message,
		})
	}

	switch {
	case out.Err != "":
		r.fail(ctx, out.Err)
		return true
	case out.Completion != nil:
		r.complete(ctx, *out.Completion)
		return true
	case out.Event != nil:
		canonical := *out.Event
		r.mutate(func(st stream.State) stream.State {
			return stream.Reduce(st, canonical)
		})
		r.emit(ctx, types.LifecycleEvent{
			Type:    types.LifecycleStepUpdated,
			StepNum: canonical.Step,
			Tool:    canonical.Tool,
		})
	}
	return false
}

// mutate applies fn under the lock and publishes the resulting snapshot.
// A closed runner ignores the mutation entirely.
func (r *Runner) mutate(fn func(stream.State) stream.State) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.state = fn(r.state)
	snap := r.state.Snapshot()
	publish := r.cfg.OnSnapshot
	r.mu.Unlock()

	if publish != nil {
		publish(r.id, snap)
	}
}

func (r *Runner) fail(ctx context.Context, msg string) {
	r.mutate(func(st stream.State) stream.State {
		return stream.Fail(st, msg)
	})
	r.close()
	r.emit(ctx, types.LifecycleEvent{Type: types.LifecycleRunFailed, Error: msg})
}

func (r *Runner) complete(ctx context.Context, c types.Completion) {
	var final string
	r.mutate(func(st stream.State) stream.State {
		st = stream.Complete(st, c)
		final, _ = st.FinalAnswer()
		return st
	})
	r.close()
	r.emit(ctx, types.LifecycleEvent{Type: types.LifecycleRunCompleted})
	if final != "" {
		r.emit(ctx, types.LifecycleEvent{Type: types.LifecycleFinalAnswerSet, Message: final})
	}
}

func (r *Runner) finishStopped(ctx context.Context) {
	r.mutate(stream.Finish)
	r.close()
	r.emit(ctx, types.LifecycleEvent{Type: types.LifecycleRunStopped})
}

func (r *Runner) close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}

func (r *Runner) emit(ctx context.Context, ev types.LifecycleEvent) {
	ev.RunID = r.id
	ev.Provider = r.cfg.Provider
	if ev.SessionID == "" {
		r.mu.Lock()
		ev.SessionID = r.state.SessionID
		r.mu.Unlock()
	}
	_ = r.cfg.Sink.Emit(ctx, observe.FromLifecycleEvent(ev))
}
