// Package stream holds the per-run stream state machine: a left-fold of
// canonical events into an ordered, deduplicated sequence of steps.
package stream

import (
	"sort"

	"github.com/agentduel/agentduel/types"
)

// State is the per-run aggregate owned by exactly one reducer. It is passed
// and returned by value; Reduce and the other fold functions copy the parts
// they mutate, so replaying an event list never disturbs earlier states.
type State struct {
	Steps        []types.Step
	RawLog       []types.RawLogEvent
	LastSeenStep int
	StepOffset   int
	IsLoading    bool
	IsFinished   bool
	Error        string
	SessionID    string
	SessionURL   string
	ConnectURL   string

	offsetSet bool
	invoked   map[string]bool
	// lastFinal remembers the appended final-answer text; finalSet guards
	// against a second completion signal appending another terminal step.
	lastFinal string
	finalSet  bool
}

// NewState returns the initial state for a run.
func NewState() State {
	return State{IsLoading: true}
}

// WithSession records the resolved session identifiers.
func WithSession(st State, sessionID, sessionURL, connectURL string) State {
	st.SessionID = sessionID
	st.SessionURL = sessionURL
	st.ConnectURL = connectURL
	return st
}

// RecordRaw appends one raw upstream event to the append-only audit log.
func RecordRaw(st State, raw types.RawLogEvent) State {
	log := make([]types.RawLogEvent, len(st.RawLog), len(st.RawLog)+1)
	copy(log, st.RawLog)
	st.RawLog = append(log, raw)
	return st
}

// Finish marks the run finished. It is safe to apply repeatedly.
func Finish(st State) State {
	st.IsFinished = true
	st.IsLoading = false
	return st
}

// Fail records a terminal error and finishes the run. Every failure mode
// resolves to the same observable shape: {error, isFinished}.
func Fail(st State, msg string) State {
	if st.Error == "" {
		st.Error = msg
	}
	return Finish(st)
}

// Started clears the initial loading flag once the push channel is live.
func Started(st State) State {
	st.IsLoading = false
	return st
}

// InvokedTools returns the distinct tool names invoked so far, sorted.
func (st State) InvokedTools() []string {
	if len(st.invoked) == 0 {
		return nil
	}
	out := make([]string, 0, len(st.invoked))
	for tool := range st.invoked {
		out = append(out, tool)
	}
	sort.Strings(out)
	return out
}

// FinalAnswer reports the appended final-answer text, if any.
func (st State) FinalAnswer() (string, bool) {
	return st.lastFinal, st.finalSet
}

// Snapshot is the UI-facing projection of a State, recomputed after every
// processed event.
type Snapshot struct {
	Steps        []types.Step `json:"steps"`
	SessionID    string       `json:"sessionId,omitempty"`
	SessionURL   string       `json:"sessionUrl,omitempty"`
	ConnectURL   string       `json:"connectUrl,omitempty"`
	IsLoading    bool         `json:"isLoading"`
	IsFinished   bool         `json:"isFinished"`
	Error        string       `json:"error,omitempty"`
	InvokedTools []string     `json:"invokedTools,omitempty"`
	// ToolBadges carries the display labels for InvokedTools, index-aligned.
	ToolBadges []string `json:"toolBadges,omitempty"`
}

// Snapshot deep-copies the visible parts of the state so consumers can hold
// it across later reductions.
func (st State) Snapshot() Snapshot {
	steps := make([]types.Step, len(st.Steps))
	copy(steps, st.Steps)
	for i := range steps {
		if steps[i].ActionArgs != nil {
			args := make(map[string]any, len(steps[i].ActionArgs))
			for k, v := range steps[i].ActionArgs {
				args[k] = v
			}
			steps[i].ActionArgs = args
		}
	}
	invoked := st.InvokedTools()
	var badges []string
	if len(invoked) > 0 {
		badges = make([]string, len(invoked))
		for i, tool := range invoked {
			badges[i] = types.BadgeLabel(tool)
		}
	}
	return Snapshot{
		Steps:        steps,
		SessionID:    st.SessionID,
		SessionURL:   st.SessionURL,
		ConnectURL:   st.ConnectURL,
		IsLoading:    st.IsLoading,
		IsFinished:   st.IsFinished,
		Error:        st.Error,
		InvokedTools: invoked,
		ToolBadges:   badges,
	}
}
