package types

import "time"

type LifecycleType string

const (
	LifecycleRunStarted     LifecycleType = "run.started"
	LifecycleSessionReady   LifecycleType = "run.session_ready"
	LifecycleStepUpdated    LifecycleType = "run.step_updated"
	LifecycleRawLog         LifecycleType = "run.raw_log"
	LifecycleRunCompleted   LifecycleType = "run.completed"
	LifecycleRunFailed      LifecycleType = "run.failed"
	LifecycleRunStopped     LifecycleType = "run.stopped"
	LifecycleRunTimedOut    LifecycleType = "run.timed_out"
	LifecycleFinalAnswerSet LifecycleType = "run.final_answer"
)

// LifecycleEvent describes one observable moment of a run for the audit
// pipeline. It is distinct from CanonicalEvent, which only feeds the reducer.
type LifecycleEvent struct {
	Type      LifecycleType `json:"type"`
	Timestamp time.Time     `json:"timestamp"`
	RunID     string        `json:"runId,omitempty"`
	SessionID string        `json:"sessionId,omitempty"`
	Provider  string        `json:"provider,omitempty"`
	StepNum   int           `json:"stepNumber,omitempty"`
	Tool      string        `json:"tool,omitempty"`
	Category  string        `json:"category,omitempty"`
	Message   string        `json:"message,omitempty"`
	Error     string        `json:"error,omitempty"`
}
