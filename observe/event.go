// Package observe records the audit trail of a duel: run lifecycle,
// session provisioning, raw log traffic, step updates, and completions.
package observe

import "time"

type Kind string

type Status string

const (
	KindRun        Kind = "run"
	KindSession    Kind = "session"
	KindRawLog     Kind = "rawlog"
	KindStep       Kind = "step"
	KindCompletion Kind = "completion"
	KindCustom     Kind = "custom"
)

const (
	StatusStarted   Status = "started"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

type Event struct {
	ID         string         `json:"id,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	RunID      string         `json:"runId,omitempty"`
	SessionID  string         `json:"sessionId,omitempty"`
	Provider   string         `json:"provider,omitempty"`
	Kind       Kind           `json:"kind"`
	Status     Status         `json:"status,omitempty"`
	Name       string         `json:"name,omitempty"`
	Category   string         `json:"category,omitempty"`
	StepNumber int            `json:"stepNumber,omitempty"`
	ToolName   string         `json:"toolName,omitempty"`
	Message    string         `json:"message,omitempty"`
	Error      string         `json:"error,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

func (e *Event) Normalize() {
	if e == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if e.Kind == "" {
		e.Kind = KindCustom
	}
	if e.Attributes == nil {
		e.Attributes = map[string]any{}
	}
}
