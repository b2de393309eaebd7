package observe

import (
	"strings"

	"github.com/agentduel/agentduel/types"
)

// FromLifecycleEvent converts a run lifecycle event into an audit event.
func FromLifecycleEvent(in types.LifecycleEvent) Event {
	e := Event{
		Timestamp:  in.Timestamp,
		RunID:      in.RunID,
		SessionID:  in.SessionID,
		Provider:   in.Provider,
		Name:       string(in.Type),
		Category:   in.Category,
		StepNumber: in.StepNum,
		ToolName:   in.Tool,
		Message:    in.Message,
		Error:      in.Error,
	}

	switch in.Type {
	case types.LifecycleSessionReady:
		e.Kind = KindSession
	case types.LifecycleRawLog:
		e.Kind = KindRawLog
	case types.LifecycleStepUpdated:
		e.Kind = KindStep
	case types.LifecycleRunCompleted, types.LifecycleFinalAnswerSet:
		e.Kind = KindCompletion
	case types.LifecycleRunStarted, types.LifecycleRunFailed,
		types.LifecycleRunStopped, types.LifecycleRunTimedOut:
		e.Kind = KindRun
	default:
		if strings.HasPrefix(string(in.Type), "run.") {
			e.Kind = KindRun
		} else {
			e.Kind = KindCustom
		}
	}

	switch in.Type {
	case types.LifecycleRunStarted:
		e.Status = StatusStarted
	case types.LifecycleRunFailed, types.LifecycleRunTimedOut:
		e.Status = StatusFailed
	default:
		e.Status = StatusCompleted
	}

	e.Normalize()
	return e
}
