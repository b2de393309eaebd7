// Package providers hosts the per-runtime log interpreters. Each provider
// converts the heterogeneous stream of raw log lines and structured push
// events emitted by its upstream agent runtime into canonical events for the
// step reducer.
package providers

import (
	"github.com/agentduel/agentduel/transport"
	"github.com/agentduel/agentduel/types"
)

// Outcome is the result of interpreting one push-channel event. The zero
// Outcome means the event was noise and must be discarded. At most one field
// is populated.
type Outcome struct {
	// Event feeds the step reducer.
	Event *types.CanonicalEvent
	// Completion terminates the run through the finalization resolver.
	Completion *types.Completion
	// Err is a provider-reported failure message; it terminates the run.
	Err string
	// Raw is set whenever the inbound event was a raw log line, classified
	// or not, so the caller can retain it in the audit log.
	Raw *types.RawLogEvent
}

// Interpreter fuses the raw-log classifier and the event normalizer for one
// upstream runtime.
type Interpreter interface {
	Name() string
	Interpret(ev transport.Event) Outcome
}
