package types

import "time"

// ToolMessage is the sentinel tool name for a step that carries no concrete
// browser action: a pure thought or message from the agent.
const ToolMessage = "MESSAGE"

// Step is the canonical unit of transcript content. At most one Step exists
// per StepNumber within a run; later events mutate the existing Step rather
// than creating a duplicate.
type Step struct {
	StepNumber  int            `json:"stepNumber"`
	Text        string         `json:"text"`
	Reasoning   string         `json:"reasoning"`
	Tool        string         `json:"tool"`
	Instruction string         `json:"instruction"`
	ActionArgs  map[string]any `json:"actionArgs,omitempty"`
}

// Category tags the origin of a raw upstream log line. Only agent-originated
// events are eligible for classification; everything else is noise.
type Category string

const (
	CategoryAgent   Category = "agent"
	CategoryBrowser Category = "browser"
	CategoryNetwork Category = "network"
	CategorySystem  Category = "system"
)

// RawLogEvent is one upstream log line/object as delivered by the push
// channel. It is consumed immediately and optionally retained in the
// append-only audit log; it is never mutated.
type RawLogEvent struct {
	Category  Category  `json:"category"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// Class is the semantic kind assigned to a raw log event by a provider's
// classification rules.
type Class string

const (
	ClassThought      Class = "thought"
	ClassStepBoundary Class = "step_boundary"
	ClassAction       Class = "action"
	ClassCompletion   Class = "completion"
	ClassError        Class = "error"
	ClassTextBlock    Class = "text_block"
	ClassUnclassified Class = "unclassified"
)

// EventKind is the kind of a canonical event consumed by the step reducer.
// Completion and error signals bypass the reducer's merge logic.
type EventKind string

const (
	KindSummary EventKind = "summary"
	KindThought EventKind = "thought"
	KindAction  EventKind = "action"
)

// CanonicalEvent is the normalized record produced per provider and folded
// into the Step sequence by the reducer.
type CanonicalEvent struct {
	Kind EventKind `json:"kind"`
	// Step is the raw upstream step index, valid only when HasStep is set.
	// Events without an index attach to whatever step is currently open.
	Step    int            `json:"step,omitempty"`
	HasStep bool           `json:"hasStep,omitempty"`
	Text    string         `json:"text,omitempty"`
	Tool    string         `json:"tool,omitempty"`
	Args    map[string]any `json:"args,omitempty"`
}

// Message is one entry of a completion payload's messages array.
type Message struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// Completion carries whatever terminal signal a provider emitted. All fields
// are optional; the finalization resolver falls back to scanning prior steps
// when none of them yields text.
type Completion struct {
	FinalMessage string    `json:"finalMessage,omitempty"`
	Output       string    `json:"output,omitempty"`
	Messages     []Message `json:"messages,omitempty"`
}
