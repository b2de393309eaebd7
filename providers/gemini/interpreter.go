// Package gemini interprets the free-text log stream of the Gemini browser
// agent runtime. Everything arrives as prose on the "log" channel: an
// emoji-marked thinking prefix, "Executing step N/M" boundaries, and
// "Found function call: NAME with args: {json}" action lines.
package gemini

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/agentduel/agentduel/providers"
	"github.com/agentduel/agentduel/transport"
	"github.com/agentduel/agentduel/types"
)

const providerName = "gemini"

var (
	thoughtRe = regexp.MustCompile(`^(?:\x{1F914}\s*)?Thinking:\s*(.+)$`)
	stepRe    = regexp.MustCompile(`^Executing step (\d+)(?:/(\d+))?(?::\s*(.*))?$`)
	actionRe  = regexp.MustCompile(`^Found function call:\s*([\w.\-]+)\s+with args:\s*(.*)$`)

	actionCountRe = regexp.MustCompile(`\d+\s+actions?`)
	finalAnswerRe = regexp.MustCompile(`(?i)final answer:\s*(.+)$`)
)

// rules is ordered by priority; a line matching several patterns classifies
// as the first. Step boundaries outrank actions outrank thoughts.
var rules = []providers.Rule{
	{Class: types.ClassStepBoundary, Match: matchRe(stepRe)},
	{Class: types.ClassAction, Match: matchRe(actionRe)},
	{Class: types.ClassThought, Match: matchRe(thoughtRe)},
	{Class: types.ClassCompletion, Match: isCompletion},
	{Class: types.ClassError, Match: isError},
}

func matchRe(re *regexp.Regexp) func(types.RawLogEvent) bool {
	return func(raw types.RawLogEvent) bool {
		return re.MatchString(strings.TrimSpace(raw.Message))
	}
}

// isCompletion requires both a completion keyword and an action-count phrase
// ("... after 12 actions"), so incidental "completed" in free text does not
// terminate the run.
func isCompletion(raw types.RawLogEvent) bool {
	lower := strings.ToLower(raw.Message)
	return strings.Contains(lower, "complet") && actionCountRe.MatchString(lower)
}

func isError(raw types.RawLogEvent) bool {
	lower := strings.ToLower(raw.Message)
	return strings.Contains(lower, "error") || strings.Contains(lower, "failed") ||
		strings.Contains(lower, "failure")
}

type Interpreter struct{}

func New() *Interpreter { return &Interpreter{} }

func (i *Interpreter) Name() string { return providerName }

func (i *Interpreter) Interpret(ev transport.Event) providers.Outcome {
	switch ev.Name {
	case transport.EventLog, transport.DefaultEventName:
		return i.interpretLog(ev.Data)
	case transport.EventDone:
		c := providers.DecodeCompletion(ev.Data)
		return providers.Outcome{Completion: &c}
	case transport.EventError:
		return providers.Outcome{Err: providers.DecodeErrorMessage(ev.Data)}
	}
	return providers.Outcome{}
}

func (i *Interpreter) interpretLog(data []byte) providers.Outcome {
	raw := providers.DecodeRawLog(data)
	class, ok := providers.Classify(rules, raw)
	if !ok {
		return providers.Outcome{}
	}
	out := providers.Outcome{Raw: &raw}
	msg := strings.TrimSpace(raw.Message)

	switch class {
	case types.ClassStepBoundary:
		m := stepRe.FindStringSubmatch(msg)
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			// Unparseable index: keep the label but leave it unattached.
			out.Event = &types.CanonicalEvent{Kind: types.KindSummary, Text: msg}
			return out
		}
		text := strings.TrimSpace(m[3])
		if text == "" {
			text = msg
		}
		out.Event = &types.CanonicalEvent{Kind: types.KindSummary, Step: idx, HasStep: true, Text: text}

	case types.ClassAction:
		m := actionRe.FindStringSubmatch(msg)
		out.Event = &types.CanonicalEvent{
			Kind: types.KindAction,
			Tool: m[1],
			Args: providers.ParseArgs(m[2]),
		}

	case types.ClassThought:
		m := thoughtRe.FindStringSubmatch(msg)
		out.Event = &types.CanonicalEvent{Kind: types.KindThought, Text: strings.TrimSpace(m[1])}

	case types.ClassCompletion:
		c := types.Completion{}
		if m := finalAnswerRe.FindStringSubmatch(msg); m != nil {
			c.FinalMessage = strings.TrimSpace(m[1])
		}
		out.Completion = &c

	case types.ClassError:
		out.Err = msg
	}
	return out
}
