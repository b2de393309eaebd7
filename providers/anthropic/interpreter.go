// Package anthropic interprets the combined JSON-in-log stream of the
// Anthropic computer-use runtime. Agent log lines are either free text
// ("Step N: ...") or JSON-encoded content blocks with a "type" discriminator
// ("text" carrying text, "tool_use" carrying name/input/id). Both forms are
// accepted; a parser handling only one would silently drop valid events.
package anthropic

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/buger/jsonparser"

	"github.com/agentduel/agentduel/providers"
	"github.com/agentduel/agentduel/transport"
	"github.com/agentduel/agentduel/types"
)

const providerName = "anthropic"

var (
	stepRe        = regexp.MustCompile(`(?i)^step (\d+)[:.]?\s*(.*)$`)
	actionCountRe = regexp.MustCompile(`\d+\s+actions?`)
)

var rules = []providers.Rule{
	{Class: types.ClassStepBoundary, Match: func(raw types.RawLogEvent) bool {
		return stepRe.MatchString(strings.TrimSpace(raw.Message))
	}},
	{Class: types.ClassAction, Match: blockTypeIs("tool_use")},
	{Class: types.ClassTextBlock, Match: blockTypeIs("text")},
	{Class: types.ClassCompletion, Match: func(raw types.RawLogEvent) bool {
		lower := strings.ToLower(raw.Message)
		return strings.Contains(lower, "complet") && actionCountRe.MatchString(lower)
	}},
	{Class: types.ClassError, Match: func(raw types.RawLogEvent) bool {
		lower := strings.ToLower(raw.Message)
		return strings.Contains(lower, "error") || strings.Contains(lower, "failed")
	}},
}

func blockTypeIs(want string) func(types.RawLogEvent) bool {
	return func(raw types.RawLogEvent) bool {
		msg := strings.TrimSpace(raw.Message)
		if !strings.HasPrefix(msg, "{") {
			return false
		}
		blockType, err := jsonparser.GetString([]byte(msg), "type")
		return err == nil && blockType == want
	}
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
			out.Event = &types.CanonicalEvent{Kind: types.KindSummary, Text: msg}
			return out
		}
		text := strings.TrimSpace(m[2])
		if text == "" {
			text = msg
		}
		out.Event = &types.CanonicalEvent{Kind: types.KindSummary, Step: idx, HasStep: true, Text: text}

	case types.ClassAction:
		out.Event = toolUseEvent([]byte(msg))

	case types.ClassTextBlock:
		text, _ := jsonparser.GetString([]byte(msg), "text")
		if strings.TrimSpace(text) == "" {
			return providers.Outcome{Raw: &raw}
		}
		// Visible assistant text updates the open step's message content.
		out.Event = &types.CanonicalEvent{Kind: types.KindSummary, Text: strings.TrimSpace(text)}

	case types.ClassCompletion:
		out.Completion = &types.Completion{}

	case types.ClassError:
		out.Err = msg
	}
	return out
}

// toolUseEvent normalizes a tool_use content block. The input object is kept
// whole inside args so every provider-supplied field survives for later
// inspection; the call id rides along under "callId". The block's explicit
// tool name always wins over any nested action field inside input.
func toolUseEvent(block []byte) *types.CanonicalEvent {
	name, err := jsonparser.GetString(block, "name")
	if err != nil || strings.TrimSpace(name) == "" {
		name = "computer"
	}

	var args map[string]any
	input, dataType, _, inputErr := jsonparser.Get(block, "input")
	switch {
	case inputErr != nil || dataType == jsonparser.NotExist:
		args = map[string]any{}
	case dataType == jsonparser.Object:
		if err := json.Unmarshal(input, &args); err != nil || args == nil {
			args = map[string]any{"raw": string(input)}
		}
	default:
		args = map[string]any{"raw": string(input)}
	}

	if id, err := jsonparser.GetString(block, "id"); err == nil && id != "" {
		args["callId"] = id
	}

	ev := &types.CanonicalEvent{Kind: types.KindAction, Tool: name, Args: args}
	if idx, ok := providers.ParseStepField(block, "step"); ok {
		ev.Step = idx
		ev.HasStep = true
	}
	return ev
}
