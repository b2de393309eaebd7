// Package openai interprets the structured event stream of the OpenAI
// computer-use runtime. This family pushes named events (step, reasoning,
// tool, message) with JSON payloads instead of encoding everything in log
// lines; its "log" channel still carries prose that is classified for
// completion/error markers.
package openai

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/buger/jsonparser"

	"github.com/agentduel/agentduel/providers"
	"github.com/agentduel/agentduel/transport"
	"github.com/agentduel/agentduel/types"
)

const providerName = "openai"

// Named events specific to this provider family. eventMessage is the same
// string as transport.DefaultEventName on purpose: frames that arrive without
// a name fall into the message-summary path below.
const (
	eventStep      = "step"
	eventReasoning = "reasoning"
	eventTool      = "tool"
	eventMessage   = "message"
)

var actionCountRe = regexp.MustCompile(`\d+\s+actions?`)

var rules = []providers.Rule{
	{Class: types.ClassCompletion, Match: func(raw types.RawLogEvent) bool {
		lower := strings.ToLower(raw.Message)
		return strings.Contains(lower, "complet") && actionCountRe.MatchString(lower)
	}},
	{Class: types.ClassError, Match: func(raw types.RawLogEvent) bool {
		lower := strings.ToLower(raw.Message)
		return strings.Contains(lower, "error") || strings.Contains(lower, "failed")
	}},
}

type Interpreter struct{}

func New() *Interpreter { return &Interpreter{} }

func (i *Interpreter) Name() string { return providerName }

func (i *Interpreter) Interpret(ev transport.Event) providers.Outcome {
	switch ev.Name {
	case eventStep:
		return stepOutcome(ev.Data)
	case eventReasoning:
		text, _ := jsonparser.GetString(ev.Data, "text")
		if strings.TrimSpace(text) == "" {
			return providers.Outcome{}
		}
		return providers.Outcome{Event: &types.CanonicalEvent{Kind: types.KindThought, Text: strings.TrimSpace(text)}}
	case eventTool:
		return toolOutcome(ev.Data)
	case eventMessage:
		text, _ := jsonparser.GetString(ev.Data, "text")
		if strings.TrimSpace(text) == "" {
			return providers.Outcome{}
		}
		return providers.Outcome{Event: &types.CanonicalEvent{Kind: types.KindSummary, Text: strings.TrimSpace(text)}}
	case transport.EventLog:
		return i.interpretLog(ev.Data)
	case transport.EventDone:
		c := providers.DecodeCompletion(ev.Data)
		return providers.Outcome{Completion: &c}
	case transport.EventError:
		return providers.Outcome{Err: providers.DecodeErrorMessage(ev.Data)}
	}
	return providers.Outcome{}
}

func stepOutcome(data []byte) providers.Outcome {
	ev := &types.CanonicalEvent{Kind: types.KindSummary}
	if idx, ok := providers.ParseStepField(data, "step"); ok {
		ev.Step = idx
		ev.HasStep = true
	}
	if text, err := jsonparser.GetString(data, "instruction"); err == nil {
		ev.Text = strings.TrimSpace(text)
	}
	if ev.Text == "" {
		if text, err := jsonparser.GetString(data, "text"); err == nil {
			ev.Text = strings.TrimSpace(text)
		}
	}
	if ev.Text == "" && !ev.HasStep {
		return providers.Outcome{}
	}
	return providers.Outcome{Event: ev}
}

func toolOutcome(data []byte) providers.Outcome {
	name, err := jsonparser.GetString(data, "name")
	if err != nil || strings.TrimSpace(name) == "" {
		name = "computer"
	}

	var args map[string]any
	payload, dataType, _, payloadErr := jsonparser.Get(data, "args")
	if payloadErr != nil || dataType == jsonparser.NotExist {
		payload, dataType, _, payloadErr = jsonparser.Get(data, "input")
	}
	switch {
	case payloadErr != nil || dataType == jsonparser.NotExist:
		args = map[string]any{}
	case dataType == jsonparser.Object:
		if err := json.Unmarshal(payload, &args); err != nil || args == nil {
			args = map[string]any{"raw": string(payload)}
		}
	default:
		args = map[string]any{"raw": string(payload)}
	}
	if id, err := jsonparser.GetString(data, "callId"); err == nil && id != "" {
		args["callId"] = id
	}

	ev := &types.CanonicalEvent{Kind: types.KindAction, Tool: strings.TrimSpace(name), Args: args}
	if idx, ok := providers.ParseStepField(data, "step"); ok {
		ev.Step = idx
		ev.HasStep = true
	}
	return providers.Outcome{Event: ev}
}

func (i *Interpreter) interpretLog(data []byte) providers.Outcome {
	raw := providers.DecodeRawLog(data)
	class, ok := providers.Classify(rules, raw)
	if !ok {
		return providers.Outcome{}
	}
	out := providers.Outcome{Raw: &raw}
	switch class {
	case types.ClassCompletion:
		out.Completion = &types.Completion{}
	case types.ClassError:
		out.Err = strings.TrimSpace(raw.Message)
	}
	return out
}
