package openai

import (
	"testing"

	"github.com/agentduel/agentduel/transport"
	"github.com/agentduel/agentduel/types"
)

func TestInterpret_StepEvent(t *testing.T) {
	out := New().Interpret(transport.Event{Name: "step", Data: []byte(`{"step":2,"instruction":"Search for flights"}`)})
	ev := out.Event
	if ev == nil || ev.Kind != types.KindSummary || !ev.HasStep || ev.Step != 2 {
		t.Fatalf("unexpected step event: %#v", out)
	}
	if ev.Text != "Search for flights" {
		t.Fatalf("unexpected text %q", ev.Text)
	}
}

func TestInterpret_StepEventStringIndex(t *testing.T) {
	out := New().Interpret(transport.Event{Name: "step", Data: []byte(`{"step":"3","text":"Open results"}`)})
	if out.Event == nil || !out.Event.HasStep || out.Event.Step != 3 {
		t.Fatalf("string step index must parse: %#v", out.Event)
	}
}

func TestInterpret_StepEventNonNumericIndexUnattached(t *testing.T) {
	out := New().Interpret(transport.Event{Name: "step", Data: []byte(`{"step":"n/a","text":"label"}`)})
	if out.Event == nil || out.Event.HasStep {
		t.Fatalf("non-numeric index must fall back to unattached: %#v", out.Event)
	}
}

func TestInterpret_ReasoningEvent(t *testing.T) {
	out := New().Interpret(transport.Event{Name: "reasoning", Data: []byte(`{"text":"need to scroll"}`)})
	if out.Event == nil || out.Event.Kind != types.KindThought || out.Event.Text != "need to scroll" {
		t.Fatalf("unexpected reasoning event: %#v", out)
	}
	if out := New().Interpret(transport.Event{Name: "reasoning", Data: []byte(`{"text":" "}`)}); out.Event != nil {
		t.Fatalf("blank reasoning must be dropped")
	}
}

func TestInterpret_ToolEvent(t *testing.T) {
	out := New().Interpret(transport.Event{
		Name: "tool",
		Data: []byte(`{"step":4,"name":"click","callId":"call_9","args":{"x":10,"y":20,"button":"left"}}`),
	})
	ev := out.Event
	if ev == nil || ev.Kind != types.KindAction || ev.Tool != "click" {
		t.Fatalf("unexpected tool event: %#v", out)
	}
	if !ev.HasStep || ev.Step != 4 {
		t.Fatalf("expected step 4: %#v", ev)
	}
	if ev.Args["button"] != "left" || ev.Args["callId"] != "call_9" {
		t.Fatalf("args must preserve provider fields plus callId: %#v", ev.Args)
	}
}

func TestInterpret_ToolEventInputSpelling(t *testing.T) {
	out := New().Interpret(transport.Event{Name: "tool", Data: []byte(`{"name":"scroll","input":{"dy":300}}`)})
	if out.Event == nil || out.Event.Args["dy"] != float64(300) {
		t.Fatalf("input spelling must be accepted: %#v", out.Event)
	}
}

func TestInterpret_ToolEventOpaqueArgs(t *testing.T) {
	out := New().Interpret(transport.Event{Name: "tool", Data: []byte(`{"name":"type","args":"hello world"}`)})
	if out.Event == nil || out.Event.Args["raw"] != "hello world" {
		t.Fatalf("non-object args must stay opaque: %#v", out.Event)
	}
}

func TestInterpret_MessageEvent(t *testing.T) {
	out := New().Interpret(transport.Event{Name: "message", Data: []byte(`{"text":"Here is what I found"}`)})
	ev := out.Event
	if ev == nil || ev.Kind != types.KindSummary || ev.HasStep {
		t.Fatalf("message must be an unattached summary: %#v", out)
	}
}

func TestInterpret_UnnamedFrameParsesAsMessage(t *testing.T) {
	// Frames without an explicit name arrive under the transport's default
	// name, which is the message event on purpose.
	out := New().Interpret(transport.Event{Name: transport.DefaultEventName, Data: []byte(`{"text":"fallback summary"}`)})
	ev := out.Event
	if ev == nil || ev.Kind != types.KindSummary || ev.Text != "fallback summary" {
		t.Fatalf("unnamed frame must parse as a message summary: %#v", out)
	}
}

func TestInterpret_LogOnlyCompletionAndErrors(t *testing.T) {
	interp := New()
	out := interp.Interpret(transport.Event{Name: transport.EventLog, Data: []byte("Run completed after 6 actions")})
	if out.Completion == nil {
		t.Fatalf("expected completion from log marker: %#v", out)
	}
	out = interp.Interpret(transport.Event{Name: transport.EventLog, Data: []byte("tool dispatch failed")})
	if out.Err == "" {
		t.Fatalf("expected error from log marker: %#v", out)
	}
	out = interp.Interpret(transport.Event{Name: transport.EventLog, Data: []byte("plain chatter")})
	if out.Event != nil || out.Completion != nil || out.Err != "" {
		t.Fatalf("chatter must only be audited: %#v", out)
	}
}

func TestInterpret_DoneEvent(t *testing.T) {
	out := New().Interpret(transport.Event{Name: transport.EventDone, Data: []byte(`{"final_message":"Booked."}`)})
	if out.Completion == nil || out.Completion.FinalMessage != "Booked." {
		t.Fatalf("unexpected completion: %#v", out)
	}
}
