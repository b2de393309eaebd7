package stream

import (
	"reflect"
	"testing"

	"github.com/agentduel/agentduel/types"
)

func summary(step int, text string) types.CanonicalEvent {
	return types.CanonicalEvent{Kind: types.KindSummary, Step: step, HasStep: true, Text: text}
}

func action(step int, tool string, args map[string]any) types.CanonicalEvent {
	return types.CanonicalEvent{Kind: types.KindAction, Step: step, HasStep: true, Tool: tool, Args: args}
}

func thought(text string) types.CanonicalEvent {
	return types.CanonicalEvent{Kind: types.KindThought, Text: text}
}

func reduceAll(st State, events ...types.CanonicalEvent) State {
	for _, ev := range events {
		st = Reduce(st, ev)
	}
	return st
}

func TestReduce_OffsetRebasing(t *testing.T) {
	for _, k := range []int{1, 2, 3, 7} {
		st := reduceAll(NewState(), summary(k, "first"), summary(k+1, "second"), summary(k+2, "third"))
		if len(st.Steps) != 3 {
			t.Fatalf("k=%d: expected 3 steps, got %d", k, len(st.Steps))
		}
		for i, step := range st.Steps {
			if step.StepNumber != i+1 {
				t.Fatalf("k=%d: expected dense numbering starting at 1, got %#v", k, st.Steps)
			}
		}
		if st.StepOffset != k-1 {
			t.Fatalf("k=%d: expected offset %d, got %d", k, k-1, st.StepOffset)
		}
	}
}

func TestReduce_OffsetComputedOnlyOnce(t *testing.T) {
	// Upstream restarts its counter mid-run; the offset must not be
	// recomputed, so the late index 1 clamps to display step 1.
	st := reduceAll(NewState(), summary(3, "a"), summary(4, "b"), summary(1, "restart"))
	if st.StepOffset != 2 {
		t.Fatalf("offset must stay 2, got %d", st.StepOffset)
	}
	if st.Steps[0].Text != "restart" {
		t.Fatalf("clamped event should land on step 1: %#v", st.Steps)
	}
}

func TestReduce_AtMostOneStepPerNumber(t *testing.T) {
	st := reduceAll(NewState(),
		summary(2, "start"),
		action(2, "click", map[string]any{"x": 1}),
		summary(2, "start again"),
		action(2, "scroll", nil),
	)
	if len(st.Steps) != 1 {
		t.Fatalf("expected exactly one step, got %#v", st.Steps)
	}
}

func TestReduce_IdempotentSummaryMerge(t *testing.T) {
	st := reduceAll(NewState(), summary(1, "open the site"))
	again := Reduce(st, summary(1, "  open the site  "))
	if !reflect.DeepEqual(st.Steps, again.Steps) {
		t.Fatalf("re-emitted summary must be a no-op: %#v vs %#v", st.Steps, again.Steps)
	}

	changed := Reduce(st, summary(1, "open the site and wait"))
	if changed.Steps[0].Text != "open the site and wait" {
		t.Fatalf("different text must update: %#v", changed.Steps)
	}
}

func TestReduce_SummaryNeverDowngradesTool(t *testing.T) {
	st := reduceAll(NewState(),
		action(1, "click", map[string]any{"x": 5}),
		summary(1, "clicked the button"),
	)
	if st.Steps[0].Tool != "click" {
		t.Fatalf("summary must not downgrade tool: %#v", st.Steps[0])
	}
	if st.Steps[0].Text != "clicked the button" {
		t.Fatalf("summary text must still merge: %#v", st.Steps[0])
	}
}

func TestReduce_ActionOverwrites(t *testing.T) {
	st := reduceAll(NewState(),
		action(1, "click", map[string]any{"x": 1, "y": 2}),
		action(1, "click", map[string]any{"x": 9}),
	)
	args := st.Steps[0].ActionArgs
	if args["x"] != 9 || len(args) != 1 {
		t.Fatalf("second action must fully replace args, got %#v", args)
	}
}

func TestReduce_ThoughtAccumulation(t *testing.T) {
	st := reduceAll(NewState(),
		summary(1, "label"),
		thought("need to scroll"),
		thought("the button is below the fold"),
	)
	if st.Steps[0].Reasoning != "need to scroll the button is below the fold" {
		t.Fatalf("thoughts must space-join in arrival order: %q", st.Steps[0].Reasoning)
	}
}

func TestReduce_ThoughtSynthesizesFirstStep(t *testing.T) {
	st := reduceAll(NewState(), thought("warming up"))
	if len(st.Steps) != 1 {
		t.Fatalf("expected synthesized step, got %#v", st.Steps)
	}
	step := st.Steps[0]
	if step.StepNumber != 1 || step.Tool != types.ToolMessage || step.Reasoning != "warming up" {
		t.Fatalf("unexpected synthesized step: %#v", step)
	}
	// The synthetic step must not have fixed the offset.
	next := Reduce(st, summary(5, "real work"))
	if next.StepOffset != 0 {
		t.Fatalf("synthetic step must not set offset, got %d", next.StepOffset)
	}
}

func TestReduce_UnattachedActionUpdatesOpenStep(t *testing.T) {
	st := reduceAll(NewState(),
		summary(1, "click the link"),
		types.CanonicalEvent{Kind: types.KindAction, Tool: "click", Args: map[string]any{"x": 3}},
	)
	if len(st.Steps) != 1 || st.Steps[0].Tool != "click" {
		t.Fatalf("unattached action must land on the open step: %#v", st.Steps)
	}
}

func TestReduce_OutOfOrderStepsStaySorted(t *testing.T) {
	st := reduceAll(NewState(),
		summary(1, "one"),
		summary(3, "three"),
		summary(2, "two"),
	)
	got := []int{st.Steps[0].StepNumber, st.Steps[1].StepNumber, st.Steps[2].StepNumber}
	if !reflect.DeepEqual(got, []int{1, 2, 3}) {
		t.Fatalf("steps must be sorted by number, got %v", got)
	}
	if st.Steps[1].Text != "two" {
		t.Fatalf("late-arriving step 2 must keep its content: %#v", st.Steps[1])
	}
}

func TestReduce_InvokedToolsUnion(t *testing.T) {
	st := reduceAll(NewState(),
		action(1, "click", nil),
		action(2, "screenshot", nil),
		action(3, "click", nil),
	)
	if got := st.InvokedTools(); !reflect.DeepEqual(got, []string{"click", "screenshot"}) {
		t.Fatalf("unexpected invoked tools %v", got)
	}
}

func TestSnapshot_ToolBadgesAlignWithInvokedTools(t *testing.T) {
	st := reduceAll(NewState(),
		action(1, "take_screenshot", nil),
		action(2, "click", nil),
	)
	snap := st.Snapshot()
	if !reflect.DeepEqual(snap.InvokedTools, []string{"click", "take_screenshot"}) {
		t.Fatalf("unexpected invoked tools %v", snap.InvokedTools)
	}
	if !reflect.DeepEqual(snap.ToolBadges, []string{"Click", "Take Screenshot"}) {
		t.Fatalf("unexpected tool badges %v", snap.ToolBadges)
	}
}

func TestSnapshot_NoBadgesWithoutActions(t *testing.T) {
	snap := reduceAll(NewState(), summary(1, "reading")).Snapshot()
	if snap.ToolBadges != nil {
		t.Fatalf("expected no badges, got %v", snap.ToolBadges)
	}
}

func TestReduce_IsPure(t *testing.T) {
	st := reduceAll(NewState(), summary(1, "before"), action(1, "click", map[string]any{"x": 1}))
	snapshot := st.Snapshot()

	_ = reduceAll(st,
		summary(1, "after"),
		action(1, "scroll", map[string]any{"dy": 100}),
		thought("extra"),
	)

	if !reflect.DeepEqual(snapshot, st.Snapshot()) {
		t.Fatalf("input state mutated by Reduce:\nbefore %#v\nafter  %#v", snapshot, st.Snapshot())
	}
}

func TestReduce_MixedEventSequence(t *testing.T) {
	st := reduceAll(NewState(),
		summary(2, "start"),
		action(2, "click", map[string]any{"x": 1, "y": 2}),
		thought("need to scroll"),
		summary(3, "scrolling"),
	)
	if len(st.Steps) != 2 {
		t.Fatalf("expected two steps, got %#v", st.Steps)
	}
	first, second := st.Steps[0], st.Steps[1]
	if first.StepNumber != 1 || first.Tool != "click" || first.Text != "start" ||
		first.Reasoning != "need to scroll" || first.ActionArgs["x"] != 1 || first.ActionArgs["y"] != 2 {
		t.Fatalf("unexpected first step: %#v", first)
	}
	if second.StepNumber != 2 || second.Tool != types.ToolMessage || second.Text != "scrolling" {
		t.Fatalf("unexpected second step: %#v", second)
	}
}

func TestStateHelpers(t *testing.T) {
	st := NewState()
	if !st.IsLoading {
		t.Fatalf("new state must be loading")
	}
	st = WithSession(st, "sess", "https://view", "wss://connect")
	st = Started(st)
	st = RecordRaw(st, types.RawLogEvent{Category: types.CategoryAgent, Message: "line"})
	if st.IsLoading || st.SessionID != "sess" || len(st.RawLog) != 1 {
		t.Fatalf("unexpected state %#v", st)
	}

	failed := Fail(st, "boom")
	if !failed.IsFinished || failed.Error != "boom" {
		t.Fatalf("unexpected failure shape: %#v", failed)
	}
	if again := Fail(failed, "later"); again.Error != "boom" {
		t.Fatalf("first error must stick, got %q", again.Error)
	}
}
