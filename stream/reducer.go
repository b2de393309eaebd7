package stream

import (
	"sort"
	"strings"

	"github.com/agentduel/agentduel/types"
)

// Reduce folds one canonical event into the state. It is a pure left-fold:
// the input state is not mutated, events are processed strictly in arrival
// order, and no buffering or reordering happens here. Steps are keyed by
// display number, so out-of-order upstream completion populates the list
// sparsely and the list is kept sorted by stepNumber for display.
func Reduce(st State, ev types.CanonicalEvent) State {
	switch ev.Kind {
	case types.KindSummary:
		return applySummary(st, ev)
	case types.KindThought:
		return applyThought(st, ev)
	case types.KindAction:
		return applyAction(st, ev)
	}
	return st
}

// displayStep re-bases an upstream step index to the UI-facing number.
// The offset is derived at most once per run: the first time an indexed
// event arrives while the step list is still empty. Events without an index
// attach to whatever step is currently open.
func displayStep(st *State, ev types.CanonicalEvent) int {
	if ev.HasStep {
		if !st.offsetSet && len(st.Steps) == 0 {
			st.StepOffset = ev.Step - 1
			st.offsetSet = true
		}
		if ev.Step > st.LastSeenStep {
			st.LastSeenStep = ev.Step
		}
		n := ev.Step - st.StepOffset
		if n < 1 {
			n = 1
		}
		return n
	}
	if len(st.Steps) == 0 {
		return 1
	}
	return st.Steps[len(st.Steps)-1].StepNumber
}

func findStep(steps []types.Step, number int) int {
	for i := range steps {
		if steps[i].StepNumber == number {
			return i
		}
	}
	return -1
}

func cloneSteps(steps []types.Step, extra int) []types.Step {
	out := make([]types.Step, len(steps), len(steps)+extra)
	copy(out, steps)
	return out
}

func sortSteps(steps []types.Step) {
	sort.SliceStable(steps, func(i, j int) bool {
		return steps[i].StepNumber < steps[j].StepNumber
	})
}

// applySummary creates a MESSAGE step for a new display number, or refreshes
// the text of an existing one. Re-emitted identical summaries are no-ops,
// and a summary never downgrades a step's tool away from a recorded action.
func applySummary(st State, ev types.CanonicalEvent) State {
	n := displayStep(&st, ev)
	steps := cloneSteps(st.Steps, 1)

	if i := findStep(steps, n); i >= 0 {
		if strings.TrimSpace(ev.Text) != strings.TrimSpace(steps[i].Text) {
			steps[i].Text = ev.Text
			steps[i].Instruction = ev.Text
		}
		st.Steps = steps
		return st
	}

	steps = append(steps, types.Step{
		StepNumber:  n,
		Text:        ev.Text,
		Instruction: ev.Text,
		Tool:        types.ToolMessage,
	})
	sortSteps(steps)
	st.Steps = steps
	return st
}

// applyThought attaches free reasoning text to the step currently open (the
// last one). Thoughts accumulate: successive fragments are space-joined in
// arrival order. With no step open yet, step 1 is synthesized; the synthetic
// step never sets the numbering offset.
func applyThought(st State, ev types.CanonicalEvent) State {
	if len(st.Steps) == 0 {
		st.Steps = []types.Step{{
			StepNumber: 1,
			Tool:       types.ToolMessage,
			Reasoning:  ev.Text,
		}}
		return st
	}
	steps := cloneSteps(st.Steps, 0)
	last := &steps[len(steps)-1]
	if last.Reasoning == "" {
		last.Reasoning = ev.Text
	} else {
		last.Reasoning += " " + ev.Text
	}
	st.Steps = steps
	return st
}

// applyAction records a concrete tool invocation. Unlike summaries, actions
// always overwrite: each action event is fresh, authoritative information,
// so the explicit tool name and the parsed args replace whatever the step
// held. The run's invoked-tool set gains the tool name (idempotent union).
func applyAction(st State, ev types.CanonicalEvent) State {
	n := displayStep(&st, ev)
	steps := cloneSteps(st.Steps, 1)

	if i := findStep(steps, n); i >= 0 {
		steps[i].Tool = ev.Tool
		steps[i].ActionArgs = ev.Args
	} else {
		steps = append(steps, types.Step{
			StepNumber: n,
			Tool:       ev.Tool,
			ActionArgs: ev.Args,
		})
		sortSteps(steps)
	}
	st.Steps = steps

	if ev.Tool != "" {
		invoked := make(map[string]bool, len(st.invoked)+1)
		for k := range st.invoked {
			invoked[k] = true
		}
		invoked[ev.Tool] = true
		st.invoked = invoked
	}
	return st
}
