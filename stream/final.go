package stream

import (
	"strings"

	"github.com/agentduel/agentduel/types"
)

// FinalAnswerInstruction labels the synthesized terminal step so the UI can
// pin it apart from ordinary message steps.
const FinalAnswerInstruction = "Final Answer"

// ResolveFinal derives the single final-answer text for a completed run:
// the explicit final-message field, then the output field, then the last
// element of the messages array, then a reverse scan of prior steps for the
// last pure message with non-empty text. Empty string means nothing
// resolved.
func ResolveFinal(c types.Completion, steps []types.Step) string {
	if text := strings.TrimSpace(c.FinalMessage); text != "" {
		return text
	}
	if text := strings.TrimSpace(c.Output); text != "" {
		return text
	}
	if n := len(c.Messages); n > 0 {
		if text := strings.TrimSpace(c.Messages[n-1].Content); text != "" {
			return text
		}
	}
	for i := len(steps) - 1; i >= 0; i-- {
		if steps[i].Tool != types.ToolMessage {
			continue
		}
		if text := strings.TrimSpace(steps[i].Text); text != "" {
			return text
		}
	}
	return ""
}

// Complete folds a terminal completion signal into the state: at most one
// final-answer step is appended per run, no matter how many completion
// shaped signals arrive, and the run is always marked finished. When no text
// resolves, nothing is fabricated.
func Complete(st State, c types.Completion) State {
	if st.finalSet {
		return Finish(st)
	}
	text := ResolveFinal(c, st.Steps)
	if text == "" {
		return Finish(st)
	}

	steps := cloneSteps(st.Steps, 1)
	// The step list can be sparse, so counting is not enough: the terminal
	// number must clear the highest existing one to stay unique.
	next := len(steps) + 1
	for _, s := range steps {
		if s.StepNumber >= next {
			next = s.StepNumber + 1
		}
	}
	steps = append(steps, types.Step{
		StepNumber:  next,
		Text:        text,
		Tool:        types.ToolMessage,
		Instruction: FinalAnswerInstruction,
	})
	st.Steps = steps
	st.lastFinal = text
	st.finalSet = true
	return Finish(st)
}
