package dialogue

import (
	"github.com/CliniqAI/voicecore/internal/models"
)

// PromptKind tells the response layer what the assistant must say next.
// The machine never produces prose itself, only the instruction.
type PromptKind string

const (
	PromptAskIntent     PromptKind = "ask_intent"
	PromptAskSlot       PromptKind = "ask_slot"
	PromptConfirm       PromptKind = "confirm"
	PromptAnswerTopic   PromptKind = "answer_topic"
	PromptAnswerInline  PromptKind = "answer_inline" // topic answer mid-flow, then repeat the open question
	PromptCompleted     PromptKind = "completed"
	PromptStartOver     PromptKind = "start_over"
	PromptRepeatConfirm PromptKind = "repeat_confirm"
)

// Instruction what to say next, with the context the prompt needs
type Instruction struct {
	Kind  PromptKind
	Slot  string // open slot for ask_slot / answer_inline
	Topic string // matched topic for answer_topic / answer_inline
}

// Snapshot the dialogue variables the machine transitions over
type Snapshot struct {
	State models.SessionState
	Flow  FlowKind
	Slots map[string]string
}

// TurnFacts the classified view of one caller turn, produced by the
// orchestrator before the machine runs. The machine itself touches no
// collaborator and no clock, so identical facts always produce identical
// transitions.
type TurnFacts struct {
	Utterance string
	Intent    Intent
	Flow      FlowKind          // flow intent detected this turn
	Entities  map[string]string // validated values for open slots
	Topic     string            // matched answer-book topic, "" when none
}

// Step advances a snapshot by one turn and returns the next snapshot plus
// the instruction for the response layer. Escalation is decided elsewhere,
// before Step runs; terminal states never reach it.
func Step(snap Snapshot, facts TurnFacts) (Snapshot, Instruction) {
	next := Snapshot{State: snap.State, Flow: snap.Flow, Slots: cloneSlots(snap.Slots)}

	if facts.Intent == IntentStartOver && next.State != models.SessionStateGreeting {
		next.State = models.SessionStateIntentSelection
		next.Flow = FlowNone
		next.Slots = map[string]string{}
		return next, Instruction{Kind: PromptStartOver}
	}

	switch next.State {
	case models.SessionStateGreeting, models.SessionStateIntentSelection:
		return stepIntentSelection(next, facts)
	case models.SessionStateSlotCollection:
		return stepSlotCollection(next, facts)
	case models.SessionStateConfirmation:
		return stepConfirmation(next, facts)
	}
	return next, Instruction{Kind: PromptAskIntent}
}

func stepIntentSelection(next Snapshot, facts TurnFacts) (Snapshot, Instruction) {
	if facts.Flow != FlowNone && facts.Flow != FlowGeneral {
		next.Flow = facts.Flow
		next.State = models.SessionStateSlotCollection
		return fillAndAdvance(next, facts.Entities)
	}
	if facts.Flow == FlowGeneral && facts.Topic != "" {
		// a recognized question locks the general flow; the confirmation
		// turn doubles as "anything else?"
		next.Flow = FlowGeneral
		next.State = models.SessionStateConfirmation
		return next, Instruction{Kind: PromptAnswerTopic, Topic: facts.Topic}
	}
	if facts.Topic != "" {
		// answer without locking a flow, stay on intent selection
		return next, Instruction{Kind: PromptAnswerTopic, Topic: facts.Topic}
	}
	next.State = models.SessionStateIntentSelection
	return next, Instruction{Kind: PromptAskIntent}
}

func stepSlotCollection(next Snapshot, facts TurnFacts) (Snapshot, Instruction) {
	flow, ok := FlowFor(next.Flow)
	if !ok {
		next.State = models.SessionStateIntentSelection
		next.Flow = FlowNone
		return next, Instruction{Kind: PromptAskIntent}
	}
	// side questions are answered in place and do not consume the turn
	if facts.Topic != "" && len(facts.Entities) == 0 {
		open := flow.Unfilled(next.Slots)
		instr := Instruction{Kind: PromptAnswerInline, Topic: facts.Topic}
		if len(open) > 0 {
			instr.Slot = open[0].Name
		}
		return next, instr
	}
	return fillAndAdvance(next, facts.Entities)
}

func stepConfirmation(next Snapshot, facts TurnFacts) (Snapshot, Instruction) {
	if next.Flow == FlowGeneral {
		// nothing collected to correct; any reply closes the call
		next.State = models.SessionStateCompleted
		return next, Instruction{Kind: PromptCompleted}
	}
	flow, _ := FlowFor(next.Flow)

	switch facts.Intent {
	case IntentAffirm:
		next.State = models.SessionStateCompleted
		return next, Instruction{Kind: PromptCompleted}
	case IntentDeny, IntentCorrection:
		if target := CorrectionTarget(facts.Utterance, flow); target != "" {
			delete(next.Slots, target)
			next.State = models.SessionStateSlotCollection
			// a correction may carry the replacement value in the same breath
			return fillAndAdvance(next, facts.Entities)
		}
		if len(facts.Entities) > 0 {
			// "no, Tuesday" names no slot but the value type identifies it
			for name := range facts.Entities {
				delete(next.Slots, name)
			}
			next.State = models.SessionStateSlotCollection
			return fillAndAdvance(next, facts.Entities)
		}
		return next, Instruction{Kind: PromptRepeatConfirm}
	}
	return next, Instruction{Kind: PromptRepeatConfirm}
}

// fillAndAdvance merges extracted values and moves to confirmation once the
// flow is complete, otherwise asks for the first open slot.
func fillAndAdvance(next Snapshot, entities map[string]string) (Snapshot, Instruction) {
	flow, ok := FlowFor(next.Flow)
	if !ok {
		next.State = models.SessionStateIntentSelection
		return next, Instruction{Kind: PromptAskIntent}
	}
	for name, value := range entities {
		next.Slots[name] = value
	}
	if flow.Complete(next.Slots) {
		next.State = models.SessionStateConfirmation
		return next, Instruction{Kind: PromptConfirm}
	}
	next.State = models.SessionStateSlotCollection
	open := flow.Unfilled(next.Slots)
	return next, Instruction{Kind: PromptAskSlot, Slot: open[0].Name}
}

func cloneSlots(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
