package dialogue

import (
	"testing"
	"time"

	"github.com/CliniqAI/voicecore/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// factsFor classifies an utterance the way the orchestrator does, against
// the snapshot's locked flow.
func factsFor(snap Snapshot, utterance string, now time.Time) TurnFacts {
	facts := TurnFacts{
		Utterance: utterance,
		Intent:    DetectIntent(utterance),
		Flow:      DetectFlow(utterance),
	}
	extractor := NewExtractor()
	var wanted []Slot
	if flow, ok := FlowFor(snap.Flow); ok && snap.Flow != FlowNone {
		if snap.State == models.SessionStateConfirmation {
			wanted = flow.Slots
		} else {
			wanted = flow.Unfilled(snap.Slots)
		}
	} else if flow, ok := FlowFor(facts.Flow); ok && facts.Flow != FlowNone && facts.Flow != FlowGeneral {
		wanted = flow.Unfilled(nil)
	}
	facts.Entities = extractor.Extract(utterance, wanted, now)
	return facts
}

func newSnapshot() Snapshot {
	return Snapshot{State: models.SessionStateGreeting, Slots: map[string]string{}}
}

func run(t *testing.T, snap Snapshot, utterance string) (Snapshot, Instruction) {
	t.Helper()
	return Step(snap, factsFor(snap, utterance, refNow))
}

func TestAppointmentHappyPath(t *testing.T) {
	snap := newSnapshot()

	snap, instr := run(t, snap, "I need an appointment")
	require.Equal(t, models.SessionStateSlotCollection, snap.State)
	require.Equal(t, FlowAppointment, snap.Flow)
	require.Equal(t, PromptAskSlot, instr.Kind)
	require.Equal(t, SlotName, instr.Slot)

	// out-of-turn answer: date and time arrive while the name is open
	snap, instr = run(t, snap, "next tuesday morning")
	require.Equal(t, models.SessionStateSlotCollection, snap.State)
	assert.Equal(t, "2026-03-03", snap.Slots[SlotDate])
	assert.Equal(t, "9:00 AM", snap.Slots[SlotTime])
	require.Equal(t, SlotName, instr.Slot, "name is still the first open slot")

	snap, instr = run(t, snap, "John Smith")
	assert.Equal(t, "John Smith", snap.Slots[SlotName])
	require.Equal(t, SlotAppointmentType, instr.Slot)

	snap, instr = run(t, snap, "checkup")
	require.Equal(t, models.SessionStateConfirmation, snap.State)
	require.Equal(t, PromptConfirm, instr.Kind)
	assert.Equal(t, "checkup", snap.Slots[SlotAppointmentType])

	snap, instr = run(t, snap, "yes that's right")
	require.Equal(t, models.SessionStateCompleted, snap.State)
	require.Equal(t, PromptCompleted, instr.Kind)
}

func TestRefillFlow(t *testing.T) {
	snap := newSnapshot()

	snap, instr := run(t, snap, "I need a prescription refill")
	require.Equal(t, FlowRefill, snap.Flow)
	require.Equal(t, SlotName, instr.Slot)

	snap, _ = run(t, snap, "my name is Jane Doe")
	require.Equal(t, models.SessionStateConfirmation, snap.State)

	snap, _ = run(t, snap, "yes")
	require.Equal(t, models.SessionStateCompleted, snap.State)
}

func TestIntentLockIgnoresLaterFlowWords(t *testing.T) {
	snap := newSnapshot()
	snap, _ = run(t, snap, "I need an appointment")
	require.Equal(t, FlowAppointment, snap.Flow)

	// mentioning a callback mid-collection does not switch flows
	snap, _ = run(t, snap, "or maybe just call me back")
	assert.Equal(t, FlowAppointment, snap.Flow)
	assert.Equal(t, models.SessionStateSlotCollection, snap.State)
}

func TestStartOverUnlocksFlow(t *testing.T) {
	snap := newSnapshot()
	snap, _ = run(t, snap, "I need an appointment")
	snap, _ = run(t, snap, "John Smith")
	require.NotEmpty(t, snap.Slots)

	snap, instr := run(t, snap, "never mind, let's start over")
	assert.Equal(t, models.SessionStateIntentSelection, snap.State)
	assert.Equal(t, FlowNone, snap.Flow)
	assert.Empty(t, snap.Slots)
	assert.Equal(t, PromptStartOver, instr.Kind)
}

func TestConfirmationCorrectionClearsNamedSlot(t *testing.T) {
	snap := Snapshot{
		State: models.SessionStateConfirmation,
		Flow:  FlowAppointment,
		Slots: map[string]string{
			SlotName:            "John Smith",
			SlotAppointmentType: "checkup",
			SlotDate:            "2026-03-03",
			SlotTime:            "9:00 AM",
		},
	}

	snap, instr := run(t, snap, "no, the date is wrong")
	require.Equal(t, models.SessionStateSlotCollection, snap.State)
	assert.NotContains(t, snap.Slots, SlotDate)
	assert.Equal(t, "John Smith", snap.Slots[SlotName], "other slots survive")
	require.Equal(t, PromptAskSlot, instr.Kind)
	require.Equal(t, SlotDate, instr.Slot)

	snap, instr = run(t, snap, "friday")
	require.Equal(t, models.SessionStateConfirmation, snap.State)
	assert.Equal(t, "2026-03-06", snap.Slots[SlotDate])
}

func TestConfirmationCorrectionWithReplacementValue(t *testing.T) {
	snap := Snapshot{
		State: models.SessionStateConfirmation,
		Flow:  FlowAppointment,
		Slots: map[string]string{
			SlotName:            "John Smith",
			SlotAppointmentType: "checkup",
			SlotDate:            "2026-03-03",
			SlotTime:            "9:00 AM",
		},
	}

	// the named slot and its replacement arrive in one breath
	snap, instr := run(t, snap, "actually the date should be friday")
	require.Equal(t, models.SessionStateConfirmation, snap.State)
	require.Equal(t, PromptConfirm, instr.Kind)
	assert.Equal(t, "2026-03-06", snap.Slots[SlotDate])
}

func TestConfirmationPlainDenyRepeats(t *testing.T) {
	snap := Snapshot{
		State: models.SessionStateConfirmation,
		Flow:  FlowRefill,
		Slots: map[string]string{SlotName: "Jane Doe"},
	}
	next, instr := run(t, snap, "hmm")
	assert.Equal(t, models.SessionStateConfirmation, next.State)
	assert.Equal(t, PromptRepeatConfirm, instr.Kind)
}

func TestUnrecognizedIntentReasks(t *testing.T) {
	snap := newSnapshot()
	snap, instr := run(t, snap, "ehh hello")
	assert.Equal(t, models.SessionStateIntentSelection, snap.State)
	assert.Equal(t, PromptAskIntent, instr.Kind)
}

func TestGeneralTopicMidFlowDoesNotAdvance(t *testing.T) {
	snap := Snapshot{
		State: models.SessionStateSlotCollection,
		Flow:  FlowAppointment,
		Slots: map[string]string{SlotName: "John Smith"},
	}
	facts := factsFor(snap, "by the way what are your hours", refNow)
	facts.Topic = "hours"

	next, instr := Step(snap, facts)
	assert.Equal(t, models.SessionStateSlotCollection, next.State)
	assert.Equal(t, snap.Slots, next.Slots)
	require.Equal(t, PromptAnswerInline, instr.Kind)
	assert.Equal(t, "hours", instr.Topic)
	assert.Equal(t, SlotAppointmentType, instr.Slot, "repeats the open question after answering")
}

func TestGeneralQuestionLocksGeneralFlow(t *testing.T) {
	snap := newSnapshot()
	facts := factsFor(snap, "what are your hours", refNow)
	facts.Topic = "hours"

	next, instr := Step(snap, facts)
	require.Equal(t, models.SessionStateConfirmation, next.State)
	require.Equal(t, FlowGeneral, next.Flow)
	require.Equal(t, PromptAnswerTopic, instr.Kind)

	next, instr = run(t, next, "no that's all thanks")
	assert.Equal(t, models.SessionStateCompleted, next.State)
	assert.Equal(t, PromptCompleted, instr.Kind)
}

func TestStepNeverMutatesInput(t *testing.T) {
	snap := Snapshot{
		State: models.SessionStateSlotCollection,
		Flow:  FlowAppointment,
		Slots: map[string]string{SlotName: "John Smith"},
	}
	_, _ = run(t, snap, "checkup tomorrow at 3pm")
	assert.Equal(t, map[string]string{SlotName: "John Smith"}, snap.Slots)
}
