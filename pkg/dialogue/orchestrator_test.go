package dialogue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/CliniqAI/voicecore/internal/models"
	"github.com/CliniqAI/voicecore/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecorder struct {
	mutex    sync.Mutex
	outcomes []Outcome
	fail     bool
}

func (f *fakeRecorder) RecordOutcome(_ context.Context, outcome Outcome) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if f.fail {
		return errors.New("recorder down")
	}
	f.outcomes = append(f.outcomes, outcome)
	return nil
}

func (f *fakeRecorder) recorded() []Outcome {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return append([]Outcome(nil), f.outcomes...)
}

type fakeGenerator struct {
	reply func(req GenerationRequest) (string, error)
}

func (f *fakeGenerator) Generate(_ context.Context, req GenerationRequest) (string, error) {
	return f.reply(req)
}

func testDialogueConfig() config.DialogueConfig {
	return config.DialogueConfig{
		ConfidenceThreshold: 0.5,
		MisunderstandingMax: 3,
		ProviderTimeout:     time.Second,
		IdleTimeout:         90 * time.Second,
		SweepInterval:       15 * time.Second,
		EvictionGracePeriod: 30 * time.Second,
	}
}

func newTestOrchestrator(rec Recorder) *Orchestrator {
	o := NewOrchestrator(testDialogueConfig(), NewEmitter(rec), nil, nil)
	o.now = func() time.Time { return refNow }
	return o
}

func say(o *Orchestrator, s *Session, text string) TurnOutput {
	return o.HandleTurn(context.Background(), s, TurnEvent{Utterance: text, Confidence: 0.95})
}

func TestScriptedAppointmentCall(t *testing.T) {
	rec := &fakeRecorder{}
	o := newTestOrchestrator(rec)
	s := newSession("CA100", "+15550100", refNow)

	out := o.Greeting(s)
	require.True(t, out.Gather)
	require.Equal(t, models.SessionStateGreeting, s.State)

	for _, utterance := range []string{
		"I need an appointment",
		"next Tuesday morning",
		"John Smith",
		"checkup",
	} {
		out = say(o, s, utterance)
		require.True(t, out.Gather, "mid-call turns keep listening")
		require.NotEmpty(t, out.Say)
	}
	require.Equal(t, models.SessionStateConfirmation, s.State)
	require.Equal(t, map[string]string{
		SlotName:            "John Smith",
		SlotAppointmentType: "checkup",
		SlotDate:            "2026-03-03",
		SlotTime:            "9:00 AM",
	}, s.Slots)

	out = say(o, s, "yes that's right")
	require.Equal(t, models.SessionStateCompleted, s.State)
	require.True(t, out.Hangup)

	outcomes := rec.recorded()
	require.Len(t, outcomes, 1)
	assert.Equal(t, "CA100", outcomes[0].CallRef)
	assert.Equal(t, models.SessionStateCompleted, outcomes[0].State)
	assert.Equal(t, FlowAppointment, outcomes[0].Flow)
	assert.Equal(t, "staff", outcomes[0].AssignedRole)
	assert.Equal(t, "John Smith", outcomes[0].Slots[SlotName])
	assert.True(t, s.OutcomeAcked())
}

func TestRefillOutcomeRoutesToDoctor(t *testing.T) {
	rec := &fakeRecorder{}
	o := newTestOrchestrator(rec)
	s := newSession("CA101", "+15550101", refNow)

	say(o, s, "I need a prescription refill")
	say(o, s, "my name is Jane Doe")
	say(o, s, "yes")

	outcomes := rec.recorded()
	require.Len(t, outcomes, 1)
	assert.Equal(t, "doctor", outcomes[0].AssignedRole)
	assert.Equal(t, FlowRefill, outcomes[0].Flow)
}

func TestEmergencyEscalationTransfersImmediately(t *testing.T) {
	rec := &fakeRecorder{}
	o := newTestOrchestrator(rec)
	s := newSession("CA102", "+15550102", refNow)

	say(o, s, "I need an appointment")
	out := say(o, s, "actually I'm having chest pain")

	require.Equal(t, models.SessionStateEscalated, s.State)
	require.True(t, out.Transfer)
	assert.Contains(t, out.Say, "911")

	outcomes := rec.recorded()
	require.Len(t, outcomes, 1)
	assert.Equal(t, ReasonMedicalEmergencyKeyword, outcomes[0].Reason)
	assert.Equal(t, SeverityEmergency, outcomes[0].Severity)
	assert.Equal(t, "doctor", outcomes[0].AssignedRole)
}

func TestThreeUnusableTurnsEscalate(t *testing.T) {
	rec := &fakeRecorder{}
	o := newTestOrchestrator(rec)
	s := newSession("CA103", "+15550103", refNow)

	var out TurnOutput
	for i := 0; i < 3; i++ {
		out = o.HandleTurn(context.Background(), s, TurnEvent{Utterance: "static noise", Confidence: 0.2})
	}
	require.Equal(t, models.SessionStateEscalated, s.State)
	require.True(t, out.Transfer)

	outcomes := rec.recorded()
	require.Len(t, outcomes, 1)
	assert.Equal(t, ReasonFailedUnderstanding, outcomes[0].Reason)
}

func TestUsableTurnResetsCounterAcrossCall(t *testing.T) {
	rec := &fakeRecorder{}
	o := newTestOrchestrator(rec)
	s := newSession("CA104", "+15550104", refNow)

	say(o, s, "I need an appointment")
	o.HandleTurn(context.Background(), s, TurnEvent{Utterance: "static", Confidence: 0.2})
	o.HandleTurn(context.Background(), s, TurnEvent{Utterance: "static", Confidence: 0.2})
	require.Equal(t, 2, s.UnrecognizedTurns)

	say(o, s, "John Smith")
	assert.Equal(t, 0, s.UnrecognizedTurns)
	assert.Equal(t, models.SessionStateSlotCollection, s.State)
}

func TestGeneratorFailureEscalatesAsProviderInstability(t *testing.T) {
	rec := &fakeRecorder{}
	o := newTestOrchestrator(rec)
	o.generator = &fakeGenerator{reply: func(GenerationRequest) (string, error) {
		return "", errors.New("upstream timeout")
	}}
	s := newSession("CA105", "+15550105", refNow)

	out := say(o, s, "I need an appointment")
	require.Equal(t, models.SessionStateEscalated, s.State)
	require.True(t, out.Transfer)

	outcomes := rec.recorded()
	require.Len(t, outcomes, 1)
	assert.Equal(t, ReasonProviderInstability, outcomes[0].Reason)
}

func TestRejectedGenerationFallsBackToTemplate(t *testing.T) {
	rec := &fakeRecorder{}
	o := newTestOrchestrator(rec)
	o.generator = &fakeGenerator{reply: func(GenerationRequest) (string, error) {
		return "You should take 200 mg of ibuprofen for that.", nil
	}}
	s := newSession("CA106", "+15550106", refNow)

	out := say(o, s, "I need an appointment")
	require.Equal(t, models.SessionStateSlotCollection, s.State, "content rejection is not an escalation")
	assert.Equal(t, slotQuestions[SlotName], out.Say)
}

func TestGeneratedReplyPassingCheckIsUsed(t *testing.T) {
	rec := &fakeRecorder{}
	o := newTestOrchestrator(rec)
	o.generator = &fakeGenerator{reply: func(req GenerationRequest) (string, error) {
		require.Equal(t, PromptAskSlot, req.Instruction.Kind)
		return "Of course! May I have your full name?", nil
	}}
	s := newSession("CA107", "+15550107", refNow)

	out := say(o, s, "I need an appointment")
	assert.Equal(t, "Of course! May I have your full name?", out.Say)
}

func TestIdleTimeoutFailsSession(t *testing.T) {
	rec := &fakeRecorder{}
	o := newTestOrchestrator(rec)
	s := newSession("CA108", "+15550108", refNow)

	say(o, s, "I need an appointment")
	out := o.HandleTurn(context.Background(), s, TurnEvent{Timeout: true})

	require.Equal(t, models.SessionStateFailed, s.State)
	require.True(t, out.Hangup)

	outcomes := rec.recorded()
	require.Len(t, outcomes, 1)
	assert.Equal(t, ReasonSessionTimeout, outcomes[0].Reason)
	assert.Equal(t, models.SessionStateFailed, outcomes[0].State)
}

func TestHangupMidFlowFailsSession(t *testing.T) {
	rec := &fakeRecorder{}
	o := newTestOrchestrator(rec)
	s := newSession("CA109", "+15550109", refNow)

	say(o, s, "I need an appointment")
	o.HandleTurn(context.Background(), s, TurnEvent{Hangup: true})

	require.Equal(t, models.SessionStateFailed, s.State)
	outcomes := rec.recorded()
	require.Len(t, outcomes, 1)
	assert.Equal(t, ReasonCallerHangup, outcomes[0].Reason)
}

func TestTurnsAfterTerminalStateAreIgnored(t *testing.T) {
	rec := &fakeRecorder{}
	o := newTestOrchestrator(rec)
	s := newSession("CA110", "+15550110", refNow)

	say(o, s, "chest pain")
	require.Equal(t, models.SessionStateEscalated, s.State)

	out := say(o, s, "hello?")
	assert.True(t, out.Hangup)
	assert.Len(t, rec.recorded(), 1)
}

func TestFailedDeliveryRetriesUntilAcked(t *testing.T) {
	rec := &fakeRecorder{fail: true}
	o := newTestOrchestrator(rec)
	s := newSession("CA111", "+15550111", refNow)

	say(o, s, "I need a prescription refill")
	say(o, s, "my name is Jane Doe")
	say(o, s, "yes")
	require.Equal(t, models.SessionStateCompleted, s.State)
	require.False(t, s.OutcomeAcked())

	rec.mutex.Lock()
	rec.fail = false
	rec.mutex.Unlock()

	o.RetryOutcome(context.Background(), s)
	require.True(t, s.OutcomeAcked())
	require.Len(t, rec.recorded(), 1)

	// a second retry never duplicates the record
	o.RetryOutcome(context.Background(), s)
	assert.Len(t, rec.recorded(), 1)
}

func TestProviderDownEventEscalates(t *testing.T) {
	rec := &fakeRecorder{}
	o := newTestOrchestrator(rec)
	s := newSession("CA112", "+15550112", refNow)

	out := o.HandleTurn(context.Background(), s, TurnEvent{ProviderDown: true})
	require.Equal(t, models.SessionStateEscalated, s.State)
	require.True(t, out.Transfer)

	outcomes := rec.recorded()
	require.Len(t, outcomes, 1)
	assert.Equal(t, ReasonProviderInstability, outcomes[0].Reason)
}
