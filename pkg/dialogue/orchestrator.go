package dialogue

import (
	"context"
	"time"

	"github.com/CliniqAI/voicecore/internal/models"
	"github.com/CliniqAI/voicecore/pkg/config"
	"github.com/CliniqAI/voicecore/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ReasonCallerHangup records calls abandoned by the caller before a
// terminal state was reached.
const ReasonCallerHangup Reason = "caller_hangup"

// Orchestrator runs the per-turn pipeline: recognition, classification,
// escalation rules, the state machine, response generation and synthesis.
// Collaborators are interfaces so tests swap them freely; any of the
// provider-backed ones may be nil, in which case the deterministic
// template path is used.
type Orchestrator struct {
	cfg config.DialogueConfig

	engine    *Engine
	extractor *Extractor
	answers   *AnswerBook

	recognizer  Recognizer
	generator   Generator
	synthesizer Synthesizer
	emitter     *Emitter

	db *gorm.DB

	now func() time.Time
}

func NewOrchestrator(cfg config.DialogueConfig, emitter *Emitter, answers *AnswerBook, db *gorm.DB) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		engine:    NewEngine(cfg.ConfidenceThreshold, cfg.MisunderstandingMax),
		extractor: NewExtractor(),
		answers:   answers,
		emitter:   emitter,
		db:        db,
		now:       time.Now,
	}
}

// WithProviders attaches the speech and generation collaborators.
func (o *Orchestrator) WithProviders(rec Recognizer, gen Generator, syn Synthesizer) *Orchestrator {
	o.recognizer = rec
	o.generator = gen
	o.synthesizer = syn
	return o
}

// Greeting produces the opening line for a freshly answered call. It does
// not consume a turn; the machine stays in GREETING until the caller
// speaks.
func (o *Orchestrator) Greeting(s *Session) TurnOutput {
	now := o.now()
	s.appendAssistantTurn(greetingLine, now)
	s.touch(now)
	o.persist(s)
	out := TurnOutput{Say: greetingLine, Gather: true}
	o.speak(s, &out)
	return out
}

// HandleTurn processes one inbound event. It only ever runs on the
// session's worker goroutine, so it mutates the session freely.
func (o *Orchestrator) HandleTurn(ctx context.Context, s *Session, ev TurnEvent) TurnOutput {
	now := o.now()

	if ev.Greeting {
		return o.Greeting(s)
	}
	if ev.RedeliverOutcome {
		o.RetryOutcome(ctx, s)
		return TurnOutput{}
	}
	s.touch(now)

	if s.IsTerminal() {
		return TurnOutput{Hangup: true}
	}
	if ev.Hangup {
		return o.finishFailed(ctx, s, ReasonCallerHangup, now, TurnOutput{Hangup: true})
	}
	if ev.Timeout {
		return o.finishFailed(ctx, s, ReasonSessionTimeout, now, TurnOutput{Say: timeoutLine, Hangup: true})
	}

	s.TurnCount++

	text, confidence, providerDown := o.transcribe(ctx, ev)
	s.appendCallerTurn(text, confidence, now)
	if s.callerRepeats >= 2 {
		logger.Warn("caller repeating themselves",
			zap.String("callRef", s.CallRef),
			zap.Int("repeats", s.callerRepeats),
			zap.String("state", string(s.State)))
	}

	facts := o.classify(s, text, now)

	decision, counter := o.engine.Evaluate(Signals{
		Utterance:    text,
		Confidence:   confidence,
		EntityCount:  len(facts.Entities),
		ValidIntent:  o.validIntent(s, facts),
		ProviderDown: providerDown,
	}, s.UnrecognizedTurns)
	s.UnrecognizedTurns = counter

	if decision.Escalate {
		return o.escalate(ctx, s, decision, now)
	}

	// below the confidence floor the transcript is untrusted: it neither
	// fills slots nor locks a flow, it only re-prompts
	if confidence < o.cfg.ConfidenceThreshold {
		facts = TurnFacts{Utterance: text}
	}

	next, instr := Step(s.snapshot(), facts)
	s.setState(next.State)
	s.Flow = next.Flow
	s.Slots = next.Slots

	response, genDown := o.compose(ctx, s, instr)
	if genDown {
		return o.escalate(ctx, s, Decision{
			Escalate: true,
			Reason:   ReasonProviderInstability,
			Severity: SeverityStandard,
		}, now)
	}

	s.appendAssistantTurn(response, now)
	if s.repeatCount >= 2 {
		logger.Warn("assistant repeating itself",
			zap.String("callRef", s.CallRef),
			zap.Int("repeats", s.repeatCount),
			zap.String("state", string(s.State)))
	}

	out := TurnOutput{Say: response, Gather: true}
	if s.State == models.SessionStateCompleted {
		s.EndedAt = now
		o.emitOutcome(ctx, s)
		out = TurnOutput{Say: response, Hangup: true}
	}
	o.speak(s, &out)
	o.persist(s)
	return out
}

// transcribe resolves the caller's words for this turn, from the event
// itself or by running recognition over the attached audio.
func (o *Orchestrator) transcribe(ctx context.Context, ev TurnEvent) (string, float64, bool) {
	if ev.Audio == nil || o.recognizer == nil {
		return ev.Utterance, ev.Confidence, ev.ProviderDown
	}
	recCtx, cancel := context.WithTimeout(ctx, o.cfg.ProviderTimeout)
	defer cancel()
	tr, err := o.recognizer.Recognize(recCtx, ev.Audio, ev.AudioMime)
	if err != nil {
		logger.Warn("recognition failed", zap.Error(err))
		return "", 0, true
	}
	return tr.Text, tr.Confidence, false
}

// classify runs intent detection, answer-book lookup and entity extraction
// for one utterance, producing the machine's input.
func (o *Orchestrator) classify(s *Session, text string, now time.Time) TurnFacts {
	facts := TurnFacts{
		Utterance: text,
		Intent:    DetectIntent(text),
		Flow:      DetectFlow(text),
	}
	if o.answers != nil {
		if topic, _, ok := o.answers.Match(text); ok {
			facts.Topic = topic
		}
	}

	// extract against the locked flow's open slots, or the slots of the
	// flow being locked this turn, so out-of-turn answers stick; during
	// confirmation every slot is fair game because a correction may
	// replace an already-filled value
	var wanted []Slot
	if flow, ok := FlowFor(s.Flow); ok && s.Flow != FlowNone {
		if s.State == models.SessionStateConfirmation {
			wanted = flow.Slots
		} else {
			wanted = flow.Unfilled(s.Slots)
		}
	} else if flow, ok := FlowFor(facts.Flow); ok && facts.Flow != FlowNone && facts.Flow != FlowGeneral {
		wanted = flow.Unfilled(nil)
	}
	facts.Entities = o.extractor.Extract(text, wanted, now)
	return facts
}

// validIntent reports whether the turn carried an intent the current state
// can act on; it feeds the misunderstanding counter.
func (o *Orchestrator) validIntent(s *Session, facts TurnFacts) bool {
	if facts.Flow != FlowNone || facts.Topic != "" || facts.Intent == IntentStartOver {
		return true
	}
	if s.State == models.SessionStateConfirmation {
		switch facts.Intent {
		case IntentAffirm, IntentDeny, IntentCorrection:
			return true
		}
	}
	return false
}

// compose renders the assistant's reply for an instruction, preferring the
// generator and falling back to the template whenever generation fails the
// content check. The second return is true only on a generator timeout or
// transport error, which escalates.
func (o *Orchestrator) compose(ctx context.Context, s *Session, instr Instruction) (string, bool) {
	topicAnswer := ""
	if instr.Topic != "" && o.answers != nil {
		topicAnswer = o.answers.Answer(instr.Topic)
	}
	fallback := RenderPrompt(instr, s.Flow, s.Slots, topicAnswer)

	if o.generator == nil {
		return fallback, false
	}

	genCtx, cancel := context.WithTimeout(ctx, o.cfg.ProviderTimeout)
	defer cancel()
	text, err := o.generator.Generate(genCtx, GenerationRequest{
		State:       s.State,
		Flow:        s.Flow,
		Instruction: instr,
		Slots:       cloneSlots(s.Slots),
		TopicAnswer: topicAnswer,
	})
	if err != nil {
		logger.Warn("generation failed", zap.String("callRef", s.CallRef), zap.Error(err))
		return "", true
	}
	if text == "" || !ResponsePassesCheck(text) {
		logger.Warn("generated response rejected, using template",
			zap.String("callRef", s.CallRef), zap.String("kind", string(instr.Kind)))
		return fallback, false
	}
	return text, false
}

// speak synthesizes the reply when a synthesizer is wired. Synthesis
// trouble degrades to plain text; the transport can still speak it.
func (o *Orchestrator) speak(s *Session, out *TurnOutput) {
	if o.synthesizer == nil || out.Say == "" {
		return
	}
	synCtx, cancel := context.WithTimeout(context.Background(), o.cfg.ProviderTimeout)
	defer cancel()
	audio, err := o.synthesizer.Synthesize(synCtx, out.Say)
	if err != nil {
		logger.Warn("synthesis failed, falling back to transport voice",
			zap.String("callRef", s.CallRef), zap.Error(err))
		return
	}
	out.Audio = audio
}

func (o *Orchestrator) escalate(ctx context.Context, s *Session, decision Decision, now time.Time) TurnOutput {
	s.setState(models.SessionStateEscalated)
	s.Reason = decision.Reason
	s.Severity = decision.Severity
	s.EndedAt = now

	line := standardHandoffLine
	if decision.Severity == SeverityEmergency {
		line = emergencyHandoffLine
	} else if decision.Reason == ReasonProviderInstability {
		line = instabilityLine
	}
	s.appendAssistantTurn(line, now)

	logger.Info("call escalated",
		zap.String("callRef", s.CallRef),
		zap.String("reason", string(decision.Reason)),
		zap.String("severity", string(decision.Severity)))

	o.emitOutcome(ctx, s)
	o.persist(s)
	out := TurnOutput{Say: line, Transfer: true}
	o.speak(s, &out)
	return out
}

func (o *Orchestrator) finishFailed(ctx context.Context, s *Session, reason Reason, now time.Time, out TurnOutput) TurnOutput {
	s.setState(models.SessionStateFailed)
	s.Reason = reason
	s.Severity = SeverityStandard
	s.EndedAt = now
	if out.Say != "" {
		s.appendAssistantTurn(out.Say, now)
	}
	o.emitOutcome(ctx, s)
	o.persist(s)
	return out
}

// emitOutcome builds and delivers the terminal record; a recorder ack
// marks the session evictable.
func (o *Orchestrator) emitOutcome(ctx context.Context, s *Session) {
	outcome := Outcome{
		CallRef:      s.CallRef,
		SessionID:    s.ID,
		State:        s.State,
		Flow:         s.Flow,
		Slots:        cloneSlots(s.Slots),
		Reason:       s.Reason,
		Severity:     s.Severity,
		AssignedRole: RoleFor(s.Flow, s.Reason, s.Severity),
		CallerNumber: s.CallerNumber,
		Conversation: s.History,
		StartedAt:    s.StartedAt,
		EndedAt:      s.EndedAt,
	}
	if o.emitter.Emit(ctx, outcome) {
		s.setAcked()
	}
}

// RetryOutcome re-attempts delivery for a terminal session whose recorder
// ack is still pending. The sweep dispatches it as a RedeliverOutcome
// event, so it always runs on the session's worker.
func (o *Orchestrator) RetryOutcome(ctx context.Context, s *Session) {
	if !s.IsTerminal() || s.OutcomeAcked() {
		return
	}
	o.emitOutcome(ctx, s)
}

// persist mirrors the in-memory session into its snapshot row. Failures
// are logged and ignored; the in-memory session stays authoritative.
func (o *Orchestrator) persist(s *Session) {
	if o.db == nil {
		return
	}
	record := s.Record()
	existing, err := models.GetCallSessionByCallRef(o.db, s.CallRef)
	if err != nil {
		if createErr := models.CreateCallSession(o.db, record); createErr != nil {
			logger.Warn("session snapshot create failed",
				zap.String("callRef", s.CallRef), zap.Error(createErr))
		}
		return
	}
	record.ID = existing.ID
	record.CreatedAt = existing.CreatedAt
	if updateErr := models.UpdateCallSession(o.db, record); updateErr != nil {
		logger.Warn("session snapshot update failed",
			zap.String("callRef", s.CallRef), zap.Error(updateErr))
	}
}
