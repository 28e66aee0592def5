package dialogue

import (
	"context"
	"sync"
	"time"

	"github.com/CliniqAI/voicecore/internal/models"
	gonanoid "github.com/matoous/go-nanoid"
)

// TurnEvent one inbound event for a session: a recognized utterance from
// the webhook layer, raw audio from the stream bridge, or a control event
// raised by the manager itself.
type TurnEvent struct {
	Utterance    string
	Confidence   float64
	Audio        []byte
	AudioMime    string
	ProviderDown bool // transport already knows recognition failed
	Timeout      bool // raised by the idle sweep, not by the caller
	Hangup       bool // caller disconnected mid-flow

	// Greeting asks for the opening line of a fresh call; it does not
	// consume a turn.
	Greeting bool

	// RedeliverOutcome retries a terminal session's unacked outcome on the
	// session's own worker, so the sweep never touches session state.
	RedeliverOutcome bool
}

// TurnOutput what the transport should do with the caller next
type TurnOutput struct {
	Say      string
	Audio    []byte // synthesized speech, nil when synthesis was skipped
	Gather   bool   // keep listening for the next utterance
	Transfer bool   // hand off to the configured human target
	Hangup   bool
}

type turnJob struct {
	ctx   context.Context
	event TurnEvent
	reply chan TurnOutput
}

// Session one live call. All mutation happens on the session's own worker
// goroutine, which consumes the queue one job at a time; overlapping events
// for the same call serialize there instead of racing.
type Session struct {
	ID           string
	CallRef      string
	CallerNumber string

	State models.SessionState
	Flow  FlowKind
	Slots map[string]string

	TurnCount         int
	UnrecognizedTurns int

	Reason   Reason
	Severity Severity

	History models.TurnHistory

	StartedAt time.Time
	EndedAt   time.Time

	// repeated-response tracking for conversation quality warnings
	lastAssistantText string
	repeatCount       int
	lastCallerText    string
	callerRepeats     int

	outcomeAcked bool

	queue  chan turnJob
	ctx    context.Context
	cancel context.CancelFunc

	mutex sync.Mutex // guards fields read off-worker by the sweep
	// lastActivity is only written by the worker and read by the sweep
	lastActivity time.Time
}

func newSession(callRef, callerNumber string, now time.Time) *Session {
	id, _ := gonanoid.Nanoid(21)
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		ID:           id,
		CallRef:      callRef,
		CallerNumber: callerNumber,
		State:        models.SessionStateGreeting,
		Slots:        make(map[string]string),
		StartedAt:    now,
		lastActivity: now,
		queue:        make(chan turnJob, 8),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// IsTerminal reports whether the session reached a terminal state. Safe
// off-worker; state writes go through setState.
func (s *Session) IsTerminal() bool {
	switch s.CurrentState() {
	case models.SessionStateCompleted, models.SessionStateEscalated, models.SessionStateFailed:
		return true
	}
	return false
}

// setState is the only state write path; the worker calls it, the sweep
// reads through CurrentState.
func (s *Session) setState(state models.SessionState) {
	s.mutex.Lock()
	s.State = state
	s.mutex.Unlock()
}

// CurrentState is safe to call from the sweep goroutine.
func (s *Session) CurrentState() models.SessionState {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.State
}

func (s *Session) touch(now time.Time) {
	s.mutex.Lock()
	s.lastActivity = now
	s.mutex.Unlock()
}

// LastActivity is safe to call from the sweep goroutine.
func (s *Session) LastActivity() time.Time {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.lastActivity
}

func (s *Session) setAcked() {
	s.mutex.Lock()
	s.outcomeAcked = true
	s.mutex.Unlock()
}

// OutcomeAcked reports whether the recorder acknowledged the terminal
// outcome; eviction waits for it.
func (s *Session) OutcomeAcked() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.outcomeAcked
}

func (s *Session) appendCallerTurn(text string, confidence float64, now time.Time) {
	s.History = append(s.History, models.TurnMessage{
		Role:       "caller",
		Content:    text,
		Confidence: confidence,
		State:      string(s.State),
		Timestamp:  now,
	})
	if text != "" && text == s.lastCallerText {
		s.callerRepeats++
	} else {
		s.lastCallerText = text
		s.callerRepeats = 0
	}
}

func (s *Session) appendAssistantTurn(text string, now time.Time) {
	s.History = append(s.History, models.TurnMessage{
		Role:      "assistant",
		Content:   text,
		State:     string(s.State),
		Timestamp: now,
	})
	if text == s.lastAssistantText {
		s.repeatCount++
	} else {
		s.lastAssistantText = text
		s.repeatCount = 0
	}
}

// Snapshot copies the machine-visible variables for a pure Step call.
func (s *Session) snapshot() Snapshot {
	return Snapshot{State: s.State, Flow: s.Flow, Slots: cloneSlots(s.Slots)}
}

// Record builds the persistence row for the session's current state.
func (s *Session) Record() *models.CallSession {
	row := &models.CallSession{
		SessionID:          s.ID,
		CallRef:            s.CallRef,
		State:              s.State,
		Flow:               string(s.Flow),
		CallerNumber:       s.CallerNumber,
		TurnCount:          s.TurnCount,
		UnrecognizedTurns:  s.UnrecognizedTurns,
		Slots:              models.SlotMap(cloneSlots(s.Slots)),
		Conversation:       s.History,
		EscalationReason:   string(s.Reason),
		EscalationSeverity: string(s.Severity),
		StartTime:          s.StartedAt,
		LastActivity:       s.LastActivity(),
	}
	if !s.EndedAt.IsZero() {
		end := s.EndedAt
		row.EndTime = &end
		row.Duration = int(end.Sub(s.StartedAt).Seconds())
	}
	return row
}
