package dialogue

import (
	"context"
	"time"

	"github.com/CliniqAI/voicecore/internal/models"
)

// Transcription one recognized caller utterance with provider confidence
type Transcription struct {
	Text       string
	Confidence float64
}

// Recognizer speech-to-text over a complete utterance recording
type Recognizer interface {
	Recognize(ctx context.Context, audio []byte, mimeType string) (Transcription, error)
}

// GenerationRequest the constrained context handed to the response
// generator: current state, locked flow and the one open slot. Nothing
// else from the session crosses this boundary.
type GenerationRequest struct {
	State       models.SessionState
	Flow        FlowKind
	Instruction Instruction
	Slots       map[string]string // read-only summary for confirmation prompts
	TopicAnswer string            // answer-book text for topic prompts
}

// Generator produces the assistant's next utterance
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

// Synthesizer text-to-speech for the generated response
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Transport out-of-band call control, used when a decision is made outside
// a webhook cycle (idle sweeps). In-band replies travel back through the
// webhook response instead.
type Transport interface {
	EndCall(ctx context.Context, callRef string) error
}

// Outcome the single terminal record emitted once per call
type Outcome struct {
	CallRef      string
	SessionID    string
	State        models.SessionState
	Flow         FlowKind
	Slots        map[string]string
	Reason       Reason
	Severity     Severity
	AssignedRole string
	CallerNumber string
	Conversation models.TurnHistory
	StartedAt    time.Time
	EndedAt      time.Time
}

// Recorder durable downstream handling of terminal outcomes. A nil error
// is the acknowledgement that gates session eviction.
type Recorder interface {
	RecordOutcome(ctx context.Context, outcome Outcome) error
}
