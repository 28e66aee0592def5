package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/CliniqAI/voicecore/pkg/dialogue"
	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

// systemPrompt pins the assistant's persona and hard limits. The rules
// here are the first line of defense; the dialogue engine's content check
// is the second.
const systemPrompt = `You are the phone assistant for a medical clinic. You help callers schedule appointments, request prescription refills, arrange callbacks, and answer basic clinic questions.

Hard rules:
- Never give medical advice, never discuss medications, dosages, symptoms, diagnoses or test results. Those always go to clinic staff.
- Ask exactly one question at a time.
- Keep every reply to one or two short spoken sentences. No lists, no formatting.
- Stay on the task described in the user message. Do not invent clinic details.`

// Handler talks to the chat-completion API. Each turn is an independent
// request: the user message carries only the dialogue state, the locked
// flow and the one thing to say next, never the raw call transcript.
type Handler struct {
	client *openai.Client
	config *Config
	logger *logrus.Logger
}

// NewHandler creates a handler for the configured endpoint
func NewHandler(cfg *Config, logger *logrus.Logger) *Handler {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = cfg.BaseURL
	return &Handler{
		client: openai.NewClientWithConfig(clientConfig),
		config: cfg,
		logger: logger,
	}
}

// Complete renders one turn instruction into spoken text.
func (h *Handler) Complete(ctx context.Context, req dialogue.GenerationRequest) (string, error) {
	request := openai.ChatCompletionRequest{
		Model:       h.config.Model,
		Temperature: h.config.Temperature,
		MaxTokens:   h.config.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: BuildTurnMessage(req)},
		},
	}

	response, err := h.client.CreateChatCompletion(ctx, request)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no response choices returned")
	}

	content := strings.TrimSpace(response.Choices[0].Message.Content)
	h.logger.WithFields(logrus.Fields{
		"kind":     req.Instruction.Kind,
		"flow":     req.Flow,
		"response": content,
	}).Debug("generation completed")

	return content, nil
}

// BuildTurnMessage renders the constrained per-turn context. Exported for
// tests; nothing outside state, flow and the instruction goes in.
func BuildTurnMessage(req dialogue.GenerationRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dialogue state: %s.", req.State)
	if req.Flow != dialogue.FlowNone {
		fmt.Fprintf(&b, " The caller is working through a %s request.", req.Flow)
	}
	b.WriteString(" ")

	switch req.Instruction.Kind {
	case dialogue.PromptAskIntent:
		b.WriteString("Ask the caller what they need. The options are: scheduling an appointment, a prescription refill, a callback, or a general question.")
	case dialogue.PromptAskSlot:
		fmt.Fprintf(&b, "Ask the caller for their %s.", slotPhrase(req.Instruction.Slot))
	case dialogue.PromptConfirm, dialogue.PromptRepeatConfirm:
		fmt.Fprintf(&b, "Read back the collected details and ask the caller to confirm they are correct: %s.", slotSummary(req.Slots))
	case dialogue.PromptAnswerTopic:
		fmt.Fprintf(&b, "Answer the caller's question using exactly this information, then ask if there is anything else: %q.", req.TopicAnswer)
	case dialogue.PromptAnswerInline:
		fmt.Fprintf(&b, "Answer the caller's side question using exactly this information: %q. Then return to asking for their %s.",
			req.TopicAnswer, slotPhrase(req.Instruction.Slot))
	case dialogue.PromptCompleted:
		b.WriteString("Tell the caller their request has been recorded, the clinic will follow up, and say goodbye.")
	case dialogue.PromptStartOver:
		b.WriteString("Acknowledge starting over and ask the caller what they need: an appointment, a refill, a callback, or a question.")
	default:
		b.WriteString("Politely ask the caller to repeat themselves.")
	}
	return b.String()
}

func slotPhrase(slot string) string {
	switch slot {
	case dialogue.SlotName:
		return "full name"
	case dialogue.SlotAppointmentType:
		return "type of visit (checkup, follow-up, consultation or vaccination)"
	case dialogue.SlotDate:
		return "preferred appointment date"
	case dialogue.SlotTime:
		return "preferred appointment time"
	case dialogue.SlotPreferredTime:
		return "preferred time to be called back"
	}
	return slot
}

func slotSummary(slots map[string]string) string {
	if len(slots) == 0 {
		return "no details collected"
	}
	parts := make([]string, 0, len(slots))
	for _, name := range []string{
		dialogue.SlotName,
		dialogue.SlotAppointmentType,
		dialogue.SlotDate,
		dialogue.SlotTime,
		dialogue.SlotPreferredTime,
	} {
		if value, ok := slots[name]; ok {
			parts = append(parts, fmt.Sprintf("%s=%s", name, value))
		}
	}
	return strings.Join(parts, ", ")
}
