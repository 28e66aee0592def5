package dialogue

import (
	"fmt"
	"strings"
)

// Canned lines used for greeting, handoff and as the fallback whenever the
// generator is unavailable or its output fails the content check. Every
// instruction kind has a deterministic rendering so the call never stalls
// on a provider problem.

const (
	greetingLine = "Thank you for calling the clinic. I can help you schedule an appointment, request a prescription refill, arrange a callback, or answer general questions. How can I help you today?"

	emergencyHandoffLine = "If this is a medical emergency, please hang up and dial 911 right away. I'm connecting you to our team now."
	standardHandoffLine  = "Let me connect you with a member of our staff who can help you with that. One moment please."
	instabilityLine      = "I'm sorry, I'm having trouble on my end. Let me connect you with our staff. One moment please."
	timeoutLine          = "I haven't heard anything for a while, so I'll let you go. Please call back anytime. Goodbye."
)

var slotQuestions = map[string]string{
	SlotName:            "Can I get your full name, please?",
	SlotAppointmentType: "What type of visit is this? We offer checkups, follow-ups, consultations, and vaccinations.",
	SlotDate:            "What day works best for you?",
	SlotTime:            "What time of day works best?",
	SlotPreferredTime:   "What time is best to reach you?",
}

// RenderPrompt turns an instruction into caller-facing text without any
// generator involved.
func RenderPrompt(instr Instruction, flow FlowKind, slots map[string]string, topicAnswer string) string {
	switch instr.Kind {
	case PromptAskIntent:
		return "I can help with appointments, prescription refills, callbacks, or general questions. What can I do for you?"
	case PromptAskSlot:
		if q, ok := slotQuestions[instr.Slot]; ok {
			return q
		}
		return "Could you tell me a bit more?"
	case PromptConfirm, PromptRepeatConfirm:
		return confirmationLine(flow, slots)
	case PromptAnswerTopic:
		return topicAnswer + " Is there anything else I can help you with?"
	case PromptAnswerInline:
		if q, ok := slotQuestions[instr.Slot]; ok {
			return topicAnswer + " Now, " + lowerFirst(q)
		}
		return topicAnswer
	case PromptCompleted:
		return completionLine(flow)
	case PromptStartOver:
		return "No problem, let's start fresh. I can help with appointments, prescription refills, callbacks, or general questions. What can I do for you?"
	}
	return "Could you say that again, please?"
}

func confirmationLine(flow FlowKind, slots map[string]string) string {
	switch flow {
	case FlowAppointment:
		return fmt.Sprintf("Let me confirm: a %s for %s on %s at %s. Is that right?",
			slots[SlotAppointmentType], slots[SlotName], slots[SlotDate], slots[SlotTime])
	case FlowRefill:
		return fmt.Sprintf("Let me confirm: a prescription refill request for %s. Is that right?", slots[SlotName])
	case FlowCallback:
		return fmt.Sprintf("Let me confirm: a callback for %s around %s. Is that right?",
			slots[SlotName], slots[SlotPreferredTime])
	}
	return "Did I get that right?"
}

func completionLine(flow FlowKind) string {
	switch flow {
	case FlowAppointment:
		return "You're all set, your appointment request is in. Our staff will confirm shortly. Goodbye!"
	case FlowRefill:
		return "You're all set, I've sent your refill request to the doctor. Goodbye!"
	case FlowCallback:
		return "You're all set, someone will call you back. Goodbye!"
	}
	return "Thanks for calling. Goodbye!"
}

// advice markers the assistant must never say; a generated response that
// trips one is discarded in favor of the template
var adviceMarkers = []string{
	"you should take", "i recommend taking", "increase your dose",
	"decrease your dose", "stop taking", "start taking", "double the dose",
	"you likely have", "you probably have", "sounds like you have",
	"diagnos", "mg of", "milligrams",
}

// ResponsePassesCheck is the post-generation guard: generated text carrying
// medical advice never reaches the caller.
func ResponsePassesCheck(text string) bool {
	lower := strings.ToLower(text)
	for _, marker := range adviceMarkers {
		if strings.Contains(lower, marker) {
			return false
		}
	}
	return true
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
