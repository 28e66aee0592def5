package dialogue

import (
	"regexp"
	"strings"
)

// Intent a coarse classification of one caller utterance. Flow intents lock
// a flow; the control intents (affirm, deny, correction, start over) only
// matter in specific states and are ignored elsewhere.
type Intent string

const (
	IntentNone        Intent = ""
	IntentAppointment Intent = "appointment"
	IntentRefill      Intent = "refill"
	IntentCallback    Intent = "callback"
	IntentGeneral     Intent = "general"
	IntentAffirm      Intent = "affirm"
	IntentDeny        Intent = "deny"
	IntentCorrection  Intent = "correction"
	IntentStartOver   Intent = "start_over"
)

var (
	refillPattern      = regexp.MustCompile(`\b(refill|renew(ing)?\s+(my\s+)?(prescription|medication|meds))\b`)
	appointmentPattern = regexp.MustCompile(`\b(appointment|schedule|reschedule|book(ing)?|come\s+in|see\s+(a|the)\s+doctor)\b`)
	callbackPattern    = regexp.MustCompile(`\b(call\s+(me\s+)?back|callback|return\s+(my\s+)?call)\b`)
	generalPattern     = regexp.MustCompile(`\b(question|hours|open|close[ds]?|closing|location|address|directions|parking|insurance|cost|price|fees?|billing)\b`)

	affirmPattern    = regexp.MustCompile(`\b(yes|yeah|yep|correct|right|sure|sounds\s+good|that'?s?\s+(right|correct|it)|confirm(ed)?|exactly)\b`)
	denyPattern      = regexp.MustCompile(`\b(no|nope|nah|not\s+(right|correct))\b`)
	correctionWords  = regexp.MustCompile(`\b(wrong|incorrect|change|actually|not\s+(that|the)|i\s+(said|meant)|instead)\b`)
	startOverPattern = regexp.MustCompile(`\b(start\s+(over|again)|never\s*mind|forget\s+(it|that)|different\s+(thing|reason))\b`)
)

// slot mention patterns used to work out which slot a correction targets
var slotMentionPatterns = map[string]*regexp.Regexp{
	SlotDate:            regexp.MustCompile(`\b(date|day)\b`),
	SlotTime:            regexp.MustCompile(`\b(time|hour|o'?clock)\b`),
	SlotName:            regexp.MustCompile(`\b(name)\b`),
	SlotAppointmentType: regexp.MustCompile(`\b(type|kind|reason|visit)\b`),
	SlotPreferredTime:   regexp.MustCompile(`\b(time|hour)\b`),
}

// DetectFlow classifies an utterance into a flow kind, FlowNone when no flow
// intent is present. Refill wins over appointment so that "schedule a refill"
// does not open the appointment flow.
func DetectFlow(text string) FlowKind {
	lower := strings.ToLower(text)
	switch {
	case refillPattern.MatchString(lower):
		return FlowRefill
	case appointmentPattern.MatchString(lower):
		return FlowAppointment
	case callbackPattern.MatchString(lower):
		return FlowCallback
	case generalPattern.MatchString(lower):
		return FlowGeneral
	}
	return FlowNone
}

// DetectIntent classifies an utterance. Flow intents take priority over the
// control intents, so "yes I want an appointment" locks the appointment flow
// rather than reading as a bare affirmation.
func DetectIntent(text string) Intent {
	lower := strings.ToLower(text)
	if startOverPattern.MatchString(lower) {
		return IntentStartOver
	}
	switch DetectFlow(lower) {
	case FlowRefill:
		return IntentRefill
	case FlowAppointment:
		return IntentAppointment
	case FlowCallback:
		return IntentCallback
	case FlowGeneral:
		return IntentGeneral
	}
	if correctionWords.MatchString(lower) {
		return IntentCorrection
	}
	if denyPattern.MatchString(lower) {
		return IntentDeny
	}
	if affirmPattern.MatchString(lower) {
		return IntentAffirm
	}
	return IntentNone
}

// CorrectionTarget returns the slot a correction utterance names within the
// given flow, empty when the caller did not name one ("that's wrong").
func CorrectionTarget(text string, flow Flow) string {
	lower := strings.ToLower(text)
	for _, slot := range flow.Slots {
		if p, ok := slotMentionPatterns[slot.Name]; ok && p.MatchString(lower) {
			return slot.Name
		}
	}
	return ""
}
