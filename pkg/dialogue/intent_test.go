package dialogue

import (
	"testing"
)

func TestDetectFlow(t *testing.T) {
	cases := []struct {
		utterance string
		expected  FlowKind
	}{
		{"I need an appointment", FlowAppointment},
		{"can I schedule a visit", FlowAppointment},
		{"I'd like to book something for next week", FlowAppointment},
		{"I need a refill on my prescription", FlowRefill},
		{"refill please", FlowRefill},
		{"could someone call me back", FlowCallback},
		{"what are your hours", FlowGeneral},
		{"do you take my insurance", FlowGeneral},
		{"hello there", FlowNone},
	}
	for _, tc := range cases {
		if got := DetectFlow(tc.utterance); got != tc.expected {
			t.Errorf("DetectFlow(%q) = %q, want %q", tc.utterance, got, tc.expected)
		}
	}
}

func TestRefillWinsOverAppointment(t *testing.T) {
	// "schedule" alone would lock the appointment flow
	if got := DetectFlow("can you schedule a refill for me"); got != FlowRefill {
		t.Errorf("expected refill flow, got %q", got)
	}
}

func TestDetectIntentControls(t *testing.T) {
	cases := []struct {
		utterance string
		expected  Intent
	}{
		{"yes that's right", IntentAffirm},
		{"yep", IntentAffirm},
		{"nope", IntentDeny},
		{"no that's wrong", IntentCorrection},
		{"actually I meant friday", IntentCorrection},
		{"the date is wrong", IntentCorrection},
		{"never mind, let's start over", IntentStartOver},
		{"mmm hmm", IntentNone},
	}
	for _, tc := range cases {
		if got := DetectIntent(tc.utterance); got != tc.expected {
			t.Errorf("DetectIntent(%q) = %q, want %q", tc.utterance, got, tc.expected)
		}
	}
}

func TestFlowIntentBeatsAffirmation(t *testing.T) {
	if got := DetectIntent("yes I want an appointment"); got != IntentAppointment {
		t.Errorf("expected appointment intent, got %q", got)
	}
}

func TestCorrectionTarget(t *testing.T) {
	flow, _ := FlowFor(FlowAppointment)
	cases := []struct {
		utterance string
		expected  string
	}{
		{"no, the date is wrong", SlotDate},
		{"that time doesn't work", SlotTime},
		{"you got my name wrong", SlotName},
		{"wrong kind of visit", SlotAppointmentType},
		{"that's not right", ""},
	}
	for _, tc := range cases {
		if got := CorrectionTarget(tc.utterance, flow); got != tc.expected {
			t.Errorf("CorrectionTarget(%q) = %q, want %q", tc.utterance, got, tc.expected)
		}
	}
}
