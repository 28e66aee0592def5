package dialogue

import (
	"strings"
)

// Severity escalation severity attached to a decision
type Severity string

const (
	SeverityEmergency Severity = "emergency"
	SeverityStandard  Severity = "standard"
)

// Reason machine-readable escalation reason, stored with the outcome
type Reason string

const (
	ReasonMedicalEmergencyKeyword Reason = "medical_emergency_keyword"
	ReasonRequestedHuman          Reason = "requested_human"
	ReasonMedicalRiskIntent       Reason = "medical_risk_intent"
	ReasonFailedUnderstanding     Reason = "failed_understanding_3_turns"
	ReasonProviderInstability     Reason = "provider_instability"
	ReasonSessionTimeout          Reason = "session_timeout"
)

// Decision the outcome of evaluating one turn against the rule set
type Decision struct {
	Escalate bool
	Reason   Reason
	Severity Severity
}

// Signals the per-turn facts the rules run on. The engine sees nothing
// else: no session object, no collaborators, no clock.
type Signals struct {
	Utterance    string
	Confidence   float64
	EntityCount  int
	ValidIntent  bool
	ProviderDown bool
}

var emergencyPhrases = []string{
	"chest pain", "can't breathe", "cannot breathe", "can not breathe",
	"trouble breathing", "difficulty breathing", "short of breath",
	"bleeding", "unconscious", "passed out", "collapsed",
	"heart attack", "stroke", "overdose", "severe pain",
	"suicide", "suicidal", "kill myself",
}

var humanRequestPhrases = []string{
	"speak to a person", "talk to a person", "speak to a human",
	"talk to a human", "speak to someone", "talk to someone",
	"speak with a person", "speak with someone", "real person",
	"a human", "an operator", "operator", "representative",
	"front desk", "receptionist",
}

// medicalRiskPhrases flag advice-seeking utterances the assistant must not
// answer. Plain refill requests are carved out below so the refill flow
// still works.
var medicalRiskPhrases = []string{
	"test results", "lab results", "diagnosis", "diagnose",
	"side effect", "dosage", "dose", "should i take", "stop taking",
	"is it safe", "medication", "prescription", "symptom",
}

// Engine the ordered escalation rule set. Rules run before any state
// mutation on every turn; the first matching rule wins.
type Engine struct {
	ConfidenceThreshold float64
	MisunderstandingMax int
}

func NewEngine(confidenceThreshold float64, misunderstandingMax int) *Engine {
	return &Engine{
		ConfidenceThreshold: confidenceThreshold,
		MisunderstandingMax: misunderstandingMax,
	}
}

// Evaluate runs the rules for one turn and returns the decision plus the
// updated unrecognized-turn counter. The counter resets only on a turn
// carrying a usable entity or a valid intent; confident small talk does not
// reset it.
func (e *Engine) Evaluate(sig Signals, unrecognizedTurns int) (Decision, int) {
	lower := strings.ToLower(sig.Utterance)

	if containsAny(lower, emergencyPhrases) {
		return Decision{Escalate: true, Reason: ReasonMedicalEmergencyKeyword, Severity: SeverityEmergency}, unrecognizedTurns
	}
	if containsAny(lower, humanRequestPhrases) {
		return Decision{Escalate: true, Reason: ReasonRequestedHuman, Severity: SeverityStandard}, unrecognizedTurns
	}
	if containsAny(lower, medicalRiskPhrases) && !refillPattern.MatchString(lower) {
		return Decision{Escalate: true, Reason: ReasonMedicalRiskIntent, Severity: SeverityStandard}, unrecognizedTurns
	}

	usable := sig.Confidence >= e.ConfidenceThreshold && (sig.EntityCount > 0 || sig.ValidIntent)
	if usable {
		unrecognizedTurns = 0
	} else if !sig.ProviderDown {
		unrecognizedTurns++
		if unrecognizedTurns >= e.MisunderstandingMax {
			return Decision{Escalate: true, Reason: ReasonFailedUnderstanding, Severity: SeverityStandard}, unrecognizedTurns
		}
	}

	if sig.ProviderDown {
		return Decision{Escalate: true, Reason: ReasonProviderInstability, Severity: SeverityStandard}, unrecognizedTurns
	}
	return Decision{}, unrecognizedTurns
}

func containsAny(text string, phrases []string) bool {
	for _, phrase := range phrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}
