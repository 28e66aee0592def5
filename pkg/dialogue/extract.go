package dialogue

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Extractor pulls typed entities out of raw transcripts with rule-based
// patterns. Relative dates are resolved against a caller-supplied reference
// time so the same utterance always yields the same value in tests.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

var (
	monthNames = map[string]time.Month{
		"january": time.January, "february": time.February, "march": time.March,
		"april": time.April, "may": time.May, "june": time.June,
		"july": time.July, "august": time.August, "september": time.September,
		"october": time.October, "november": time.November, "december": time.December,
	}
	weekdayNames = map[string]time.Weekday{
		"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
		"wednesday": time.Wednesday, "thursday": time.Thursday,
		"friday": time.Friday, "saturday": time.Saturday,
	}

	weekdayRe  = regexp.MustCompile(`\b(next\s+)?(sunday|monday|tuesday|wednesday|thursday|friday|saturday)\b`)
	monthDayRe = regexp.MustCompile(`\b(january|february|march|april|may|june|july|august|september|october|november|december)\s+(\d{1,2})(?:st|nd|rd|th)?\b`)
	dayMonthRe = regexp.MustCompile(`\b(\d{1,2})(?:st|nd|rd|th)?\s+(?:of\s+)?(january|february|march|april|may|june|july|august|september|october|november|december)\b`)

	clockRe = regexp.MustCompile(`\b(\d{1,2})(?::(\d{2}))?\s*(am|pm|a\.m\.|p\.m\.)\b`)

	statedNameRe = regexp.MustCompile(`(?:my name is|this is|i am|i'm|name'?s)\s+([a-zA-Z][a-zA-Z'-]*(?:\s+[a-zA-Z][a-zA-Z'-]*){0,2})`)

	// words that disqualify a short utterance from the bare-name fallback
	bareNameStop = map[string]bool{
		"yes": true, "yeah": true, "no": true, "nope": true, "okay": true, "ok": true,
		"appointment": true, "refill": true, "prescription": true, "callback": true,
		"today": true, "tomorrow": true, "morning": true, "afternoon": true,
		"evening": true, "noon": true, "next": true, "monday": true, "tuesday": true,
		"wednesday": true, "thursday": true, "friday": true, "saturday": true,
		"sunday": true, "checkup": true, "followup": true, "consultation": true,
		"vaccination": true, "hello": true, "hi": true, "thanks": true, "thank": true,
		"please": true, "sure": true, "right": true, "correct": true, "wrong": true,
		"change": true, "actually": true, "question": true, "hours": true,
		"insurance": true, "hmm": true, "uh": true, "um": true, "huh": true,
		"eh": true, "ehh": true, "hey": true,
	}

	// spoken phrasings per appointment type, mapped to the canonical value
	appointmentTypeRes = []struct {
		re    *regexp.Regexp
		value string
	}{
		{regexp.MustCompile(`\b(check\s*-?\s*up|physical|annual\s+exam)\b`), "checkup"},
		{regexp.MustCompile(`\b(follow\s*-?\s*up)\b`), "followup"},
		{regexp.MustCompile(`\b(consult(ation)?)\b`), "consultation"},
		{regexp.MustCompile(`\b(vaccin(e|ation)|flu\s+shot|immunization|shot)\b`), "vaccination"},
	}

	// coarse day parts resolved to concrete clinic-hours times
	dayParts = []struct {
		word  string
		value string
	}{
		{"morning", "9:00 AM"},
		{"afternoon", "2:00 PM"},
		{"evening", "5:00 PM"},
		{"noon", "12:00 PM"},
	}
)

// Extract returns validated values for the requested slots found in the
// utterance. Slots not in the request are never produced; values failing
// the slot validator are dropped rather than stored.
func (e *Extractor) Extract(text string, wanted []Slot, now time.Time) map[string]string {
	lower := strings.ToLower(text)
	out := make(map[string]string)
	for _, slot := range wanted {
		var value string
		switch slot.Name {
		case SlotDate:
			value = extractDate(lower, now)
		case SlotTime, SlotPreferredTime:
			value = extractClockTime(lower)
		case SlotName:
			value = extractName(text, lower)
		case SlotAppointmentType:
			value = extractAppointmentType(lower)
		}
		if value != "" && slot.Validate(value) {
			out[slot.Name] = value
		}
	}
	return out
}

func extractDate(lower string, now time.Time) string {
	if strings.Contains(lower, "today") {
		return now.Format("2006-01-02")
	}
	if strings.Contains(lower, "tomorrow") {
		return now.AddDate(0, 0, 1).Format("2006-01-02")
	}
	if m := weekdayRe.FindStringSubmatch(lower); m != nil {
		target := weekdayNames[m[2]]
		days := (int(target) - int(now.Weekday()) + 7) % 7
		// a bare weekday name means the next occurrence, never today
		if days == 0 {
			days = 7
		}
		return now.AddDate(0, 0, days).Format("2006-01-02")
	}
	if m := monthDayRe.FindStringSubmatch(lower); m != nil {
		return resolveMonthDay(monthNames[m[1]], m[2], now)
	}
	if m := dayMonthRe.FindStringSubmatch(lower); m != nil {
		return resolveMonthDay(monthNames[m[2]], m[1], now)
	}
	return ""
}

// resolveMonthDay picks the next occurrence of month/day, rolling to the
// following year when the date already passed.
func resolveMonthDay(month time.Month, dayStr string, now time.Time) string {
	day, err := strconv.Atoi(dayStr)
	if err != nil || day < 1 || day > 31 {
		return ""
	}
	candidate := time.Date(now.Year(), month, day, 0, 0, 0, 0, now.Location())
	if candidate.Month() != month {
		return "" // day overflowed, e.g. February 30th
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if candidate.Before(today) {
		candidate = candidate.AddDate(1, 0, 0)
	}
	return candidate.Format("2006-01-02")
}

func extractClockTime(lower string) string {
	if m := clockRe.FindStringSubmatch(lower); m != nil {
		hour, _ := strconv.Atoi(m[1])
		if hour < 1 || hour > 12 {
			return ""
		}
		minute := 0
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
			if minute > 59 {
				return ""
			}
		}
		period := "AM"
		if strings.HasPrefix(m[3], "p") {
			period = "PM"
		}
		return fmt.Sprintf("%d:%02d %s", hour, minute, period)
	}
	for _, part := range dayParts {
		if strings.Contains(lower, part.word) {
			return part.value
		}
	}
	return ""
}

func extractName(original, lower string) string {
	if m := statedNameRe.FindStringSubmatchIndex(lower); m != nil {
		return titleCase(strings.TrimSpace(original[m[2]:m[3]]))
	}
	// bare-name fallback: a short utterance of plain words while the name
	// slot is open is taken as the name itself ("John Smith")
	words := strings.Fields(strings.Trim(lower, " .!?,"))
	if len(words) == 0 || len(words) > 3 {
		return ""
	}
	for _, w := range words {
		if bareNameStop[w] {
			return ""
		}
		for _, r := range w {
			if !(r >= 'a' && r <= 'z') && r != '\'' && r != '-' {
				return ""
			}
		}
	}
	return titleCase(strings.Join(words, " "))
}

func extractAppointmentType(lower string) string {
	for _, entry := range appointmentTypeRes {
		if entry.re.MatchString(lower) {
			return entry.value
		}
	}
	return ""
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
