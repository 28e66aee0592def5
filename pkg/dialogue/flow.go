package dialogue

import (
	"regexp"
	"time"
)

// FlowKind caller-intent category. Each flow carries its own ordered slot
// list; once locked the session commits to it until completion, escalation
// or an explicit restart.
type FlowKind string

const (
	FlowNone        FlowKind = ""
	FlowAppointment FlowKind = "appointment"
	FlowRefill      FlowKind = "refill"
	FlowCallback    FlowKind = "callback"
	FlowGeneral     FlowKind = "general"
)

// Slot names are shared between flows and the entity extractor.
const (
	SlotName            = "name"
	SlotAppointmentType = "appointment_type"
	SlotDate            = "date"
	SlotTime            = "time"
	SlotPreferredTime   = "preferred_time"
)

// Slot one required piece of structured information for a flow
type Slot struct {
	Name     string
	Validate func(value string) bool
}

// Flow a static per-kind definition: ordered slots, asked in order
type Flow struct {
	Kind  FlowKind
	Slots []Slot
}

var namePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z .'-]{1,59}$`)

// appointment types the clinic accepts, normalized by the extractor
var appointmentTypes = map[string]bool{
	"checkup":      true,
	"followup":     true,
	"consultation": true,
	"vaccination":  true,
}

func validName(v string) bool {
	return namePattern.MatchString(v)
}

func validDate(v string) bool {
	_, err := time.Parse("2006-01-02", v)
	return err == nil
}

func validTime(v string) bool {
	_, err := time.Parse("3:04 PM", v)
	return err == nil
}

func validAppointmentType(v string) bool {
	return appointmentTypes[v]
}

var flows = map[FlowKind]Flow{
	FlowAppointment: {
		Kind: FlowAppointment,
		Slots: []Slot{
			{Name: SlotName, Validate: validName},
			{Name: SlotAppointmentType, Validate: validAppointmentType},
			{Name: SlotDate, Validate: validDate},
			{Name: SlotTime, Validate: validTime},
		},
	},
	FlowRefill: {
		Kind: FlowRefill,
		Slots: []Slot{
			{Name: SlotName, Validate: validName},
		},
	},
	FlowCallback: {
		Kind: FlowCallback,
		Slots: []Slot{
			{Name: SlotName, Validate: validName},
			{Name: SlotPreferredTime, Validate: validTime},
		},
	},
	FlowGeneral: {
		Kind:  FlowGeneral,
		Slots: nil,
	},
}

// FlowFor returns the static definition for a flow kind.
func FlowFor(kind FlowKind) (Flow, bool) {
	f, ok := flows[kind]
	return f, ok
}

// Unfilled returns the flow's slots that have no valid value yet, in their
// defined order.
func (f Flow) Unfilled(slots map[string]string) []Slot {
	var missing []Slot
	for _, slot := range f.Slots {
		value, ok := slots[slot.Name]
		if !ok || !slot.Validate(value) {
			missing = append(missing, slot)
		}
	}
	return missing
}

// Complete reports whether every slot holds a value passing its validator.
func (f Flow) Complete(slots map[string]string) bool {
	return len(f.Unfilled(slots)) == 0
}
