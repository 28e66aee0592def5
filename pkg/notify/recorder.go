package notify

import (
	"context"
	"fmt"

	"github.com/CliniqAI/voicecore/internal/models"
	"github.com/CliniqAI/voicecore/pkg/constants"
	"github.com/CliniqAI/voicecore/pkg/dialogue"
	"github.com/CliniqAI/voicecore/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Recorder is the durable end of the dialogue engine: it turns terminal
// outcomes into task/escalation rows plus dashboard notifications, and
// fires SMS alerts afterwards. Its nil return is the acknowledgement the
// session manager waits for, so only the database rows decide it; SMS
// trouble never blocks an ack.
type Recorder struct {
	db  *gorm.DB
	sms *SMSSender // nil when Twilio is not configured
}

func NewRecorder(db *gorm.DB, sms *SMSSender) *Recorder {
	return &Recorder{db: db, sms: sms}
}

// RecordOutcome persists one terminal outcome.
func (r *Recorder) RecordOutcome(ctx context.Context, outcome dialogue.Outcome) error {
	var err error
	switch outcome.State {
	case models.SessionStateCompleted:
		err = r.recordTask(outcome)
	case models.SessionStateEscalated, models.SessionStateFailed:
		err = r.recordEscalation(outcome)
	default:
		return fmt.Errorf("outcome for non-terminal state %s", outcome.State)
	}
	if err != nil {
		return err
	}
	r.alert(ctx, outcome)
	return nil
}

func (r *Recorder) recordTask(outcome dialogue.Outcome) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		task := &models.Task{
			CallRef:        outcome.CallRef,
			PatientName:    outcome.Slots[dialogue.SlotName],
			CallbackNumber: outcome.CallerNumber,
			RequestType:    string(outcome.Flow),
			AssignedRole:   outcome.AssignedRole,
			Priority:       models.TaskPriorityNormal,
			Slots:          models.SlotMap(outcome.Slots),
			Status:         models.TaskStatusPending,
		}
		if err := models.CreateTask(tx, task); err != nil {
			return err
		}
		return models.CreateNotification(tx, &models.Notification{
			Role:    outcome.AssignedRole,
			Title:   fmt.Sprintf("New %s request", outcome.Flow),
			Message: taskSummary(task),
			Kind:    "task",
			CallRef: outcome.CallRef,
			TaskID:  &task.ID,
		})
	})
}

func (r *Recorder) recordEscalation(outcome dialogue.Outcome) error {
	urgent := outcome.Severity == dialogue.SeverityEmergency
	return r.db.Transaction(func(tx *gorm.DB) error {
		escalation := &models.Escalation{
			CallRef:    outcome.CallRef,
			Reason:     string(outcome.Reason),
			Severity:   string(outcome.Severity),
			Transcript: outcome.Conversation,
			Details:    fmt.Sprintf("caller %s, flow %q", outcome.CallerNumber, outcome.Flow),
		}
		if err := models.CreateEscalation(tx, escalation); err != nil {
			return err
		}

		roles := []string{outcome.AssignedRole}
		if urgent && outcome.AssignedRole != constants.ROLE_STAFF {
			// emergencies light up both dashboards
			roles = append(roles, constants.ROLE_STAFF)
		}
		for _, role := range roles {
			if err := models.CreateNotification(tx, &models.Notification{
				Role:         role,
				Title:        fmt.Sprintf("Call escalated: %s", outcome.Reason),
				Message:      fmt.Sprintf("Caller %s needs follow-up (%s severity).", outcome.CallerNumber, outcome.Severity),
				Kind:         "escalation",
				IsUrgent:     urgent,
				CallRef:      outcome.CallRef,
				EscalationID: &escalation.ID,
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// alert sends the post-commit SMS fan-out.
func (r *Recorder) alert(ctx context.Context, outcome dialogue.Outcome) {
	if r.sms == nil {
		return
	}
	switch {
	case outcome.Severity == dialogue.SeverityEmergency:
		r.sms.NotifyEveryone(ctx, fmt.Sprintf(
			"EMERGENCY escalation from %s (%s). Call transcript is on the dashboard.",
			outcome.CallerNumber, outcome.Reason))
	case outcome.State == models.SessionStateEscalated:
		r.sms.NotifyRole(ctx, outcome.AssignedRole, fmt.Sprintf(
			"Call from %s escalated (%s). Please follow up.",
			outcome.CallerNumber, outcome.Reason))
	default:
		// completed tasks and timeouts show up on the dashboard only
	}
	logger.Debug("outcome alerts dispatched",
		zap.String("callRef", outcome.CallRef), zap.String("state", string(outcome.State)))
}

func taskSummary(task *models.Task) string {
	switch dialogue.FlowKind(task.RequestType) {
	case dialogue.FlowAppointment:
		return fmt.Sprintf("%s requested a %s on %s at %s.",
			task.PatientName, task.Slots[dialogue.SlotAppointmentType],
			task.Slots[dialogue.SlotDate], task.Slots[dialogue.SlotTime])
	case dialogue.FlowRefill:
		return fmt.Sprintf("%s requested a prescription refill.", task.PatientName)
	case dialogue.FlowCallback:
		return fmt.Sprintf("%s asked for a callback around %s at %s.",
			task.PatientName, task.Slots[dialogue.SlotPreferredTime], task.CallbackNumber)
	}
	return fmt.Sprintf("General inquiry from %s.", task.CallbackNumber)
}
