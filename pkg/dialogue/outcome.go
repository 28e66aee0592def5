package dialogue

import (
	"context"
	"sync"

	"github.com/CliniqAI/voicecore/internal/models"
	"github.com/CliniqAI/voicecore/pkg/constants"
	"github.com/CliniqAI/voicecore/pkg/logger"
	"go.uber.org/zap"
)

// RoleFor routes an outcome to the staff group or the doctor group.
// Refills and anything medical go to the doctor, the rest to staff.
func RoleFor(flow FlowKind, reason Reason, severity Severity) string {
	if severity == SeverityEmergency || reason == ReasonMedicalRiskIntent {
		return constants.ROLE_DOCTOR
	}
	if flow == FlowRefill {
		return constants.ROLE_DOCTOR
	}
	return constants.ROLE_STAFF
}

// Emitter hands terminal outcomes to the recorder exactly once per
// (call ref, terminal state) pair. Failed deliveries stay pending so the
// manager's sweep can retry them before evicting the session.
type Emitter struct {
	recorder Recorder

	mutex    sync.Mutex
	sent     map[string]bool
	inflight map[string]bool
}

func NewEmitter(recorder Recorder) *Emitter {
	return &Emitter{
		recorder: recorder,
		sent:     make(map[string]bool),
		inflight: make(map[string]bool),
	}
}

// Emit delivers the outcome unless the same (call ref, state) pair already
// went through. Returns true once the recorder has acknowledged, whether
// now or on an earlier attempt. A pair whose delivery is still in flight
// is not re-delivered; the second caller reports unacked and the sweep
// picks it up again if the first attempt fails.
func (e *Emitter) Emit(ctx context.Context, outcome Outcome) bool {
	key := outcome.CallRef + "/" + string(outcome.State)

	e.mutex.Lock()
	if e.sent[key] {
		e.mutex.Unlock()
		return true
	}
	if e.inflight[key] {
		e.mutex.Unlock()
		return false
	}
	e.inflight[key] = true
	e.mutex.Unlock()

	err := e.recorder.RecordOutcome(ctx, outcome)

	e.mutex.Lock()
	delete(e.inflight, key)
	if err == nil {
		e.sent[key] = true
	}
	e.mutex.Unlock()

	if err != nil {
		logger.Error("outcome delivery failed, will retry",
			zap.String("callRef", outcome.CallRef),
			zap.String("state", string(outcome.State)),
			zap.Error(err))
		return false
	}

	logger.Info("outcome recorded",
		zap.String("callRef", outcome.CallRef),
		zap.String("state", string(outcome.State)),
		zap.String("flow", string(outcome.Flow)),
		zap.String("role", outcome.AssignedRole),
		zap.String("reason", string(outcome.Reason)))
	return true
}

// Forget drops the idempotence marker after the session is evicted so the
// map does not grow without bound.
func (e *Emitter) Forget(callRef string, state models.SessionState) {
	e.mutex.Lock()
	delete(e.sent, callRef+"/"+string(state))
	e.mutex.Unlock()
}
