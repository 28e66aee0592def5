package dialogue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/CliniqAI/voicecore/pkg/config"
	"github.com/CliniqAI/voicecore/pkg/logger"
	"go.uber.org/zap"
)

// ErrSessionClosed is returned for events arriving after a session's
// worker shut down.
var ErrSessionClosed = errors.New("session closed")

// Manager owns every live session: lookup by call ref, per-session worker
// startup, the idle sweep and eviction. Everything the transport layer
// does goes through Dispatch, which serializes onto the session worker.
type Manager struct {
	cfg       config.DialogueConfig
	orch      *Orchestrator
	emitter   *Emitter
	transport Transport // optional, used to end idle calls out of band

	mutex    sync.RWMutex
	sessions map[string]*Session

	stop     chan struct{}
	stopOnce sync.Once
	now      func() time.Time
}

func NewManager(cfg config.DialogueConfig, orch *Orchestrator, emitter *Emitter) *Manager {
	return &Manager{
		cfg:      cfg,
		orch:     orch,
		emitter:  emitter,
		sessions: make(map[string]*Session),
		stop:     make(chan struct{}),
		now:      time.Now,
	}
}

// WithTransport wires out-of-band call control for the sweep.
func (m *Manager) WithTransport(t Transport) *Manager {
	m.transport = t
	return m
}

// Start launches the idle/eviction sweep.
func (m *Manager) Start() {
	go m.sweepLoop()
}

// Stop halts the sweep and cancels every live session.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
	m.mutex.Lock()
	defer m.mutex.Unlock()
	for ref, s := range m.sessions {
		s.cancel()
		delete(m.sessions, ref)
	}
}

// Open returns the session for a call ref, creating it and starting its
// worker on first sight.
func (m *Manager) Open(callRef, callerNumber string) *Session {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if s, ok := m.sessions[callRef]; ok {
		return s
	}
	s := newSession(callRef, callerNumber, m.now())
	m.sessions[callRef] = s
	go m.work(s)
	logger.Info("session opened",
		zap.String("callRef", callRef), zap.String("sessionId", s.ID))
	return s
}

// Get returns a live session without creating one.
func (m *Manager) Get(callRef string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	s, ok := m.sessions[callRef]
	return s, ok
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}

// Greet returns the opening line for a newly answered call. The greeting
// runs on the session's worker like every other event, so an early gather
// cannot race it.
func (m *Manager) Greet(callRef, callerNumber string) TurnOutput {
	m.Open(callRef, callerNumber)
	out, err := m.Dispatch(context.Background(), callRef, TurnEvent{Greeting: true})
	if err != nil {
		return TurnOutput{Hangup: true}
	}
	return out
}

// Dispatch queues one event onto the session's worker and waits for the
// reply. Concurrent events for the same call ref serialize here; distinct
// calls proceed in parallel.
func (m *Manager) Dispatch(ctx context.Context, callRef string, ev TurnEvent) (TurnOutput, error) {
	s, ok := m.Get(callRef)
	if !ok {
		return TurnOutput{}, ErrSessionClosed
	}
	job := turnJob{ctx: ctx, event: ev, reply: make(chan TurnOutput, 1)}
	select {
	case s.queue <- job:
	case <-s.ctx.Done():
		return TurnOutput{}, ErrSessionClosed
	case <-ctx.Done():
		return TurnOutput{}, ctx.Err()
	}
	select {
	case out := <-job.reply:
		return out, nil
	case <-s.ctx.Done():
		return TurnOutput{}, ErrSessionClosed
	case <-ctx.Done():
		return TurnOutput{}, ctx.Err()
	}
}

// Hangup signals that the caller disconnected.
func (m *Manager) Hangup(callRef string) {
	if s, ok := m.Get(callRef); ok {
		go func() {
			_, _ = m.Dispatch(context.Background(), s.CallRef, TurnEvent{Hangup: true})
		}()
	}
}

// work is the per-session consumer; it is the only goroutine that mutates
// the session.
func (m *Manager) work(s *Session) {
	for {
		select {
		case job := <-s.queue:
			out := m.orch.HandleTurn(job.ctx, s, job.event)
			job.reply <- out
		case <-s.ctx.Done():
			return
		}
	}
}

func (m *Manager) sweepLoop() {
	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.sweep()
		case <-m.stop:
			return
		}
	}
}

// sweep times out idle sessions, retries unacknowledged outcomes and
// evicts terminal sessions once the recorder ack plus grace period both
// hold.
func (m *Manager) sweep() {
	now := m.now()

	m.mutex.RLock()
	candidates := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		candidates = append(candidates, s)
	}
	m.mutex.RUnlock()

	for _, s := range candidates {
		if !s.IsTerminal() {
			if now.Sub(s.LastActivity()) >= m.cfg.IdleTimeout {
				logger.Info("session idle timeout", zap.String("callRef", s.CallRef))
				go func(ref string) {
					_, _ = m.Dispatch(context.Background(), ref, TurnEvent{Timeout: true})
				}(s.CallRef)
				if m.transport != nil {
					if err := m.transport.EndCall(context.Background(), s.CallRef); err != nil {
						logger.Warn("failed to end idle call",
							zap.String("callRef", s.CallRef), zap.Error(err))
					}
				}
			}
			continue
		}

		if !s.OutcomeAcked() {
			// redelivery runs on the session's worker like any other event
			go func(ref string) {
				_, _ = m.Dispatch(context.Background(), ref, TurnEvent{RedeliverOutcome: true})
			}(s.CallRef)
			continue
		}
		if now.Sub(s.LastActivity()) >= m.cfg.EvictionGracePeriod {
			m.evict(s)
		}
	}
}

func (m *Manager) evict(s *Session) {
	state := s.CurrentState()
	m.mutex.Lock()
	delete(m.sessions, s.CallRef)
	m.mutex.Unlock()
	s.cancel()
	m.emitter.Forget(s.CallRef, state)
	logger.Info("session evicted",
		zap.String("callRef", s.CallRef), zap.String("state", string(state)))
}
