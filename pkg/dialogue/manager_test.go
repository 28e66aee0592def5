package dialogue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/CliniqAI/voicecore/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(rec Recorder) *Manager {
	cfg := testDialogueConfig()
	emitter := NewEmitter(rec)
	orch := NewOrchestrator(cfg, emitter, nil, nil)
	return NewManager(cfg, orch, emitter)
}

func TestManagerOpenIsIdempotent(t *testing.T) {
	m := newTestManager(&fakeRecorder{})
	defer m.Stop()

	a := m.Open("CA300", "+15550300")
	b := m.Open("CA300", "+15550300")
	require.Same(t, a, b)
	require.Equal(t, 1, m.Count())
}

func TestManagerDispatchRunsFullCall(t *testing.T) {
	rec := &fakeRecorder{}
	m := newTestManager(rec)
	defer m.Stop()

	out := m.Greet("CA301", "+15550301")
	require.True(t, out.Gather)

	ctx := context.Background()
	for _, utterance := range []string{
		"I'd like to book an appointment",
		"this is John Smith",
		"a checkup",
		"tomorrow at 3pm",
	} {
		var err error
		out, err = m.Dispatch(ctx, "CA301", TurnEvent{Utterance: utterance, Confidence: 0.9})
		require.NoError(t, err)
	}

	out, err := m.Dispatch(ctx, "CA301", TurnEvent{Utterance: "yes", Confidence: 0.9})
	require.NoError(t, err)
	require.True(t, out.Hangup)

	s, ok := m.Get("CA301")
	require.True(t, ok)
	require.Equal(t, models.SessionStateCompleted, s.State)
	require.Len(t, rec.recorded(), 1)
}

func TestManagerDispatchUnknownCall(t *testing.T) {
	m := newTestManager(&fakeRecorder{})
	defer m.Stop()

	_, err := m.Dispatch(context.Background(), "CA-nope", TurnEvent{Utterance: "hi"})
	require.ErrorIs(t, err, ErrSessionClosed)
}

func TestManagerSerializesTurnsPerCall(t *testing.T) {
	rec := &fakeRecorder{}
	m := newTestManager(rec)
	defer m.Stop()
	m.Open("CA302", "+15550302")

	// hammer the same call from many goroutines; the per-session worker
	// must serialize them without losing any
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Dispatch(context.Background(), "CA302", TurnEvent{
				Utterance:  "what are your hours",
				Confidence: 0.9,
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	s, _ := m.Get("CA302")
	assert.Equal(t, 20, s.TurnCount)
}

func TestSweepTimesOutIdleSessions(t *testing.T) {
	rec := &fakeRecorder{}
	m := newTestManager(rec)
	defer m.Stop()
	m.cfg.IdleTimeout = time.Millisecond

	m.Open("CA303", "+15550303")
	time.Sleep(5 * time.Millisecond)
	m.sweep()

	// the timeout event travels through the worker queue
	require.Eventually(t, func() bool {
		s, ok := m.Get("CA303")
		return ok && s.CurrentState() == models.SessionStateFailed
	}, time.Second, 5*time.Millisecond)

	outcomes := rec.recorded()
	require.Len(t, outcomes, 1)
	assert.Equal(t, ReasonSessionTimeout, outcomes[0].Reason)
}

func TestSweepEvictsAckedTerminalSessions(t *testing.T) {
	rec := &fakeRecorder{}
	m := newTestManager(rec)
	defer m.Stop()
	m.cfg.EvictionGracePeriod = time.Millisecond

	m.Open("CA304", "+15550304")
	_, err := m.Dispatch(context.Background(), "CA304", TurnEvent{
		Utterance:  "chest pain",
		Confidence: 0.9,
	})
	require.NoError(t, err)

	s, _ := m.Get("CA304")
	require.True(t, s.IsTerminal())
	require.True(t, s.OutcomeAcked())

	time.Sleep(5 * time.Millisecond)
	m.sweep()

	_, ok := m.Get("CA304")
	assert.False(t, ok, "acked terminal session past grace is evicted")
}

func TestSweepKeepsUnackedSessions(t *testing.T) {
	rec := &fakeRecorder{fail: true}
	m := newTestManager(rec)
	defer m.Stop()
	m.cfg.EvictionGracePeriod = time.Millisecond

	m.Open("CA305", "+15550305")
	_, err := m.Dispatch(context.Background(), "CA305", TurnEvent{
		Utterance:  "chest pain",
		Confidence: 0.9,
	})
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	m.sweep()

	s, ok := m.Get("CA305")
	require.True(t, ok, "unacked session survives the sweep")
	require.False(t, s.OutcomeAcked())

	// recorder recovers; the next sweep redelivers through the session
	// worker, the one after that evicts
	rec.mutex.Lock()
	rec.fail = false
	rec.mutex.Unlock()
	m.sweep()
	require.Eventually(t, s.OutcomeAcked, time.Second, 5*time.Millisecond)
	require.Len(t, rec.recorded(), 1)

	m.sweep()
	_, ok = m.Get("CA305")
	assert.False(t, ok)
}

func TestSweepSafeDuringLiveTurns(t *testing.T) {
	rec := &fakeRecorder{}
	m := newTestManager(rec)
	defer m.Stop()
	m.Open("CA306", "+15550306")

	// drive turns and the sweep concurrently; the sweep must only observe
	// session state through its synchronized accessors
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			_, err := m.Dispatch(context.Background(), "CA306", TurnEvent{
				Utterance:  "I need an appointment",
				Confidence: 0.9,
			})
			assert.NoError(t, err)
		}
	}()
	for sweeping := true; sweeping; {
		select {
		case <-done:
			sweeping = false
		default:
			m.sweep()
		}
	}

	s, ok := m.Get("CA306")
	require.True(t, ok)
	assert.Equal(t, 200, s.TurnCount)
	assert.Equal(t, models.SessionStateSlotCollection, s.CurrentState())
}
