package telephony

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/CliniqAI/voicecore/internal/models"
	"github.com/CliniqAI/voicecore/pkg/config"
	"github.com/CliniqAI/voicecore/pkg/dialogue"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type memoryRecorder struct {
	mutex    sync.Mutex
	outcomes []dialogue.Outcome
}

func (m *memoryRecorder) RecordOutcome(_ context.Context, outcome dialogue.Outcome) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.outcomes = append(m.outcomes, outcome)
	return nil
}

func newTestStack(t *testing.T) (*gin.Engine, *dialogue.Manager, *gorm.DB, *memoryRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Call{}, &models.Transcript{}, &models.CallSession{}))

	cfg := &config.Config{
		Server: config.ServerConfig{BaseURL: "https://voice.example.com"},
		Dialogue: config.DialogueConfig{
			ConfidenceThreshold:   0.5,
			MisunderstandingMax:   3,
			ProviderTimeout:       time.Second,
			IdleTimeout:           time.Minute,
			SweepInterval:         time.Minute,
			EvictionGracePeriod:   time.Minute,
			HandoffTransferTarget: "+15557001000",
		},
	}

	rec := &memoryRecorder{}
	emitter := dialogue.NewEmitter(rec)
	orch := dialogue.NewOrchestrator(cfg.Dialogue, emitter, nil, db)
	manager := dialogue.NewManager(cfg.Dialogue, orch, emitter)
	t.Cleanup(manager.Stop)

	handler, err := NewWebhookHandler(manager, db, cfg)
	require.NoError(t, err)

	router := gin.New()
	handler.Register(router)
	return router, manager, db, rec
}

func postForm(router *gin.Engine, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestVoiceWebhookGreetsAndGathers(t *testing.T) {
	router, _, db, _ := newTestStack(t)

	w := postForm(router, "/webhook/voice", url.Values{
		"CallSid": {"CA500"},
		"From":    {"+15550500"},
		"To":      {"+15559000"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/xml")
	assert.Contains(t, w.Body.String(), `input="speech"`)
	assert.Contains(t, w.Body.String(), "Thank you for calling")

	call, err := models.GetCallByRef(db, "CA500")
	require.NoError(t, err)
	assert.Equal(t, models.CallStatusActive, call.Status)
}

func TestVoiceWebhookRequiresCallSid(t *testing.T) {
	router, _, _, _ := newTestStack(t)
	w := postForm(router, "/webhook/voice", url.Values{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGatherWebhookDrivesDialogue(t *testing.T) {
	router, _, db, _ := newTestStack(t)

	postForm(router, "/webhook/voice", url.Values{
		"CallSid": {"CA501"}, "From": {"+15550501"}, "To": {"+15559000"},
	})

	w := postForm(router, "/webhook/gather", url.Values{
		"CallSid":      {"CA501"},
		"SpeechResult": {"I need an appointment"},
		"Confidence":   {"0.92"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "full name")

	transcripts, err := models.GetTranscriptsByCallRef(db, "CA501")
	require.NoError(t, err)
	require.Len(t, transcripts, 1)
	assert.Equal(t, "I need an appointment", transcripts[0].Text)
}

func TestGatherEscalationDialsTransferTarget(t *testing.T) {
	router, _, _, rec := newTestStack(t)

	postForm(router, "/webhook/voice", url.Values{
		"CallSid": {"CA502"}, "From": {"+15550502"}, "To": {"+15559000"},
	})
	w := postForm(router, "/webhook/gather", url.Values{
		"CallSid":      {"CA502"},
		"SpeechResult": {"I have chest pain"},
		"Confidence":   {"0.9"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<Dial>+15557001000</Dial>")
	assert.Contains(t, w.Body.String(), "911")

	rec.mutex.Lock()
	defer rec.mutex.Unlock()
	require.Len(t, rec.outcomes, 1)
	assert.Equal(t, dialogue.ReasonMedicalEmergencyKeyword, rec.outcomes[0].Reason)
}

func TestGatherForUnknownCallHangsUp(t *testing.T) {
	router, _, _, _ := newTestStack(t)
	w := postForm(router, "/webhook/gather", url.Values{
		"CallSid":      {"CA-unknown"},
		"SpeechResult": {"hello"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<Hangup")
}

func TestStatusCallbackClosesCall(t *testing.T) {
	router, manager, db, _ := newTestStack(t)

	postForm(router, "/webhook/voice", url.Values{
		"CallSid": {"CA503"}, "From": {"+15550503"}, "To": {"+15559000"},
	})
	w := postForm(router, "/webhook/status", url.Values{
		"CallSid":    {"CA503"},
		"CallStatus": {"completed"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	// hangup travels through the session worker
	require.Eventually(t, func() bool {
		s, ok := manager.Get("CA503")
		return ok && s.CurrentState() == models.SessionStateFailed
	}, time.Second, 5*time.Millisecond)

	call, err := models.GetCallByRef(db, "CA503")
	require.NoError(t, err)
	assert.Equal(t, models.CallStatusCompleted, call.Status)
	assert.NotNil(t, call.EndTime)
}

func TestAudioEndpointUnknownID(t *testing.T) {
	router, _, _, _ := newTestStack(t)
	req := httptest.NewRequest(http.MethodGet, "/audio/nope", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
