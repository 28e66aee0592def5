package telephony

import (
	"net/http"
	"time"

	"github.com/CliniqAI/voicecore/internal/models"
	"github.com/CliniqAI/voicecore/pkg/config"
	"github.com/CliniqAI/voicecore/pkg/dialogue"
	"github.com/CliniqAI/voicecore/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/spf13/cast"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const sayVoice = "Polly.Joanna"

// WebhookHandler answers Twilio's voice webhooks: each caller turn is a
// POST carrying the gather result, each response is a TwiML document. The
// dialogue manager does the thinking; this layer only translates.
type WebhookHandler struct {
	manager        *dialogue.Manager
	db             *gorm.DB
	baseURL        string
	transferTarget string

	// synthesized replies parked for the <Play> fetch that follows
	audio *lru.Cache[string, []byte]
}

// NewWebhookHandler creates the webhook layer.
func NewWebhookHandler(manager *dialogue.Manager, db *gorm.DB, cfg *config.Config) (*WebhookHandler, error) {
	audio, err := lru.New[string, []byte](128)
	if err != nil {
		return nil, err
	}
	return &WebhookHandler{
		manager:        manager,
		db:             db,
		baseURL:        cfg.Server.BaseURL,
		transferTarget: cfg.Dialogue.HandoffTransferTarget,
		audio:          audio,
	}, nil
}

// Register mounts the webhook routes.
func (h *WebhookHandler) Register(r *gin.Engine) {
	r.POST("/webhook/voice", h.HandleVoice)
	r.POST("/webhook/gather", h.HandleGather)
	r.POST("/webhook/status", h.HandleStatus)
	r.GET("/audio/:id", h.HandleAudio)
}

// HandleVoice answers a fresh inbound call with the greeting.
func (h *WebhookHandler) HandleVoice(c *gin.Context) {
	callSid := c.PostForm("CallSid")
	from := c.PostForm("From")
	to := c.PostForm("To")
	if callSid == "" {
		c.String(http.StatusBadRequest, "missing CallSid")
		return
	}

	logger.Info("inbound call",
		zap.String("callSid", callSid), zap.String("from", from), zap.String("to", to))

	if h.db != nil {
		if err := models.CreateCall(h.db, &models.Call{
			CallRef:    callSid,
			FromNumber: from,
			ToNumber:   to,
			Status:     models.CallStatusActive,
			StartTime:  time.Now(),
		}); err != nil {
			logger.Warn("call row create failed", zap.String("callSid", callSid), zap.Error(err))
		}
	}

	out := h.manager.Greet(callSid, from)
	h.respond(c, out)
}

// HandleGather receives one recognized utterance and returns the next
// TwiML step. An empty SpeechResult means the gather timed out silently.
func (h *WebhookHandler) HandleGather(c *gin.Context) {
	callSid := c.PostForm("CallSid")
	speech := c.PostForm("SpeechResult")
	confidence := cast.ToFloat64(c.PostForm("Confidence"))

	out, err := h.manager.Dispatch(c.Request.Context(), callSid, dialogue.TurnEvent{
		Utterance:  speech,
		Confidence: confidence,
	})
	if err != nil {
		logger.Warn("gather for unknown or closed session",
			zap.String("callSid", callSid), zap.Error(err))
		h.respond(c, dialogue.TurnOutput{Hangup: true})
		return
	}

	if h.db != nil && speech != "" {
		if err := models.CreateTranscript(h.db, &models.Transcript{
			CallRef:    callSid,
			Text:       speech,
			Confidence: float32(confidence),
		}); err != nil {
			logger.Warn("transcript row create failed", zap.String("callSid", callSid), zap.Error(err))
		}
	}

	h.respond(c, out)
}

// HandleStatus consumes Twilio's call status callbacks.
func (h *WebhookHandler) HandleStatus(c *gin.Context) {
	callSid := c.PostForm("CallSid")
	status := c.PostForm("CallStatus")

	logger.Info("call status", zap.String("callSid", callSid), zap.String("status", status))

	switch status {
	case "completed", "busy", "failed", "no-answer", "canceled":
		h.manager.Hangup(callSid)
		final := models.CallStatusCompleted
		if status != "completed" {
			final = models.CallStatusFailed
		}
		if h.db != nil {
			if call, err := models.GetCallByRef(h.db, callSid); err == nil {
				if err := call.MarkEnded(h.db, final); err != nil {
					logger.Warn("call row update failed", zap.String("callSid", callSid), zap.Error(err))
				}
			}
		}
	}
	c.Status(http.StatusOK)
}

// HandleAudio serves a parked synthesized reply to Twilio's <Play> fetch.
func (h *WebhookHandler) HandleAudio(c *gin.Context) {
	id := c.Param("id")
	audio, ok := h.audio.Get(id)
	if !ok {
		c.Status(http.StatusNotFound)
		return
	}
	c.Data(http.StatusOK, "audio/mpeg", audio)
}

// respond turns a dialogue output into TwiML. Synthesized audio plays
// through the audio endpoint; without it Twilio's own voice reads the
// text.
func (h *WebhookHandler) respond(c *gin.Context, out dialogue.TurnOutput) {
	response := &TwiMLResponse{}

	var say *Say
	var play *Play
	if len(out.Audio) > 0 {
		id := uuid.New().String()
		h.audio.Add(id, out.Audio)
		play = &Play{URL: h.baseURL + "/audio/" + id}
	} else if out.Say != "" {
		say = &Say{Voice: sayVoice, Text: out.Say}
	}

	switch {
	case out.Transfer:
		appendLine(response, say, play)
		if h.transferTarget != "" {
			response.Dial = &Dial{Number: h.transferTarget}
		} else {
			response.Pause = &Pause{Length: 1}
			response.Hangup = &Hangup{}
		}
	case out.Hangup:
		appendLine(response, say, play)
		response.Hangup = &Hangup{}
	case out.Gather:
		response.Gather = &Gather{
			Input:         "speech",
			Action:        h.baseURL + "/webhook/gather",
			Method:        "POST",
			Timeout:       10,
			SpeechTimeout: "auto",
			Say:           say,
			Play:          play,
		}
	default:
		appendLine(response, say, play)
	}

	body, err := response.Render()
	if err != nil {
		logger.Error("twiml render failed", zap.Error(err))
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Data(http.StatusOK, "application/xml", body)
}

func appendLine(response *TwiMLResponse, say *Say, play *Play) {
	if say != nil {
		response.Say = append(response.Say, *say)
	}
	if play != nil {
		response.Play = append(response.Play, *play)
	}
}
