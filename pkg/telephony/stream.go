package telephony

import (
	"context"
	"encoding/base64"
	"net/http"
	"sync"

	"github.com/CliniqAI/voicecore/pkg/logger"
	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const deepgramLiveURL = "wss://api.deepgram.com/v1/listen?encoding=mulaw&sample_rate=8000&channels=1&interim_results=true&endpointing=300"

// TranscriptFunc receives live transcripts from a bridged call.
type TranscriptFunc func(callSid, transcript string, isFinal bool)

// twilioStreamMessage one frame on a Twilio Media Streams connection
type twilioStreamMessage struct {
	Event string `json:"event"`
	Start struct {
		CallSid string `json:"callSid"`
	} `json:"start"`
	Media struct {
		Payload string `json:"payload"`
	} `json:"media"`
}

// deepgramResult the slice of a Deepgram live message the bridge reads
type deepgramResult struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Speech  bool   `json:"speech_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// StreamBridge pipes a Twilio Media Streams connection into Deepgram's
// live endpoint and hands transcripts to a callback. One bridge serves
// one call; it owns the upstream socket.
type StreamBridge struct {
	apiKey       string
	onTranscript TranscriptFunc

	mutex   sync.Mutex
	callSid string
	ws      *websocket.Conn
	frames  int
	closed  bool
}

// NewStreamBridge creates a bridge for one call.
func NewStreamBridge(apiKey string, onTranscript TranscriptFunc) *StreamBridge {
	return &StreamBridge{
		apiKey:       apiKey,
		onTranscript: onTranscript,
	}
}

// Connect dials Deepgram and starts the transcript reader.
func (b *StreamBridge) Connect(ctx context.Context) error {
	header := http.Header{}
	header.Set("Authorization", "Token "+b.apiKey)

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, deepgramLiveURL, header)
	if err != nil {
		return err
	}

	b.mutex.Lock()
	b.ws = ws
	b.mutex.Unlock()

	go b.readTranscripts()
	return nil
}

func (b *StreamBridge) readTranscripts() {
	for {
		b.mutex.Lock()
		ws := b.ws
		b.mutex.Unlock()
		if ws == nil {
			return
		}

		messageType, raw, err := ws.ReadMessage()
		if err != nil {
			logger.Info("deepgram stream closed",
				zap.String("callSid", b.CallSid()), zap.Error(err))
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var result deepgramResult
		if err := sonic.Unmarshal(raw, &result); err != nil || result.Type != "Results" {
			continue
		}
		if len(result.Channel.Alternatives) == 0 {
			continue
		}
		transcript := result.Channel.Alternatives[0].Transcript
		if transcript == "" {
			continue
		}
		if sid := b.CallSid(); sid != "" && b.onTranscript != nil {
			b.onTranscript(sid, transcript, result.IsFinal || result.Speech)
		}
	}
}

// HandleTwilioMessage consumes one inbound frame from the Twilio side.
func (b *StreamBridge) HandleTwilioMessage(raw []byte) error {
	var message twilioStreamMessage
	if err := sonic.Unmarshal(raw, &message); err != nil {
		return nil // Twilio pads the stream with frames we don't read
	}

	switch message.Event {
	case "start":
		b.mutex.Lock()
		b.callSid = message.Start.CallSid
		b.mutex.Unlock()
		logger.Info("media stream started", zap.String("callSid", message.Start.CallSid))
	case "media":
		audio, err := base64.StdEncoding.DecodeString(message.Media.Payload)
		if err != nil || len(audio) == 0 {
			return nil
		}
		b.mutex.Lock()
		ws := b.ws
		b.frames++
		b.mutex.Unlock()
		if ws != nil {
			return ws.WriteMessage(websocket.BinaryMessage, audio)
		}
	case "stop":
		logger.Info("media stream stopped",
			zap.String("callSid", b.CallSid()), zap.Int("frames", b.Frames()))
		b.Close()
	}
	return nil
}

// CallSid returns the call reference announced by the stream's start
// frame.
func (b *StreamBridge) CallSid() string {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.callSid
}

// Frames returns the number of media frames forwarded upstream.
func (b *StreamBridge) Frames() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.frames
}

// Close shuts the upstream socket.
func (b *StreamBridge) Close() {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	if b.ws != nil {
		_ = b.ws.Close()
		b.ws = nil
	}
}

var streamUpgrader = websocket.Upgrader{
	// Twilio's media stream client sends no Origin worth checking
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamHandler accepts Twilio Media Streams websocket connections and
// bridges each one to Deepgram for live transcription.
type StreamHandler struct {
	apiKey       string
	onTranscript TranscriptFunc
}

func NewStreamHandler(apiKey string, onTranscript TranscriptFunc) *StreamHandler {
	return &StreamHandler{apiKey: apiKey, onTranscript: onTranscript}
}

// Register mounts the media stream route.
func (h *StreamHandler) Register(r *gin.Engine) {
	r.GET("/stream/media", h.HandleMediaStream)
}

// HandleMediaStream upgrades the connection and pumps frames until the
// stream stops.
func (h *StreamHandler) HandleMediaStream(c *gin.Context) {
	conn, err := streamUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Error("media stream upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	bridge := NewStreamBridge(h.apiKey, h.onTranscript)
	if err := bridge.Connect(c.Request.Context()); err != nil {
		logger.Error("deepgram live connect failed", zap.Error(err))
		return
	}
	defer bridge.Close()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if err := bridge.HandleTwilioMessage(raw); err != nil {
			logger.Warn("media frame forward failed",
				zap.String("callSid", bridge.CallSid()), zap.Error(err))
			return
		}
	}
}
