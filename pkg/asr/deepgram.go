package asr

import (
	"bytes"
	"context"
	"fmt"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/rest"
	interfaces "github.com/deepgram/deepgram-go-sdk/pkg/client/interfaces"
	listen "github.com/deepgram/deepgram-go-sdk/pkg/client/listen"

	"github.com/CliniqAI/voicecore/pkg/config"
	"github.com/CliniqAI/voicecore/pkg/dialogue"
	"github.com/CliniqAI/voicecore/pkg/logger"
	"go.uber.org/zap"
)

// Config holds the configuration for the recognition service
type Config struct {
	APIKey   string
	Model    string
	Language string
}

// DefaultConfig returns a default configuration using global config
func DefaultConfig() *Config {
	if config.GlobalConfig == nil {
		return &Config{Model: "nova-2", Language: "en-US"}
	}
	asrConfig := config.GlobalConfig.Services.ASR
	return &Config{
		APIKey:   asrConfig.APIKey,
		Model:    asrConfig.Model,
		Language: asrConfig.Language,
	}
}

// Service transcribes complete utterance recordings through Deepgram's
// prerecorded endpoint. It satisfies the dialogue engine's recognizer
// contract; the caller owns the timeout on ctx.
type Service struct {
	config *Config
	client *api.Client
}

// NewService creates a new recognition service
func NewService(cfg *Config) (*Service, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("deepgram API key is required")
	}

	rest := listen.NewREST(cfg.APIKey, &interfaces.ClientOptions{})
	return &Service{
		config: cfg,
		client: api.New(rest),
	}, nil
}

// Recognize transcribes one utterance and returns the top alternative with
// its confidence.
func (s *Service) Recognize(ctx context.Context, audio []byte, mimeType string) (dialogue.Transcription, error) {
	options := &interfaces.PreRecordedTranscriptionOptions{
		Model:       s.config.Model,
		Language:    s.config.Language,
		SmartFormat: true,
		Punctuate:   true,
	}

	response, err := s.client.FromStream(ctx, bytes.NewReader(audio), options)
	if err != nil {
		return dialogue.Transcription{}, fmt.Errorf("deepgram transcription: %w", err)
	}

	if len(response.Results.Channels) == 0 || len(response.Results.Channels[0].Alternatives) == 0 {
		return dialogue.Transcription{}, nil
	}
	alt := response.Results.Channels[0].Alternatives[0]

	logger.Debug("utterance transcribed",
		zap.String("mime", mimeType),
		zap.Float64("confidence", alt.Confidence),
		zap.Int("bytes", len(audio)))

	return dialogue.Transcription{
		Text:       alt.Transcript,
		Confidence: alt.Confidence,
	}, nil
}
