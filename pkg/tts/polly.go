package tts

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/aws/aws-sdk-go-v2/service/polly/types"

	"github.com/CliniqAI/voicecore/pkg/config"
	"github.com/CliniqAI/voicecore/pkg/logger"
	"go.uber.org/zap"
)

// Config holds the configuration for the synthesis service
type Config struct {
	Region     string
	VoiceID    string
	SampleRate int
}

// DefaultConfig returns a default configuration using global config
func DefaultConfig() *Config {
	if config.GlobalConfig == nil {
		return &Config{Region: "us-east-1", VoiceID: "Joanna", SampleRate: 8000}
	}
	ttsConfig := config.GlobalConfig.Services.TTS
	return &Config{
		Region:     ttsConfig.Region,
		VoiceID:    ttsConfig.VoiceID,
		SampleRate: ttsConfig.SampleRate,
	}
}

// Service synthesizes replies with Amazon Polly. Output is MP3, which the
// telephony layer serves back to the trunk over its audio endpoint.
type Service struct {
	config *Config
	client *polly.Client
}

// NewService creates a new synthesis service using the ambient AWS
// credential chain.
func NewService(ctx context.Context, cfg *Config) (*Service, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &Service{
		config: cfg,
		client: polly.NewFromConfig(awsCfg),
	}, nil
}

// Synthesize renders text to speech and returns the audio bytes.
func (s *Service) Synthesize(ctx context.Context, text string) ([]byte, error) {
	output, err := s.client.SynthesizeSpeech(ctx, &polly.SynthesizeSpeechInput{
		Text:         aws.String(text),
		OutputFormat: types.OutputFormatMp3,
		VoiceId:      types.VoiceId(s.config.VoiceID),
		Engine:       types.EngineNeural,
		SampleRate:   aws.String(strconv.Itoa(s.config.SampleRate)),
	})
	if err != nil {
		return nil, fmt.Errorf("polly synthesis: %w", err)
	}
	defer output.AudioStream.Close()

	audio, err := io.ReadAll(output.AudioStream)
	if err != nil {
		return nil, fmt.Errorf("read polly stream: %w", err)
	}

	logger.Debug("reply synthesized",
		zap.String("voice", s.config.VoiceID),
		zap.Int("chars", len(text)),
		zap.Int("bytes", len(audio)))
	return audio, nil
}
