package llm

import (
	"context"
	"fmt"

	"github.com/CliniqAI/voicecore/pkg/config"
	"github.com/CliniqAI/voicecore/pkg/dialogue"
	"github.com/sirupsen/logrus"
)

// Config holds the configuration for the generation service
type Config struct {
	Provider    string  `json:"provider" yaml:"provider"`
	APIKey      string  `json:"api_key" yaml:"api_key"`
	BaseURL     string  `json:"base_url" yaml:"base_url"`
	Model       string  `json:"model" yaml:"model"`
	Temperature float32 `json:"temperature" yaml:"temperature"`
	MaxTokens   int     `json:"max_tokens" yaml:"max_tokens"`
}

// DefaultConfig returns a default configuration using global config
func DefaultConfig() *Config {
	if config.GlobalConfig == nil {
		return &Config{
			Provider:    "openai",
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-4o-mini",
			Temperature: 0.3,
			MaxTokens:   120,
		}
	}

	llmConfig := config.GlobalConfig.Services.LLM
	return &Config{
		Provider:    llmConfig.Provider,
		APIKey:      llmConfig.APIKey,
		BaseURL:     llmConfig.BaseURL,
		Model:       llmConfig.Model,
		Temperature: llmConfig.Temperature,
		MaxTokens:   llmConfig.MaxTokens,
	}
}

// Service wraps the handler and satisfies the dialogue engine's generator
// contract.
type Service struct {
	config  *Config
	handler *Handler
	logger  *logrus.Logger
}

// NewService creates a new generation service
func NewService(config *Config, logger *logrus.Logger) *Service {
	if config == nil {
		config = DefaultConfig()
	}
	return &Service{
		config: config,
		logger: logger,
	}
}

// Initialize builds the underlying client
func (s *Service) Initialize() error {
	if s.config.APIKey == "" {
		return fmt.Errorf("API key is required")
	}
	if s.config.BaseURL == "" {
		return fmt.Errorf("base URL is required")
	}

	s.handler = NewHandler(s.config, s.logger)

	s.logger.WithFields(logrus.Fields{
		"provider": s.config.Provider,
		"base_url": s.config.BaseURL,
		"model":    s.config.Model,
	}).Info("generation service initialized")

	return nil
}

// Generate produces the assistant's next line for one turn instruction.
func (s *Service) Generate(ctx context.Context, req dialogue.GenerationRequest) (string, error) {
	if s.handler == nil {
		return "", fmt.Errorf("generation service not initialized")
	}
	return s.handler.Complete(ctx, req)
}

// GetConfig returns the current configuration
func (s *Service) GetConfig() *Config {
	return s.config
}
