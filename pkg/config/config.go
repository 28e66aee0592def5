package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/CliniqAI/voicecore/pkg/logger"
	"github.com/CliniqAI/voicecore/pkg/utils"
)

// Config main configuration structure
type Config struct {
	Server   ServerConfig     `mapstructure:"server"`
	Database DatabaseConfig   `mapstructure:"database"`
	Log      logger.LogConfig `mapstructure:"log"`
	Services ServicesConfig   `mapstructure:"services"`
	Dialogue DialogueConfig   `mapstructure:"dialogue"`
}

// ServerConfig server configuration
type ServerConfig struct {
	Name    string `env:"SERVER_NAME"`
	Addr    string `env:"ADDR"`
	Mode    string `env:"MODE"`
	BaseURL string `env:"PUBLIC_BASE_URL"` // public URL Twilio calls back to
}

// DatabaseConfig database configuration
type DatabaseConfig struct {
	Driver string `env:"DB_DRIVER"`
	DSN    string `env:"DSN"`
}

// ServicesConfig external collaborator configuration
type ServicesConfig struct {
	LLM LLMConfig `mapstructure:"llm"`
	ASR ASRConfig `mapstructure:"asr"`
	TTS TTSConfig `mapstructure:"tts"`
	SMS SMSConfig `mapstructure:"sms"`
}

// LLMConfig generation collaborator configuration
type LLMConfig struct {
	Provider    string  `env:"LLM_PROVIDER"`
	APIKey      string  `env:"LLM_API_KEY"`
	BaseURL     string  `env:"LLM_BASE_URL"`
	Model       string  `env:"LLM_MODEL"`
	Temperature float32 `env:"LLM_TEMPERATURE"`
	MaxTokens   int     `env:"LLM_MAX_TOKENS"`
}

// ASRConfig recognition collaborator configuration
type ASRConfig struct {
	Provider   string `env:"ASR_PROVIDER"` // deepgram
	APIKey     string `env:"ASR_API_KEY"`
	Model      string `env:"ASR_MODEL"`    // nova-2, etc.
	Language   string `env:"ASR_LANGUAGE"` // en-US, etc.
	SampleRate int    `env:"ASR_SAMPLE_RATE"`
}

// TTSConfig synthesis collaborator configuration
type TTSConfig struct {
	Provider   string `env:"TTS_PROVIDER"` // polly
	Region     string `env:"TTS_REGION"`
	VoiceID    string `env:"TTS_VOICE_ID"`
	SampleRate int    `env:"TTS_SAMPLE_RATE"` // 8000, 16000, etc.
}

// SMSConfig Twilio SMS notification configuration
type SMSConfig struct {
	AccountSID    string `env:"TWILIO_ACCOUNT_SID"`
	AuthToken     string `env:"TWILIO_AUTH_TOKEN"`
	FromNumber    string `env:"TWILIO_PHONE_NUMBER"`
	StaffNumbers  string `env:"STAFF_NOTIFY_NUMBERS"`  // comma separated
	DoctorNumbers string `env:"DOCTOR_NOTIFY_NUMBERS"` // comma separated
}

// DialogueConfig tuning parameters for the per-call dialogue engine.
// The misunderstanding limit is a calibration starting point, so it is
// configuration rather than a constant.
type DialogueConfig struct {
	ConfidenceThreshold   float64       `env:"DIALOGUE_CONFIDENCE_THRESHOLD"`
	MisunderstandingMax   int           `env:"DIALOGUE_MISUNDERSTANDING_MAX"`
	ProviderTimeout       time.Duration `env:"DIALOGUE_PROVIDER_TIMEOUT"`
	IdleTimeout           time.Duration `env:"DIALOGUE_IDLE_TIMEOUT"`
	SweepInterval         time.Duration `env:"DIALOGUE_SWEEP_INTERVAL"`
	EvictionGracePeriod   time.Duration `env:"DIALOGUE_EVICTION_GRACE"`
	HandoffTransferTarget string        `env:"DIALOGUE_TRANSFER_TARGET"` // number escalated calls transfer to
}

var GlobalConfig *Config

func Load() error {
	// 1. Load .env file based on environment (don't error if it doesn't exist)
	env := os.Getenv("APP_ENV")
	if err := utils.LoadEnv(env); err != nil {
		log.Printf("Note: .env file not found or failed to load: %v (using default values)", err)
	}

	// 2. Load global configuration
	GlobalConfig = &Config{
		Server: ServerConfig{
			Name:    getStringOrDefault("SERVER_NAME", "CliniqAI Voice"),
			Addr:    getStringOrDefault("ADDR", ":7080"),
			Mode:    getStringOrDefault("MODE", "development"),
			BaseURL: getStringOrDefault("PUBLIC_BASE_URL", "http://localhost:7080"),
		},
		Database: DatabaseConfig{
			Driver: getStringOrDefault("DB_DRIVER", "sqlite"),
			DSN:    getStringOrDefault("DSN", "./cliniq.db"),
		},
		Log: logger.LogConfig{
			Level:      getStringOrDefault("LOG_LEVEL", "info"),
			Filename:   getStringOrDefault("LOG_FILENAME", "./logs/app.log"),
			MaxSize:    getIntOrDefault("LOG_MAX_SIZE", 100),
			MaxAge:     getIntOrDefault("LOG_MAX_AGE", 30),
			MaxBackups: getIntOrDefault("LOG_MAX_BACKUPS", 5),
			Daily:      getBoolOrDefault("LOG_DAILY", true),
		},
		Services: ServicesConfig{
			LLM: LLMConfig{
				Provider:    getStringOrDefault("LLM_PROVIDER", "openai"),
				APIKey:      getStringOrDefault("LLM_API_KEY", ""),
				BaseURL:     getStringOrDefault("LLM_BASE_URL", "https://api.openai.com/v1"),
				Model:       getStringOrDefault("LLM_MODEL", "gpt-4o-mini"),
				Temperature: float32(getFloatOrDefault("LLM_TEMPERATURE", 0.3)),
				MaxTokens:   getIntOrDefault("LLM_MAX_TOKENS", 120),
			},
			ASR: ASRConfig{
				Provider:   getStringOrDefault("ASR_PROVIDER", "deepgram"),
				APIKey:     getStringOrDefault("ASR_API_KEY", ""),
				Model:      getStringOrDefault("ASR_MODEL", "nova-2"),
				Language:   getStringOrDefault("ASR_LANGUAGE", "en-US"),
				SampleRate: getIntOrDefault("ASR_SAMPLE_RATE", 8000),
			},
			TTS: TTSConfig{
				Provider:   getStringOrDefault("TTS_PROVIDER", "polly"),
				Region:     getStringOrDefault("TTS_REGION", "us-east-1"),
				VoiceID:    getStringOrDefault("TTS_VOICE_ID", "Joanna"),
				SampleRate: getIntOrDefault("TTS_SAMPLE_RATE", 8000),
			},
			SMS: SMSConfig{
				AccountSID:    getStringOrDefault("TWILIO_ACCOUNT_SID", ""),
				AuthToken:     getStringOrDefault("TWILIO_AUTH_TOKEN", ""),
				FromNumber:    getStringOrDefault("TWILIO_PHONE_NUMBER", ""),
				StaffNumbers:  getStringOrDefault("STAFF_NOTIFY_NUMBERS", ""),
				DoctorNumbers: getStringOrDefault("DOCTOR_NOTIFY_NUMBERS", ""),
			},
		},
		Dialogue: DialogueConfig{
			ConfidenceThreshold:   getFloatOrDefault("DIALOGUE_CONFIDENCE_THRESHOLD", 0.5),
			MisunderstandingMax:   getIntOrDefault("DIALOGUE_MISUNDERSTANDING_MAX", 3),
			ProviderTimeout:       parseDuration(getStringOrDefault("DIALOGUE_PROVIDER_TIMEOUT", "3s"), 3*time.Second),
			IdleTimeout:           parseDuration(getStringOrDefault("DIALOGUE_IDLE_TIMEOUT", "90s"), 90*time.Second),
			SweepInterval:         parseDuration(getStringOrDefault("DIALOGUE_SWEEP_INTERVAL", "15s"), 15*time.Second),
			EvictionGracePeriod:   parseDuration(getStringOrDefault("DIALOGUE_EVICTION_GRACE", "30s"), 30*time.Second),
			HandoffTransferTarget: getStringOrDefault("DIALOGUE_TRANSFER_TARGET", ""),
		},
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return errors.New("database DSN is required")
	}
	if c.Server.Addr == "" {
		return errors.New("server address is required")
	}
	if c.Dialogue.ConfidenceThreshold < 0 || c.Dialogue.ConfidenceThreshold > 1 {
		return errors.New("confidence threshold must be within [0,1]")
	}
	if c.Dialogue.MisunderstandingMax < 1 {
		return errors.New("misunderstanding limit must be at least 1")
	}
	return nil
}

// getStringOrDefault gets environment variable value, returns default if empty
func getStringOrDefault(key, defaultValue string) string {
	value := utils.GetEnv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getBoolOrDefault gets boolean environment variable value, returns default if empty
func getBoolOrDefault(key string, defaultValue bool) bool {
	value := utils.GetEnv(key)
	if value == "" {
		return defaultValue
	}
	return utils.GetBoolEnv(key)
}

// getIntOrDefault gets integer environment variable value, returns default if empty
func getIntOrDefault(key string, defaultValue int) int {
	value := utils.GetIntEnv(key)
	if value == 0 {
		return defaultValue
	}
	return int(value)
}

// getFloatOrDefault gets float environment variable value, returns default if empty
func getFloatOrDefault(key string, defaultValue float64) float64 {
	value := utils.GetEnv(key)
	if value == "" {
		return defaultValue
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	return defaultValue
}

// parseDuration parses duration string with default fallback
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}
