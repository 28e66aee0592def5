package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/CliniqAI/voicecore/cmd/bootstrap"
	"github.com/CliniqAI/voicecore/internal/models"
	"github.com/CliniqAI/voicecore/pkg/asr"
	"github.com/CliniqAI/voicecore/pkg/config"
	"github.com/CliniqAI/voicecore/pkg/dialogue"
	"github.com/CliniqAI/voicecore/pkg/llm"
	"github.com/CliniqAI/voicecore/pkg/logger"
	"github.com/CliniqAI/voicecore/pkg/notify"
	"github.com/CliniqAI/voicecore/pkg/telephony"
	"github.com/CliniqAI/voicecore/pkg/tts"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
)

func main() {
	// 1. Parse Command Line Parameters
	mode := flag.String("mode", "", "running environment (development, test, production)")
	init := flag.Bool("init", false, "initialize database")
	initSQL := flag.String("init-sql", "", "path to database init .sql script (optional)")
	flag.Parse()

	// 2. Set Environment Variables
	if *mode != "" {
		os.Setenv("APP_ENV", *mode)
	}
	// 3. Load Global Configuration
	if err := config.Load(); err != nil {
		panic("config load failed: " + err.Error())
	}
	if err := config.GlobalConfig.Validate(); err != nil {
		panic("config invalid: " + err.Error())
	}

	// 4. Load Log Configuration
	err := logger.Init(&config.GlobalConfig.Log, config.GlobalConfig.Server.Mode)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// 5. Print Banner
	if err := bootstrap.PrintBannerFromFile("banner.txt", config.GlobalConfig.Server.Name); err != nil {
		log.Printf("banner unavailable: %v", err)
	}

	// 6. Load Data Source
	db, err := bootstrap.SetupDatabase(os.Stdout, &bootstrap.Options{
		InitSQLPath: *initSQL, // Can be specified via --init-sql
		AutoMigrate: *init,    // Whether to migrate entities
		SeedNonProd: *init,    // Non-production default answer topics
	})
	if err != nil {
		logger.Error("database setup failed", zap.Error(err))
		return
	}

	cfg := config.GlobalConfig
	logger.Info("checked config -- addr: ", zap.String("addr", cfg.Server.Addr))
	logger.Info("checked config -- db-driver: ",
		zap.String("db-driver", cfg.Database.Driver), zap.String("dsn", cfg.Database.DSN))
	logger.Info("checked config -- mode: ", zap.String("mode", cfg.Server.Mode))

	// 7. Dialogue Stack
	answers, err := dialogue.NewAnswerBook(db)
	if err != nil {
		logger.Error("answer book load failed", zap.Error(err))
		return
	}

	sms := notify.NewSMSSender(cfg.Services.SMS)
	recorder := notify.NewRecorder(db, sms)
	emitter := dialogue.NewEmitter(recorder)

	orch := dialogue.NewOrchestrator(cfg.Dialogue, emitter, answers, db).
		WithProviders(buildRecognizer(), buildGenerator(cfg), buildSynthesizer(cfg))

	manager := dialogue.NewManager(cfg.Dialogue, orch, emitter)
	if transport := telephony.NewCallControl(cfg.Services.SMS); transport != nil {
		manager.WithTransport(transport)
	}
	manager.Start()
	defer manager.Stop()

	// 8. HTTP Surface
	if cfg.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	webhooks, err := telephony.NewWebhookHandler(manager, db, cfg)
	if err != nil {
		logger.Error("webhook handler setup failed", zap.Error(err))
		return
	}
	webhooks.Register(router)

	if key := cfg.Services.ASR.APIKey; key != "" {
		streams := telephony.NewStreamHandler(key, func(callSid, transcript string, isFinal bool) {
			if !isFinal {
				return
			}
			if err := models.CreateTranscript(db, &models.Transcript{
				CallRef: callSid,
				Text:    transcript,
			}); err != nil {
				logger.Warn("live transcript persist failed",
					zap.String("callSid", callSid), zap.Error(err))
			}
		})
		streams.Register(router)
	}

	// 9. Serve
	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}
	go func() {
		logger.Info("server listening", zap.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown incomplete", zap.Error(err))
	}
}

// buildRecognizer wires Deepgram when a key is configured; without one
// the engine relies on the transport's own speech results.
func buildRecognizer() dialogue.Recognizer {
	service, err := asr.NewService(nil)
	if err != nil {
		logger.Info("recognition provider disabled", zap.Error(err))
		return nil
	}
	return service
}

// buildGenerator wires the LLM when a key is configured; without one
// every reply comes from the deterministic templates.
func buildGenerator(cfg *config.Config) dialogue.Generator {
	if cfg.Services.LLM.APIKey == "" {
		logger.Info("generation provider disabled, using templates")
		return nil
	}
	service := llm.NewService(llm.DefaultConfig(), logrus.New())
	if err := service.Initialize(); err != nil {
		logger.Warn("generation provider init failed, using templates", zap.Error(err))
		return nil
	}
	return service
}

// buildSynthesizer wires Polly when a region is configured; without one
// the transport's built-in voice reads the replies.
func buildSynthesizer(cfg *config.Config) dialogue.Synthesizer {
	if cfg.Services.TTS.Provider == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	service, err := tts.NewService(ctx, nil)
	if err != nil {
		logger.Info("synthesis provider disabled", zap.Error(err))
		return nil
	}
	return service
}
