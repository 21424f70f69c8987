package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"diet-coach/internal/app"
	"diet-coach/internal/config"
	"diet-coach/internal/logging"
	"diet-coach/internal/telegram"
)

const (
	uploadMaxAge    = 24 * time.Hour
	housekeepPeriod = 10 * time.Minute
)

func main() {
	// 1. Load Configuration
	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.TelegramBotToken == "" || cfg.TelegramWebhookURL == "" {
		log.Fatal("TELEGRAM_BOT_TOKEN and TELEGRAM_WEBHOOK_URL must be set")
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Wire storage, the model backend and the extraction pipeline
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize application", zap.Error(err))
	}
	defer a.Close()

	// 3. Initialize Telegram Bot
	bot, err := telegram.NewBot(cfg, telegram.Deps{
		Extractor: a.Extractor(),
		Plans:     a.Plans(),
		Uploads:   a.Uploads(),
		Usage:     a.Metrics(),
	}, logger.Named("telegram"))
	if err != nil {
		logger.Fatal("failed to initialize Telegram bot", zap.Error(err))
	}

	mux := http.NewServeMux()
	bot.RegisterHandlers(mux)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 4. Housekeeping: expired sessions and orphaned uploads
	a.SweepUploads(uploadMaxAge)
	go func() {
		ticker := time.NewTicker(housekeepPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := bot.Sessions().CleanupExpired(); n > 0 {
					logger.Info("expired upload sessions", zap.Int("count", n))
				}
				a.SweepUploads(uploadMaxAge)
			}
		}
	}()

	// 5. Start Server with Graceful Shutdown
	go func() {
		logger.Info("telegram bot server listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	// Let in-flight extractions finish and release their uploads.
	bot.Wait()
	logger.Info("server exiting")
}
