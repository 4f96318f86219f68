package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"counselor-assistant/internal/app"
	"counselor-assistant/internal/config"
	"counselor-assistant/internal/logger"
	"counselor-assistant/internal/scheduler"
	"counselor-assistant/internal/session"
	"counselor-assistant/internal/telegram"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	cfg, err := config.New()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := logger.Initialize(cfg.LogLevel); err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	if cfg.TelegramBotToken == "" {
		logger.Log.Fatal("TELEGRAM_BOT_TOKEN is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Log.Fatalw("failed to init app", "error", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Log.Errorw("failed to close app", "error", err)
		}
	}()

	bot, err := telegram.New(cfg.TelegramBotToken, telegram.Deps{
		Gate:         a.Gate,
		Sessions:     session.NewRegistry(),
		Accounts:     a.Accounts,
		History:      a.History,
		Suggest:      a.Suggest,
		Predictor:    a.Predictor,
		ReportChatID: cfg.ReportChatID,
	})
	if err != nil {
		logger.Log.Fatalw("failed to create bot", "error", err)
	}

	if cfg.ReportChatID != 0 {
		sched := scheduler.New(cfg.ReportCron)
		sched.SetReportFunction(bot.SendDailyReport)
		if err := sched.Start(); err != nil {
			logger.Log.Fatalw("failed to start scheduler", "error", err)
		}
		defer sched.Stop()
	} else {
		logger.Log.Info("REPORT_CHAT_ID not set, daily reports are disabled")
	}

	bot.Start(ctx)
	logger.Log.Info("bot stopped")
}
