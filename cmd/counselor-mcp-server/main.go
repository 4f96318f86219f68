package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"counselor-assistant/internal/app"
	"counselor-assistant/internal/classifier"
	"counselor-assistant/internal/config"
	"counselor-assistant/internal/history"
	"counselor-assistant/internal/logger"
	"counselor-assistant/internal/mcptools"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	cfg, err := config.New()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	// stdout carries the protocol; the production zap config writes to stderr
	if err := logger.Initialize(cfg.LogLevel); err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	store, closeStore, err := app.OpenStore(ctx, cfg)
	if err != nil {
		logger.Log.Fatalw("failed to open interaction store", "error", err)
	}
	if closeStore != nil {
		defer closeStore()
	}

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "counselor-assistant-mcp",
		Version: "1.0.0",
	}, nil)

	tools := mcptools.New(
		history.NewLog(store),
		&classifier.LazyPredictor{ModelPath: cfg.ModelPath, DatasetPath: cfg.DatasetPath},
	)
	tools.Register(server)
	logger.Log.Infow("starting MCP server on stdio", "tools", []string{"feedback_stats", "interaction_history", "predict_depression"})

	if err := server.Run(ctx, mcp.NewStdioTransport()); err != nil {
		logger.Log.Fatalw("server failed", "error", err)
	}
}
