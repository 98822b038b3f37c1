package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"stellar-harvest-bot-go/internal/bot"
	"stellar-harvest-bot-go/internal/config"
	"stellar-harvest-bot-go/internal/database"
	"stellar-harvest-bot-go/internal/horizon"
	"stellar-harvest-bot-go/internal/logger"
	"stellar-harvest-bot-go/internal/secrets"
)

const (
	configPath  = "./configs"
	keyFilePath = "secret.key"
)

func main() {
	// Optional .env for local development; ignore when absent.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		// We can't use the logger here because it's not initialized yet.
		panic(fmt.Sprintf("could not load config: %v", err))
	}

	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("Configuration loaded")

	db, err := database.NewDatabase(cfg.Database.DSN)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connection successful and schema migrated.")

	client := horizon.NewClient(&cfg.Horizon, log.Named("horizon"))
	if _, err := client.GetRoot(); err != nil {
		log.Fatal("Failed to connect to Horizon", zap.Error(err))
	}
	log.Info("Successfully connected to Horizon.")

	keybox := secrets.NewKeybox(keyFilePath)
	harvestBot := bot.New(cfg, configPath, db, client, keybox, log.Named("bot"))

	// Start scheduling right away when the config is already complete, the
	// dashboard can start/stop it afterwards either way.
	if harvestBot.Config().IsComplete() {
		if res := harvestBot.Start(); res.Success {
			log.Info("Bot started automatically due to complete config")
		} else {
			log.Warn("Automatic start refused", zap.String("reason", res.Message))
		}
	} else {
		log.Warn("Configuration incomplete, waiting for dashboard input")
	}

	api := bot.NewAPIServer(harvestBot, cfg.Server.Port, log)
	api.Start()

	sigchan := make(chan os.Signal, 1)
	signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
	<-sigchan
	log.Info("Shutdown signal received, gracefully shutting down...")

	harvestBot.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := api.Stop(ctx); err != nil {
		log.Error("API server shutdown failed", zap.Error(err))
	}

	log.Info("Bot has been shut down.")
}
