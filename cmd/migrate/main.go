package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/zfogg/traveltweets/internal/config"
	"github.com/zfogg/traveltweets/internal/database"
	"github.com/zfogg/traveltweets/internal/logger"
	"github.com/zfogg/traveltweets/internal/search"
	"go.uber.org/zap"
)

func main() {
	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "up", "reindex":
	default:
		fmt.Println("Usage: migrate [up|reindex]")
		fmt.Println("  up      - Run all pending migrations")
		fmt.Println("  reindex - Run migrations, rebuild outdated search indices and reindex every tweet and user")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Initialize(cfg.LogLevel, ""); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	if err := database.Initialize(cfg.Database, false); err != nil {
		logger.FatalWithFields("Failed to connect to database", err)
	}
	defer database.Close()

	logger.Log.Info("Running migrations...")
	if err := database.Migrate(database.DB); err != nil {
		logger.FatalWithFields("Migration failed", err)
	}
	logger.Log.Info("All migrations completed successfully")

	if command == "reindex" {
		reindex(cfg)
	}
}

func reindex(cfg *config.Config) {
	if cfg.Search.URL == "" {
		logger.Log.Fatal("ELASTICSEARCH_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	client, err := search.NewClient(ctx, cfg.Search.URL, nil)
	if err != nil {
		logger.FatalWithFields("Failed to connect to Elasticsearch", err)
	}

	rebuilt, err := client.RebuildOutdated(ctx)
	if err != nil {
		logger.FatalWithFields("Failed to rebuild search indices", err)
	}
	if len(rebuilt) > 0 {
		logger.Log.Info("Rebuilt outdated indices", zap.Strings("indices", rebuilt))
	}

	tweets, users, err := search.ReindexAll(ctx, client)
	if err != nil {
		logger.FatalWithFields("Reindex failed", err)
	}
	logger.Log.Info("Reindex complete", zap.Int("tweets", tweets), zap.Int("users", users))
}
