package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/zfogg/traveltweets/internal/config"
	"github.com/zfogg/traveltweets/internal/database"
	"github.com/zfogg/traveltweets/internal/logger"
	"github.com/zfogg/traveltweets/internal/messaging"
	"github.com/zfogg/traveltweets/internal/notifications"
	"github.com/zfogg/traveltweets/internal/seed"
	"github.com/zfogg/traveltweets/internal/social"
	"github.com/zfogg/traveltweets/internal/stream"
)

func main() {
	users := flag.Int("users", 30, "number of users to create with dev")
	flag.Usage = func() {
		fmt.Println("Usage: seed [-users=N] [dev|test|clean]")
		fmt.Println("  dev   - Seed development database with realistic data")
		fmt.Println("  test  - Seed the fixed accounts end-to-end tests use")
		fmt.Println("  clean - Remove all data (use with caution)")
	}
	flag.Parse()

	command := "dev"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}
	if command != "dev" && command != "test" && command != "clean" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.IsProduction() {
		fmt.Fprintln(os.Stderr, "Refusing to seed a production database")
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
	if err := database.Migrate(database.DB); err != nil {
		logger.FatalWithFields("Migration failed", err)
	}

	// Seeded tweets and follows also land in Stream feeds when configured
	var feeds stream.StreamClientInterface
	if cfg.Stream.APIKey != "" {
		client, err := stream.NewClient(cfg.Stream.APIKey, cfg.Stream.APISecret)
		if err != nil {
			logger.WarnWithFields("Stream.io disabled for seeding", err)
		} else {
			feeds = client
		}
	}

	notifier := notifications.NewService(nil, nil)
	seeder := seed.NewSeeder(
		database.DB,
		social.NewService(notifier, feeds),
		messaging.NewService(notifier, nil, feeds),
	)

	ctx := context.Background()
	switch command {
	case "dev":
		logger.Log.Info("Seeding development database...")
		err = seeder.SeedDev(ctx, *users)
	case "test":
		logger.Log.Info("Seeding test database...")
		err = seeder.SeedTest(ctx)
	case "clean":
		logger.Log.Info("Cleaning database...")
		err = seeder.Clean()
	}
	if err != nil {
		logger.FatalWithFields("Seeding failed", err)
	}
	logger.Log.Info("Done")
}
