package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/zfogg/traveltweets/internal/config"
	"github.com/zfogg/traveltweets/internal/database"
	"github.com/zfogg/traveltweets/internal/logger"
	"github.com/zfogg/traveltweets/internal/models"
	"go.uber.org/zap"
)

func main() {
	username := flag.String("username", "", "Username of the account to verify")
	email := flag.String("email", "", "Email address of the account to verify")
	revoke := flag.Bool("revoke", false, "Remove the verified badge instead of granting it")
	flag.Parse()

	if *username == "" && *email == "" {
		fmt.Println("Usage: verify-user -username=alice")
		fmt.Println("       verify-user -email=alice@example.com -revoke")
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
		logger.FatalWithFields("Failed to initialize database", err)
	}
	defer database.Close()

	query := database.DB.Model(&models.User{})
	if *username != "" {
		query = query.Where("LOWER(username) = LOWER(?)", *username)
	} else {
		query = query.Where("LOWER(email) = LOWER(?)", *email)
	}

	var user models.User
	if err := query.First(&user).Error; err != nil {
		logger.FatalWithFields("User not found", err)
	}

	verified := !*revoke
	if user.IsVerified == verified {
		logger.Log.Info("Nothing to do", zap.String("username", user.Username), zap.Bool("verified", verified))
		return
	}
	if err := database.DB.Model(&user).Update("is_verified", verified).Error; err != nil {
		logger.FatalWithFields("Failed to update user", err)
	}

	// The search index picks the badge up on the next reconciliation pass
	logger.Log.Info("Updated verified badge", zap.String("username", user.Username), zap.Bool("verified", verified))
}
