package database

import (
	"fmt"
	"time"

	"github.com/zfogg/traveltweets/internal/config"
	"github.com/zfogg/traveltweets/internal/logger"
	"github.com/zfogg/traveltweets/internal/models"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DB holds the database connection
var DB *gorm.DB

// Open connects to the configured dialect. TranslateError is on so unique
// violations surface as gorm.ErrDuplicatedKey on every driver.
func Open(cfg config.DatabaseConfig, verbose bool) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres", "":
		dialector = postgres.Open(cfg.URL)
	case "sqlite":
		dialector = sqlite.Open(cfg.URL)
	default:
		return nil, fmt.Errorf("unsupported DATABASE_DRIVER %q", cfg.Driver)
	}

	gormLogger := gormlogger.Default.LogMode(gormlogger.Warn)
	if verbose {
		gormLogger = gormlogger.Default.LogMode(gormlogger.Info)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.Driver == "sqlite" {
		// SQLite only enforces ON DELETE CASCADE with this pragma
		if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			return nil, fmt.Errorf("failed to enable sqlite foreign keys: %w", err)
		}
		return db, nil
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

// Initialize opens the connection and stores it in DB
func Initialize(cfg config.DatabaseConfig, verbose bool, plugins ...gorm.Plugin) error {
	db, err := Open(cfg, verbose)
	if err != nil {
		return err
	}

	for _, plugin := range plugins {
		if err := db.Use(plugin); err != nil {
			return fmt.Errorf("failed to register gorm plugin %s: %w", plugin.Name(), err)
		}
	}

	DB = db
	logger.Log.Info("Database connected", zap.String("driver", cfg.Driver))
	return nil
}

// AllModels lists every migrated model in dependency order
func AllModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.OAuthProvider{},
		&models.PasswordReset{},
		&models.Tweet{},
		&models.Like{},
		&models.Retweet{},
		&models.Bookmark{},
		&models.Follow{},
		&models.Notification{},
		&models.NotificationPreferences{},
		&models.Conversation{},
		&models.Message{},
	}
}

// Migrate runs auto-migration and creates the extra indexes on db
func Migrate(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database not initialized")
	}

	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	logger.Log.Info("Database migrations completed")
	return nil
}

// createIndexes adds indexes gorm tags cannot express
func createIndexes(db *gorm.DB) error {
	statements := []string{
		// Case-insensitive identity lookups
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email_lower ON users (LOWER(email))",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username_lower ON users (LOWER(username))",

		// Timelines
		"CREATE INDEX IF NOT EXISTS idx_tweets_created ON tweets (created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_retweets_user_created ON retweets (user_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_bookmarks_user_created ON bookmarks (user_id, created_at DESC)",

		// Inbox ordering
		"CREATE INDEX IF NOT EXISTS idx_conversations_creator_last ON conversations (creator_id, last_message_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_conversations_recipient_last ON conversations (recipient_id, last_message_at DESC)",
	}

	if db.Dialector.Name() == "postgres" {
		statements = append(statements,
			"CREATE INDEX IF NOT EXISTS idx_tweets_content_search ON tweets USING gin(to_tsvector('english', content))",
			"CREATE INDEX IF NOT EXISTS idx_messages_unread ON messages (conversation_id, sender_id) WHERE read_at IS NULL",
		)
	}

	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("%s: %w", stmt, err)
		}
	}
	return nil
}

// Close closes the database connection
func Close() error {
	if DB == nil {
		return nil
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Health checks database connectivity
func Health() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
