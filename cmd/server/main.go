package main

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zfogg/traveltweets/internal/ai"
	"github.com/zfogg/traveltweets/internal/auth"
	"github.com/zfogg/traveltweets/internal/cache"
	"github.com/zfogg/traveltweets/internal/cleanup"
	"github.com/zfogg/traveltweets/internal/config"
	"github.com/zfogg/traveltweets/internal/database"
	"github.com/zfogg/traveltweets/internal/email"
	"github.com/zfogg/traveltweets/internal/handlers"
	"github.com/zfogg/traveltweets/internal/logger"
	"github.com/zfogg/traveltweets/internal/messaging"
	"github.com/zfogg/traveltweets/internal/middleware"
	"github.com/zfogg/traveltweets/internal/notifications"
	"github.com/zfogg/traveltweets/internal/realtime"
	"github.com/zfogg/traveltweets/internal/search"
	"github.com/zfogg/traveltweets/internal/social"
	"github.com/zfogg/traveltweets/internal/storage"
	"github.com/zfogg/traveltweets/internal/stream"
	"github.com/zfogg/traveltweets/internal/telemetry"
	"github.com/zfogg/traveltweets/internal/util"
	"github.com/zfogg/traveltweets/internal/validation"
	"github.com/zfogg/traveltweets/internal/websocket"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const (
	shutdownTimeout      = 30 * time.Second
	reconciliationPeriod = 15 * time.Minute
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// The logger is a no-op until initialized, so report on stderr
		os.Stderr.WriteString("Failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.InitializeWithOptions(logger.Options{
		Level: cfg.LogLevel,
		File:  cfg.LogFile,
		JSON:  cfg.LogJSON,
	}); err != nil {
		os.Stderr.WriteString("Failed to initialize logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logger.Close()

	logger.Log.Info("=== Travel Tweets server starting ===",
		zap.String("environment", cfg.Environment),
		zap.String("port", cfg.Port),
	)

	ctx := context.Background()

	tracerProvider, err := telemetry.InitTracer(ctx, telemetry.Config{
		ServiceName:  telemetry.ServiceName,
		Environment:  cfg.Environment,
		OTLPEndpoint: cfg.Tracing.Endpoint,
		Enabled:      cfg.Tracing.Enabled,
		SamplingRate: cfg.Tracing.SamplingRate,
	})
	if err != nil {
		logger.Log.Warn("Tracing disabled, tracer failed to start", zap.Error(err))
	}

	// Database
	if err := database.Initialize(cfg.Database, !cfg.IsProduction(), telemetry.GORMTracingPlugin(cfg.Database.Driver)); err != nil {
		logger.FatalWithFields("Failed to initialize database", err)
	}
	if err := database.Migrate(database.DB); err != nil {
		logger.FatalWithFields("Failed to run migrations", err)
	}

	if err := validation.NewServiceValidator().ValidateServices(ctx, cfg); err != nil {
		logger.FatalWithFields("Required service validation failed", err)
	}

	// Redis backs the unread counters, search cache and rate limiter
	var redisClient *cache.RedisClient
	if cfg.Redis.Host != "" {
		redisClient, err = cache.NewRedisClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password)
		if err != nil {
			logger.Log.Warn("Redis unavailable, falling back to in-process limits and uncached counts", zap.Error(err))
			redisClient = nil
		}
	}

	// Stream.io: feeds, chat channels and client tokens
	var broker stream.StreamClientInterface
	if cfg.Stream.APIKey != "" {
		streamClient, err := stream.NewClient(cfg.Stream.APIKey, cfg.Stream.APISecret)
		if err != nil {
			logger.Log.Warn("Stream.io disabled", zap.Error(err))
		} else {
			broker = streamClient
		}
	}

	// Password reset email
	var mailer email.Sender
	if cfg.AWS.SESFrom != "" {
		sesService, err := email.NewEmailService(cfg.AWS.Region, cfg.AWS.SESFrom, cfg.AWS.SESFromName, cfg.WebAppURL)
		if err != nil {
			logger.Log.Warn("SES disabled, password reset emails will not be sent", zap.Error(err))
		} else {
			mailer = sesService
		}
	}
	if mailer == nil {
		mailer = &email.MemorySender{}
	}

	authService := auth.NewService(cfg.Session, cfg.OAuth, broker, mailer)

	// Realtime
	wsHub := websocket.NewHub()
	go wsHub.Run()
	publisher := realtime.NewPublisher(broker, wsHub)

	notifier := notifications.NewService(publisher, redisClient)
	socialService := social.NewService(notifier, broker)
	messagingService := messaging.NewService(notifier, publisher, broker)
	wsHub.RegisterHandler(websocket.MessageTypeTyping, messagingService.HandleTypingFrame)

	sessions := auth.NewSessions(cfg.Session)
	wsHandler := websocket.NewHandler(wsHub, authService, sessions.TokenFromRequest, originPatterns(cfg.AllowedOrigins))

	h := handlers.NewHandlers(authService, sessions, socialService, messagingService, notifier, broker)
	h.SetWebSocketHandler(wsHandler)
	h.SetWebAppURL(cfg.WebAppURL)

	// Search: Elasticsearch when configured, database LIKE queries otherwise
	var reconciliation *search.ReconciliationService
	if cfg.Search.URL != "" {
		esClient, err := search.NewClient(ctx, cfg.Search.URL, otelhttp.NewTransport(http.DefaultTransport))
		if err != nil {
			logger.Log.Warn("Elasticsearch unavailable, using database search", zap.Error(err))
		} else {
			if err := esClient.InitializeIndices(ctx); err != nil {
				logger.Log.Warn("Failed to initialize search indices", zap.Error(err))
			}
			h.SetSearchService(search.NewService(esClient, redisClient))
			reconciliation = search.NewReconciliationService(esClient, reconciliationPeriod)
			reconciliation.Start()
		}
	}

	// Uploads
	if cfg.AWS.Bucket != "" {
		uploader, err := storage.NewS3Uploader(ctx, cfg.AWS.Region, cfg.AWS.Bucket, cfg.AWS.CDNBaseURL)
		if err != nil {
			logger.Log.Warn("S3 disabled, image uploads unavailable", zap.Error(err))
		} else {
			if err := uploader.CheckBucketAccess(ctx); err != nil {
				logger.Log.Warn("S3 bucket access failed, uploads may fail", zap.Error(err))
			}
			h.SetImageStore(uploader)
		}
	}

	h.SetCaptionClient(ai.NewClient(ai.Config{
		APIKey:  cfg.AI.APIKey,
		BaseURL: cfg.AI.BaseURL,
		Model:   cfg.AI.Model,
		Timeout: cfg.AI.Timeout,
	}))

	retention := cleanup.NewService(cleanup.DefaultInterval, cleanup.DefaultNotificationRetention)
	retention.Start()

	// Router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	util.RegisterValidators()

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.TracingMiddleware(telemetry.ServiceName))
	r.Use(middleware.SpanEnrichmentMiddleware())
	r.Use(middleware.GinLoggerMiddleware())
	r.Use(middleware.MetricsMiddleware())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.AllowedOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Retry-After"}
	r.Use(cors.New(corsConfig))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/api/ws"})))

	r.GET("/health", func(c *gin.Context) {
		if err := database.Health(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "unhealthy",
				"timestamp": time.Now().UTC(),
				"service":   telemetry.ServiceName,
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC(),
			"service":   telemetry.ServiceName,
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	h.RegisterRoutes(r, handlers.RouteOptions{
		Redis:              redisClient,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Log.Info("Travel Tweets API listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.FatalWithFields("Failed to start server", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := wsHandler.Shutdown(shutdownCtx); err != nil {
		logger.Log.Warn("WebSocket shutdown warning", zap.Error(err))
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}
	if reconciliation != nil {
		reconciliation.Stop()
	}
	retention.Stop()
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if err := database.Close(); err != nil {
		logger.Log.Warn("Failed to close database", zap.Error(err))
	}
	if err := telemetry.Shutdown(tracerProvider, 5*time.Second); err != nil {
		logger.Log.Warn("Tracer shutdown warning", zap.Error(err))
	}

	logger.Log.Info("Server exited")
}

// originPatterns turns allowed origins into the host patterns the
// websocket handshake matches against.
func originPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, origin := range origins {
		if origin == "*" {
			return []string{"*"}
		}
		u, err := url.Parse(origin)
		if err != nil || u.Host == "" {
			continue
		}
		patterns = append(patterns, u.Host)
	}
	return patterns
}
