// Package validation checks at boot that the optional backing services an
// operator marked as required are reachable.
package validation

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/zfogg/traveltweets/internal/cache"
	"github.com/zfogg/traveltweets/internal/config"
	"github.com/zfogg/traveltweets/internal/logger"
	"github.com/zfogg/traveltweets/internal/storage"
	"github.com/zfogg/traveltweets/internal/telemetry"
	"go.uber.org/zap"
)

// Services that can be marked required with TRAVELTWEETS_REQUIRE_<NAME>
var optionalServices = []string{"elasticsearch", "s3", "redis", "ai"}

const checkTimeout = 10 * time.Second

// Check verifies one service
type Check func(ctx context.Context, cfg *config.Config) error

// ServiceValidator validates the required optional services
type ServiceValidator struct {
	requiredServices []string
	checks           map[string]Check
}

// NewServiceValidator reads the TRAVELTWEETS_REQUIRE_* variables
func NewServiceValidator() *ServiceValidator {
	return &ServiceValidator{
		requiredServices: parseRequiredServices(),
		checks: map[string]Check{
			"elasticsearch": validateElasticsearch,
			"s3":            validateS3,
			"redis":         validateRedis,
			"ai":            validateAI,
		},
	}
}

// Required lists the services that must validate
func (sv *ServiceValidator) Required() []string {
	return sv.requiredServices
}

// ValidateServices runs the check of every required service and returns the
// first failure.
func (sv *ServiceValidator) ValidateServices(ctx context.Context, cfg *config.Config) error {
	if len(sv.requiredServices) == 0 {
		logger.Log.Info("No required services configured for validation")
		return nil
	}

	logger.Log.Info("Validating required services", zap.Strings("services", sv.requiredServices))

	for _, name := range sv.requiredServices {
		check, ok := sv.checks[name]
		if !ok {
			logger.Log.Warn("Unknown service type in validation", zap.String("service", name))
			continue
		}

		timeoutCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := check(timeoutCtx, cfg)
		cancel()
		if err != nil {
			logger.Log.Error("Required service validation failed", zap.String("service", name), zap.Error(err))
			return fmt.Errorf("required service %q validation failed: %w", name, err)
		}

		logger.Log.Info("Service validated", zap.String("service", name))
	}

	logger.Log.Info("All required services validated")
	return nil
}

func validateElasticsearch(ctx context.Context, cfg *config.Config) error {
	if cfg.Search.URL == "" {
		return fmt.Errorf("ELASTICSEARCH_URL is not set")
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{cfg.Search.URL}})
	if err != nil {
		return fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	res, err := client.Info(client.Info.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to connect to Elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch returned error status: %s", res.Status())
	}
	return nil
}

func validateS3(ctx context.Context, cfg *config.Config) error {
	if cfg.AWS.Region == "" || cfg.AWS.Bucket == "" {
		return fmt.Errorf("AWS_REGION and AWS_BUCKET are required for S3 validation")
	}

	uploader, err := storage.NewS3Uploader(ctx, cfg.AWS.Region, cfg.AWS.Bucket, cfg.AWS.CDNBaseURL)
	if err != nil {
		return fmt.Errorf("failed to initialize S3 client: %w", err)
	}
	if err := uploader.CheckBucketAccess(ctx); err != nil {
		return fmt.Errorf("S3 bucket access check failed: %w", err)
	}
	return nil
}

func validateRedis(ctx context.Context, cfg *config.Config) error {
	if cfg.Redis.Host == "" {
		return fmt.Errorf("REDIS_HOST is not set")
	}

	client, err := cache.NewRedisClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password)
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	defer client.Close()

	return client.Ping(ctx)
}

// validateAI lists the models of the caption endpoint, which proves both
// reachability and the API key.
func validateAI(ctx context.Context, cfg *config.Config) error {
	if cfg.AI.APIKey == "" {
		return fmt.Errorf("AI_API_KEY is not set")
	}

	url := strings.TrimSuffix(cfg.AI.BaseURL, "/") + "/models"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create AI health check request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+cfg.AI.APIKey)

	client := telemetry.NewInstrumentedHTTPClient(telemetry.HTTPClientConfig{ServiceName: "ai", Timeout: checkTimeout})
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach AI endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("AI endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// parseRequiredServices reads TRAVELTWEETS_REQUIRE_<SERVICE> for each
// optional service
func parseRequiredServices() []string {
	var required []string
	for _, service := range optionalServices {
		envVar := "TRAVELTWEETS_REQUIRE_" + strings.ToUpper(service)
		if isTruthy(os.Getenv(envVar)) {
			required = append(required, service)
		}
	}
	return required
}

func isTruthy(value string) bool {
	value = strings.ToLower(strings.TrimSpace(value))
	return value == "1" || value == "true" || value == "yes" || value == "on"
}
