package validation

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/traveltweets/internal/config"
)

func TestParseRequiredServices(t *testing.T) {
	t.Setenv("TRAVELTWEETS_REQUIRE_REDIS", "true")
	t.Setenv("TRAVELTWEETS_REQUIRE_AI", " YES ")
	t.Setenv("TRAVELTWEETS_REQUIRE_S3", "0")
	t.Setenv("TRAVELTWEETS_REQUIRE_ELASTICSEARCH", "")

	assert.Equal(t, []string{"redis", "ai"}, NewServiceValidator().Required())
}

func TestValidateServicesStopsAtFirstFailure(t *testing.T) {
	var ran []string
	sv := &ServiceValidator{
		requiredServices: []string{"mystery", "redis", "s3"},
		checks: map[string]Check{
			"redis": func(context.Context, *config.Config) error {
				ran = append(ran, "redis")
				return errors.New("connection refused")
			},
			"s3": func(context.Context, *config.Config) error {
				ran = append(ran, "s3")
				return nil
			},
		},
	}

	err := sv.ValidateServices(context.Background(), &config.Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis")
	assert.Equal(t, []string{"redis"}, ran, "unknown services are skipped")
}

func TestValidateServicesNothingRequired(t *testing.T) {
	sv := &ServiceValidator{}
	assert.NoError(t, sv.ValidateServices(context.Background(), &config.Config{}))
}

func TestValidateElasticsearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"version":{"number":"8.15.0","build_flavor":"default"},"tagline":"You Know, for Search"}`))
	}))
	defer server.Close()

	cfg := &config.Config{Search: config.SearchConfig{URL: server.URL}}
	assert.NoError(t, validateElasticsearch(context.Background(), cfg))

	assert.Error(t, validateElasticsearch(context.Background(), &config.Config{}))
}

func TestValidateAI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" || r.Header.Get("Authorization") != "Bearer good-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer server.Close()

	cfg := &config.Config{AI: config.AIConfig{APIKey: "good-key", BaseURL: server.URL + "/v1"}}
	assert.NoError(t, validateAI(context.Background(), cfg))

	cfg.AI.APIKey = "bad-key"
	assert.Error(t, validateAI(context.Background(), cfg))

	cfg.AI.APIKey = ""
	assert.Error(t, validateAI(context.Background(), cfg))
}
