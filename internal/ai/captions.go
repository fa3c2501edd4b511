// Package ai generates tweet caption suggestions with an OpenAI-compatible
// chat completion endpoint.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/juju/clock"
	"github.com/juju/retry"
	"github.com/zfogg/traveltweets/internal/logger"
	"github.com/zfogg/traveltweets/internal/metrics"
	"github.com/zfogg/traveltweets/internal/models"
	"github.com/zfogg/traveltweets/internal/telemetry"
	"go.uber.org/zap"
)

// MaxCaptions is the most suggestions returned for one request
const MaxCaptions = 3

var (
	ErrNotConfigured = errors.New("caption generation is not configured")
	ErrNoInput       = errors.New("imageUrl or text is required")
	ErrNoCaptions    = errors.New("the model returned no captions")
)

var listMarker = regexp.MustCompile(`^(?:[-*•]|\d+[.)])\s+`)

const systemPrompt = `You write short, vivid captions for travel posts on a social network.
Reply with a JSON object {"captions": [...]} holding exactly 3 distinct captions.
Each caption is under 200 characters, first person, may use one or two emoji,
and never invents facts about the place that the user did not provide.`

// CaptionRequest is what the user has so far
type CaptionRequest struct {
	ImageURL string
	Text     string
	Location string
}

// Config configures Client. Zero values pick the defaults.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	Attempts   int
	RetryDelay time.Duration
	HTTPClient *http.Client
	Clock      clock.Clock
}

// Client calls the chat completion endpoint
type Client struct {
	apiKey     string
	endpoint   string
	model      string
	attempts   int
	retryDelay time.Duration
	httpClient *http.Client
	clock      clock.Clock
}

// NewClient creates a Client. Without an API key every call returns
// ErrNotConfigured.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = telemetry.NewInstrumentedHTTPClient(telemetry.HTTPClientConfig{
			ServiceName: "ai",
			Timeout:     cfg.Timeout,
		})
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}

	return &Client{
		apiKey:     cfg.APIKey,
		endpoint:   strings.TrimSuffix(cfg.BaseURL, "/") + "/chat/completions",
		model:      cfg.Model,
		attempts:   cfg.Attempts,
		retryDelay: cfg.RetryDelay,
		httpClient: cfg.HTTPClient,
		clock:      cfg.Clock,
	}
}

// Configured reports whether an API key is set
func (c *Client) Configured() bool {
	return c != nil && c.apiKey != ""
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	MaxTokens      int               `json:"max_tokens"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type apiErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// APIError is a non-success answer from the endpoint
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("caption API error (%d): %s", e.StatusCode, e.Message)
}

func (e *APIError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// GenerateCaptions returns up to MaxCaptions caption suggestions
func (c *Client) GenerateCaptions(ctx context.Context, req CaptionRequest) ([]string, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	req.ImageURL = strings.TrimSpace(req.ImageURL)
	req.Text = strings.TrimSpace(req.Text)
	req.Location = strings.TrimSpace(req.Location)
	if req.ImageURL == "" && req.Text == "" {
		return nil, ErrNoInput
	}

	body, err := json.Marshal(c.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	start := time.Now()
	var content string
	err = retry.Call(retry.CallArgs{
		Func: func() error {
			var callErr error
			content, callErr = c.call(ctx, body)
			return callErr
		},
		IsFatalError: func(err error) bool {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return !apiErr.retryable()
			}
			return ctx.Err() != nil
		},
		NotifyFunc: func(err error, attempt int) {
			logger.Log.Debug("Caption request failed, retrying", zap.Int("attempt", attempt), zap.Error(err))
		},
		Attempts:    c.attempts,
		Delay:       c.retryDelay,
		BackoffFunc: retry.DoubleDelay,
		Clock:       c.clock,
		Stop:        ctx.Done(),
	})
	metrics.Get().App.CaptionDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		err = retry.LastError(err)
		metrics.Get().App.CaptionRequests.WithLabelValues("error").Inc()
		logger.Log.Warn("Caption generation failed", zap.Duration("duration", time.Since(start)), zap.Error(err))
		return nil, err
	}

	captions := parseCaptions(content)
	if len(captions) == 0 {
		metrics.Get().App.CaptionRequests.WithLabelValues("error").Inc()
		return nil, ErrNoCaptions
	}
	metrics.Get().App.CaptionRequests.WithLabelValues("ok").Inc()
	return captions, nil
}

func (c *Client) buildRequest(req CaptionRequest) chatRequest {
	var prompt strings.Builder
	prompt.WriteString("Suggest captions for my travel post.")
	if req.Location != "" {
		fmt.Fprintf(&prompt, "\nLocation: %s", req.Location)
	}
	if req.Text != "" {
		fmt.Fprintf(&prompt, "\nMy draft: %s", req.Text)
	}
	if req.ImageURL != "" {
		prompt.WriteString("\nThe photo is attached.")
	}

	parts := []contentPart{{Type: "text", Text: prompt.String()}}
	if req.ImageURL != "" {
		parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURL{URL: req.ImageURL}})
	}

	return chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: parts},
		},
		Temperature:    0.8,
		MaxTokens:      400,
		ResponseFormat: map[string]string{"type": "json_object"},
	}
}

func (c *Client) call(ctx context.Context, body []byte) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("caption request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
		var errBody apiErrorBody
		if json.Unmarshal(respBody, &errBody) == nil && errBody.Error.Message != "" {
			apiErr.Message = errBody.Error.Message
		}
		return "", apiErr
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", ErrNoCaptions
	}
	return chatResp.Choices[0].Message.Content, nil
}

// parseCaptions reads {"captions": [...]} and falls back to one caption per
// line for models that ignore the response format.
func parseCaptions(content string) []string {
	var raw []string
	var obj struct {
		Captions []string `json:"captions"`
	}
	trimmed := strings.TrimSpace(content)
	if err := json.Unmarshal([]byte(trimmed), &obj); err == nil {
		raw = obj.Captions
	} else if err := json.Unmarshal([]byte(trimmed), &raw); err != nil {
		raw = strings.Split(trimmed, "\n")
	}

	captions := make([]string, 0, MaxCaptions)
	seen := map[string]bool{}
	for _, line := range raw {
		caption := cleanCaption(line)
		if caption == "" || seen[caption] {
			continue
		}
		seen[caption] = true
		captions = append(captions, caption)
		if len(captions) == MaxCaptions {
			break
		}
	}
	return captions
}

// cleanCaption strips list markers and wrapping quotes and caps the length
// at what a tweet can hold.
func cleanCaption(line string) string {
	s := listMarker.ReplaceAllString(strings.TrimSpace(line), "")
	s = strings.Trim(s, `"“”' `)
	if utf8.RuneCountInString(s) > models.MaxTweetLength {
		runes := []rune(s)
		s = strings.TrimSpace(string(runes[:models.MaxTweetLength]))
	}
	return s
}
