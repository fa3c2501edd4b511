package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completion(content string) string {
	data, _ := json.Marshal(map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	})
	return string(data)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(Config{
		APIKey:     "test-key",
		BaseURL:    server.URL + "/v1/",
		Model:      "test-model",
		RetryDelay: time.Millisecond,
		HTTPClient: server.Client(),
	})
}

func TestGenerateCaptionsSendsTextAndImage(t *testing.T) {
	bodies := make(chan json.RawMessage, 1)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		var body json.RawMessage
		_ = json.NewDecoder(r.Body).Decode(&body)
		bodies <- body
		_, _ = w.Write([]byte(completion(`{"captions":["Golden hour in Lisbon 🌅","Tram 28 and pastel de nata","Getting lost in Alfama"]}`)))
	})

	captions, err := client.GenerateCaptions(context.Background(), CaptionRequest{
		ImageURL: "https://cdn.example.com/u/1/photo.jpg",
		Text:     "first day in lisbon",
		Location: "Lisbon, Portugal",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Golden hour in Lisbon 🌅", "Tram 28 and pastel de nata", "Getting lost in Alfama"}, captions)

	body := <-bodies
	var got chatRequest
	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &got))
	require.NoError(t, json.Unmarshal(body, &raw))
	assert.Equal(t, "test-model", got.Model)
	require.Len(t, got.Messages, 2)
	parts := raw["messages"].([]interface{})[1].(map[string]interface{})["content"].([]interface{})
	require.Len(t, parts, 2)
	assert.Contains(t, parts[0].(map[string]interface{})["text"], "Lisbon, Portugal")
	assert.Contains(t, parts[0].(map[string]interface{})["text"], "first day in lisbon")
	assert.Equal(t, "image_url", parts[1].(map[string]interface{})["type"])
}

func TestGenerateCaptionsRetriesServerErrors(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"message":"overloaded"}}`))
			return
		}
		_, _ = w.Write([]byte(completion(`{"captions":["Back on the road"]}`)))
	})

	captions, err := client.GenerateCaptions(context.Background(), CaptionRequest{Text: "road trip"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Back on the road"}, captions)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGenerateCaptionsDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid image url"}}`))
	})

	_, err := client.GenerateCaptions(context.Background(), CaptionRequest{ImageURL: "not-a-url"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "invalid image url", apiErr.Message)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGenerateCaptionsGivesUpAfterAttempts(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.GenerateCaptions(context.Background(), CaptionRequest{Text: "hello"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGenerateCaptionsValidation(t *testing.T) {
	_, err := NewClient(Config{}).GenerateCaptions(context.Background(), CaptionRequest{Text: "x"})
	assert.ErrorIs(t, err, ErrNotConfigured)

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	_, err = client.GenerateCaptions(context.Background(), CaptionRequest{Location: "Oslo"})
	assert.ErrorIs(t, err, ErrNoInput)
}

func TestParseCaptions(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{
			name:    "json object",
			content: `{"captions": ["One", "Two", "Three", "Four"]}`,
			want:    []string{"One", "Two", "Three"},
		},
		{
			name:    "json array",
			content: `["Sunset", "Sunset", "Sunrise"]`,
			want:    []string{"Sunset", "Sunrise"},
		},
		{
			name:    "numbered lines",
			content: "1. \"Chasing waterfalls in Iceland\"\n2) 3 days in Rome\n\n- Island time",
			want:    []string{"Chasing waterfalls in Iceland", "3 days in Rome", "Island time"},
		},
		{
			name:    "empty",
			content: "   ",
			want:    []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseCaptions(tt.content))
		})
	}
}

func TestCleanCaptionTruncates(t *testing.T) {
	long := strings.Repeat("é", 300)
	assert.Equal(t, 280, len([]rune(cleanCaption(long))))
}
