package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/traveltweets/internal/database"
	"github.com/zfogg/traveltweets/internal/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func installRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(previous) })
	return recorder
}

func TestInitTracerDisabled(t *testing.T) {
	tp, err := InitTracer(context.Background(), Config{Enabled: false})
	require.NoError(t, err)
	assert.Nil(t, tp)
	assert.NoError(t, Shutdown(tp, time.Second))
}

func TestGORMTracingPlugin(t *testing.T) {
	recorder := installRecorder(t)

	db, err := database.NewTestDB()
	require.NoError(t, err)
	require.NoError(t, db.Use(GORMTracingPlugin("sqlite")))

	user := models.User{Email: "span@example.com", Username: "spanner", DisplayName: "Span"}
	require.NoError(t, db.WithContext(context.Background()).Create(&user).Error)

	var found models.User
	require.NoError(t, db.WithContext(context.Background()).First(&found, "id = ?", user.ID).Error)

	names := map[string]bool{}
	for _, span := range recorder.Ended() {
		names[span.Name()] = true
	}
	assert.True(t, names["db.insert"], "expected insert span")
	assert.True(t, names["db.select"], "expected select span")
}

func TestTraceExternalCall(t *testing.T) {
	recorder := installRecorder(t)

	_, span := TraceExternalCall(context.Background(), "s3", "put_object")
	EndExternalCall(span, errors.New("boom"))

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "s3.put_object", ended[0].Name())
	assert.Equal(t, codes.Error, ended[0].Status().Code)
}

func TestNewInstrumentedHTTPClientDefaults(t *testing.T) {
	client := NewInstrumentedHTTPClient(HTTPClientConfig{ServiceName: "openai"})
	assert.Equal(t, 30*time.Second, client.Timeout)
	assert.NotNil(t, client.Transport)
}
