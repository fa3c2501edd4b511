package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/traveltweets/internal/util"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracingMiddleware opens a server span per request. Probe and scrape
// endpoints are not traced.
func TracingMiddleware(serviceName string) gin.HandlerFunc {
	return otelgin.Middleware(serviceName,
		otelgin.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/health" && r.URL.Path != "/metrics"
		}),
	)
}

// SpanEnrichmentMiddleware must run inside TracingMiddleware so the span is
// still open when it records the outcome.
func SpanEnrichmentMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if requestID := util.RequestID(c); requestID != "" && span.IsRecording() {
			span.SetAttributes(attribute.String("request.id", requestID))
		}

		c.Next()

		if !span.IsRecording() {
			return
		}
		if userID := c.GetString(util.ContextUserIDKey); userID != "" {
			span.SetAttributes(attribute.String("user.id", userID))
		}
		for _, ginErr := range c.Errors {
			span.RecordError(ginErr.Err)
		}

		status := c.Writer.Status()
		switch {
		case status >= 500:
			span.SetStatus(codes.Error, "server error")
		case status >= 400:
			span.SetStatus(codes.Unset, "client error")
		default:
			span.SetStatus(codes.Ok, "")
		}
	}
}
