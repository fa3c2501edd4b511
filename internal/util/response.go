package util

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/traveltweets/internal/errors"
	"github.com/zfogg/traveltweets/internal/logger"
	"github.com/zfogg/traveltweets/internal/metrics"
	"go.uber.org/zap"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Field string `json:"field,omitempty"`
}

// RespondWithAPIError logs apiErr and writes it. Details only go to the log.
func RespondWithAPIError(c *gin.Context, apiErr *errors.APIError) {
	fields := []zap.Field{
		zap.String("code", string(apiErr.Code)),
		zap.String("message", apiErr.Message),
		zap.Int("status", apiErr.Status),
		zap.String("path", c.Request.URL.Path),
		zap.String("method", c.Request.Method),
	}
	if apiErr.Field != "" {
		fields = append(fields, zap.String("field", apiErr.Field))
	}
	if apiErr.Details != "" {
		fields = append(fields, zap.String("details", apiErr.Details))
	}
	if id := RequestID(c); id != "" {
		fields = append(fields, logger.WithRequestID(id))
	}
	metrics.Get().ErrorsTotal.WithLabelValues(string(apiErr.Code)).Inc()

	if apiErr.Status >= http.StatusInternalServerError {
		logger.Log.Error("API error", fields...)
	} else if apiErr.Status >= http.StatusBadRequest {
		logger.Log.Warn("API error", fields...)
	}

	c.AbortWithStatusJSON(apiErr.Status, ErrorResponse{
		Error: apiErr.Message,
		Code:  string(apiErr.Code),
		Field: apiErr.Field,
	})
}

// RespondSuccess writes a 200 with success=true merged into body.
func RespondSuccess(c *gin.Context, body gin.H) {
	respondSuccess(c, http.StatusOK, body)
}

// RespondCreated writes a 201 with success=true merged into body.
func RespondCreated(c *gin.Context, body gin.H) {
	respondSuccess(c, http.StatusCreated, body)
}

func respondSuccess(c *gin.Context, status int, body gin.H) {
	if body == nil {
		body = gin.H{}
	}
	body["success"] = true
	c.JSON(status, body)
}

// RespondUnauthorized sends a 401 Unauthorized response
func RespondUnauthorized(c *gin.Context, message ...string) {
	msg := ""
	if len(message) > 0 {
		msg = message[0]
	}
	RespondWithAPIError(c, errors.Unauthorized(msg))
}

// RespondNotFound sends a 404 Not Found response
func RespondNotFound(c *gin.Context, resource string) {
	RespondWithAPIError(c, errors.NotFound(resource))
}

// RespondBadRequest sends a 400 Bad Request response
func RespondBadRequest(c *gin.Context, message string) {
	RespondWithAPIError(c, errors.BadRequest(message))
}

// RespondForbidden sends a 403 Forbidden response
func RespondForbidden(c *gin.Context, message ...string) {
	msg := ""
	if len(message) > 0 {
		msg = message[0]
	}
	RespondWithAPIError(c, errors.Forbidden(msg))
}

// RespondInternalError sends the generic 500. err is logged, never returned.
func RespondInternalError(c *gin.Context, context string, err error) {
	details := context
	if err != nil {
		details = context + ": " + err.Error()
	}
	RespondWithAPIError(c, errors.InternalError(details))
}

// RespondConflict sends a 409 Conflict response
func RespondConflict(c *gin.Context, message string) {
	RespondWithAPIError(c, errors.Conflict(message))
}
