package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/traveltweets/internal/errors"
	"github.com/zfogg/traveltweets/internal/util"
)

func newErrorRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(RequestIDMiddleware(), Recovery())
	router.NoRoute(NoRoute)
	router.NoMethod(NoMethod)
	router.GET("/boom", func(c *gin.Context) { panic("secret internals") })
	router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	return router
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) util.ErrorResponse {
	t.Helper()
	var body util.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestRecoveryHidesPanic(t *testing.T) {
	w := httptest.NewRecorder()
	newErrorRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, errors.GenericInternalMessage, body.Error)
	assert.NotContains(t, w.Body.String(), "secret internals")
}

func TestNoMethodReturns405(t *testing.T) {
	w := httptest.NewRecorder()
	newErrorRouter().ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/ok", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, "METHOD_NOT_ALLOWED", decodeError(t, w).Code)
}

func TestNoRouteReturns404(t *testing.T) {
	w := httptest.NewRecorder()
	newErrorRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decodeError(t, w).Code)
}

func TestRequestIDIsEchoed(t *testing.T) {
	router := newErrorRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	router.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Len(t, w.Header().Get(RequestIDHeader), 36)
}
