package websocket

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	apierrors "github.com/zfogg/traveltweets/internal/errors"
	"github.com/zfogg/traveltweets/internal/logger"
	"github.com/zfogg/traveltweets/internal/models"
	"github.com/zfogg/traveltweets/internal/util"
	"go.uber.org/zap"
)

// TokenValidator resolves a session token to its user
type TokenValidator interface {
	ValidateToken(ctx context.Context, tokenString string) (*models.User, error)
}

// TokenExtractor pulls the session token out of the handshake request
type TokenExtractor func(c *gin.Context) string

// Handler upgrades authenticated requests to WebSocket connections
type Handler struct {
	hub            *Hub
	validator      TokenValidator
	extractToken   TokenExtractor
	originPatterns []string
}

// NewHandler creates a new WebSocket handler. originPatterns are host
// patterns accepted for cross-origin handshakes.
func NewHandler(hub *Hub, validator TokenValidator, extractToken TokenExtractor, originPatterns []string) *Handler {
	return &Handler{
		hub:            hub,
		validator:      validator,
		extractToken:   extractToken,
		originPatterns: originPatterns,
	}
}

// HandleWebSocket authenticates with the session cookie or ?token= and
// serves the connection until it closes.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	user, err := h.authenticateRequest(c)
	if err != nil {
		logger.Log.Debug("WebSocket auth failed", zap.Error(err))
		util.RespondWithAPIError(c, apierrors.Unauthorized(""))
		return
	}

	conn, err := websocket.Accept(upgradeWriter{c.Writer}, c.Request, &websocket.AcceptOptions{
		OriginPatterns:  h.originPatterns,
		CompressionMode: websocket.CompressionContextTakeover,
	})
	if err != nil {
		logger.Log.Warn("WebSocket upgrade failed", logger.WithUserID(user.ID), zap.Error(err))
		return
	}

	client := NewClient(h.hub, conn, user.ID, user.Username)
	client.RemoteAddr = c.ClientIP()
	client.UserAgent = c.GetHeader("User-Agent")

	h.hub.Register(client)

	_ = client.Send(NewMessage(MessageTypeSystem, SystemPayload{
		Event: "connected",
		Data: map[string]interface{}{
			"userId":     user.ID,
			"username":   user.Username,
			"serverTime": time.Now().UTC().UnixMilli(),
		},
	}))

	go client.WritePump()
	client.ReadPump()
}

// upgradeWriter commits the 101 through gin so nothing is written after
// the handler returns, then hijacks the connection gin wraps. gin refuses
// to hijack once its header is committed.
type upgradeWriter struct {
	gin.ResponseWriter
}

func (w upgradeWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	var rw http.ResponseWriter = w.ResponseWriter
	for {
		u, ok := rw.(interface{ Unwrap() http.ResponseWriter })
		if !ok {
			break
		}
		rw = u.Unwrap()
	}
	hj, ok := rw.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return hj.Hijack()
}

func (h *Handler) authenticateRequest(c *gin.Context) (*models.User, error) {
	token := h.extractToken(c)
	if token == "" {
		return nil, errors.New("no session token")
	}
	return h.validator.ValidateToken(c.Request.Context(), token)
}

// HandleMetrics returns hub counters for operators
func (h *Handler) HandleMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"websocket": h.hub.GetMetrics(),
		"timestamp": time.Now().UTC(),
	})
}

// Shutdown gracefully shuts down the hub
func (h *Handler) Shutdown(ctx context.Context) error {
	return h.hub.Shutdown(ctx)
}

// GetHub returns the hub for external access
func (h *Handler) GetHub() *Hub {
	return h.hub
}
