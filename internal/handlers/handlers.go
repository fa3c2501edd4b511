package handlers

import (
	"strings"

	"github.com/zfogg/traveltweets/internal/ai"
	"github.com/zfogg/traveltweets/internal/auth"
	"github.com/zfogg/traveltweets/internal/messaging"
	"github.com/zfogg/traveltweets/internal/notifications"
	"github.com/zfogg/traveltweets/internal/search"
	"github.com/zfogg/traveltweets/internal/social"
	"github.com/zfogg/traveltweets/internal/storage"
	"github.com/zfogg/traveltweets/internal/stream"
	"github.com/zfogg/traveltweets/internal/websocket"
)

// Handlers contains all HTTP handlers for the API
type Handlers struct {
	auth          auth.AuthServiceInterface
	sessions      *auth.Sessions
	social        *social.Service
	messaging     *messaging.Service
	notifications *notifications.Service
	stream        stream.StreamClientInterface
	search        *search.Service
	captions      *ai.Client
	images        storage.ImageStore
	wsHandler     *websocket.Handler
	webAppURL     string
}

// NewHandlers creates the handlers. streamClient may be nil; optional
// integrations are attached with the Set* methods and stay disabled
// otherwise.
func NewHandlers(
	authService auth.AuthServiceInterface,
	sessions *auth.Sessions,
	socialService *social.Service,
	messagingService *messaging.Service,
	notifier *notifications.Service,
	streamClient stream.StreamClientInterface,
) *Handlers {
	return &Handlers{
		auth:          authService,
		sessions:      sessions,
		social:        socialService,
		messaging:     messagingService,
		notifications: notifier,
		stream:        streamClient,
		search:        search.NewService(nil, nil),
		captions:      ai.NewClient(ai.Config{}),
	}
}

// SetWebSocketHandler sets the WebSocket handler for real-time delivery
func (h *Handlers) SetWebSocketHandler(ws *websocket.Handler) {
	h.wsHandler = ws
}

// SetSearchService replaces the database-only search with one backed by
// Elasticsearch
func (h *Handlers) SetSearchService(searchService *search.Service) {
	h.search = searchService
}

// SetCaptionClient sets the AI caption client
func (h *Handlers) SetCaptionClient(client *ai.Client) {
	h.captions = client
}

// SetImageStore sets where uploads are stored
func (h *Handlers) SetImageStore(store storage.ImageStore) {
	h.images = store
}

// SetWebAppURL sets where social login sends the browser afterwards
func (h *Handlers) SetWebAppURL(url string) {
	h.webAppURL = strings.TrimRight(url, "/")
}
