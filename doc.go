// Package traveltweets is the Travel Tweets API server: a small social
// network where travellers post short location-tagged tweets.

// The entry points live under cmd/ and the implementation under internal/:

// - internal/handlers: HTTP request handlers and the route table
// - internal/models: Data models and database schemas
// - internal/auth: Cookie sessions, social login, password reset and 2FA
// - internal/social: Tweets, likes, retweets, bookmarks and follows
// - internal/messaging: Direct messages and message requests
// - internal/notifications: Notification storage, counts and preferences
// - internal/realtime: Event publishing over Stream and the websocket hub
// - internal/websocket: WebSocket server for real-time updates
// - internal/search: Elasticsearch search with a database fallback
// - internal/ai: Caption suggestions from an OpenAI-compatible API
// - internal/storage: Image uploads to S3
// - internal/stream: Stream.io feeds and chat channels
// - internal/database: Database connection and migrations
// - internal/cleanup: Retention job for expired rows
// - internal/middleware: HTTP middleware (rate limiting, logging, metrics)

// See the individual package documentation for detailed API reference.
package main
