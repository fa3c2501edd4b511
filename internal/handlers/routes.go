package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/zfogg/traveltweets/internal/cache"
	"github.com/zfogg/traveltweets/internal/middleware"
)

// RouteOptions tunes the limiters in front of the API. Redis may be nil.
type RouteOptions struct {
	Redis              *cache.RedisClient
	RateLimitPerMinute int
}

// RegisterRoutes mounts the API under /api. The engine should have
// HandleMethodNotAllowed set for wrong-method requests to get 405.
func (h *Handlers) RegisterRoutes(r *gin.Engine, opts RouteOptions) {
	r.NoRoute(middleware.NoRoute)
	r.NoMethod(middleware.NoMethod)

	requireAuth := h.RequireAuth()
	optionalAuth := h.OptionalAuth()
	authLimit := middleware.RedisRateLimitMiddleware(middleware.AuthRateLimitConfig(), opts.Redis)
	uploadLimit := middleware.RedisRateLimitMiddleware(middleware.UploadRateLimitConfig(), opts.Redis)
	captionLimit := middleware.RedisRateLimitMiddleware(middleware.CaptionRateLimitConfig(), opts.Redis)

	api := r.Group("/api")
	api.Use(middleware.RedisRateLimitMiddleware(middleware.DefaultRateLimitConfig(opts.RateLimitPerMinute), opts.Redis))
	{
		// Authentication
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", authLimit, h.Register)
			authGroup.POST("/login", authLimit, h.Login)
			authGroup.POST("/logout", h.Logout)
			authGroup.GET("/me", requireAuth, h.Me)
			authGroup.GET("/stream-token", requireAuth, h.StreamToken)

			authGroup.GET("/oauth/:provider", h.OAuthStart)
			authGroup.GET("/oauth/:provider/callback", h.OAuthCallback)

			authGroup.POST("/password/forgot", authLimit, h.RequestPasswordReset)
			authGroup.POST("/password/reset", authLimit, h.ResetPassword)

			authGroup.POST("/2fa/setup", requireAuth, h.SetupTwoFactor)
			authGroup.POST("/2fa/enable", requireAuth, h.EnableTwoFactor)
			authGroup.POST("/2fa/disable", requireAuth, h.DisableTwoFactor)
		}

		// Tweets
		tweets := api.Group("/tweets")
		{
			tweets.GET("", optionalAuth, h.GetTimeline)
			tweets.POST("", requireAuth, h.CreateTweet)
			tweets.GET("/:id", optionalAuth, h.GetTweet)
			tweets.PATCH("/:id", requireAuth, h.UpdateTweet)
			tweets.DELETE("/:id", requireAuth, h.DeleteTweet)
			tweets.GET("/:id/replies", optionalAuth, h.GetReplies)
			tweets.GET("/:id/likes", optionalAuth, h.GetLikers)
			tweets.POST("/:id/like", requireAuth, h.ToggleLike)
			tweets.POST("/:id/retweet", requireAuth, h.ToggleRetweet)
			tweets.POST("/:id/bookmark", requireAuth, h.ToggleBookmark)
		}
		api.GET("/bookmarks", requireAuth, h.GetBookmarks)

		// Users
		users := api.Group("/users")
		{
			users.PATCH("/me", requireAuth, h.UpdateProfile)
			users.GET("/:username", optionalAuth, h.GetProfile)
			users.GET("/:username/tweets", optionalAuth, h.GetUserTweets)
			users.GET("/:username/followers", optionalAuth, h.GetFollowers)
			users.GET("/:username/following", optionalAuth, h.GetFollowing)
		}

		// Follows
		follows := api.Group("/follows")
		follows.Use(requireAuth)
		{
			follows.POST("", h.ToggleFollow)
			follows.GET("/requests", h.GetFollowRequests)
			follows.GET("/requests/sent", h.GetSentFollowRequests)
			follows.POST("/requests/:id/accept", h.AcceptFollowRequest)
			follows.POST("/requests/:id/reject", h.RejectFollowRequest)
			follows.DELETE("/followers/:userId", h.RemoveFollower)
		}

		// Direct messages
		messages := api.Group("/messages")
		messages.Use(requireAuth)
		{
			messages.GET("", h.GetConversations)
			messages.POST("", h.SendMessage)
			messages.GET("/:id", h.GetConversation)
			messages.DELETE("/:id", h.DeclineConversation)
			messages.POST("/:id/read", h.MarkConversationRead)
			messages.POST("/:id/typing", h.SendTyping)
			messages.POST("/:id/accept", h.AcceptConversation)
			messages.DELETE("/:id/messages/:messageId", h.DeleteMessage)
		}

		// Notifications
		notifications := api.Group("/notifications")
		notifications.Use(requireAuth)
		{
			notifications.GET("", h.GetNotifications)
			notifications.GET("/unread-count", h.GetUnreadCount)
			notifications.POST("/read-all", h.MarkAllNotificationsRead)
			notifications.GET("/preferences", h.GetNotificationPreferences)
			notifications.PUT("/preferences", h.UpdateNotificationPreferences)
			notifications.PATCH("/:id", h.MarkNotificationRead)
			notifications.DELETE("/:id", h.DeleteNotification)
		}

		api.GET("/search", optionalAuth, h.Search)
		api.POST("/uploads", requireAuth, uploadLimit, h.UploadImage)
		api.DELETE("/uploads", requireAuth, h.DeleteUpload)
		api.POST("/captions", requireAuth, captionLimit, h.GenerateCaptions)

		// Realtime: the socket authenticates itself from the cookie or ?token=
		if h.wsHandler != nil {
			api.GET("/ws", h.wsHandler.HandleWebSocket)
			api.GET("/ws/metrics", requireAuth, h.wsHandler.HandleMetrics)
		}
	}
}
