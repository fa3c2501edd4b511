package handlers

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/traveltweets/internal/database"
	apierrors "github.com/zfogg/traveltweets/internal/errors"
	"github.com/zfogg/traveltweets/internal/logger"
	"github.com/zfogg/traveltweets/internal/metrics"
	"github.com/zfogg/traveltweets/internal/models"
	"github.com/zfogg/traveltweets/internal/social"
	"github.com/zfogg/traveltweets/internal/util"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// tweetView is a tweet decorated with the viewer's relation to it
type tweetView struct {
	models.Tweet
	IsLiked      bool `json:"isLiked"`
	IsRetweeted  bool `json:"isRetweeted"`
	IsBookmarked bool `json:"isBookmarked"`
}

func (h *Handlers) tweetViews(c *gin.Context, tweets []models.Tweet) ([]tweetView, error) {
	ids := make([]string, len(tweets))
	for i := range tweets {
		ids[i] = tweets[i].ID
	}
	state, err := h.social.TweetViewerState(c.Request.Context(), util.ViewerID(c), ids)
	if err != nil {
		return nil, err
	}

	views := make([]tweetView, len(tweets))
	for i, t := range tweets {
		views[i] = tweetView{
			Tweet:        t,
			IsLiked:      state.Liked[t.ID],
			IsRetweeted:  state.Retweeted[t.ID],
			IsBookmarked: state.Bookmarked[t.ID],
		}
	}
	return views, nil
}

func (h *Handlers) respondTweet(c *gin.Context, tweet *models.Tweet, created bool) {
	views, err := h.tweetViews(c, []models.Tweet{*tweet})
	if err != nil {
		util.RespondInternalError(c, "load viewer state", err)
		return
	}
	if created {
		util.RespondCreated(c, gin.H{"tweet": views[0]})
		return
	}
	util.RespondSuccess(c, gin.H{"tweet": views[0]})
}

// respondTweetPage answers with one page of query, decorated for the viewer.
// query must build a fresh statement on every call.
func (h *Handlers) respondTweetPage(c *gin.Context, query func() *gorm.DB, order, action string) {
	limit, offset := util.Pagination(c)

	var total int64
	if err := query().Count(&total).Error; err != nil {
		util.RespondInternalError(c, action, err)
		return
	}

	tweets := []models.Tweet{}
	if err := query().Preload("User").Order(order).Limit(limit).Offset(offset).Find(&tweets).Error; err != nil {
		util.RespondInternalError(c, action, err)
		return
	}

	views, err := h.tweetViews(c, tweets)
	if err != nil {
		util.RespondInternalError(c, "load viewer state", err)
		return
	}
	util.RespondSuccess(c, gin.H{
		"tweets":     views,
		"pagination": util.PageMeta(limit, offset, len(views), total),
	})
}

// loadVisibleTweet loads a tweet with its author and answers 404 or 403
// when it is missing or hidden from the viewer.
func (h *Handlers) loadVisibleTweet(c *gin.Context, tweetID string) (*models.Tweet, bool) {
	var tweet models.Tweet
	if err := database.DB.WithContext(c.Request.Context()).Preload("User").First(&tweet, "id = ?", tweetID).Error; err != nil {
		util.HandleDBError(c, err, "Tweet")
		return nil, false
	}

	visible, err := h.social.CanView(c.Request.Context(), util.ViewerID(c), tweet.User)
	if err != nil {
		util.RespondInternalError(c, "check tweet visibility", err)
		return nil, false
	}
	if !visible {
		util.RespondForbidden(c, "This account is private")
		return nil, false
	}
	return &tweet, true
}

type createTweetRequest struct {
	Content   string `json:"content" binding:"max=2000"`
	Location  string `json:"location" binding:"max=100"`
	ImageURL  string `json:"imageUrl" binding:"omitempty,url,max=2048"`
	ImageKey  string `json:"imageKey" binding:"max=512"`
	ReplyToID string `json:"replyToId" binding:"omitempty,uuid"`
}

// CreateTweet publishes a tweet or a reply
// POST /api/tweets
func (h *Handlers) CreateTweet(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	var req createTweetRequest
	if !util.BindJSON(c, &req) {
		return
	}
	if req.ImageKey != "" && req.ImageURL == "" {
		util.RespondWithAPIError(c, apierrors.ValidationError("imageUrl", "imageUrl is required with imageKey"))
		return
	}

	tweet, err := h.social.CreateTweet(c.Request.Context(), user, social.TweetInput{
		Content:   req.Content,
		Location:  req.Location,
		ImageURL:  req.ImageURL,
		ImageKey:  req.ImageKey,
		ReplyToID: req.ReplyToID,
	})
	if err != nil {
		respondError(c, err, "create tweet")
		return
	}

	h.search.IndexTweet(c.Request.Context(), tweet, user.Username)
	h.respondTweet(c, tweet, true)
}

// GetTweet returns one tweet
// GET /api/tweets/:id
func (h *Handlers) GetTweet(c *gin.Context) {
	tweet, ok := h.loadVisibleTweet(c, c.Param("id"))
	if !ok {
		return
	}
	h.respondTweet(c, tweet, false)
}

type updateTweetRequest struct {
	Content  *string `json:"content" binding:"omitempty,max=2000"`
	Location *string `json:"location" binding:"omitempty,max=100"`
}

// UpdateTweet edits the caller's own tweet
// PATCH /api/tweets/:id
func (h *Handlers) UpdateTweet(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	var req updateTweetRequest
	if !util.BindJSON(c, &req) {
		return
	}

	tweet, err := h.social.UpdateTweet(c.Request.Context(), user.ID, c.Param("id"), social.TweetUpdate{
		Content:  req.Content,
		Location: req.Location,
	})
	if err != nil {
		respondError(c, err, "update tweet")
		return
	}

	h.search.IndexTweet(c.Request.Context(), tweet, user.Username)
	h.respondTweet(c, tweet, false)
}

// DeleteTweet deletes the caller's own tweet. Its image and search
// document are cleaned up best-effort.
// DELETE /api/tweets/:id
func (h *Handlers) DeleteTweet(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	tweet, err := h.social.DeleteTweet(c.Request.Context(), user.ID, c.Param("id"))
	if err != nil {
		respondError(c, err, "delete tweet")
		return
	}

	if tweet.ImageKey != "" && h.images != nil {
		if err := h.images.DeleteFile(c.Request.Context(), tweet.ImageKey); err != nil {
			metrics.Get().App.SideEffectFailures.WithLabelValues("s3").Inc()
			logger.Log.Warn("Failed to delete tweet image",
				logger.WithTweetID(tweet.ID),
				zap.String("key", tweet.ImageKey),
				zap.Error(err))
		}
	}
	h.search.RemoveTweet(c.Request.Context(), tweet.ID)

	util.RespondSuccess(c, gin.H{"id": tweet.ID})
}

// GetTimeline lists the home feed (own tweets and accepted followings) or
// the global feed (public authors)
// GET /api/tweets?feed=home|global
func (h *Handlers) GetTimeline(c *gin.Context) {
	ctx := c.Request.Context()

	switch feed := c.DefaultQuery("feed", "home"); feed {
	case "home":
		viewer, ok := util.GetUserFromContext(c)
		if !ok {
			return
		}
		h.respondTweetPage(c, func() *gorm.DB {
			return database.DB.WithContext(ctx).Model(&models.Tweet{}).
				Where("tweets.reply_to_id IS NULL").
				Where(`tweets.user_id = ? OR tweets.user_id IN (
					SELECT following_id FROM follows WHERE follower_id = ? AND status = ?)`,
					viewer.ID, viewer.ID, models.FollowStatusAccepted)
		}, "tweets.created_at DESC", "load home timeline")
	case "global":
		h.respondTweetPage(c, func() *gorm.DB {
			return database.DB.WithContext(ctx).Model(&models.Tweet{}).
				Joins("JOIN users ON users.id = tweets.user_id").
				Where("users.is_private = ? AND tweets.reply_to_id IS NULL", false)
		}, "tweets.created_at DESC", "load global timeline")
	default:
		util.RespondWithAPIError(c, apierrors.ValidationError("feed", "feed must be one of: home global"))
	}
}

// GetReplies lists the replies to a tweet, oldest first
// GET /api/tweets/:id/replies
func (h *Handlers) GetReplies(c *gin.Context) {
	parent, ok := h.loadVisibleTweet(c, c.Param("id"))
	if !ok {
		return
	}

	ctx := c.Request.Context()
	viewerID := util.ViewerID(c)
	h.respondTweetPage(c, func() *gorm.DB {
		return database.DB.WithContext(ctx).Model(&models.Tweet{}).
			Scopes(social.VisibleTweets(viewerID)).
			Where("tweets.reply_to_id = ?", parent.ID)
	}, "tweets.created_at ASC", "load replies")
}

// GetUserTweets lists a user's tweets, newest first
// GET /api/users/:username/tweets
func (h *Handlers) GetUserTweets(c *gin.Context) {
	author, ok := h.loadVisibleUser(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	h.respondTweetPage(c, func() *gorm.DB {
		query := database.DB.WithContext(ctx).Model(&models.Tweet{}).Where("tweets.user_id = ?", author.ID)
		if c.Query("replies") != "true" {
			query = query.Where("tweets.reply_to_id IS NULL")
		}
		return query
	}, "tweets.created_at DESC", "load user tweets")
}

// GetBookmarks lists the caller's bookmarked tweets, most recent first.
// Tweets whose author has since gone private are left out.
// GET /api/bookmarks
func (h *Handlers) GetBookmarks(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	h.respondTweetPage(c, func() *gorm.DB {
		return database.DB.WithContext(ctx).Model(&models.Tweet{}).
			Joins("JOIN bookmarks ON bookmarks.tweet_id = tweets.id AND bookmarks.user_id = ?", user.ID).
			Scopes(social.VisibleTweets(user.ID))
	}, "bookmarks.created_at DESC", "load bookmarks")
}

// GetLikers lists the users who liked a tweet
// GET /api/tweets/:id/likes
func (h *Handlers) GetLikers(c *gin.Context) {
	tweet, ok := h.loadVisibleTweet(c, c.Param("id"))
	if !ok {
		return
	}

	limit, offset := util.Pagination(c)
	users := []models.User{}
	err := database.DB.WithContext(c.Request.Context()).
		Joins("JOIN likes ON likes.user_id = users.id").
		Where("likes.tweet_id = ?", tweet.ID).
		Order("likes.created_at DESC").
		Limit(limit).Offset(offset).
		Find(&users).Error
	if err != nil {
		util.RespondInternalError(c, "load likers", err)
		return
	}

	util.RespondSuccess(c, gin.H{
		"users":      users,
		"pagination": util.PageMeta(limit, offset, len(users), int64(tweet.LikeCount)),
	})
}

func (h *Handlers) toggleTweet(c *gin.Context, stateKey, countKey string, toggle func(ctx context.Context, userID, tweetID string) (bool, int, error)) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	tweetID := c.Param("id")

	// Hidden tweets cannot be acted on
	if _, ok := h.loadVisibleTweet(c, tweetID); !ok {
		return
	}

	active, count, err := toggle(c.Request.Context(), user.ID, tweetID)
	if err != nil {
		respondError(c, err, "toggle "+strings.ToLower(strings.TrimPrefix(stateKey, "is")))
		return
	}
	util.RespondSuccess(c, gin.H{stateKey: active, countKey: count})
}

// ToggleLike likes or unlikes a tweet
// POST /api/tweets/:id/like
func (h *Handlers) ToggleLike(c *gin.Context) {
	h.toggleTweet(c, "isLiked", "likeCount", h.social.ToggleLike)
}

// ToggleRetweet retweets or un-retweets a tweet
// POST /api/tweets/:id/retweet
func (h *Handlers) ToggleRetweet(c *gin.Context) {
	h.toggleTweet(c, "isRetweeted", "retweetCount", h.social.ToggleRetweet)
}

// ToggleBookmark saves or unsaves a tweet
// POST /api/tweets/:id/bookmark
func (h *Handlers) ToggleBookmark(c *gin.Context) {
	h.toggleTweet(c, "isBookmarked", "bookmarkCount", h.social.ToggleBookmark)
}
