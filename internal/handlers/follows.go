package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/zfogg/traveltweets/internal/database"
	"github.com/zfogg/traveltweets/internal/models"
	"github.com/zfogg/traveltweets/internal/util"
)

// ToggleFollow follows or unfollows a user. Following a private account
// leaves a pending request; toggling again withdraws it.
// POST /api/follows
func (h *Handlers) ToggleFollow(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	var req struct {
		UserID string `json:"userId" binding:"required"`
	}
	if !util.BindJSON(c, &req) {
		return
	}

	state, err := h.social.ToggleFollow(c.Request.Context(), user.ID, req.UserID)
	if err != nil {
		respondError(c, err, "toggle follow")
		return
	}

	util.RespondSuccess(c, gin.H{
		"isFollowing":   state.IsFollowing,
		"isPending":     state.IsPending,
		"followerCount": state.FollowerCount,
	})
}

// listRequests answers with the caller's pending follows, either the ones
// waiting on them (incoming) or the ones they sent.
func listRequests(c *gin.Context, incoming bool) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	limit, offset := util.Pagination(c)

	column, preload := "follower_id", "Following"
	if incoming {
		column, preload = "following_id", "Follower"
	}

	db := database.DB.WithContext(c.Request.Context())
	var total int64
	if err := db.Model(&models.Follow{}).
		Where(column+" = ? AND status = ?", user.ID, models.FollowStatusPending).
		Count(&total).Error; err != nil {
		util.RespondInternalError(c, "count follow requests", err)
		return
	}

	requests := []models.Follow{}
	if err := db.Where(column+" = ? AND status = ?", user.ID, models.FollowStatusPending).
		Preload(preload).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&requests).Error; err != nil {
		util.RespondInternalError(c, "load follow requests", err)
		return
	}

	util.RespondSuccess(c, gin.H{
		"requests":   requests,
		"pagination": util.PageMeta(limit, offset, len(requests), total),
	})
}

// GetFollowRequests lists pending requests to follow the caller
// GET /api/follows/requests
func (h *Handlers) GetFollowRequests(c *gin.Context) {
	listRequests(c, true)
}

// GetSentFollowRequests lists the caller's own pending requests
// GET /api/follows/requests/sent
func (h *Handlers) GetSentFollowRequests(c *gin.Context) {
	listRequests(c, false)
}

// AcceptFollowRequest approves a pending request
// POST /api/follows/requests/:id/accept
func (h *Handlers) AcceptFollowRequest(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	follow, err := h.social.AcceptFollowRequest(c.Request.Context(), user.ID, c.Param("id"))
	if err != nil {
		respondError(c, err, "accept follow request")
		return
	}
	util.RespondSuccess(c, gin.H{"follow": follow})
}

// RejectFollowRequest deletes a pending request without notifying
// the requester
// POST /api/follows/requests/:id/reject
func (h *Handlers) RejectFollowRequest(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	if err := h.social.RejectFollowRequest(c.Request.Context(), user.ID, c.Param("id")); err != nil {
		respondError(c, err, "reject follow request")
		return
	}
	util.RespondSuccess(c, nil)
}

// RemoveFollower drops someone from the caller's followers
// DELETE /api/follows/followers/:userId
func (h *Handlers) RemoveFollower(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	if err := h.social.RemoveFollower(c.Request.Context(), user.ID, c.Param("userId")); err != nil {
		respondError(c, err, "remove follower")
		return
	}
	util.RespondSuccess(c, nil)
}
