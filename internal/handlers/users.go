package handlers

import (
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/traveltweets/internal/database"
	apierrors "github.com/zfogg/traveltweets/internal/errors"
	"github.com/zfogg/traveltweets/internal/logger"
	"github.com/zfogg/traveltweets/internal/models"
	"github.com/zfogg/traveltweets/internal/util"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// loadUser finds the user named by the :username parameter, answering 404
// when there is none.
func loadUser(c *gin.Context) (*models.User, bool) {
	var user models.User
	err := database.DB.WithContext(c.Request.Context()).
		Where("LOWER(username) = LOWER(?)", c.Param("username")).
		First(&user).Error
	if err != nil {
		util.HandleDBError(c, err, "User")
		return nil, false
	}
	return &user, true
}

// loadVisibleUser is loadUser that also answers 403 when the account is
// private and the viewer is not an accepted follower.
func (h *Handlers) loadVisibleUser(c *gin.Context) (*models.User, bool) {
	user, ok := loadUser(c)
	if !ok {
		return nil, false
	}
	visible, err := h.social.CanView(c.Request.Context(), util.ViewerID(c), user)
	if err != nil {
		util.RespondInternalError(c, "check profile visibility", err)
		return nil, false
	}
	if !visible {
		util.RespondForbidden(c, "This account is private")
		return nil, false
	}
	return user, true
}

// GetProfile returns a profile and how the viewer relates to it. Private
// profiles are visible; their tweets and follow lists are not.
// GET /api/users/:username
func (h *Handlers) GetProfile(c *gin.Context) {
	user, ok := loadUser(c)
	if !ok {
		return
	}

	viewerID := util.ViewerID(c)
	relation, err := h.social.Relation(c.Request.Context(), viewerID, user.ID)
	if err != nil {
		util.RespondInternalError(c, "load relation", err)
		return
	}
	canView, err := h.social.CanView(c.Request.Context(), viewerID, user)
	if err != nil {
		util.RespondInternalError(c, "check profile visibility", err)
		return
	}

	util.RespondSuccess(c, gin.H{
		"user":         user,
		"isFollowing":  relation.IsFollowing,
		"isPending":    relation.IsPending,
		"followsYou":   relation.FollowsYou,
		"isOwnProfile": viewerID == user.ID,
		"canView":      canView,
	})
}

type updateProfileRequest struct {
	DisplayName *string `json:"displayName" binding:"omitempty,min=1,max=50"`
	Bio         *string `json:"bio" binding:"omitempty,max=160"`
	Location    *string `json:"location" binding:"omitempty,max=100"`
	Website     *string `json:"website" binding:"omitempty,max=200"`
	AvatarURL   *string `json:"avatarUrl" binding:"omitempty,max=2048"`
	BannerURL   *string `json:"bannerUrl" binding:"omitempty,max=2048"`
	IsPrivate   *bool   `json:"isPrivate"`
}

// isWebURL accepts an empty string (to clear a field) or an http(s) URL
func isWebURL(s string) bool {
	if s == "" {
		return true
	}
	u, err := url.ParseRequestURI(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// UpdateProfile edits the caller's profile. Going from private to public
// accepts every pending follow request.
// PATCH /api/users/me
func (h *Handlers) UpdateProfile(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	var req updateProfileRequest
	if !util.BindJSON(c, &req) {
		return
	}

	updates := map[string]interface{}{}
	setText := func(column string, value *string) {
		if value != nil {
			updates[column] = strings.TrimSpace(*value)
		}
	}
	setText("display_name", req.DisplayName)
	setText("bio", req.Bio)
	setText("location", req.Location)
	setText("website", req.Website)
	setText("avatar_url", req.AvatarURL)
	setText("banner_url", req.BannerURL)

	if name, ok := updates["display_name"]; ok && name == "" {
		util.RespondWithAPIError(c, apierrors.ValidationError("displayName", "displayName is required"))
		return
	}
	for column, field := range map[string]string{"website": "website", "avatar_url": "avatarUrl", "banner_url": "bannerUrl"} {
		if value, ok := updates[column]; ok && !isWebURL(value.(string)) {
			util.RespondWithAPIError(c, apierrors.ValidationError(field, field+" must be a valid URL"))
			return
		}
	}

	goingPublic := false
	if req.IsPrivate != nil && *req.IsPrivate != user.IsPrivate {
		updates["is_private"] = *req.IsPrivate
		goingPublic = !*req.IsPrivate
	}

	ctx := c.Request.Context()
	if len(updates) > 0 {
		if err := database.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
			util.RespondInternalError(c, "update profile", err)
			return
		}
	}

	if goingPublic {
		accepted, err := h.social.AcceptAllPending(ctx, user.ID)
		if err != nil {
			util.RespondInternalError(c, "accept pending follow requests", err)
			return
		}
		logger.Log.Info("Account made public", logger.WithUserID(user.ID), zap.Int("accepted_requests", accepted))
	}

	var updated models.User
	if err := database.DB.WithContext(ctx).First(&updated, "id = ?", user.ID).Error; err != nil {
		util.RespondInternalError(c, "reload profile", err)
		return
	}
	h.search.IndexUser(ctx, &updated)

	util.RespondSuccess(c, gin.H{"user": updated})
}

// listFollowEdges answers with the users on one side of a user's accepted
// follows. column is the side that must equal the user.
func (h *Handlers) listFollowEdges(c *gin.Context, column, joinColumn, action string) {
	user, ok := h.loadVisibleUser(c)
	if !ok {
		return
	}

	limit, offset := util.Pagination(c)
	query := func() *gorm.DB {
		return database.DB.WithContext(c.Request.Context()).Model(&models.User{}).
			Joins("JOIN follows ON follows."+joinColumn+" = users.id").
			Where("follows."+column+" = ? AND follows.status = ?", user.ID, models.FollowStatusAccepted)
	}

	var total int64
	if err := query().Count(&total).Error; err != nil {
		util.RespondInternalError(c, action, err)
		return
	}
	users := []models.User{}
	if err := query().Order("follows.created_at DESC").Limit(limit).Offset(offset).Find(&users).Error; err != nil {
		util.RespondInternalError(c, action, err)
		return
	}

	util.RespondSuccess(c, gin.H{
		"users":      users,
		"pagination": util.PageMeta(limit, offset, len(users), total),
	})
}

// GetFollowers lists the accepted followers of a user
// GET /api/users/:username/followers
func (h *Handlers) GetFollowers(c *gin.Context) {
	h.listFollowEdges(c, "following_id", "follower_id", "load followers")
}

// GetFollowing lists who a user follows
// GET /api/users/:username/following
func (h *Handlers) GetFollowing(c *gin.Context) {
	h.listFollowEdges(c, "follower_id", "following_id", "load following")
}
