package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/zfogg/traveltweets/internal/notifications"
	"github.com/zfogg/traveltweets/internal/util"
)

// GetNotifications returns a page of the user's notifications with the
// unread count for the badge
// GET /api/notifications
func (h *Handlers) GetNotifications(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	limit, offset := util.Pagination(c)

	items, total, err := h.notifications.List(ctx, user.ID, limit, offset)
	if err != nil {
		respondError(c, err, "list notifications")
		return
	}
	unread, err := h.notifications.UnreadCount(ctx, user.ID)
	if err != nil {
		respondError(c, err, "count unread notifications")
		return
	}

	util.RespondSuccess(c, gin.H{
		"notifications": items,
		"unreadCount":   unread,
		"pagination":    util.PageMeta(limit, offset, len(items), total),
	})
}

// GetUnreadCount returns just the unread count
// GET /api/notifications/unread-count
func (h *Handlers) GetUnreadCount(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	unread, err := h.notifications.UnreadCount(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, err, "count unread notifications")
		return
	}
	util.RespondSuccess(c, gin.H{"unreadCount": unread})
}

// MarkNotificationRead marks one notification read
// PATCH /api/notifications/:id
func (h *Handlers) MarkNotificationRead(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	if err := h.notifications.MarkRead(c.Request.Context(), user.ID, c.Param("id")); err != nil {
		respondError(c, err, "mark notification read")
		return
	}
	util.RespondSuccess(c, nil)
}

// MarkAllNotificationsRead marks every notification read
// POST /api/notifications/read-all
func (h *Handlers) MarkAllNotificationsRead(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	n, err := h.notifications.MarkAllRead(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, err, "mark notifications read")
		return
	}
	util.RespondSuccess(c, gin.H{"updated": n})
}

// DeleteNotification removes one notification
// DELETE /api/notifications/:id
func (h *Handlers) DeleteNotification(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	if err := h.notifications.Delete(c.Request.Context(), user.ID, c.Param("id")); err != nil {
		respondError(c, err, "delete notification")
		return
	}
	util.RespondSuccess(c, nil)
}

// GetNotificationPreferences returns which notification types are on
// GET /api/notifications/preferences
func (h *Handlers) GetNotificationPreferences(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	prefs, err := h.notifications.Preferences(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, err, "load notification preferences")
		return
	}
	util.RespondSuccess(c, gin.H{"preferences": prefs})
}

// UpdateNotificationPreferences turns notification types on or off.
// Omitted fields keep their value.
// PUT /api/notifications/preferences
func (h *Handlers) UpdateNotificationPreferences(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	var req notifications.PreferencesUpdate
	if !util.BindJSON(c, &req) {
		return
	}

	prefs, err := h.notifications.UpdatePreferences(c.Request.Context(), user.ID, req)
	if err != nil {
		respondError(c, err, "update notification preferences")
		return
	}
	util.RespondSuccess(c, gin.H{"preferences": prefs})
}
