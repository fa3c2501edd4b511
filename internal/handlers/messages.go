package handlers

import (
	"github.com/gin-gonic/gin"
	apierrors "github.com/zfogg/traveltweets/internal/errors"
	"github.com/zfogg/traveltweets/internal/messaging"
	"github.com/zfogg/traveltweets/internal/util"
)

// GetConversations lists the inbox or pending message requests
// GET /api/messages?filter=inbox|requests
func (h *Handlers) GetConversations(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	filter := c.DefaultQuery("filter", messaging.FilterInbox)
	if filter != messaging.FilterInbox && filter != messaging.FilterRequests {
		util.RespondWithAPIError(c, apierrors.ValidationError("filter", "filter must be inbox or requests"))
		return
	}

	limit, offset := util.Pagination(c)
	convs, err := h.messaging.ListConversations(c.Request.Context(), user.ID, filter, limit, offset)
	if err != nil {
		respondError(c, err, "list conversations")
		return
	}
	util.RespondSuccess(c, gin.H{"conversations": convs, "filter": filter})
}

type sendMessageRequest struct {
	RecipientID string `json:"recipientId" binding:"required"`
	Content     string `json:"content" binding:"max=2000"`
	ImageURL    string `json:"imageUrl" binding:"omitempty,url,max=2048"`
}

// SendMessage sends a direct message, opening the conversation on first
// contact. Replying to a message request accepts it.
// POST /api/messages
func (h *Handlers) SendMessage(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	var req sendMessageRequest
	if !util.BindJSON(c, &req) {
		return
	}

	msg, conv, err := h.messaging.SendMessage(c.Request.Context(), user, messaging.SendInput{
		RecipientID: req.RecipientID,
		Content:     req.Content,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		respondError(c, err, "send message")
		return
	}
	util.RespondCreated(c, gin.H{"message": msg, "conversation": conv})
}

// GetConversation returns a conversation with a page of its messages,
// oldest first
// GET /api/messages/:id
func (h *Handlers) GetConversation(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	limit, offset := util.Pagination(c)

	conv, err := h.messaging.GetConversation(ctx, user.ID, c.Param("id"))
	if err != nil {
		respondError(c, err, "load conversation")
		return
	}
	messages, err := h.messaging.GetMessages(ctx, user.ID, conv.ID, limit, offset)
	if err != nil {
		respondError(c, err, "load messages")
		return
	}

	util.RespondSuccess(c, gin.H{
		"conversation": conv,
		"messages":     messages,
		"hasMore":      len(messages) == limit,
	})
}

// MarkConversationRead marks the other participant's messages read
// POST /api/messages/:id/read
func (h *Handlers) MarkConversationRead(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	n, err := h.messaging.MarkRead(c.Request.Context(), user.ID, c.Param("id"))
	if err != nil {
		respondError(c, err, "mark conversation read")
		return
	}
	util.RespondSuccess(c, gin.H{"updated": n})
}

// SendTyping relays a typing indicator to the other participant. Clients
// with a socket open can send the same thing as a "typing" frame.
// POST /api/messages/:id/typing
func (h *Handlers) SendTyping(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	var req struct {
		IsTyping *bool `json:"isTyping" binding:"required"`
	}
	if !util.BindJSON(c, &req) {
		return
	}

	if err := h.messaging.Typing(c.Request.Context(), user, c.Param("id"), *req.IsTyping); err != nil {
		respondError(c, err, "send typing")
		return
	}
	util.RespondSuccess(c, nil)
}

// AcceptConversation accepts a message request
// POST /api/messages/:id/accept
func (h *Handlers) AcceptConversation(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	conv, err := h.messaging.Accept(c.Request.Context(), user.ID, c.Param("id"))
	if err != nil {
		respondError(c, err, "accept conversation")
		return
	}
	util.RespondSuccess(c, gin.H{"conversation": conv})
}

// DeclineConversation declines a message request and deletes it
// DELETE /api/messages/:id
func (h *Handlers) DeclineConversation(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	if err := h.messaging.Decline(c.Request.Context(), user.ID, c.Param("id")); err != nil {
		respondError(c, err, "decline conversation")
		return
	}
	util.RespondSuccess(c, nil)
}

// DeleteMessage removes one of the caller's own messages
// DELETE /api/messages/:id/messages/:messageId
func (h *Handlers) DeleteMessage(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	if err := h.messaging.DeleteMessage(c.Request.Context(), user.ID, c.Param("id"), c.Param("messageId")); err != nil {
		respondError(c, err, "delete message")
		return
	}
	util.RespondSuccess(c, nil)
}
