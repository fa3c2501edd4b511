package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/traveltweets/internal/ai"
	"github.com/zfogg/traveltweets/internal/util"
)

// GenerateCaptions suggests tweet captions for a photo, a draft, or both
// POST /api/captions
func (h *Handlers) GenerateCaptions(c *gin.Context) {
	if _, ok := util.GetUserFromContext(c); !ok {
		return
	}
	var req struct {
		ImageURL string `json:"imageUrl" binding:"omitempty,url,max=2048"`
		Text     string `json:"text" binding:"max=1000"`
		Location string `json:"location" binding:"max=100"`
	}
	if !util.BindJSON(c, &req) {
		return
	}

	captions, err := h.captions.GenerateCaptions(c.Request.Context(), ai.CaptionRequest{
		ImageURL: req.ImageURL,
		Text:     req.Text,
		Location: req.Location,
	})
	if err != nil {
		if errors.Is(err, ai.ErrNoCaptions) {
			util.RespondSuccess(c, gin.H{"captions": []string{}})
			return
		}
		respondError(c, err, "generate captions")
		return
	}
	util.RespondSuccess(c, gin.H{"captions": captions})
}
