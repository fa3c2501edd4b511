package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	apierrors "github.com/zfogg/traveltweets/internal/errors"
	"github.com/zfogg/traveltweets/internal/logger"
	"github.com/zfogg/traveltweets/internal/storage"
	"github.com/zfogg/traveltweets/internal/util"
	"go.uber.org/zap"
)

// multipart overhead allowed on top of the image itself
const uploadFormSlack = 1 << 20

var uploadKinds = map[string]string{
	"image":  storage.KindImage,
	"avatar": storage.KindAvatar,
	"banner": storage.KindBanner,
}

// UploadImage stores an image for a tweet, avatar or banner and returns
// its public URL and storage key.
// POST /api/uploads (multipart: file, kind)
func (h *Handlers) UploadImage(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	if h.images == nil {
		util.RespondWithAPIError(c, apierrors.ServiceUnavailable("Image uploads"))
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, util.MaxImageBytes+uploadFormSlack)
	file, err := c.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			util.RespondWithAPIError(c, apierrors.PayloadTooLarge("Images must be 5 MiB or smaller"))
			return
		}
		util.RespondWithAPIError(c, apierrors.ValidationError("file", "file is required"))
		return
	}

	kind, ok := uploadKinds[c.DefaultPostForm("kind", "image")]
	if !ok {
		util.RespondWithAPIError(c, apierrors.ValidationError("kind", "kind must be image, avatar or banner"))
		return
	}

	data, contentType, err := util.ReadImageUpload(file)
	switch {
	case errors.Is(err, util.ErrImageTooLarge):
		util.RespondWithAPIError(c, apierrors.PayloadTooLarge("Images must be 5 MiB or smaller"))
		return
	case errors.Is(err, util.ErrUnsupportedImage):
		util.RespondWithAPIError(c, apierrors.ValidationError("file", "file must be a JPEG, PNG, GIF or WebP image"))
		return
	case err != nil:
		util.RespondInternalError(c, "read upload", err)
		return
	}

	result, err := h.images.UploadImage(c.Request.Context(), data, user.ID, kind, file.Filename, contentType)
	if err != nil {
		util.RespondInternalError(c, "upload image", err)
		return
	}

	logger.Log.Info("Image uploaded",
		logger.WithUserID(user.ID),
		zap.String("key", result.Key),
		zap.Int64("size", result.Size),
	)
	util.RespondCreated(c, gin.H{"url": result.URL, "key": result.Key})
}

// DeleteUpload removes an image the caller uploaded but no longer needs
// DELETE /api/uploads
func (h *Handlers) DeleteUpload(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	if h.images == nil {
		util.RespondWithAPIError(c, apierrors.ServiceUnavailable("Image uploads"))
		return
	}
	var req struct {
		Key string `json:"key" binding:"required"`
	}
	if !util.BindJSON(c, &req) {
		return
	}

	if !storage.KeyOwnedBy(req.Key, user.ID) {
		util.RespondForbidden(c, "You can only delete your own uploads")
		return
	}
	if err := h.images.DeleteFile(c.Request.Context(), req.Key); err != nil {
		util.RespondInternalError(c, "delete upload", err)
		return
	}
	util.RespondSuccess(c, nil)
}
