package handlers

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/traveltweets/internal/ai"
	"github.com/zfogg/traveltweets/internal/auth"
	apierrors "github.com/zfogg/traveltweets/internal/errors"
	"github.com/zfogg/traveltweets/internal/messaging"
	"github.com/zfogg/traveltweets/internal/notifications"
	"github.com/zfogg/traveltweets/internal/search"
	"github.com/zfogg/traveltweets/internal/social"
	"github.com/zfogg/traveltweets/internal/util"
)

// serviceErrors maps service sentinels to the error a client sees.
// Anything not listed is a 500.
var serviceErrors = []struct {
	err error
	api func(err error) *apierrors.APIError
}{
	{social.ErrTweetNotFound, notFound("Tweet")},
	{social.ErrUserNotFound, notFound("User")},
	{social.ErrRequestNotFound, notFound("Follow request")},
	{social.ErrFollowNotFound, notFound("Follower")},
	{social.ErrSelfFollow, badRequest},
	{social.ErrSelfRetweet, badRequest},
	{social.ErrForbidden, forbidden},
	{social.ErrEmptyTweet, validation("content")},
	{social.ErrTweetTooLong, validation("content")},

	{messaging.ErrConversationNotFound, notFound("Conversation")},
	{messaging.ErrMessageNotFound, notFound("Message")},
	{messaging.ErrRecipientNotFound, notFound("Recipient")},
	{messaging.ErrNotParticipant, forbidden},
	{messaging.ErrNotSender, forbidden},
	{messaging.ErrNotRecipient, forbidden},
	{messaging.ErrSelfMessage, badRequest},
	{messaging.ErrEmptyMessage, validation("content")},

	{notifications.ErrNotFound, notFound("Notification")},

	{search.ErrEmptyQuery, validation("q")},
	{search.ErrUnknownType, validation("type")},

	{ai.ErrNoInput, badRequest},
	{ai.ErrNotConfigured, func(error) *apierrors.APIError { return apierrors.ServiceUnavailable("Caption generation") }},

	{auth.ErrUserExists, conflict},
	{auth.ErrUsernameExists, conflict},
	{auth.ErrInvalidCredentials, unauthorized},
	{auth.ErrNoPassword, unauthorized},
	{auth.ErrInvalidToken, unauthorized},
	{auth.ErrTwoFactorRequired, func(error) *apierrors.APIError { return apierrors.TwoFactorRequired() }},
	{auth.ErrInvalidTwoFactorCode, unauthorized},
	{auth.ErrTwoFactorAlreadyActive, conflict},
	{auth.ErrTwoFactorNotActive, badRequest},
	{auth.ErrInvalidResetToken, badRequest},
	{auth.ErrProviderNotConfigured, notFound("Login provider")},
}

func notFound(resource string) func(error) *apierrors.APIError {
	return func(error) *apierrors.APIError { return apierrors.NotFound(resource) }
}

func validation(field string) func(error) *apierrors.APIError {
	return func(err error) *apierrors.APIError { return apierrors.ValidationError(field, capitalize(err.Error())) }
}

func badRequest(err error) *apierrors.APIError   { return apierrors.BadRequest(capitalize(err.Error())) }
func forbidden(err error) *apierrors.APIError    { return apierrors.Forbidden(capitalize(err.Error())) }
func conflict(err error) *apierrors.APIError     { return apierrors.Conflict(capitalize(err.Error())) }
func unauthorized(err error) *apierrors.APIError { return apierrors.Unauthorized(capitalize(err.Error())) }

// respondError writes the response for an error returned by a service
func respondError(c *gin.Context, err error, action string) {
	for _, e := range serviceErrors {
		if errors.Is(err, e.err) {
			util.RespondWithAPIError(c, e.api(e.err))
			return
		}
	}
	util.RespondInternalError(c, action, err)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
