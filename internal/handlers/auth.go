package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/zfogg/traveltweets/internal/auth"
	apierrors "github.com/zfogg/traveltweets/internal/errors"
	"github.com/zfogg/traveltweets/internal/logger"
	"github.com/zfogg/traveltweets/internal/util"
	"go.uber.org/zap"
)

// RequireAuth rejects requests without a valid session with 401
func (h *Handlers) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := h.sessions.TokenFromRequest(c)
		if token == "" {
			util.RespondUnauthorized(c)
			return
		}

		user, err := h.auth.ValidateToken(c.Request.Context(), token)
		if err != nil {
			if !errors.Is(err, auth.ErrInvalidToken) {
				util.RespondInternalError(c, "validate session", err)
				return
			}
			util.RespondUnauthorized(c)
			return
		}

		util.SetUser(c, user)
		c.Next()
	}
}

// OptionalAuth loads the viewer when the request carries a valid session.
// Invalid or expired sessions are treated as anonymous.
func (h *Handlers) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := h.sessions.TokenFromRequest(c); token != "" {
			if user, err := h.auth.ValidateToken(c.Request.Context(), token); err == nil {
				util.SetUser(c, user)
			}
		}
		c.Next()
	}
}

func authBody(resp *auth.AuthResponse) gin.H {
	return gin.H{
		"user":      resp.User,
		"token":     resp.Token,
		"expiresAt": resp.ExpiresAt,
	}
}

// Register creates a password account and signs it in
// POST /api/auth/register
func (h *Handlers) Register(c *gin.Context) {
	var req auth.RegisterRequest
	if !util.BindJSON(c, &req) {
		return
	}

	resp, err := h.auth.RegisterNativeUser(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "register")
		return
	}

	h.search.IndexUser(c.Request.Context(), &resp.User)
	h.sessions.SetSessionCookie(c, resp)
	logger.Log.Info("User registered", logger.WithUserID(resp.User.ID))
	util.RespondCreated(c, authBody(resp))
}

// Login signs in with email or username and password. Accounts with
// two-factor enabled answer TWO_FACTOR_REQUIRED until a code is sent.
// POST /api/auth/login
func (h *Handlers) Login(c *gin.Context) {
	var req auth.LoginRequest
	if !util.BindJSON(c, &req) {
		return
	}

	resp, err := h.auth.LoginNativeUser(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "login")
		return
	}

	h.sessions.SetSessionCookie(c, resp)
	util.RespondSuccess(c, authBody(resp))
}

// Logout clears the session cookie
// POST /api/auth/logout
func (h *Handlers) Logout(c *gin.Context) {
	h.sessions.ClearSessionCookie(c)
	util.RespondSuccess(c, nil)
}

// Me returns the signed-in user with their private account settings
// GET /api/auth/me
func (h *Handlers) Me(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	util.RespondSuccess(c, gin.H{
		"user":             user,
		"email":            user.Email,
		"twoFactorEnabled": user.TwoFactorEnabled,
		"hasPassword":      user.PasswordHash != nil,
	})
}

// StreamToken issues a GetStream client token for realtime chat
// GET /api/auth/stream-token
func (h *Handlers) StreamToken(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	token, expiresAt, err := h.auth.StreamToken(c.Request.Context(), user)
	if errors.Is(err, auth.ErrProviderNotConfigured) {
		util.RespondWithAPIError(c, apierrors.ServiceUnavailable("Realtime chat"))
		return
	}
	if err != nil {
		util.RespondInternalError(c, "create stream token", err)
		return
	}

	util.RespondSuccess(c, gin.H{
		"token":     token,
		"userId":    user.ID,
		"expiresAt": expiresAt,
	})
}

// OAuthStart redirects to the provider's consent page
// GET /api/auth/oauth/:provider
func (h *Handlers) OAuthStart(c *gin.Context) {
	state := uuid.NewString()
	url, err := h.auth.OAuthURL(c.Param("provider"), state)
	if err != nil {
		respondError(c, err, "start oauth")
		return
	}

	h.sessions.SetOAuthState(c, state)
	c.Redirect(http.StatusFound, url)
}

// OAuthCallback finishes social login and sends the browser back to the
// web app, signed in or with an error flag.
// GET /api/auth/oauth/:provider/callback
func (h *Handlers) OAuthCallback(c *gin.Context) {
	provider := c.Param("provider")
	if !h.sessions.ConsumeOAuthState(c, c.Query("state")) {
		util.RespondBadRequest(c, "Invalid OAuth state")
		return
	}
	if errParam := c.Query("error"); errParam != "" {
		logger.Log.Info("OAuth login cancelled", zap.String("provider", provider), zap.String("error", errParam))
		c.Redirect(http.StatusFound, h.webAppURL+"/login?error=cancelled")
		return
	}
	code := c.Query("code")
	if code == "" {
		util.RespondBadRequest(c, "Missing authorization code")
		return
	}

	resp, err := h.auth.HandleOAuthCallback(c.Request.Context(), provider, code)
	if err != nil {
		logger.Log.Warn("OAuth login failed", zap.String("provider", provider), zap.Error(err))
		c.Redirect(http.StatusFound, h.webAppURL+"/login?error=oauth_failed")
		return
	}

	h.search.IndexUser(c.Request.Context(), &resp.User)
	h.sessions.SetSessionCookie(c, resp)
	c.Redirect(http.StatusFound, h.webAppURL+"/")
}

// RequestPasswordReset emails a reset link. It always succeeds so the
// endpoint cannot be used to probe for accounts.
// POST /api/auth/password/forgot
func (h *Handlers) RequestPasswordReset(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if !util.BindJSON(c, &req) {
		return
	}

	if err := h.auth.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		logger.ErrorWithFields("Password reset request failed", err)
	}
	util.RespondSuccess(c, gin.H{"message": "If that address has an account, a reset link is on its way"})
}

// ResetPassword sets a new password with a reset token
// POST /api/auth/password/reset
func (h *Handlers) ResetPassword(c *gin.Context) {
	var req struct {
		Token    string `json:"token" binding:"required"`
		Password string `json:"password" binding:"required,min=8,max=72"`
	}
	if !util.BindJSON(c, &req) {
		return
	}

	if err := h.auth.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		respondError(c, err, "reset password")
		return
	}
	util.RespondSuccess(c, nil)
}

type twoFactorCodeRequest struct {
	Code string `json:"code" binding:"required,len=6,numeric"`
}

// SetupTwoFactor generates a TOTP secret to scan into an authenticator app
// POST /api/auth/2fa/setup
func (h *Handlers) SetupTwoFactor(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	setup, err := h.auth.SetupTwoFactor(c.Request.Context(), user)
	if err != nil {
		respondError(c, err, "setup two-factor")
		return
	}
	util.RespondSuccess(c, gin.H{"secret": setup.Secret, "otpauthUrl": setup.OTPAuthURL})
}

// EnableTwoFactor activates two-factor after verifying a first code
// POST /api/auth/2fa/enable
func (h *Handlers) EnableTwoFactor(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	var req twoFactorCodeRequest
	if !util.BindJSON(c, &req) {
		return
	}

	if err := h.auth.EnableTwoFactor(c.Request.Context(), user, req.Code); err != nil {
		respondError(c, err, "enable two-factor")
		return
	}
	util.RespondSuccess(c, gin.H{"twoFactorEnabled": true})
}

// DisableTwoFactor turns two-factor off with a current code
// POST /api/auth/2fa/disable
func (h *Handlers) DisableTwoFactor(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	var req twoFactorCodeRequest
	if !util.BindJSON(c, &req) {
		return
	}

	if err := h.auth.DisableTwoFactor(c.Request.Context(), user, req.Code); err != nil {
		respondError(c, err, "disable two-factor")
		return
	}
	util.RespondSuccess(c, gin.H{"twoFactorEnabled": false})
}
