package auth

import (
	"context"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/zfogg/traveltweets/internal/config"
	"github.com/zfogg/traveltweets/internal/database"
	"github.com/zfogg/traveltweets/internal/email"
	"github.com/zfogg/traveltweets/internal/models"
	"github.com/zfogg/traveltweets/internal/stream"
	"github.com/zfogg/traveltweets/internal/util"
)

// AuthServiceTestSuite runs the auth service against in-memory SQLite
type AuthServiceTestSuite struct {
	suite.Suite
	authService *Service
	mailer      *email.MemorySender
	stream      *stream.MockStreamClient
	ctx         context.Context
}

func (suite *AuthServiceTestSuite) SetupSuite() {
	util.RegisterValidators()
}

func (suite *AuthServiceTestSuite) SetupTest() {
	db, err := database.NewTestDB()
	require.NoError(suite.T(), err)
	database.DB = db

	suite.ctx = context.Background()
	suite.mailer = &email.MemorySender{}
	suite.stream = stream.NewMockStreamClient()
	suite.authService = NewService(
		config.SessionConfig{Secret: "test_jwt_secret_key", TTL: time.Hour},
		config.OAuthConfig{},
		suite.stream,
		suite.mailer,
	)
}

func (suite *AuthServiceTestSuite) TearDownTest() {
	_ = database.Close()
}

func (suite *AuthServiceTestSuite) register(emailAddr, username string) *AuthResponse {
	resp, err := suite.authService.RegisterNativeUser(suite.ctx, RegisterRequest{
		Email:       emailAddr,
		Username:    username,
		Password:    "password123",
		DisplayName: "Test Traveller",
	})
	require.NoError(suite.T(), err)
	return resp
}

func (suite *AuthServiceTestSuite) TestRegisterNativeUser() {
	t := suite.T()

	resp := suite.register("test@example.com", "testuser")
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "testuser", resp.User.Username)
	require.NotNil(t, resp.User.PasswordHash)
	assert.NotEqual(t, "password123", *resp.User.PasswordHash)
	assert.True(t, suite.stream.AssertCalled("CreateUser"))

	// Same email, different case
	_, err := suite.authService.RegisterNativeUser(suite.ctx, RegisterRequest{
		Email: "TEST@example.com", Username: "other", Password: "password123", DisplayName: "Other",
	})
	assert.ErrorIs(t, err, ErrUserExists)

	// Same username, different case
	_, err = suite.authService.RegisterNativeUser(suite.ctx, RegisterRequest{
		Email: "other@example.com", Username: "TestUser", Password: "password123", DisplayName: "Other",
	})
	assert.ErrorIs(t, err, ErrUsernameExists)
}

func (suite *AuthServiceTestSuite) TestLoginNativeUser() {
	t := suite.T()
	suite.register("login@example.com", "loginuser")

	resp, err := suite.authService.LoginNativeUser(suite.ctx, LoginRequest{Login: "login@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.NotNil(t, resp.User.LastActiveAt)

	_, err = suite.authService.LoginNativeUser(suite.ctx, LoginRequest{Login: "LOGINUSER", Password: "password123"})
	assert.NoError(t, err, "username login is case-insensitive")

	_, err = suite.authService.LoginNativeUser(suite.ctx, LoginRequest{Login: "login@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = suite.authService.LoginNativeUser(suite.ctx, LoginRequest{Login: "nobody@example.com", Password: "password123"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func (suite *AuthServiceTestSuite) TestTokenValidation() {
	t := suite.T()
	resp := suite.register("jwt@example.com", "jwtuser")

	user, err := suite.authService.ValidateToken(suite.ctx, resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, user.ID)

	_, err = suite.authService.ValidateToken(suite.ctx, "invalid.jwt.token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := NewService(config.SessionConfig{Secret: "another-secret"}, config.OAuthConfig{}, nil, nil)
	_, err = other.ValidateToken(suite.ctx, resp.Token)
	assert.ErrorIs(t, err, ErrInvalidToken, "token signed with a different secret")

	expired := NewService(config.SessionConfig{Secret: "test_jwt_secret_key", TTL: -time.Minute}, config.OAuthConfig{}, nil, nil)
	expired.sessionTTL = -time.Minute
	stale, err := expired.GenerateTokenForUser(&resp.User)
	require.NoError(t, err)
	_, err = suite.authService.ValidateToken(suite.ctx, stale.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func (suite *AuthServiceTestSuite) TestAccountUnification() {
	t := suite.T()
	native := suite.register("unify@example.com", "unifyuser")

	resp, err := suite.authService.findOrCreateUserFromOAuth(suite.ctx, ProviderGoogle, &OAuthUserInfo{
		ID:            "google-123",
		Email:         "unify@example.com",
		EmailVerified: true,
		Name:          "Unify User",
		AvatarURL:     "https://example.com/a.png",
	})
	require.NoError(t, err)
	assert.Equal(t, native.User.ID, resp.User.ID)

	var link models.OAuthProvider
	require.NoError(t, database.DB.Where("user_id = ? AND provider = ?", native.User.ID, ProviderGoogle).First(&link).Error)
	assert.Equal(t, "google-123", link.ProviderUserID)

	// Second login finds the link directly
	again, err := suite.authService.findOrCreateUserFromOAuth(suite.ctx, ProviderGoogle, &OAuthUserInfo{ID: "google-123"})
	require.NoError(t, err)
	assert.Equal(t, native.User.ID, again.User.ID)

	// Password login still works
	_, err = suite.authService.LoginNativeUser(suite.ctx, LoginRequest{Login: "unify@example.com", Password: "password123"})
	assert.NoError(t, err)
}

func (suite *AuthServiceTestSuite) TestUnverifiedEmailDoesNotUnify() {
	t := suite.T()
	native := suite.register("victim@example.com", "victim")

	resp, err := suite.authService.findOrCreateUserFromOAuth(suite.ctx, ProviderDiscord, &OAuthUserInfo{
		ID:    "discord-1",
		Email: "victim@example.com",
		Name:  "Impostor",
	})
	// A second account cannot reuse the address either
	assert.Error(t, err)
	assert.Nil(t, resp)

	var count int64
	database.DB.Model(&models.OAuthProvider{}).Where("user_id = ?", native.User.ID).Count(&count)
	assert.Zero(t, count)
}

func (suite *AuthServiceTestSuite) TestCreateUserWithOAuth() {
	t := suite.T()
	suite.register("someone@example.com", "janedoe")

	resp, err := suite.authService.findOrCreateUserFromOAuth(suite.ctx, ProviderDiscord, &OAuthUserInfo{
		ID:            "discord-42",
		Email:         "jane@example.com",
		EmailVerified: true,
		Name:          "Jane Doe",
	})
	require.NoError(t, err)
	assert.Equal(t, "janedoe1", resp.User.Username)
	require.NotNil(t, resp.User.DiscordID)
	assert.Equal(t, "discord-42", *resp.User.DiscordID)
	assert.Nil(t, resp.User.PasswordHash)

	_, err = suite.authService.LoginNativeUser(suite.ctx, LoginRequest{Login: "jane@example.com", Password: "whatever"})
	assert.ErrorIs(t, err, ErrNoPassword)
}

func (suite *AuthServiceTestSuite) TestOAuthURLRequiresProvider() {
	_, err := suite.authService.OAuthURL(ProviderGoogle, "state")
	assert.ErrorIs(suite.T(), err, ErrProviderNotConfigured)
}

func (suite *AuthServiceTestSuite) TestPasswordReset() {
	t := suite.T()
	suite.register("reset@example.com", "resetuser")

	require.NoError(t, suite.authService.RequestPasswordReset(suite.ctx, "RESET@example.com"))
	sent, ok := suite.mailer.Last()
	require.True(t, ok)
	assert.Equal(t, "reset@example.com", sent.To)

	require.NoError(t, suite.authService.ResetPassword(suite.ctx, sent.Token, "newpassword456"))

	_, err := suite.authService.LoginNativeUser(suite.ctx, LoginRequest{Login: "resetuser", Password: "newpassword456"})
	assert.NoError(t, err)

	// Tokens are single use
	err = suite.authService.ResetPassword(suite.ctx, sent.Token, "another-password")
	assert.ErrorIs(t, err, ErrInvalidResetToken)

	// Unknown email is silently accepted
	assert.NoError(t, suite.authService.RequestPasswordReset(suite.ctx, "ghost@example.com"))
	assert.Len(t, suite.mailer.Sent, 1)
}

func (suite *AuthServiceTestSuite) TestTwoFactorFlow() {
	t := suite.T()
	resp := suite.register("2fa@example.com", "twofactor")
	user := resp.User

	setup, err := suite.authService.SetupTwoFactor(suite.ctx, &user)
	require.NoError(t, err)
	assert.Contains(t, setup.OTPAuthURL, "otpauth://totp/")

	assert.ErrorIs(t, suite.authService.EnableTwoFactor(suite.ctx, &user, "000000"), ErrInvalidTwoFactorCode)

	code, err := totp.GenerateCode(setup.Secret, time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, suite.authService.EnableTwoFactor(suite.ctx, &user, code))

	_, err = suite.authService.LoginNativeUser(suite.ctx, LoginRequest{Login: "twofactor", Password: "password123"})
	assert.ErrorIs(t, err, ErrTwoFactorRequired)

	_, err = suite.authService.LoginNativeUser(suite.ctx, LoginRequest{Login: "twofactor", Password: "password123", Code: "123456"})
	if code != "123456" {
		assert.ErrorIs(t, err, ErrInvalidTwoFactorCode)
	}

	_, err = suite.authService.LoginNativeUser(suite.ctx, LoginRequest{Login: "twofactor", Password: "password123", Code: code})
	assert.NoError(t, err)

	require.NoError(t, suite.authService.DisableTwoFactor(suite.ctx, &user, code))
	_, err = suite.authService.LoginNativeUser(suite.ctx, LoginRequest{Login: "twofactor", Password: "password123"})
	assert.NoError(t, err)
}

func (suite *AuthServiceTestSuite) TestStreamToken() {
	t := suite.T()
	resp := suite.register("stream@example.com", "streamer")

	token, expiresAt, err := suite.authService.StreamToken(suite.ctx, &resp.User)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.True(t, expiresAt.After(time.Now()))
	assert.True(t, suite.stream.AssertCalled("CreateToken"))
}

func TestAuthServiceSuite(t *testing.T) {
	suite.Run(t, new(AuthServiceTestSuite))
}

func TestGenerateUsernameFromName(t *testing.T) {
	assert.Equal(t, "janedoe", generateUsernameFromName("Jane Doe"))
	assert.Equal(t, "travellerjo", generateUsernameFromName("Jo!"))
	assert.Equal(t, "abcdefghijklmnopqrst", generateUsernameFromName("abcdefghijklmnopqrstuvwxyz"))
	assert.True(t, util.IsValidUsername(generateUsernameFromName("Ünïcödé")))
}
