package auth

import (
	"context"
	"time"

	"github.com/zfogg/traveltweets/internal/models"
)

// AuthServiceInterface defines the contract for authentication operations
type AuthServiceInterface interface {
	RegisterNativeUser(ctx context.Context, req RegisterRequest) (*AuthResponse, error)
	LoginNativeUser(ctx context.Context, req LoginRequest) (*AuthResponse, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)

	GenerateTokenForUser(user *models.User) (*AuthResponse, error)
	ValidateToken(ctx context.Context, tokenString string) (*models.User, error)
	StreamToken(ctx context.Context, user *models.User) (string, time.Time, error)

	OAuthURL(provider, state string) (string, error)
	HandleOAuthCallback(ctx context.Context, provider, code string) (*AuthResponse, error)

	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error

	SetupTwoFactor(ctx context.Context, user *models.User) (*TwoFactorSetup, error)
	EnableTwoFactor(ctx context.Context, user *models.User, code string) error
	DisableTwoFactor(ctx context.Context, user *models.User, code string) error
}

// Ensure Service implements AuthServiceInterface
var _ AuthServiceInterface = (*Service)(nil)
