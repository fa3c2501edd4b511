package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/zfogg/traveltweets/internal/config"
	"github.com/zfogg/traveltweets/internal/database"
	"github.com/zfogg/traveltweets/internal/email"
	"github.com/zfogg/traveltweets/internal/logger"
	"github.com/zfogg/traveltweets/internal/models"
	"github.com/zfogg/traveltweets/internal/stream"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound           = errors.New("user not found")
	ErrUserExists             = errors.New("an account with this email already exists")
	ErrUsernameExists         = errors.New("username already taken")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrNoPassword             = errors.New("account has no password, sign in with Google or Discord")
	ErrInvalidToken           = errors.New("invalid or expired session")
	ErrInvalidResetToken      = errors.New("invalid or expired reset token")
	ErrProviderNotConfigured  = errors.New("login provider not configured")
	ErrTwoFactorRequired      = errors.New("two-factor code required")
	ErrInvalidTwoFactorCode   = errors.New("invalid two-factor code")
	ErrTwoFactorAlreadyActive = errors.New("two-factor authentication already enabled")
	ErrTwoFactorNotActive     = errors.New("two-factor authentication not enabled")
)

const passwordResetTTL = time.Hour

// Service handles registration, login, sessions and account recovery
type Service struct {
	jwtSecret     []byte
	sessionTTL    time.Duration
	streamClient  stream.StreamClientInterface
	mailer        email.Sender
	googleConfig  *oauth2.Config
	discordConfig *oauth2.Config
}

// NewService creates a new authentication service. streamClient and
// mailer may be nil; their side effects are then skipped.
func NewService(session config.SessionConfig, oauth config.OAuthConfig, streamClient stream.StreamClientInterface, mailer email.Sender) *Service {
	ttl := session.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{
		jwtSecret:     []byte(session.Secret),
		sessionTTL:    ttl,
		streamClient:  streamClient,
		mailer:        mailer,
		googleConfig:  oauth.GoogleConfig,
		discordConfig: oauth.DiscordConfig,
	}
}

// AuthResponse is returned by every successful sign-in
type AuthResponse struct {
	Token     string      `json:"token"`
	User      models.User `json:"user"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

// RegisterRequest represents native registration request
type RegisterRequest struct {
	Email       string `json:"email" binding:"required,email,max=254"`
	Username    string `json:"username" binding:"required,username"`
	Password    string `json:"password" binding:"required,min=8,max=72"`
	DisplayName string `json:"displayName" binding:"required,min=1,max=50"`
}

// LoginRequest accepts an email or a username in Login
type LoginRequest struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
	Code     string `json:"code" binding:"omitempty,len=6,numeric"`
}

// SessionClaims are the JWT claims of a session token
type SessionClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// RegisterNativeUser creates a new user with email/password
func (s *Service) RegisterNativeUser(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	db := database.DB.WithContext(ctx)
	req.Email = strings.TrimSpace(req.Email)
	req.Username = strings.TrimSpace(req.Username)

	var existing models.User
	err := db.Where("LOWER(email) = LOWER(?)", req.Email).First(&existing).Error
	if err == nil {
		return nil, ErrUserExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("database error: %w", err)
	}

	err = db.Where("LOWER(username) = LOWER(?)", req.Username).First(&existing).Error
	if err == nil {
		return nil, ErrUsernameExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("database error: %w", err)
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Email:        req.Email,
		Username:     req.Username,
		DisplayName:  strings.TrimSpace(req.DisplayName),
		PasswordHash: &hash,
	}
	if err := db.Create(&user).Error; err != nil {
		// Lost a race with a concurrent registration
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.createStreamUser(ctx, &user)
	return s.GenerateTokenForUser(&user)
}

// LoginNativeUser authenticates with email or username plus password.
// Accounts with two-factor enabled also need a valid TOTP code.
func (s *Service) LoginNativeUser(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	db := database.DB.WithContext(ctx)
	login := strings.TrimSpace(req.Login)

	var user models.User
	err := db.Where("LOWER(email) = LOWER(?) OR LOWER(username) = LOWER(?)", login, login).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Same answer as a bad password so logins cannot enumerate accounts
		return nil, ErrInvalidCredentials
	} else if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	if user.PasswordHash == nil {
		return nil, ErrNoPassword
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if user.TwoFactorEnabled {
		if req.Code == "" {
			return nil, ErrTwoFactorRequired
		}
		if !validateTOTP(&user, req.Code) {
			return nil, ErrInvalidTwoFactorCode
		}
	}

	now := time.Now().UTC()
	if err := db.Model(&user).Update("last_active_at", now).Error; err != nil {
		logger.WarnWithFields("Failed to update last_active_at", err, logger.WithUserID(user.ID))
	}
	user.LastActiveAt = &now

	return s.GenerateTokenForUser(&user)
}

// FindUserByEmail finds user by email (case-insensitive)
func (s *Service) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := database.DB.WithContext(ctx).Where("LOWER(email) = LOWER(?)", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	} else if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &user, nil
}

// GenerateTokenForUser signs a session token for user
func (s *Service) GenerateTokenForUser(user *models.User) (*AuthResponse, error) {
	now := time.Now()
	expiresAt := now.Add(s.sessionTTL)

	claims := SessionClaims{
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &AuthResponse{
		Token:     tokenString,
		User:      *user,
		ExpiresAt: expiresAt,
	}, nil
}

// ValidateToken validates a session token and loads its user
func (s *Service) ValidateToken(ctx context.Context, tokenString string) (*models.User, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	var user models.User
	err = database.DB.WithContext(ctx).First(&user, "id = ?", claims.Subject).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidToken
	} else if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &user, nil
}

// StreamToken upserts the user on GetStream and issues a client token
func (s *Service) StreamToken(ctx context.Context, user *models.User) (string, time.Time, error) {
	if s.streamClient == nil {
		return "", time.Time{}, ErrProviderNotConfigured
	}
	s.createStreamUser(ctx, user)
	expiresAt := time.Now().Add(s.sessionTTL)
	token, err := s.streamClient.CreateToken(user.ID, expiresAt)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to create stream token: %w", err)
	}
	return token, expiresAt, nil
}

// RequestPasswordReset emails a reset link when the address belongs to an
// account with a password. Unknown addresses are not an error.
func (s *Service) RequestPasswordReset(ctx context.Context, emailAddr string) error {
	user, err := s.FindUserByEmail(ctx, strings.TrimSpace(emailAddr))
	if errors.Is(err, ErrUserNotFound) {
		return nil
	} else if err != nil {
		return err
	}
	if user.PasswordHash == nil {
		return nil
	}

	reset := models.PasswordReset{
		UserID:    user.ID,
		Token:     strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", ""),
		ExpiresAt: time.Now().Add(passwordResetTTL),
	}
	if err := database.DB.WithContext(ctx).Create(&reset).Error; err != nil {
		return fmt.Errorf("failed to create reset token: %w", err)
	}

	if s.mailer == nil {
		logger.Log.Warn("Password reset requested but email is not configured", logger.WithUserID(user.ID))
		return nil
	}
	if err := s.mailer.SendPasswordResetEmail(ctx, user.Email, reset.Token); err != nil {
		logger.ErrorWithFields("Failed to send password reset email", err, logger.WithUserID(user.ID))
	}
	return nil
}

// ResetPassword consumes a reset token and sets a new password
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	hash, err := hashPassword(newPassword)
	if err != nil {
		return err
	}

	return database.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var reset models.PasswordReset
		err := tx.Where("token = ? AND used = ? AND expires_at > ?", token, false, time.Now()).First(&reset).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidResetToken
		} else if err != nil {
			return fmt.Errorf("database error: %w", err)
		}

		// Conditional update so two concurrent resets cannot both consume the token
		result := tx.Model(&models.PasswordReset{}).
			Where("id = ? AND used = ?", reset.ID, false).
			Update("used", true)
		if result.Error != nil {
			return fmt.Errorf("failed to consume reset token: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrInvalidResetToken
		}

		if err := tx.Model(&models.User{}).Where("id = ?", reset.UserID).Update("password_hash", hash).Error; err != nil {
			return fmt.Errorf("failed to update password: %w", err)
		}
		return nil
	})
}

func (s *Service) createStreamUser(ctx context.Context, user *models.User) {
	if s.streamClient == nil {
		return
	}
	if err := s.streamClient.CreateUser(ctx, user.ID, user.Username); err != nil {
		// Upserted again on the next stream token request
		logger.Log.Warn("Failed to create Stream user",
			logger.WithUserID(user.ID),
			zap.Error(err),
		)
	}
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}
