package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/zfogg/traveltweets/internal/database"
	"github.com/zfogg/traveltweets/internal/models"
)

const otpIssuer = "Travel Tweets"

// TwoFactorSetup is what an authenticator app needs to enroll
type TwoFactorSetup struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauthUrl"`
}

// SetupTwoFactor generates a TOTP secret for user. The secret is stored but
// not active until EnableTwoFactor verifies a code from it.
func (s *Service) SetupTwoFactor(ctx context.Context, user *models.User) (*TwoFactorSetup, error) {
	if user.TwoFactorEnabled {
		return nil, ErrTwoFactorAlreadyActive
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      otpIssuer,
		AccountName: user.Email,
		SecretSize:  20,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate 2FA secret: %w", err)
	}

	secret := key.Secret()
	if err := database.DB.WithContext(ctx).Model(user).Update("two_factor_secret", secret).Error; err != nil {
		return nil, fmt.Errorf("failed to save 2FA setup: %w", err)
	}
	user.TwoFactorSecret = &secret

	return &TwoFactorSetup{Secret: secret, OTPAuthURL: key.URL()}, nil
}

// EnableTwoFactor activates two-factor once code matches the pending secret
func (s *Service) EnableTwoFactor(ctx context.Context, user *models.User, code string) error {
	if user.TwoFactorEnabled {
		return ErrTwoFactorAlreadyActive
	}
	if user.TwoFactorSecret == nil {
		return ErrTwoFactorNotActive
	}
	if !validateTOTP(user, code) {
		return ErrInvalidTwoFactorCode
	}

	if err := database.DB.WithContext(ctx).Model(user).Update("two_factor_enabled", true).Error; err != nil {
		return fmt.Errorf("failed to enable 2FA: %w", err)
	}
	user.TwoFactorEnabled = true
	return nil
}

// DisableTwoFactor turns two-factor off after checking a current code
func (s *Service) DisableTwoFactor(ctx context.Context, user *models.User, code string) error {
	if !user.TwoFactorEnabled {
		return ErrTwoFactorNotActive
	}
	if !validateTOTP(user, code) {
		return ErrInvalidTwoFactorCode
	}

	err := database.DB.WithContext(ctx).Model(user).Updates(map[string]interface{}{
		"two_factor_enabled": false,
		"two_factor_secret":  nil,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to disable 2FA: %w", err)
	}
	user.TwoFactorEnabled = false
	user.TwoFactorSecret = nil
	return nil
}

// validateTOTP allows one step of clock skew either way
func validateTOTP(user *models.User, code string) bool {
	if user.TwoFactorSecret == nil || code == "" {
		return false
	}
	valid, err := totp.ValidateCustom(code, *user.TwoFactorSecret, time.Now().UTC(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && valid
}
