package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/zfogg/traveltweets/internal/database"
	"github.com/zfogg/traveltweets/internal/logger"
	"github.com/zfogg/traveltweets/internal/models"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

// Supported social login providers
const (
	ProviderGoogle  = "google"
	ProviderDiscord = "discord"
)

const (
	googleUserInfoURL  = "https://www.googleapis.com/oauth2/v2/userinfo"
	discordUserInfoURL = "https://discord.com/api/users/@me"
)

// OAuthUserInfo is the provider profile normalized across providers
type OAuthUserInfo struct {
	ID            string
	Email         string
	EmailVerified bool
	Name          string
	AvatarURL     string
}

// GoogleUserInfo represents Google OAuth user response
type GoogleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// DiscordUserInfo represents Discord OAuth user response
type DiscordUserInfo struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name"`
	Email      string `json:"email"`
	Verified   bool   `json:"verified"`
	Avatar     string `json:"avatar"`
}

var usernameCleaner = regexp.MustCompile(`[^a-z0-9_]`)

func (s *Service) providerConfig(provider string) (*oauth2.Config, error) {
	var cfg *oauth2.Config
	switch provider {
	case ProviderGoogle:
		cfg = s.googleConfig
	case ProviderDiscord:
		cfg = s.discordConfig
	}
	if cfg == nil {
		return nil, ErrProviderNotConfigured
	}
	return cfg, nil
}

// OAuthURL returns the provider's consent page URL carrying state
func (s *Service) OAuthURL(provider, state string) (string, error) {
	cfg, err := s.providerConfig(provider)
	if err != nil {
		return "", err
	}
	return cfg.AuthCodeURL(state), nil
}

// HandleOAuthCallback exchanges code and signs the user in. Accounts are
// matched by provider identity first, then unified by verified email, and
// created otherwise.
func (s *Service) HandleOAuthCallback(ctx context.Context, provider, code string) (*AuthResponse, error) {
	cfg, err := s.providerConfig(provider)
	if err != nil {
		return nil, err
	}

	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}
	client := cfg.Client(ctx, token)

	var info *OAuthUserInfo
	switch provider {
	case ProviderGoogle:
		info, err = fetchGoogleUser(ctx, client)
	case ProviderDiscord:
		info, err = fetchDiscordUser(ctx, client)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s user info: %w", provider, err)
	}

	return s.findOrCreateUserFromOAuth(ctx, provider, info)
}

func (s *Service) findOrCreateUserFromOAuth(ctx context.Context, provider string, info *OAuthUserInfo) (*AuthResponse, error) {
	db := database.DB.WithContext(ctx)

	var link models.OAuthProvider
	err := db.Preload("User").Where("provider = ? AND provider_user_id = ?", provider, info.ID).First(&link).Error
	if err == nil {
		return s.GenerateTokenForUser(&link.User)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("database error checking OAuth: %w", err)
	}

	if info.Email != "" && info.EmailVerified {
		existing, err := s.FindUserByEmail(ctx, info.Email)
		if err == nil {
			return s.linkOAuthToExistingUser(ctx, existing, provider, info)
		} else if !errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
	}

	return s.createUserWithOAuth(ctx, provider, info)
}

func (s *Service) linkOAuthToExistingUser(ctx context.Context, user *models.User, provider string, info *OAuthUserInfo) (*AuthResponse, error) {
	err := database.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		link := models.OAuthProvider{
			UserID:         user.ID,
			Provider:       provider,
			ProviderUserID: info.ID,
			Email:          info.Email,
			Name:           info.Name,
			AvatarURL:      info.AvatarURL,
		}
		if err := tx.Create(&link).Error; err != nil {
			return err
		}

		updates := map[string]interface{}{providerColumn(provider): info.ID}
		if user.AvatarURL == "" && info.AvatarURL != "" {
			updates["avatar_url"] = info.AvatarURL
			user.AvatarURL = info.AvatarURL
		}
		return tx.Model(user).Updates(updates).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to link OAuth provider: %w", err)
	}

	logger.Log.Info("Linked social login to existing account",
		logger.WithUserID(user.ID),
		zap.String("provider", provider),
	)
	return s.GenerateTokenForUser(user)
}

func (s *Service) createUserWithOAuth(ctx context.Context, provider string, info *OAuthUserInfo) (*AuthResponse, error) {
	if info.Email == "" {
		return nil, errors.New("provider did not return an email address")
	}

	username, err := s.ensureUniqueUsername(ctx, generateUsernameFromName(info.Name))
	if err != nil {
		return nil, err
	}

	providerID := info.ID
	user := models.User{
		Email:       info.Email,
		Username:    username,
		DisplayName: info.Name,
		AvatarURL:   info.AvatarURL,
	}
	if user.DisplayName == "" {
		user.DisplayName = username
	}
	switch provider {
	case ProviderGoogle:
		user.GoogleID = &providerID
	case ProviderDiscord:
		user.DiscordID = &providerID
	}

	err = database.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		return tx.Create(&models.OAuthProvider{
			UserID:         user.ID,
			Provider:       provider,
			ProviderUserID: info.ID,
			Email:          info.Email,
			Name:           info.Name,
			AvatarURL:      info.AvatarURL,
		}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create user with OAuth: %w", err)
	}

	s.createStreamUser(ctx, &user)
	return s.GenerateTokenForUser(&user)
}

func providerColumn(provider string) string {
	if provider == ProviderDiscord {
		return "discord_id"
	}
	return "google_id"
}

func fetchGoogleUser(ctx context.Context, client *http.Client) (*OAuthUserInfo, error) {
	var googleUser GoogleUserInfo
	if err := getJSON(ctx, client, googleUserInfoURL, &googleUser); err != nil {
		return nil, err
	}
	return &OAuthUserInfo{
		ID:            googleUser.ID,
		Email:         googleUser.Email,
		EmailVerified: googleUser.VerifiedEmail,
		Name:          googleUser.Name,
		AvatarURL:     googleUser.Picture,
	}, nil
}

func fetchDiscordUser(ctx context.Context, client *http.Client) (*OAuthUserInfo, error) {
	var discordUser DiscordUserInfo
	if err := getJSON(ctx, client, discordUserInfoURL, &discordUser); err != nil {
		return nil, err
	}

	avatarURL := ""
	if discordUser.Avatar != "" {
		avatarURL = fmt.Sprintf("https://cdn.discordapp.com/avatars/%s/%s.png", discordUser.ID, discordUser.Avatar)
	}
	name := discordUser.GlobalName
	if name == "" {
		name = discordUser.Username
	}
	return &OAuthUserInfo{
		ID:            discordUser.ID,
		Email:         discordUser.Email,
		EmailVerified: discordUser.Verified,
		Name:          name,
		AvatarURL:     avatarURL,
	}, nil
}

func getJSON(ctx context.Context, client *http.Client, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to get user info: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("user info returned %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse user info: %w", err)
	}
	return nil
}

// ensureUniqueUsername appends a counter until the name is free
func (s *Service) ensureUniqueUsername(ctx context.Context, base string) (string, error) {
	db := database.DB.WithContext(ctx)
	username := base

	for counter := 1; counter < 1000; counter++ {
		var count int64
		if err := db.Model(&models.User{}).Where("LOWER(username) = LOWER(?)", username).Count(&count).Error; err != nil {
			return "", fmt.Errorf("database error: %w", err)
		}
		if count == 0 {
			return username, nil
		}
		suffix := fmt.Sprintf("%d", counter)
		if len(base)+len(suffix) > 30 {
			username = base[:30-len(suffix)] + suffix
		} else {
			username = base + suffix
		}
	}
	return "", errors.New("unable to generate unique username")
}

// generateUsernameFromName creates a valid username from a display name
func generateUsernameFromName(name string) string {
	cleaned := usernameCleaner.ReplaceAllString(strings.ToLower(name), "")
	if len(cleaned) < 3 {
		cleaned = "traveller" + cleaned
	}
	if len(cleaned) > 20 {
		cleaned = cleaned[:20]
	}
	return cleaned
}
