package config

import (
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// OAuthConfig holds the social login providers. A nil entry means the
// provider is not configured and its routes answer 503.
type OAuthConfig struct {
	GoogleConfig  *oauth2.Config
	DiscordConfig *oauth2.Config
}

// Discord does not ship an endpoint in x/oauth2
var discordEndpoint = oauth2.Endpoint{
	AuthURL:  "https://discord.com/api/oauth2/authorize",
	TokenURL: "https://discord.com/api/oauth2/token",
}

// LoadOAuthConfig builds provider configs from GOOGLE_CLIENT_ID/SECRET and
// DISCORD_CLIENT_ID/SECRET. Callbacks live under baseURL/api/auth.
func LoadOAuthConfig(baseURL string) OAuthConfig {
	var cfg OAuthConfig

	if id, secret := os.Getenv("GOOGLE_CLIENT_ID"), os.Getenv("GOOGLE_CLIENT_SECRET"); id != "" && secret != "" {
		cfg.GoogleConfig = &oauth2.Config{
			ClientID:     id,
			ClientSecret: secret,
			RedirectURL:  baseURL + "/api/auth/google/callback",
			Scopes:       []string{"openid", "profile", "email"},
			Endpoint:     google.Endpoint,
		}
	}

	if id, secret := os.Getenv("DISCORD_CLIENT_ID"), os.Getenv("DISCORD_CLIENT_SECRET"); id != "" && secret != "" {
		cfg.DiscordConfig = &oauth2.Config{
			ClientID:     id,
			ClientSecret: secret,
			RedirectURL:  baseURL + "/api/auth/discord/callback",
			Scopes:       []string{"identify", "email"},
			Endpoint:     discordEndpoint,
		}
	}

	return cfg
}
