package onedrive

import (
	"strings"
	"time"

	"github.com/goliatone/go-cloud-accounts/core"
	"github.com/goliatone/go-cloud-accounts/providers"
)

const (
	ProviderID  = "onedrive"
	AuthURL     = "https://login.microsoftonline.com/common/oauth2/v2.0/authorize"
	TokenURL    = "https://login.microsoftonline.com/common/oauth2/v2.0/token"
	UserInfoURL = "https://graph.microsoft.com/v1.0/me"
)

type Config struct {
	ClientID      string
	ClientSecret  string
	AuthURL       string
	TokenURL      string
	UserInfoURL   string
	DefaultScopes []string
	TokenTTL      time.Duration
	HTTPClient    providers.HTTPDoer
	Now           func() time.Time
}

func DefaultConfig() Config {
	return Config{
		AuthURL:     AuthURL,
		TokenURL:    TokenURL,
		UserInfoURL: UserInfoURL,
		DefaultScopes: []string{
			"Files.ReadWrite",
			"User.Read",
			"offline_access",
		},
	}
}

func New(cfg Config) (core.AccountProvider, error) {
	defaults := DefaultConfig()
	if cfg.AuthURL == "" {
		cfg.AuthURL = defaults.AuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaults.TokenURL
	}
	if cfg.UserInfoURL == "" {
		cfg.UserInfoURL = defaults.UserInfoURL
	}
	if len(cfg.DefaultScopes) == 0 {
		cfg.DefaultScopes = defaults.DefaultScopes
	}
	return providers.NewOAuth2Provider(providers.OAuth2Config{
		ID:           ProviderID,
		AuthURL:      cfg.AuthURL,
		TokenURL:     cfg.TokenURL,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		// The Microsoft identity platform rejects basic auth on its token
		// endpoint for consumer apps.
		ClientSecretInBody: true,
		DefaultScopes:      cfg.DefaultScopes,
		Identity: providers.IdentityConfig{
			URL:        cfg.UserInfoURL,
			Normalizer: normalizeGraphIdentity,
		},
		TokenTTL:   cfg.TokenTTL,
		HTTPClient: cfg.HTTPClient,
		Now:        cfg.Now,
	})
}

// Graph reports the sign-in address as mail for org accounts and as
// userPrincipalName for personal ones.
func normalizeGraphIdentity(payload map[string]any) core.ProviderIdentity {
	email := payloadString(payload, "mail")
	if email == "" {
		email = payloadString(payload, "userPrincipalName")
	}
	return core.ProviderIdentity{
		ProviderAccountID: payloadString(payload, "id"),
		Email:             email,
	}
}

func payloadString(payload map[string]any, key string) string {
	value, _ := payload[key].(string)
	return strings.TrimSpace(value)
}
