package drive

import (
	"net/url"
	"time"

	"github.com/goliatone/go-cloud-accounts/core"
	"github.com/goliatone/go-cloud-accounts/providers"
)

const (
	ProviderID  = "drive"
	AuthURL     = "https://accounts.google.com/o/oauth2/v2/auth"
	TokenURL    = "https://oauth2.googleapis.com/token"
	UserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
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
			"https://www.googleapis.com/auth/drive.file",
			"openid",
			"email",
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
		ID:            ProviderID,
		AuthURL:       cfg.AuthURL,
		TokenURL:      cfg.TokenURL,
		ClientID:      cfg.ClientID,
		ClientSecret:  cfg.ClientSecret,
		DefaultScopes: cfg.DefaultScopes,
		// Google only issues a refresh token for offline access, and only
		// re-issues it when consent is re-prompted.
		ExtraAuthParams: url.Values{
			"access_type": []string{"offline"},
			"prompt":      []string{"consent"},
		},
		Identity: providers.IdentityConfig{
			URL: cfg.UserInfoURL,
		},
		TokenTTL:   cfg.TokenTTL,
		HTTPClient: cfg.HTTPClient,
		Now:        cfg.Now,
	})
}
