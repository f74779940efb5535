package dropbox

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-cloud-accounts/core"
	"github.com/goliatone/go-cloud-accounts/providers"
)

const (
	ProviderID  = "dropbox"
	AuthURL     = "https://www.dropbox.com/oauth2/authorize"
	TokenURL    = "https://api.dropboxapi.com/oauth2/token"
	UserInfoURL = "https://api.dropboxapi.com/2/users/get_current_account"
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
			"account_info.read",
			"files.content.read",
			"files.content.write",
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
		// Dropbox issues refresh tokens only when asked for offline access.
		ExtraAuthParams: url.Values{
			"token_access_type": []string{"offline"},
		},
		DefaultScopes: cfg.DefaultScopes,
		Identity: providers.IdentityConfig{
			URL:        cfg.UserInfoURL,
			Method:     http.MethodPost,
			Normalizer: normalizeDropboxIdentity,
		},
		TokenTTL:   cfg.TokenTTL,
		HTTPClient: cfg.HTTPClient,
		Now:        cfg.Now,
	})
}

func normalizeDropboxIdentity(payload map[string]any) core.ProviderIdentity {
	accountID, _ := payload["account_id"].(string)
	email, _ := payload["email"].(string)
	return core.ProviderIdentity{
		ProviderAccountID: strings.TrimSpace(accountID),
		Email:             strings.TrimSpace(email),
	}
}
