package providers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-cloud-accounts/core"
	goerrors "github.com/goliatone/go-errors"
)

type scriptedResponse struct {
	response *http.Response
	err      error
}

// scriptedDoer replays canned token/identity endpoint responses and records
// every request it sees so tests can assert on the outgoing wire format.
type scriptedDoer struct {
	script   []scriptedResponse
	requests []*http.Request
	bodies   []url.Values
	headers  []http.Header
}

func (d *scriptedDoer) Do(req *http.Request) (*http.Response, error) {
	body := url.Values{}
	if req.Body != nil {
		raw, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		parsed, err := url.ParseQuery(string(raw))
		if err == nil {
			body = parsed
		}
	}

	index := len(d.requests)
	d.requests = append(d.requests, req)
	d.bodies = append(d.bodies, body)
	d.headers = append(d.headers, req.Header.Clone())

	if index >= len(d.script) {
		return nil, fmt.Errorf("scripted doer: unexpected request %d to %s", index, req.URL)
	}
	step := d.script[index]
	if step.err != nil {
		return nil, step.err
	}
	return step.response, nil
}

func httpResponse(status int, contentType, body string) *http.Response {
	header := http.Header{}
	header.Set("Content-Type", contentType)
	return &http.Response{
		StatusCode: status,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func jsonResponse(status int, body string) *http.Response {
	return httpResponse(status, "application/json", body)
}

func newTestOAuth2Provider(t *testing.T, doer *scriptedDoer, mutate func(cfg *OAuth2Config)) *OAuth2Provider {
	t.Helper()

	cfg := OAuth2Config{
		ID:            "drive",
		AuthURL:       "https://auth.example.com/authorize",
		TokenURL:      "https://auth.example.com/token",
		ClientID:      "client-1",
		ClientSecret:  "secret-1",
		DefaultScopes: []string{"files.read"},
		Identity: IdentityConfig{
			URL: "https://api.example.com/userinfo",
		},
		Now: func() time.Time {
			return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
		},
		HTTPClient: doer,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	provider, err := NewOAuth2Provider(cfg)
	if err != nil {
		t.Fatalf("NewOAuth2Provider: %v", err)
	}
	return provider
}

func requireErrorCategory(t *testing.T, err error, category goerrors.Category) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected an error with category %s", category)
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		t.Fatalf("expected a categorized error, got %v", err)
	}
	if richErr.Category != category {
		t.Fatalf("expected category %s, got %s (%v)", category, richErr.Category, err)
	}
}

func TestNewOAuth2ProviderValidatesConfig(t *testing.T) {
	base := OAuth2Config{
		ID:       "drive",
		AuthURL:  "https://auth.example.com/authorize",
		TokenURL: "https://auth.example.com/token",
		ClientID: "client-1",
		Identity: IdentityConfig{URL: "https://api.example.com/userinfo"},
	}

	cases := []struct {
		name   string
		mutate func(cfg *OAuth2Config)
	}{
		{name: "missing id", mutate: func(cfg *OAuth2Config) { cfg.ID = "  " }},
		{name: "unknown provider", mutate: func(cfg *OAuth2Config) { cfg.ID = "box" }},
		{name: "missing auth url", mutate: func(cfg *OAuth2Config) { cfg.AuthURL = "" }},
		{name: "missing token url", mutate: func(cfg *OAuth2Config) { cfg.TokenURL = "" }},
		{name: "missing client id", mutate: func(cfg *OAuth2Config) { cfg.ClientID = "" }},
		{name: "missing identity url", mutate: func(cfg *OAuth2Config) { cfg.Identity.URL = "" }},
	}

	for _, testCase := range cases {
		t.Run(testCase.name, func(t *testing.T) {
			cfg := base
			testCase.mutate(&cfg)
			if _, err := NewOAuth2Provider(cfg); err == nil {
				t.Fatalf("expected config validation to fail")
			}
		})
	}

	provider, err := NewOAuth2Provider(base)
	if err != nil {
		t.Fatalf("NewOAuth2Provider: %v", err)
	}
	if provider.ID() != "drive" {
		t.Fatalf("expected provider id drive, got %q", provider.ID())
	}
}

func TestBeginAuthBuildsAuthorizationURL(t *testing.T) {
	provider := newTestOAuth2Provider(t, &scriptedDoer{}, func(cfg *OAuth2Config) {
		cfg.DefaultScopes = []string{"files.read", "files.write"}
		cfg.ExtraAuthParams = url.Values{
			"access_type": []string{"offline"},
			"prompt":      []string{"consent"},
		}
	})

	response, err := provider.BeginAuth(context.Background(), core.BeginAuthRequest{
		Provider:    core.ProviderDrive,
		UserID:      "user-1",
		RedirectURI: "https://app.example.com/callback",
		State:       "state-abc",
	})
	if err != nil {
		t.Fatalf("BeginAuth: %v", err)
	}
	if response.State != "state-abc" {
		t.Fatalf("expected caller state to be preserved, got %q", response.State)
	}

	parsed, err := url.Parse(response.URL)
	if err != nil {
		t.Fatalf("parse auth url: %v", err)
	}
	query := parsed.Query()

	expected := map[string]string{
		"response_type": "code",
		"client_id":     "client-1",
		"redirect_uri":  "https://app.example.com/callback",
		"scope":         "files.read files.write",
		"state":         "state-abc",
		"access_type":   "offline",
		"prompt":        "consent",
	}
	for key, want := range expected {
		if got := query.Get(key); got != want {
			t.Fatalf("expected %s=%q in auth url, got %q", key, want, got)
		}
	}

	if response.Metadata["provider_id"] != "drive" {
		t.Fatalf("expected provider_id metadata, got %v", response.Metadata["provider_id"])
	}
}

func TestBeginAuthGeneratesStateWhenBlank(t *testing.T) {
	provider := newTestOAuth2Provider(t, &scriptedDoer{}, nil)

	first, err := provider.BeginAuth(context.Background(), core.BeginAuthRequest{Provider: core.ProviderDrive})
	if err != nil {
		t.Fatalf("BeginAuth: %v", err)
	}
	second, err := provider.BeginAuth(context.Background(), core.BeginAuthRequest{Provider: core.ProviderDrive})
	if err != nil {
		t.Fatalf("BeginAuth: %v", err)
	}

	if first.State == "" || second.State == "" {
		t.Fatalf("expected generated states, got %q and %q", first.State, second.State)
	}
	if first.State == second.State {
		t.Fatalf("expected unique generated states")
	}
	if !strings.Contains(first.URL, "state="+first.State) {
		t.Fatalf("expected generated state in auth url: %s", first.URL)
	}
}

func TestCompleteAuthExchangesCodeAndFetchesIdentity(t *testing.T) {
	doer := &scriptedDoer{script: []scriptedResponse{
		{response: jsonResponse(http.StatusOK, `{
			"access_token": "access-1",
			"refresh_token": "refresh-1",
			"expires_in": 3600,
			"scope": "files.read"
		}`)},
		{response: jsonResponse(http.StatusOK, `{
			"sub": "drive-acct-1",
			"email": "owner@example.com"
		}`)},
	}}
	provider := newTestOAuth2Provider(t, doer, nil)

	result, err := provider.CompleteAuth(context.Background(), core.CompleteAuthRequest{
		Provider:    core.ProviderDrive,
		Code:        "code-1",
		RedirectURI: "https://app.example.com/callback",
	})
	if err != nil {
		t.Fatalf("CompleteAuth: %v", err)
	}

	if len(doer.requests) != 2 {
		t.Fatalf("expected token + identity requests, got %d", len(doer.requests))
	}

	tokenForm := doer.bodies[0]
	if tokenForm.Get("grant_type") != "authorization_code" {
		t.Fatalf("expected authorization_code grant, got %q", tokenForm.Get("grant_type"))
	}
	if tokenForm.Get("code") != "code-1" {
		t.Fatalf("expected code in token request, got %q", tokenForm.Get("code"))
	}
	if tokenForm.Get("redirect_uri") != "https://app.example.com/callback" {
		t.Fatalf("expected redirect_uri in token request, got %q", tokenForm.Get("redirect_uri"))
	}
	if tokenForm.Get("client_id") != "client-1" {
		t.Fatalf("expected client_id in token request, got %q", tokenForm.Get("client_id"))
	}
	if tokenForm.Get("client_secret") != "" {
		t.Fatalf("expected client secret to travel via basic auth, found it in the body")
	}
	if user, pass, ok := doer.requests[0].BasicAuth(); !ok || user != "client-1" || pass != "secret-1" {
		t.Fatalf("expected basic auth credentials on the token request")
	}

	if got := doer.headers[1].Get("Authorization"); got != "Bearer access-1" {
		t.Fatalf("expected bearer token on identity request, got %q", got)
	}

	if result.Identity.ProviderAccountID != "drive-acct-1" {
		t.Fatalf("expected identity drive-acct-1, got %q", result.Identity.ProviderAccountID)
	}
	if result.Identity.Email != "owner@example.com" {
		t.Fatalf("expected identity email, got %q", result.Identity.Email)
	}
	if result.Token.AccessToken != "access-1" || result.Token.RefreshToken != "refresh-1" {
		t.Fatalf("unexpected token set: %+v", result.Token)
	}

	wantExpiry := time.Date(2026, 3, 10, 13, 0, 0, 0, time.UTC)
	if !result.Token.ExpiresAt.Equal(wantExpiry) {
		t.Fatalf("expected expiry %s, got %s", wantExpiry, result.Token.ExpiresAt)
	}
	if result.Metadata["granted_scope"] != "files.read" {
		t.Fatalf("expected granted scope metadata, got %v", result.Metadata["granted_scope"])
	}
}

func TestCompleteAuthRequiresCode(t *testing.T) {
	doer := &scriptedDoer{}
	provider := newTestOAuth2Provider(t, doer, nil)

	if _, err := provider.CompleteAuth(context.Background(), core.CompleteAuthRequest{Provider: core.ProviderDrive}); err == nil {
		t.Fatalf("expected missing auth code to be rejected")
	}
	if len(doer.requests) != 0 {
		t.Fatalf("expected no outbound requests for an empty code")
	}
}

func TestCompleteAuthRejectsTokenResponseWithoutAccessToken(t *testing.T) {
	doer := &scriptedDoer{script: []scriptedResponse{
		{response: jsonResponse(http.StatusOK, `{"refresh_token": "refresh-1"}`)},
	}}
	provider := newTestOAuth2Provider(t, doer, nil)

	_, err := provider.CompleteAuth(context.Background(), core.CompleteAuthRequest{
		Provider: core.ProviderDrive,
		Code:     "code-1",
	})
	if err == nil || !strings.Contains(err.Error(), "missing access token") {
		t.Fatalf("expected missing access token error, got %v", err)
	}
}

func TestRefreshClientSecretInBody(t *testing.T) {
	doer := &scriptedDoer{script: []scriptedResponse{
		{response: jsonResponse(http.StatusOK, `{"access_token": "access-2", "expires_in": 1800}`)},
	}}
	provider := newTestOAuth2Provider(t, doer, func(cfg *OAuth2Config) {
		cfg.ClientSecretInBody = true
	})

	if _, err := provider.Refresh(context.Background(), "refresh-1"); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	form := doer.bodies[0]
	if form.Get("client_secret") != "secret-1" {
		t.Fatalf("expected client secret in request body, got %q", form.Get("client_secret"))
	}
	if _, _, ok := doer.requests[0].BasicAuth(); ok {
		t.Fatalf("expected no basic auth when the secret travels in the body")
	}
}

func TestRefreshRotatesTokenSet(t *testing.T) {
	doer := &scriptedDoer{script: []scriptedResponse{
		{response: jsonResponse(http.StatusOK, `{
			"access_token": "access-2",
			"refresh_token": "refresh-2",
			"expires_in": 1800
		}`)},
	}}
	provider := newTestOAuth2Provider(t, doer, nil)

	token, err := provider.Refresh(context.Background(), "refresh-1")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	form := doer.bodies[0]
	if form.Get("grant_type") != "refresh_token" {
		t.Fatalf("expected refresh_token grant, got %q", form.Get("grant_type"))
	}
	if form.Get("refresh_token") != "refresh-1" {
		t.Fatalf("expected caller refresh token in request, got %q", form.Get("refresh_token"))
	}

	if token.AccessToken != "access-2" || token.RefreshToken != "refresh-2" {
		t.Fatalf("unexpected rotated token set: %+v", token)
	}
	wantExpiry := time.Date(2026, 3, 10, 12, 30, 0, 0, time.UTC)
	if !token.ExpiresAt.Equal(wantExpiry) {
		t.Fatalf("expected expiry %s, got %s", wantExpiry, token.ExpiresAt)
	}
}

func TestRefreshKeepsRefreshTokenWhenVendorOmitsOne(t *testing.T) {
	doer := &scriptedDoer{script: []scriptedResponse{
		{response: jsonResponse(http.StatusOK, `{"access_token": "access-2", "expires_in": 1800}`)},
	}}
	provider := newTestOAuth2Provider(t, doer, nil)

	token, err := provider.Refresh(context.Background(), "refresh-1")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if token.RefreshToken != "refresh-1" {
		t.Fatalf("expected the caller refresh token to survive, got %q", token.RefreshToken)
	}
}

func TestRefreshRequiresRefreshToken(t *testing.T) {
	doer := &scriptedDoer{}
	provider := newTestOAuth2Provider(t, doer, nil)

	_, err := provider.Refresh(context.Background(), "   ")
	requireErrorCategory(t, err, goerrors.CategoryAuth)
	if len(doer.requests) != 0 {
		t.Fatalf("expected no outbound requests for an empty refresh token")
	}
}

func TestRefreshNetworkFailureIsExternal(t *testing.T) {
	doer := &scriptedDoer{script: []scriptedResponse{
		{err: fmt.Errorf("connection reset")},
	}}
	provider := newTestOAuth2Provider(t, doer, nil)

	_, err := provider.Refresh(context.Background(), "refresh-1")
	requireErrorCategory(t, err, goerrors.CategoryExternal)
}

func TestRefreshClassifiesTokenEndpointFailures(t *testing.T) {
	cases := []struct {
		name     string
		status   int
		body     string
		category goerrors.Category
	}{
		{
			name:     "invalid grant is permanent",
			status:   http.StatusBadRequest,
			body:     `{"error": "invalid_grant", "error_description": "token revoked"}`,
			category: goerrors.CategoryAuth,
		},
		{
			name:     "access denied is permanent",
			status:   http.StatusBadRequest,
			body:     `{"error": "access_denied"}`,
			category: goerrors.CategoryAuth,
		},
		{
			name:     "invalid scope is a validation failure",
			status:   http.StatusBadRequest,
			body:     `{"error": "invalid_scope"}`,
			category: goerrors.CategoryValidation,
		},
		{
			name:     "bare 401 is an auth failure",
			status:   http.StatusUnauthorized,
			body:     `{}`,
			category: goerrors.CategoryAuth,
		},
		{
			name:     "bare 403 is an authz failure",
			status:   http.StatusForbidden,
			body:     `{}`,
			category: goerrors.CategoryAuthz,
		},
		{
			name:     "429 is rate limited",
			status:   http.StatusTooManyRequests,
			body:     `{}`,
			category: goerrors.CategoryRateLimit,
		},
		{
			name:     "5xx is a transient outage",
			status:   http.StatusBadGateway,
			body:     `{}`,
			category: goerrors.CategoryExternal,
		},
	}

	for _, testCase := range cases {
		t.Run(testCase.name, func(t *testing.T) {
			doer := &scriptedDoer{script: []scriptedResponse{
				{response: jsonResponse(testCase.status, testCase.body)},
			}}
			provider := newTestOAuth2Provider(t, doer, nil)

			_, err := provider.Refresh(context.Background(), "refresh-1")
			requireErrorCategory(t, err, testCase.category)
		})
	}
}

func TestRefreshParsesFormEncodedTokenResponse(t *testing.T) {
	doer := &scriptedDoer{script: []scriptedResponse{
		{response: httpResponse(
			http.StatusOK,
			"application/x-www-form-urlencoded",
			"access_token=access-2&refresh_token=refresh-2&expires_in=900",
		)},
	}}
	provider := newTestOAuth2Provider(t, doer, nil)

	token, err := provider.Refresh(context.Background(), "refresh-1")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if token.AccessToken != "access-2" || token.RefreshToken != "refresh-2" {
		t.Fatalf("unexpected token set from form payload: %+v", token)
	}
	wantExpiry := time.Date(2026, 3, 10, 12, 15, 0, 0, time.UTC)
	if !token.ExpiresAt.Equal(wantExpiry) {
		t.Fatalf("expected expiry %s, got %s", wantExpiry, token.ExpiresAt)
	}
}

func TestFetchIdentityFailures(t *testing.T) {
	t.Run("unauthorized identity lookup is an auth failure", func(t *testing.T) {
		doer := &scriptedDoer{script: []scriptedResponse{
			{response: jsonResponse(http.StatusUnauthorized, `{}`)},
		}}
		provider := newTestOAuth2Provider(t, doer, nil)

		_, err := provider.fetchIdentity(context.Background(), "access-1")
		requireErrorCategory(t, err, goerrors.CategoryAuth)
	})

	t.Run("identity without an account id is rejected", func(t *testing.T) {
		doer := &scriptedDoer{script: []scriptedResponse{
			{response: jsonResponse(http.StatusOK, `{"email": "owner@example.com"}`)},
		}}
		provider := newTestOAuth2Provider(t, doer, nil)

		_, err := provider.fetchIdentity(context.Background(), "access-1")
		if err == nil || !strings.Contains(err.Error(), "missing an account id") {
			t.Fatalf("expected missing account id error, got %v", err)
		}
	})

	t.Run("custom identity method is honored", func(t *testing.T) {
		doer := &scriptedDoer{script: []scriptedResponse{
			{response: jsonResponse(http.StatusOK, `{"sub": "acct-1"}`)},
		}}
		provider := newTestOAuth2Provider(t, doer, func(cfg *OAuth2Config) {
			cfg.Identity.Method = "post"
		})

		identity, err := provider.fetchIdentity(context.Background(), "access-1")
		if err != nil {
			t.Fatalf("fetchIdentity: %v", err)
		}
		if identity.ProviderAccountID != "acct-1" {
			t.Fatalf("expected acct-1, got %q", identity.ProviderAccountID)
		}
		if doer.requests[0].Method != http.MethodPost {
			t.Fatalf("expected POST identity request, got %s", doer.requests[0].Method)
		}
	})
}

func TestNormalizeOIDCIdentityFallsBackToID(t *testing.T) {
	identity := NormalizeOIDCIdentity(map[string]any{
		"id":    "acct-9",
		"email": " owner@example.com ",
	})
	if identity.ProviderAccountID != "acct-9" {
		t.Fatalf("expected id fallback, got %q", identity.ProviderAccountID)
	}
	if identity.Email != "owner@example.com" {
		t.Fatalf("expected trimmed email, got %q", identity.Email)
	}

	withSub := NormalizeOIDCIdentity(map[string]any{"sub": "acct-1", "id": "acct-9"})
	if withSub.ProviderAccountID != "acct-1" {
		t.Fatalf("expected sub to win over id, got %q", withSub.ProviderAccountID)
	}
}

func TestNormalizeScopes(t *testing.T) {
	got := normalizeScopes([]string{" files.write ", "files.read", "", "files.read"})
	want := []string{"files.read", "files.write"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}
