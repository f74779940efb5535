package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/goliatone/go-cloud-accounts/core"
	goerrors "github.com/goliatone/go-errors"
)

const maxIdentityResponseBytes = 1 << 20 // 1 MiB

// IdentityNormalizer turns a raw userinfo payload into the identity the
// account service keys accounts on.
type IdentityNormalizer func(payload map[string]any) core.ProviderIdentity

type IdentityConfig struct {
	URL string
	// Method defaults to GET. Dropbox exposes its userinfo as a POST endpoint.
	Method     string
	Normalizer IdentityNormalizer
}

func (p *OAuth2Provider) fetchIdentity(ctx context.Context, accessToken string) (core.ProviderIdentity, error) {
	if p == nil {
		return core.ProviderIdentity{}, fmt.Errorf("providers: oauth2 provider is nil")
	}
	if strings.TrimSpace(accessToken) == "" {
		return core.ProviderIdentity{}, fmt.Errorf("providers: access token is required for identity lookup")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	method := strings.ToUpper(strings.TrimSpace(p.cfg.Identity.Method))
	if method == "" {
		method = http.MethodGet
	}

	requestCtx := ctx
	cancel := func() {}
	if p.cfg.TokenRequestTimeout > 0 {
		requestCtx, cancel = context.WithTimeout(ctx, p.cfg.TokenRequestTimeout)
	}
	defer cancel()

	req, err := http.NewRequestWithContext(requestCtx, method, p.cfg.Identity.URL, nil)
	if err != nil {
		return core.ProviderIdentity{}, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(accessToken))

	res, err := p.httpClient.Do(req)
	if err != nil {
		return core.ProviderIdentity{}, goerrors.Wrap(
			err,
			goerrors.CategoryExternal,
			"providers: identity request failed",
		)
	}
	defer res.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(res.Body, maxIdentityResponseBytes+1))
	if readErr != nil {
		return core.ProviderIdentity{}, goerrors.Wrap(
			readErr,
			goerrors.CategoryExternal,
			"providers: read identity response",
		)
	}
	if int64(len(body)) > maxIdentityResponseBytes {
		return core.ProviderIdentity{}, fmt.Errorf("providers: identity response exceeds %d bytes", maxIdentityResponseBytes)
	}
	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		message := fmt.Sprintf("providers: identity endpoint returned status %d", res.StatusCode)
		if res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden {
			return core.ProviderIdentity{}, goerrors.New(message, goerrors.CategoryAuth)
		}
		return core.ProviderIdentity{}, goerrors.New(message, goerrors.CategoryExternal)
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return core.ProviderIdentity{}, fmt.Errorf("providers: decode identity response: %w", err)
	}

	normalizer := p.cfg.Identity.Normalizer
	if normalizer == nil {
		normalizer = NormalizeOIDCIdentity
	}
	identity := normalizer(payload)
	if strings.TrimSpace(identity.ProviderAccountID) == "" {
		return core.ProviderIdentity{}, fmt.Errorf("providers: identity response is missing an account id")
	}
	return identity, nil
}

// NormalizeOIDCIdentity reads the standard OpenID Connect userinfo claims.
func NormalizeOIDCIdentity(payload map[string]any) core.ProviderIdentity {
	id := readPayloadString(payload, "sub")
	if id == "" {
		id = readPayloadString(payload, "id")
	}
	return core.ProviderIdentity{
		ProviderAccountID: id,
		Email:             readPayloadString(payload, "email"),
	}
}

func readPayloadString(payload map[string]any, key string) string {
	if len(payload) == 0 {
		return ""
	}
	switch typed := payload[key].(type) {
	case string:
		return strings.TrimSpace(typed)
	case json.Number:
		return strings.TrimSpace(typed.String())
	case int:
		return strconv.Itoa(typed)
	case int64:
		return strconv.FormatInt(typed, 10)
	case float64:
		return strconv.FormatInt(int64(typed), 10)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(typed))
	}
}
