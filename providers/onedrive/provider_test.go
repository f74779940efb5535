package onedrive

import (
	"context"
	"net/url"
	"strings"
	"testing"

	"github.com/goliatone/go-cloud-accounts/core"
)

func TestNewUsesMicrosoftEndpointsByDefault(t *testing.T) {
	provider, err := New(Config{ClientID: "client-1", ClientSecret: "secret-1"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if provider.ID() != ProviderID {
		t.Fatalf("expected provider id %q, got %q", ProviderID, provider.ID())
	}

	response, err := provider.BeginAuth(context.Background(), core.BeginAuthRequest{
		Provider: core.ProviderOneDrive,
		State:    "state-1",
	})
	if err != nil {
		t.Fatalf("BeginAuth: %v", err)
	}
	if !strings.HasPrefix(response.URL, AuthURL) {
		t.Fatalf("expected auth url rooted at %s, got %s", AuthURL, response.URL)
	}

	parsed, err := url.Parse(response.URL)
	if err != nil {
		t.Fatalf("parse auth url: %v", err)
	}
	scope := parsed.Query().Get("scope")
	if !strings.Contains(scope, "offline_access") {
		t.Fatalf("expected offline_access scope in %q", scope)
	}
}

func TestNormalizeGraphIdentity(t *testing.T) {
	org := normalizeGraphIdentity(map[string]any{
		"id":                "acct-1",
		"mail":              "owner@example.com",
		"userPrincipalName": "owner_example.com#EXT#@tenant.onmicrosoft.com",
	})
	if org.ProviderAccountID != "acct-1" {
		t.Fatalf("expected acct-1, got %q", org.ProviderAccountID)
	}
	if org.Email != "owner@example.com" {
		t.Fatalf("expected mail claim to win, got %q", org.Email)
	}

	personal := normalizeGraphIdentity(map[string]any{
		"id":                "acct-2",
		"userPrincipalName": "personal@example.com",
	})
	if personal.Email != "personal@example.com" {
		t.Fatalf("expected userPrincipalName fallback, got %q", personal.Email)
	}
}
