package core

import (
	"context"
	"testing"
	"time"
)

func TestMemoryOAuthStateStore_SaveAndConsume(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryOAuthStateStore(time.Minute)

	record := OAuthStateRecord{
		State:       "state-1",
		Provider:    ProviderDrive,
		UserID:      "u1",
		RedirectURI: "https://app.example/callback",
		Metadata:    map[string]any{"source": "connect"},
	}
	if err := store.Save(ctx, record); err != nil {
		t.Fatalf("save: %v", err)
	}

	consumed, err := store.Consume(ctx, "state-1")
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if consumed.UserID != "u1" || consumed.Provider != ProviderDrive {
		t.Fatalf("unexpected record: %+v", consumed)
	}
	if consumed.Metadata["source"] != "connect" {
		t.Fatalf("metadata not preserved: %+v", consumed.Metadata)
	}

	// Single use: a second consume must fail.
	if _, err := store.Consume(ctx, "state-1"); err == nil {
		t.Fatalf("expected error for consumed state")
	}
}

func TestMemoryOAuthStateStore_ExpiredStateIsRejected(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryOAuthStateStore(time.Minute)

	err := store.Save(ctx, OAuthStateRecord{
		State:     "state-old",
		Provider:  ProviderDropbox,
		UserID:    "u1",
		ExpiresAt: time.Now().UTC().Add(-time.Second),
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := store.Consume(ctx, "state-old"); err == nil {
		t.Fatalf("expected error for expired state")
	}
}

func TestMemoryOAuthStateStore_RequiresState(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryOAuthStateStore(0)

	if err := store.Save(ctx, OAuthStateRecord{}); err == nil {
		t.Fatalf("expected error for empty state")
	}
	if _, err := store.Consume(ctx, "  "); err == nil {
		t.Fatalf("expected error for blank state lookup")
	}
}

func TestGenerateOAuthState_ProducesUniqueValues(t *testing.T) {
	seen := map[string]struct{}{}
	for i := 0; i < 32; i++ {
		state, err := generateOAuthState()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if state == "" {
			t.Fatalf("empty state")
		}
		if _, dup := seen[state]; dup {
			t.Fatalf("duplicate state %q", state)
		}
		seen[state] = struct{}{}
	}
}
