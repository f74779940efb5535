package core

import (
	"context"
	"testing"
	"time"
)

func TestPurgeExpiredTransfers(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	transfers := newMemoryTransferStore()
	for i, expiresAt := range []time.Time{
		now.Add(-time.Hour),
		now.Add(-time.Minute),
		now.Add(time.Hour),
	} {
		_, err := transfers.Stage(ctx, StageTransferInput{
			Provider:             ProviderDrive,
			ProviderAccountID:    "drive-acct-1",
			RequestingUserID:     string(rune('a' + i)),
			ExistingOwnerID:      "u1",
			EncryptedAccessToken: mustEncrypt("access"),
			ExpiresAt:            expiresAt,
		})
		if err != nil {
			t.Fatalf("stage: %v", err)
		}
	}

	svc, err := NewService(
		Config{},
		WithTransferRequestStore(transfers),
		WithClock(fixedClock(now)),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	purged, err := svc.PurgeExpiredTransfers(ctx)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if purged != 2 {
		t.Fatalf("purged = %d, want 2", purged)
	}
	if len(transfers.byID) != 1 {
		t.Fatalf("expected one surviving row, got %d", len(transfers.byID))
	}
}

func TestPurgeExpiredTransfers_RequiresStore(t *testing.T) {
	svc, err := NewService(Config{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if _, err := svc.PurgeExpiredTransfers(context.Background()); err == nil {
		t.Fatalf("expected error without a transfer request store")
	}
}

func TestStageTransfer_MintsTokenEvenWhenLedgerFails(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	signer, err := NewHS256TransferSigner([]byte("ledger-test-secret"), "key-1", 10*time.Minute)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	signer.now = fixedClock(now)

	// No transfer store configured: the callback still hands back a token so
	// the user-facing flow survives a ledger outage.
	svc, err := NewService(
		Config{},
		WithTransferTokenSigner(signer),
		WithSecretProvider(testSecretProvider{}),
		WithClock(fixedClock(now)),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	token := svc.stageTransfer(ctx, stageTransferRequest{
		Provider:          ProviderDrive,
		ProviderAccountID: "drive-acct-1",
		RequestingUserID:  "u2",
		ExistingOwnerID:   "u1",
		Token:             ProviderToken{AccessToken: "access-1"},
	})
	if token == "" {
		t.Fatalf("expected a minted token without a ledger")
	}
	grant, err := signer.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if grant.RequestingUserID != "u2" || grant.ExistingOwnerID != "u1" {
		t.Fatalf("grant parties mismatch: %+v", grant)
	}
}

func TestStageTransfer_RequiresSigner(t *testing.T) {
	svc, err := NewService(Config{}, WithTransferRequestStore(newMemoryTransferStore()))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	token := svc.stageTransfer(context.Background(), stageTransferRequest{
		Provider:          ProviderDrive,
		ProviderAccountID: "drive-acct-1",
		RequestingUserID:  "u2",
		ExistingOwnerID:   "u1",
	})
	if token != "" {
		t.Fatalf("expected no token without a signer")
	}
}
