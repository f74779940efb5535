package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidProvider             = errors.New("core: invalid provider")
	ErrInvalidTransferStatusChange = errors.New("core: invalid transfer request status change")
	ErrAccountNotFound             = errors.New("core: account not found")
	ErrTransferRequestNotFound     = errors.New("core: transfer request not found")
	ErrTransferTokenInvalid        = errors.New("core: transfer token invalid")
	ErrTransferTokenExpired        = errors.New("core: transfer token expired")
)

type Provider string

const (
	ProviderDrive    Provider = "drive"
	ProviderOneDrive Provider = "onedrive"
	ProviderDropbox  Provider = "dropbox"
)

func (p Provider) Validate() error {
	switch Provider(strings.TrimSpace(strings.ToLower(string(p)))) {
	case ProviderDrive, ProviderOneDrive, ProviderDropbox:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidProvider, string(p))
}

func (p Provider) String() string {
	return string(p)
}

func NormalizeProvider(value string) (Provider, error) {
	provider := Provider(strings.TrimSpace(strings.ToLower(value)))
	if err := provider.Validate(); err != nil {
		return "", err
	}
	return provider, nil
}

// CloudAccount is one linked third-party storage account. The same external
// account may leave historical rows behind after ownership reassignments, but
// at most one row per (provider, provider_account_id) is the current one.
type CloudAccount struct {
	ID                    string
	Provider              Provider
	ProviderAccountID     string
	OwnerUserID           string
	AccountEmail          string
	EncryptedAccessToken  []byte
	EncryptedRefreshToken []byte
	TokenExpiry           time.Time
	IsActive              bool
	DisconnectedAt        *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

func (a CloudAccount) HasAccessToken() bool {
	return len(a.EncryptedAccessToken) > 0
}

func (a CloudAccount) HasRefreshToken() bool {
	return len(a.EncryptedRefreshToken) > 0
}

// TokenFresh reports whether the stored access token is still usable without
// a refresh, given the configured expiry buffer.
func (a CloudAccount) TokenFresh(now time.Time, buffer time.Duration) bool {
	if a.TokenExpiry.IsZero() {
		return false
	}
	return a.TokenExpiry.After(now.Add(buffer))
}

type TransferStatus string

const (
	TransferStatusPending  TransferStatus = "pending"
	TransferStatusConsumed TransferStatus = "consumed"
	TransferStatusExpired  TransferStatus = "expired"
)

// TransferRequest is a staged ownership hand-off for an account that is
// actively owned by another user. Tokens captured at callback time ride along
// encrypted so the executor can finish the transfer without a second consent.
type TransferRequest struct {
	ID                    string
	Provider              Provider
	ProviderAccountID     string
	RequestingUserID      string
	ExistingOwnerID       string
	AccountEmail          string
	EncryptedAccessToken  []byte
	EncryptedRefreshToken []byte
	TokenExpiry           time.Time
	Status                TransferStatus
	CreatedAt             time.Time
	ExpiresAt             time.Time
}

func (t TransferRequest) Expired(now time.Time) bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(t.ExpiresAt)
}

func (t *TransferRequest) TransitionTo(status TransferStatus) error {
	if t == nil {
		return nil
	}
	if t.Status == status {
		return nil
	}
	if !transferTransitionAllowed(t.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransferStatusChange, t.Status, status)
	}
	t.Status = status
	return nil
}

func transferTransitionAllowed(current, next TransferStatus) bool {
	allowed := map[TransferStatus]map[TransferStatus]struct{}{
		TransferStatusPending: {
			TransferStatusConsumed: {},
			TransferStatusExpired:  {},
		},
		TransferStatusExpired: {
			TransferStatusPending: {},
		},
	}
	_, ok := allowed[current][next]
	return ok
}

type CallbackOutcome string

const (
	// OutcomeConnected covers first-time links and same-owner relinks.
	OutcomeConnected CallbackOutcome = "connected"
	// OutcomeReclaimed means a disconnected row was reactivated under its
	// original owner after the verified identity email matched the stored one.
	OutcomeReclaimed CallbackOutcome = "reclaimed"
	// OutcomeConflict means another user actively owns the account; a transfer
	// request was staged and the caller gets a signed transfer token instead.
	OutcomeConflict CallbackOutcome = "conflict"
)

// ProviderIdentity is the provider-side identity resolved during a callback.
type ProviderIdentity struct {
	ProviderAccountID string
	Email             string
}

// ProviderToken is a decrypted token set as returned by a provider exchange.
type ProviderToken struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}
