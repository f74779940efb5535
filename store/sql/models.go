package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type cloudAccountRecord struct {
	bun.BaseModel `bun:"table:cloud_accounts,alias:ca"`

	ID                    string     `bun:"id,pk"`
	Provider              string     `bun:"provider,notnull"`
	ProviderAccountID     string     `bun:"provider_account_id,notnull"`
	OwnerUserID           string     `bun:"owner_user_id,notnull"`
	AccountEmail          string     `bun:"account_email"`
	EncryptedAccessToken  []byte     `bun:"encrypted_access_token"`
	EncryptedRefreshToken []byte     `bun:"encrypted_refresh_token"`
	TokenExpiry           time.Time  `bun:"token_expiry,nullzero"`
	IsActive              bool       `bun:"is_active,notnull"`
	DisconnectedAt        *time.Time `bun:"disconnected_at,nullzero"`
	DisconnectReason      string     `bun:"disconnect_reason"`
	CreatedAt             time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt             time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type transferRequestRecord struct {
	bun.BaseModel `bun:"table:account_transfer_requests,alias:atr"`

	ID                    string    `bun:"id,pk"`
	Provider              string    `bun:"provider,notnull"`
	ProviderAccountID     string    `bun:"provider_account_id,notnull"`
	RequestingUserID      string    `bun:"requesting_user_id,notnull"`
	ExistingOwnerID       string    `bun:"existing_owner_id,notnull"`
	AccountEmail          string    `bun:"account_email"`
	EncryptedAccessToken  []byte    `bun:"encrypted_access_token"`
	EncryptedRefreshToken []byte    `bun:"encrypted_refresh_token"`
	TokenExpiry           time.Time `bun:"token_expiry,nullzero"`
	Status                string    `bun:"status,notnull"`
	CreatedAt             time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt             time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
	ExpiresAt             time.Time `bun:"expires_at,notnull"`
}
