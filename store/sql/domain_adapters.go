package sqlstore

import (
	"time"

	"github.com/goliatone/go-cloud-accounts/core"
)

func newCloudAccountRecord(in core.UpsertAccountInput, now time.Time) *cloudAccountRecord {
	return &cloudAccountRecord{
		Provider:              string(in.Provider),
		ProviderAccountID:     in.ProviderAccountID,
		OwnerUserID:           in.OwnerUserID,
		AccountEmail:          in.AccountEmail,
		EncryptedAccessToken:  append([]byte(nil), in.EncryptedAccessToken...),
		EncryptedRefreshToken: append([]byte(nil), in.EncryptedRefreshToken...),
		TokenExpiry:           in.TokenExpiry,
		IsActive:              true,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
}

func (r *cloudAccountRecord) toDomain() core.CloudAccount {
	if r == nil {
		return core.CloudAccount{}
	}
	account := core.CloudAccount{
		ID:                    r.ID,
		Provider:              core.Provider(r.Provider),
		ProviderAccountID:     r.ProviderAccountID,
		OwnerUserID:           r.OwnerUserID,
		AccountEmail:          r.AccountEmail,
		EncryptedAccessToken:  append([]byte(nil), r.EncryptedAccessToken...),
		EncryptedRefreshToken: append([]byte(nil), r.EncryptedRefreshToken...),
		TokenExpiry:           r.TokenExpiry,
		IsActive:              r.IsActive,
		CreatedAt:             r.CreatedAt,
		UpdatedAt:             r.UpdatedAt,
	}
	if r.DisconnectedAt != nil {
		disconnectedAt := *r.DisconnectedAt
		account.DisconnectedAt = &disconnectedAt
	}
	return account
}

func newTransferRequestRecord(in core.StageTransferInput, now time.Time) *transferRequestRecord {
	return &transferRequestRecord{
		Provider:              string(in.Provider),
		ProviderAccountID:     in.ProviderAccountID,
		RequestingUserID:      in.RequestingUserID,
		ExistingOwnerID:       in.ExistingOwnerID,
		AccountEmail:          in.AccountEmail,
		EncryptedAccessToken:  append([]byte(nil), in.EncryptedAccessToken...),
		EncryptedRefreshToken: append([]byte(nil), in.EncryptedRefreshToken...),
		TokenExpiry:           in.TokenExpiry,
		Status:                string(core.TransferStatusPending),
		CreatedAt:             now,
		UpdatedAt:             now,
		ExpiresAt:             in.ExpiresAt,
	}
}

func (r *transferRequestRecord) toDomain() core.TransferRequest {
	if r == nil {
		return core.TransferRequest{}
	}
	return core.TransferRequest{
		ID:                    r.ID,
		Provider:              core.Provider(r.Provider),
		ProviderAccountID:     r.ProviderAccountID,
		RequestingUserID:      r.RequestingUserID,
		ExistingOwnerID:       r.ExistingOwnerID,
		AccountEmail:          r.AccountEmail,
		EncryptedAccessToken:  append([]byte(nil), r.EncryptedAccessToken...),
		EncryptedRefreshToken: append([]byte(nil), r.EncryptedRefreshToken...),
		TokenExpiry:           r.TokenExpiry,
		Status:                core.TransferStatus(r.Status),
		CreatedAt:             r.CreatedAt,
		ExpiresAt:             r.ExpiresAt,
	}
}
