package core

import (
	"context"
	"fmt"
	"strings"
)

type stageTransferRequest struct {
	Provider          Provider
	ProviderAccountID string
	RequestingUserID  string
	ExistingOwnerID   string
	AccountEmail      string
	Token             ProviderToken
}

// stageTransfer records the pending hand-off and mints the transfer token.
// Staging is best effort: a ledger or encryption failure must not break the
// user-facing callback, so those failures are logged and the token is minted
// anyway. Only a signing failure yields an empty token.
func (s *Service) stageTransfer(ctx context.Context, req stageTransferRequest) string {
	if s == nil {
		return ""
	}
	fields := map[string]any{
		"provider":   string(req.Provider),
		"account_id": req.ProviderAccountID,
	}
	if s.tokenSigner == nil {
		s.logError(ctx, "transfer staging skipped: no transfer token signer configured", fields)
		return ""
	}

	now := s.clockNow()
	expiresAt := now.Add(s.config.Transfer.TTL())

	if s.transferStore == nil {
		s.logError(ctx, "transfer ledger unavailable, minting token without a staged request", fields)
	} else if strings.TrimSpace(req.Token.AccessToken) == "" {
		s.logError(ctx, "provider returned no access token, staging skipped", fields)
	} else {
		encryptedAccess, encryptErr := s.secretProvider.Encrypt(ctx, []byte(req.Token.AccessToken))
		if encryptErr != nil {
			fields["error"] = encryptErr.Error()
			s.logError(ctx, "access token encryption failed, staging skipped", fields)
		} else {
			var encryptedRefresh []byte
			if strings.TrimSpace(req.Token.RefreshToken) != "" {
				var refreshErr error
				encryptedRefresh, refreshErr = s.secretProvider.Encrypt(ctx, []byte(req.Token.RefreshToken))
				if refreshErr != nil {
					fields["error"] = refreshErr.Error()
					s.logError(ctx, "refresh token encryption failed, staging without it", fields)
					encryptedRefresh = nil
				}
			}
			if _, stageErr := s.transferStore.Stage(ctx, StageTransferInput{
				Provider:              req.Provider,
				ProviderAccountID:     req.ProviderAccountID,
				RequestingUserID:      req.RequestingUserID,
				ExistingOwnerID:       req.ExistingOwnerID,
				AccountEmail:          req.AccountEmail,
				EncryptedAccessToken:  encryptedAccess,
				EncryptedRefreshToken: encryptedRefresh,
				TokenExpiry:           req.Token.ExpiresAt,
				ExpiresAt:             expiresAt,
			}); stageErr != nil {
				fields["error"] = stageErr.Error()
				s.logError(ctx, "transfer request staging failed", fields)
			}
		}
	}

	token, mintErr := s.tokenSigner.Mint(TransferGrant{
		Provider:          req.Provider,
		ProviderAccountID: req.ProviderAccountID,
		RequestingUserID:  req.RequestingUserID,
		ExistingOwnerID:   req.ExistingOwnerID,
		IssuedAt:          now,
		ExpiresAt:         expiresAt,
	})
	if mintErr != nil {
		fields["error"] = mintErr.Error()
		s.logError(ctx, "transfer token mint failed", fields)
		return ""
	}

	s.recordCounter(ctx, "accounts.transfer_staged.total", 1, map[string]string{
		"provider": string(req.Provider),
	})
	return token
}

// PurgeExpiredTransfers removes stale transfer requests. Intended for a
// background job; returns the number of rows removed.
func (s *Service) PurgeExpiredTransfers(ctx context.Context) (purged int64, err error) {
	startedAt := s.clockNow()
	defer func() {
		s.observeOperation(ctx, startedAt, "purge_transfers", err, map[string]any{
			"purged": purged,
		})
	}()

	if s == nil || s.transferStore == nil {
		err = s.mapError(fmt.Errorf("core: transfer request store is required"))
		return 0, err
	}
	purged, err = s.transferStore.PurgeExpired(ctx, s.clockNow())
	if err != nil {
		err = s.mapError(err)
		return 0, err
	}
	return purged, nil
}
