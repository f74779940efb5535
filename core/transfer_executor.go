package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

type ExecuteTransferRequest struct {
	Token            string
	ConfirmingUserID string
}

type ExecuteTransferResult struct {
	Account CloudAccount
}

// ExecuteTransfer finishes a staged ownership hand-off. The confirming user
// must be the one who triggered the conflict, the account owner must still be
// the one pinned in the token, and the ownership flip is guarded against a
// concurrent owner change at the store layer.
func (s *Service) ExecuteTransfer(ctx context.Context, req ExecuteTransferRequest) (result ExecuteTransferResult, err error) {
	startedAt := s.clockNow()
	fields := map[string]any{}
	defer func() {
		if result.Account.ID != "" {
			fields["account_id"] = result.Account.ID
		}
		s.observeOperation(ctx, startedAt, "execute_transfer", err, fields)
	}()

	if s == nil || s.accountStore == nil {
		err = s.mapError(fmt.Errorf("core: account store is required"))
		return ExecuteTransferResult{}, err
	}
	if s.tokenSigner == nil {
		err = s.mapError(fmt.Errorf("core: transfer token signer is required"))
		return ExecuteTransferResult{}, err
	}
	confirmingUserID := strings.TrimSpace(req.ConfirmingUserID)
	if confirmingUserID == "" {
		err = s.mapError(fmt.Errorf("core: confirming user id is required"))
		return ExecuteTransferResult{}, err
	}

	grant, verifyErr := s.tokenSigner.Verify(req.Token)
	if verifyErr != nil {
		if errors.Is(verifyErr, ErrTransferTokenExpired) {
			err = s.mapError(newTransferTokenExpiredError(verifyErr.Error()))
		} else {
			err = s.mapError(newTransferTokenInvalidError(verifyErr.Error()))
		}
		return ExecuteTransferResult{}, err
	}
	fields["provider"] = string(grant.Provider)

	if grant.RequestingUserID != confirmingUserID {
		err = s.mapError(newTransferUnauthorizedError(
			"core: transfer may only be confirmed by the user who requested it",
		))
		return ExecuteTransferResult{}, err
	}

	account, found, findErr := s.accountStore.FindByProviderAccount(ctx, grant.Provider, grant.ProviderAccountID)
	if findErr != nil {
		err = s.mapError(findErr)
		return ExecuteTransferResult{}, err
	}
	if !found {
		err = s.mapError(newAccountNotFoundError(
			"core: account named by the transfer token no longer exists",
		))
		return ExecuteTransferResult{}, err
	}
	if account.OwnerUserID != grant.ExistingOwnerID {
		err = s.mapError(newOwnerChangedError(""))
		return ExecuteTransferResult{}, err
	}

	var staged TransferRequest
	stagedFound := false
	if s.transferStore != nil {
		staged, stagedFound, err = s.transferStore.GetPending(ctx, grant.Provider, grant.ProviderAccountID, grant.RequestingUserID)
		if err != nil {
			err = s.mapError(err)
			return ExecuteTransferResult{}, err
		}
	}
	if !stagedFound {
		err = s.mapError(newAccountNotFoundError(
			"core: no pending transfer request for this token",
		))
		return ExecuteTransferResult{}, err
	}
	if staged.Expired(s.clockNow()) {
		// Lazy TTL enforcement: the row outlived its window, drop it now.
		if deleteErr := s.transferStore.Delete(ctx, staged.ID); deleteErr != nil {
			s.logError(ctx, "expired transfer request cleanup failed", map[string]any{
				"transfer_request_id": staged.ID,
				"error":               deleteErr.Error(),
			})
		}
		err = s.mapError(newTransferTokenExpiredError(
			"core: transfer request expired before confirmation",
		))
		return ExecuteTransferResult{}, err
	}

	updated, ok, reassignErr := s.accountStore.ReassignOwner(ctx, ReassignOwnerInput{
		AccountID:             account.ID,
		ExpectedOwnerID:       grant.ExistingOwnerID,
		NewOwnerID:            grant.RequestingUserID,
		AccountEmail:          staged.AccountEmail,
		EncryptedAccessToken:  staged.EncryptedAccessToken,
		EncryptedRefreshToken: staged.EncryptedRefreshToken,
		TokenExpiry:           staged.TokenExpiry,
	})
	if reassignErr != nil {
		err = s.mapError(reassignErr)
		return ExecuteTransferResult{}, err
	}
	if !ok {
		err = s.mapError(newOwnerChangedError(
			"core: ownership changed while the transfer was being confirmed",
		))
		return ExecuteTransferResult{}, err
	}

	if consumeErr := s.transferStore.MarkConsumed(ctx, staged.ID); consumeErr != nil {
		// The transfer itself succeeded; a stuck pending row is reaped by the
		// purge job, so only log here.
		s.logError(ctx, "transfer request could not be marked consumed", map[string]any{
			"transfer_request_id": staged.ID,
			"error":               consumeErr.Error(),
		})
	}

	s.recordCounter(ctx, "accounts.transfer_executed.total", 1, map[string]string{
		"provider": string(grant.Provider),
	})
	result = ExecuteTransferResult{Account: updated}
	return result, nil
}
