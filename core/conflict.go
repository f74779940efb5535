package core

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

type CallbackRequest struct {
	Provider    Provider
	UserID      string
	Code        string
	State       string
	RedirectURI string
	Metadata    map[string]any
}

type CallbackResult struct {
	Outcome CallbackOutcome
	Account CloudAccount
	// TransferToken and RedirectURL are set only on OutcomeConflict. The
	// redirect carries the opaque token and an error code, never account data.
	TransferToken string
	RedirectURL   string
}

type ownershipClass int

const (
	ownershipNewAccount ownershipClass = iota
	ownershipSameOwner
	ownershipSafeReclaim
	ownershipOrphanSlot
	ownershipActiveConflict
)

// classifyOwnership decides what a callback for an external account means for
// the user completing it. Safe reclaim is checked before conflict: an
// inactive row whose stored email matches the verified provider identity is
// an implicit reconnection and never forces the transfer flow. An inactive
// row with a different or missing email is an orphan slot; ownership is
// ambiguous, so it goes through the same transfer protocol as an active
// conflict, staged against the row's historical owner.
func classifyOwnership(existing CloudAccount, found bool, userID string, verifiedEmail string) ownershipClass {
	if !found {
		return ownershipNewAccount
	}
	if existing.OwnerUserID == strings.TrimSpace(userID) {
		return ownershipSameOwner
	}
	if !existing.IsActive {
		if emailsMatch(existing.AccountEmail, verifiedEmail) {
			return ownershipSafeReclaim
		}
		return ownershipOrphanSlot
	}
	return ownershipActiveConflict
}

// emailsMatch requires both sides to be present; an empty stored email leaves
// ownership ambiguous and is never a match.
func emailsMatch(stored string, verified string) bool {
	stored = strings.TrimSpace(stored)
	verified = strings.TrimSpace(verified)
	if stored == "" || verified == "" {
		return false
	}
	return strings.EqualFold(stored, verified)
}

// CompleteCallback finishes the OAuth flow: it exchanges the code, resolves
// the provider-side identity, and either links the account or, when another
// user actively owns it, stages a transfer request and hands back a signed
// transfer token.
func (s *Service) CompleteCallback(ctx context.Context, req CallbackRequest) (result CallbackResult, err error) {
	startedAt := s.clockNow()
	fields := map[string]any{
		"provider": string(req.Provider),
	}
	defer func() {
		fields["outcome"] = string(result.Outcome)
		if result.Account.ID != "" {
			fields["account_id"] = result.Account.ID
		}
		s.observeOperation(ctx, startedAt, "complete_callback", err, fields)
	}()

	if err = req.Provider.Validate(); err != nil {
		err = s.mapError(err)
		return CallbackResult{}, err
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		err = s.mapError(fmt.Errorf("core: user id is required"))
		return CallbackResult{}, err
	}
	if s.accountStore == nil {
		err = s.mapError(fmt.Errorf("core: account store is required"))
		return CallbackResult{}, err
	}
	if s.secretProvider == nil {
		err = s.mapError(fmt.Errorf("core: secret provider is required"))
		return CallbackResult{}, err
	}
	if err = s.validateOAuthCallbackState(ctx, req); err != nil {
		err = s.mapError(err)
		return CallbackResult{}, err
	}

	provider, err := s.resolveProvider(req.Provider)
	if err != nil {
		return CallbackResult{}, err
	}
	exchange, err := provider.CompleteAuth(ctx, CompleteAuthRequest{
		Provider:    req.Provider,
		Code:        req.Code,
		RedirectURI: req.RedirectURI,
		State:       req.State,
		Metadata:    copyAnyMap(req.Metadata),
	})
	if err != nil {
		err = s.mapError(err)
		return CallbackResult{}, err
	}
	providerAccountID := strings.TrimSpace(exchange.Identity.ProviderAccountID)
	if providerAccountID == "" {
		err = s.mapError(fmt.Errorf("core: provider did not return an account identity"))
		return CallbackResult{}, err
	}

	existing, found, err := s.accountStore.FindByProviderAccount(ctx, req.Provider, providerAccountID)
	if err != nil {
		err = s.mapError(err)
		return CallbackResult{}, err
	}

	switch classifyOwnership(existing, found, userID, exchange.Identity.Email) {
	case ownershipNewAccount, ownershipSameOwner:
		account, linkErr := s.linkAccount(ctx, req.Provider, userID, exchange)
		if linkErr != nil {
			err = s.mapError(linkErr)
			return CallbackResult{}, err
		}
		result = CallbackResult{Outcome: OutcomeConnected, Account: account}
		return result, nil

	case ownershipSafeReclaim:
		account, reclaimed, reclaimErr := s.reclaimAccount(ctx, existing, exchange)
		if reclaimErr != nil {
			err = s.mapError(reclaimErr)
			return CallbackResult{}, err
		}
		if reclaimed {
			result = CallbackResult{Outcome: OutcomeReclaimed, Account: account}
			return result, nil
		}
		// Someone reactivated or grabbed the row mid-flight; re-read so the
		// conflict is staged against the fresh owner.
		if refreshed, stillFound, findErr := s.accountStore.FindByProviderAccount(ctx, req.Provider, providerAccountID); findErr == nil && stillFound {
			existing = refreshed
		}
		fallthrough

	default:
		token := s.stageTransfer(ctx, stageTransferRequest{
			Provider:          req.Provider,
			ProviderAccountID: providerAccountID,
			RequestingUserID:  userID,
			ExistingOwnerID:   existing.OwnerUserID,
			AccountEmail:      strings.TrimSpace(exchange.Identity.Email),
			Token:             exchange.Token,
		})
		if token == "" {
			err = s.mapError(fmt.Errorf("core: transfer token could not be minted"))
			return CallbackResult{}, err
		}
		result = CallbackResult{
			Outcome:       OutcomeConflict,
			TransferToken: token,
			RedirectURL:   buildConflictRedirect(req.RedirectURI, token),
		}
		return result, nil
	}
}

func (s *Service) linkAccount(ctx context.Context, provider Provider, userID string, exchange CompleteAuthResponse) (CloudAccount, error) {
	encryptedAccess, encryptedRefresh, err := s.encryptTokenPair(ctx, exchange.Token)
	if err != nil {
		return CloudAccount{}, err
	}
	return s.accountStore.Upsert(ctx, UpsertAccountInput{
		Provider:              provider,
		ProviderAccountID:     strings.TrimSpace(exchange.Identity.ProviderAccountID),
		OwnerUserID:           userID,
		AccountEmail:          strings.TrimSpace(exchange.Identity.Email),
		EncryptedAccessToken:  encryptedAccess,
		EncryptedRefreshToken: encryptedRefresh,
		TokenExpiry:           exchange.Token.ExpiresAt,
	})
}

// reclaimAccount reactivates a disconnected row under its original owner,
// installing the freshly exchanged tokens. The expected-owner guard keeps a
// concurrent ownership change from being silently overwritten.
func (s *Service) reclaimAccount(ctx context.Context, existing CloudAccount, exchange CompleteAuthResponse) (CloudAccount, bool, error) {
	encryptedAccess, encryptedRefresh, err := s.encryptTokenPair(ctx, exchange.Token)
	if err != nil {
		return CloudAccount{}, false, err
	}
	account, ok, err := s.accountStore.ReassignOwner(ctx, ReassignOwnerInput{
		AccountID:             existing.ID,
		ExpectedOwnerID:       existing.OwnerUserID,
		NewOwnerID:            existing.OwnerUserID,
		AccountEmail:          strings.TrimSpace(exchange.Identity.Email),
		EncryptedAccessToken:  encryptedAccess,
		EncryptedRefreshToken: encryptedRefresh,
		TokenExpiry:           exchange.Token.ExpiresAt,
	})
	if err != nil {
		return CloudAccount{}, false, err
	}
	return account, ok, nil
}

func (s *Service) encryptTokenPair(ctx context.Context, token ProviderToken) ([]byte, []byte, error) {
	if strings.TrimSpace(token.AccessToken) == "" {
		return nil, nil, fmt.Errorf("core: provider returned an empty access token")
	}
	encryptedAccess, err := s.secretProvider.Encrypt(ctx, []byte(token.AccessToken))
	if err != nil {
		return nil, nil, fmt.Errorf("core: encrypt access token: %w", err)
	}
	var encryptedRefresh []byte
	if strings.TrimSpace(token.RefreshToken) != "" {
		encryptedRefresh, err = s.secretProvider.Encrypt(ctx, []byte(token.RefreshToken))
		if err != nil {
			return nil, nil, fmt.Errorf("core: encrypt refresh token: %w", err)
		}
	}
	return encryptedAccess, encryptedRefresh, nil
}

func (s *Service) validateOAuthCallbackState(ctx context.Context, req CallbackRequest) error {
	if s == nil || s.oauthStateStore == nil {
		return nil
	}
	state := strings.TrimSpace(req.State)
	if state == "" {
		return fmt.Errorf("core: oauth callback state is required")
	}

	record, err := s.oauthStateStore.Consume(ctx, state)
	if err != nil {
		return err
	}
	if !strings.EqualFold(string(record.Provider), string(req.Provider)) {
		return fmt.Errorf("core: oauth callback state provider mismatch")
	}
	if strings.TrimSpace(record.UserID) != strings.TrimSpace(req.UserID) {
		return fmt.Errorf("core: oauth callback state user mismatch")
	}

	savedRedirect := strings.TrimSpace(record.RedirectURI)
	requestRedirect := strings.TrimSpace(req.RedirectURI)
	if savedRedirect != "" && requestRedirect != "" && savedRedirect != requestRedirect {
		return fmt.Errorf("core: oauth callback state redirect mismatch")
	}
	return nil
}

// buildConflictRedirect appends only the error code and the opaque transfer
// token; owner identity and account email must not leak through the redirect.
func buildConflictRedirect(redirectURI string, transferToken string) string {
	redirectURI = strings.TrimSpace(redirectURI)
	if redirectURI == "" {
		return ""
	}
	parsed, err := url.Parse(redirectURI)
	if err != nil {
		return ""
	}
	query := parsed.Query()
	query.Set("error", "ownership_conflict")
	query.Set("transfer_token", transferToken)
	parsed.RawQuery = query.Encode()
	return parsed.String()
}
