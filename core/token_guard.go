package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	defaultRefreshInitialBackoff = 1 * time.Second
	defaultRefreshMaxBackoff     = 4 * time.Second
)

type RefreshBackoffScheduler interface {
	NextDelay(attempt int) time.Duration
}

type ExponentialBackoffScheduler struct {
	Initial time.Duration
	Max     time.Duration
}

func (s ExponentialBackoffScheduler) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	initial := s.Initial
	if initial <= 0 {
		initial = defaultRefreshInitialBackoff
	}
	max := s.Max
	if max <= 0 {
		max = defaultRefreshMaxBackoff
	}

	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}

type ObtainTokenResult struct {
	AccountID   string
	AccessToken string
	TokenExpiry time.Time
	Refreshed   bool
	Attempts    int
}

// ObtainValidToken returns a usable plaintext access token for the account,
// refreshing it first when the stored token is inside the expiry buffer.
// Permanent grant failures surface as a reauthorization-required error after a
// single attempt; transient provider failures are retried with backoff and
// never mutate the account row.
func (s *Service) ObtainValidToken(ctx context.Context, accountID string) (result ObtainTokenResult, err error) {
	startedAt := s.clockNow()
	fields := map[string]any{
		"account_id": accountID,
	}
	defer func() {
		fields["attempts"] = result.Attempts
		fields["refreshed"] = result.Refreshed
		s.observeOperation(ctx, startedAt, "obtain_token", err, fields)
	}()

	if s == nil || s.accountStore == nil {
		err = s.mapError(fmt.Errorf("core: account store is required"))
		return ObtainTokenResult{}, err
	}
	if s.secretProvider == nil {
		err = s.mapError(fmt.Errorf("core: secret provider is required"))
		return ObtainTokenResult{}, err
	}
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		err = s.mapError(fmt.Errorf("core: account id is required"))
		return ObtainTokenResult{}, err
	}

	account, err := s.accountStore.Get(ctx, accountID)
	if err != nil {
		err = s.mapError(err)
		return ObtainTokenResult{}, err
	}
	fields["provider"] = string(account.Provider)

	if !account.HasAccessToken() {
		err = s.mapError(NewReauthorizationRequiredError(
			"core: account has no stored access token, reauthorization required",
		))
		return ObtainTokenResult{}, err
	}

	now := s.clockNow()
	if account.TokenFresh(now, s.config.Refresh.ExpiryBuffer()) {
		plaintext, decryptErr := s.secretProvider.Decrypt(ctx, account.EncryptedAccessToken)
		if decryptErr != nil {
			err = s.mapError(decryptErr)
			return ObtainTokenResult{}, err
		}
		return ObtainTokenResult{
			AccountID:   account.ID,
			AccessToken: string(plaintext),
			TokenExpiry: account.TokenExpiry,
		}, nil
	}

	if !account.HasRefreshToken() {
		err = s.mapError(NewReauthorizationRequiredError(
			"core: access token expired and no refresh token is stored, reauthorization required",
		))
		return ObtainTokenResult{}, err
	}

	refreshToken, decryptErr := s.secretProvider.Decrypt(ctx, account.EncryptedRefreshToken)
	if decryptErr != nil {
		err = s.mapError(decryptErr)
		return ObtainTokenResult{}, err
	}

	provider, err := s.resolveProvider(account.Provider)
	if err != nil {
		return ObtainTokenResult{}, err
	}

	maxAttempts := s.config.Refresh.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var token ProviderToken
	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attempts = attempt
		token, lastErr = provider.Refresh(ctx, string(refreshToken))
		if lastErr == nil {
			break
		}
		if isPermanentRefreshError(lastErr) {
			err = s.mapError(NewReauthorizationRequiredError(
				fmt.Sprintf("core: provider rejected the stored grant: %v", lastErr),
			))
			return ObtainTokenResult{Attempts: attempts}, err
		}
		if attempt == maxAttempts {
			err = s.mapError(NewTransientUnavailableError(
				fmt.Sprintf("core: token refresh failed after %d attempts: %v", attempts, lastErr),
			))
			return ObtainTokenResult{Attempts: attempts}, err
		}

		delay := defaultRefreshInitialBackoff
		if s.refreshBackoff != nil {
			delay = s.refreshBackoff.NextDelay(attempt)
		}
		if waitErr := waitWithContext(ctx, delay); waitErr != nil {
			err = s.mapError(waitErr)
			return ObtainTokenResult{Attempts: attempts}, err
		}
	}

	encryptedAccess, encryptErr := s.secretProvider.Encrypt(ctx, []byte(token.AccessToken))
	if encryptErr != nil {
		err = s.mapError(encryptErr)
		return ObtainTokenResult{Attempts: attempts}, err
	}
	var encryptedRefresh []byte
	if strings.TrimSpace(token.RefreshToken) != "" && token.RefreshToken != string(refreshToken) {
		encryptedRefresh, encryptErr = s.secretProvider.Encrypt(ctx, []byte(token.RefreshToken))
		if encryptErr != nil {
			err = s.mapError(encryptErr)
			return ObtainTokenResult{Attempts: attempts}, err
		}
	}

	saved, saveErr := s.accountStore.SaveTokens(ctx, SaveAccountTokensInput{
		AccountID:             account.ID,
		EncryptedAccessToken:  encryptedAccess,
		EncryptedRefreshToken: encryptedRefresh,
		TokenExpiry:           token.ExpiresAt,
	})
	if saveErr != nil {
		err = s.mapError(saveErr)
		return ObtainTokenResult{Attempts: attempts}, err
	}

	return ObtainTokenResult{
		AccountID:   saved.ID,
		AccessToken: token.AccessToken,
		TokenExpiry: saved.TokenExpiry,
		Refreshed:   true,
		Attempts:    attempts,
	}, nil
}

// isPermanentRefreshError decides whether a provider refresh failure means the
// grant itself is dead. Retrying those only burns the provider's goodwill.
func isPermanentRefreshError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		switch richErr.Category {
		case goerrors.CategoryAuth, goerrors.CategoryAuthz, goerrors.CategoryValidation:
			return true
		}
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(msg, "invalid_grant") ||
		strings.Contains(msg, "invalid_token") ||
		strings.Contains(msg, "unauthorized_client")
}

func waitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
