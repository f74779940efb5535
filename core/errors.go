package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	AccountsErrorBadInput             = "ACCOUNTS_BAD_INPUT"
	AccountsErrorNotFound             = "ACCOUNTS_NOT_FOUND"
	AccountsErrorProviderNotFound     = "ACCOUNTS_PROVIDER_NOT_REGISTERED"
	AccountsErrorReauthRequired       = "ACCOUNTS_REAUTH_REQUIRED"
	AccountsErrorProviderUnavailable  = "ACCOUNTS_PROVIDER_UNAVAILABLE"
	AccountsErrorOAuthStateInvalid    = "ACCOUNTS_OAUTH_STATE_INVALID"
	AccountsErrorTransferTokenInvalid = "ACCOUNTS_TRANSFER_TOKEN_INVALID"
	AccountsErrorTransferTokenExpired = "ACCOUNTS_TRANSFER_TOKEN_EXPIRED"
	AccountsErrorTransferUnauthorized = "ACCOUNTS_TRANSFER_UNAUTHORIZED"
	AccountsErrorOwnerChanged         = "ACCOUNTS_OWNER_CHANGED"
	AccountsErrorInternal             = "ACCOUNTS_INTERNAL_ERROR"
)

func accountsErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureAccountsErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "provider") && strings.Contains(msg, "not registered"):
		return newAccountsError(err.Error(), goerrors.CategoryNotFound, AccountsErrorProviderNotFound)
	case strings.Contains(msg, "account not found"):
		return newAccountsError(err.Error(), goerrors.CategoryNotFound, AccountsErrorNotFound)
	case strings.Contains(msg, "oauth callback state"), strings.Contains(msg, "oauth state"):
		return newAccountsError(err.Error(), goerrors.CategoryAuth, AccountsErrorOAuthStateInvalid)
	case strings.Contains(msg, "transfer token expired"):
		return newAccountsError(err.Error(), goerrors.CategoryBadInput, AccountsErrorTransferTokenExpired)
	case strings.Contains(msg, "transfer token"):
		return newAccountsError(err.Error(), goerrors.CategoryBadInput, AccountsErrorTransferTokenInvalid)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "mismatch"):
		return newAccountsError(err.Error(), goerrors.CategoryBadInput, AccountsErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureAccountsErrorEnvelope(mapped)
}

func newAccountsError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureAccountsErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

// NewReauthorizationRequiredError signals the stored grant is dead and the
// owner must go through consent again. Intentionally not retryable.
func NewReauthorizationRequiredError(message string) *goerrors.Error {
	if strings.TrimSpace(message) == "" {
		message = "core: reauthorization required"
	}
	return newAccountsError(message, goerrors.CategoryAuth, AccountsErrorReauthRequired)
}

// NewTransientUnavailableError signals the provider could not be reached after
// retries; the stored credential is presumed intact.
func NewTransientUnavailableError(message string) *goerrors.Error {
	if strings.TrimSpace(message) == "" {
		message = "core: provider temporarily unavailable"
	}
	return newAccountsError(message, goerrors.CategoryExternal, AccountsErrorProviderUnavailable).
		WithCode(http.StatusServiceUnavailable)
}

func newTransferTokenInvalidError(message string) *goerrors.Error {
	if strings.TrimSpace(message) == "" {
		message = "core: transfer token invalid"
	}
	return newAccountsError(message, goerrors.CategoryBadInput, AccountsErrorTransferTokenInvalid)
}

func newTransferTokenExpiredError(message string) *goerrors.Error {
	if strings.TrimSpace(message) == "" {
		message = "core: transfer token expired"
	}
	return newAccountsError(message, goerrors.CategoryBadInput, AccountsErrorTransferTokenExpired)
}

func newTransferUnauthorizedError(message string) *goerrors.Error {
	if strings.TrimSpace(message) == "" {
		message = "core: transfer confirmation user mismatch"
	}
	return newAccountsError(message, goerrors.CategoryAuthz, AccountsErrorTransferUnauthorized)
}

func newOwnerChangedError(message string) *goerrors.Error {
	if strings.TrimSpace(message) == "" {
		message = "core: account ownership changed since the transfer was staged"
	}
	return newAccountsError(message, goerrors.CategoryConflict, AccountsErrorOwnerChanged)
}

func newAccountNotFoundError(message string) *goerrors.Error {
	if strings.TrimSpace(message) == "" {
		message = "core: account not found"
	}
	return newAccountsError(message, goerrors.CategoryNotFound, AccountsErrorNotFound)
}

func IsReauthorizationRequired(err error) bool {
	return hasTextCode(err, AccountsErrorReauthRequired)
}

func IsTransientUnavailable(err error) bool {
	return hasTextCode(err, AccountsErrorProviderUnavailable)
}

func IsTransferTokenInvalid(err error) bool {
	return hasTextCode(err, AccountsErrorTransferTokenInvalid)
}

func IsTransferTokenExpired(err error) bool {
	return hasTextCode(err, AccountsErrorTransferTokenExpired)
}

func IsTransferUnauthorized(err error) bool {
	return hasTextCode(err, AccountsErrorTransferUnauthorized)
}

func IsOwnerChanged(err error) bool {
	return hasTextCode(err, AccountsErrorOwnerChanged)
}

func IsAccountNotFound(err error) bool {
	return hasTextCode(err, AccountsErrorNotFound)
}

func hasTextCode(err error, textCode string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(richErr.TextCode), textCode)
}

func ensureAccountsErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = accountsHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultAccountsTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultAccountsTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return AccountsErrorBadInput
	case goerrors.CategoryNotFound:
		return AccountsErrorNotFound
	case goerrors.CategoryAuth:
		return AccountsErrorReauthRequired
	case goerrors.CategoryAuthz:
		return AccountsErrorTransferUnauthorized
	case goerrors.CategoryConflict:
		return AccountsErrorOwnerChanged
	case goerrors.CategoryExternal:
		return AccountsErrorProviderUnavailable
	default:
		return AccountsErrorInternal
	}
}

func accountsHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
