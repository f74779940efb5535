package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type BeginAuthRequest struct {
	Provider    Provider
	UserID      string
	RedirectURI string
	State       string
	Scopes      []string
	Metadata    map[string]any
}

type BeginAuthResponse struct {
	URL      string
	State    string
	Metadata map[string]any
}

type CompleteAuthRequest struct {
	Provider    Provider
	Code        string
	RedirectURI string
	State       string
	Metadata    map[string]any
}

type CompleteAuthResponse struct {
	Identity ProviderIdentity
	Token    ProviderToken
	Metadata map[string]any
}

// AccountProvider is one cloud storage vendor integration. Refresh exchanges a
// refresh token for a new token set; implementations classify failures so the
// token guard can tell permanent grant failures from transient outages.
type AccountProvider interface {
	ID() string
	BeginAuth(ctx context.Context, req BeginAuthRequest) (BeginAuthResponse, error)
	CompleteAuth(ctx context.Context, req CompleteAuthRequest) (CompleteAuthResponse, error)
	Refresh(ctx context.Context, refreshToken string) (ProviderToken, error)
}

type Registry interface {
	Register(provider AccountProvider) error
	Get(providerID string) (AccountProvider, bool)
	List() []AccountProvider
}

type UpsertAccountInput struct {
	Provider              Provider
	ProviderAccountID     string
	OwnerUserID           string
	AccountEmail          string
	EncryptedAccessToken  []byte
	EncryptedRefreshToken []byte
	TokenExpiry           time.Time
}

type SaveAccountTokensInput struct {
	AccountID            string
	EncryptedAccessToken []byte
	// EncryptedRefreshToken left nil keeps the stored refresh token; providers
	// that do not rotate refresh tokens omit it from refresh responses.
	EncryptedRefreshToken []byte
	TokenExpiry           time.Time
}

type ReassignOwnerInput struct {
	AccountID       string
	ExpectedOwnerID string
	NewOwnerID      string
	AccountEmail    string
	// Token fields are optional; when set they come from the staged transfer
	// request and replace whatever the previous owner left behind.
	EncryptedAccessToken  []byte
	EncryptedRefreshToken []byte
	TokenExpiry           time.Time
}

type AccountStore interface {
	Get(ctx context.Context, id string) (CloudAccount, error)
	// FindByProviderAccount returns the current row for the external account,
	// preferring an active row over disconnected leftovers.
	FindByProviderAccount(ctx context.Context, provider Provider, providerAccountID string) (CloudAccount, bool, error)
	ListByOwner(ctx context.Context, ownerUserID string) ([]CloudAccount, error)
	Upsert(ctx context.Context, in UpsertAccountInput) (CloudAccount, error)
	SaveTokens(ctx context.Context, in SaveAccountTokensInput) (CloudAccount, error)
	Disconnect(ctx context.Context, id string, reason string) error
	// ReassignOwner applies the ownership change only while the row still
	// belongs to ExpectedOwnerID. The bool is false when the guard lost.
	ReassignOwner(ctx context.Context, in ReassignOwnerInput) (CloudAccount, bool, error)
}

type StageTransferInput struct {
	Provider              Provider
	ProviderAccountID     string
	RequestingUserID      string
	ExistingOwnerID       string
	AccountEmail          string
	EncryptedAccessToken  []byte
	EncryptedRefreshToken []byte
	TokenExpiry           time.Time
	ExpiresAt             time.Time
}

type TransferRequestStore interface {
	// Stage inserts or refreshes the pending row for
	// (provider, provider_account_id, requesting_user_id) in one statement.
	Stage(ctx context.Context, in StageTransferInput) (TransferRequest, error)
	GetPending(ctx context.Context, provider Provider, providerAccountID string, requestingUserID string) (TransferRequest, bool, error)
	MarkConsumed(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

type StoreProvider interface {
	AccountStore() AccountStore
	TransferRequestStore() TransferRequestStore
}

type RepositoryStoreFactory interface {
	BuildStores(persistenceClient any) (StoreProvider, error)
}

type SecretProvider interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

// TransferTokenSigner mints and verifies the signed token handed back on an
// ownership conflict. Verify distinguishes expiry from any other failure via
// ErrTransferTokenExpired / ErrTransferTokenInvalid.
type TransferTokenSigner interface {
	Mint(grant TransferGrant) (string, error)
	Verify(token string) (TransferGrant, error)
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type JobExecutionMessage struct {
	JobID          string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}
