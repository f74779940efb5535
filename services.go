package cloudaccounts

import "github.com/goliatone/go-cloud-accounts/core"

type Config = core.Config

type RefreshConfig = core.RefreshConfig

type TransferConfig = core.TransferConfig

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies
type OAuthStateStore = core.OAuthStateStore
type RefreshBackoffScheduler = core.RefreshBackoffScheduler
type Registry = core.Registry
type AccountProvider = core.AccountProvider
type AccountStore = core.AccountStore
type TransferRequestStore = core.TransferRequestStore
type SecretProvider = core.SecretProvider
type TransferTokenSigner = core.TransferTokenSigner

type Provider = core.Provider
type CloudAccount = core.CloudAccount
type TransferRequest = core.TransferRequest
type TransferGrant = core.TransferGrant

type ConnectRequest = core.ConnectRequest
type BeginAuthResponse = core.BeginAuthResponse
type CallbackRequest = core.CallbackRequest
type CallbackResult = core.CallbackResult
type ObtainTokenResult = core.ObtainTokenResult
type ExecuteTransferRequest = core.ExecuteTransferRequest
type ExecuteTransferResult = core.ExecuteTransferResult

var (
	WithLogger                  = core.WithLogger
	WithLoggerProvider          = core.WithLoggerProvider
	WithMetricsRecorder         = core.WithMetricsRecorder
	WithErrorFactory            = core.WithErrorFactory
	WithErrorMapper             = core.WithErrorMapper
	WithSecretProvider          = core.WithSecretProvider
	WithPersistenceClient       = core.WithPersistenceClient
	WithRepositoryFactory       = core.WithRepositoryFactory
	WithConfigProvider          = core.WithConfigProvider
	WithOptionsResolver         = core.WithOptionsResolver
	WithOAuthStateStore         = core.WithOAuthStateStore
	WithRefreshBackoffScheduler = core.WithRefreshBackoffScheduler
	WithTransferTokenSigner     = core.WithTransferTokenSigner
	WithTransferSigningSecret   = core.WithTransferSigningSecret
	WithRegistry                = core.WithRegistry
	WithAccountStore            = core.WithAccountStore
	WithTransferRequestStore    = core.WithTransferRequestStore
	WithClock                   = core.WithClock
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}
