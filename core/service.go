package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

var ErrProviderNotRegistered = errors.New("core: provider not registered")

type Service struct {
	config          Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorFactory    ErrorFactory
	errorMapper     ErrorMapper
	secretProvider  SecretProvider
	persistence     any
	repoFactory     any
	configProvider  ConfigProvider
	optionsResolver OptionsResolver
	oauthStateStore OAuthStateStore
	refreshBackoff  RefreshBackoffScheduler
	tokenSigner     TransferTokenSigner
	registry        Registry
	accountStore    AccountStore
	transferStore   TransferRequestStore
	now             func() time.Time
}

type ServiceDependencies struct {
	Logger           Logger
	LoggerProvider   LoggerProvider
	MetricsRecorder  MetricsRecorder
	ErrorFactory     ErrorFactory
	ErrorMapper      ErrorMapper
	SecretProvider   SecretProvider
	ConfigProvider   ConfigProvider
	OptionsResolver  OptionsResolver
	OAuthStateStore  OAuthStateStore
	RefreshScheduler RefreshBackoffScheduler
	TokenSigner      TransferTokenSigner
	Registry         Registry
	AccountStore     AccountStore
	TransferStore    TransferRequestStore
}

func NewService(cfg Config, options ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("cloud-accounts", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("cloud-accounts"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.registry == nil {
		builder.registry = NewProviderRegistry()
	}
	if builder.oauthStateStore == nil {
		builder.oauthStateStore = NewMemoryOAuthStateStore(defaultOAuthStateTTL)
	}
	if builder.clock == nil {
		builder.clock = func() time.Time { return time.Now().UTC() }
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if builder.refreshScheduler == nil {
		builder.refreshScheduler = ExponentialBackoffScheduler{
			Initial: finalConfig.Refresh.InitialBackoff(),
			Max:     finalConfig.Refresh.MaxBackoff(),
		}
	}
	if builder.tokenSigner == nil && len(builder.signingSecret) > 0 {
		signer, signerErr := NewHS256TransferSigner(
			builder.signingSecret,
			finalConfig.Transfer.SigningKeyID,
			finalConfig.Transfer.TTL(),
		)
		if signerErr != nil {
			return nil, mapBuildError(builder.errorMapper, signerErr)
		}
		signer.now = builder.clock
		builder.tokenSigner = signer
	}

	if (builder.accountStore == nil || builder.transferStore == nil) && builder.repositoryFactory != nil {
		if storeFactory, ok := builder.repositoryFactory.(RepositoryStoreFactory); ok {
			storeProvider, buildErr := storeFactory.BuildStores(builder.persistenceClient)
			if buildErr != nil {
				return nil, mapBuildError(builder.errorMapper, buildErr)
			}
			if storeProvider != nil {
				if builder.accountStore == nil {
					builder.accountStore = storeProvider.AccountStore()
				}
				if builder.transferStore == nil {
					builder.transferStore = storeProvider.TransferRequestStore()
				}
			}
		} else if storeProvider, ok := builder.repositoryFactory.(StoreProvider); ok {
			if builder.accountStore == nil {
				builder.accountStore = storeProvider.AccountStore()
			}
			if builder.transferStore == nil {
				builder.transferStore = storeProvider.TransferRequestStore()
			}
		}
	}

	return &Service{
		config:          finalConfig,
		logger:          logger,
		loggerProvider:  provider,
		metricsRecorder: builder.metricsRecorder,
		errorFactory:    builder.errorFactory,
		errorMapper:     builder.errorMapper,
		secretProvider:  builder.secretProvider,
		persistence:     builder.persistenceClient,
		repoFactory:     builder.repositoryFactory,
		configProvider:  builder.configProvider,
		optionsResolver: builder.optionsResolver,
		oauthStateStore: builder.oauthStateStore,
		refreshBackoff:  builder.refreshScheduler,
		tokenSigner:     builder.tokenSigner,
		registry:        builder.registry,
		accountStore:    builder.accountStore,
		transferStore:   builder.transferStore,
		now:             builder.clock,
	}, nil
}

func Setup(cfg Config, options ...Option) (*Service, error) {
	return NewService(cfg, options...)
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:           s.logger,
		LoggerProvider:   s.loggerProvider,
		MetricsRecorder:  s.metricsRecorder,
		ErrorFactory:     s.errorFactory,
		ErrorMapper:      s.errorMapper,
		SecretProvider:   s.secretProvider,
		ConfigProvider:   s.configProvider,
		OptionsResolver:  s.optionsResolver,
		OAuthStateStore:  s.oauthStateStore,
		RefreshScheduler: s.refreshBackoff,
		TokenSigner:      s.tokenSigner,
		Registry:         s.registry,
		AccountStore:     s.accountStore,
		TransferStore:    s.transferStore,
	}
}

type ConnectRequest struct {
	Provider    Provider
	UserID      string
	RedirectURI string
	State       string
	Scopes      []string
	Metadata    map[string]any
}

// Connect starts the authorization flow for a provider and stashes the CSRF
// state so the callback can be validated.
func (s *Service) Connect(ctx context.Context, req ConnectRequest) (response BeginAuthResponse, err error) {
	startedAt := s.clockNow()
	fields := map[string]any{
		"provider": string(req.Provider),
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "connect", err, fields)
	}()

	if err = req.Provider.Validate(); err != nil {
		err = s.mapError(err)
		return BeginAuthResponse{}, err
	}
	if strings.TrimSpace(req.UserID) == "" {
		err = s.mapError(fmt.Errorf("core: user id is required"))
		return BeginAuthResponse{}, err
	}
	state := strings.TrimSpace(req.State)
	if state == "" {
		generated, generateErr := generateOAuthState()
		if generateErr != nil {
			err = s.mapError(generateErr)
			return BeginAuthResponse{}, err
		}
		state = generated
	}

	provider, err := s.resolveProvider(req.Provider)
	if err != nil {
		return BeginAuthResponse{}, err
	}
	response, err = provider.BeginAuth(ctx, BeginAuthRequest{
		Provider:    req.Provider,
		UserID:      req.UserID,
		RedirectURI: req.RedirectURI,
		State:       state,
		Scopes:      append([]string(nil), req.Scopes...),
		Metadata:    copyAnyMap(req.Metadata),
	})
	if err != nil {
		err = s.mapError(err)
		return BeginAuthResponse{}, err
	}
	if strings.TrimSpace(response.State) == "" {
		response.State = state
	}

	if s.oauthStateStore != nil {
		saveErr := s.oauthStateStore.Save(ctx, OAuthStateRecord{
			State:       response.State,
			Provider:    req.Provider,
			UserID:      req.UserID,
			RedirectURI: req.RedirectURI,
			Metadata:    copyAnyMap(req.Metadata),
			CreatedAt:   s.clockNow(),
		})
		if saveErr != nil {
			err = s.mapError(saveErr)
			return BeginAuthResponse{}, err
		}
	}

	return response, nil
}

// ListAccounts returns every account row owned by the user, newest first.
func (s *Service) ListAccounts(ctx context.Context, ownerUserID string) ([]CloudAccount, error) {
	if s == nil || s.accountStore == nil {
		return nil, s.mapError(fmt.Errorf("core: account store is required"))
	}
	ownerUserID = strings.TrimSpace(ownerUserID)
	if ownerUserID == "" {
		return nil, s.mapError(fmt.Errorf("core: owner user id is required"))
	}
	accounts, err := s.accountStore.ListByOwner(ctx, ownerUserID)
	if err != nil {
		return nil, s.mapError(err)
	}
	return accounts, nil
}

// GetAccount returns a single account row by its internal id.
func (s *Service) GetAccount(ctx context.Context, accountID string) (CloudAccount, error) {
	if s == nil || s.accountStore == nil {
		return CloudAccount{}, s.mapError(fmt.Errorf("core: account store is required"))
	}
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return CloudAccount{}, s.mapError(fmt.Errorf("core: account id is required"))
	}
	account, err := s.accountStore.Get(ctx, accountID)
	if err != nil {
		return CloudAccount{}, s.mapError(err)
	}
	return account, nil
}

// Disconnect deactivates the account without deleting the row, so the owner
// can reconnect later and reclaim it with a matching verified email.
func (s *Service) Disconnect(ctx context.Context, accountID string, reason string) (err error) {
	startedAt := s.clockNow()
	fields := map[string]any{
		"account_id": accountID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "disconnect", err, fields)
	}()

	if s == nil || s.accountStore == nil {
		err = s.mapError(fmt.Errorf("core: account store is required"))
		return err
	}
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		err = s.mapError(fmt.Errorf("core: account id is required"))
		return err
	}
	if err = s.accountStore.Disconnect(ctx, accountID, reason); err != nil {
		err = s.mapError(err)
		return err
	}
	return nil
}

func (s *Service) resolveProvider(provider Provider) (AccountProvider, error) {
	if s == nil || s.registry == nil {
		return nil, s.mapError(fmt.Errorf("core: provider registry is required"))
	}
	registered, ok := s.registry.Get(string(provider))
	if !ok {
		return nil, s.mapError(fmt.Errorf("%w: %s", ErrProviderNotRegistered, provider))
	}
	return registered, nil
}

func (s *Service) clockNow() time.Time {
	if s == nil || s.now == nil {
		return time.Now().UTC()
	}
	return s.now()
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}
