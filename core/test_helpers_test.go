package core

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

type testProvider struct {
	id               string
	beginResponse    BeginAuthResponse
	completeResponse CompleteAuthResponse
	completeErr      error
	refreshToken     ProviderToken
	refreshErrs      []error
	refreshCalls     int
}

func (p *testProvider) ID() string { return p.id }

func (p *testProvider) BeginAuth(_ context.Context, req BeginAuthRequest) (BeginAuthResponse, error) {
	response := p.beginResponse
	if response.URL == "" {
		response.URL = "https://example.com/auth?state=" + req.State
	}
	if response.State == "" {
		response.State = req.State
	}
	return response, nil
}

func (p *testProvider) CompleteAuth(context.Context, CompleteAuthRequest) (CompleteAuthResponse, error) {
	if p.completeErr != nil {
		return CompleteAuthResponse{}, p.completeErr
	}
	return p.completeResponse, nil
}

func (p *testProvider) Refresh(context.Context, string) (ProviderToken, error) {
	p.refreshCalls++
	if len(p.refreshErrs) > 0 {
		err := p.refreshErrs[0]
		p.refreshErrs = p.refreshErrs[1:]
		if err != nil {
			return ProviderToken{}, err
		}
	}
	return p.refreshToken, nil
}

type testSecretProvider struct{}

func (testSecretProvider) Encrypt(_ context.Context, plaintext []byte) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("test secret provider: plaintext is required")
	}
	encoded := base64.StdEncoding.EncodeToString(plaintext)
	return []byte("enc:" + encoded), nil
}

func (testSecretProvider) Decrypt(_ context.Context, ciphertext []byte) ([]byte, error) {
	value := strings.TrimSpace(string(ciphertext))
	if value == "" || !strings.HasPrefix(value, "enc:") {
		return nil, fmt.Errorf("test secret provider: invalid ciphertext")
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, "enc:"))
	if err != nil {
		return nil, fmt.Errorf("test secret provider: decode ciphertext: %w", err)
	}
	return decoded, nil
}

func mustEncrypt(plaintext string) []byte {
	encrypted, err := testSecretProvider{}.Encrypt(context.Background(), []byte(plaintext))
	if err != nil {
		panic(err)
	}
	return encrypted
}

type memoryAccountStore struct {
	mu   sync.Mutex
	next int
	byID map[string]CloudAccount
}

func newMemoryAccountStore() *memoryAccountStore {
	return &memoryAccountStore{byID: map[string]CloudAccount{}}
}

func (s *memoryAccountStore) seed(account CloudAccount) CloudAccount {
	s.mu.Lock()
	defer s.mu.Unlock()
	if account.ID == "" {
		s.next++
		account.ID = fmt.Sprintf("acct_%d", s.next)
	}
	s.byID[account.ID] = account
	return account
}

func (s *memoryAccountStore) Get(_ context.Context, id string) (CloudAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.byID[id]
	if !ok {
		return CloudAccount{}, fmt.Errorf("core: account not found: %s", id)
	}
	return account, nil
}

func (s *memoryAccountStore) FindByProviderAccount(_ context.Context, provider Provider, providerAccountID string) (CloudAccount, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var match CloudAccount
	found := false
	for _, account := range s.byID {
		if account.Provider != provider || account.ProviderAccountID != providerAccountID {
			continue
		}
		if !found || (account.IsActive && !match.IsActive) {
			match = account
			found = true
		}
	}
	return match, found, nil
}

func (s *memoryAccountStore) ListByOwner(_ context.Context, ownerUserID string) ([]CloudAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []CloudAccount{}
	for _, account := range s.byID {
		if account.OwnerUserID == ownerUserID {
			out = append(out, account)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memoryAccountStore) Upsert(_ context.Context, in UpsertAccountInput) (CloudAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, account := range s.byID {
		if account.Provider == in.Provider && account.ProviderAccountID == in.ProviderAccountID {
			account.OwnerUserID = in.OwnerUserID
			account.AccountEmail = in.AccountEmail
			account.EncryptedAccessToken = in.EncryptedAccessToken
			account.EncryptedRefreshToken = in.EncryptedRefreshToken
			account.TokenExpiry = in.TokenExpiry
			account.IsActive = true
			account.DisconnectedAt = nil
			s.byID[id] = account
			return account, nil
		}
	}
	s.next++
	account := CloudAccount{
		ID:                    fmt.Sprintf("acct_%d", s.next),
		Provider:              in.Provider,
		ProviderAccountID:     in.ProviderAccountID,
		OwnerUserID:           in.OwnerUserID,
		AccountEmail:          in.AccountEmail,
		EncryptedAccessToken:  in.EncryptedAccessToken,
		EncryptedRefreshToken: in.EncryptedRefreshToken,
		TokenExpiry:           in.TokenExpiry,
		IsActive:              true,
	}
	s.byID[account.ID] = account
	return account, nil
}

func (s *memoryAccountStore) SaveTokens(_ context.Context, in SaveAccountTokensInput) (CloudAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.byID[in.AccountID]
	if !ok {
		return CloudAccount{}, fmt.Errorf("core: account not found: %s", in.AccountID)
	}
	account.EncryptedAccessToken = in.EncryptedAccessToken
	if len(in.EncryptedRefreshToken) > 0 {
		account.EncryptedRefreshToken = in.EncryptedRefreshToken
	}
	account.TokenExpiry = in.TokenExpiry
	account.IsActive = true
	s.byID[account.ID] = account
	return account, nil
}

func (s *memoryAccountStore) Disconnect(_ context.Context, id string, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("core: account not found: %s", id)
	}
	now := time.Now().UTC()
	account.IsActive = false
	account.DisconnectedAt = &now
	account.EncryptedAccessToken = nil
	account.EncryptedRefreshToken = nil
	s.byID[id] = account
	return nil
}

func (s *memoryAccountStore) ReassignOwner(_ context.Context, in ReassignOwnerInput) (CloudAccount, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.byID[in.AccountID]
	if !ok {
		return CloudAccount{}, false, fmt.Errorf("core: account not found: %s", in.AccountID)
	}
	if account.OwnerUserID != in.ExpectedOwnerID {
		return CloudAccount{}, false, nil
	}
	account.OwnerUserID = in.NewOwnerID
	account.IsActive = true
	account.DisconnectedAt = nil
	if in.AccountEmail != "" {
		account.AccountEmail = in.AccountEmail
	}
	if len(in.EncryptedAccessToken) > 0 {
		account.EncryptedAccessToken = in.EncryptedAccessToken
	}
	if len(in.EncryptedRefreshToken) > 0 {
		account.EncryptedRefreshToken = in.EncryptedRefreshToken
	}
	if !in.TokenExpiry.IsZero() {
		account.TokenExpiry = in.TokenExpiry
	}
	s.byID[account.ID] = account
	return account, true, nil
}

type memoryTransferStore struct {
	mu     sync.Mutex
	next   int
	byID   map[string]TransferRequest
	stages int
}

func newMemoryTransferStore() *memoryTransferStore {
	return &memoryTransferStore{byID: map[string]TransferRequest{}}
}

func (s *memoryTransferStore) Stage(_ context.Context, in StageTransferInput) (TransferRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stages++
	for id, request := range s.byID {
		if request.Provider == in.Provider &&
			request.ProviderAccountID == in.ProviderAccountID &&
			request.RequestingUserID == in.RequestingUserID {
			request.ExistingOwnerID = in.ExistingOwnerID
			request.AccountEmail = in.AccountEmail
			request.EncryptedAccessToken = in.EncryptedAccessToken
			request.EncryptedRefreshToken = in.EncryptedRefreshToken
			request.TokenExpiry = in.TokenExpiry
			request.Status = TransferStatusPending
			request.ExpiresAt = in.ExpiresAt
			s.byID[id] = request
			return request, nil
		}
	}
	s.next++
	request := TransferRequest{
		ID:                    fmt.Sprintf("transfer_%d", s.next),
		Provider:              in.Provider,
		ProviderAccountID:     in.ProviderAccountID,
		RequestingUserID:      in.RequestingUserID,
		ExistingOwnerID:       in.ExistingOwnerID,
		AccountEmail:          in.AccountEmail,
		EncryptedAccessToken:  in.EncryptedAccessToken,
		EncryptedRefreshToken: in.EncryptedRefreshToken,
		TokenExpiry:           in.TokenExpiry,
		Status:                TransferStatusPending,
		ExpiresAt:             in.ExpiresAt,
	}
	s.byID[request.ID] = request
	return request, nil
}

func (s *memoryTransferStore) GetPending(_ context.Context, provider Provider, providerAccountID string, requestingUserID string) (TransferRequest, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, request := range s.byID {
		if request.Provider == provider &&
			request.ProviderAccountID == providerAccountID &&
			request.RequestingUserID == requestingUserID &&
			request.Status == TransferStatusPending {
			return request, true, nil
		}
	}
	return TransferRequest{}, false, nil
}

func (s *memoryTransferStore) MarkConsumed(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	request, ok := s.byID[id]
	if !ok || request.Status != TransferStatusPending {
		return fmt.Errorf("core: transfer request is not pending: %s", id)
	}
	request.Status = TransferStatusConsumed
	s.byID[id] = request
	return nil
}

func (s *memoryTransferStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, id)
	return nil
}

func (s *memoryTransferStore) PurgeExpired(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var purged int64
	for id, request := range s.byID {
		if !request.ExpiresAt.IsZero() && request.ExpiresAt.Before(before) {
			delete(s.byID, id)
			purged++
		}
	}
	return purged, nil
}

type recordingMetrics struct {
	mu       sync.Mutex
	counters map[string]int64
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{counters: map[string]int64{}}
}

func (m *recordingMetrics) IncCounter(_ context.Context, name string, value int64, _ map[string]string) {
	m.mu.Lock()
	m.counters[name] += value
	m.mu.Unlock()
}

func (m *recordingMetrics) ObserveHistogram(context.Context, string, float64, map[string]string) {}

func (m *recordingMetrics) count(name string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[name]
}
