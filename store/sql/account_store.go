package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-cloud-accounts/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type AccountStore struct {
	db   *bun.DB
	repo repository.Repository[*cloudAccountRecord]
}

func (s *AccountStore) Get(ctx context.Context, id string) (core.CloudAccount, error) {
	if s == nil || s.repo == nil {
		return core.CloudAccount{}, fmt.Errorf("sqlstore: account store is not configured")
	}
	record, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return core.CloudAccount{}, err
	}
	return record.toDomain(), nil
}

func (s *AccountStore) FindByProviderAccount(ctx context.Context, provider core.Provider, providerAccountID string) (core.CloudAccount, bool, error) {
	if s == nil || s.repo == nil {
		return core.CloudAccount{}, false, fmt.Errorf("sqlstore: account store is not configured")
	}
	if err := provider.Validate(); err != nil {
		return core.CloudAccount{}, false, err
	}
	providerAccountID = strings.TrimSpace(providerAccountID)
	if providerAccountID == "" {
		return core.CloudAccount{}, false, fmt.Errorf("sqlstore: provider account id is required")
	}

	records, _, err := s.repo.List(ctx,
		repository.SelectBy("provider", "=", string(provider)),
		repository.SelectBy("provider_account_id", "=", providerAccountID),
		repository.OrderBy("is_active DESC"),
		repository.OrderBy("updated_at DESC"),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.CloudAccount{}, false, err
	}
	if len(records) == 0 {
		return core.CloudAccount{}, false, nil
	}
	return records[0].toDomain(), true, nil
}

func (s *AccountStore) ListByOwner(ctx context.Context, ownerUserID string) ([]core.CloudAccount, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: account store is not configured")
	}
	ownerUserID = strings.TrimSpace(ownerUserID)
	if ownerUserID == "" {
		return nil, fmt.Errorf("sqlstore: owner user id is required")
	}

	records, _, err := s.repo.List(ctx,
		repository.SelectBy("owner_user_id", "=", ownerUserID),
		repository.OrderBy("created_at ASC"),
	)
	if err != nil {
		return nil, err
	}

	out := make([]core.CloudAccount, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *AccountStore) Upsert(ctx context.Context, in core.UpsertAccountInput) (core.CloudAccount, error) {
	if s == nil || s.db == nil {
		return core.CloudAccount{}, fmt.Errorf("sqlstore: account store is not configured")
	}
	if err := in.Provider.Validate(); err != nil {
		return core.CloudAccount{}, err
	}
	in.ProviderAccountID = strings.TrimSpace(in.ProviderAccountID)
	in.OwnerUserID = strings.TrimSpace(in.OwnerUserID)
	in.AccountEmail = strings.TrimSpace(in.AccountEmail)
	if in.ProviderAccountID == "" {
		return core.CloudAccount{}, fmt.Errorf("sqlstore: provider account id is required")
	}
	if in.OwnerUserID == "" {
		return core.CloudAccount{}, fmt.Errorf("sqlstore: owner user id is required")
	}
	now := time.Now().UTC()

	var out core.CloudAccount
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing, err := s.findByProviderAccountTx(ctx, tx, in.Provider, in.ProviderAccountID)
		if err != nil {
			return err
		}
		if existing == nil {
			record := newCloudAccountRecord(in, now)
			record.ID = uuid.NewString()
			if _, createErr := tx.NewInsert().Model(record).Exec(ctx); createErr != nil {
				return createErr
			}
			out = record.toDomain()
			return nil
		}

		existing.OwnerUserID = in.OwnerUserID
		existing.AccountEmail = in.AccountEmail
		existing.EncryptedAccessToken = append([]byte(nil), in.EncryptedAccessToken...)
		existing.EncryptedRefreshToken = append([]byte(nil), in.EncryptedRefreshToken...)
		existing.TokenExpiry = in.TokenExpiry
		existing.IsActive = true
		existing.DisconnectedAt = nil
		existing.DisconnectReason = ""
		existing.UpdatedAt = now

		if _, updateErr := tx.NewUpdate().
			Model(existing).
			Where("id = ?", existing.ID).
			Exec(ctx); updateErr != nil {
			return updateErr
		}
		out = existing.toDomain()
		return nil
	})
	if err != nil {
		return core.CloudAccount{}, err
	}
	return out, nil
}

func (s *AccountStore) SaveTokens(ctx context.Context, in core.SaveAccountTokensInput) (core.CloudAccount, error) {
	if s == nil || s.repo == nil {
		return core.CloudAccount{}, fmt.Errorf("sqlstore: account store is not configured")
	}
	accountID := strings.TrimSpace(in.AccountID)
	if accountID == "" {
		return core.CloudAccount{}, fmt.Errorf("sqlstore: account id is required")
	}
	if len(in.EncryptedAccessToken) == 0 {
		return core.CloudAccount{}, fmt.Errorf("sqlstore: encrypted access token is required")
	}

	current, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		return core.CloudAccount{}, err
	}
	current.EncryptedAccessToken = append([]byte(nil), in.EncryptedAccessToken...)
	if len(in.EncryptedRefreshToken) > 0 {
		current.EncryptedRefreshToken = append([]byte(nil), in.EncryptedRefreshToken...)
	}
	current.TokenExpiry = in.TokenExpiry
	current.IsActive = true
	current.DisconnectedAt = nil
	current.DisconnectReason = ""
	current.UpdatedAt = time.Now().UTC()

	updated, err := s.repo.Update(ctx, current, repository.UpdateByID(accountID))
	if err != nil {
		return core.CloudAccount{}, err
	}
	return updated.toDomain(), nil
}

func (s *AccountStore) Disconnect(ctx context.Context, id string, reason string) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: account store is not configured")
	}
	trimmedID := strings.TrimSpace(id)
	if trimmedID == "" {
		return fmt.Errorf("sqlstore: account id is required")
	}
	current, err := s.repo.GetByID(ctx, trimmedID)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	current.IsActive = false
	current.DisconnectedAt = &now
	current.DisconnectReason = strings.TrimSpace(reason)
	current.EncryptedAccessToken = nil
	current.EncryptedRefreshToken = nil
	current.UpdatedAt = now

	_, err = s.repo.Update(ctx, current, repository.UpdateByID(trimmedID))
	return err
}

func (s *AccountStore) ReassignOwner(ctx context.Context, in core.ReassignOwnerInput) (core.CloudAccount, bool, error) {
	if s == nil || s.db == nil {
		return core.CloudAccount{}, false, fmt.Errorf("sqlstore: account store is not configured")
	}
	accountID := strings.TrimSpace(in.AccountID)
	expectedOwnerID := strings.TrimSpace(in.ExpectedOwnerID)
	newOwnerID := strings.TrimSpace(in.NewOwnerID)
	if accountID == "" || expectedOwnerID == "" || newOwnerID == "" {
		return core.CloudAccount{}, false, fmt.Errorf("sqlstore: account id, expected owner, and new owner are required")
	}
	now := time.Now().UTC()

	query := s.db.NewUpdate().
		Model((*cloudAccountRecord)(nil)).
		Set("owner_user_id = ?", newOwnerID).
		Set("is_active = ?", true).
		Set("disconnected_at = NULL").
		Set("disconnect_reason = ?", "").
		Set("updated_at = ?", now).
		Where("id = ?", accountID).
		Where("owner_user_id = ?", expectedOwnerID)
	if email := strings.TrimSpace(in.AccountEmail); email != "" {
		query = query.Set("account_email = ?", email)
	}
	if len(in.EncryptedAccessToken) > 0 {
		query = query.Set("encrypted_access_token = ?", in.EncryptedAccessToken)
	}
	if len(in.EncryptedRefreshToken) > 0 {
		query = query.Set("encrypted_refresh_token = ?", in.EncryptedRefreshToken)
	}
	if !in.TokenExpiry.IsZero() {
		query = query.Set("token_expiry = ?", in.TokenExpiry)
	}

	res, err := query.Exec(ctx)
	if err != nil {
		return core.CloudAccount{}, false, err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return core.CloudAccount{}, false, nil
	}

	account, err := s.Get(ctx, accountID)
	if err != nil {
		return core.CloudAccount{}, false, err
	}
	return account, true, nil
}

func (s *AccountStore) findByProviderAccountTx(ctx context.Context, tx bun.Tx, provider core.Provider, providerAccountID string) (*cloudAccountRecord, error) {
	records := []*cloudAccountRecord{}
	err := tx.NewSelect().
		Model(&records).
		Where("?TableAlias.provider = ?", string(provider)).
		Where("?TableAlias.provider_account_id = ?", providerAccountID).
		Order("is_active DESC").
		Order("updated_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}
