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

type TransferRequestStore struct {
	db   *bun.DB
	repo repository.Repository[*transferRequestRecord]
}

// Stage writes the pending transfer row for one
// (provider, provider_account_id, requesting_user_id) triple. Repeats of the
// same conflict land on the unique index and refresh the existing row in the
// same statement, so concurrent callbacks cannot duplicate it.
func (s *TransferRequestStore) Stage(ctx context.Context, in core.StageTransferInput) (core.TransferRequest, error) {
	if s == nil || s.db == nil {
		return core.TransferRequest{}, fmt.Errorf("sqlstore: transfer request store is not configured")
	}
	if err := in.Provider.Validate(); err != nil {
		return core.TransferRequest{}, err
	}
	in.ProviderAccountID = strings.TrimSpace(in.ProviderAccountID)
	in.RequestingUserID = strings.TrimSpace(in.RequestingUserID)
	in.ExistingOwnerID = strings.TrimSpace(in.ExistingOwnerID)
	in.AccountEmail = strings.TrimSpace(in.AccountEmail)
	if in.ProviderAccountID == "" || in.RequestingUserID == "" || in.ExistingOwnerID == "" {
		return core.TransferRequest{}, fmt.Errorf("sqlstore: provider account id, requesting user, and existing owner are required")
	}
	if in.ExpiresAt.IsZero() {
		return core.TransferRequest{}, fmt.Errorf("sqlstore: transfer expiry is required")
	}

	record := newTransferRequestRecord(in, time.Now().UTC())
	record.ID = uuid.NewString()

	_, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (provider, provider_account_id, requesting_user_id) DO UPDATE").
		Set("existing_owner_id = EXCLUDED.existing_owner_id").
		Set("account_email = EXCLUDED.account_email").
		Set("encrypted_access_token = EXCLUDED.encrypted_access_token").
		Set("encrypted_refresh_token = EXCLUDED.encrypted_refresh_token").
		Set("token_expiry = EXCLUDED.token_expiry").
		Set("status = EXCLUDED.status").
		Set("updated_at = EXCLUDED.updated_at").
		Set("expires_at = EXCLUDED.expires_at").
		Exec(ctx)
	if err != nil {
		return core.TransferRequest{}, err
	}

	staged, found, err := s.GetPending(ctx, in.Provider, in.ProviderAccountID, in.RequestingUserID)
	if err != nil {
		return core.TransferRequest{}, err
	}
	if !found {
		return core.TransferRequest{}, fmt.Errorf("sqlstore: staged transfer request not found after upsert")
	}
	return staged, nil
}

func (s *TransferRequestStore) GetPending(ctx context.Context, provider core.Provider, providerAccountID string, requestingUserID string) (core.TransferRequest, bool, error) {
	if s == nil || s.repo == nil {
		return core.TransferRequest{}, false, fmt.Errorf("sqlstore: transfer request store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("provider", "=", string(provider)),
		repository.SelectBy("provider_account_id", "=", strings.TrimSpace(providerAccountID)),
		repository.SelectBy("requesting_user_id", "=", strings.TrimSpace(requestingUserID)),
		repository.SelectBy("status", "=", string(core.TransferStatusPending)),
		repository.OrderBy("updated_at DESC"),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.TransferRequest{}, false, err
	}
	if len(records) == 0 {
		return core.TransferRequest{}, false, nil
	}
	return records[0].toDomain(), true, nil
}

func (s *TransferRequestStore) MarkConsumed(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: transfer request store is not configured")
	}
	trimmedID := strings.TrimSpace(id)
	if trimmedID == "" {
		return fmt.Errorf("sqlstore: transfer request id is required")
	}
	res, err := s.db.NewUpdate().
		Model((*transferRequestRecord)(nil)).
		Set("status = ?", string(core.TransferStatusConsumed)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", trimmedID).
		Where("status = ?", string(core.TransferStatusPending)).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("sqlstore: transfer request %s is not pending", trimmedID)
	}
	return nil
}

func (s *TransferRequestStore) Delete(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: transfer request store is not configured")
	}
	trimmedID := strings.TrimSpace(id)
	if trimmedID == "" {
		return fmt.Errorf("sqlstore: transfer request id is required")
	}
	_, err := s.db.NewDelete().
		Model((*transferRequestRecord)(nil)).
		Where("id = ?", trimmedID).
		Exec(ctx)
	return err
}

func (s *TransferRequestStore) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: transfer request store is not configured")
	}
	res, err := s.db.NewDelete().
		Model((*transferRequestRecord)(nil)).
		Where("expires_at < ?", before).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	affected, _ := res.RowsAffected()
	return affected, nil
}
