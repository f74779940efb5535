package query

import (
	"context"
	"fmt"
	"testing"

	"github.com/goliatone/go-cloud-accounts/core"
)

func TestGetAccountQuery_DelegatesToReader(t *testing.T) {
	expected := core.CloudAccount{ID: "acct_1", OwnerUserID: "usr_1", Provider: core.ProviderDrive}
	called := false

	reader := stubAccountReader{
		getAccountFn: func(_ context.Context, accountID string) (core.CloudAccount, error) {
			called = true
			if accountID != "acct_1" {
				t.Fatalf("unexpected account id %q", accountID)
			}
			return expected, nil
		},
	}

	account, err := NewGetAccountQuery(reader).Query(context.Background(), GetAccountMessage{AccountID: "acct_1"})
	if err != nil {
		t.Fatalf("query account: %v", err)
	}
	if !called {
		t.Fatalf("expected reader invocation")
	}
	if account.ID != expected.ID || account.OwnerUserID != expected.OwnerUserID {
		t.Fatalf("unexpected account: %#v", account)
	}
}

func TestListAccountsQuery_DelegatesToReader(t *testing.T) {
	reader := stubAccountReader{
		listAccountsFn: func(_ context.Context, ownerUserID string) ([]core.CloudAccount, error) {
			if ownerUserID != "usr_1" {
				t.Fatalf("unexpected owner id %q", ownerUserID)
			}
			return []core.CloudAccount{
				{ID: "acct_1", Provider: core.ProviderDrive},
				{ID: "acct_2", Provider: core.ProviderDropbox},
			}, nil
		},
	}

	accounts, err := NewListAccountsQuery(reader).Query(context.Background(), ListAccountsMessage{OwnerUserID: "usr_1"})
	if err != nil {
		t.Fatalf("query accounts: %v", err)
	}
	if len(accounts) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(accounts))
	}
}

func TestQueries_RequireReader(t *testing.T) {
	if _, err := NewGetAccountQuery(nil).Query(context.Background(), GetAccountMessage{AccountID: "acct_1"}); err == nil {
		t.Fatalf("expected get query to require a reader")
	}
	if _, err := NewListAccountsQuery(nil).Query(context.Background(), ListAccountsMessage{OwnerUserID: "usr_1"}); err == nil {
		t.Fatalf("expected list query to require a reader")
	}
}

func TestQueryMessageValidation(t *testing.T) {
	tests := []struct {
		name    string
		msg     interface{ Validate() error }
		wantErr bool
	}{
		{name: "get account valid", msg: GetAccountMessage{AccountID: "acct_1"}, wantErr: false},
		{name: "get account missing id", msg: GetAccountMessage{}, wantErr: true},
		{name: "list accounts valid", msg: ListAccountsMessage{OwnerUserID: "usr_1"}, wantErr: false},
		{name: "list accounts missing owner", msg: ListAccountsMessage{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

type stubAccountReader struct {
	getAccountFn   func(ctx context.Context, accountID string) (core.CloudAccount, error)
	listAccountsFn func(ctx context.Context, ownerUserID string) ([]core.CloudAccount, error)
}

func (s stubAccountReader) GetAccount(ctx context.Context, accountID string) (core.CloudAccount, error) {
	if s.getAccountFn == nil {
		return core.CloudAccount{}, fmt.Errorf("get account not configured")
	}
	return s.getAccountFn(ctx, accountID)
}

func (s stubAccountReader) ListAccounts(ctx context.Context, ownerUserID string) ([]core.CloudAccount, error) {
	if s.listAccountsFn == nil {
		return nil, fmt.Errorf("list accounts not configured")
	}
	return s.listAccountsFn(ctx, ownerUserID)
}

var _ AccountReader = stubAccountReader{}
