package query

import (
	"context"

	"github.com/goliatone/go-cloud-accounts/core"
)

type AccountReader interface {
	GetAccount(ctx context.Context, accountID string) (core.CloudAccount, error)
	ListAccounts(ctx context.Context, ownerUserID string) ([]core.CloudAccount, error)
}

type GetAccountQuery struct {
	reader AccountReader
}

func NewGetAccountQuery(reader AccountReader) *GetAccountQuery {
	return &GetAccountQuery{reader: reader}
}

func (q *GetAccountQuery) Query(ctx context.Context, msg GetAccountMessage) (core.CloudAccount, error) {
	if q == nil || q.reader == nil {
		return core.CloudAccount{}, queryDependencyError("query: account reader is required")
	}
	return q.reader.GetAccount(ctx, msg.AccountID)
}

type ListAccountsQuery struct {
	reader AccountReader
}

func NewListAccountsQuery(reader AccountReader) *ListAccountsQuery {
	return &ListAccountsQuery{reader: reader}
}

func (q *ListAccountsQuery) Query(ctx context.Context, msg ListAccountsMessage) ([]core.CloudAccount, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: account reader is required")
	}
	return q.reader.ListAccounts(ctx, msg.OwnerUserID)
}
