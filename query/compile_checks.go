package query

import (
	"github.com/goliatone/go-cloud-accounts/core"
	gocmd "github.com/goliatone/go-command"
)

var (
	_ gocmd.Querier[GetAccountMessage, core.CloudAccount]     = (*GetAccountQuery)(nil)
	_ gocmd.Querier[ListAccountsMessage, []core.CloudAccount] = (*ListAccountsQuery)(nil)
)
