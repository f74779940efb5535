package sqlstore

import "github.com/goliatone/go-cloud-accounts/core"

var (
	_ core.AccountStore           = (*AccountStore)(nil)
	_ core.TransferRequestStore   = (*TransferRequestStore)(nil)
	_ core.StoreProvider          = (*RepositoryFactory)(nil)
	_ core.RepositoryStoreFactory = (*RepositoryFactory)(nil)
)
