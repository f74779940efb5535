package query

import (
	"fmt"
	"strings"
)

const (
	TypeGetAccount   = "accounts.query.account.get"
	TypeListAccounts = "accounts.query.account.list"
)

type GetAccountMessage struct {
	AccountID string
}

func (GetAccountMessage) Type() string { return TypeGetAccount }

func (m GetAccountMessage) Validate() error {
	if strings.TrimSpace(m.AccountID) == "" {
		return fmt.Errorf("query: account id is required")
	}
	return nil
}

type ListAccountsMessage struct {
	OwnerUserID string
}

func (ListAccountsMessage) Type() string { return TypeListAccounts }

func (m ListAccountsMessage) Validate() error {
	if strings.TrimSpace(m.OwnerUserID) == "" {
		return fmt.Errorf("query: owner user id is required")
	}
	return nil
}
