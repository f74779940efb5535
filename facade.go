package cloudaccounts

import (
	"fmt"

	accountscommand "github.com/goliatone/go-cloud-accounts/command"
	accountsquery "github.com/goliatone/go-cloud-accounts/query"
)

type CommandQueryService interface {
	accountscommand.MutatingService
	accountsquery.AccountReader
}

type Commands struct {
	Connect          *accountscommand.ConnectCommand
	CompleteCallback *accountscommand.CompleteCallbackCommand
	ObtainToken      *accountscommand.ObtainTokenCommand
	ExecuteTransfer  *accountscommand.ExecuteTransferCommand
	Disconnect       *accountscommand.DisconnectCommand
	PurgeTransfers   *accountscommand.PurgeTransfersCommand
}

type Queries struct {
	GetAccount   *accountsquery.GetAccountQuery
	ListAccounts *accountsquery.ListAccountsQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

func NewFacade(service CommandQueryService) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("cloudaccounts: command/query service is required")
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		Connect:          accountscommand.NewConnectCommand(service),
		CompleteCallback: accountscommand.NewCompleteCallbackCommand(service),
		ObtainToken:      accountscommand.NewObtainTokenCommand(service),
		ExecuteTransfer:  accountscommand.NewExecuteTransferCommand(service),
		Disconnect:       accountscommand.NewDisconnectCommand(service),
		PurgeTransfers:   accountscommand.NewPurgeTransfersCommand(service),
	}
	facade.queries = Queries{
		GetAccount:   accountsquery.NewGetAccountQuery(service),
		ListAccounts: accountsquery.NewListAccountsQuery(service),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}
