package command

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-cloud-accounts/core"
)

const (
	TypeConnect          = "accounts.command.connect"
	TypeCompleteCallback = "accounts.command.callback.complete"
	TypeObtainToken      = "accounts.command.token.obtain"
	TypeExecuteTransfer  = "accounts.command.transfer.execute"
	TypeDisconnect       = "accounts.command.disconnect"
	TypePurgeTransfers   = "accounts.command.transfer.purge"
)

type ConnectMessage struct {
	Request core.ConnectRequest
}

func (ConnectMessage) Type() string { return TypeConnect }

func (m ConnectMessage) Validate() error {
	if err := m.Request.Provider.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(m.Request.UserID) == "" {
		return fmt.Errorf("command: user id is required")
	}
	return nil
}

type CompleteCallbackMessage struct {
	Request core.CallbackRequest
}

func (CompleteCallbackMessage) Type() string { return TypeCompleteCallback }

func (m CompleteCallbackMessage) Validate() error {
	if err := m.Request.Provider.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(m.Request.UserID) == "" {
		return fmt.Errorf("command: user id is required")
	}
	if strings.TrimSpace(m.Request.Code) == "" {
		return fmt.Errorf("command: auth code is required")
	}
	return nil
}

type ObtainTokenMessage struct {
	AccountID string
}

func (ObtainTokenMessage) Type() string { return TypeObtainToken }

func (m ObtainTokenMessage) Validate() error {
	if strings.TrimSpace(m.AccountID) == "" {
		return fmt.Errorf("command: account id is required")
	}
	return nil
}

type ExecuteTransferMessage struct {
	Request core.ExecuteTransferRequest
}

func (ExecuteTransferMessage) Type() string { return TypeExecuteTransfer }

func (m ExecuteTransferMessage) Validate() error {
	if strings.TrimSpace(m.Request.Token) == "" {
		return fmt.Errorf("command: transfer token is required")
	}
	if strings.TrimSpace(m.Request.ConfirmingUserID) == "" {
		return fmt.Errorf("command: confirming user id is required")
	}
	return nil
}

type DisconnectMessage struct {
	AccountID string
	Reason    string
}

func (DisconnectMessage) Type() string { return TypeDisconnect }

func (m DisconnectMessage) Validate() error {
	if strings.TrimSpace(m.AccountID) == "" {
		return fmt.Errorf("command: account id is required")
	}
	return nil
}

type PurgeTransfersMessage struct{}

func (PurgeTransfersMessage) Type() string { return TypePurgeTransfers }

func (PurgeTransfersMessage) Validate() error { return nil }
