package command

import (
	"context"

	"github.com/goliatone/go-cloud-accounts/core"
	gocmd "github.com/goliatone/go-command"
)

type MutatingService interface {
	Connect(ctx context.Context, req core.ConnectRequest) (core.BeginAuthResponse, error)
	CompleteCallback(ctx context.Context, req core.CallbackRequest) (core.CallbackResult, error)
	ObtainValidToken(ctx context.Context, accountID string) (core.ObtainTokenResult, error)
	ExecuteTransfer(ctx context.Context, req core.ExecuteTransferRequest) (core.ExecuteTransferResult, error)
	Disconnect(ctx context.Context, accountID string, reason string) error
	PurgeExpiredTransfers(ctx context.Context) (int64, error)
}

type ConnectCommand struct {
	service MutatingService
}

func NewConnectCommand(service MutatingService) *ConnectCommand {
	return &ConnectCommand{service: service}
}

func (c *ConnectCommand) Execute(ctx context.Context, msg ConnectMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: connect service is required")
	}
	out, err := c.service.Connect(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CompleteCallbackCommand struct {
	service MutatingService
}

func NewCompleteCallbackCommand(service MutatingService) *CompleteCallbackCommand {
	return &CompleteCallbackCommand{service: service}
}

func (c *CompleteCallbackCommand) Execute(ctx context.Context, msg CompleteCallbackMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: callback service is required")
	}
	out, err := c.service.CompleteCallback(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ObtainTokenCommand struct {
	service MutatingService
}

func NewObtainTokenCommand(service MutatingService) *ObtainTokenCommand {
	return &ObtainTokenCommand{service: service}
}

func (c *ObtainTokenCommand) Execute(ctx context.Context, msg ObtainTokenMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: token service is required")
	}
	out, err := c.service.ObtainValidToken(ctx, msg.AccountID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ExecuteTransferCommand struct {
	service MutatingService
}

func NewExecuteTransferCommand(service MutatingService) *ExecuteTransferCommand {
	return &ExecuteTransferCommand{service: service}
}

func (c *ExecuteTransferCommand) Execute(ctx context.Context, msg ExecuteTransferMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: transfer service is required")
	}
	out, err := c.service.ExecuteTransfer(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DisconnectCommand struct {
	service MutatingService
}

func NewDisconnectCommand(service MutatingService) *DisconnectCommand {
	return &DisconnectCommand{service: service}
}

func (c *DisconnectCommand) Execute(ctx context.Context, msg DisconnectMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: disconnect service is required")
	}
	return c.service.Disconnect(ctx, msg.AccountID, msg.Reason)
}

type PurgeTransfersCommand struct {
	service MutatingService
}

func NewPurgeTransfersCommand(service MutatingService) *PurgeTransfersCommand {
	return &PurgeTransfersCommand{service: service}
}

func (c *PurgeTransfersCommand) Execute(ctx context.Context, msg PurgeTransfersMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: purge service is required")
	}
	purged, err := c.service.PurgeExpiredTransfers(ctx)
	if err != nil {
		return err
	}
	storeResult(ctx, purged)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
