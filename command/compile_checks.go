package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[ConnectMessage]          = (*ConnectCommand)(nil)
	_ gocmd.Commander[CompleteCallbackMessage] = (*CompleteCallbackCommand)(nil)
	_ gocmd.Commander[ObtainTokenMessage]      = (*ObtainTokenCommand)(nil)
	_ gocmd.Commander[ExecuteTransferMessage]  = (*ExecuteTransferCommand)(nil)
	_ gocmd.Commander[DisconnectMessage]       = (*DisconnectCommand)(nil)
	_ gocmd.Commander[PurgeTransfersMessage]   = (*PurgeTransfersCommand)(nil)
)
