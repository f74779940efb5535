package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ Registry            = (*ProviderRegistry)(nil)
	_ TransferTokenSigner = (*HS256TransferSigner)(nil)
	_ OAuthStateStore     = (*MemoryOAuthStateStore)(nil)
	_ MetricsRecorder     = NopMetricsRecorder{}

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
