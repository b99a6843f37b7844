// Package applesnakes ties together the pieces behind the AppleSnakes game
// frontend: the x402 payment client, the CORS-avoiding proxy to the backend,
// cached chain readers and the panel/transaction UI state.
package applesnakes

import (
	"time"

	"github.com/bobbyswhip/miniapp-applesnakes-sub004/chain"
	"github.com/bobbyswhip/miniapp-applesnakes-sub004/logger"
	"github.com/bobbyswhip/miniapp-applesnakes-sub004/metrics"
	"github.com/bobbyswhip/miniapp-applesnakes-sub004/panel"
	"github.com/bobbyswhip/miniapp-applesnakes-sub004/payment"
	"github.com/bobbyswhip/miniapp-applesnakes-sub004/proxy"
	"github.com/bobbyswhip/miniapp-applesnakes-sub004/types"
)

// App bundles the long-lived components of one session.
type App struct {
	Payments     *payment.Client
	Proxy        *proxy.Handler
	Reader       *chain.Reader
	Panels       *panel.Coordinator
	Transactions *panel.Tracker

	logger  logger.Logger
	metrics metrics.Recorder
	network types.Network
	timeout time.Duration
}

// New wires an App for the given upstream and RPC endpoints. The signer may
// be nil when no wallet is connected yet; paid requests then fail fast.
func New(upstreamBase, rpcURL string, signer payment.Signer, opts ...Option) (*App, error) {
	app := &App{
		Panels:       panel.NewCoordinator(),
		Transactions: panel.NewTracker(),
		logger:       logger.NoopLogger{},
		metrics:      metrics.NoopRecorder{},
		network:      types.NetworkBase,
		timeout:      payment.DefaultTimeout,
	}
	for _, opt := range opts {
		opt(app)
	}

	app.Payments = payment.NewClient(signer,
		payment.WithNetwork(app.network),
		payment.WithLogger(app.logger),
		payment.WithMetrics(app.metrics),
		payment.WithTimeout(app.timeout),
	)

	proxyHandler, err := proxy.NewHandler(upstreamBase,
		proxy.WithLogger(app.logger),
		proxy.WithMetrics(app.metrics),
	)
	if err != nil {
		return nil, err
	}
	app.Proxy = proxyHandler

	reader, err := chain.NewReader(rpcURL, chain.WithLogger(app.logger))
	if err != nil {
		return nil, err
	}
	app.Reader = reader

	return app, nil
}

// Close releases held connections.
func (a *App) Close() {
	if a.Reader != nil {
		a.Reader.Close()
	}
}
