package applesnakes

import (
	"time"

	"github.com/bobbyswhip/miniapp-applesnakes-sub004/logger"
	"github.com/bobbyswhip/miniapp-applesnakes-sub004/metrics"
	"github.com/bobbyswhip/miniapp-applesnakes-sub004/types"
)

type Option func(*App)

func WithLogger(l logger.Logger) Option {
	return func(a *App) {
		a.logger = l
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(a *App) {
		a.metrics = r
	}
}

func WithNetwork(n types.Network) Option {
	return func(a *App) {
		a.network = n
	}
}

func WithTimeout(t time.Duration) Option {
	return func(a *App) {
		a.timeout = t
	}
}
