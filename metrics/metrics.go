// Package metrics abstracts event counters and latency observation so the
// payment client and gateway can run with Prometheus or with nothing at all.
package metrics

import "time"

type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}
