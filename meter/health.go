package meter

import (
	"context"
	"time"

	"github.com/Joonalai/profiler-qgis-plugin/profiler"
)

// Ping delivers one round-trip probe to a worker and returns once the
// worker has responded.
type Ping func(ctx context.Context) error

// HealthChecker measures a worker's responsiveness: the sample value is the
// round-trip latency of one ping in seconds, flagged as an anomaly when it
// exceeds the threshold.
type HealthChecker struct {
	name      string
	ping      Ping
	threshold time.Duration
	clock     profiler.Clock
}

// NewHealthChecker builds the checker around the worker's ping function.
func NewHealthChecker(name string, ping Ping, threshold time.Duration, clock profiler.Clock) *HealthChecker {
	if clock == nil {
		clock = profiler.NewClock()
	}
	return &HealthChecker{name: name, ping: ping, threshold: threshold, clock: clock}
}

func (h *HealthChecker) Name() string { return h.name }

// Measure pings the worker once.
func (h *HealthChecker) Measure(ctx context.Context) (Sample, error) {
	start := h.clock()
	if err := h.ping(ctx); err != nil {
		return Sample{}, err
	}
	end := h.clock()
	latency := time.Duration(end - start)
	return Sample{
		Time:    end,
		Value:   latency.Seconds(),
		Anomaly: h.threshold > 0 && latency > h.threshold,
	}, nil
}

// ChannelPing adapts a request channel served by a worker goroutine into a
// Ping: the worker receives the reply channel and closes it when it gets to
// the request.
func ChannelPing(requests chan<- chan struct{}) Ping {
	return func(ctx context.Context) error {
		reply := make(chan struct{})
		select {
		case requests <- reply:
		case <-ctx.Done():
			return ctx.Err()
		}
		select {
		case <-reply:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
