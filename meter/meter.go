// Package meter provides periodically sampled scalar metrics that feed the
// profiling session as meter events: named values time-aligned with, but
// independent of, the span tree.
package meter

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Joonalai/profiler-qgis-plugin/collector"
	"github.com/Joonalai/profiler-qgis-plugin/profiler"
)

// Sample is one meter reading.
type Sample struct {
	// Time is the monotonic timestamp of the reading, nanoseconds.
	Time int64
	// Value is the reading itself, in the meter's unit (seconds for the
	// latency meters in this package).
	Value float64
	// Anomaly flags a reading the meter considers abnormal.
	Anomaly bool
}

// Meter measures one scalar on demand.
type Meter interface {
	Name() string
	Measure(ctx context.Context) (Sample, error)
}

// Sink accepts the poller's meter events; *processor.Session satisfies it.
type Sink interface {
	Ingest(ev collector.ProfileEvent) error
}

// Poller measures a set of meters on a fixed interval and pushes the
// readings into a session's intake.
type Poller struct {
	meters   []Meter
	interval time.Duration
	sink     Sink
	clock    profiler.Clock
	log      *zap.Logger
}

// NewPoller creates a poller; interval <= 0 defaults to one second.
func NewPoller(meters []Meter, interval time.Duration, sink Sink, clock profiler.Clock, log *zap.Logger) *Poller {
	if interval <= 0 {
		interval = time.Second
	}
	if clock == nil {
		clock = profiler.NewClock()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Poller{meters: meters, interval: interval, sink: sink, clock: clock, log: log}
}

// Run polls until ctx is cancelled. Meter failures and full queues are
// logged and skipped; a meter must not take the recording down.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.pollOnce(ctx)
		}
	}
}

func (p *Poller) pollOnce(ctx context.Context) {
	for _, m := range p.meters {
		sample, err := m.Measure(ctx)
		if err != nil {
			p.log.Warn("meter measurement failed", zap.String("meter", m.Name()), zap.Error(err))
			continue
		}
		if sample.Time == 0 {
			sample.Time = p.clock()
		}
		if sample.Anomaly {
			p.log.Warn("meter anomaly",
				zap.String("meter", m.Name()),
				zap.Float64("value", sample.Value))
		}
		ev := collector.Meter(m.Name(), sample.Time, sample.Value)
		if err := p.sink.Ingest(ev); err != nil {
			p.log.Warn("meter sample dropped", zap.String("meter", m.Name()), zap.Error(err))
		}
	}
}
