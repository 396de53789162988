package meter

import (
	"context"
	"errors"
	"time"

	"github.com/Joonalai/profiler-qgis-plugin/profiler"
)

// ErrRecoveryTimeout reports an event loop that never settled within the
// meter's deadline.
var ErrRecoveryTimeout = errors.New("event loop did not recover before timeout")

// RecoveryMeter measures how long the host's event loop takes to become
// responsive again after a stall. Drain is called repeatedly (the host's
// process-pending-events primitive); the meter stops once one drain round
// finishes under the normal threshold and reports the total time spent.
type RecoveryMeter struct {
	name    string
	drain   func()
	normal  time.Duration
	timeout time.Duration
	clock   profiler.Clock
}

// NewRecoveryMeter builds the meter. normal is the drain duration considered
// responsive; timeout bounds the whole measurement.
func NewRecoveryMeter(name string, drain func(), normal, timeout time.Duration, clock profiler.Clock) *RecoveryMeter {
	if clock == nil {
		clock = profiler.NewClock()
	}
	return &RecoveryMeter{name: name, drain: drain, normal: normal, timeout: timeout, clock: clock}
}

func (m *RecoveryMeter) Name() string { return m.name }

// Measure drains the event loop until a round completes within the normal
// threshold. The sample value is the total recovery time in seconds; the
// anomaly flag is set when more than one round was needed.
func (m *RecoveryMeter) Measure(ctx context.Context) (Sample, error) {
	begin := m.clock()
	anomaly := false
	for {
		if err := ctx.Err(); err != nil {
			return Sample{}, err
		}
		roundStart := m.clock()
		m.drain()
		round := time.Duration(m.clock() - roundStart)
		if round <= m.normal {
			break
		}
		anomaly = true
		if time.Duration(m.clock()-begin) > m.timeout {
			return Sample{}, ErrRecoveryTimeout
		}
	}
	end := m.clock()
	return Sample{
		Time:    end,
		Value:   time.Duration(end - begin).Seconds(),
		Anomaly: anomaly,
	}, nil
}
