package profiler

import "time"

// Clock returns monotonic nanoseconds since some fixed origin. The profiling
// pipeline and the macro recorder share only this timestamping primitive;
// tests substitute a fake to control timing.
type Clock func() int64

// NewClock returns a Clock anchored at the moment of the call, backed by the
// runtime's monotonic reading.
func NewClock() Clock {
	start := time.Now()
	return func() int64 {
		return int64(time.Since(start))
	}
}
