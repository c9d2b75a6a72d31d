package trafficstats

import "sync/atomic"

var globalCollector atomic.Pointer[Collector]

// SetGlobal installs the process-wide Collector the server engine publishes
// its aggregate traffic counters to. Passing nil detaches whatever was
// installed; a Recorder bound to a nil collector treats every call as a
// no-op.
func SetGlobal(collector *Collector) {
	globalCollector.Store(collector)
}

// Global returns the currently installed Collector, or nil if none has
// been set.
func Global() *Collector {
	return globalCollector.Load()
}
