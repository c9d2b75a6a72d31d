package trafficstats

// Recorder batches received/sent byte counts and flushes them to a
// Collector once the accumulated total reaches HotPathFlushThresholdBytes.
// A data-plane loop owns exactly one Recorder for its lifetime and defers
// Flush so nothing pending is lost when the loop exits.
//
// A Recorder is NOT safe for concurrent use — create one per goroutine.
type Recorder struct {
	collector       *Collector
	pendingReceived uint64
	pendingSent     uint64
}

// NewRecorder returns a Recorder bound to the current Global() collector.
// If the global collector is nil, all Record/Flush calls are no-ops.
func NewRecorder() Recorder {
	return Recorder{collector: Global()}
}

// NewRecorderFor returns a Recorder bound directly to collector, for
// callers (such as a single client connection) that keep their own
// Collector instead of publishing through Global.
func NewRecorderFor(collector *Collector) Recorder {
	return Recorder{collector: collector}
}

func (r *Recorder) RecordReceived(bytes uint64) {
	if r.collector == nil || bytes == 0 {
		return
	}
	r.pendingReceived += bytes
	if r.pendingReceived >= HotPathFlushThresholdBytes {
		r.collector.AddReceivedBytes(r.pendingReceived)
		r.pendingReceived = 0
	}
}

func (r *Recorder) RecordSent(bytes uint64) {
	if r.collector == nil || bytes == 0 {
		return
	}
	r.pendingSent += bytes
	if r.pendingSent >= HotPathFlushThresholdBytes {
		r.collector.AddSentBytes(r.pendingSent)
		r.pendingSent = 0
	}
}

func (r *Recorder) Flush() {
	if r.collector == nil {
		return
	}
	if r.pendingReceived != 0 {
		r.collector.AddReceivedBytes(r.pendingReceived)
		r.pendingReceived = 0
	}
	if r.pendingSent != 0 {
		r.collector.AddSentBytes(r.pendingSent)
		r.pendingSent = 0
	}
}
