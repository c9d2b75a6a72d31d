// Package trafficstats aggregates per-tunnel byte counters into the rolling
// send/receive rates the server logs once per stats interval and the client
// could expose to a UI. It mirrors the session counters each Session already
// keeps, but at process scope and with a smoothed rate on top of the raw
// cumulative totals.
package trafficstats

import (
	"context"
	"sync/atomic"
	"time"
)

// Snapshot is a point-in-time read of a Collector's counters, named after
// the direction from the tunnel core's point of view: Received is bytes
// read off the wire, Sent is bytes written to it.
type Snapshot struct {
	BytesReceived uint64
	BytesSent     uint64
	ReceiveRate   uint64 // bytes/sec
	SendRate      uint64 // bytes/sec
}

// HotPathFlushThresholdBytes is how much a Recorder buffers locally before
// it pushes pending bytes into the shared Collector, trading counter
// freshness for fewer atomic operations on the data-plane hot path.
const HotPathFlushThresholdBytes uint64 = 64 * 1024

// Collector tracks cumulative and smoothed-rate byte counts for one tunnel
// (the server's whole process, or one client connection). Totals are
// updated from any goroutine; the rate fields are written only by the
// sampler goroutine started by Start.
type Collector struct {
	bytesReceived atomic.Uint64
	bytesSent     atomic.Uint64
	receiveRate   atomic.Uint64
	sendRate      atomic.Uint64

	sampleInterval time.Duration
	emaAlpha       float64

	// accessed only from the single sampler goroutine in Start()
	lastReceived uint64
	lastSent     uint64
	receiveEMA   float64
	sendEMA      float64
	started      atomic.Bool
}

// NewCollector returns a Collector that samples rates every sampleInterval,
// smoothing them with an exponential moving average weighted by emaAlpha (0
// disables smoothing; both arguments are clamped to sane ranges).
func NewCollector(sampleInterval time.Duration, emaAlpha float64) *Collector {
	if sampleInterval <= 0 {
		sampleInterval = time.Second
	}
	if emaAlpha < 0 {
		emaAlpha = 0
	}
	if emaAlpha > 1 {
		emaAlpha = 1
	}
	return &Collector{
		sampleInterval: sampleInterval,
		emaAlpha:       emaAlpha,
	}
}

// Start runs the rate sampler until ctx is cancelled. A second call while
// one is already running is a no-op, so callers don't need to track whether
// they already started it.
func (c *Collector) Start(ctx context.Context) {
	if !c.started.CompareAndSwap(false, true) {
		return
	}
	defer c.started.Store(false)

	ticker := time.NewTicker(c.sampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.updateRates(c.sampleInterval)
		}
	}
}

// AddReceivedBytes is allocation-free and intended for hot paths.
func (c *Collector) AddReceivedBytes(bytes uint64) {
	if bytes == 0 {
		return
	}
	c.bytesReceived.Add(bytes)
}

// AddSentBytes is allocation-free and intended for hot paths.
func (c *Collector) AddSentBytes(bytes uint64) {
	if bytes == 0 {
		return
	}
	c.bytesSent.Add(bytes)
}

func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		BytesReceived: c.bytesReceived.Load(),
		BytesSent:     c.bytesSent.Load(),
		ReceiveRate:   c.receiveRate.Load(),
		SendRate:      c.sendRate.Load(),
	}
}

func (c *Collector) updateRates(interval time.Duration) {
	seconds := interval.Seconds()
	if seconds <= 0 {
		return
	}

	receivedNow := c.bytesReceived.Load()
	sentNow := c.bytesSent.Load()

	receivedDelta := receivedNow - c.lastReceived
	sentDelta := sentNow - c.lastSent
	c.lastReceived = receivedNow
	c.lastSent = sentNow

	receivePerSec := float64(receivedDelta) / seconds
	sendPerSec := float64(sentDelta) / seconds

	if c.emaAlpha > 0 {
		if c.receiveEMA == 0 {
			c.receiveEMA = receivePerSec
		} else {
			c.receiveEMA = c.emaAlpha*receivePerSec + (1-c.emaAlpha)*c.receiveEMA
		}
		if c.sendEMA == 0 {
			c.sendEMA = sendPerSec
		} else {
			c.sendEMA = c.emaAlpha*sendPerSec + (1-c.emaAlpha)*c.sendEMA
		}
		receivePerSec = c.receiveEMA
		sendPerSec = c.sendEMA
	}

	c.receiveRate.Store(uint64(receivePerSec))
	c.sendRate.Store(uint64(sendPerSec))
}
