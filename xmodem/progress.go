package xmodem

import (
	"fmt"
	"sync"
	"time"
)

// ProgressKind identifies a point in the transfer lifecycle.
type ProgressKind int

const (
	// ProgressWaiting: the sender is blocked waiting for the receiver's NAK.
	ProgressWaiting ProgressKind = iota

	// ProgressStarted: the handshake completed.
	ProgressStarted

	// ProgressPacket: one packet was exchanged and acknowledged.
	ProgressPacket
)

func (k ProgressKind) String() string {
	switch k {
	case ProgressWaiting:
		return "waiting"
	case ProgressStarted:
		return "started"
	case ProgressPacket:
		return "packet"
	default:
		return "unknown"
	}
}

// ProgressEvent is delivered to a ProgressFunc by the session engine.
type ProgressEvent struct {
	Kind ProgressKind

	// Seq is the sequence number of the packet for ProgressPacket events.
	Seq byte
}

func (e ProgressEvent) String() string {
	if e.Kind == ProgressPacket {
		return fmt.Sprintf("packet %d", e.Seq)
	}
	return e.Kind.String()
}

// ProgressFunc observes progress events. It is called synchronously from
// the transfer and must not block.
type ProgressFunc func(ProgressEvent)

func noopProgress(ProgressEvent) {}

// ProgressTracker aggregates progress events into packet and byte counts
// and invokes a callback with the current transfer rate.
type ProgressTracker struct {
	mu sync.Mutex

	packets   int64
	startTime time.Time
	started   bool

	lastUpdate  time.Time
	lastPackets int64

	callback       func(packets, bytes int64, rate float64)
	updateInterval time.Duration
}

// NewProgressTracker creates a new progress tracker.
func NewProgressTracker(callback func(packets, bytes int64, rate float64), interval time.Duration) *ProgressTracker {
	if interval <= 0 {
		interval = 100 * time.Millisecond // Default: update every 100ms
	}

	return &ProgressTracker{
		callback:       callback,
		updateInterval: interval,
	}
}

// Track consumes one progress event. It satisfies ProgressFunc.
func (pt *ProgressTracker) Track(ev ProgressEvent) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	now := time.Now()
	switch ev.Kind {
	case ProgressStarted:
		if !pt.started {
			pt.started = true
			pt.startTime = now
			pt.lastUpdate = now
		}
	case ProgressPacket:
		pt.packets++
		pt.update(now)
	}
}

// update invokes the callback if enough time has passed. Caller holds mu.
func (pt *ProgressTracker) update(now time.Time) {
	if now.Sub(pt.lastUpdate) < pt.updateInterval {
		return // Too soon for an update
	}

	elapsed := now.Sub(pt.lastUpdate).Seconds()
	var rate float64
	if elapsed > 0 {
		rate = float64((pt.packets-pt.lastPackets)*PacketSize) / elapsed
	}

	if pt.callback != nil {
		pt.callback(pt.packets, pt.packets*PacketSize, rate)
	}

	pt.lastUpdate = now
	pt.lastPackets = pt.packets
}

// Complete reports the final counts and returns the transfer duration.
func (pt *ProgressTracker) Complete() time.Duration {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	var duration time.Duration
	if pt.started {
		duration = time.Since(pt.startTime)
	}

	if pt.callback != nil {
		pt.callback(pt.packets, pt.packets*PacketSize, 0)
	}

	return duration
}

// Stats returns current progress statistics.
func (pt *ProgressTracker) Stats() (packets, bytes int64, rate float64, duration time.Duration) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	packets = pt.packets
	bytes = packets * PacketSize
	if pt.started {
		duration = time.Since(pt.startTime)
	}
	if duration.Seconds() > 0 {
		rate = float64(bytes) / duration.Seconds()
	}

	return
}
