package xmodem

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProgressEventString(t *testing.T) {
	assert.Equal(t, "waiting", ProgressEvent{Kind: ProgressWaiting}.String())
	assert.Equal(t, "started", ProgressEvent{Kind: ProgressStarted}.String())
	assert.Equal(t, "packet 9", ProgressEvent{Kind: ProgressPacket, Seq: 9}.String())
}

func TestProgressTrackerCounts(t *testing.T) {
	var calls int
	var lastBytes int64
	tracker := NewProgressTracker(func(packets, n int64, rate float64) {
		calls++
		lastBytes = n
	}, time.Hour)

	tracker.Track(ProgressEvent{Kind: ProgressWaiting})
	tracker.Track(ProgressEvent{Kind: ProgressStarted})
	for i := 1; i <= 5; i++ {
		tracker.Track(ProgressEvent{Kind: ProgressPacket, Seq: byte(i)})
	}

	// the interval has not elapsed yet
	assert.Zero(t, calls)

	packets, n, _, _ := tracker.Stats()
	assert.Equal(t, int64(5), packets)
	assert.Equal(t, int64(5*PacketSize), n)

	tracker.Complete()
	assert.Equal(t, 1, calls)
	assert.Equal(t, int64(5*PacketSize), lastBytes)
}

func TestProgressTrackerThrottles(t *testing.T) {
	var calls int
	tracker := NewProgressTracker(func(int64, int64, float64) { calls++ }, time.Nanosecond)

	tracker.Track(ProgressEvent{Kind: ProgressStarted})
	time.Sleep(time.Millisecond)
	tracker.Track(ProgressEvent{Kind: ProgressPacket, Seq: 1})

	assert.Equal(t, 1, calls)
}

func TestProgressTrackerAsHook(t *testing.T) {
	tracker := NewProgressTracker(nil, 0)
	a, b := Pipe()
	defer a.Close()
	defer b.Close()

	done := receiveAsync(b)
	_, err := NewTransmitter(a, WithProgress(tracker.Track)).Transmit(bytes.NewReader(testData(4 * PacketSize)))
	assert.NoError(t, err)
	assert.NoError(t, (<-done).err)

	packets, _, _, duration := tracker.Stats()
	assert.Equal(t, int64(4), packets)
	assert.True(t, duration > 0)
}
