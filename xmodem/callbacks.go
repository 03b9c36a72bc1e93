package xmodem

import "time"

// Direction tells which way a transfer moves data.
type Direction int

const (
	DirectionTransmit Direction = iota
	DirectionReceive
)

func (d Direction) String() string {
	if d == DirectionReceive {
		return "receive"
	}
	return "transmit"
}

// Callbacks provides hooks for XMODEM transfer events.
// All callbacks are optional - nil callbacks use default behavior.
type Callbacks struct {
	// OnProgress is called synchronously by the session engine at each
	// lifecycle point (waiting, started, packet).
	OnProgress ProgressFunc

	// OnTransferStart is called when a driver begins a transfer.
	OnTransferStart func(dir Direction)

	// OnRetry is called when a packet failed with a recoverable error.
	// attempt counts from 1.
	OnRetry func(seq byte, attempt int, err error)

	// OnTransferComplete is called when a transfer ends successfully.
	OnTransferComplete func(dir Direction, bytes int64, duration time.Duration)

	// OnError is called once with the error that ended a transfer.
	// context: description of where the error occurred
	OnError func(err error, context string)
}

// defaultCallbacks returns a set of callbacks with default implementations.
func defaultCallbacks() *Callbacks {
	return &Callbacks{
		OnProgress:         noopProgress,
		OnTransferStart:    func(Direction) {},
		OnRetry:            func(byte, int, error) {},
		OnTransferComplete: func(Direction, int64, time.Duration) {},
		OnError:            func(error, string) {},
	}
}

// mergeCallbacks merges user callbacks with defaults.
// User callbacks override defaults, nil callbacks use defaults.
func mergeCallbacks(user *Callbacks) *Callbacks {
	result := defaultCallbacks()
	if user == nil {
		return result
	}

	if user.OnProgress != nil {
		result.OnProgress = user.OnProgress
	}
	if user.OnTransferStart != nil {
		result.OnTransferStart = user.OnTransferStart
	}
	if user.OnRetry != nil {
		result.OnRetry = user.OnRetry
	}
	if user.OnTransferComplete != nil {
		result.OnTransferComplete = user.OnTransferComplete
	}
	if user.OnError != nil {
		result.OnError = user.OnError
	}

	return result
}
