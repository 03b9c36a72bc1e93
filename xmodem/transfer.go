package xmodem

import (
	"errors"
	"fmt"
	"io"
	"time"
)

// Transmitter sends a byte stream to a receiving peer.
type Transmitter struct {
	session   *Session
	config    *Config
	callbacks *Callbacks
	logger    Logger
}

// NewTransmitter creates a transmitter that owns ch.
func NewTransmitter(ch Channel, opts ...Option) *Transmitter {
	set := newSettings(opts)
	s := newSession(ch, set)
	return &Transmitter{
		session:   s,
		config:    set.config,
		callbacks: set.callbacks,
		logger:    s.logger.WithField("direction", DirectionTransmit),
	}
}

// Session returns the session the transmitter drives.
func (t *Transmitter) Session() *Session {
	return t.session
}

// Transmit sends everything src yields and then ends the transfer.
// It returns the number of source bytes the receiver acknowledged.
func (t *Transmitter) Transmit(src io.Reader) (int64, error) {
	start := time.Now()
	t.callbacks.OnTransferStart(DirectionTransmit)
	t.logger.Info("transmit: waiting for receiver")

	written, err := t.transmit(src)
	if err != nil {
		t.logger.Error("transmit: failed after %d bytes: %v", written, err)
		t.callbacks.OnError(err, "transmit")
		return written, err
	}

	duration := time.Since(start)
	t.logger.Info("transmit: completed %d bytes in %v", written, duration)
	t.callbacks.OnTransferComplete(DirectionTransmit, written, duration)
	return written, nil
}

func (t *Transmitter) transmit(src io.Reader) (int64, error) {
	packet := make([]byte, PacketSize)
	var written int64

	for {
		n, err := io.ReadFull(src, packet)
		switch {
		case errors.Is(err, io.EOF):
			// no more data
			if _, err := t.session.WritePacket(nil); err != nil {
				return written, err
			}
			return written, nil
		case errors.Is(err, io.ErrUnexpectedEOF):
			if err := t.pad(packet, n); err != nil {
				return written, err
			}
		case err != nil:
			return written, WrapError(ErrIO, "reading source", err)
		}

		if err := t.sendPacket(packet); err != nil {
			return written, err
		}
		written += int64(n)
	}
}

// pad applies the padding policy to a final chunk of n bytes.
func (t *Transmitter) pad(packet []byte, n int) error {
	switch t.config.Padding {
	case PadCPMEOF:
		for i := n; i < len(packet); i++ {
			packet[i] = CPMEOF
		}
		t.logger.Debug("transmit: padded final packet from %d bytes", n)
		return nil
	default:
		return NewError(ErrUnexpectedEnd,
			fmt.Sprintf("source ended with a partial packet of %d bytes", n))
	}
}

// sendPacket writes one packet, retrying it while the receiver rejects it.
func (t *Transmitter) sendPacket(packet []byte) error {
	seq := t.session.Sequence()
	for attempt := 1; attempt <= t.config.MaxRetries; attempt++ {
		_, err := t.session.WritePacket(packet)
		if err == nil {
			return nil
		}
		if !IsRecoverable(err) {
			return err
		}
		t.logger.Debug("transmit: packet %d attempt %d: %v", seq, attempt, err)
		t.callbacks.OnRetry(seq, attempt, err)
	}
	return NewError(ErrRetriesExhausted,
		fmt.Sprintf("packet %d failed %d times", seq, t.config.MaxRetries))
}

// Receiver accepts a byte stream from a transmitting peer.
type Receiver struct {
	session   *Session
	config    *Config
	callbacks *Callbacks
	logger    Logger
}

// NewReceiver creates a receiver that owns ch.
func NewReceiver(ch Channel, opts ...Option) *Receiver {
	set := newSettings(opts)
	s := newSession(ch, set)
	return &Receiver{
		session:   s,
		config:    set.config,
		callbacks: set.callbacks,
		logger:    s.logger.WithField("direction", DirectionReceive),
	}
}

// Session returns the session the receiver drives.
func (r *Receiver) Session() *Session {
	return r.session
}

// Receive writes every packet to dst until the sender ends the transfer.
// It returns the number of bytes written to dst.
func (r *Receiver) Receive(dst io.Writer) (int64, error) {
	start := time.Now()
	r.callbacks.OnTransferStart(DirectionReceive)
	r.logger.Info("receive: requesting first packet")

	received, err := r.receive(dst)
	if err != nil {
		r.logger.Error("receive: failed after %d bytes: %v", received, err)
		r.callbacks.OnError(err, "receive")
		return received, err
	}

	duration := time.Since(start)
	r.logger.Info("receive: completed %d bytes in %v", received, duration)
	r.callbacks.OnTransferComplete(DirectionReceive, received, duration)
	return received, nil
}

func (r *Receiver) receive(dst io.Writer) (int64, error) {
	packet := make([]byte, PacketSize)
	var received int64

	for {
		n, err := r.readPacket(packet)
		if err != nil {
			return received, err
		}
		if n == 0 {
			return received, nil
		}

		w, err := dst.Write(packet[:n])
		if err == nil && w < n {
			err = io.ErrShortWrite
		}
		if err != nil {
			return received, WrapError(ErrIO, "writing sink", err)
		}
		received += int64(n)
	}
}

// readPacket reads one packet, retrying while its checksum is bad.
func (r *Receiver) readPacket(packet []byte) (int, error) {
	seq := r.session.Sequence()
	for attempt := 1; attempt <= r.config.MaxRetries; attempt++ {
		n, err := r.session.ReadPacket(packet)
		if err == nil {
			return n, nil
		}
		if !IsRecoverable(err) {
			return 0, err
		}
		r.logger.Debug("receive: packet %d attempt %d: %v", seq, attempt, err)
		r.callbacks.OnRetry(seq, attempt, err)
	}
	return 0, NewError(ErrRetriesExhausted,
		fmt.Sprintf("packet %d failed %d times", seq, r.config.MaxRetries))
}

// Transmit sends src over rw and ends the transfer.
func Transmit(src io.Reader, rw io.ReadWriter, opts ...Option) (int64, error) {
	return NewTransmitter(NewChannel(rw), opts...).Transmit(src)
}

// Receive reads a transfer from rw into dst.
func Receive(rw io.ReadWriter, dst io.Writer, opts ...Option) (int64, error) {
	return NewReceiver(NewChannel(rw), opts...).Receive(dst)
}
