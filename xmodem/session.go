package xmodem

import (
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// Session runs the XMODEM packet state machine for one direction of a
// transfer over one Channel.
//
// A Session is not safe for concurrent use. Once a call fails with
// anything but a recoverable error the session should be discarded.
type Session struct {
	id string
	ch Channel

	// started is set by the first handshake exchange and cleared by the
	// termination handshake.
	started bool

	// packet is the sequence number of the next packet. It wraps at 256.
	packet byte

	progress ProgressFunc
	logger   Logger
}

// Option configures a Session or a transfer driver.
type Option func(*settings)

type settings struct {
	config    *Config
	callbacks *Callbacks
	logger    Logger
}

func newSettings(opts []Option) *settings {
	s := &settings{
		config:    DefaultConfig(),
		callbacks: defaultCallbacks(),
		logger:    NoopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.config.MaxRetries < 1 {
		cfg := *s.config
		cfg.MaxRetries = DefaultMaxRetries
		s.config = &cfg
	}
	return s
}

// WithConfig sets the transfer configuration.
func WithConfig(config *Config) Option {
	return func(s *settings) {
		if config != nil {
			s.config = config
		}
	}
}

// WithCallbacks sets the transfer callbacks.
func WithCallbacks(callbacks *Callbacks) Option {
	return func(s *settings) {
		s.callbacks = mergeCallbacks(callbacks)
	}
}

// WithProgress sets only the progress hook, keeping other callbacks.
// A later WithCallbacks replaces it.
func WithProgress(fn ProgressFunc) Option {
	return func(s *settings) {
		if fn == nil {
			fn = noopProgress
		}
		s.callbacks.OnProgress = fn
	}
}

// WithLogger sets a logger for protocol debugging.
func WithLogger(logger Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSession creates a session bound to ch.
func NewSession(ch Channel, opts ...Option) *Session {
	return newSession(ch, newSettings(opts))
}

func newSession(ch Channel, set *settings) *Session {
	id := uuid.NewString()
	logger := set.logger.WithField("session", id)
	if set.config.Trace {
		ch = NewTraceChannel(ch, logger)
	}
	return &Session{
		id:       id,
		ch:       ch,
		packet:   firstSequence,
		progress: set.callbacks.OnProgress,
		logger:   logger,
	}
}

// ID returns the random identifier used to tag this session's log entries.
func (s *Session) ID() string {
	return s.id
}

// Started reports whether the handshake has happened and the termination
// handshake has not.
func (s *Session) Started() bool {
	return s.started
}

// Sequence returns the sequence number the next packet will carry.
func (s *Session) Sequence() byte {
	return s.packet
}

// ReadPacket receives one packet into buf[:PacketSize].
//
// It returns PacketSize when a packet was received and acknowledged, and
// 0 when the sender ended the transfer. A checksum mismatch is answered
// with NAK and reported as ErrRecoverable; the caller should call
// ReadPacket again to receive the retransmission.
func (s *Session) ReadPacket(buf []byte) (int, error) {
	if len(buf) < PacketSize {
		return 0, NewError(ErrMalformedCaller,
			fmt.Sprintf("read buffer is %d bytes, need %d", len(buf), PacketSize))
	}

	if !s.started {
		// send NAK to ask the sender for the first packet
		if err := s.writeByte(NAK); err != nil {
			return 0, err
		}
		s.progress(ProgressEvent{Kind: ProgressStarted})
		s.started = true
		s.logger.Debug("handshake sent")
	}

	c, err := s.readByte()
	if err != nil {
		return 0, err
	}

	switch c {
	case EOT:
		if err := s.writeByte(NAK); err != nil {
			return 0, err
		}
		if err := s.expect(EOT, "expected second EOT"); err != nil {
			return 0, err
		}
		if err := s.writeByte(ACK); err != nil {
			return 0, err
		}
		s.started = false
		s.logger.Debug("end of transmission")
		return 0, nil

	case SOH:
		return s.readFrame(buf[:PacketSize])

	default:
		if err := s.writeByte(CAN); err != nil {
			return 0, err
		}
		return 0, NewByteError(ErrProtocolViolation, "expected SOH or EOT", c)
	}
}

// readFrame reads the rest of a data frame after its SOH.
func (s *Session) readFrame(buf []byte) (int, error) {
	if err := s.expectOrCancel(s.packet, "did not match current packet number"); err != nil {
		return 0, err
	}
	if err := s.expectOrCancel(^s.packet, "did not match packet number's complement"); err != nil {
		return 0, err
	}

	if _, err := io.ReadFull(s.ch, buf); err != nil {
		return 0, channelError("reading payload", err)
	}
	sum := Checksum(buf)

	got, err := s.readByte()
	if err != nil {
		return 0, err
	}
	if got != sum {
		if err := s.writeByte(NAK); err != nil {
			return 0, err
		}
		s.logger.Debug("packet %d: bad checksum %02x, want %02x", s.packet, got, sum)
		return 0, NewByteError(ErrRecoverable, fmt.Sprintf("bad checksum for packet %d", s.packet), got)
	}

	if err := s.writeByte(ACK); err != nil {
		return 0, err
	}
	s.progress(ProgressEvent{Kind: ProgressPacket, Seq: s.packet})
	s.logger.Debug("packet %d received", s.packet)
	s.packet++

	return PacketSize, nil
}

// WritePacket transmits one packet.
//
// payload must be empty, which runs the termination handshake, or exactly
// PacketSize bytes. It returns the number of payload bytes the receiver
// acknowledged. A NAK from the receiver is reported as ErrRecoverable;
// the caller should call WritePacket again with the same payload.
func (s *Session) WritePacket(payload []byte) (int, error) {
	if len(payload) != 0 && len(payload) != PacketSize {
		return 0, NewError(ErrMalformedCaller,
			fmt.Sprintf("payload is %d bytes, want 0 or %d", len(payload), PacketSize))
	}

	if !s.started {
		// the receiver starts the transfer with NAK
		s.progress(ProgressEvent{Kind: ProgressWaiting})
		s.logger.Debug("waiting for receiver")
		if err := s.expect(NAK, "expected NAK from receiver"); err != nil {
			return 0, err
		}
		s.progress(ProgressEvent{Kind: ProgressStarted})
		s.started = true
	}

	if len(payload) == 0 {
		return 0, s.writeEOT()
	}

	frame, err := EncodePacket(s.packet, payload)
	if err != nil {
		return 0, err
	}
	if _, err := s.ch.Write(frame); err != nil {
		return 0, channelError("writing packet", err)
	}

	c, err := s.readByte()
	if err != nil {
		return 0, err
	}
	switch c {
	case NAK:
		s.logger.Debug("packet %d: NAK", s.packet)
		return 0, NewByteError(ErrRecoverable, fmt.Sprintf("receiver rejected packet %d", s.packet), c)
	case ACK:
		s.progress(ProgressEvent{Kind: ProgressPacket, Seq: s.packet})
		s.logger.Debug("packet %d sent", s.packet)
		s.packet++
		if err := s.ch.Flush(); err != nil {
			return 0, channelError("flushing", err)
		}
		return PacketSize, nil
	case CAN:
		return 0, NewByteError(ErrPeerAborted, "expected ACK or NAK", c)
	default:
		return 0, NewByteError(ErrProtocolViolation, "expected ACK or NAK", c)
	}
}

// writeEOT runs the sender side of the termination handshake.
func (s *Session) writeEOT() error {
	if err := s.writeByte(EOT); err != nil {
		return err
	}
	if err := s.expect(NAK, "expected NAK for EOT"); err != nil {
		return err
	}
	if err := s.writeByte(EOT); err != nil {
		return err
	}
	if err := s.expect(ACK, "expected ACK for second EOT"); err != nil {
		return err
	}
	s.started = false
	s.logger.Debug("end of transmission acknowledged")
	return nil
}

// expectOrCancel reads one byte and fails unless it is want. On a
// mismatch the peer is sent CAN, unless the peer itself sent CAN.
func (s *Session) expectOrCancel(want byte, msg string) error {
	b, err := s.readByte()
	if err != nil {
		return err
	}
	if b == want {
		return nil
	}
	if b == CAN {
		return NewByteError(ErrPeerAborted, msg, b)
	}
	if err := s.writeByte(CAN); err != nil {
		return err
	}
	return NewByteError(ErrProtocolViolation, msg, b)
}

// expect is expectOrCancel without sending CAN.
func (s *Session) expect(want byte, msg string) error {
	b, err := s.readByte()
	if err != nil {
		return err
	}
	if b == want {
		return nil
	}
	if b == CAN {
		return NewByteError(ErrPeerAborted, msg, b)
	}
	return NewByteError(ErrProtocolViolation, msg, b)
}

func (s *Session) readByte() (byte, error) {
	b, err := s.ch.ReadByte()
	if err != nil {
		return 0, channelError("reading", err)
	}
	return b, nil
}

func (s *Session) writeByte(b byte) error {
	if err := s.ch.WriteByte(b); err != nil {
		return channelError("writing "+ControlName(b), err)
	}
	return nil
}

// channelError classifies a channel failure. Running out of data is
// ErrUnexpectedEnd; everything else is ErrIO.
func channelError(op string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return WrapError(ErrUnexpectedEnd, op, err)
	}
	return WrapError(ErrIO, op, err)
}
