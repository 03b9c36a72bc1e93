package xmodem

import (
	"errors"
	"fmt"
)

// Error represents an XMODEM transfer error
type Error struct {
	// Type is the error type
	Type ErrorType

	// Message is a human-readable error message
	Message string

	// Got is the byte that caused the error, or -1 if none did
	Got int

	// Err is the underlying cause, if any
	Err error
}

// ErrorType categorizes XMODEM errors
type ErrorType int

const (
	// ErrMalformedCaller indicates a buffer or payload of the wrong size.
	// It is raised before any I/O takes place.
	ErrMalformedCaller ErrorType = iota

	// ErrUnexpectedEnd indicates the channel or source ran out of data
	// in the middle of a packet
	ErrUnexpectedEnd

	// ErrPeerAborted indicates the peer sent CAN
	ErrPeerAborted

	// ErrProtocolViolation indicates an unexpected byte in place of a
	// control, sequence or complement byte
	ErrProtocolViolation

	// ErrRecoverable indicates a checksum mismatch or a NAK in place of
	// an ACK. The same packet should be tried again.
	ErrRecoverable

	// ErrRetriesExhausted indicates a packet failed on every attempt
	ErrRetriesExhausted

	// ErrIO indicates a channel, source or sink failure
	ErrIO
)

func (e *Error) Error() string {
	msg := fmt.Sprintf("xmodem %s: %s", e.Type, e.Message)
	if e.Got >= 0 {
		msg += fmt.Sprintf(" (got %s)", ControlName(byte(e.Got)))
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (t ErrorType) String() string {
	switch t {
	case ErrMalformedCaller:
		return "malformed call"
	case ErrUnexpectedEnd:
		return "unexpected end of data"
	case ErrPeerAborted:
		return "peer aborted"
	case ErrProtocolViolation:
		return "protocol violation"
	case ErrRecoverable:
		return "recoverable error"
	case ErrRetriesExhausted:
		return "retries exhausted"
	case ErrIO:
		return "I/O error"
	default:
		return "unknown error"
	}
}

// NewError creates a new XMODEM error
func NewError(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Got:     -1,
	}
}

// NewByteError creates a new XMODEM error naming the offending byte
func NewByteError(errType ErrorType, message string, got byte) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Got:     int(got),
	}
}

// WrapError creates a new XMODEM error around an underlying cause
func WrapError(errType ErrorType, message string, err error) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Got:     -1,
		Err:     err,
	}
}

// TypeOf returns the type of the first *Error in err's chain.
func TypeOf(err error) (ErrorType, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Type, true
	}
	return 0, false
}

func isType(err error, t ErrorType) bool {
	got, ok := TypeOf(err)
	return ok && got == t
}

// IsRecoverable reports whether the packet that produced err should be retried.
func IsRecoverable(err error) bool {
	return isType(err, ErrRecoverable)
}

// IsCancelled reports whether the peer cancelled the transfer.
func IsCancelled(err error) bool {
	return isType(err, ErrPeerAborted)
}

// IsProtocolViolation reports whether the peer broke the protocol.
func IsProtocolViolation(err error) bool {
	return isType(err, ErrProtocolViolation)
}

// IsRetriesExhausted reports whether a driver gave up on a packet.
func IsRetriesExhausted(err error) bool {
	return isType(err, ErrRetriesExhausted)
}

// IsMalformed reports whether a call was rejected for its buffer size.
func IsMalformed(err error) bool {
	return isType(err, ErrMalformedCaller)
}

// IsUnexpectedEnd reports whether data ran out in the middle of a packet.
func IsUnexpectedEnd(err error) bool {
	return isType(err, ErrUnexpectedEnd)
}
