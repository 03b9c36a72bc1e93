// Package xmodem implements the checksum variant of the XMODEM file transfer
// protocol.
//
// XMODEM moves a byte stream in 128-byte packets over a half-duplex byte
// channel such as a serial line, an SSH session or a WebSocket. Every packet
// carries a sequence number, its one's complement and an 8-bit checksum and
// must be acknowledged before the next one is sent. The receiver starts the
// transfer by sending NAK and the sender ends it with a double EOT handshake
// (EOT, NAK, EOT, ACK).
//
// The package is organised the same way in both directions: a Session runs
// the per-packet state machine (ReadPacket, WritePacket) and the Transmitter
// and Receiver drivers loop over it, retrying packets that failed their
// checksum. Channels, progress hooks and logging are pluggable.
package xmodem

import "fmt"

// Ward Christensen / CP/M control characters. Don't change these!
const (
	SOH    = 0x01 // Start of header
	EOT    = 0x04 // End of transmission
	ACK    = 0x06 // Acknowledge
	NAK    = 0x15 // Negative acknowledge
	CAN    = 0x18 // Cancel
	CPMEOF = 0x1A // CP/M end of file, used for padding
)

const (
	// PacketSize is the payload size of a single packet.
	PacketSize = 128

	// FrameSize is the size of a packet on the wire:
	// SOH, sequence, complement, payload and checksum.
	FrameSize = PacketSize + 4

	// DefaultMaxRetries is the number of attempts a driver makes for one
	// packet before giving up.
	DefaultMaxRetries = 10

	// firstSequence is the sequence number of the first packet of a session.
	firstSequence = 1
)

var controlNames = map[byte]string{
	SOH:    "SOH",
	EOT:    "EOT",
	ACK:    "ACK",
	NAK:    "NAK",
	CAN:    "CAN",
	CPMEOF: "CPMEOF",
}

// ControlName returns the mnemonic for a control byte, or its hex value
// for anything else.
func ControlName(b byte) string {
	if name, ok := controlNames[b]; ok {
		return name
	}
	return fmt.Sprintf("0x%02x", b)
}
