package xmodem

import "fmt"

// Packet is one framed data unit.
type Packet struct {
	// Seq is the sequence number, starting at 1 and wrapping at 256.
	Seq byte

	// Payload is always exactly PacketSize bytes.
	Payload []byte
}

// Checksum returns the 8-bit wrapping sum of data.
func Checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return sum
}

// Checksum returns the checksum of the packet payload.
func (p *Packet) Checksum() byte {
	return Checksum(p.Payload)
}

// Encode returns the wire form of the packet.
func (p *Packet) Encode() ([]byte, error) {
	return EncodePacket(p.Seq, p.Payload)
}

// EncodePacket frames payload for the wire as
// SOH, seq, ^seq, payload, checksum.
func EncodePacket(seq byte, payload []byte) ([]byte, error) {
	if len(payload) != PacketSize {
		return nil, NewError(ErrMalformedCaller,
			fmt.Sprintf("payload is %d bytes, want %d", len(payload), PacketSize))
	}

	frame := make([]byte, FrameSize)
	frame[0] = SOH
	frame[1] = seq
	frame[2] = ^seq
	copy(frame[3:], payload)
	frame[FrameSize-1] = Checksum(payload)
	return frame, nil
}

// DecodePacket checks the structure of a received frame and returns the
// packet together with the checksum byte it carried.
//
// The checksum is not verified here; callers compare it with
// Packet.Checksum so they can answer the peer with ACK or NAK.
func DecodePacket(frame []byte) (*Packet, byte, error) {
	if len(frame) != FrameSize {
		return nil, 0, NewError(ErrUnexpectedEnd,
			fmt.Sprintf("frame is %d bytes, want %d", len(frame), FrameSize))
	}
	if frame[0] != SOH {
		return nil, 0, NewByteError(ErrProtocolViolation, "frame does not start with SOH", frame[0])
	}
	if frame[2] != ^frame[1] {
		return nil, 0, NewByteError(ErrProtocolViolation,
			fmt.Sprintf("complement does not match sequence %d", frame[1]), frame[2])
	}

	payload := make([]byte, PacketSize)
	copy(payload, frame[3:3+PacketSize])
	return &Packet{Seq: frame[1], Payload: payload}, frame[FrameSize-1], nil
}
