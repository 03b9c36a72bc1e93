package xmodem

import (
	"bytes"
	"io"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// scriptChannel replays a fixed peer script and records what we send.
type scriptChannel struct {
	in      *bytes.Reader
	out     bytes.Buffer
	flushes int
}

func newScript(in ...[]byte) *scriptChannel {
	return &scriptChannel{in: bytes.NewReader(bytes.Join(in, nil))}
}

func (c *scriptChannel) Read(p []byte) (int, error)  { return c.in.Read(p) }
func (c *scriptChannel) ReadByte() (byte, error)     { return c.in.ReadByte() }
func (c *scriptChannel) Write(p []byte) (int, error) { return c.out.Write(p) }
func (c *scriptChannel) WriteByte(b byte) error      { return c.out.WriteByte(b) }
func (c *scriptChannel) Flush() error                { c.flushes++; return nil }

// remaining reports how many scripted bytes were not consumed.
func (c *scriptChannel) remaining() int { return c.in.Len() }

// cursorChannel reads and writes through a single buffer with one shared
// position, so every write overwrites the byte after the last one read.
type cursorChannel struct {
	buf []byte
	pos int
}

func (c *cursorChannel) ReadByte() (byte, error) {
	if c.pos >= len(c.buf) {
		return 0, io.EOF
	}
	b := c.buf[c.pos]
	c.pos++
	return b, nil
}

func (c *cursorChannel) WriteByte(b byte) error {
	if c.pos >= len(c.buf) {
		return io.ErrShortWrite
	}
	c.buf[c.pos] = b
	c.pos++
	return nil
}

func (c *cursorChannel) Read(p []byte) (int, error) {
	if c.pos >= len(c.buf) {
		return 0, io.EOF
	}
	n := copy(p, c.buf[c.pos:])
	c.pos += n
	return n, nil
}

func (c *cursorChannel) Write(p []byte) (int, error) {
	n := copy(c.buf[c.pos:], p)
	c.pos += n
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

func (c *cursorChannel) Flush() error { return nil }

// eventLog records progress events.
type eventLog struct {
	events []ProgressEvent
}

func (l *eventLog) record(ev ProgressEvent) { l.events = append(l.events, ev) }

func testPayload(seed int64) []byte {
	p := make([]byte, PacketSize)
	rand.New(rand.NewSource(seed)).Read(p)
	return p
}

func testData(size int) []byte {
	data := make([]byte, size)
	rand.New(rand.NewSource(int64(size))).Read(data)
	return data
}

func frame(t *testing.T, seq byte, payload []byte) []byte {
	t.Helper()
	f, err := EncodePacket(seq, payload)
	require.NoError(t, err)
	return f
}

// corruptFrame returns a frame for payload whose first payload bit is
// flipped after the checksum was computed.
func corruptFrame(t *testing.T, seq byte, payload []byte) []byte {
	t.Helper()
	f := frame(t, seq, payload)
	f[3] ^= 0x01
	return f
}

type receiveResult struct {
	data []byte
	n    int64
	err  error
}

// receiveAsync runs a Receiver on ch in its own goroutine.
func receiveAsync(ch Channel, opts ...Option) <-chan receiveResult {
	done := make(chan receiveResult, 1)
	go func() {
		var sink bytes.Buffer
		n, err := NewReceiver(ch, opts...).Receive(&sink)
		done <- receiveResult{data: sink.Bytes(), n: n, err: err}
	}()
	return done
}
