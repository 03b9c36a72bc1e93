package xmodem

import "io"

// Channel is the byte link between two XMODEM endpoints.
//
// Reads and writes block until they complete. A Session owns its Channel;
// nothing else may read from or write to it while a transfer runs.
type Channel interface {
	io.Reader
	io.Writer
	io.ByteReader
	io.ByteWriter

	// Flush pushes buffered writes to the peer.
	Flush() error
}

// channelIO adapts an io.ReadWriter to a Channel.
// Reads are served from a small read-ahead buffer; writes go straight
// through so every handshake byte reaches the peer before we block on
// its answer.
type channelIO struct {
	reader io.Reader
	writer io.Writer
	rbuf   []byte
	rpos   int
	rleft  int
}

// readAhead is the size of the channelIO read buffer. It is large enough
// for one frame so a packet normally arrives in a single read.
const readAhead = FrameSize

// NewChannel adapts rw to a Channel. If rw already is a Channel it is
// returned unchanged. Flush reaches rw only if rw itself has a Flush
// method; use NewChannelRW when the writer is a separate value.
func NewChannel(rw io.ReadWriter) Channel {
	if ch, ok := rw.(Channel); ok {
		return ch
	}
	return newChannelIO(rw, rw)
}

// NewChannelRW adapts a separate reader and writer to a Channel. Flush
// forwards to w when w has a Flush method.
func NewChannelRW(r io.Reader, w io.Writer) Channel {
	return newChannelIO(r, w)
}

func newChannelIO(reader io.Reader, writer io.Writer) *channelIO {
	return &channelIO{
		reader: reader,
		writer: writer,
		rbuf:   make([]byte, readAhead),
	}
}

// ReadByte reads a single byte, refilling the buffer when it is empty.
func (c *channelIO) ReadByte() (byte, error) {
	if c.rleft == 0 {
		if err := c.fill(); err != nil {
			return 0, err
		}
	}
	b := c.rbuf[c.rpos]
	c.rpos++
	c.rleft--
	return b, nil
}

// fill performs one read from the underlying reader.
func (c *channelIO) fill() error {
	for {
		n, err := c.reader.Read(c.rbuf)
		if n > 0 {
			c.rpos = 0
			c.rleft = n
			return nil
		}
		if err != nil {
			return err
		}
		// A zero-length read without an error is allowed by io.Reader; try again.
	}
}

// Read returns buffered bytes first and reads through to the underlying
// reader once the buffer is drained. Like io.Reader it may return fewer
// bytes than requested.
func (c *channelIO) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if c.rleft > 0 {
		n := copy(p, c.rbuf[c.rpos:c.rpos+c.rleft])
		c.rpos += n
		c.rleft -= n
		return n, nil
	}
	return c.reader.Read(p)
}

// Write writes bytes to the underlying writer.
func (c *channelIO) Write(p []byte) (int, error) {
	return c.writer.Write(p)
}

// WriteByte writes a single byte.
func (c *channelIO) WriteByte(b byte) error {
	_, err := c.writer.Write([]byte{b})
	return err
}

// Flush flushes the underlying writer if it buffers.
func (c *channelIO) Flush() error {
	if f, ok := c.writer.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}
