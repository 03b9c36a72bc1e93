package xmodem

import "io"

// PipeChannel is one end of an in-memory duplex link created by Pipe.
type PipeChannel struct {
	Channel
	r *io.PipeReader
	w *io.PipeWriter
}

// Pipe creates a synchronous in-memory duplex link. Bytes written to one
// end are read from the other. Each write blocks until the peer has read
// it, so the two ends must be driven from separate goroutines.
func Pipe() (*PipeChannel, *PipeChannel) {
	ar, bw := io.Pipe()
	br, aw := io.Pipe()
	a := &PipeChannel{Channel: newChannelIO(ar, aw), r: ar, w: aw}
	b := &PipeChannel{Channel: newChannelIO(br, bw), r: br, w: bw}
	return a, b
}

// Close closes both directions of this end. Pending and future reads and
// writes on the peer fail with io.ErrClosedPipe or io.EOF.
func (p *PipeChannel) Close() error {
	werr := p.w.Close()
	rerr := p.r.Close()
	if werr != nil {
		return werr
	}
	return rerr
}
