package xmodem

import (
	"bufio"
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rw joins a reader and a writer.
type rw struct {
	io.Reader
	io.Writer
}

func TestNewChannelReadMix(t *testing.T) {
	ch := NewChannel(rw{bytes.NewReader([]byte{SOH, 1, 2, 3, 4, 5}), io.Discard})

	b, err := ch.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(SOH), b)

	buf := make([]byte, 3)
	_, err = io.ReadFull(ch, buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, buf)

	b, err = ch.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(4), b)

	rest, err := io.ReadAll(ch)
	require.NoError(t, err)
	assert.Equal(t, []byte{5}, rest)

	_, err = ch.ReadByte()
	assert.ErrorIs(t, err, io.EOF)
}

func TestNewChannelReadsPastBuffer(t *testing.T) {
	data := testData(3 * FrameSize)
	ch := NewChannel(rw{bytes.NewReader(data), io.Discard})

	first, err := ch.ReadByte()
	require.NoError(t, err)

	rest := make([]byte, len(data)-1)
	_, err = io.ReadFull(ch, rest)
	require.NoError(t, err)
	assert.Equal(t, data, append([]byte{first}, rest...))
}

func TestNewChannelRWWritesAndFlushes(t *testing.T) {
	var out bytes.Buffer
	bw := bufio.NewWriter(&out)
	ch := NewChannelRW(bytes.NewReader(nil), bw)

	require.NoError(t, ch.WriteByte(NAK))
	_, err := ch.Write([]byte{ACK, CAN})
	require.NoError(t, err)
	assert.Zero(t, out.Len())

	require.NoError(t, ch.Flush())
	assert.Equal(t, []byte{NAK, ACK, CAN}, out.Bytes())
}

func TestNewChannelFlushesReadWriter(t *testing.T) {
	var out bytes.Buffer
	brw := bufio.NewReadWriter(bufio.NewReader(bytes.NewReader(nil)), bufio.NewWriter(&out))
	ch := NewChannel(brw)

	require.NoError(t, ch.WriteByte(ACK))
	assert.Zero(t, out.Len())
	require.NoError(t, ch.Flush())
	assert.Equal(t, []byte{ACK}, out.Bytes())
}

func TestNewChannelKeepsChannel(t *testing.T) {
	script := newScript()
	assert.Same(t, script, NewChannel(script))
}

func TestPipe(t *testing.T) {
	a, b := Pipe()

	go func() {
		_ = a.WriteByte(NAK)
		_, _ = a.Write([]byte{1, 2, 3})
	}()

	got, err := b.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(NAK), got)

	buf := make([]byte, 3)
	_, err = io.ReadFull(b, buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, buf)

	require.NoError(t, a.Close())
	_, err = b.ReadByte()
	assert.ErrorIs(t, err, io.EOF)
	require.NoError(t, b.Close())
}
