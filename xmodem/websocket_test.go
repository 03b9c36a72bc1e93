package xmodem

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebSocketTransfer(t *testing.T) {
	l, err := ListenWebSocket("127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		ch, err := l.Accept(ctx)
		if err != nil {
			done <- result{err: err}
			return
		}
		defer ch.Close()
		var sink bytes.Buffer
		_, err = NewReceiver(ch).Receive(&sink)
		done <- result{data: sink.Bytes(), err: err}
	}()

	ch, err := DialWebSocket(ctx, l.URL())
	require.NoError(t, err)
	defer ch.Close()

	data := testData(20 * PacketSize)
	sent, err := NewTransmitter(ch).Transmit(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), sent)

	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, data, res.data)
}

func TestWebSocketAcceptCancelled(t *testing.T) {
	l, err := ListenWebSocket("127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Accept(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, strings.HasSuffix(l.URL(), WebSocketPath))
}

func TestWebSocketListenerRejectsLaterClients(t *testing.T) {
	l, err := ListenWebSocket("127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	first, err := DialWebSocket(ctx, l.URL())
	require.NoError(t, err)
	defer first.Close()

	accepted, err := l.Accept(ctx)
	require.NoError(t, err)
	defer accepted.Close()

	// the buffer is empty again; a second client must still be turned away
	second, _, err := websocket.DefaultDialer.DialContext(ctx, l.URL(), nil)
	require.NoError(t, err)
	defer second.Close()

	require.NoError(t, second.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = second.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation), "%v", err)
}

// wsPeer serves one scripted peer connection through httptest.
func wsPeer(t *testing.T, serve func(conn *websocket.Conn)) *WSChannel {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		serve(conn)
	}))
	t.Cleanup(srv.Close)

	ch, err := DialWebSocket(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"))
	require.NoError(t, err)
	t.Cleanup(func() { ch.Close() })
	return ch
}

func TestWebSocketMessagesFormOneStream(t *testing.T) {
	payload := testPayload(70)
	f := frame(t, 1, payload)
	ch := wsPeer(t, func(conn *websocket.Conn) {
		// split the frame across messages, and ignore our answers
		_ = conn.WriteMessage(websocket.BinaryMessage, f[:2])
		_ = conn.WriteMessage(websocket.BinaryMessage, f[2:70])
		_ = conn.WriteMessage(websocket.BinaryMessage, f[70:])
		_ = conn.WriteMessage(websocket.BinaryMessage, []byte{EOT, EOT})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	var sink bytes.Buffer
	n, err := NewReceiver(ch).Receive(&sink)
	require.NoError(t, err)
	assert.Equal(t, int64(PacketSize), n)
	assert.Equal(t, payload, sink.Bytes())
}

func TestWebSocketTextMessageRejected(t *testing.T) {
	ch := wsPeer(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte("hello"))
		_, _, _ = conn.ReadMessage()
	})

	_, err := NewReceiver(ch).Receive(&bytes.Buffer{})
	kind, ok := TypeOf(err)
	require.True(t, ok)
	assert.Equal(t, ErrIO, kind)
	assert.ErrorIs(t, err, errTextMessage)
}

func TestWebSocketPeerClose(t *testing.T) {
	ch := wsPeer(t, func(conn *websocket.Conn) {
		_, _, _ = conn.ReadMessage()
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	})

	_, err := NewReceiver(ch).Receive(&bytes.Buffer{})
	assert.True(t, IsUnexpectedEnd(err), "%v", err)
}
