package xmodem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketPath is the HTTP path a WSListener upgrades on.
const WebSocketPath = "/xmodem"

var errTextMessage = errors.New("websocket: text message on a binary xmodem channel")

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSChannel carries the XMODEM byte stream over a WebSocket connection.
// Every write is sent as one binary message; reads drain successive
// binary messages as a continuous stream.
type WSChannel struct {
	Channel
	conn *websocket.Conn
}

// NewWebSocketChannel wraps an established WebSocket connection.
func NewWebSocketChannel(conn *websocket.Conn) *WSChannel {
	stream := &wsStream{conn: conn}
	return &WSChannel{
		Channel: newChannelIO(stream, stream),
		conn:    conn,
	}
}

// Close sends a normal close frame and closes the connection.
func (c *WSChannel) Close() error {
	deadline := time.Now().Add(time.Second)
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return c.conn.Close()
}

// wsStream turns a message-oriented connection into an io.ReadWriter.
type wsStream struct {
	conn *websocket.Conn
	r    io.Reader
}

func (s *wsStream) Read(p []byte) (int, error) {
	for {
		if s.r == nil {
			mt, r, err := s.conn.NextReader()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return 0, io.EOF
				}
				return 0, err
			}
			if mt != websocket.BinaryMessage {
				return 0, errTextMessage
			}
			s.r = r
		}

		n, err := s.r.Read(p)
		if err == io.EOF {
			s.r = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (s *wsStream) Write(p []byte) (int, error) {
	if err := s.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// DialWebSocket connects to a WSListener (or any XMODEM WebSocket peer).
func DialWebSocket(ctx context.Context, url string) (*WSChannel, error) {
	dialer := websocket.DefaultDialer
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	return NewWebSocketChannel(conn), nil
}

// WSListener accepts a single XMODEM peer over WebSocket.
type WSListener struct {
	listener net.Listener
	connCh   chan *websocket.Conn

	mu       sync.Mutex
	accepted bool
}

// ListenWebSocket starts an HTTP server on addr that upgrades the first
// client on WebSocketPath. Later clients are turned away.
func ListenWebSocket(addr string) (*WSListener, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	l := &WSListener{
		listener: listener,
		connCh:   make(chan *websocket.Conn, 1),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(WebSocketPath, l.handleWS)

	go func() {
		_ = http.Serve(listener, mux)
	}()

	return l, nil
}

func (l *WSListener) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	// Only accept the first client, for the lifetime of the listener.
	l.mu.Lock()
	first := !l.accepted
	l.accepted = true
	l.mu.Unlock()

	if !first {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "already connected"))
		conn.Close()
		return
	}
	l.connCh <- conn
}

// Addr returns the address the listener is bound to.
func (l *WSListener) Addr() net.Addr {
	return l.listener.Addr()
}

// URL returns the ws:// URL clients should dial.
func (l *WSListener) URL() string {
	return "ws://" + l.listener.Addr().String() + WebSocketPath
}

// Accept blocks until a client connects or ctx is cancelled.
func (l *WSListener) Accept(ctx context.Context) (*WSChannel, error) {
	select {
	case conn := <-l.connCh:
		return NewWebSocketChannel(conn), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops accepting connections. Accepted channels stay open.
func (l *WSListener) Close() error {
	return l.listener.Close()
}
