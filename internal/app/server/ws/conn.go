package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var ErrClosed = errors.New("websocket closed")

// WebSocket serializes writes on a gorilla connection. Reads belong to a
// single goroutine running ReadLoop.
type WebSocket struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	mu        sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

func NewWebSocket(conn *websocket.Conn, writeTimeout time.Duration) *WebSocket {
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	return &WebSocket{conn: conn, writeTimeout: writeTimeout, done: make(chan struct{})}
}

// Done is closed once the socket has been closed.
func (w *WebSocket) Done() <-chan struct{} { return w.done }

func (w *WebSocket) closed() bool {
	select {
	case <-w.done:
		return true
	default:
		return false
	}
}

func (w *WebSocket) deadline(ctx context.Context) time.Time {
	d := time.Now().Add(w.writeTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(d) {
		return ctxDeadline
	}
	return d
}

// WriteMessage sends one text frame.
func (w *WebSocket) WriteMessage(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed() {
		return ErrClosed
	}
	_ = w.conn.SetWriteDeadline(w.deadline(ctx))
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

func (w *WebSocket) WritePing() error {
	if w.closed() {
		return ErrClosed
	}
	return w.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(w.writeTimeout))
}

// CloseWith sends a close frame carrying code and text, then drops the
// connection. Only the first call has any effect.
func (w *WebSocket) CloseWith(code int, text string) {
	w.closeOnce.Do(func() {
		w.mu.Lock()
		close(w.done)
		w.mu.Unlock()
		msg := websocket.FormatCloseMessage(code, text)
		_ = w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(w.writeTimeout))
		_ = w.conn.Close()
	})
}

// ReadLoop delivers inbound text frames to onMsg until the peer goes away,
// a read fails or onMsg returns false. pongWait of zero disables the read
// deadline.
func (w *WebSocket) ReadLoop(limit int64, pongWait time.Duration, onMsg func([]byte) bool) error {
	if limit > 0 {
		w.conn.SetReadLimit(limit)
	}
	if pongWait > 0 {
		_ = w.conn.SetReadDeadline(time.Now().Add(pongWait))
		w.conn.SetPongHandler(func(string) error {
			return w.conn.SetReadDeadline(time.Now().Add(pongWait))
		})
	}
	for {
		msgType, data, err := w.conn.ReadMessage()
		if err != nil {
			if w.closed() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		if !onMsg(data) {
			return nil
		}
	}
}
