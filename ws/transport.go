// Package ws exposes the engine over a websocket endpoint. Each upgraded
// connection becomes one contract.Transport driven by a session.
package ws

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Transport adapts one gorilla connection to contract.Transport. Reads come
// from the session's read loop only; writes are serialized with a mutex
// because the session write loop and the ping loop share the wire.
type Transport struct {
	conn *websocket.Conn

	writeMu sync.Mutex

	hookMu    sync.Mutex
	heartbeat func()

	closeOnce sync.Once
	done      chan struct{}
}

func NewTransport(conn *websocket.Conn) *Transport {
	t := &Transport{conn: conn, done: make(chan struct{})}

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		t.hookMu.Lock()
		fn := t.heartbeat
		t.hookMu.Unlock()
		if fn != nil {
			fn()
		}
		return nil
	})

	go t.pingLoop()
	return t
}

func (t *Transport) Read() ([]byte, error) {
	_, data, err := t.conn.ReadMessage()
	return data, err
}

func (t *Transport) Write(_ context.Context, data []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_ = t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

// OnHeartbeat registers the liveness callback fired on every pong.
func (t *Transport) OnHeartbeat(fn func()) {
	t.hookMu.Lock()
	t.heartbeat = fn
	t.hookMu.Unlock()
}

// Close is idempotent; it also stops the ping loop and unblocks Read.
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)
		t.writeMu.Lock()
		_ = t.conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = t.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		t.writeMu.Unlock()
		err = t.conn.Close()
	})
	return err
}

func (t *Transport) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			t.writeMu.Lock()
			_ = t.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := t.conn.WriteMessage(websocket.PingMessage, nil)
			t.writeMu.Unlock()
			if err != nil {
				_ = t.Close()
				return
			}
		}
	}
}
