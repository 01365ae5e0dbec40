package venue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrNotConnected is returned by Send when no connection is currently open.
var ErrNotConnected = errors.New("venue: websocket not connected")

// WSFeed wraps a gorilla/websocket connection with auto-reconnect,
// exponential backoff, a ping loop, and a read deadline. Both the HMAC-signed
// and EIP-712-signed adapters embed one; only the subscribe payload and
// message decoding differ between them.
type WSFeed struct {
	url    string
	log    *slog.Logger
	onOpen func(conn *websocket.Conn) error   // send subscribe frames
	onMsg  func(data []byte) error            // decode + dispatch one frame

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewWSFeed creates a feed bound to url. onOpen is called after every
// successful dial (including reconnects) to (re-)send subscription frames.
// onMsg is called for every inbound text/binary frame.
func NewWSFeed(url string, log *slog.Logger, onOpen func(*websocket.Conn) error, onMsg func([]byte) error) *WSFeed {
	return &WSFeed{url: url, log: log, onOpen: onOpen, onMsg: onMsg}
}

// Run dials and redials until ctx is cancelled, applying exponential backoff
// between attempts. It returns only when ctx is done.
func (f *WSFeed) Run(ctx context.Context) {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		if ctx.Err() != nil {
			return
		}
		if err := f.runOnce(ctx); err != nil {
			f.log.Warn("ws feed disconnected", "url", f.url, "error", err, "retry_in", backoff)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (f *WSFeed) runOnce(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.conn = conn
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		if f.conn == conn {
			f.conn = nil
		}
		f.mu.Unlock()
		conn.Close()
	}()

	// ReadMessage below blocks with no ctx awareness; closing the connection
	// out-of-band is the only way to unblock it when the caller cancels ctx.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-watchDone:
		}
	}()

	if f.onOpen != nil {
		if err := f.onOpen(conn); err != nil {
			return err
		}
	}

	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	pingDone := make(chan struct{})
	defer close(pingDone)
	go f.pingLoop(conn, pingDone)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if f.onMsg != nil {
			if err := f.onMsg(data); err != nil {
				f.log.Error("ws message handling failed", "error", err)
			}
		}
	}
}

func (f *WSFeed) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(20 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			f.mu.Lock()
			active := f.conn == conn
			f.mu.Unlock()
			if !active {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close force-closes the current connection, if any, unblocking any pending
// read so Run can observe ctx cancellation and exit. Safe to call
// concurrently with Run.
func (f *WSFeed) Close() error {
	f.mu.Lock()
	conn := f.conn
	f.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

// Send writes a JSON-able frame to the current connection, if any.
func (f *WSFeed) Send(data []byte) error {
	f.mu.Lock()
	conn := f.conn
	f.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}
