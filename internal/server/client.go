package server

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"leap-relay-go/internal/logging"
	"leap-relay-go/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingEvery      = (pongWait * 9) / 10
	sendBufferSize = 16
	maxReadBytes   = 1 << 20
)

var (
	ErrSendBufferFull = errors.New("subscriber send buffer full")
	ErrClientClosed   = errors.New("subscriber connection closed")
)

// client is one websocket subscriber. Messages are queued on a small buffer
// and written by a dedicated goroutine so a slow peer never stalls the
// broadcaster; when the buffer is full the message is dropped for this peer.
type client struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	logger *slog.Logger
}

func newClient(id string, conn *websocket.Conn) *client {
	c := &client{
		id:     id,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
		logger: logging.WithSubscriber(id),
	}
	go c.writeLoop()
	return c
}

func (c *client) ID() string {
	return c.id
}

func (c *client) Send(msg []byte) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}
	select {
	case <-c.done:
		return ErrClientClosed
	case c.send <- msg:
		return nil
	default:
		metrics.WebSocketSendDropsTotal.Inc()
		return ErrSendBufferFull
	}
}

// Close is safe to call more than once and from any goroutine.
func (c *client) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		if c.conn != nil {
			err = c.conn.Close()
		}
	})
	return err
}

func (c *client) writeLoop() {
	ticker := time.NewTicker(pingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logger.Debug("Websocket write failed", "error", err)
				_ = c.Close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				metrics.WebSocketPingFailures.Inc()
				_ = c.Close()
				return
			}
		}
	}
}

// readLoop discards inbound messages and returns once the peer goes away.
func (c *client) readLoop() {
	c.conn.SetReadLimit(maxReadBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
