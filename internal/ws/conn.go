package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/omega-realm/pokeidle/internal/hub"
)

// ErrConnClosed is returned by Send after Close
var ErrConnClosed = errors.New("connection closed")

// Conn is the hub's view of one websocket. Messages queue on a bounded channel
// drained by a single writer goroutine, so Send never blocks the caller.
type Conn struct {
	cfg  Config
	log  *zap.Logger
	send chan []byte
	done chan struct{}

	closeOnce sync.Once
	ws        *websocket.Conn
}

var _ hub.Conn = (*Conn)(nil)

func newConn(cfg Config, log *zap.Logger) *Conn {
	return &Conn{
		cfg:  cfg,
		log:  log,
		send: make(chan []byte, cfg.SendBuffer),
		done: make(chan struct{}),
	}
}

// Send queues msg for the writer. A full buffer is hub.ErrSlowConsumer.
func (c *Conn) Send(msg []byte) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return hub.ErrSlowConsumer
	}
}

// Close stops the writer, which sends a close frame and releases the socket.
// Messages already queued are flushed first.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

func (c *Conn) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// attach binds the upgraded socket and starts the writer
func (c *Conn) attach(ws *websocket.Conn) {
	c.ws = ws
	go c.writePump()
}

func (c *Conn) write(messageType int, data []byte) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
	return c.ws.WriteMessage(messageType, data)
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			if err := c.write(websocket.TextMessage, msg); err != nil {
				c.log.Debug("write failed", zap.Error(err))
				c.Close()
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.log.Debug("ping failed", zap.Error(err))
				c.Close()
				return
			}
		case <-c.done:
			c.flush()
			_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// flush writes whatever is still buffered, such as a session_replaced notice
func (c *Conn) flush() {
	for {
		select {
		case msg := <-c.send:
			if err := c.write(websocket.TextMessage, msg); err != nil {
				return
			}
		default:
			return
		}
	}
}
