package signal

import (
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/gorilla/websocket"
)

// ConnOptions bound a single websocket's resources.
type ConnOptions struct {
	ReadLimit  int64
	PingPeriod time.Duration
	PongWait   time.Duration
	WriteWait  time.Duration
	SendBuffer int
}

// WsSignalConn implements core.Connection over a gorilla websocket.
// Outbound frames go through a bounded queue drained by writePump, so a
// stalled peer never blocks the goroutine that broadcasts to it.
type WsSignalConn struct {
	id   core.SessionID
	meta *domain.Member
	conn *websocket.Conn
	opts ConnOptions
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func NewWsSignalConn(id core.SessionID, meta *domain.Member, ws *websocket.Conn, opts ConnOptions) *WsSignalConn {
	c := &WsSignalConn{
		id:   id,
		meta: meta,
		conn: ws,
		opts: opts,
		send: make(chan core.Frame, opts.SendBuffer),
	}
	if opts.ReadLimit > 0 {
		ws.SetReadLimit(opts.ReadLimit)
	}
	if opts.PongWait > 0 {
		_ = ws.SetReadDeadline(time.Now().Add(opts.PongWait))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(opts.PongWait))
		})
	}
	return c
}

func (c *WsSignalConn) ID() core.SessionID   { return c.id }
func (c *WsSignalConn) Meta() *domain.Member { return c.meta }

func (c *WsSignalConn) Send(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return fmt.Errorf("%w: %w", core.ErrSendFailed, core.ErrConnClosed)
	}
	select {
	case c.send <- f:
		return nil
	default:
		return fmt.Errorf("%w: %w", core.ErrSendFailed, core.ErrBackpressure)
	}
}

func (c *WsSignalConn) Receive() core.Inbound {
	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.IsClosed() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				return core.Inbound{Kind: core.InboundClose, Err: err}
			}
			return core.Inbound{Kind: core.InboundError, Err: err}
		}
		if mt != websocket.TextMessage {
			continue
		}
		return core.Inbound{Kind: core.InboundText, Payload: data}
	}
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	c.mu.Unlock()

	// The close frame waits for the write lock, which a stalled writePump
	// holds for up to WriteWait; Close itself must not wait with it.
	go func() {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(c.opts.WriteWait))
		_ = c.conn.Close()
	}()
}

func (c *WsSignalConn) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}
