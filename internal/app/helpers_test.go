package app

import (
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
)

// fakeConn is an in-memory Connection. Frames pushed with deliver are
// returned by Receive; sent frames are recorded.
type fakeConn struct {
	id   core.SessionID
	meta *domain.Member
	in   chan core.Inbound

	mu      sync.Mutex
	sent    []core.Frame
	failing bool

	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{
		id:     core.SessionID(id),
		meta:   domain.NewMember("ct-"+id, "127.0.0.1"),
		in:     make(chan core.Inbound, 16),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ID() core.SessionID   { return c.id }
func (c *fakeConn) Meta() *domain.Member { return c.meta }

func (c *fakeConn) Send(f core.Frame) error {
	if c.IsClosed() {
		return core.ErrConnClosed
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failing {
		return core.ErrBackpressure
	}
	c.sent = append(c.sent, f)
	return nil
}

func (c *fakeConn) Receive() core.Inbound {
	select {
	case in := <-c.in:
		return in
	case <-c.closed:
		return core.Inbound{Kind: core.InboundClose}
	}
}

func (c *fakeConn) Close() {
	c.closeOnce.Do(func() { close(c.closed) })
}

func (c *fakeConn) IsClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *fakeConn) deliver(msg string) {
	c.in <- core.Inbound{Kind: core.InboundText, Payload: core.Frame(msg)}
}

func (c *fakeConn) setFailing() {
	c.mu.Lock()
	c.failing = true
	c.mu.Unlock()
}

func (c *fakeConn) received() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.sent))
	for i, f := range c.sent {
		out[i] = string(f)
	}
	return out
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", what)
}
