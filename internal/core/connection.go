package core

import (
	"errors"

	"github.com/dkeye/Meet/internal/domain"
)

// Frame is a raw text payload as it travels on the wire.
type Frame []byte

type SessionID string

var (
	ErrSendFailed   = errors.New("send failed")
	ErrConnClosed   = errors.New("connection closed")
	ErrBackpressure = errors.New("backpressure")
)

type InboundKind int

const (
	InboundText InboundKind = iota
	InboundClose
	InboundError
)

func (k InboundKind) String() string {
	switch k {
	case InboundText:
		return "text"
	case InboundClose:
		return "close"
	case InboundError:
		return "error"
	}
	return "unknown"
}

// Inbound is one item of a connection's receive sequence.
// The sequence ends with InboundClose or InboundError.
type Inbound struct {
	Kind    InboundKind
	Payload Frame
	Err     error
}

// Connection abstracts one client's duplex message channel.
// Owned by the adapter; the room only sends to it and may Close it
// when a send fails.
type Connection interface {
	ID() SessionID
	Meta() *domain.Member
	// Send queues a frame for the peer. Any error means the peer is gone.
	Send(Frame) error
	// Receive blocks until the next inbound frame.
	Receive() Inbound
	// Close is idempotent and unblocks a pending Receive.
	Close()
	IsClosed() bool
}
