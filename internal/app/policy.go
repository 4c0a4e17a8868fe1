package app

import "github.com/dkeye/Meet/internal/core"

type OverflowAction int

const (
	DropFrame OverflowAction = iota
	KickMember
)

// ParseOverflowAction maps a config value to an action; unknown values drop.
func ParseOverflowAction(s string) OverflowAction {
	if s == "kick" {
		return KickMember
	}
	return DropFrame
}

// Limiter decides whether a connection may relay one more message.
type Limiter interface {
	Allow(sid core.SessionID) bool
	Forget(sid core.SessionID)
}

// Policy decides what happens to a member that exceeds its message rate.
type Policy interface {
	OnRateLimited(conn core.Connection) OverflowAction
}

type SimplePolicy struct {
	Action OverflowAction
}

func (p SimplePolicy) OnRateLimited(core.Connection) OverflowAction {
	return p.Action
}
