package core

import (
	"time"

	"github.com/dkeye/Meet/internal/domain"
)

// PublishResult reports delivery stats of one broadcast.
type PublishResult struct {
	SendTo  int
	Dropped []Connection
}

// MemberDTO is a read-only view for APIs (no transport fields).
type MemberDTO struct {
	ID          SessionID `json:"id"`
	Name        string    `json:"name,omitempty"`
	ConnectedAt time.Time `json:"connected_at"`
}

// RoomService owns the membership set of one room but never touches
// transport resources.
type RoomService interface {
	ID() domain.RoomID
	MemberCount() int
	Snapshot() []Connection
	MembersSnapshot() []MemberDTO

	// AddMember returns false once the room has been closed.
	AddMember(conn Connection) bool
	// RemoveMember reports whether conn was a member and whether the
	// room is now empty. An emptied room is closed for good.
	RemoveMember(conn Connection) (removed, empty bool)
}

type RoomInfo struct {
	ID          domain.RoomID `json:"id"`
	MemberCount int           `json:"client_count"`
}
