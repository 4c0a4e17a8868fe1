package core

import (
	"sync"

	"github.com/dkeye/Meet/internal/domain"
	"github.com/rs/zerolog/log"
)

// roomImpl is a threadsafe in-memory room.
// It never closes adapter-owned resources.
type roomImpl struct {
	id     domain.RoomID
	mu     sync.RWMutex
	bySID  map[SessionID]Connection
	closed bool
}

func NewRoomService(id domain.RoomID) RoomService {
	return &roomImpl{
		id:    id,
		bySID: make(map[SessionID]Connection),
	}
}

func (r *roomImpl) ID() domain.RoomID { return r.id }

func (r *roomImpl) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bySID)
}

func (r *roomImpl) AddMember(conn Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	r.bySID[conn.ID()] = conn
	log.Debug().Str("module", "core.room").Str("room", string(r.id)).Str("sid", string(conn.ID())).Msg("member added")
	return true
}

func (r *roomImpl) RemoveMember(conn Connection) (bool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.bySID[conn.ID()]
	if !ok || cur != conn {
		return false, len(r.bySID) == 0
	}
	delete(r.bySID, conn.ID())
	if len(r.bySID) == 0 {
		r.closed = true
	}
	log.Debug().Str("module", "core.room").Str("room", string(r.id)).Str("sid", string(conn.ID())).Msg("member removed")
	return true, r.closed
}

func (r *roomImpl) Snapshot() []Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Connection, 0, len(r.bySID))
	for _, c := range r.bySID {
		out = append(out, c)
	}
	return out
}

func (r *roomImpl) MembersSnapshot() []MemberDTO {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]MemberDTO, 0, len(r.bySID))
	for sid, c := range r.bySID {
		dto := MemberDTO{ID: sid}
		if m := c.Meta(); m != nil {
			dto.Name = m.Name()
			dto.ConnectedAt = m.ConnectedAt
		}
		out = append(out, dto)
	}
	return out
}
