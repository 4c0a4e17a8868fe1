package app

import (
	"sort"
	"sync"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/metrics"
	"github.com/rs/zerolog/log"
)

// Registry maps room ids to their live member sets.
// A room is present exactly while it has at least one member.
type Registry struct {
	mu      sync.RWMutex
	rooms   map[domain.RoomID]core.RoomService
	metrics *metrics.Metrics
}

func NewRegistry(m *metrics.Metrics) *Registry {
	return &Registry{
		rooms:   make(map[domain.RoomID]core.RoomService),
		metrics: m,
	}
}

// Join adds conn to the room, creating the room if absent.
func (r *Registry) Join(id domain.RoomID, conn core.Connection) {
	for {
		room := r.getOrCreate(id)
		if room.AddMember(conn) {
			r.metrics.MemberJoined()
			log.Info().Str("module", "app.registry").Str("room", string(id)).Str("sid", string(conn.ID())).Msg("joined")
			return
		}
		// The room emptied between lookup and insert; replace it.
		r.drop(id, room)
	}
}

// Leave removes conn from the room and deletes the room once empty.
// Calling it again, or for a room that no longer exists, is a no-op.
func (r *Registry) Leave(id domain.RoomID, conn core.Connection) {
	room, ok := r.room(id)
	if !ok {
		return
	}
	removed, empty := room.RemoveMember(conn)
	if !removed {
		return
	}
	r.metrics.MemberLeft()
	log.Info().Str("module", "app.registry").Str("room", string(id)).Str("sid", string(conn.ID())).Msg("left")
	if empty {
		r.drop(id, room)
	}
}

// Broadcast delivers msg to every member except exclude. Members whose
// send fails are evicted; delivery to the others carries on.
func (r *Registry) Broadcast(id domain.RoomID, msg core.Frame, exclude core.Connection) core.PublishResult {
	res := core.PublishResult{}
	room, ok := r.room(id)
	if !ok {
		return res
	}

	for _, m := range room.Snapshot() {
		if m == exclude {
			continue
		}
		if err := m.Send(msg); err != nil {
			log.Warn().Err(err).Str("module", "app.registry").Str("room", string(id)).Str("sid", string(m.ID())).Msg("send failed, evicting")
			res.Dropped = append(res.Dropped, m)
			continue
		}
		res.SendTo++
	}

	for _, m := range res.Dropped {
		r.metrics.SendFailed()
		r.Leave(id, m)
		m.Close()
	}
	log.Debug().Str("module", "app.registry").Str("room", string(id)).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

func (r *Registry) Has(id domain.RoomID) bool {
	_, ok := r.room(id)
	return ok
}

func (r *Registry) MemberCount(id domain.RoomID) int {
	room, ok := r.room(id)
	if !ok {
		return 0
	}
	return room.MemberCount()
}

func (r *Registry) Members(id domain.RoomID) ([]core.MemberDTO, bool) {
	room, ok := r.room(id)
	if !ok {
		return nil, false
	}
	return room.MembersSnapshot(), true
}

// Rooms lists live rooms ordered by id.
func (r *Registry) Rooms() []core.RoomInfo {
	r.mu.RLock()
	out := make([]core.RoomInfo, 0, len(r.rooms))
	for id, room := range r.rooms {
		out = append(out, core.RoomInfo{ID: id, MemberCount: room.MemberCount()})
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *Registry) room(id domain.RoomID) (core.RoomService, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[id]
	return room, ok
}

func (r *Registry) getOrCreate(id domain.RoomID) core.RoomService {
	r.mu.RLock()
	room, ok := r.rooms[id]
	r.mu.RUnlock()
	if ok {
		return room
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if room, ok = r.rooms[id]; ok {
		return room
	}
	room = core.NewRoomService(id)
	r.rooms[id] = room
	r.metrics.RoomOpened()
	log.Info().Str("module", "app.registry").Str("room", string(id)).Msg("room created")
	return room
}

// drop deletes the entry only if it still points at room.
func (r *Registry) drop(id domain.RoomID, room core.RoomService) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.rooms[id]; ok && cur == room {
		delete(r.rooms, id)
		r.metrics.RoomClosed()
		log.Info().Str("module", "app.registry").Str("room", string(id)).Msg("room deleted")
	}
}
