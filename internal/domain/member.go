// Package domain contains entities without transport logic, just meta-data
package domain

import (
	"sync"
	"time"
)

// Member is the meta of one connected peer.
// The display name is whatever the client declared in its last join
// message; it is not validated for uniqueness.
type Member struct {
	Client      string
	RemoteAddr  string
	ConnectedAt time.Time

	mu   sync.RWMutex
	name string
}

func NewMember(client, remoteAddr string) *Member {
	return &Member{
		Client:      client,
		RemoteAddr:  remoteAddr,
		ConnectedAt: time.Now(),
	}
}

func (m *Member) Name() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.name
}

func (m *Member) SetName(name string) {
	m.mu.Lock()
	m.name = name
	m.mu.Unlock()
}
