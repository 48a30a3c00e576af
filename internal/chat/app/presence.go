package app

import (
	"sync"
	"time"
)

// PresenceRegistry user id -> live connections, plus last seen
type PresenceRegistry struct {
	mu       sync.RWMutex
	conns    map[string]map[*Client]struct{}
	lastSeen map[string]time.Time
}

// NewPresenceRegistry create PresenceRegistry
func NewPresenceRegistry() *PresenceRegistry {
	return &PresenceRegistry{
		conns:    make(map[string]map[*Client]struct{}),
		lastSeen: make(map[string]time.Time),
	}
}

// MarkOnline register connection, first is true when the user had no connection before
func (p *PresenceRegistry) MarkOnline(userID string, c *Client) (first bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	set, ok := p.conns[userID]
	if !ok {
		set = make(map[*Client]struct{})
		p.conns[userID] = set
	}
	first = len(set) == 0
	set[c] = struct{}{}
	delete(p.lastSeen, userID)
	return first
}

// MarkOffline deregister connection, last is true when no connection remains
func (p *PresenceRegistry) MarkOffline(userID string, c *Client, at time.Time) (last bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	set, ok := p.conns[userID]
	if !ok {
		return false
	}
	if _, ok := set[c]; !ok {
		return false
	}
	delete(set, c)
	if len(set) > 0 {
		return false
	}
	delete(p.conns, userID)
	p.lastSeen[userID] = at
	return true
}

// IsOnline user has at least one connection
func (p *PresenceRegistry) IsOnline(userID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.conns[userID]) > 0
}

// Connections snapshot of user's connections
func (p *PresenceRegistry) Connections(userID string) []*Client {
	p.mu.RLock()
	defer p.mu.RUnlock()

	set := p.conns[userID]
	out := make([]*Client, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// LastSeen last offline transition observed by this process
func (p *PresenceRegistry) LastSeen(userID string) (time.Time, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	t, ok := p.lastSeen[userID]
	return t, ok
}

// OnlineCount number of online users
func (p *PresenceRegistry) OnlineCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.conns)
}

// All snapshot of every connection, used at shutdown
func (p *PresenceRegistry) All() []*Client {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var out []*Client
	for _, set := range p.conns {
		for c := range set {
			out = append(out, c)
		}
	}
	return out
}
