package app

import "sync"

// RoomRegistry room id -> subscribed connections, with the reverse index for cleanup
type RoomRegistry struct {
	mu          sync.RWMutex
	rooms       map[string]map[*Client]struct{}
	clientRooms map[*Client]map[string]struct{}
}

// NewRoomRegistry create RoomRegistry
func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{
		rooms:       make(map[string]map[*Client]struct{}),
		clientRooms: make(map[*Client]map[string]struct{}),
	}
}

// Subscribe idempotent
func (r *RoomRegistry) Subscribe(roomID string, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.IsClosed() {
		return
	}

	subs, ok := r.rooms[roomID]
	if !ok {
		subs = make(map[*Client]struct{})
		r.rooms[roomID] = subs
	}
	subs[c] = struct{}{}

	joined, ok := r.clientRooms[c]
	if !ok {
		joined = make(map[string]struct{})
		r.clientRooms[c] = joined
	}
	joined[roomID] = struct{}{}
}

// Unsubscribe idempotent, empty room is removed
func (r *RoomRegistry) Unsubscribe(roomID string, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unsubscribeLocked(roomID, c)
}

func (r *RoomRegistry) unsubscribeLocked(roomID string, c *Client) {
	if subs, ok := r.rooms[roomID]; ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(r.rooms, roomID)
		}
	}
	if joined, ok := r.clientRooms[c]; ok {
		delete(joined, roomID)
		if len(joined) == 0 {
			delete(r.clientRooms, c)
		}
	}
}

// RemoveClient drop every subscription of c, return the rooms it was in
func (r *RoomRegistry) RemoveClient(c *Client) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	joined := r.clientRooms[c]
	roomIDs := make([]string, 0, len(joined))
	for roomID := range joined {
		roomIDs = append(roomIDs, roomID)
	}
	for _, roomID := range roomIDs {
		r.unsubscribeLocked(roomID, c)
	}
	return roomIDs
}

// Subscribers snapshot of room connections
func (r *RoomRegistry) Subscribers(roomID string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subs := r.rooms[roomID]
	out := make([]*Client, 0, len(subs))
	for c := range subs {
		out = append(out, c)
	}
	return out
}

// RoomsOf rooms the connection is subscribed to
func (r *RoomRegistry) RoomsOf(c *Client) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	joined := r.clientRooms[c]
	out := make([]string, 0, len(joined))
	for roomID := range joined {
		out = append(out, roomID)
	}
	return out
}

// IsSubscribed check c in room
func (r *RoomRegistry) IsSubscribed(roomID string, c *Client) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[roomID][c]
	return ok
}

// RoomCount number of non-empty rooms
func (r *RoomRegistry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
