package app

import (
	"encoding/json"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/pkg/logger"

	"go.uber.org/zap"
)

// Dispatcher fan-out to room subscribers, fire-and-forget
type Dispatcher struct {
	rooms *RoomRegistry
}

// NewDispatcher create Dispatcher
func NewDispatcher(rooms *RoomRegistry) *Dispatcher {
	return &Dispatcher{rooms: rooms}
}

func encodeFrame(event domain.Event, payload interface{}) ([]byte, error) {
	return json.Marshal(domain.WSResponse{Event: event, Data: payload})
}

// Unicast deliver to exactly one connection
func (d *Dispatcher) Unicast(c *Client, event domain.Event, payload interface{}) bool {
	frame, err := encodeFrame(event, payload)
	if err != nil {
		logger.Log.Error("encode frame failed", zap.String("event", string(event)), zap.Error(err))
		return false
	}
	return c.Enqueue(frame)
}

// BroadcastToRoom deliver to every subscriber except exclude, return delivered count
func (d *Dispatcher) BroadcastToRoom(roomID string, event domain.Event, payload interface{}, exclude *Client) int {
	frame, err := encodeFrame(event, payload)
	if err != nil {
		logger.Log.Error("encode frame failed", zap.String("event", string(event)), zap.Error(err))
		return 0
	}

	n := 0
	for _, c := range d.rooms.Subscribers(roomID) {
		if c == exclude {
			continue
		}
		if c.Enqueue(frame) {
			n++
		}
	}
	return n
}

// BroadcastToRoomFunc per-recipient payload, e.g. fromSelf
func (d *Dispatcher) BroadcastToRoomFunc(roomID string, event domain.Event, exclude *Client, payloadFor func(c *Client) interface{}) int {
	cache := make(map[string][]byte)
	n := 0
	for _, c := range d.rooms.Subscribers(roomID) {
		if c == exclude {
			continue
		}
		frame, ok := cache[c.UserID]
		if !ok {
			var err error
			frame, err = encodeFrame(event, payloadFor(c))
			if err != nil {
				logger.Log.Error("encode frame failed", zap.String("event", string(event)), zap.Error(err))
				continue
			}
			cache[c.UserID] = frame
		}
		if c.Enqueue(frame) {
			n++
		}
	}
	return n
}

// BroadcastToRooms deliver once per connection across rooms, skipping every connection of excludeUser
func (d *Dispatcher) BroadcastToRooms(roomIDs []string, event domain.Event, payload interface{}, excludeUser string) int {
	frame, err := encodeFrame(event, payload)
	if err != nil {
		logger.Log.Error("encode frame failed", zap.String("event", string(event)), zap.Error(err))
		return 0
	}

	seen := make(map[*Client]struct{})
	n := 0
	for _, roomID := range roomIDs {
		for _, c := range d.rooms.Subscribers(roomID) {
			if c.UserID == excludeUser {
				continue
			}
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			if c.Enqueue(frame) {
				n++
			}
		}
	}
	return n
}
