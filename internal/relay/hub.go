package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/apperr"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/auth"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/message"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/metrics"
)

// Access decides whether an actor may join a group room.
type Access interface {
	CanAccess(ctx context.Context, groupID string, actor auth.Actor) error
}

// Hub is the room registry: group id to the set of connected clients.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[*Client]struct{}
	access Access
	logger *slog.Logger
}

// NewHub creates an empty registry.
func NewHub(access Access, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{rooms: map[string]map[*Client]struct{}{}, access: access, logger: logger}
}

// Join adds c to the room of groupID.
func (h *Hub) Join(c *Client, groupID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[groupID]
	if !ok {
		room = map[*Client]struct{}{}
		h.rooms[groupID] = room
	}
	room[c] = struct{}{}
	c.rooms[groupID] = struct{}{}
}

// Leave removes c from the room of groupID. Empty rooms are dropped.
func (h *Hub) Leave(c *Client, groupID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, groupID)
}

// LeaveAll removes c from every room it joined.
func (h *Hub) LeaveAll(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for groupID := range c.rooms {
		h.leaveLocked(c, groupID)
	}
}

func (h *Hub) leaveLocked(c *Client, groupID string) {
	delete(c.rooms, groupID)
	room, ok := h.rooms[groupID]
	if !ok {
		return
	}
	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, groupID)
	}
}

// InRoom reports whether c has joined groupID.
func (h *Hub) InRoom(c *Client, groupID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := c.rooms[groupID]
	return ok
}

// RoomSize returns the number of clients in a room.
func (h *Hub) RoomSize(groupID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[groupID])
}

// Broadcast sends a frame to every client in the room except from, which may
// be nil. It returns how many clients accepted the frame.
func (h *Hub) Broadcast(groupID string, from *Client, frame []byte, event string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for c := range h.rooms[groupID] {
		if c == from {
			continue
		}
		if c.enqueue(frame) {
			delivered++
			metrics.RelayEvents.WithLabelValues(event, "delivered").Inc()
		} else {
			metrics.RelayEvents.WithLabelValues(event, "dropped").Inc()
		}
	}
	return delivered
}

// PublishMessage announces a server-created message to the whole room.
func (h *Hub) PublishMessage(groupID string, m message.Message) {
	frame, err := encode(EventNewMessage, m)
	if err != nil {
		h.logger.Warn("relay: encode message failed", "message_id", m.ID, "error", err)
		return
	}
	h.Broadcast(groupID, nil, frame, EventNewMessage)
}

// Dispatch handles one inbound envelope from c.
func (h *Hub) Dispatch(ctx context.Context, c *Client, env Envelope) {
	switch env.Event {
	case EventJoinGroup:
		groupID := parseGroupID(env.Data)
		if err := h.access.CanAccess(ctx, groupID, c.actor); err != nil {
			h.reject(c, env.Event, apperr.Message(err))
			return
		}
		h.Join(c, groupID)
		h.logger.Debug("relay: joined room", "user_id", c.actor.ID, "group_id", groupID)

	case EventLeaveGroup:
		h.Leave(c, parseGroupID(env.Data))

	case EventSendMessage:
		var p sendPayload
		if err := json.Unmarshal(env.Data, &p); err != nil || len(p.Message) == 0 {
			h.reject(c, env.Event, "Invalid payload")
			return
		}
		h.relay(c, p.GroupID, EventNewMessage, p.Message, env.Event)

	case EventTyping, EventStopTyping:
		out := EventUserTyping
		if env.Event == EventStopTyping {
			out = EventUserStopTyping
		}
		h.relay(c, parseGroupID(env.Data), out, env.Data, env.Event)

	default:
		h.reject(c, env.Event, "Unknown event")
	}
}

// relay forwards data as event to the room, provided c has joined it.
func (h *Hub) relay(c *Client, groupID, event string, data []byte, inbound string) {
	if groupID == "" || !h.InRoom(c, groupID) {
		h.reject(c, inbound, "Join the group before sending events")
		return
	}
	frame, err := encode(event, rawJSON(data))
	if err != nil {
		h.reject(c, inbound, "Invalid payload")
		return
	}
	h.Broadcast(groupID, c, frame, event)
}

func (h *Hub) reject(c *Client, event, reason string) {
	metrics.RelayEvents.WithLabelValues(event, "rejected").Inc()
	frame, err := encode(EventError, map[string]string{"event": event, "error": reason})
	if err == nil {
		c.enqueue(frame)
	}
}
