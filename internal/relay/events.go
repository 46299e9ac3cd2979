// Package relay fans chat events out to the other clients of a group room.
// Delivery is best effort: nothing is persisted or acknowledged.
package relay

import "encoding/json"

// Inbound events.
const (
	EventJoinGroup   = "join-group"
	EventLeaveGroup  = "leave-group"
	EventSendMessage = "send-message"
	EventTyping      = "typing"
	EventStopTyping  = "stop-typing"
)

// Outbound events.
const (
	EventNewMessage     = "new-message"
	EventUserTyping     = "user-typing"
	EventUserStopTyping = "user-stop-typing"
	EventError          = "error"
)

// Envelope is the wire frame in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// groupRef is the part of a payload that names the room.
type groupRef struct {
	GroupID string `json:"groupId"`
}

type sendPayload struct {
	GroupID string          `json:"groupId"`
	Message json.RawMessage `json:"message"`
}

// parseGroupID accepts either a bare JSON string or an object with groupId.
func parseGroupID(data json.RawMessage) string {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		return id
	}
	var ref groupRef
	if err := json.Unmarshal(data, &ref); err == nil {
		return ref.GroupID
	}
	return ""
}

func encode(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}
