package eventbus

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Event struct {
	EventID   string         `json:"event_id"`
	EventType string         `json:"event_type"`
	Timestamp time.Time      `json:"timestamp"`
	Source    string         `json:"source"`
	WorldID   string         `json:"world_id"`
	ScopeID   *string        `json:"scope_id,omitempty"`
	Payload   map[string]any `json:"payload"`
}

func NewEvent(eventType, source, worldID string, payload map[string]any) Event {
	if payload == nil {
		payload = make(map[string]any)
	}
	return Event{
		EventID:   uuid.NewString(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
		Source:    source,
		WorldID:   worldID,
		Payload:   payload,
	}
}

// HasPrefix reports whether the event type belongs to a family such as TypeEntity.
func (e Event) HasPrefix(prefix string) bool {
	return strings.HasPrefix(e.EventType, prefix)
}

// EntityID returns the entity the event refers to, looking at the payload
// keys used by world producers.
func (e Event) EntityID() string {
	for _, key := range []string{"entity_id", "id"} {
		if v, ok := e.Payload[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// EntityType returns the payload's entity type, if any.
func (e Event) EntityType() string {
	for _, key := range []string{"entity_type", "type"} {
		if v, ok := e.Payload[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// EntityState returns the nested entity payload, or the event payload itself
// when the producer did not nest it.
func (e Event) EntityState() map[string]any {
	if nested, ok := e.Payload["payload"].(map[string]any); ok {
		return nested
	}
	return e.Payload
}
