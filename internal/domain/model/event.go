package model

import (
	"time"

	"github.com/google/uuid"
)

type (
	// Event is one tenant-scoped audit record.
	Event struct {
		ID        uuid.UUID      `json:"id"`
		TenantID  string         `json:"tenantId"`
		Type      string         `json:"type"`
		Actor     string         `json:"actor"`
		Payload   map[string]any `json:"payload"`
		CreatedAt time.Time      `json:"createdAt"`
	}

	// EventFilter carries the list constraints an endpoint hands to the
	// events repository. All fields are optional except TenantID; zero
	// values disable the corresponding filter.
	EventFilter struct {
		TenantID string
		Types    []string
		Actor    string
		Payload  map[string]any
		From     time.Time
		To       time.Time
		Page     int
		PerPage  int
		Sort     string
	}
)

func NewEvent(tenantID, eventType, actor string, payload map[string]any) *Event {
	return &Event{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Type:      eventType,
		Actor:     actor,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
}
