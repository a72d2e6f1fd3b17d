package models

import "time"

// EventType discriminates outbound domain events.
type EventType string

const (
	EventSlotCreated    EventType = "SLOT_CREATED"
	EventSlotUpdated    EventType = "SLOT_UPDATED"
	EventSlotCancelled  EventType = "SLOT_CANCELLED"
	EventClassPublished EventType = "CLASS_PUBLISHED"
)

// DomainEvent is handed to the notification emitter boundary. Delivery
// is at-least-once, fire-and-forget: emission failures never roll back
// the mutation that produced the event.
type DomainEvent struct {
	Type    EventType `json:"type"`
	Slot    *Slot     `json:"slot,omitempty"`
	ClassID string    `json:"class_id,omitempty"`
	At      time.Time `json:"at"`
}
