package events

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventTicketRated         EventType = "ticket_rated"
	EventCommentAdded        EventType = "comment_added"
)

// IntentKind names the outbound notification an event should produce.
type IntentKind string

const (
	IntentTicketCreated  IntentKind = "ticket_created"
	IntentTicketAssigned IntentKind = "ticket_assigned"
	IntentStatusChanged  IntentKind = "ticket_status_changed"
	IntentTicketResolved IntentKind = "ticket_resolved"
	IntentNewComment     IntentKind = "ticket_commented"
)

// NotificationIntent describes a desired outbound email, decoupled from
// delivery. The notification worker owns delivery and retry policy.
type NotificationIntent struct {
	Kind        IntentKind `json:"kind"`
	TicketID    string     `json:"ticket_id"`
	RecipientID string     `json:"recipient_id"`
}

// Event represents a domain event emitted by services after a successful
// mutation.
type Event struct {
	ID        string               `json:"id"`
	Type      EventType            `json:"type"`
	TicketID  string               `json:"ticket_id"`
	ActorID   string               `json:"actor_id"`
	ActorRole domain.Role          `json:"actor_role"`
	Timestamp time.Time            `json:"timestamp"`
	Intents   []NotificationIntent `json:"intents,omitempty"`
}
