package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in-progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// TicketPriority enumerates urgency levels.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityUrgent TicketPriority = "urgent"
)

// ParseStatus validates a raw status value.
func ParseStatus(raw string) (TicketStatus, bool) {
	switch TicketStatus(raw) {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed:
		return TicketStatus(raw), true
	}
	return "", false
}

// ParsePriority validates a raw priority value.
func ParsePriority(raw string) (TicketPriority, bool) {
	switch TicketPriority(raw) {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent:
		return TicketPriority(raw), true
	}
	return "", false
}

// statusTransitions is the single source of truth for the lifecycle state
// machine. closed is terminal.
var statusTransitions = map[TicketStatus][]TicketStatus{
	TicketStatusOpen:       {TicketStatusInProgress, TicketStatusClosed},
	TicketStatusInProgress: {TicketStatusResolved, TicketStatusOpen},
	TicketStatusResolved:   {TicketStatusClosed, TicketStatusInProgress},
	TicketStatusClosed:     {},
}

// CanTransition reports whether a ticket may move from one status to another.
func CanTransition(from, to TicketStatus) bool {
	for _, candidate := range statusTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// Rating captures the owner's satisfaction score, set after resolution.
type Rating struct {
	Score    int
	Feedback string
	RatedAt  time.Time
}

// Attachment stores metadata for a file attached to a ticket.
type Attachment struct {
	ID           string
	TicketID     string
	Filename     string
	OriginalName string
	MimeType     string
	SizeBytes    int64
	StoragePath  string
	UploadedBy   string
	CreatedAt    time.Time
}

// Ticket is the aggregate root for support requests. Comments, attachments
// and status history are independent records keyed by ticket id and are
// reassembled by query.
type Ticket struct {
	ID          string
	Subject     string
	Description string
	Status      TicketStatus
	Priority    TicketPriority
	OwnerID     string
	AssigneeID  *string
	Rating      *Rating
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Assigned reports whether the ticket has an assignee.
func (t *Ticket) Assigned() bool {
	return t.AssigneeID != nil && *t.AssigneeID != ""
}
