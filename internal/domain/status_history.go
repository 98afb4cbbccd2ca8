package domain

import "time"

// StatusHistory is an append-only audit entry, one per status transition.
type StatusHistory struct {
	ID        string
	TicketID  string
	Status    TicketStatus
	ChangedBy string
	CreatedAt time.Time
}
