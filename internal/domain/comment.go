package domain

import "time"

// Comment is a message on a ticket thread. Internal comments are visible to
// agents and admins only.
type Comment struct {
	ID         string
	TicketID   string
	AuthorID   string
	Text       string
	IsInternal bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
