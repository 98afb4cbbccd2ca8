// Package policy holds the pure authorization decisions for tickets and
// comments. Functions here take the actor and the current aggregate state and
// return a verdict; they never touch storage.
package policy

import "github.com/spec-kit/helpdesk-service/internal/domain"

// CanAccess reports whether the actor may read the ticket. Owners, assignees,
// admins and any agent are allowed; the blanket agent grant mirrors the
// production rule even for tickets they are not assigned to.
func CanAccess(actor *domain.User, ticket *domain.Ticket) bool {
	if actor == nil || ticket == nil {
		return false
	}
	if ticket.OwnerID == actor.ID {
		return true
	}
	if ticket.Assigned() && *ticket.AssigneeID == actor.ID {
		return true
	}
	switch actor.Role {
	case domain.RoleAgent, domain.RoleAdmin:
		return true
	case domain.RoleUser:
		return false
	}
	return false
}

// CanModify reports whether the actor may change the ticket. Owners may edit
// only while the ticket is still open; assignees and admins may edit anything
// not yet closed.
func CanModify(actor *domain.User, ticket *domain.Ticket) bool {
	if actor == nil || ticket == nil {
		return false
	}
	if ticket.OwnerID == actor.ID && ticket.Status == domain.TicketStatusOpen {
		return true
	}
	isAssignee := ticket.Assigned() && *ticket.AssigneeID == actor.ID
	if (isAssignee || actor.Role == domain.RoleAdmin) && ticket.Status != domain.TicketStatusClosed {
		return true
	}
	return false
}

// CanRate reports whether the actor may rate the ticket: owner only, and only
// once the ticket is resolved or closed.
func CanRate(actor *domain.User, ticket *domain.Ticket) bool {
	if actor == nil || ticket == nil {
		return false
	}
	if ticket.OwnerID != actor.ID {
		return false
	}
	return ticket.Status == domain.TicketStatusResolved || ticket.Status == domain.TicketStatusClosed
}

// CanMutateComment reports whether the actor may update or delete the comment.
func CanMutateComment(actor *domain.User, comment *domain.Comment) bool {
	if actor == nil || comment == nil {
		return false
	}
	return comment.AuthorID == actor.ID || actor.Role == domain.RoleAdmin
}

// IsAdmin gates administrative routes.
func IsAdmin(actor *domain.User) bool {
	if actor == nil {
		return false
	}
	switch actor.Role {
	case domain.RoleAdmin:
		return true
	case domain.RoleAgent, domain.RoleUser:
		return false
	}
	return false
}

// IsAgentOrAdmin gates staff routes such as assignment.
func IsAgentOrAdmin(actor *domain.User) bool {
	if actor == nil {
		return false
	}
	switch actor.Role {
	case domain.RoleAgent, domain.RoleAdmin:
		return true
	case domain.RoleUser:
		return false
	}
	return false
}
