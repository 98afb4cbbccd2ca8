package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/policy"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

// TicketService is the lifecycle engine: it owns the status state machine,
// assignment rules, rating eligibility and the status-history audit trail.
type TicketService struct {
	tickets     repository.TicketRepository
	comments    repository.CommentRepository
	attachments repository.AttachmentRepository
	history     repository.StatusHistoryRepository
	users       repository.UserRepository
	dispatcher  events.Dispatcher
}

// TicketDependencies bundles repositories for ticket service.
type TicketDependencies struct {
	TicketRepo     repository.TicketRepository
	CommentRepo    repository.CommentRepository
	AttachmentRepo repository.AttachmentRepository
	HistoryRepo    repository.StatusHistoryRepository
	UserRepo       repository.UserRepository
	Dispatcher     events.Dispatcher
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:     deps.TicketRepo,
		comments:    deps.CommentRepo,
		attachments: deps.AttachmentRepo,
		history:     deps.HistoryRepo,
		users:       deps.UserRepo,
		dispatcher:  deps.Dispatcher,
	}
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Subject     string
	Description string
	Priority    domain.TicketPriority
}

// TicketUpdateInput carries the whitelisted mutable fields. Nil pointers
// leave the stored value untouched; owner is never mutable via this path.
type TicketUpdateInput struct {
	Subject     *string
	Description *string
	Priority    *domain.TicketPriority
	Status      *domain.TicketStatus
	AssigneeID  *string
}

// TicketListInput describes listing filters before role-based scoping.
type TicketListInput struct {
	Status     *domain.TicketStatus
	Priority   *domain.TicketPriority
	AssigneeID *string
	Search     *string
	Page       int
	Limit      int
}

// UserSummary is the populated reference shape for owners, assignees and
// comment authors.
type UserSummary struct {
	ID    string
	Name  string
	Email string
	Role  domain.Role
}

// CommentView pairs a comment with its author.
type CommentView struct {
	Comment domain.Comment
	Author  *UserSummary
}

// AttachmentView pairs an attachment with its uploader.
type AttachmentView struct {
	Attachment domain.Attachment
	Uploader   *UserSummary
}

// TicketView is the fully populated aggregate served by GetTicket.
type TicketView struct {
	Ticket      domain.Ticket
	Owner       *UserSummary
	Assignee    *UserSummary
	Comments    []CommentView
	Attachments []AttachmentView
	History     []domain.StatusHistory
}

// CreateTicket validates input and opens a new ticket owned by the actor.
func (s *TicketService) CreateTicket(ctx context.Context, actor *domain.User, input TicketCreateInput) (*domain.Ticket, error) {
	subject := strings.TrimSpace(input.Subject)
	description := strings.TrimSpace(input.Description)
	if err := validateSubject(subject); err != nil {
		return nil, err
	}
	if err := validateDescription(description); err != nil {
		return nil, err
	}

	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	} else if _, ok := domain.ParsePriority(string(priority)); !ok {
		return nil, apperrors.NewValidationError("invalid priority", map[string]any{"priority": priority})
	}

	ticket := &domain.Ticket{
		Subject:     subject,
		Description: description,
		Status:      domain.TicketStatusOpen,
		Priority:    priority,
		OwnerID:     actor.ID,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		ActorID:  actor.ID,
		Intents: []events.NotificationIntent{
			{Kind: events.IntentTicketCreated, TicketID: ticket.ID, RecipientID: ticket.OwnerID},
		},
	})
	return ticket, nil
}

// UpdateTicket applies whitelisted field updates. A status change must pass
// the transition table and appends exactly one history entry.
func (s *TicketService) UpdateTicket(ctx context.Context, actor *domain.User, ticketID string, input TicketUpdateInput) (*domain.Ticket, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !policy.CanModify(actor, ticket) {
		return nil, apperrors.NewForbidden("not authorized to modify this ticket")
	}

	if input.Subject != nil {
		subject := strings.TrimSpace(*input.Subject)
		if err := validateSubject(subject); err != nil {
			return nil, err
		}
		ticket.Subject = subject
	}
	if input.Description != nil {
		description := strings.TrimSpace(*input.Description)
		if err := validateDescription(description); err != nil {
			return nil, err
		}
		ticket.Description = description
	}
	if input.Priority != nil {
		if _, ok := domain.ParsePriority(string(*input.Priority)); !ok {
			return nil, apperrors.NewValidationError("invalid priority", map[string]any{"priority": *input.Priority})
		}
		ticket.Priority = *input.Priority
	}
	if input.AssigneeID != nil {
		assignee, err := s.lookupAssignee(ctx, *input.AssigneeID)
		if err != nil {
			return nil, err
		}
		ticket.AssigneeID = &assignee.ID
	}

	prevStatus := ticket.Status
	statusChanged := false
	if input.Status != nil && *input.Status != prevStatus {
		next, ok := domain.ParseStatus(string(*input.Status))
		if !ok {
			return nil, apperrors.NewValidationError("invalid status", map[string]any{"status": *input.Status})
		}
		if err := stageTransition(ticket, next); err != nil {
			return nil, err
		}
		statusChanged = true
	}

	if err := s.persist(ctx, ticket, prevStatus); err != nil {
		return nil, err
	}
	if statusChanged {
		if err := s.recordTransition(ctx, ticket, actor.ID); err != nil {
			return nil, err
		}
		s.publishStatusChanged(ctx, actor.ID, ticket)
	}
	return ticket, nil
}

// AssignTicket sets the assignee after validating their role. An open ticket
// auto-transitions to in-progress through the same transition path used by
// UpdateTicket, attributed to the actor.
func (s *TicketService) AssignTicket(ctx context.Context, actor *domain.User, ticketID, assigneeID string) (*domain.Ticket, error) {
	assignee, err := s.lookupAssignee(ctx, assigneeID)
	if err != nil {
		return nil, err
	}

	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	ticket.AssigneeID = &assignee.ID
	prevStatus := ticket.Status
	statusChanged := false
	if ticket.Status == domain.TicketStatusOpen {
		if err := stageTransition(ticket, domain.TicketStatusInProgress); err != nil {
			return nil, err
		}
		statusChanged = true
	}

	if err := s.persist(ctx, ticket, prevStatus); err != nil {
		return nil, err
	}
	if statusChanged {
		if err := s.recordTransition(ctx, ticket, actor.ID); err != nil {
			return nil, err
		}
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: ticket.ID,
		ActorID:  actor.ID,
		Intents: []events.NotificationIntent{
			{Kind: events.IntentTicketAssigned, TicketID: ticket.ID, RecipientID: ticket.OwnerID},
			{Kind: events.IntentTicketAssigned, TicketID: ticket.ID, RecipientID: assignee.ID},
		},
	})
	return ticket, nil
}

// AddAttachment appends an attachment record. No status side effect.
func (s *TicketService) AddAttachment(ctx context.Context, actor *domain.User, ticketID string, attachment domain.Attachment) (*domain.Attachment, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !policy.CanAccess(actor, ticket) {
		return nil, apperrors.NewForbidden("not authorized to access this ticket")
	}

	attachment.TicketID = ticket.ID
	attachment.UploadedBy = actor.ID
	if err := s.attachments.Create(ctx, &attachment); err != nil {
		return nil, apperrors.MapError(err)
	}
	return &attachment, nil
}

// RateTicket records the owner's rating on a resolved or closed ticket.
// Re-rating overwrites the previous score.
func (s *TicketService) RateTicket(ctx context.Context, actor *domain.User, ticketID string, score int, feedback string) (*domain.Rating, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.OwnerID != actor.ID {
		return nil, apperrors.NewConflict("NOT_OWNER", "only ticket owner can rate", nil)
	}
	if !policy.CanRate(actor, ticket) {
		return nil, apperrors.NewConflict("RATING_NOT_ALLOWED", "can only rate resolved or closed tickets", map[string]any{"status": ticket.Status})
	}
	if score < 1 || score > 5 {
		return nil, apperrors.NewValidationError("score must be between 1 and 5", map[string]any{"score": score})
	}
	if len(feedback) > 500 {
		return nil, apperrors.NewValidationError("feedback must be at most 500 characters", nil)
	}

	ticket.Rating = &domain.Rating{
		Score:    score,
		Feedback: feedback,
		RatedAt:  time.Now(),
	}
	if err := s.persist(ctx, ticket, ticket.Status); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketRated,
		TicketID: ticket.ID,
		ActorID:  actor.ID,
	})
	return ticket.Rating, nil
}

// DeleteTicket removes the ticket and cascades to its comments, attachments
// and history in a single transaction.
func (s *TicketService) DeleteTicket(ctx context.Context, ticketID string) error {
	if err := s.tickets.DeleteCascade(ctx, ticketID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return apperrors.MapError(err)
	}
	return nil
}

// GetTicket returns the populated aggregate, enforcing read access. Internal
// comments are filtered out for plain users.
func (s *TicketService) GetTicket(ctx context.Context, actor *domain.User, ticketID string) (*TicketView, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !policy.CanAccess(actor, ticket) {
		return nil, apperrors.NewForbidden("not authorized to access this ticket")
	}

	view := &TicketView{Ticket: *ticket}
	view.Owner, err = s.userSummary(ctx, ticket.OwnerID)
	if err != nil {
		return nil, err
	}
	if ticket.Assigned() {
		view.Assignee, err = s.userSummary(ctx, *ticket.AssigneeID)
		if err != nil {
			return nil, err
		}
	}

	comments, err := s.comments.ListByTicket(ctx, ticket.ID, actor.Role.IsStaff())
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	for i := range comments {
		author, err := s.userSummary(ctx, comments[i].AuthorID)
		if err != nil {
			return nil, err
		}
		view.Comments = append(view.Comments, CommentView{Comment: comments[i], Author: author})
	}

	attachments, err := s.attachments.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	for i := range attachments {
		uploader, err := s.userSummary(ctx, attachments[i].UploadedBy)
		if err != nil {
			return nil, err
		}
		view.Attachments = append(view.Attachments, AttachmentView{Attachment: attachments[i], Uploader: uploader})
	}

	view.History, err = s.history.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return view, nil
}

// ListTickets returns a filtered, paginated page of tickets plus the total
// count. Plain users are forced to their own tickets; agents without an
// explicit assignee filter are scoped to their assignments.
func (s *TicketService) ListTickets(ctx context.Context, actor *domain.User, input TicketListInput) ([]domain.Ticket, int64, error) {
	filter := repository.TicketFilter{
		AssigneeID: input.AssigneeID,
		Search:     input.Search,
	}
	if input.Status != nil {
		filter.Statuses = []domain.TicketStatus{*input.Status}
	}
	if input.Priority != nil {
		filter.Priorities = []domain.TicketPriority{*input.Priority}
	}

	switch actor.Role {
	case domain.RoleUser:
		ownerID := actor.ID
		filter.OwnerID = &ownerID
	case domain.RoleAgent:
		if filter.AssigneeID == nil {
			assigneeID := actor.ID
			filter.AssigneeID = &assigneeID
		}
	case domain.RoleAdmin:
	}

	page := input.Page
	if page < 1 {
		page = 1
	}
	limit := input.Limit
	if limit < 1 {
		limit = 10
	}
	filter.Limit = limit
	filter.Offset = (page - 1) * limit

	tickets, total, err := s.tickets.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, 0, apperrors.MapError(err)
	}
	return tickets, total, nil
}

// GetStatistics returns aggregate counts, scoped to owned tickets for plain
// users and global otherwise.
func (s *TicketService) GetStatistics(ctx context.Context, actor *domain.User) (*repository.TicketStats, error) {
	var ownerScope *string
	if actor.Role == domain.RoleUser {
		ownerID := actor.ID
		ownerScope = &ownerID
	}
	stats, err := s.tickets.Statistics(ctx, ownerScope)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return stats, nil
}

// lookupAssignee is the single assignee gate shared by AssignTicket and
// UpdateTicket: the target must exist and hold an agent or admin role.
func (s *TicketService) lookupAssignee(ctx context.Context, assigneeID string) (*domain.User, error) {
	assignee, err := s.users.GetByID(ctx, assigneeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewConflict("INVALID_ASSIGNEE", "invalid assignee, must be an agent or admin", map[string]any{"assignee_id": assigneeID})
		}
		return nil, apperrors.MapError(err)
	}
	if !assignee.Role.IsStaff() {
		return nil, apperrors.NewConflict("INVALID_ASSIGNEE", "invalid assignee, must be an agent or admin", map[string]any{"assignee_id": assigneeID})
	}
	return assignee, nil
}

func (s *TicketService) loadTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

// stageTransition is the single transition gate shared by UpdateTicket and
// AssignTicket.
func stageTransition(ticket *domain.Ticket, next domain.TicketStatus) error {
	if !domain.CanTransition(ticket.Status, next) {
		return apperrors.NewInvalidTransition(string(ticket.Status), string(next))
	}
	ticket.Status = next
	return nil
}

// persist saves the ticket with a compare-and-swap on the status read at
// load time; a lost race surfaces as a conflict instead of overwriting a
// concurrent transition.
func (s *TicketService) persist(ctx context.Context, ticket *domain.Ticket, expectedStatus domain.TicketStatus) error {
	if err := s.tickets.Update(ctx, ticket, expectedStatus); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewConflict("CONCURRENT_UPDATE", "ticket was modified concurrently", map[string]any{"ticket_id": ticket.ID})
		}
		return apperrors.MapError(err)
	}
	return nil
}

func (s *TicketService) recordTransition(ctx context.Context, ticket *domain.Ticket, actorID string) error {
	entry := &domain.StatusHistory{
		TicketID:  ticket.ID,
		Status:    ticket.Status,
		ChangedBy: actorID,
	}
	if err := s.history.Create(ctx, entry); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

func (s *TicketService) publishStatusChanged(ctx context.Context, actorID string, ticket *domain.Ticket) {
	intents := []events.NotificationIntent{
		{Kind: events.IntentStatusChanged, TicketID: ticket.ID, RecipientID: ticket.OwnerID},
	}
	if ticket.Status == domain.TicketStatusResolved {
		intents = append(intents, events.NotificationIntent{
			Kind: events.IntentTicketResolved, TicketID: ticket.ID, RecipientID: ticket.OwnerID,
		})
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticket.ID,
		ActorID:  actorID,
		Intents:  intents,
	})
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func (s *TicketService) userSummary(ctx context.Context, userID string) (*UserSummary, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, apperrors.MapError(err)
	}
	return &UserSummary{ID: user.ID, Name: user.Name, Email: user.Email, Role: user.Role}, nil
}

func validateSubject(subject string) error {
	if len(subject) < 5 || len(subject) > 200 {
		return apperrors.NewValidationError("subject must be between 5 and 200 characters", nil)
	}
	return nil
}

func validateDescription(description string) error {
	if len(description) < 10 || len(description) > 2000 {
		return apperrors.NewValidationError("description must be between 10 and 2000 characters", nil)
	}
	return nil
}
