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

// CommentService manages the comment thread attached to a ticket.
type CommentService struct {
	comments   repository.CommentRepository
	tickets    repository.TicketRepository
	users      repository.UserRepository
	dispatcher events.Dispatcher
}

// CommentDependencies bundles repositories for comment service.
type CommentDependencies struct {
	CommentRepo repository.CommentRepository
	TicketRepo  repository.TicketRepository
	UserRepo    repository.UserRepository
	Dispatcher  events.Dispatcher
}

// NewCommentService constructs the service.
func NewCommentService(deps CommentDependencies) *CommentService {
	return &CommentService{
		comments:   deps.CommentRepo,
		tickets:    deps.TicketRepo,
		users:      deps.UserRepo,
		dispatcher: deps.Dispatcher,
	}
}

// AddComment appends a comment to the ticket thread. Public comments notify
// the ticket owner and the assignee, skipping whichever of them is the actor.
func (s *CommentService) AddComment(ctx context.Context, actor *domain.User, ticketID, text string, isInternal bool) (*domain.Comment, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !policy.CanAccess(actor, ticket) {
		return nil, apperrors.NewForbidden("not authorized to access this ticket")
	}

	text = strings.TrimSpace(text)
	if err := validateCommentText(text); err != nil {
		return nil, err
	}

	comment := &domain.Comment{
		TicketID:   ticket.ID,
		AuthorID:   actor.ID,
		Text:       text,
		IsInternal: isInternal,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, apperrors.MapError(err)
	}

	if !isInternal {
		var intents []events.NotificationIntent
		if actor.ID != ticket.OwnerID {
			intents = append(intents, events.NotificationIntent{
				Kind: events.IntentNewComment, TicketID: ticket.ID, RecipientID: ticket.OwnerID,
			})
		}
		if ticket.Assigned() && actor.ID != *ticket.AssigneeID {
			intents = append(intents, events.NotificationIntent{
				Kind: events.IntentNewComment, TicketID: ticket.ID, RecipientID: *ticket.AssigneeID,
			})
		}
		s.publishEvent(ctx, events.Event{
			Type:     events.EventCommentAdded,
			TicketID: ticket.ID,
			ActorID:  actor.ID,
			Intents:  intents,
		})
	}
	return comment, nil
}

// ListComments returns the thread ordered oldest first. Internal comments
// are hidden from plain users.
func (s *CommentService) ListComments(ctx context.Context, actor *domain.User, ticketID string) ([]CommentView, error) {
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !policy.CanAccess(actor, ticket) {
		return nil, apperrors.NewForbidden("not authorized to access this ticket")
	}

	comments, err := s.comments.ListByTicket(ctx, ticket.ID, actor.Role.IsStaff())
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	views := make([]CommentView, 0, len(comments))
	for i := range comments {
		view := CommentView{Comment: comments[i]}
		author, err := s.users.GetByID(ctx, comments[i].AuthorID)
		if err == nil {
			view.Author = &UserSummary{ID: author.ID, Name: author.Name, Email: author.Email, Role: author.Role}
		} else if !errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.MapError(err)
		}
		views = append(views, view)
	}
	return views, nil
}

// UpdateComment edits the text; author or admin only.
func (s *CommentService) UpdateComment(ctx context.Context, actor *domain.User, ticketID, commentID, text string) (*domain.Comment, error) {
	comment, err := s.loadComment(ctx, ticketID, commentID)
	if err != nil {
		return nil, err
	}
	if !policy.CanMutateComment(actor, comment) {
		return nil, apperrors.NewForbidden("not authorized to update this comment")
	}

	text = strings.TrimSpace(text)
	if err := validateCommentText(text); err != nil {
		return nil, err
	}

	comment.Text = text
	if err := s.comments.Update(ctx, comment); err != nil {
		return nil, apperrors.MapError(err)
	}
	return comment, nil
}

// DeleteComment removes the comment; author or admin only.
func (s *CommentService) DeleteComment(ctx context.Context, actor *domain.User, ticketID, commentID string) error {
	comment, err := s.loadComment(ctx, ticketID, commentID)
	if err != nil {
		return err
	}
	if !policy.CanMutateComment(actor, comment) {
		return apperrors.NewForbidden("not authorized to delete this comment")
	}
	if err := s.comments.Delete(ctx, comment.ID); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

func (s *CommentService) loadTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

func (s *CommentService) loadComment(ctx context.Context, ticketID, commentID string) (*domain.Comment, error) {
	comment, err := s.comments.GetByID(ctx, commentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("comment", map[string]any{"comment_id": commentID})
		}
		return nil, apperrors.MapError(err)
	}
	if comment.TicketID != ticketID {
		return nil, apperrors.NewNotFound("comment", map[string]any{"comment_id": commentID})
	}
	return comment, nil
}

func (s *CommentService) publishEvent(ctx context.Context, event events.Event) {
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

func validateCommentText(text string) error {
	if len(text) < 1 || len(text) > 1000 {
		return apperrors.NewValidationError("comment text must be between 1 and 1000 characters", nil)
	}
	return nil
}
