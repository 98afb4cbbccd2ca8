package service_test

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
)

// In-memory repositories mirroring the Postgres implementations closely
// enough to exercise the service layer, including the compare-and-swap
// update semantics.

type memUserRepo struct {
	users map[string]*domain.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]*domain.User)}
}

func (r *memUserRepo) Create(_ context.Context, user *domain.User) error {
	user.ID = uuid.NewString()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	clone := *user
	r.users[user.ID] = &clone
	return nil
}

func (r *memUserRepo) Update(_ context.Context, user *domain.User) error {
	if _, ok := r.users[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	clone := *user
	clone.UpdatedAt = time.Now()
	r.users[user.ID] = &clone
	return nil
}

func (r *memUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *user
	return &clone, nil
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, user := range r.users {
		if user.Email == email {
			clone := *user
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memUserRepo) List(_ context.Context, limit, offset int) ([]domain.User, error) {
	var result []domain.User
	for _, user := range r.users {
		result = append(result, *user)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	if offset >= len(result) {
		return nil, nil
	}
	result = result[offset:]
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *memUserRepo) ListAgents(_ context.Context) ([]domain.User, error) {
	var result []domain.User
	for _, user := range r.users {
		if user.Role.IsStaff() && user.IsActive {
			result = append(result, *user)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (r *memUserRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.users[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.users, id)
	return nil
}

func (r *memUserRepo) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	user, ok := r.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.LastLogin = &at
	return nil
}

func (r *memUserRepo) add(user *domain.User) *domain.User {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	clone := *user
	r.users[user.ID] = &clone
	return user
}

type memTicketRepo struct {
	tickets     map[string]*domain.Ticket
	comments    *memCommentRepo
	attachments *memAttachmentRepo
	history     *memHistoryRepo
	seq         int
}

func newMemTicketRepo(comments *memCommentRepo, attachments *memAttachmentRepo, history *memHistoryRepo) *memTicketRepo {
	return &memTicketRepo{
		tickets:     make(map[string]*domain.Ticket),
		comments:    comments,
		attachments: attachments,
		history:     history,
	}
}

func (r *memTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	ticket.ID = uuid.NewString()
	r.seq++
	ticket.CreatedAt = time.Now().Add(time.Duration(r.seq) * time.Millisecond)
	ticket.UpdatedAt = ticket.CreatedAt
	clone := *ticket
	r.tickets[ticket.ID] = &clone
	return nil
}

func (r *memTicketRepo) Update(_ context.Context, ticket *domain.Ticket, expectedStatus domain.TicketStatus) error {
	stored, ok := r.tickets[ticket.ID]
	if !ok || stored.Status != expectedStatus {
		return pgx.ErrNoRows
	}
	clone := *ticket
	clone.UpdatedAt = time.Now()
	r.tickets[ticket.ID] = &clone
	return nil
}

func (r *memTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *ticket
	return &clone, nil
}

func (r *memTicketRepo) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, int64, error) {
	var matched []domain.Ticket
	for _, ticket := range r.tickets {
		if filter.OwnerID != nil && ticket.OwnerID != *filter.OwnerID {
			continue
		}
		if filter.AssigneeID != nil && (ticket.AssigneeID == nil || *ticket.AssigneeID != *filter.AssigneeID) {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, ticket.Status) {
			continue
		}
		if len(filter.Priorities) > 0 && !containsPriority(filter.Priorities, ticket.Priority) {
			continue
		}
		if filter.Search != nil {
			needle := strings.ToLower(*filter.Search)
			if !strings.Contains(strings.ToLower(ticket.Subject), needle) &&
				!strings.Contains(strings.ToLower(ticket.Description), needle) {
				continue
			}
		}
		matched = append(matched, *ticket)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := int64(len(matched))
	if filter.Offset >= len(matched) {
		return nil, total, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}

func (r *memTicketRepo) Statistics(_ context.Context, ownerID *string) (*repository.TicketStats, error) {
	stats := &repository.TicketStats{}
	for _, ticket := range r.tickets {
		if ownerID != nil && ticket.OwnerID != *ownerID {
			continue
		}
		stats.Total++
		switch ticket.Status {
		case domain.TicketStatusOpen:
			stats.Open++
		case domain.TicketStatusInProgress:
			stats.InProgress++
		case domain.TicketStatusResolved:
			stats.Resolved++
		case domain.TicketStatusClosed:
			stats.Closed++
		}
		switch ticket.Priority {
		case domain.TicketPriorityUrgent:
			stats.Urgent++
		case domain.TicketPriorityHigh:
			stats.High++
		}
	}
	return stats, nil
}

func (r *memTicketRepo) DeleteCascade(_ context.Context, id string) error {
	if _, ok := r.tickets[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.tickets, id)
	r.comments.deleteByTicket(id)
	r.attachments.deleteByTicket(id)
	r.history.deleteByTicket(id)
	return nil
}

type memCommentRepo struct {
	comments map[string]*domain.Comment
	seq      int
}

func newMemCommentRepo() *memCommentRepo {
	return &memCommentRepo{comments: make(map[string]*domain.Comment)}
}

func (r *memCommentRepo) Create(_ context.Context, comment *domain.Comment) error {
	comment.ID = uuid.NewString()
	r.seq++
	comment.CreatedAt = time.Now().Add(time.Duration(r.seq) * time.Millisecond)
	comment.UpdatedAt = comment.CreatedAt
	clone := *comment
	r.comments[comment.ID] = &clone
	return nil
}

func (r *memCommentRepo) Update(_ context.Context, comment *domain.Comment) error {
	if _, ok := r.comments[comment.ID]; !ok {
		return pgx.ErrNoRows
	}
	clone := *comment
	clone.UpdatedAt = time.Now()
	r.comments[comment.ID] = &clone
	return nil
}

func (r *memCommentRepo) GetByID(_ context.Context, id string) (*domain.Comment, error) {
	comment, ok := r.comments[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *comment
	return &clone, nil
}

func (r *memCommentRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.comments[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.comments, id)
	return nil
}

func (r *memCommentRepo) ListByTicket(_ context.Context, ticketID string, includeInternal bool) ([]domain.Comment, error) {
	var result []domain.Comment
	for _, comment := range r.comments {
		if comment.TicketID != ticketID {
			continue
		}
		if comment.IsInternal && !includeInternal {
			continue
		}
		result = append(result, *comment)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (r *memCommentRepo) deleteByTicket(ticketID string) {
	for id, comment := range r.comments {
		if comment.TicketID == ticketID {
			delete(r.comments, id)
		}
	}
}

type memAttachmentRepo struct {
	attachments map[string]*domain.Attachment
}

func newMemAttachmentRepo() *memAttachmentRepo {
	return &memAttachmentRepo{attachments: make(map[string]*domain.Attachment)}
}

func (r *memAttachmentRepo) Create(_ context.Context, attachment *domain.Attachment) error {
	attachment.ID = uuid.NewString()
	attachment.CreatedAt = time.Now()
	clone := *attachment
	r.attachments[attachment.ID] = &clone
	return nil
}

func (r *memAttachmentRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.Attachment, error) {
	var result []domain.Attachment
	for _, attachment := range r.attachments {
		if attachment.TicketID == ticketID {
			result = append(result, *attachment)
		}
	}
	return result, nil
}

func (r *memAttachmentRepo) deleteByTicket(ticketID string) {
	for id, attachment := range r.attachments {
		if attachment.TicketID == ticketID {
			delete(r.attachments, id)
		}
	}
}

type memHistoryRepo struct {
	entries []domain.StatusHistory
	seq     int
}

func newMemHistoryRepo() *memHistoryRepo {
	return &memHistoryRepo{}
}

func (r *memHistoryRepo) Create(_ context.Context, entry *domain.StatusHistory) error {
	entry.ID = uuid.NewString()
	r.seq++
	entry.CreatedAt = time.Now().Add(time.Duration(r.seq) * time.Millisecond)
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *memHistoryRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.StatusHistory, error) {
	var result []domain.StatusHistory
	for _, entry := range r.entries {
		if entry.TicketID == ticketID {
			result = append(result, entry)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (r *memHistoryRepo) deleteByTicket(ticketID string) {
	var kept []domain.StatusHistory
	for _, entry := range r.entries {
		if entry.TicketID != ticketID {
			kept = append(kept, entry)
		}
	}
	r.entries = kept
}

type memRefreshStore struct {
	tokens map[string]string
}

func newMemRefreshStore() *memRefreshStore {
	return &memRefreshStore{tokens: make(map[string]string)}
}

func (s *memRefreshStore) Save(_ context.Context, tokenID, userID string, _ time.Duration) error {
	s.tokens[tokenID] = userID
	return nil
}

func (s *memRefreshStore) Get(_ context.Context, tokenID string) (string, error) {
	userID, ok := s.tokens[tokenID]
	if !ok {
		return "", repository.ErrRefreshTokenNotFound
	}
	return userID, nil
}

func (s *memRefreshStore) Delete(_ context.Context, tokenID string) error {
	delete(s.tokens, tokenID)
	return nil
}

func containsStatus(statuses []domain.TicketStatus, status domain.TicketStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func containsPriority(priorities []domain.TicketPriority, priority domain.TicketPriority) bool {
	for _, p := range priorities {
		if p == priority {
			return true
		}
	}
	return false
}
