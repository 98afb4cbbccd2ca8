package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Subject     string `json:"subject"`
	Description string `json:"description"`
	Priority    string `json:"priority,omitempty"`
}

// UpdateTicketRequest payload; nil fields are left untouched.
type UpdateTicketRequest struct {
	Subject     *string `json:"subject"`
	Description *string `json:"description"`
	Priority    *string `json:"priority"`
	Status      *string `json:"status"`
	Assignee    *string `json:"assignee"`
}

// AssignTicketRequest payload.
type AssignTicketRequest struct {
	AssigneeID string `json:"assigneeId"`
}

// RateTicketRequest payload.
type RateTicketRequest struct {
	Score    int    `json:"score"`
	Feedback string `json:"feedback,omitempty"`
}

// PaginationMeta describes a result page.
type PaginationMeta struct {
	Total       int64 `json:"total"`
	Page        int   `json:"page"`
	Limit       int   `json:"limit"`
	TotalPages  int   `json:"totalPages"`
	HasNextPage bool  `json:"hasNextPage"`
	HasPrevPage bool  `json:"hasPrevPage"`
}

// NewPaginationMeta computes page navigation fields. Page and limit are
// clamped to 1 so the math never divides by zero on unclamped input.
func NewPaginationMeta(total int64, page, limit int) PaginationMeta {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 1
	}
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return PaginationMeta{
		Total:       total,
		Page:        page,
		Limit:       limit,
		TotalPages:  totalPages,
		HasNextPage: page < totalPages,
		HasPrevPage: page > 1,
	}
}

// UserSummaryResponse is the populated reference shape.
type UserSummaryResponse struct {
	ID    string      `json:"id"`
	Name  string      `json:"name"`
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
}

// RatingResponse shape.
type RatingResponse struct {
	Score    int       `json:"score"`
	Feedback string    `json:"feedback,omitempty"`
	RatedAt  time.Time `json:"ratedAt"`
}

// AttachmentResponse shape.
type AttachmentResponse struct {
	ID           string               `json:"id"`
	Filename     string               `json:"filename"`
	OriginalName string               `json:"originalName"`
	MimeType     string               `json:"mimeType"`
	SizeBytes    int64                `json:"size"`
	UploadedBy   *UserSummaryResponse `json:"uploadedBy,omitempty"`
	CreatedAt    time.Time            `json:"createdAt"`
}

// StatusHistoryResponse shape.
type StatusHistoryResponse struct {
	Status    domain.TicketStatus `json:"status"`
	ChangedBy string              `json:"changedBy"`
	ChangedAt time.Time           `json:"changedAt"`
}

// TicketSummary is the listing shape.
type TicketSummary struct {
	ID          string                `json:"id"`
	Subject     string                `json:"subject"`
	Description string                `json:"description"`
	Status      domain.TicketStatus   `json:"status"`
	Priority    domain.TicketPriority `json:"priority"`
	Owner       string                `json:"owner"`
	Assignee    *string               `json:"assignee,omitempty"`
	Rating      *RatingResponse       `json:"rating,omitempty"`
	CreatedAt   time.Time             `json:"createdAt"`
	UpdatedAt   time.Time             `json:"updatedAt"`
}

// TicketDetailResponse provides the fully populated aggregate.
type TicketDetailResponse struct {
	ID          string                  `json:"id"`
	Subject     string                  `json:"subject"`
	Description string                  `json:"description"`
	Status      domain.TicketStatus     `json:"status"`
	Priority    domain.TicketPriority   `json:"priority"`
	Owner       *UserSummaryResponse    `json:"owner"`
	Assignee    *UserSummaryResponse    `json:"assignee,omitempty"`
	Comments    []CommentResponse       `json:"comments"`
	Attachments []AttachmentResponse    `json:"attachments"`
	History     []StatusHistoryResponse `json:"statusHistory"`
	Rating      *RatingResponse         `json:"rating,omitempty"`
	CreatedAt   time.Time               `json:"createdAt"`
	UpdatedAt   time.Time               `json:"updatedAt"`
}

// StatsResponse mirrors the aggregate counts.
type StatsResponse struct {
	Total      int64 `json:"total"`
	Open       int64 `json:"open"`
	InProgress int64 `json:"inProgress"`
	Resolved   int64 `json:"resolved"`
	Closed     int64 `json:"closed"`
	Urgent     int64 `json:"urgent"`
	High       int64 `json:"high"`
}

// NewTicketSummary maps the domain model.
func NewTicketSummary(ticket *domain.Ticket) TicketSummary {
	return TicketSummary{
		ID:          ticket.ID,
		Subject:     ticket.Subject,
		Description: ticket.Description,
		Status:      ticket.Status,
		Priority:    ticket.Priority,
		Owner:       ticket.OwnerID,
		Assignee:    ticket.AssigneeID,
		Rating:      newRatingResponse(ticket.Rating),
		CreatedAt:   ticket.CreatedAt,
		UpdatedAt:   ticket.UpdatedAt,
	}
}

// NewTicketDetail maps the populated aggregate.
func NewTicketDetail(view *service.TicketView) TicketDetailResponse {
	resp := TicketDetailResponse{
		ID:          view.Ticket.ID,
		Subject:     view.Ticket.Subject,
		Description: view.Ticket.Description,
		Status:      view.Ticket.Status,
		Priority:    view.Ticket.Priority,
		Owner:       newUserSummaryResponse(view.Owner),
		Assignee:    newUserSummaryResponse(view.Assignee),
		Rating:      newRatingResponse(view.Ticket.Rating),
		Comments:    make([]CommentResponse, 0, len(view.Comments)),
		Attachments: make([]AttachmentResponse, 0, len(view.Attachments)),
		History:     make([]StatusHistoryResponse, 0, len(view.History)),
		CreatedAt:   view.Ticket.CreatedAt,
		UpdatedAt:   view.Ticket.UpdatedAt,
	}
	for i := range view.Comments {
		resp.Comments = append(resp.Comments, NewCommentResponse(&view.Comments[i]))
	}
	for i := range view.Attachments {
		resp.Attachments = append(resp.Attachments, NewAttachmentResponse(&view.Attachments[i]))
	}
	for _, entry := range view.History {
		resp.History = append(resp.History, StatusHistoryResponse{
			Status:    entry.Status,
			ChangedBy: entry.ChangedBy,
			ChangedAt: entry.CreatedAt,
		})
	}
	return resp
}

// NewAttachmentResponse maps an attachment with its uploader.
func NewAttachmentResponse(view *service.AttachmentView) AttachmentResponse {
	return AttachmentResponse{
		ID:           view.Attachment.ID,
		Filename:     view.Attachment.Filename,
		OriginalName: view.Attachment.OriginalName,
		MimeType:     view.Attachment.MimeType,
		SizeBytes:    view.Attachment.SizeBytes,
		UploadedBy:   newUserSummaryResponse(view.Uploader),
		CreatedAt:    view.Attachment.CreatedAt,
	}
}

// NewStatsResponse maps repository stats.
func NewStatsResponse(total, open, inProgress, resolved, closed, urgent, high int64) StatsResponse {
	return StatsResponse{
		Total:      total,
		Open:       open,
		InProgress: inProgress,
		Resolved:   resolved,
		Closed:     closed,
		Urgent:     urgent,
		High:       high,
	}
}

func newUserSummaryResponse(summary *service.UserSummary) *UserSummaryResponse {
	if summary == nil {
		return nil
	}
	return &UserSummaryResponse{
		ID:    summary.ID,
		Name:  summary.Name,
		Email: summary.Email,
		Role:  summary.Role,
	}
}

func newRatingResponse(rating *domain.Rating) *RatingResponse {
	if rating == nil {
		return nil
	}
	return &RatingResponse{
		Score:    rating.Score,
		Feedback: rating.Feedback,
		RatedAt:  rating.RatedAt,
	}
}
