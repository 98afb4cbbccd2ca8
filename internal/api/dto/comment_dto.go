package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/service"
)

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Text       string `json:"text"`
	IsInternal bool   `json:"isInternal"`
}

// UpdateCommentRequest payload.
type UpdateCommentRequest struct {
	Text string `json:"text"`
}

// CommentResponse shape.
type CommentResponse struct {
	ID         string               `json:"id"`
	TicketID   string               `json:"ticket"`
	Author     *UserSummaryResponse `json:"author,omitempty"`
	Text       string               `json:"text"`
	IsInternal bool                 `json:"isInternal"`
	CreatedAt  time.Time            `json:"createdAt"`
	UpdatedAt  time.Time            `json:"updatedAt"`
}

// NewCommentResponse maps a comment with its author.
func NewCommentResponse(view *service.CommentView) CommentResponse {
	return CommentResponse{
		ID:         view.Comment.ID,
		TicketID:   view.Comment.TicketID,
		Author:     newUserSummaryResponse(view.Author),
		Text:       view.Comment.Text,
		IsInternal: view.Comment.IsInternal,
		CreatedAt:  view.Comment.CreatedAt,
		UpdatedAt:  view.Comment.UpdatedAt,
	}
}
