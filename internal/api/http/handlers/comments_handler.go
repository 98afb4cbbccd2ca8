package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/service"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

// CommentsHandler serves the per-ticket comment thread.
type CommentsHandler struct {
	service *service.CommentService
}

// NewCommentsHandler constructs handler.
func NewCommentsHandler(commentService *service.CommentService) *CommentsHandler {
	return &CommentsHandler{service: commentService}
}

// ListComments GET /tickets/:id/comments.
func (h *CommentsHandler) ListComments(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	views, err := h.service.ListComments(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}

	items := make([]dto.CommentResponse, 0, len(views))
	for i := range views {
		items = append(items, dto.NewCommentResponse(&views[i]))
	}
	return respond(c, http.StatusOK, items)
}

// AddComment POST /tickets/:id/comments.
func (h *CommentsHandler) AddComment(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CreateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	// Only staff can flag a comment as internal.
	isInternal := req.IsInternal && actor.Role.IsStaff()

	comment, err := h.service.AddComment(c.UserContext(), actor, c.Params("id"), req.Text, isInternal)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, dto.NewCommentResponse(&service.CommentView{
		Comment: *comment,
		Author:  &service.UserSummary{ID: actor.ID, Name: actor.Name, Email: actor.Email, Role: actor.Role},
	}))
}

// UpdateComment PUT /tickets/:id/comments/:commentId.
func (h *CommentsHandler) UpdateComment(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.UpdateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	comment, err := h.service.UpdateComment(c.UserContext(), actor, c.Params("id"), c.Params("commentId"), req.Text)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, dto.NewCommentResponse(&service.CommentView{Comment: *comment}))
}

// DeleteComment DELETE /tickets/:id/comments/:commentId.
func (h *CommentsHandler) DeleteComment(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	if err := h.service.DeleteComment(c.UserContext(), actor, c.Params("id"), c.Params("commentId")); err != nil {
		return err
	}
	return respondMessage(c, http.StatusOK, "comment deleted")
}
