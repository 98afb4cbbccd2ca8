package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/service"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

// TicketsHandler serves the ticket lifecycle endpoints.
type TicketsHandler struct {
	service *service.TicketService
	upload  config.UploadConfig
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService, upload config.UploadConfig) *TicketsHandler {
	return &TicketsHandler{service: ticketService, upload: upload}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.service.CreateTicket(c.UserContext(), actor, service.TicketCreateInput{
		Subject:     req.Subject,
		Description: req.Description,
		Priority:    domain.TicketPriority(req.Priority),
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, dto.NewTicketSummary(ticket))
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	input, err := parseTicketListQuery(c)
	if err != nil {
		return err
	}

	tickets, total, err := h.service.ListTickets(c.UserContext(), actor, input)
	if err != nil {
		return err
	}

	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.NewTicketSummary(&tickets[i]))
	}
	return respondWithMeta(c, http.StatusOK, items, dto.NewPaginationMeta(total, input.Page, input.Limit))
}

// GetStats GET /tickets/stats.
func (h *TicketsHandler) GetStats(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	stats, err := h.service.GetStatistics(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, dto.NewStatsResponse(
		stats.Total, stats.Open, stats.InProgress, stats.Resolved, stats.Closed, stats.Urgent, stats.High))
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	view, err := h.service.GetTicket(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, dto.NewTicketDetail(view))
}

// UpdateTicket PUT /tickets/:id.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	input := service.TicketUpdateInput{
		Subject:     req.Subject,
		Description: req.Description,
		AssigneeID:  req.Assignee,
	}
	if req.Priority != nil {
		priority := domain.TicketPriority(*req.Priority)
		input.Priority = &priority
	}
	if req.Status != nil {
		status := domain.TicketStatus(*req.Status)
		input.Status = &status
	}

	ticket, err := h.service.UpdateTicket(c.UserContext(), actor, c.Params("id"), input)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, dto.NewTicketSummary(ticket))
}

// DeleteTicket DELETE /tickets/:id. Admin only.
func (h *TicketsHandler) DeleteTicket(c *fiber.Ctx) error {
	if err := h.service.DeleteTicket(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return respondMessage(c, http.StatusOK, "ticket deleted")
}

// AssignTicket PUT /tickets/:id/assign. Agent or admin only.
func (h *TicketsHandler) AssignTicket(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.AssignTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.AssigneeID == "" {
		return apperrors.NewValidationError("assigneeId required", nil)
	}

	ticket, err := h.service.AssignTicket(c.UserContext(), actor, c.Params("id"), req.AssigneeID)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, dto.NewTicketSummary(ticket))
}

// RateTicket POST /tickets/:id/rate.
func (h *TicketsHandler) RateTicket(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.RateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	rating, err := h.service.RateTicket(c.UserContext(), actor, c.Params("id"), req.Score, req.Feedback)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, dto.RatingResponse{
		Score:    rating.Score,
		Feedback: rating.Feedback,
		RatedAt:  rating.RatedAt,
	})
}

// UploadAttachment POST /tickets/:id/attachments. Multipart form with a
// single "file" field. The stored filename is randomized; the original name
// is kept as metadata only.
func (h *TicketsHandler) UploadAttachment(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	file, err := c.FormFile("file")
	if err != nil {
		return apperrors.NewValidationError("file required", nil)
	}
	if file.Size > h.upload.MaxSizeBytes {
		return apperrors.NewValidationError("file too large", map[string]any{"max_bytes": h.upload.MaxSizeBytes})
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(file.Filename)), ".")
	if !h.extensionAllowed(ext) {
		return apperrors.NewValidationError("file type not allowed", map[string]any{"extension": ext})
	}

	storedName := uuid.NewString() + "." + ext
	storagePath := filepath.Join(h.upload.Dir, storedName)
	if err := c.SaveFile(file, storagePath); err != nil {
		return apperrors.NewInternalError(err)
	}

	attachment, err := h.service.AddAttachment(c.UserContext(), actor, c.Params("id"), domain.Attachment{
		Filename:     storedName,
		OriginalName: file.Filename,
		MimeType:     file.Header.Get("Content-Type"),
		SizeBytes:    file.Size,
		StoragePath:  storagePath,
	})
	if err != nil {
		_ = os.Remove(storagePath)
		return err
	}
	return respond(c, http.StatusCreated, dto.NewAttachmentResponse(&service.AttachmentView{
		Attachment: *attachment,
		Uploader:   &service.UserSummary{ID: actor.ID, Name: actor.Name, Email: actor.Email, Role: actor.Role},
	}))
}

func (h *TicketsHandler) extensionAllowed(ext string) bool {
	for _, allowed := range h.upload.AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func parseTicketListQuery(c *fiber.Ctx) (service.TicketListInput, error) {
	// Clamp once here so the service query and the pagination meta see the
	// same values even for page=0 or a negative limit.
	page := parseInt(c.Query("page"), 1)
	if page < 1 {
		page = 1
	}
	limit := parseInt(c.Query("limit"), 10)
	if limit < 1 {
		limit = 10
	}
	input := service.TicketListInput{
		Page:  page,
		Limit: limit,
	}

	if raw := c.Query("status"); raw != "" {
		status, ok := domain.ParseStatus(raw)
		if !ok {
			return input, apperrors.NewValidationError("invalid status filter", map[string]any{"status": raw})
		}
		input.Status = &status
	}
	if raw := c.Query("priority"); raw != "" {
		priority, ok := domain.ParsePriority(raw)
		if !ok {
			return input, apperrors.NewValidationError("invalid priority filter", map[string]any{"priority": raw})
		}
		input.Priority = &priority
	}
	if raw := c.Query("assignee"); raw != "" {
		assignee := raw
		input.AssigneeID = &assignee
	}
	if raw := strings.TrimSpace(c.Query("search")); raw != "" {
		search := raw
		input.Search = &search
	}
	return input, nil
}
