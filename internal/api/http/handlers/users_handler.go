package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/service"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

// UsersHandler serves registration, the session endpoints and admin account
// management.
type UsersHandler struct {
	authService *service.AuthService
	userService *service.UserService
	cfg         config.AuthConfig
}

// NewUsersHandler constructs handler.
func NewUsersHandler(authService *service.AuthService, userService *service.UserService, cfg config.AuthConfig) *UsersHandler {
	return &UsersHandler{authService: authService, userService: userService, cfg: cfg}
}

// Register POST /auth/register. Self-registration always produces a plain
// user account; elevated roles are granted through the admin update path.
func (h *UsersHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	user, pair, err := h.authService.Register(c.UserContext(), req.Name, req.Email, req.Password, "")
	if err != nil {
		return err
	}

	h.setSessionCookies(c, pair)
	return respond(c, http.StatusCreated, fiber.Map{
		"user": dto.NewUserResponse(user),
		"auth": dto.AuthResponse{
			Token:        pair.AccessToken,
			RefreshToken: pair.RefreshToken,
			ExpiresAt:    pair.AccessExpiresAt,
		},
	})
}

// Login POST /auth/login.
func (h *UsersHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}

	user, pair, err := h.authService.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}

	h.setSessionCookies(c, pair)
	return respond(c, http.StatusOK, fiber.Map{
		"user": dto.NewUserResponse(user),
		"auth": dto.AuthResponse{
			Token:        pair.AccessToken,
			RefreshToken: pair.RefreshToken,
			ExpiresAt:    pair.AccessExpiresAt,
		},
	})
}

// Refresh POST /auth/refresh. The refresh token comes from the request body
// or falls back to the httpOnly cookie.
func (h *UsersHandler) Refresh(c *fiber.Ctx) error {
	var req dto.RefreshRequest
	_ = c.BodyParser(&req)
	refreshToken := req.RefreshToken
	if refreshToken == "" {
		refreshToken = c.Cookies(h.cfg.RefreshCookieName)
	}
	if refreshToken == "" {
		return apperrors.NewUnauthorized("refresh token required")
	}

	token, expiresAt, err := h.authService.Refresh(c.UserContext(), refreshToken)
	if err != nil {
		return err
	}

	h.setCookie(c, h.cfg.AccessCookieName, token, expiresAt)
	return respond(c, http.StatusOK, dto.AuthResponse{Token: token, ExpiresAt: expiresAt})
}

// Logout POST /auth/logout. Revokes the refresh token and clears cookies.
func (h *UsersHandler) Logout(c *fiber.Ctx) error {
	var req dto.RefreshRequest
	_ = c.BodyParser(&req)
	refreshToken := req.RefreshToken
	if refreshToken == "" {
		refreshToken = c.Cookies(h.cfg.RefreshCookieName)
	}

	if err := h.authService.Logout(c.UserContext(), refreshToken); err != nil {
		return apperrors.MapError(err)
	}

	h.clearCookie(c, h.cfg.AccessCookieName)
	h.clearCookie(c, h.cfg.RefreshCookieName)
	return respondMessage(c, http.StatusOK, "logged out")
}

// Me GET /auth/me.
func (h *UsersHandler) Me(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	return respond(c, http.StatusOK, dto.NewUserResponse(actor))
}

// ListUsers GET /users. Admin only.
func (h *UsersHandler) ListUsers(c *fiber.Ctx) error {
	page := parseInt(c.Query("page"), 1)
	limit := parseInt(c.Query("limit"), 20)
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	users, err := h.userService.ListUsers(c.UserContext(), limit, (page-1)*limit)
	if err != nil {
		return err
	}

	items := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		items = append(items, dto.NewUserResponse(&users[i]))
	}
	return respond(c, http.StatusOK, items)
}

// GetUser GET /users/:id. Admin only.
func (h *UsersHandler) GetUser(c *fiber.Ctx) error {
	user, err := h.userService.GetUser(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, dto.NewUserResponse(user))
}

// CreateUser POST /users. Admin only; accepts any role and does not start a
// session for the new account.
func (h *UsersHandler) CreateUser(c *fiber.Ctx) error {
	var req dto.CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	user, err := h.userService.CreateUser(c.UserContext(), service.UserCreateInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, dto.NewUserResponse(user))
}

// DeleteUser DELETE /users/:id. Admin only.
func (h *UsersHandler) DeleteUser(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if err := h.userService.DeleteUser(c.UserContext(), actor.ID, c.Params("id")); err != nil {
		return err
	}
	return respondMessage(c, http.StatusOK, "user deleted")
}

// ListAgents GET /users/agents. Any authenticated caller; backs the assignee
// picker.
func (h *UsersHandler) ListAgents(c *fiber.Ctx) error {
	agents, err := h.userService.ListAgents(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.UserResponse, 0, len(agents))
	for i := range agents {
		items = append(items, dto.NewUserResponse(&agents[i]))
	}
	return respond(c, http.StatusOK, items)
}

// UpdateUser PUT /users/:id. Admin only; covers role changes and
// activation/deactivation.
func (h *UsersHandler) UpdateUser(c *fiber.Ctx) error {
	var req dto.UpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	user, err := h.userService.UpdateUser(c.UserContext(), c.Params("id"), service.UserUpdateInput{
		Name:     req.Name,
		Email:    req.Email,
		Role:     req.Role,
		IsActive: req.IsActive,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, dto.NewUserResponse(user))
}

func (h *UsersHandler) setSessionCookies(c *fiber.Ctx, pair *service.TokenPair) {
	h.setCookie(c, h.cfg.AccessCookieName, pair.AccessToken, pair.AccessExpiresAt)
	h.setCookie(c, h.cfg.RefreshCookieName, pair.RefreshToken, pair.RefreshExpiresAt)
}

func (h *UsersHandler) setCookie(c *fiber.Ctx, name, value string, expires time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    value,
		Expires:  expires,
		HTTPOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: h.cfg.CookieSameSite,
		Path:     "/",
	})
}

func (h *UsersHandler) clearCookie(c *fiber.Ctx, name string) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: h.cfg.CookieSameSite,
		Path:     "/",
	})
}

func parseInt(val string, fallback int) int {
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}
