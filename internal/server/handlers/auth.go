package handlers

import (
	"log/slog"
	"net/http"

	"github.com/iudanet/supwarden/internal/common"
	"github.com/iudanet/supwarden/internal/server/services"
	"github.com/iudanet/supwarden/pkg/api"
)

// AuthHandler обрабатывает запросы авторизации
type AuthHandler struct {
	responder
	users *services.UserService
}

// NewAuthHandler создает новый handler для авторизации
func NewAuthHandler(logger *slog.Logger, users *services.UserService) *AuthHandler {
	return &AuthHandler{
		responder: responder{logger: logger},
		users:     users,
	}
}

// Register обрабатывает POST /api/v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.users.Register(r.Context(), req)
	if err != nil {
		h.logger.WarnContext(r.Context(), "registration failed",
			slog.String("pseudo", req.Pseudo),
			slog.Any("error", err))
		h.sendError(w, r, err)
		return
	}

	h.sendJSON(w, r, toAuthResponse(res), http.StatusCreated)
}

// Login обрабатывает POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.users.Login(r.Context(), req)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "user logged in", slog.String("user_id", res.User.ID))
	h.sendJSON(w, r, toAuthResponse(res), http.StatusOK)
}

// Google обрабатывает POST /api/v1/auth/google
// Вход по Google ID token, аккаунт создается при первом входе
func (h *AuthHandler) Google(w http.ResponseWriter, r *http.Request) {
	var req api.GoogleLoginRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		h.sendError(w, r, common.Validationf("%v", err))
		return
	}

	res, err := h.users.GoogleLogin(r.Context(), req.Credential)
	if err != nil {
		h.logger.WarnContext(r.Context(), "google sign-in failed", slog.Any("error", err))
		h.sendError(w, r, err)
		return
	}

	h.sendJSON(w, r, toAuthResponse(res), http.StatusOK)
}
