package handlers

import (
	"log/slog"
	"net/http"

	"github.com/iudanet/supwarden/internal/common"
	"github.com/iudanet/supwarden/internal/server/services"
	"github.com/iudanet/supwarden/pkg/api"
)

// UserHandler - профиль, факторы аутентификации и поиск пользователей
type UserHandler struct {
	responder
	users *services.UserService
}

// NewUserHandler создает новый handler профиля
func NewUserHandler(logger *slog.Logger, users *services.UserService) *UserHandler {
	return &UserHandler{
		responder: responder{logger: logger},
		users:     users,
	}
}

// Me обрабатывает GET /api/v1/users/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	user, err := h.users.GetMe(r.Context(), userID)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	h.sendJSON(w, r, toUserResponse(user), http.StatusOK)
}

// UpdateMe обрабатывает PUT /api/v1/users/me
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req api.UpdateProfileRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.users.UpdateProfile(r.Context(), userID, req)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	h.sendJSON(w, r, toAuthResponse(res), http.StatusOK)
}

// DeleteMe обрабатывает DELETE /api/v1/users/me
// Удаляет аккаунт вместе с собственными хранилищами
func (h *UserHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req api.VerifyPasswordRequest
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}

	report, err := h.users.DeleteAccount(r.Context(), userID, req.Password)
	h.sendDeleteReport(w, r, report, err)
}

// ChangePassword обрабатывает PUT /api/v1/users/me/password
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req api.ChangePasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.users.ChangePassword(r.Context(), userID, req)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "password changed", slog.String("user_id", userID))
	h.sendJSON(w, r, toAuthResponse(res), http.StatusOK)
}

// SetPIN обрабатывает PUT /api/v1/users/me/pin
func (h *UserHandler) SetPIN(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req api.SetPINRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.users.SetPIN(r.Context(), userID, req)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	h.sendJSON(w, r, toAuthResponse(res), http.StatusOK)
}

// VerifyPIN обрабатывает POST /api/v1/users/me/verify-pin
func (h *UserHandler) VerifyPIN(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req api.VerifyPINRequest
	if !h.decode(w, r, &req) {
		return
	}

	valid, err := h.users.VerifyPIN(r.Context(), userID, req.PIN)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	h.sendJSON(w, r, api.VerifyResponse{Valid: valid}, http.StatusOK)
}

// VerifyPassword обрабатывает POST /api/v1/users/me/verify-password
func (h *UserHandler) VerifyPassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req api.VerifyPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	valid, err := h.users.VerifyPassword(r.Context(), userID, req.Password)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	h.sendJSON(w, r, api.VerifyResponse{Valid: valid}, http.StatusOK)
}

// LinkGoogle обрабатывает POST /api/v1/users/me/google
func (h *UserHandler) LinkGoogle(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req api.GoogleLoginRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		h.sendError(w, r, common.Validationf("%v", err))
		return
	}

	res, err := h.users.LinkGoogle(r.Context(), userID, req.Credential)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	h.sendJSON(w, r, toAuthResponse(res), http.StatusOK)
}

// UnlinkGoogle обрабатывает DELETE /api/v1/users/me/google
func (h *UserHandler) UnlinkGoogle(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	res, err := h.users.UnlinkGoogle(r.Context(), userID)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	h.sendJSON(w, r, toAuthResponse(res), http.StatusOK)
}

// PseudoByID обрабатывает GET /api/v1/users/{id}
func (h *UserHandler) PseudoByID(w http.ResponseWriter, r *http.Request) {
	profile, err := h.users.PseudoByID(r.Context(), r.PathValue("id"))
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	h.sendJSON(w, r, api.PublicProfileResponse{ID: profile.ID, Pseudo: profile.Pseudo}, http.StatusOK)
}

// ByPseudo обрабатывает GET /api/v1/users/by-pseudo/{pseudo}
func (h *UserHandler) ByPseudo(w http.ResponseWriter, r *http.Request) {
	profile, err := h.users.PublicProfile(r.Context(), r.PathValue("pseudo"))
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	h.sendJSON(w, r, api.PublicProfileResponse{ID: profile.ID, Pseudo: profile.Pseudo}, http.StatusOK)
}
