package handlers

import (
	"log/slog"
	"net/http"

	"github.com/iudanet/supwarden/internal/server/services"
	"github.com/iudanet/supwarden/pkg/api"
)

// VaultHandler - хранилища и участники
type VaultHandler struct {
	responder
	vaults *services.VaultService
}

// NewVaultHandler создает новый handler хранилищ
func NewVaultHandler(logger *slog.Logger, vaults *services.VaultService) *VaultHandler {
	return &VaultHandler{
		responder: responder{logger: logger},
		vaults:    vaults,
	}
}

// Create обрабатывает POST /api/v1/vaults
func (h *VaultHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req api.CreateVaultRequest
	if !h.decode(w, r, &req) {
		return
	}

	vault, err := h.vaults.Create(r.Context(), userID, req)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	h.sendJSON(w, r, toVaultResponse(vault), http.StatusCreated)
}

// ListOwned обрабатывает GET /api/v1/vaults
func (h *VaultHandler) ListOwned(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	vaults, err := h.vaults.ListOwned(r.Context(), userID)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	resp := make([]api.VaultResponse, 0, len(vaults))
	for _, v := range vaults {
		resp = append(resp, toVaultResponse(v))
	}
	h.sendJSON(w, r, resp, http.StatusOK)
}

// ListShared обрабатывает GET /api/v1/vaults/shared
func (h *VaultHandler) ListShared(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	shared, err := h.vaults.ListShared(r.Context(), userID)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	resp := make([]api.SharedVaultResponse, 0, len(shared))
	for _, s := range shared {
		resp = append(resp, api.SharedVaultResponse{
			Vault:      toVaultResponse(s.Vault),
			Permission: string(s.Permission),
			Invitation: string(s.Invitation),
		})
	}
	h.sendJSON(w, r, resp, http.StatusOK)
}

// Get обрабатывает GET /api/v1/vaults/{id}
func (h *VaultHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	vaultID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	vault, err := h.vaults.Get(r.Context(), userID, vaultID)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	h.sendJSON(w, r, toVaultResponse(vault), http.StatusOK)
}

// Rename обрабатывает PUT /api/v1/vaults/{id}
func (h *VaultHandler) Rename(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	vaultID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	var req api.RenameVaultRequest
	if !h.decode(w, r, &req) {
		return
	}

	vault, err := h.vaults.Rename(r.Context(), userID, vaultID, req.Name)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	h.sendJSON(w, r, toVaultResponse(vault), http.StatusOK)
}

// Delete обрабатывает DELETE /api/v1/vaults/{id}
func (h *VaultHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	vaultID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	report, err := h.vaults.Delete(r.Context(), userID, vaultID)
	h.sendDeleteReport(w, r, report, err)
}

// AddMember обрабатывает POST /api/v1/vaults/{id}/members
func (h *VaultHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	vaultID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	var req api.MemberRequest
	if !h.decode(w, r, &req) {
		return
	}

	vault, err := h.vaults.AddMember(r.Context(), userID, vaultID, req)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	h.sendJSON(w, r, toVaultResponse(vault), http.StatusCreated)
}

// UpdateMember обрабатывает PUT /api/v1/vaults/{id}/members/{userID}
func (h *VaultHandler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	vaultID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	memberID, ok := h.pathID(w, r, "userID")
	if !ok {
		return
	}

	var req api.UpdateMemberRequest
	if !h.decode(w, r, &req) {
		return
	}

	vault, err := h.vaults.UpdateMemberPermission(r.Context(), userID, vaultID, memberID, req)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	h.sendJSON(w, r, toVaultResponse(vault), http.StatusOK)
}

// RemoveMember обрабатывает DELETE /api/v1/vaults/{id}/members/{userID}
func (h *VaultHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	vaultID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	memberID, ok := h.pathID(w, r, "userID")
	if !ok {
		return
	}

	if err := h.vaults.RemoveMember(r.Context(), userID, vaultID, memberID); err != nil {
		h.sendError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Accept обрабатывает POST /api/v1/vaults/{id}/invitation/accept
func (h *VaultHandler) Accept(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	vaultID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	vault, err := h.vaults.AcceptInvitation(r.Context(), userID, vaultID)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	h.sendJSON(w, r, toVaultResponse(vault), http.StatusOK)
}

// Refuse обрабатывает POST /api/v1/vaults/{id}/invitation/refuse
func (h *VaultHandler) Refuse(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	vaultID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.vaults.RefuseInvitation(r.Context(), userID, vaultID); err != nil {
		h.sendError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
