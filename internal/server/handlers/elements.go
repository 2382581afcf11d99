package handlers

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/iudanet/supwarden/internal/common"
	"github.com/iudanet/supwarden/internal/server/services"
	"github.com/iudanet/supwarden/pkg/api"
)

// multipartMemory - часть multipart формы, которая держится в памяти
const multipartMemory = 1 << 20

// ElementHandler - элементы, reveal и вложения
type ElementHandler struct {
	responder
	elements      *services.ElementService
	maxAttachment int64
}

// NewElementHandler создает новый handler элементов.
// maxAttachment ограничивает тело upload запроса.
func NewElementHandler(logger *slog.Logger, elements *services.ElementService, maxAttachment int64) *ElementHandler {
	if maxAttachment <= 0 {
		maxAttachment = services.DefaultMaxAttachmentSize
	}
	return &ElementHandler{
		responder:     responder{logger: logger},
		elements:      elements,
		maxAttachment: maxAttachment,
	}
}

// List обрабатывает GET /api/v1/vaults/{id}/elements
func (h *ElementHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	vaultID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	elements, err := h.elements.List(r.Context(), userID, vaultID)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	resp := make([]api.ElementResponse, 0, len(elements))
	for _, e := range elements {
		resp = append(resp, toElementResponse(e))
	}
	h.sendJSON(w, r, resp, http.StatusOK)
}

// Create обрабатывает POST /api/v1/vaults/{id}/elements
func (h *ElementHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	vaultID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	var req api.ElementRequest
	if !h.decode(w, r, &req) {
		return
	}

	element, err := h.elements.Create(r.Context(), userID, vaultID, req)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	h.sendJSON(w, r, toElementResponse(element), http.StatusCreated)
}

// Get обрабатывает GET /api/v1/elements/{id}
// Пароль возвращается зашифрованным, расшифровка только через reveal
func (h *ElementHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	elementID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	element, err := h.elements.Get(r.Context(), userID, elementID)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	h.sendJSON(w, r, toElementResponse(element), http.StatusOK)
}

// Update обрабатывает PUT /api/v1/elements/{id}
func (h *ElementHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	elementID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	var req api.ElementRequest
	if !h.decode(w, r, &req) {
		return
	}

	element, err := h.elements.Update(r.Context(), userID, elementID, req)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	h.sendJSON(w, r, toElementResponse(element), http.StatusOK)
}

// Delete обрабатывает DELETE /api/v1/elements/{id}
func (h *ElementHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	elementID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	report, err := h.elements.Delete(r.Context(), userID, elementID)
	h.sendDeleteReport(w, r, report, err)
}

// Challenge обрабатывает GET /api/v1/elements/{id}/challenge
func (h *ElementHandler) Challenge(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	elementID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	decision, err := h.elements.Challenge(r.Context(), userID, elementID)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	h.sendJSON(w, r, api.ChallengeResponse{State: string(decision.State), Factor: string(decision.Factor)}, http.StatusOK)
}

// Reveal обрабатывает POST /api/v1/elements/{id}/reveal
func (h *ElementHandler) Reveal(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	elementID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	var req api.RevealRequest
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}

	password, decision, err := h.elements.Reveal(r.Context(), userID, elementID, req.Proof)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	h.sendJSON(w, r, api.RevealResponse{Password: password, State: string(decision.State)}, http.StatusOK)
}

// UploadAttachment обрабатывает POST /api/v1/elements/{id}/attachments
// Файл передается в multipart поле "file"
func (h *ElementHandler) UploadAttachment(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	elementID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxAttachment+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.sendError(w, r, common.Validationf("attachment exceeds %d bytes", h.maxAttachment))
			return
		}
		h.sendError(w, r, common.Validationf("invalid multipart form"))
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.sendError(w, r, common.Validationf("multipart field \"file\" is required"))
		return
	}
	defer func() {
		_ = file.Close()
	}()

	attachment, err := h.elements.AddAttachment(r.Context(), userID, elementID, header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	h.sendJSON(w, r, toAttachmentResponse(attachment), http.StatusCreated)
}

// DownloadAttachment обрабатывает GET /api/v1/elements/{id}/attachments/{attachmentID}
func (h *ElementHandler) DownloadAttachment(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	elementID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	attachmentID, ok := h.pathID(w, r, "attachmentID")
	if !ok {
		return
	}

	attachment, rc, err := h.elements.OpenAttachment(r.Context(), userID, elementID, attachmentID)
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	defer func() {
		_ = rc.Close()
	}()

	contentType := attachment.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": attachment.Filename}))
	if attachment.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(attachment.Size, 10))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, rc); err != nil {
		h.logger.WarnContext(r.Context(), "attachment download interrupted",
			slog.String("attachment_id", attachmentID),
			slog.Any("error", err))
	}
}

// DeleteAttachment обрабатывает DELETE /api/v1/elements/{id}/attachments/{attachmentID}
func (h *ElementHandler) DeleteAttachment(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	elementID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	attachmentID, ok := h.pathID(w, r, "attachmentID")
	if !ok {
		return
	}

	if err := h.elements.RemoveAttachment(r.Context(), userID, elementID, attachmentID); err != nil {
		h.sendError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
