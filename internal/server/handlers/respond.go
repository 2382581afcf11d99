// Package handlers implements the HTTP API on top of the services.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/iudanet/supwarden/internal/common"
	"github.com/iudanet/supwarden/internal/server/services"
	"github.com/iudanet/supwarden/internal/validation"
	"github.com/iudanet/supwarden/pkg/api"
)

// maxJSONBody ограничивает размер JSON тела запроса
const maxJSONBody = 1 << 20

// StatusFor maps an error of the common taxonomy to an HTTP status
func StatusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrPartialFailure):
		return http.StatusMultiStatus
	case errors.Is(err, common.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, common.ErrUnauthenticated),
		errors.Is(err, common.ErrSessionExpired),
		errors.Is(err, common.ErrInvalidAssertion):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrValidation),
		errors.Is(err, common.ErrImportFormat):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, common.ErrTooManyRequests):
		return http.StatusTooManyRequests
	case errors.Is(err, common.ErrUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WriteError отправляет ошибку в формате api.ErrorResponse.
// Детали внутренних ошибок (в т.ч. ErrDecryption) клиенту не отдаются.
func WriteError(ctx context.Context, w http.ResponseWriter, logger *slog.Logger, err error) {
	status := StatusFor(err)
	message := err.Error()

	if status == http.StatusInternalServerError {
		logger.ErrorContext(ctx, "Request failed", slog.Any("error", err))
		message = "internal server error"
		if errors.Is(err, common.ErrDecryption) {
			message = common.ErrDecryption.Error()
		}
	}

	sendJSON(ctx, w, logger, api.ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
	}, status)
}

func sendJSON(ctx context.Context, w http.ResponseWriter, logger *slog.Logger, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.ErrorContext(ctx, "failed to encode JSON response", slog.Any("error", err))
	}
}

// responder - общие помощники для всех handler'ов
type responder struct {
	logger *slog.Logger
}

func (h responder) sendJSON(w http.ResponseWriter, r *http.Request, data any, statusCode int) {
	sendJSON(r.Context(), w, h.logger, data, statusCode)
}

func (h responder) sendError(w http.ResponseWriter, r *http.Request, err error) {
	WriteError(r.Context(), w, h.logger, err)
}

// decode читает JSON тело запроса
func (h responder) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.logger.WarnContext(r.Context(), "failed to decode request body", slog.Any("error", err))
		h.sendError(w, r, common.Validationf("invalid request body"))
		return false
	}
	return true
}

// userID возвращает id пользователя, установленный AuthMiddleware
func (h responder) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		h.logger.ErrorContext(r.Context(), "User ID not found in context")
		h.sendError(w, r, fmt.Errorf("%w: missing token", common.ErrUnauthenticated))
		return "", false
	}
	return userID, true
}

// pathID извлекает UUID из path parameter (Go 1.22+)
func (h responder) pathID(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	id := r.PathValue(name)
	if err := validation.ValidateID(id); err != nil {
		h.sendError(w, r, fmt.Errorf("%w: %v", common.ErrValidation, err))
		return "", false
	}
	return id, true
}

// sendDeleteReport: 200 при полном успехе, 207 если часть blob'ов осталась
func (h responder) sendDeleteReport(w http.ResponseWriter, r *http.Request, report *services.DeleteReport, err error) {
	if err != nil && !errors.Is(err, common.ErrPartialFailure) {
		h.sendError(w, r, err)
		return
	}

	status := http.StatusOK
	if err != nil {
		refs := make([]string, 0, len(report.Failed))
		for _, f := range report.Failed {
			refs = append(refs, f.BlobRef)
		}
		// ссылки на blob'ы остаются только в логах сервера
		h.logger.WarnContext(r.Context(), "delete finished with orphaned blobs",
			slog.Int("failed", len(report.Failed)),
			slog.Any("blob_refs", refs))
		status = http.StatusMultiStatus
	}

	h.sendJSON(w, r, toDeleteReportResponse(report), status)
}
