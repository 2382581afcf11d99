package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/iudanet/supwarden/internal/common"
	"github.com/iudanet/supwarden/internal/server/transfer"
)

// maxImportBody ограничивает размер импортируемого bundle
const maxImportBody = 32 << 20

// TransferHandler - экспорт и импорт хранилищ
type TransferHandler struct {
	responder
	transfer *transfer.Service
}

// NewTransferHandler создает новый handler экспорта/импорта
func NewTransferHandler(logger *slog.Logger, svc *transfer.Service) *TransferHandler {
	return &TransferHandler{
		responder: responder{logger: logger},
		transfer:  svc,
	}
}

// Export обрабатывает GET /api/v1/transfer/export?format=json|cbor
func (h *TransferHandler) Export(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	format, err := transfer.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		h.sendError(w, r, fmt.Errorf("%w: %v", common.ErrValidation, err))
		return
	}

	bundle, err := h.transfer.Export(r.Context(), userID)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	filename := fmt.Sprintf("supwarden-%s.%s", time.Now().UTC().Format("20060102"), format)
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)

	if err := transfer.Encode(w, bundle, format); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to write export", slog.Any("error", err))
	}
}

// Import обрабатывает POST /api/v1/transfer/import
// Формат тела определяется по Content-Type. Импорт не транзакционный:
// при сбое на середине возвращается 207 с отчетом о созданном.
func (h *TransferHandler) Import(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImportBody)
	bundle, err := transfer.Decode(r.Body, transfer.FormatFromContentType(r.Header.Get("Content-Type")))
	if err != nil {
		h.logger.WarnContext(r.Context(), "rejected import bundle", slog.Any("error", err))
		h.sendError(w, r, err)
		return
	}

	report, err := h.transfer.Import(r.Context(), bundle, userID)
	if err != nil {
		if report == nil || len(report.Vaults) == 0 {
			h.sendError(w, r, err)
			return
		}

		h.logger.ErrorContext(r.Context(), "import stopped midway",
			slog.Int("vaults", len(report.Vaults)),
			slog.Any("error", err))
		resp := toImportResponse(report)
		resp.Error = fmt.Sprintf("%v: %v", common.ErrPartialFailure, err)
		h.sendJSON(w, r, resp, http.StatusMultiStatus)
		return
	}

	h.sendJSON(w, r, toImportResponse(report), http.StatusOK)
}
