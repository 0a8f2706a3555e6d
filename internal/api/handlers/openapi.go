package handlers

import (
	"log/slog"
	"net/http"

	apierrors "github.com/swap-mitra/city-vault/internal/api/errors"
	"github.com/swap-mitra/city-vault/internal/api/openapi"
)

// GetOpenAPI: GET /openapi.json.
func (h *APIHandler) GetOpenAPI(w http.ResponseWriter, _ *http.Request) {
	doc, err := openapi.JSON()
	if err != nil {
		h.logger.Error("OpenAPI document unavailable", slog.String("error", err.Error()))
		apierrors.InternalError(w, "OpenAPI document unavailable")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}
