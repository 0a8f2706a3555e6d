// handler.go: the API handler implementing api.ServerInterface.
// Combines health and business handlers and delegates to the service layer.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/swap-mitra/city-vault/internal/api"
	apierrors "github.com/swap-mitra/city-vault/internal/api/errors"
	"github.com/swap-mitra/city-vault/internal/api/middleware"
	"github.com/swap-mitra/city-vault/internal/auth"
	"github.com/swap-mitra/city-vault/internal/domain/model"
	"github.com/swap-mitra/city-vault/internal/service"
)

var _ api.ServerInterface = (*APIHandler)(nil)

// UserService is the part of *service.UserService the handlers use.
type UserService interface {
	Register(ctx context.Context, p service.RegisterParams) (*model.User, error)
	Authenticate(ctx context.Context, email, password string) (*model.User, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}

// FileService is the part of *service.FileService the handlers use.
type FileService interface {
	Upload(ctx context.Context, userID string, p service.UploadParams) (*service.UploadResult, error)
	List(ctx context.Context, userID, filename string) ([]*model.FileRecord, error)
	GetByCID(ctx context.Context, cid string) (*model.FileRecord, error)
	Delete(ctx context.Context, userID, cid string) error
	GatewayURL(cid string) string
}

// APIHandler serves the vault API.
type APIHandler struct {
	health        *HealthHandler
	users         UserService
	files         FileService
	sessions      *auth.SessionManager
	maxUploadSize int64
	logger        *slog.Logger
}

// NewAPIHandler creates the API handler.
// maxUploadSize bounds the multipart request body in bytes.
func NewAPIHandler(
	health *HealthHandler,
	users UserService,
	files FileService,
	sessions *auth.SessionManager,
	maxUploadSize int64,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health:        health,
		users:         users,
		files:         files,
		sessions:      sessions,
		maxUploadSize: maxUploadSize,
		logger:        logger.With(slog.String("component", "api_handler")),
	}
}

// --- Health endpoints (delegated to HealthHandler) ---

// HealthLive: liveness probe.
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady: readiness probe.
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics: Prometheus metrics.
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// currentUser resolves the caller to a user row. It writes the error
// response itself and returns nil when the request cannot proceed.
func (h *APIHandler) currentUser(w http.ResponseWriter, r *http.Request) *model.User {
	id := middleware.IdentityFromContext(r.Context())
	if id == nil {
		apierrors.Unauthorized(w, "Unauthorized")
		return nil
	}

	var (
		u   *model.User
		err error
	)
	switch id.Source {
	case auth.SourceFederated:
		u, err = h.users.GetByEmail(r.Context(), id.Email)
	default:
		u, err = h.users.GetByID(r.Context(), id.Subject)
	}
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			apierrors.NotFound(w, "User not found")
			return nil
		}
		h.logger.Error("User lookup failed",
			slog.String("subject", id.Subject),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Failed to load user")
		return nil
	}
	return u
}

// --- Response types ---

type successResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type fileOwnerResponse struct {
	Email string  `json:"email"`
	Name  *string `json:"name"`
}

type fileResponse struct {
	ID         string             `json:"id"`
	CID        string             `json:"cid"`
	UserID     string             `json:"userId"`
	Filename   string             `json:"filename"`
	FileSize   int64              `json:"fileSize"`
	MimeType   *string            `json:"mimeType"`
	UploadedAt string             `json:"uploadedAt"`
	GatewayURL string             `json:"gatewayUrl"`
	User       *fileOwnerResponse `json:"user,omitempty"`
}

func (h *APIHandler) mapFileRecord(f *model.FileRecord) fileResponse {
	resp := fileResponse{
		ID:         f.ID,
		CID:        f.CID,
		UserID:     f.UserID,
		Filename:   f.Filename,
		FileSize:   f.Size,
		MimeType:   f.MimeType,
		UploadedAt: f.UploadedAt.UTC().Format(time.RFC3339),
		GatewayURL: h.files.GatewayURL(f.CID),
	}
	if f.Owner != nil {
		resp.User = &fileOwnerResponse{Email: f.Owner.Email, Name: f.Owner.Name}
	}
	return resp
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
