// auth.go: registration, login and logout.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	openapi_types "github.com/oapi-codegen/runtime/types"

	apierrors "github.com/swap-mitra/city-vault/internal/api/errors"
	"github.com/swap-mitra/city-vault/internal/service"
)

type registerRequest struct {
	Name     *string             `json:"name"`
	Email    openapi_types.Email `json:"email"`
	Password string              `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userInfo struct {
	ID    string  `json:"id"`
	Email string  `json:"email"`
	Name  *string `json:"name"`
}

type loginResponse struct {
	Success   bool     `json:"success"`
	Token     string   `json:"token"`
	ExpiresAt string   `json:"expiresAt"`
	User      userInfo `json:"user"`
}

// Register: POST /register.
func (h *APIHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if errors.Is(err, openapi_types.ErrValidationEmail) {
			apierrors.ValidationError(w, "email is invalid")
			return
		}
		apierrors.ValidationError(w, "Invalid JSON body")
		return
	}

	_, err := h.users.Register(r.Context(), service.RegisterParams{
		Name:     req.Name,
		Email:    string(req.Email),
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			apierrors.ValidationError(w, err.Error())
		case errors.Is(err, service.ErrConflict):
			apierrors.Conflict(w, "User with this email already exists")
		default:
			h.logger.Error("Registration failed", slog.String("error", err.Error()))
			apierrors.InternalError(w, "Failed to register user")
		}
		return
	}

	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

// Login: POST /login. The token goes both into the session cookie and
// into the body for Bearer use.
func (h *APIHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Invalid JSON body")
		return
	}
	if req.Email == "" || req.Password == "" {
		apierrors.ValidationError(w, "email and password are required")
		return
	}

	u, err := h.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			apierrors.InvalidCredentials(w, "Invalid email or password")
			return
		}
		h.logger.Error("Login failed", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Failed to sign in")
		return
	}

	token, expiresAt, err := h.sessions.Issue(u.ID, u.Email)
	if err != nil {
		h.logger.Error("Session issue failed",
			slog.String("user_id", u.ID),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Failed to sign in")
		return
	}
	h.sessions.SetSessionCookie(w, token, expiresAt)

	writeJSON(w, http.StatusOK, loginResponse{
		Success:   true,
		Token:     token,
		ExpiresAt: expiresAt.UTC().Format(time.RFC3339),
		User:      userInfo{ID: u.ID, Email: u.Email, Name: u.Name},
	})
}

// Logout: POST /logout. Session tokens are stateless, so this only clears
// the cookie.
func (h *APIHandler) Logout(w http.ResponseWriter, _ *http.Request) {
	h.sessions.ClearSessionCookie(w)
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}
