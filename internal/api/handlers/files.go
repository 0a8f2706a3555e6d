// files.go: upload, listing, lookup and deletion of vault files.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/swap-mitra/city-vault/internal/api"
	apierrors "github.com/swap-mitra/city-vault/internal/api/errors"
	"github.com/swap-mitra/city-vault/internal/service"
)

// multipartMemory is how much of a multipart body is kept in memory;
// the rest spills to temporary files.
const multipartMemory = 32 << 20

// repeatUploadMessage is returned when the caller already owns the CID.
const repeatUploadMessage = "File already exists in your vault"

type uploadResponse struct {
	Success    bool   `json:"success"`
	CID        string `json:"cid"`
	Filename   string `json:"filename"`
	FileID     string `json:"fileId"`
	GatewayURL string `json:"gatewayUrl"`
	Message    string `json:"message,omitempty"`
}

// UploadFile: POST /upload.
// Multipart form with a single required field "file".
func (h *APIHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	u := h.currentUser(w, r)
	if u == nil {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if isBodyTooLarge(err) {
			apierrors.PayloadTooLarge(w, "File exceeds the upload size limit")
			return
		}
		apierrors.ValidationError(w, "Invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		apierrors.ValidationError(w, "No file provided")
		return
	}
	defer file.Close()

	result, err := h.files.Upload(r.Context(), u.ID, service.UploadParams{
		Filename: header.Filename,
		Size:     header.Size,
		MimeType: header.Header.Get("Content-Type"),
		Content:  file,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			apierrors.ValidationError(w, err.Error())
		case errors.Is(err, service.ErrStorageUnavailable):
			apierrors.StorageUnavailable(w, "Failed to store file")
		case errors.Is(err, service.ErrConflict):
			apierrors.Conflict(w, "File is being uploaded concurrently, retry the request")
		default:
			h.logger.Error("Upload failed",
				slog.String("user_id", u.ID),
				slog.String("filename", header.Filename),
				slog.String("error", err.Error()),
			)
			apierrors.InternalError(w, "Failed to upload file")
		}
		return
	}

	resp := uploadResponse{
		Success:    true,
		CID:        result.Record.CID,
		Filename:   result.Record.Filename,
		FileID:     result.Record.ID,
		GatewayURL: result.GatewayURL,
	}
	if result.Outcome == service.OutcomeRepeat {
		resp.Message = repeatUploadMessage
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListFiles: GET /files.
// With cid it is a public lookup, otherwise it lists the caller's files.
func (h *APIHandler) ListFiles(w http.ResponseWriter, r *http.Request, params api.ListFilesParams) {
	if params.Cid != nil && strings.TrimSpace(*params.Cid) != "" {
		h.lookup(w, r, strings.TrimSpace(*params.Cid))
		return
	}

	u := h.currentUser(w, r)
	if u == nil {
		return
	}

	var filename string
	if params.Filename != nil {
		filename = *params.Filename
	}

	files, err := h.files.List(r.Context(), u.ID, filename)
	if err != nil {
		h.logger.Error("List files failed",
			slog.String("user_id", u.ID),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Failed to list files")
		return
	}

	resp := make([]fileResponse, 0, len(files))
	for _, f := range files {
		resp = append(resp, h.mapFileRecord(f))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetFile: GET /files/{cid}.
func (h *APIHandler) GetFile(w http.ResponseWriter, r *http.Request, cid string) {
	h.lookup(w, r, cid)
}

// DeleteFile: DELETE /files/{cid}.
// Only the caller's own record is removed.
func (h *APIHandler) DeleteFile(w http.ResponseWriter, r *http.Request, cid string) {
	u := h.currentUser(w, r)
	if u == nil {
		return
	}

	if err := h.files.Delete(r.Context(), u.ID, cid); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			apierrors.NotFound(w, "File not found")
			return
		}
		h.logger.Error("Delete file failed",
			slog.String("user_id", u.ID),
			slog.String("cid", cid),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Failed to delete file")
		return
	}

	writeJSON(w, http.StatusOK, successResponse{Success: true, Message: "File deleted"})
}

func (h *APIHandler) lookup(w http.ResponseWriter, r *http.Request, cid string) {
	f, err := h.files.GetByCID(r.Context(), cid)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			apierrors.NotFound(w, "File not found")
			return
		}
		h.logger.Error("File lookup failed",
			slog.String("cid", cid),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Failed to get file")
		return
	}

	writeJSON(w, http.StatusOK, h.mapFileRecord(f))
}

// isBodyTooLarge reports whether err came from http.MaxBytesReader.
func isBodyTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}
