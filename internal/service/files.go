// files.go: file service: upload, listing, lookup, deletion.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/swap-mitra/city-vault/internal/domain/model"
	"github.com/swap-mitra/city-vault/internal/pinclient"
	"github.com/swap-mitra/city-vault/internal/repository"
)

var (
	pinDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vault_pin_duration_seconds",
		Help:    "Duration of pin requests to the content store.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	})
	pinFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vault_pin_failures_total",
		Help: "Failed pin requests to the content store.",
	})
	unpinFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vault_unpin_failures_total",
		Help: "Failed best-effort unpins after a delete.",
	})
)

// ContentStore pins and unpins content. Implemented by *pinclient.Client.
type ContentStore interface {
	PinFile(ctx context.Context, filename string, content io.Reader) (*pinclient.PinResult, error)
	Unpin(ctx context.Context, cid string) error
}

// UploadParams describes an incoming upload.
type UploadParams struct {
	Filename string
	Size     int64
	MimeType string
	Content  io.Reader
}

// UploadResult is what the caller gets back after an upload.
type UploadResult struct {
	Record     *model.FileRecord
	Outcome    Outcome
	GatewayURL string
}

// FileService manages the caller's files.
type FileService struct {
	files        repository.FileRepository
	store        ContentStore
	reconciler   *Reconciler
	gatewayURL   string
	unpinTimeout time.Duration
	logger       *slog.Logger
}

// NewFileService creates the file service.
// gatewayURL is the normalised gateway base (scheme, no trailing slash).
func NewFileService(
	files repository.FileRepository,
	store ContentStore,
	reconciler *Reconciler,
	gatewayURL string,
	unpinTimeout time.Duration,
	logger *slog.Logger,
) *FileService {
	return &FileService{
		files:        files,
		store:        store,
		reconciler:   reconciler,
		gatewayURL:   gatewayURL,
		unpinTimeout: unpinTimeout,
		logger:       logger.With(slog.String("component", "file_service")),
	}
}

// GatewayURL builds the public retrieval URL for a CID.
func (s *FileService) GatewayURL(cid string) string {
	return s.gatewayURL + "/ipfs/" + cid
}

// Upload pins the content and records ownership. Nothing is written to the
// metadata store when pinning fails.
func (s *FileService) Upload(ctx context.Context, userID string, p UploadParams) (*UploadResult, error) {
	filename := strings.TrimSpace(p.Filename)
	if filename == "" {
		return nil, fmt.Errorf("%w: filename is required", ErrValidation)
	}
	if p.Content == nil {
		return nil, fmt.Errorf("%w: no file provided", ErrValidation)
	}

	start := time.Now()
	pinned, err := s.store.PinFile(ctx, filename, p.Content)
	pinDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		pinFailuresTotal.Inc()
		s.logger.Error("Pinning failed",
			slog.String("filename", filename),
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	size := p.Size
	if size <= 0 {
		size = pinned.Size
	}

	rec, outcome, err := s.reconciler.Reconcile(ctx, ReconcileParams{
		UserID:   userID,
		CID:      pinned.CID,
		Filename: filename,
		Size:     size,
		MimeType: p.MimeType,
	})
	if err != nil {
		return nil, err
	}

	return &UploadResult{
		Record:     rec,
		Outcome:    outcome,
		GatewayURL: s.GatewayURL(rec.CID),
	}, nil
}

// List returns the caller's records, newest first. An empty filename
// returns everything.
func (s *FileService) List(ctx context.Context, userID, filename string) ([]*model.FileRecord, error) {
	files, err := s.files.ListByUser(ctx, userID, strings.TrimSpace(filename))
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	return files, nil
}

// GetByCID returns a record for the CID regardless of owner.
func (s *FileService) GetByCID(ctx context.Context, cid string) (*model.FileRecord, error) {
	f, err := s.files.GetByCID(ctx, cid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get file: %w", err)
	}
	return f, nil
}

// Delete removes the caller's record for cid, then releases the pin when no
// other owner references the CID. Unpin problems are logged, never returned,
// and the record is not restored.
func (s *FileService) Delete(ctx context.Context, userID, cid string) error {
	rec, err := s.files.GetByCIDAndUser(ctx, cid, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("get file for delete: %w", err)
	}

	if err := s.files.Delete(ctx, rec.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete file: %w", err)
	}

	s.logger.Info("File deleted",
		slog.String("cid", cid),
		slog.String("file_id", rec.ID),
		slog.String("user_id", userID),
	)

	s.releasePin(ctx, cid)
	return nil
}

// releasePin unpins cid on a context detached from the request.
func (s *FileService) releasePin(ctx context.Context, cid string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.unpinTimeout)
	defer cancel()

	owners, err := s.files.CountByCID(ctx, cid)
	if err != nil {
		unpinFailuresTotal.Inc()
		s.logger.Warn("Unpin skipped: owner count failed",
			slog.String("cid", cid),
			slog.String("error", err.Error()),
		)
		return
	}
	if owners > 0 {
		s.logger.Debug("Unpin skipped: CID still referenced",
			slog.String("cid", cid),
			slog.Int("owners", owners),
		)
		return
	}

	if err := s.store.Unpin(ctx, cid); err != nil {
		if pinclient.IsNotFound(err) {
			s.logger.Debug("CID was not pinned", slog.String("cid", cid))
			return
		}
		unpinFailuresTotal.Inc()
		s.logger.Warn("Unpin failed",
			slog.String("cid", cid),
			slog.String("error", err.Error()),
		)
	}
}
