// reconciler.go: maps a pinned CID onto ownership records.
//
// A content identifier may be owned by many users, each with their own
// metadata, while a (cid, user) pair exists at most once. The UNIQUE
// (cid, user_id) constraint is the only synchronisation between
// concurrent uploads.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/swap-mitra/city-vault/internal/domain/model"
	"github.com/swap-mitra/city-vault/internal/repository"
)

// Outcome of a reconcile call.
type Outcome string

const (
	// OutcomeNew: the CID was unknown, a record was inserted.
	OutcomeNew Outcome = "new"
	// OutcomeShared: the CID belongs to other users, the caller got a record of their own.
	OutcomeShared Outcome = "shared"
	// OutcomeRepeat: the caller already owned the CID, the existing record is returned.
	OutcomeRepeat Outcome = "repeat"
)

var (
	reconcileTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vault_reconcile_total",
		Help: "Upload reconciliations by outcome.",
	}, []string{"outcome"})
	reconcileRacesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vault_reconcile_races_total",
		Help: "Inserts that lost a concurrent race on (cid, user_id).",
	})
)

// ReconcileParams describes a freshly pinned upload.
type ReconcileParams struct {
	UserID   string
	CID      string
	Filename string
	Size     int64
	// MimeType may be empty, it is stored as NULL then.
	MimeType string
}

// Reconciler turns (user, cid, metadata) into exactly one ownership record.
type Reconciler struct {
	files  repository.FileRepository
	logger *slog.Logger
}

// NewReconciler creates the upload reconciler.
func NewReconciler(files repository.FileRepository, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		files:  files,
		logger: logger.With(slog.String("component", "reconciler")),
	}
}

// Reconcile returns the caller's record for p.CID, inserting it when needed.
// At most one insert is attempted per call. A repeat leaves the stored
// metadata untouched even if p carries a different filename.
func (r *Reconciler) Reconcile(ctx context.Context, p ReconcileParams) (*model.FileRecord, Outcome, error) {
	if p.UserID == "" || p.CID == "" {
		return nil, "", fmt.Errorf("%w: user and cid are required", ErrValidation)
	}
	if strings.TrimSpace(p.Filename) == "" {
		return nil, "", fmt.Errorf("%w: filename is required", ErrValidation)
	}

	existing, err := r.files.GetByCIDAndUser(ctx, p.CID, p.UserID)
	if err == nil {
		r.record(OutcomeRepeat, existing)
		return existing, OutcomeRepeat, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, "", fmt.Errorf("lookup own record: %w", err)
	}

	outcome := OutcomeNew
	owners, err := r.files.CountByCID(ctx, p.CID)
	if err != nil {
		return nil, "", fmt.Errorf("lookup cid owners: %w", err)
	}
	if owners > 0 {
		outcome = OutcomeShared
	}

	rec := &model.FileRecord{
		ID:       uuid.New().String(),
		CID:      p.CID,
		UserID:   p.UserID,
		Filename: p.Filename,
		Size:     p.Size,
	}
	if p.MimeType != "" {
		mime := p.MimeType
		rec.MimeType = &mime
	}

	err = r.files.Create(ctx, rec)
	if err == nil {
		r.record(outcome, rec)
		return rec, outcome, nil
	}
	if !errors.Is(err, repository.ErrConflict) {
		return nil, "", fmt.Errorf("insert file record: %w", err)
	}

	// Lost the race against a concurrent upload of the same (cid, user).
	reconcileRacesTotal.Inc()
	winner, err := r.files.GetByCIDAndUser(ctx, p.CID, p.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", fmt.Errorf("%w: record for %s vanished after a concurrent insert", ErrConflict, p.CID)
		}
		return nil, "", fmt.Errorf("re-fetch after conflict: %w", err)
	}

	r.logger.Debug("Concurrent upload resolved",
		slog.String("cid", p.CID),
		slog.String("user_id", p.UserID),
	)
	r.record(OutcomeRepeat, winner)
	return winner, OutcomeRepeat, nil
}

func (r *Reconciler) record(outcome Outcome, rec *model.FileRecord) {
	reconcileTotal.WithLabelValues(string(outcome)).Inc()
	r.logger.Info("Upload reconciled",
		slog.String("outcome", string(outcome)),
		slog.String("cid", rec.CID),
		slog.String("file_id", rec.ID),
		slog.String("user_id", rec.UserID),
	)
}
