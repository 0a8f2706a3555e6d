// dephealth.go: dependency monitoring through the topologymetrics SDK.
//
// city-vault monitors:
//   - PostgreSQL: SQL checker over the existing pgxpool (connection pool mode, critical)
//   - Pinata API: HTTP checker (non-critical, uploads fail fast on their own)
//
// Metrics are exposed on /metrics together with the rest:
//   - app_dependency_health
//   - app_dependency_latency_seconds
//   - app_dependency_status
//   - app_dependency_status_detail
package service

import (
	"context"
	"database/sql"
	"log/slog"
	"net/url"
	"time"

	"github.com/BigKAA/topologymetrics/sdk-go/dephealth"
	_ "github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/httpcheck" // registers the HTTP checker factory
	"github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/pgcheck"
	"github.com/prometheus/client_golang/prometheus"
)

// DephealthService runs periodic dependency checks.
type DephealthService struct {
	dh     *dephealth.DepHealth
	logger *slog.Logger
}

// DephealthParams configures NewDephealthService.
type DephealthParams struct {
	// ServiceID is the graph vertex name of this application.
	ServiceID string
	Group     string
	// DB is obtained from the pool via stdlib.OpenDBFromPool.
	DB *sql.DB
	// PgConnURL is used for labels only.
	PgConnURL     string
	PinataAPIURL  string
	CheckInterval time.Duration
}

// NewDephealthService creates the monitor registered in the global Prometheus registry.
func NewDephealthService(p DephealthParams, logger *slog.Logger) (*DephealthService, error) {
	return newDephealthService(p, logger)
}

// NewDephealthServiceWithRegisterer creates the monitor with its own registerer (tests).
func NewDephealthServiceWithRegisterer(p DephealthParams, logger *slog.Logger, registerer prometheus.Registerer) (*DephealthService, error) {
	return newDephealthService(p, logger, dephealth.WithRegisterer(registerer))
}

func newDephealthService(p DephealthParams, logger *slog.Logger, extraOpts ...dephealth.Option) (*DephealthService, error) {
	pinataOpts := []dephealth.DependencyOption{
		dephealth.FromURL(p.PinataAPIURL),
		dephealth.WithHTTPHealthPath("/"),
		dephealth.CheckInterval(p.CheckInterval),
		dephealth.Critical(false),
	}
	if parsed, err := url.Parse(p.PinataAPIURL); err == nil && parsed.Scheme == "https" {
		pinataOpts = append(pinataOpts, dephealth.WithHTTPTLSSkipVerify(false))
	}

	opts := make([]dephealth.Option, 0, 3+len(extraOpts))
	opts = append(opts,
		dephealth.WithLogger(logger),
		dephealth.AddDependency("postgresql", dephealth.TypePostgres,
			pgcheck.New(pgcheck.WithDB(p.DB)),
			dephealth.FromURL(p.PgConnURL),
			dephealth.CheckInterval(p.CheckInterval),
			dephealth.Critical(true),
		),
		dephealth.HTTP("pinata", pinataOpts...),
	)
	opts = append(opts, extraOpts...)

	dh, err := dephealth.New(p.ServiceID, p.Group, opts...)
	if err != nil {
		return nil, err
	}

	return &DephealthService{
		dh:     dh,
		logger: logger.With(slog.String("component", "dephealth")),
	}, nil
}

// Start begins periodic checks.
func (ds *DephealthService) Start(ctx context.Context) error {
	ds.logger.Info("Dependency monitoring started (PostgreSQL + Pinata)")
	return ds.dh.Start(ctx)
}

// Stop halts the checks.
func (ds *DephealthService) Stop() {
	ds.dh.Stop()
	ds.logger.Info("Dependency monitoring stopped")
}
