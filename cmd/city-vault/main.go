// city-vault entry point.
// Loads configuration, applies migrations, connects to PostgreSQL, wires the
// pinning client, sessions, services and handlers, starts dependency
// monitoring and runs the HTTP server until a shutdown signal arrives.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/swap-mitra/city-vault/internal/api/handlers"
	"github.com/swap-mitra/city-vault/internal/api/middleware"
	"github.com/swap-mitra/city-vault/internal/auth"
	"github.com/swap-mitra/city-vault/internal/config"
	"github.com/swap-mitra/city-vault/internal/database"
	"github.com/swap-mitra/city-vault/internal/pinclient"
	"github.com/swap-mitra/city-vault/internal/repository"
	"github.com/swap-mitra/city-vault/internal/server"
	"github.com/swap-mitra/city-vault/internal/service"
)

func main() {
	// 1. Configuration (missing credentials are fatal)
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Logging
	logger := config.SetupLogger(cfg)
	logger.Info("city-vault starting",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	// 3. Migrations
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Migration failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. PostgreSQL pool
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("PostgreSQL connection failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// *sql.DB over the same pool so dependency checks see pool exhaustion.
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. Repositories and the pinning client
	userRepo := repository.NewUserRepository(pool)
	fileRepo := repository.NewFileRepository(pool)
	pins := pinclient.New(cfg.PinataAPIURL, cfg.PinataJWT, cfg.PinataTimeout, logger)

	// 6. Sessions and optional federated tokens
	sessions, err := auth.NewSessionManager(cfg.SessionSecret, cfg.SessionTTL, cfg.SessionSecureCookie)
	if err != nil {
		logger.Error("Session manager init failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if sessions.Ephemeral() {
		logger.Warn("VAULT_SESSION_SECRET is not set, sessions will not survive a restart")
	}

	var federated auth.TokenVerifier
	if cfg.JWKSURL != "" {
		fv, err := auth.NewFederatedVerifier(auth.FederatedOptions{
			JWKSURL:         cfg.JWKSURL,
			Issuer:          cfg.JWTIssuer,
			ClientTimeout:   cfg.JWKSClientTimeout,
			RefreshInterval: cfg.JWKSRefreshInterval,
			Leeway:          cfg.JWTLeeway,
		}, logger)
		if err != nil {
			logger.Error("Federated verifier init failed",
				slog.String("jwks_url", cfg.JWKSURL),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
		federated = fv
		logger.Info("Federated tokens enabled", slog.String("jwks_url", cfg.JWKSURL))
	}
	authenticator := auth.NewAuthenticator(sessions, federated)

	// 7. Services
	userCache := service.NewUserCache(cfg.UserCacheSize, cfg.UserCacheTTL)
	userSvc := service.NewUserService(userRepo, userCache, logger)
	reconciler := service.NewReconciler(fileRepo, logger)
	fileSvc := service.NewFileService(fileRepo, pins, reconciler, cfg.GatewayURL, cfg.UnpinTimeout, logger)

	// 8. Handlers
	healthHandler := handlers.NewHealthHandler(database.NewReadinessChecker(pool))
	apiHandler := handlers.NewAPIHandler(healthHandler, userSvc, fileSvc, sessions, cfg.MaxUploadSize, logger)

	// 9. topologymetrics (PostgreSQL + Pinata)
	dephealthSvc, err := service.NewDephealthService(service.DephealthParams{
		ServiceID:     dephealthServiceID(),
		Group:         cfg.DephealthGroup,
		DB:            pgDB,
		PgConnURL:     cfg.DatabaseURL,
		PinataAPIURL:  cfg.PinataAPIURL,
		CheckInterval: cfg.DephealthCheckInterval,
	}, logger)
	if err != nil {
		logger.Warn("topologymetrics unavailable, running without dependency monitoring",
			slog.String("error", err.Error()),
		)
		dephealthSvc = nil
	} else if err := dephealthSvc.Start(ctx); err != nil {
		logger.Warn("topologymetrics failed to start", slog.String("error", err.Error()))
		dephealthSvc = nil
	}

	// 10. HTTP server: logging wraps metrics wraps authentication
	srv := server.New(cfg, logger, apiHandler,
		middleware.RequestLogger(logger),
		middleware.MetricsMiddleware(),
		middleware.SessionAuth(authenticator, logger),
	)
	if err := srv.Run(); err != nil {
		logger.Error("Server error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}
	logger.Info("city-vault stopped")
}
