package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/cors"

	"github.com/bimora/licensegate/internal/adapters/api"
	"github.com/bimora/licensegate/internal/adapters/notifier"
	"github.com/bimora/licensegate/internal/adapters/ratelimit"
	"github.com/bimora/licensegate/internal/adapters/repository"
	"github.com/bimora/licensegate/internal/config"
	"github.com/bimora/licensegate/internal/core/ports"
	"github.com/bimora/licensegate/internal/core/services"
	"github.com/bimora/licensegate/internal/infrastructure/metrics"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("licensegate failed: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// Test-only dry run path.
	if cfg.DatabaseURL == "none" {
		logger.Info("startup dry run complete")
		return nil
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if errClose := db.Close(); errClose != nil {
			logger.Error("failed to close database", slog.String("error", errClose.Error()))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo := repository.NewPostgresRepository(db)
	if err := repo.Ping(ctx); err != nil {
		logger.Warn("could not ping database", slog.String("error", err.Error()))
	}
	if err := repo.EnsureSchema(ctx); err != nil {
		return err
	}

	go trackDBConnections(ctx, db)

	smtp := notifier.NewSMTPNotifier(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Sender, cfg.SMTP.Password, logger)
	svc := services.NewLicenseService(repo, smtp, services.NewKeyGenerator(nil), logger, cfg.KeyAttempts)

	var limiter ports.IssuanceLimiter
	if cfg.Redis.Addr != "" {
		limiter = ratelimit.NewRedisLimiter(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			cfg.Redis.IssuanceLimit, cfg.Redis.IssuanceWindow)
	}

	handler := api.NewLicenseHandler(svc, limiter, logger)

	// The issuance form is served from a different origin, so CORS stays on.
	corsPolicy := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins(cfg.AllowedOrigins),
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	})

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      corsPolicy.Handler(handler.Routes()),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("license API listening", slog.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

func allowedOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

func trackDBConnections(ctx context.Context, db *sql.DB) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.DBConnectionsActive.Set(float64(db.Stats().OpenConnections))
		}
	}
}
