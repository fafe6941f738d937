package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"noughts/internal/auth"
	"noughts/internal/avatar"
	"noughts/internal/config"
	"noughts/internal/game"
	transporthttp "noughts/internal/http"
	"noughts/internal/platform/database"
	"noughts/internal/platform/logging"
	"noughts/internal/platform/metrics"
	"noughts/internal/platform/migrate"
	"noughts/internal/settings"
)

const sessionCleanupInterval = time.Hour

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LogLevel)

	authRepo, gameRepo, cleanup, err := buildRepositories(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	if cleanup != nil {
		defer cleanup()
	}

	registry := auth.NewRegistry(auth.RegistryCredentials{
		Google:   credentials(cfg.Google),
		Facebook: credentials(cfg.Facebook),
		Line:     credentials(cfg.Line),
		Okta:     credentials(cfg.Okta),
		Auth0:    credentials(cfg.Auth0),
	})
	logger.Info("oauth providers enabled", "providers", registry.Enabled())

	promRegistry := prometheus.NewRegistry()
	collector := metrics.NewCollector(promRegistry)

	exchange := auth.NewExchangeClient(10 * time.Second)
	verifier := auth.NewIDTokenVerifier()
	authSvc := auth.NewService(registry, authRepo, exchange, verifier, 0)
	gameSvc := game.NewService(gameRepo)
	settingsSvc := settings.NewService(authRepo)
	avatarSvc := avatar.NewService()

	go cleanupSessions(ctx, authSvc, logger)

	router := transporthttp.NewRouter(cfg, transporthttp.Services{
		Auth:       authSvc,
		StateCodec: auth.NewStateCodec(cfg.FrontendURL),
		Game:       gameSvc,
		Settings:   settingsSvc,
		Avatars:    avatarSvc,
		Collector:  collector,
		Gatherer:   promRegistry,
	}, logger)

	srv := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    http.DefaultMaxHeaderBytes,
	}

	go func() {
		logger.Info("Noughts API listening", "addr", srv.Addr, "store", cfg.DataStore)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

func buildRepositories(ctx context.Context, cfg config.Config, logger *slog.Logger) (auth.Repository, game.Repository, func(), error) {
	if cfg.UseInMemoryStore() {
		logger.Info("using in-memory repositories")
		authRepo := auth.NewMemoryRepository()
		gameRepo := game.NewMemoryRepository(func(ctx context.Context, id uuid.UUID) (game.UserSummary, bool) {
			user, err := authRepo.FindUserByID(ctx, id)
			if err != nil || user == nil {
				return game.UserSummary{}, false
			}
			return game.UserSummary{
				ID:       user.ID,
				Email:    user.Email,
				Name:     user.Name,
				LastName: user.LastName,
				Picture:  user.Picture,
			}, true
		})
		return authRepo, gameRepo, nil, nil
	}

	db, err := database.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, err
	}

	cleanup := func() {
		_ = db.Close()
	}

	if err := migrate.Apply(ctx, db, logger); err != nil {
		cleanup()
		return nil, nil, nil, err
	}

	logger.Info("connected to postgres")
	return auth.NewPostgresRepository(db), game.NewPostgresRepository(db), cleanup, nil
}

// cleanupSessions periodically removes expired sessions so the table does not
// accumulate rows for users who never log out.
func cleanupSessions(ctx context.Context, authSvc *auth.Service, logger *slog.Logger) {
	ticker := time.NewTicker(sessionCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := authSvc.CleanupExpiredSessions(ctx)
			if err != nil {
				logger.Error("session cleanup failed", "error", err)
				continue
			}
			if removed > 0 {
				logger.Info("expired sessions removed", "count", removed)
			}
		}
	}
}

func credentials(client config.OAuthClient) auth.Credentials {
	return auth.Credentials{
		ClientID:     client.ClientID,
		ClientSecret: client.ClientSecret,
		IssuerURL:    client.IssuerURL,
		Domain:       client.Domain,
		Audience:     client.Audience,
	}
}
