package http

import (
	"net/http"
	"time"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"

	"noughts/internal/auth"
	"noughts/internal/avatar"
	"noughts/internal/config"
	"noughts/internal/game"
	"noughts/internal/platform/metrics"
	"noughts/internal/settings"
)

// Services bundles everything the router wires behind routes.
type Services struct {
	Auth       *auth.Service
	StateCodec *auth.StateCodec
	Game       *game.Service
	Settings   *settings.Service
	Avatars    *avatar.Service
	Collector  *metrics.Collector
	Gatherer   prometheus.Gatherer
}

// NewRouter wires application routes and middleware using chi.
func NewRouter(cfg config.Config, svcs Services, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", sessionTokenHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(newSlogMiddleware(logger))
	if svcs.Collector != nil {
		r.Use(newMetricsMiddleware(svcs.Collector))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeSuccess(w, http.StatusOK, map[string]any{
			"status":      "ok",
			"environment": cfg.Environment,
		})
	})
	if svcs.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(svcs.Gatherer))
	}

	oauthHandler := NewOAuthHandler(svcs.Auth, svcs.StateCodec, svcs.Collector, cfg.BackendURL, cfg.FrontendURL, cfg.Environment, logger)
	userHandler := NewUserHandler(svcs.Avatars, logger)
	settingsHandler := NewSettingsHandler(svcs.Settings, logger)
	gameHandler := NewGameHandler(svcs.Game, logger)

	requireSession := newAuthMiddleware(svcs.Auth, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Get("/{provider}/login", oauthHandler.Login)
			r.Get("/{provider}/callback", oauthHandler.Callback)
			r.Post("/logout", oauthHandler.Logout)

			r.Group(func(r chi.Router) {
				r.Use(requireSession)
				r.Get("/{provider}/link", oauthHandler.StartLink)
				r.Delete("/{provider}/link", oauthHandler.Disconnect)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(requireSession)

			r.Get("/users/me", userHandler.Me)
			r.Get("/users/me/avatar", userHandler.Avatar)

			r.Get("/settings/me", settingsHandler.Overview)
			r.Patch("/settings/profile", settingsHandler.UpdateProfile)

			r.Route("/tictactoe", func(r chi.Router) {
				r.Post("/games", gameHandler.Record)
				r.Get("/games", gameHandler.History)
				r.Get("/games/{id}", gameHandler.Replay)
				r.Get("/me", gameHandler.MyStats)
				r.Get("/leaderboard", gameHandler.Leaderboard)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})

	return r
}
