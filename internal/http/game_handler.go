package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"noughts/internal/game"
)

// GameHandler exposes the tic-tac-toe endpoints.
type GameHandler struct {
	service *game.Service
	logger  *slog.Logger
}

// NewGameHandler creates a new GameHandler.
func NewGameHandler(service *game.Service, logger *slog.Logger) *GameHandler {
	return &GameHandler{service: service, logger: logger}
}

// Record handles POST /tictactoe/games.
func (h *GameHandler) Record(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	var payload game.RecordGameInput
	if err := decodeJSONBody(w, r, &payload); err != nil {
		writeJSONError(w, err)
		return
	}

	recorded, err := h.service.RecordGame(r.Context(), user.ID, payload)
	if err != nil {
		if errors.Is(err, game.ErrValidation) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("record game", "error", err)
		writeError(w, http.StatusInternalServerError, "unexpected error")
		return
	}

	writeSuccess(w, http.StatusCreated, map[string]any{
		"gameId":     recorded.Game.ID,
		"scoreDelta": recorded.Game.ScoreDelta,
		"stats":      recorded.Stats,
	})
}

// MyStats handles GET /tictactoe/me.
func (h *GameHandler) MyStats(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	stats, err := h.service.MyStats(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("fetch stats", "error", err)
		writeError(w, http.StatusInternalServerError, "unexpected error")
		return
	}

	writeSuccess(w, http.StatusOK, stats)
}

// Leaderboard handles GET /tictactoe/leaderboard.
func (h *GameHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", game.DefaultLeaderboardLimit)

	entries, err := h.service.Leaderboard(r.Context(), limit)
	if err != nil {
		h.logger.Error("leaderboard", "error", err)
		writeError(w, http.StatusInternalServerError, "unexpected error")
		return
	}

	writeSuccess(w, http.StatusOK, entries)
}

// History handles GET /tictactoe/games.
func (h *GameHandler) History(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "pageSize", game.DefaultPageSize)

	result, err := h.service.UserGames(r.Context(), user.ID, page, pageSize)
	if err != nil {
		h.logger.Error("game history", "error", err)
		writeError(w, http.StatusInternalServerError, "unexpected error")
		return
	}

	writeSuccess(w, http.StatusOK, result)
}

// Replay handles GET /tictactoe/games/{id}.
func (h *GameHandler) Replay(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid game id")
		return
	}

	g, err := h.service.GameForReplay(r.Context(), user.ID, id)
	if err != nil {
		if errors.Is(err, game.ErrNotFound) {
			writeError(w, http.StatusNotFound, "game not found")
			return
		}
		h.logger.Error("game replay", "error", err)
		writeError(w, http.StatusInternalServerError, "unexpected error")
		return
	}

	writeSuccess(w, http.StatusOK, g)
}

// queryInt reads an integer query parameter, falling back on absence or
// garbage. Range clamping is the service's job.
func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
