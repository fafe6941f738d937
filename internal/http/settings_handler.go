package http

import (
	"log/slog"
	"net/http"

	"noughts/internal/settings"
)

// SettingsHandler exposes the settings page endpoints.
type SettingsHandler struct {
	service *settings.Service
	logger  *slog.Logger
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(service *settings.Service, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{service: service, logger: logger}
}

// Overview handles GET /settings/me.
func (h *SettingsHandler) Overview(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	overview, err := h.service.OverviewForUser(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("settings overview", "error", err)
		writeError(w, http.StatusInternalServerError, "unexpected error")
		return
	}

	writeSuccess(w, http.StatusOK, overview)
}

// UpdateProfile handles PATCH /settings/profile. Only fields present in the
// body change.
func (h *SettingsHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	var payload settings.ProfileUpdate
	if err := decodeJSONBody(w, r, &payload); err != nil {
		writeJSONError(w, err)
		return
	}

	updated, err := h.service.UpdateProfile(r.Context(), user.ID, payload)
	if err != nil {
		h.logger.Error("update profile", "error", err)
		writeError(w, http.StatusInternalServerError, "unexpected error")
		return
	}

	writeSuccess(w, http.StatusOK, updated)
}
