package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"noughts/internal/avatar"
)

// UserHandler exposes the current-user endpoints.
type UserHandler struct {
	avatars *avatar.Service
	logger  *slog.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(avatars *avatar.Service, logger *slog.Logger) *UserHandler {
	return &UserHandler{avatars: avatars, logger: logger}
}

// Me handles GET /users/me.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	writeSuccess(w, http.StatusOK, map[string]any{
		"id":       user.ID,
		"email":    user.Email,
		"name":     user.Name,
		"lastName": user.LastName,
		"picture":  user.Picture,
	})
}

// Avatar handles GET /users/me/avatar. Serves the user's profile picture
// through the cache, falling back to the default image.
func (h *UserHandler) Avatar(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	img := h.avatars.Resolve(r.Context(), user.Picture)

	w.Header().Set("Content-Type", img.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
	w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(avatar.MaxAgeSeconds))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img.Data)
}
