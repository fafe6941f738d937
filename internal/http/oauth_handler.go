package http

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"noughts/internal/auth"
	"noughts/internal/platform/metrics"
)

const (
	oauthStateCookieName = "oauth_state"
	oauthStateCookieTTL  = 5 * time.Minute

	sessionCookieName  = "session_token"
	sessionCookieTTL   = 7 * 24 * time.Hour
	sessionTokenHeader = "X-Session-Token"
)

// OAuthHandler drives the browser-facing OAuth endpoints: consent redirect,
// provider callback, account linking, and logout.
type OAuthHandler struct {
	authService  *auth.Service
	stateCodec   *auth.StateCodec
	collector    *metrics.Collector
	logger       *slog.Logger
	secureCookie bool
	backendURL   string
	frontendURL  string
	settingsURL  string
}

// NewOAuthHandler creates a new OAuthHandler.
func NewOAuthHandler(authService *auth.Service, stateCodec *auth.StateCodec, collector *metrics.Collector, backendURL, frontendURL, env string, logger *slog.Logger) *OAuthHandler {
	frontendURL = strings.TrimSuffix(frontendURL, "/")
	return &OAuthHandler{
		authService:  authService,
		stateCodec:   stateCodec,
		collector:    collector,
		logger:       logger,
		secureCookie: !strings.EqualFold(env, "development"),
		backendURL:   strings.TrimSuffix(backendURL, "/"),
		frontendURL:  frontendURL,
		settingsURL:  frontendURL + "/settings",
	}
}

// Login handles GET /auth/{provider}/login.
// Sets the state cookie and redirects to the provider consent screen.
func (h *OAuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	h.initiate(w, r, auth.ModeLogin, r.URL.Query().Get("redirect"))
}

// StartLink handles GET /auth/{provider}/link.
// Same dance as Login but with mode=link carried in the state; requires an
// authenticated session, enforced by the router.
func (h *OAuthHandler) StartLink(w http.ResponseWriter, r *http.Request) {
	h.initiate(w, r, auth.ModeLink, h.settingsURL)
}

func (h *OAuthHandler) initiate(w http.ResponseWriter, r *http.Request, mode auth.StateMode, redirect string) {
	provider, ok := parseProviderParam(w, r)
	if !ok {
		return
	}

	state, err := h.stateCodec.Encode(redirect, mode)
	if err != nil {
		h.logger.Error("encode oauth state", "error", err)
		writeError(w, http.StatusInternalServerError, "unexpected error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookieName,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(oauthStateCookieTTL.Seconds()),
	})

	authURL, err := h.authService.AuthorizeURL(provider, h.callbackURL(provider), state)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unsupported provider")
		return
	}

	http.Redirect(w, r, authURL, http.StatusFound)
}

// Callback handles GET /auth/{provider}/callback.
// Verifies state, runs the exchange and identity resolution, then redirects
// back to the frontend. Every failure path redirects to the login page with
// error details rather than rendering JSON a browser can't use.
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	provider, ok := parseProviderParam(w, r)
	if !ok {
		return
	}

	var savedState string
	if cookie, err := r.Cookie(oauthStateCookieName); err == nil {
		savedState = cookie.Value
	}
	h.clearCookie(w, oauthStateCookieName)

	payload, err := h.stateCodec.Decode(r.URL.Query().Get("state"), savedState)
	if err != nil {
		h.logger.Warn("oauth callback: state rejected", "provider", provider, "error", err)
		h.recordLogin(provider, "state_rejected")
		h.redirectWithError(w, r, "invalid_state", "Sign-in session expired. Please try again.")
		return
	}

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Warn("oauth callback: provider error", "provider", provider, "error", errParam)
		h.recordLogin(provider, "provider_error")
		h.redirectWithError(w, r, errParam, r.URL.Query().Get("error_description"))
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		h.recordLogin(provider, "missing_code")
		h.redirectWithError(w, r, "invalid_request", "Missing authorization code.")
		return
	}

	result, err := h.authService.HandleCallback(r.Context(), auth.CallbackInput{
		Provider:     provider,
		Code:         code,
		RedirectURI:  h.callbackURL(provider),
		Mode:         payload.Mode,
		SessionToken: sessionTokenFromRequest(r),
	})
	if err != nil {
		h.logger.Error("oauth callback failed", "provider", provider, "mode", payload.Mode, "error", err)
		h.recordLogin(provider, "failure")
		code, message := callbackErrorDetails(err)
		h.redirectWithError(w, r, code, message)
		return
	}

	if payload.Mode == auth.ModeLogin {
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookieName,
			Value:    result.SessionToken,
			Path:     "/",
			HttpOnly: true,
			Secure:   h.secureCookie,
			SameSite: http.SameSiteLaxMode,
			MaxAge:   int(sessionCookieTTL.Seconds()),
		})
	}

	h.recordLogin(provider, "success")
	h.logger.Info("oauth callback successful", "provider", provider, "mode", payload.Mode, "user_id", result.User.ID)
	http.Redirect(w, r, payload.RedirectURL, http.StatusFound)
}

// Disconnect handles DELETE /auth/{provider}/link.
func (h *OAuthHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	provider, ok := parseProviderParam(w, r)
	if !ok {
		return
	}
	user := UserFromContext(r.Context())

	if err := h.authService.Disconnect(r.Context(), user.ID, provider); err != nil {
		if errors.Is(err, auth.ErrCannotRemoveLastAccount) {
			writeError(w, http.StatusConflict, "cannot disconnect the last linked account")
			return
		}
		h.logger.Error("disconnect account", "provider", provider, "error", err)
		writeError(w, http.StatusInternalServerError, "unexpected error")
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"provider": provider, "disconnected": true})
}

// Logout handles POST /auth/logout. Revoking an unknown token still clears
// the cookies and succeeds.
func (h *OAuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := sessionTokenFromRequest(r)
	if err := h.authService.RevokeSession(r.Context(), token); err != nil {
		h.logger.Error("revoke session", "error", err)
	}

	h.clearCookie(w, sessionCookieName)
	h.clearCookie(w, oauthStateCookieName)
	writeSuccess(w, http.StatusOK, map[string]any{"loggedOut": true})
}

func (h *OAuthHandler) callbackURL(provider auth.Provider) string {
	return h.backendURL + "/api/v1/auth/" + provider.Slug() + "/callback"
}

func (h *OAuthHandler) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
	})
}

func (h *OAuthHandler) recordLogin(provider auth.Provider, result string) {
	if h.collector != nil {
		h.collector.RecordLogin(provider.Slug(), result)
	}
}

// redirectWithError redirects to the frontend login page with error details.
func (h *OAuthHandler) redirectWithError(w http.ResponseWriter, r *http.Request, code, message string) {
	target := h.frontendURL + "/login?error=" + url.QueryEscape(code)
	if message != "" {
		target += "&message=" + url.QueryEscape(message)
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// callbackErrorDetails maps service failures to the error code and message
// surfaced in the login redirect.
func callbackErrorDetails(err error) (string, string) {
	switch {
	case errors.Is(err, auth.ErrAccountAlreadyLinked):
		return "account_already_linked", "This account is already linked to another user."
	case errors.Is(err, auth.ErrUnauthenticated), errors.Is(err, auth.ErrInvalidSession), errors.Is(err, auth.ErrSessionExpired):
		return "unauthenticated", "Please sign in before linking an account."
	case errors.Is(err, auth.ErrUpstream):
		return "exchange_error", "The identity provider did not complete the sign-in."
	case errors.Is(err, auth.ErrUnsupportedProvider):
		return "invalid_request", "Unsupported provider."
	default:
		return "internal_error", "Failed to complete authentication."
	}
}

func parseProviderParam(w http.ResponseWriter, r *http.Request) (auth.Provider, bool) {
	provider, ok := auth.ParseProvider(chi.URLParam(r, "provider"))
	if !ok {
		writeError(w, http.StatusBadRequest, "unsupported provider")
		return "", false
	}
	return provider, true
}
