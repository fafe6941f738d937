package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"noughts/internal/auth"
)

const (
	testBackendURL  = "http://localhost:8080"
	testFrontendURL = "http://localhost:3000"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeProvider serves the token and userinfo endpoints for handler tests.
type fakeProvider struct {
	srv     *httptest.Server
	profile map[string]any
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()

	fp := &fakeProvider{}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "at-test",
			"token_type":   "Bearer",
		})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(fp.profile)
	})

	fp.srv = httptest.NewServer(mux)
	t.Cleanup(fp.srv.Close)
	return fp
}

func newTestAuthService(t *testing.T, fp *fakeProvider) (*auth.Service, *auth.MemoryRepository) {
	t.Helper()

	registry := auth.NewStaticRegistry(auth.ProviderConfig{
		Provider: auth.ProviderGoogle,
		Type:     auth.TypeOAuth2,
		OAuth: oauth2.Config{
			ClientID:     "client-id",
			ClientSecret: "client-secret",
			Endpoint: oauth2.Endpoint{
				AuthURL:  fp.srv.URL + "/auth",
				TokenURL: fp.srv.URL + "/token",
			},
		},
		UserInfoURL: fp.srv.URL + "/userinfo",
	})

	repo := auth.NewMemoryRepository()
	svc := auth.NewService(registry, repo, auth.NewExchangeClient(2*time.Second), nil, time.Hour)
	return svc, repo
}

func newTestOAuthHandler(t *testing.T, fp *fakeProvider) (*OAuthHandler, *auth.StateCodec) {
	t.Helper()

	svc, _ := newTestAuthService(t, fp)
	codec := auth.NewStateCodec(testFrontendURL)
	handler := NewOAuthHandler(svc, codec, nil, testBackendURL, testFrontendURL, "development", discardLogger())
	return handler, codec
}

func withProviderParam(req *http.Request, provider string) *http.Request {
	return withChiParam(req, "provider", provider)
}

func TestLoginRedirectsToProviderWithStateCookie(t *testing.T) {
	fp := newFakeProvider(t)
	handler, _ := newTestOAuthHandler(t, fp)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/google/login?redirect=http://localhost:3000/play", nil)
	req = withProviderParam(req, "google")
	rec := httptest.NewRecorder()

	handler.Login(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("expected status 302, got %d", rec.Code)
	}

	var stateCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == oauthStateCookieName {
			stateCookie = c
		}
	}
	if stateCookie == nil || stateCookie.Value == "" {
		t.Fatal("expected oauth_state cookie to be set")
	}
	if stateCookie.MaxAge != int(oauthStateCookieTTL.Seconds()) {
		t.Fatalf("unexpected state cookie max-age: %d", stateCookie.MaxAge)
	}

	location, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("bad redirect location: %v", err)
	}
	if got := location.Query().Get("state"); got != stateCookie.Value {
		t.Fatalf("state query must match cookie")
	}
	if got := location.Query().Get("redirect_uri"); got != testBackendURL+"/api/v1/auth/google/callback" {
		t.Fatalf("unexpected redirect_uri: %s", got)
	}
}

func TestLoginRejectsUnknownProvider(t *testing.T) {
	fp := newFakeProvider(t)
	handler, _ := newTestOAuthHandler(t, fp)

	req := withProviderParam(httptest.NewRequest(http.MethodGet, "/api/v1/auth/github/login", nil), "github")
	rec := httptest.NewRecorder()

	handler.Login(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestCallbackSetsSessionCookieAndRedirects(t *testing.T) {
	fp := newFakeProvider(t)
	fp.profile = map[string]any{"sub": "g-1", "email": "ada@example.com", "given_name": "Ada"}
	handler, codec := newTestOAuthHandler(t, fp)

	state, err := codec.Encode("http://localhost:3000/play", auth.ModeLogin)
	if err != nil {
		t.Fatalf("encode state: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/google/callback?code=the-code&state="+url.QueryEscape(state), nil)
	req = withProviderParam(req, "google")
	req.AddCookie(&http.Cookie{Name: oauthStateCookieName, Value: state})
	rec := httptest.NewRecorder()

	handler.Callback(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("expected status 302, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Location"); got != "http://localhost:3000/play" {
		t.Fatalf("unexpected redirect: %s", got)
	}

	var sessionCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookieName {
			sessionCookie = c
		}
	}
	if sessionCookie == nil || sessionCookie.Value == "" {
		t.Fatal("expected session cookie to be set")
	}
	if sessionCookie.MaxAge != int(sessionCookieTTL.Seconds()) {
		t.Fatalf("unexpected session cookie max-age: %d", sessionCookie.MaxAge)
	}
}

func TestCallbackWithoutStateCookieRedirectsToLogin(t *testing.T) {
	fp := newFakeProvider(t)
	handler, codec := newTestOAuthHandler(t, fp)

	state, _ := codec.Encode("", auth.ModeLogin)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/google/callback?code=c&state="+url.QueryEscape(state), nil)
	req = withProviderParam(req, "google")
	rec := httptest.NewRecorder()

	handler.Callback(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("expected status 302, got %d", rec.Code)
	}
	location := rec.Header().Get("Location")
	if !strings.HasPrefix(location, testFrontendURL+"/login?error=invalid_state") {
		t.Fatalf("expected login error redirect, got %s", location)
	}
}

func TestCallbackPropagatesProviderError(t *testing.T) {
	fp := newFakeProvider(t)
	handler, codec := newTestOAuthHandler(t, fp)

	state, _ := codec.Encode("", auth.ModeLogin)
	target := "/api/v1/auth/google/callback?error=access_denied&error_description=nope&state=" + url.QueryEscape(state)
	req := withProviderParam(httptest.NewRequest(http.MethodGet, target, nil), "google")
	req.AddCookie(&http.Cookie{Name: oauthStateCookieName, Value: state})
	rec := httptest.NewRecorder()

	handler.Callback(rec, req)

	location := rec.Header().Get("Location")
	if !strings.Contains(location, "error=access_denied") {
		t.Fatalf("expected provider error propagated, got %s", location)
	}
}

func TestLogoutClearsCookies(t *testing.T) {
	fp := newFakeProvider(t)
	handler, _ := newTestOAuthHandler(t, fp)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "whatever"})
	rec := httptest.NewRecorder()

	handler.Logout(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	cleared := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Fatal("expected session cookie to be cleared")
	}
}

func TestDisconnectLastAccountConflicts(t *testing.T) {
	fp := newFakeProvider(t)
	fp.profile = map[string]any{"sub": "g-1", "email": "ada@example.com"}
	svc, _ := newTestAuthService(t, fp)
	codec := auth.NewStateCodec(testFrontendURL)
	handler := NewOAuthHandler(svc, codec, nil, testBackendURL, testFrontendURL, "development", discardLogger())

	login, err := svc.HandleCallback(context.Background(), auth.CallbackInput{
		Provider:    auth.ProviderGoogle,
		Code:        "code",
		RedirectURI: "http://localhost:8080/cb",
		Mode:        auth.ModeLogin,
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	req := withProviderParam(httptest.NewRequest(http.MethodDelete, "/api/v1/auth/google/link", nil), "google")
	req = req.WithContext(context.WithValue(req.Context(), userContextKey, &login.User))
	rec := httptest.NewRecorder()

	handler.Disconnect(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d: %s", rec.Code, rec.Body.String())
	}

	var envelope map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if envelope["status"] != "error" {
		t.Fatalf("expected error envelope, got %v", envelope)
	}
}
