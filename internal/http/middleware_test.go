package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"noughts/internal/auth"
)

func newProtectedHandler(t *testing.T, svc *auth.Service) http.Handler {
	t.Helper()

	mw := newAuthMiddleware(svc, discardLogger())
	return mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := UserFromContext(r.Context())
		if user == nil {
			t.Error("expected user in context")
		}
		if SessionFromContext(r.Context()) == nil {
			t.Error("expected session in context")
		}
		w.WriteHeader(http.StatusOK)
	}))
}

func login(t *testing.T, svc *auth.Service) string {
	t.Helper()

	result, err := svc.HandleCallback(context.Background(), auth.CallbackInput{
		Provider:    auth.ProviderGoogle,
		Code:        "code",
		RedirectURI: "http://localhost:8080/cb",
		Mode:        auth.ModeLogin,
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	return result.SessionToken
}

func TestAuthMiddlewareAcceptsCookie(t *testing.T) {
	fp := newFakeProvider(t)
	fp.profile = map[string]any{"sub": "g-1", "email": "ada@example.com"}
	svc, _ := newTestAuthService(t, fp)
	token := login(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: token})
	rec := httptest.NewRecorder()

	newProtectedHandler(t, svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
}

func TestAuthMiddlewareAcceptsHeaderFallback(t *testing.T) {
	fp := newFakeProvider(t)
	fp.profile = map[string]any{"sub": "g-1", "email": "ada@example.com"}
	svc, _ := newTestAuthService(t, fp)
	token := login(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.Header.Set(sessionTokenHeader, token)
	rec := httptest.NewRecorder()

	newProtectedHandler(t, svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
}

func TestAuthMiddlewareCookieWinsOverHeader(t *testing.T) {
	fp := newFakeProvider(t)
	fp.profile = map[string]any{"sub": "g-1", "email": "ada@example.com"}
	svc, _ := newTestAuthService(t, fp)
	token := login(t, svc)

	mw := newAuthMiddleware(svc, discardLogger())
	next := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := SessionTokenFromContext(r.Context()); got != token {
			t.Errorf("expected cookie token to win, got %q", got)
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: token})
	req.Header.Set(sessionTokenHeader, "bogus-header-token")
	rec := httptest.NewRecorder()

	next.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
}

func TestAuthMiddlewareRejectsMissingToken(t *testing.T) {
	fp := newFakeProvider(t)
	svc, _ := newTestAuthService(t, fp)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	rec := httptest.NewRecorder()

	mw := newAuthMiddleware(svc, discardLogger())
	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run without a session")
	})).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
}

func TestAuthMiddlewareRejectsUnknownToken(t *testing.T) {
	fp := newFakeProvider(t)
	svc, _ := newTestAuthService(t, fp)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "deadbeef"})
	rec := httptest.NewRecorder()

	mw := newAuthMiddleware(svc, discardLogger())
	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run with an invalid session")
	})).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
}
