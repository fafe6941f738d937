package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// withChiParam injects a URL parameter the way chi's router would.
func withChiParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}
