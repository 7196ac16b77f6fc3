package httpx

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

// Caller identity arrives on trusted headers set by the edge proxy;
// authentication itself happens upstream.
const (
	HeaderUserID = "X-User-Id"
	HeaderRole   = "X-User-Role"
)

func userID(r *http.Request) string { return r.Header.Get(HeaderUserID) }
func isAdmin(r *http.Request) bool  { return r.Header.Get(HeaderRole) == "admin" }
