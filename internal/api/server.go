package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/shehryarbajwa/regpool/internal/proxy"
	"github.com/shehryarbajwa/regpool/internal/ratelimit"
)

// SetupRoutes configures all HTTP routes
func (h *Handler) SetupRoutes(runHandler *RunHandler, relay *proxy.Relay, rateLimiter *ratelimit.Limiter, requestsPerHour int) *mux.Router {
	r := mux.NewRouter()

	api := r.PathPrefix("/v1").Subrouter()

	// mutating and run endpoints are rate limited
	limited := api.PathPrefix("").Subrouter()
	limited.Use(RateLimitMiddleware(rateLimiter, requestsPerHour))

	limited.HandleFunc("/browsers/{id}/takeover", h.TakeoverBrowser).Methods("POST")
	limited.HandleFunc("/browsers/{id}/release", h.ReleaseBrowser).Methods("POST")
	limited.HandleFunc("/browsers/{id}", h.CloseBrowser).Methods("DELETE")
	limited.HandleFunc("/runs", runHandler.CreateRun).Methods("POST")
	limited.HandleFunc("/runs/{id}", runHandler.StopRun).Methods("DELETE")
	limited.HandleFunc("/balance", runHandler.GetBalance).Methods("GET")

	// read endpoints are polled by dashboards
	api.HandleFunc("/browsers", h.ListBrowsers).Methods("GET")
	api.HandleFunc("/browsers/{id}", h.GetBrowser).Methods("GET")
	api.HandleFunc("/browsers/{id}/debug", h.GetDebugURL).Methods("GET")
	api.HandleFunc("/browsers/{id}/ws", func(w http.ResponseWriter, r *http.Request) {
		relay.HandleTakeover(w, r, mux.Vars(r)["id"])
	}).Methods("GET")
	api.HandleFunc("/runs", runHandler.ListRuns).Methods("GET")
	api.HandleFunc("/runs/{id}", runHandler.GetRun).Methods("GET")

	r.Use(corsMiddleware)

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Client-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
