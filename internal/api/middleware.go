package api

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"

	"github.com/shehryarbajwa/regpool/internal/ratelimit"
)

// RateLimitMiddleware enforces a per-client request budget
func RateLimitMiddleware(limiter *ratelimit.Limiter, requestsPerHour int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID := getClientID(r)

			if !limiter.Allow(clientID) {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(requestsPerHour))
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.WriteHeader(http.StatusTooManyRequests)

				json.NewEncoder(w).Encode(map[string]string{
					"error": "Rate limit exceeded. Maximum " + strconv.Itoa(requestsPerHour) + " requests per hour per client.",
				})
				return
			}

			tokens := limiter.Tokens(clientID)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(requestsPerHour))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(int(tokens)))

			next.ServeHTTP(w, r)
		})
	}
}

// getClientID keys a request by X-Client-ID, falling back to the remote host
func getClientID(r *http.Request) string {
	if id := r.Header.Get("X-Client-ID"); id != "" {
		return id
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
