package http

import (
	"net/http"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"
)

// NewRouter configures the webhook endpoint routes.
func NewRouter(handler *Handler, limiter *rate.Limiter) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/webhook", rateLimited(limiter, handler.HandleWebhook)).Methods("POST")
	r.HandleFunc("/healthz", handler.Healthz).Methods("GET")
	return r
}

func rateLimited(limiter *rate.Limiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if limiter != nil && !limiter.Allow() {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}
