package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/ayarullin/finvizor/internal/api/handlers"
	"github.com/ayarullin/finvizor/pkg/logger"
)

// NewRouter creates and configures the HTTP router
func NewRouter(advisor *handlers.AdvisorHandler, jobs *handlers.JobsHandler, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/ranking", advisor.GetRanking).Methods("GET")
	api.HandleFunc("/ranking/{ticker}", advisor.GetTicker).Methods("GET")
	api.HandleFunc("/selection", advisor.GetSelection).Methods("GET")
	api.HandleFunc("/portfolio", advisor.GetPortfolio).Methods("GET")
	api.HandleFunc("/history", advisor.GetHistory).Methods("GET")
	api.HandleFunc("/cycle", advisor.RunCycle).Methods("POST")

	api.HandleFunc("/subscribers", advisor.ListSubscribers).Methods("GET")
	api.HandleFunc("/subscribers", advisor.Subscribe).Methods("POST")
	api.HandleFunc("/subscribers/{chat_id}", advisor.Unsubscribe).Methods("DELETE")

	api.HandleFunc("/jobs", jobs.GetStats).Methods("GET")
	api.HandleFunc("/jobs/{name}/run", jobs.RunJob).Methods("POST")

	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "finvizor-api",
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
