package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/confluence/backend/internal/api/handlers"
	"github.com/wonny/confluence/backend/pkg/logger"
	"github.com/wonny/confluence/backend/pkg/metrics"
)

// Handlers groups every API handler. Prices may be nil when no feed runs.
type Handlers struct {
	Analysis    *handlers.AnalysisHandler
	Signals     *handlers.SignalHandler
	Performance *handlers.PerformanceHandler
	Settings    *handlers.SettingsHandler
	Prices      *handlers.PriceHandler
}

// HealthFunc reports dependency health; nil means healthy
type HealthFunc func(r *http.Request) error

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(h Handlers, health HealthFunc, rec *metrics.Recorder, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", healthCheckHandler(health)).Methods("GET")
	if rec != nil {
		r.Handle("/metrics", rec.Handler()).Methods("GET")
	}

	api := r.PathPrefix("/api").Subrouter()

	// Analysis
	api.HandleFunc("/analysis/{symbol}", h.Analysis.GetAnalysis).Methods("GET")
	api.HandleFunc("/killzone", h.Analysis.GetKillZone).Methods("GET")

	// Signals
	api.HandleFunc("/signals", h.Signals.List).Methods("GET")
	api.HandleFunc("/signals", h.Signals.Action).Methods("POST")
	api.HandleFunc("/signals/{symbol}/generate", h.Signals.Generate).Methods("POST")
	api.HandleFunc("/signals/{id}", h.Signals.Get).Methods("GET")
	api.HandleFunc("/signals/{id}/size", h.Signals.Size).Methods("GET")

	// Performance & settings
	api.HandleFunc("/performance", h.Performance.GetPerformance).Methods("GET")
	api.HandleFunc("/settings/{userID}", h.Settings.Get).Methods("GET")
	api.HandleFunc("/settings/{userID}", h.Settings.Put).Methods("PUT")

	// Prices
	if h.Prices != nil {
		api.HandleFunc("/prices", h.Prices.Post).Methods("POST")
		api.HandleFunc("/prices/stats", h.Prices.GetStats).Methods("GET")
	}

	// Apply middleware
	r.Use(loggingMiddleware(log, rec))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(health HealthFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, code := "ok", http.StatusOK
		body := map[string]interface{}{"service": "confluence-api"}
		if health != nil {
			if err := health(r); err != nil {
				status, code = "degraded", http.StatusServiceUnavailable
				body["error"] = err.Error()
			}
		}
		body["status"] = status

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(body)
	}
}

// statusRecorder captures the response code for logs and metrics
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// loggingMiddleware logs HTTP requests and records request metrics
func loggingMiddleware(log *logger.Logger, rec *metrics.Recorder) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(sr, r)

			route := r.URL.Path
			if cur := mux.CurrentRoute(r); cur != nil {
				if tpl, err := cur.GetPathTemplate(); err == nil {
					route = tpl
				}
			}
			duration := time.Since(start)
			rec.HTTPRequest(route, r.Method, sr.status, duration)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   sr.status,
				"duration": duration,
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
