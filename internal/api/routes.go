package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/phuslu/log"
)

// SetupRoutes configures all API routes
func SetupRoutes(handler *Handler) *mux.Router {
	r := mux.NewRouter()
	r.Use(requestLogger(handler.logger))

	// Health check
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()

	// Factor analysis
	api.HandleFunc("/factors/stocks/{symbol}", handler.AnalyzeStock).Methods("GET")
	api.HandleFunc("/factors/portfolios/{portfolioId}", handler.AnalyzePortfolio).Methods("GET")
	api.HandleFunc("/factors/requests", handler.QueueAnalysis).Methods("POST")

	// Reference data
	api.HandleFunc("/stocks/{symbol}", handler.GetStock).Methods("GET")
	api.HandleFunc("/portfolios", handler.CreatePortfolio).Methods("POST")
	api.HandleFunc("/portfolios/{portfolioId}", handler.GetPortfolio).Methods("GET")
	api.HandleFunc("/portfolios/{portfolioId}/holdings", handler.ReplaceHoldings).Methods("PUT")
	api.HandleFunc("/portfolios/{portfolioId}/holdings", handler.AddHolding).Methods("POST")

	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func requestLogger(logger *log.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rec.status).
				Dur("elapsed", time.Since(start)).
				Msg("HTTP request")
		})
	}
}
