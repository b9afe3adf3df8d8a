package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// SetupRoutes configures all API routes. Every data route sits behind the
// degraded-mode middleware; only the health check answers while the database
// is unreachable.
func SetupRoutes(handler *Handler) *mux.Router {
	r := mux.NewRouter()

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	data := api.NewRoute().Subrouter()
	data.Use(degradedMode(handler.health))
	data.HandleFunc("/portfolios", handler.GetAllPortfolios).Methods("GET")
	data.HandleFunc("/portfolios/{id:[0-9]+}", handler.GetPortfolio).Methods("GET")
	data.HandleFunc("/portfolios/{id:[0-9]+}/transactions", handler.GetPortfolioTransactions).Methods("GET")
	data.HandleFunc("/stocks", handler.GetAllStocks).Methods("GET")
	data.HandleFunc("/stocks/{id:[0-9]+}/price", handler.UpdateStockPrice).Methods("PUT")
	data.HandleFunc("/transactions", handler.CreateTransaction).Methods("POST")

	return r
}

// degradedMode rejects requests with 503 while the storage backend is down.
// The health monitor re-probes on a fixed interval and flips availability
// back once a probe succeeds.
func degradedMode(health HealthReporter) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !health.Available() {
				respondJSON(w, http.StatusServiceUnavailable, map[string]string{
					"error":   "Service unavailable",
					"message": "database connection is unavailable",
					"details": "connectivity is re-checked every 5 seconds",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
