package api

import (
	"github.com/gorilla/mux"
)

// Passes are expensive; each client may start a few in a burst, then one a second
const (
	jobsPerSecond = 1
	jobsBurst     = 5
)

// SetupRoutes configures all API routes
func SetupRoutes(handler *Handler) *mux.Router {
	r := mux.NewRouter()
	r.Use(requestID, handler.logRequests)

	// Health check
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()

	// Passes
	jobs := api.PathPrefix("/jobs").Subrouter()
	jobs.Use(newIPLimiter(jobsPerSecond, jobsBurst).middleware)
	jobs.HandleFunc("/{pass}", handler.RunJob).Methods("POST")

	// Per-user configuration
	api.HandleFunc("/users/{userID}/settings", handler.GetSettings).Methods("GET")
	api.HandleFunc("/users/{userID}/settings", handler.PutSettings).Methods("PUT")
	api.HandleFunc("/users/{userID}/watchlist", handler.GetWatchlist).Methods("GET")
	api.HandleFunc("/users/{userID}/watchlist", handler.AddWatchlistItem).Methods("POST")
	api.HandleFunc("/watchlist/{id}", handler.RemoveWatchlistItem).Methods("DELETE")
	api.HandleFunc("/users/{userID}/rules", handler.GetRules).Methods("GET")
	api.HandleFunc("/users/{userID}/rules", handler.AddRule).Methods("POST")
	api.HandleFunc("/rules/{id}", handler.SetRuleEnabled).Methods("PATCH")

	// Per-user activity
	api.HandleFunc("/users/{userID}/signals", handler.GetSignals).Methods("GET")
	api.HandleFunc("/users/{userID}/orders", handler.GetOrders).Methods("GET")
	api.HandleFunc("/users/{userID}/positions", handler.GetPositions).Methods("GET")
	api.HandleFunc("/users/{userID}/session", handler.GetSession).Methods("GET")

	// Latest indicator snapshot
	api.HandleFunc("/symbols/{symbol}/indicators", handler.GetIndicators).Methods("GET")
	api.HandleFunc("/symbols/{symbol}/indicators/{type}", handler.GetIndicatorHistory).Methods("GET")

	// Lookups
	api.HandleFunc("/signals/{id}", handler.GetSignal).Methods("GET")
	api.HandleFunc("/orders/broker/{brokerOrderID}", handler.GetOrderByBrokerID).Methods("GET")

	// Manual close
	api.HandleFunc("/positions/{id}/close", handler.ClosePosition).Methods("POST")

	return r
}
