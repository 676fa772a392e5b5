package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/trogers1052/signal-trader/internal/cache"
	"github.com/trogers1052/signal-trader/internal/database"
	"github.com/trogers1052/signal-trader/internal/execution"
	"github.com/trogers1052/signal-trader/internal/jobs"
	"github.com/trogers1052/signal-trader/internal/marketdata"
	"github.com/trogers1052/signal-trader/internal/models"
	"github.com/trogers1052/signal-trader/internal/risk"
)

const defaultLimit = 100

var errSessionsDisabled = errors.New("session evaluation is not configured")

// Store is what the endpoints need from the database
type Store interface {
	Ping(ctx context.Context) error
	GetTradingSettings(ctx context.Context, userID string) (*models.TradingSettings, error)
	UpsertTradingSettings(ctx context.Context, s *models.TradingSettings) error
	GetWatchlistByUser(ctx context.Context, userID string) ([]*models.WatchlistItem, error)
	CreateWatchlistItem(ctx context.Context, w *models.WatchlistItem) error
	DeleteWatchlistItem(ctx context.Context, id string) error
	GetRulesByUser(ctx context.Context, userID string) ([]*models.SignalRule, error)
	CreateSignalRule(ctx context.Context, r *models.SignalRule) error
	SetRuleEnabled(ctx context.Context, id string, enabled bool) error
	GetSignalsByUser(ctx context.Context, userID string, limit int) ([]*models.Signal, error)
	GetOrdersByUser(ctx context.Context, userID string, limit int) ([]*models.Order, error)
	GetPositionsByUser(ctx context.Context, userID string, openOnly bool) ([]*models.Position, error)
	GetPositionByID(ctx context.Context, id string) (*models.Position, error)
	GetSignalByID(ctx context.Context, id string) (*models.Signal, error)
	GetOrderByBrokerID(ctx context.Context, brokerOrderID string) (*models.Order, error)
	GetLatestIndicators(ctx context.Context, symbol string) ([]*models.TechnicalIndicator, error)
	GetIndicatorHistory(ctx context.Context, symbol, indicatorType string, limit int) ([]*models.TechnicalIndicator, error)
}

// PassRunner runs a named pass
type PassRunner interface {
	Run(ctx context.Context, pass string) (any, error)
}

// PositionCloser closes a position at a price
type PositionCloser interface {
	ClosePosition(ctx context.Context, pos *models.Position, reason string, price decimal.Decimal) (*models.Order, error)
}

// SessionEvaluator reports a user's trading session as the scan would see it
type SessionEvaluator interface {
	SessionFor(ctx context.Context, settings *models.TradingSettings, now time.Time) (risk.Decision, error)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	store  Store
	jobs   PassRunner
	closer PositionCloser
	market marketdata.Provider
	// lookback is the bar window the scan fetches; zero skips the period check
	lookback int
	sessions SessionEvaluator
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures a Handler
type Option func(*Handler)

// WithSessions enables GET /users/{userID}/session
func WithSessions(s SessionEvaluator) Option { return func(h *Handler) { h.sessions = s } }

// WithClock overrides time.Now for session evaluation
func WithClock(now func() time.Time) Option { return func(h *Handler) { h.now = now } }

// NewHandler creates a new Handler
func NewHandler(store Store, runner PassRunner, closer PositionCloser, market marketdata.Provider, lookback int, logger *zap.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{
		store:    store,
		jobs:     runner,
		closer:   closer,
		market:   market,
		lookback: lookback,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RunJob handles POST /jobs/{pass}
func (h *Handler) RunJob(w http.ResponseWriter, r *http.Request) {
	pass := mux.Vars(r)["pass"]

	result, err := h.jobs.Run(r.Context(), pass)
	switch {
	case errors.Is(err, jobs.ErrUnknownPass):
		respondError(w, http.StatusNotFound, err)
		return
	case errors.Is(err, cache.ErrLockHeld):
		respondError(w, http.StatusConflict, err)
		return
	case err != nil:
		h.logger.Error("Job failed", zap.String("pass", pass), zap.Error(err))
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// GetSettings handles GET /users/{userID}/settings
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.store.GetTradingSettings(r.Context(), mux.Vars(r)["userID"])
	if err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, settings)
}

// GetSession handles GET /users/{userID}/session
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	if h.sessions == nil {
		respondError(w, http.StatusNotImplemented, errSessionsDisabled)
		return
	}
	settings, err := h.store.GetTradingSettings(r.Context(), mux.Vars(r)["userID"])
	if err != nil {
		respondStoreError(w, err)
		return
	}

	dec, err := h.sessions.SessionFor(r.Context(), settings, h.now())
	if err != nil {
		h.logger.Error("Failed to evaluate session", zap.String("user_id", settings.UserID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	respondJSON(w, http.StatusOK, struct {
		UserID string `json:"user_id"`
		risk.Decision
	}{settings.UserID, dec})
}

// GetSignals handles GET /users/{userID}/signals
func (h *Handler) GetSignals(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	signals, err := h.store.GetSignalsByUser(r.Context(), mux.Vars(r)["userID"], limit)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, signals)
}

// GetOrders handles GET /users/{userID}/orders
func (h *Handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	orders, err := h.store.GetOrdersByUser(r.Context(), mux.Vars(r)["userID"], limit)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, orders)
}

// GetPositions handles GET /users/{userID}/positions?open=true
func (h *Handler) GetPositions(w http.ResponseWriter, r *http.Request) {
	openOnly := false
	if v := r.URL.Query().Get("open"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			http.Error(w, "invalid open parameter", http.StatusBadRequest)
			return
		}
		openOnly = b
	}

	positions, err := h.store.GetPositionsByUser(r.Context(), mux.Vars(r)["userID"], openOnly)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, positions)
}

// GetIndicators handles GET /symbols/{symbol}/indicators
func (h *Handler) GetIndicators(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(mux.Vars(r)["symbol"])

	rows, err := h.store.GetLatestIndicators(r.Context(), symbol)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if len(rows) == 0 {
		http.Error(w, "no indicators for "+symbol, http.StatusNotFound)
		return
	}

	respondJSON(w, http.StatusOK, rows)
}

// GetIndicatorHistory handles GET /symbols/{symbol}/indicators/{type}
func (h *Handler) GetIndicatorHistory(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)

	rows, err := h.store.GetIndicatorHistory(r.Context(), strings.ToUpper(vars["symbol"]), strings.ToUpper(vars["type"]), limit)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, rows)
}

// GetSignal handles GET /signals/{id}
func (h *Handler) GetSignal(w http.ResponseWriter, r *http.Request) {
	sig, err := h.store.GetSignalByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, sig)
}

// GetOrderByBrokerID handles GET /orders/broker/{brokerOrderID}
func (h *Handler) GetOrderByBrokerID(w http.ResponseWriter, r *http.Request) {
	order, err := h.store.GetOrderByBrokerID(r.Context(), mux.Vars(r)["brokerOrderID"])
	if err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, order)
}

// ClosePosition handles POST /positions/{id}/close. The body may carry an
// explicit price; otherwise the current quote is used.
func (h *Handler) ClosePosition(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Price *decimal.Decimal `json:"price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	pos, err := h.store.GetPositionByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondStoreError(w, err)
		return
	}

	var price decimal.Decimal
	if req.Price != nil {
		price = *req.Price
		if !price.IsPositive() {
			http.Error(w, "price must be positive", http.StatusBadRequest)
			return
		}
	} else {
		quote, err := h.market.GetQuote(r.Context(), pos.Symbol)
		if err != nil || !risk.ValidPrice(quote) {
			h.logger.Warn("No usable quote for manual close", zap.String("position_id", pos.ID), zap.String("symbol", pos.Symbol), zap.Error(err))
			http.Error(w, "no usable quote for "+pos.Symbol, http.StatusBadGateway)
			return
		}
		price = decimal.NewFromFloat(quote)
	}

	order, err := h.closer.ClosePosition(r.Context(), pos, models.CloseReasonManual, price)
	if errors.Is(err, execution.ErrPositionClosed) {
		respondError(w, http.StatusConflict, err)
		return
	}
	if err != nil {
		h.logger.Error("Manual close failed", zap.String("position_id", pos.ID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"order": order, "position": pos})
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if h.store != nil {
		if err := h.store.Ping(r.Context()); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return defaultLimit, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 || n > 1000 {
		http.Error(w, "limit must be between 1 and 1000", http.StatusBadRequest)
		return 0, false
	}
	return n, true
}

func respondStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, http.StatusNotFound, err)
		return
	}
	respondError(w, http.StatusInternalServerError, err)
}

func respondError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, map[string]string{"error": err.Error()})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
