package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/trogers1052/signal-trader/internal/indicators"
	"github.com/trogers1052/signal-trader/internal/models"
	"github.com/trogers1052/signal-trader/internal/risk"
)

// PutSettings handles PUT /users/{userID}/settings
func (h *Handler) PutSettings(w http.ResponseWriter, r *http.Request) {
	var settings models.TradingSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	settings.UserID = mux.Vars(r)["userID"]

	if settings.MaxDailyTrades < risk.MinDailyTrades || settings.MaxDailyTrades > risk.MaxDailyTrades {
		http.Error(w, "max_daily_trades out of range", http.StatusBadRequest)
		return
	}
	if settings.MaxDailyLoss.IsNegative() || !settings.MaxPositionSize.IsPositive() {
		http.Error(w, "max_daily_loss must be >= 0 and max_position_size > 0", http.StatusBadRequest)
		return
	}
	if _, err := risk.ParseWindow(settings.TradingHoursStart, settings.TradingHoursEnd); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.store.UpsertTradingSettings(r.Context(), &settings); err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, settings)
}

// GetWatchlist handles GET /users/{userID}/watchlist
func (h *Handler) GetWatchlist(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.GetWatchlistByUser(r.Context(), mux.Vars(r)["userID"])
	if err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, items)
}

// AddWatchlistItem handles POST /users/{userID}/watchlist. Missing band
// parameters default to 20 periods and 2 standard deviations.
func (h *Handler) AddWatchlistItem(w http.ResponseWriter, r *http.Request) {
	req := struct {
		Symbol      string  `json:"symbol"`
		Enabled     *bool   `json:"enabled"`
		BBPeriod    int     `json:"bb_period"`
		BBStdDev    float64 `json:"bb_std_dev"`
		VWAPEnabled bool    `json:"vwap_enabled"`
	}{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	item := &models.WatchlistItem{
		UserID:      mux.Vars(r)["userID"],
		Symbol:      strings.ToUpper(strings.TrimSpace(req.Symbol)),
		Enabled:     req.Enabled == nil || *req.Enabled,
		BBPeriod:    req.BBPeriod,
		BBStdDev:    req.BBStdDev,
		VWAPEnabled: req.VWAPEnabled,
	}
	if item.BBPeriod == 0 {
		item.BBPeriod = indicators.DefaultBBPeriod
	}
	if item.BBStdDev == 0 {
		item.BBStdDev = indicators.DefaultBBStdDev
	}

	if !models.ValidSymbol(item.Symbol) {
		http.Error(w, "invalid symbol", http.StatusBadRequest)
		return
	}
	set, err := indicators.FromWatchlist(item)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := set.FitsWindow(h.lookback); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.store.CreateWatchlistItem(r.Context(), item); err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, item)
}

// RemoveWatchlistItem handles DELETE /watchlist/{id}
func (h *Handler) RemoveWatchlistItem(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteWatchlistItem(r.Context(), mux.Vars(r)["id"]); err != nil {
		respondStoreError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetRules handles GET /users/{userID}/rules
func (h *Handler) GetRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.store.GetRulesByUser(r.Context(), mux.Vars(r)["userID"])
	if err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, rules)
}

// AddRule handles POST /users/{userID}/rules
func (h *Handler) AddRule(w http.ResponseWriter, r *http.Request) {
	var rule models.SignalRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	rule.ID = ""
	rule.UserID = mux.Vars(r)["userID"]

	for _, pct := range []decimal.NullDecimal{rule.TrailingStopPercent, rule.StopLossPercent, rule.TakeProfitPercent} {
		if pct.Valid && !pct.Decimal.IsPositive() {
			http.Error(w, "protective percents must be positive", http.StatusBadRequest)
			return
		}
	}
	if err := rule.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.store.CreateSignalRule(r.Context(), &rule); err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, rule)
}

// SetRuleEnabled handles PATCH /rules/{id} with {"enabled": bool}
func (h *Handler) SetRuleEnabled(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
		http.Error(w, "enabled is required", http.StatusBadRequest)
		return
	}

	if err := h.store.SetRuleEnabled(r.Context(), mux.Vars(r)["id"], *req.Enabled); err != nil {
		respondStoreError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
