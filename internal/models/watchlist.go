package models

import (
	"regexp"
	"time"
)

var symbolPattern = regexp.MustCompile(`^[A-Z][A-Z0-9.\-]{0,9}$`)

// ValidSymbol reports whether s is an upper-case ticker of at most 10 characters
func ValidSymbol(s string) bool {
	return symbolPattern.MatchString(s)
}

// WatchlistItem is a symbol a user wants scanned, with its indicator parameters
type WatchlistItem struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Symbol      string    `json:"symbol"`
	Enabled     bool      `json:"enabled"`
	BBPeriod    int       `json:"bb_period"`
	BBStdDev    float64   `json:"bb_std_dev"`
	VWAPEnabled bool      `json:"vwap_enabled"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
