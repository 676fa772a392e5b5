package indicators

import (
	"errors"
	"fmt"

	"github.com/trogers1052/signal-trader/internal/models"
)

// Kind identifies an indicator configuration variant
type Kind string

const (
	KindBollinger Kind = "bollinger"
	KindVWAP      Kind = "vwap"
)

// Bounds and defaults for Bollinger parameters
const (
	MinBBPeriod     = 2
	MaxBBPeriod     = 500
	MaxBBStdDev     = 10.0
	DefaultBBPeriod = 20
	DefaultBBStdDev = 2.0
)

var (
	// ErrInvalidConfig is wrapped by every Validate failure
	ErrInvalidConfig = errors.New("invalid indicator config")
	// ErrWindowTooShort is returned when a set needs more bars than are fetched
	ErrWindowTooShort = errors.New("indicator period exceeds bar window")
)

// Config is implemented by each typed indicator configuration
type Config interface {
	Kind() Kind
	Validate() error
}

// BollingerConfig parameterizes BollingerBands
type BollingerConfig struct {
	Period int     `json:"period" yaml:"period"`
	StdDev float64 `json:"std_dev" yaml:"std_dev"`
}

func (BollingerConfig) Kind() Kind { return KindBollinger }

func (c BollingerConfig) Validate() error {
	if c.Period < MinBBPeriod || c.Period > MaxBBPeriod {
		return fmt.Errorf("%w: bollinger period %d outside [%d,%d]", ErrInvalidConfig, c.Period, MinBBPeriod, MaxBBPeriod)
	}
	if !(c.StdDev > 0) || c.StdDev > MaxBBStdDev {
		return fmt.Errorf("%w: bollinger std dev %v outside (0,%v]", ErrInvalidConfig, c.StdDev, MaxBBStdDev)
	}
	return nil
}

// VWAPConfig enables VWAP for an instrument. It has no tunable parameters.
type VWAPConfig struct{}

func (VWAPConfig) Kind() Kind { return KindVWAP }

func (VWAPConfig) Validate() error { return nil }

// Set is the validated indicator configuration of one watchlist item
type Set struct {
	Bollinger BollingerConfig
	VWAP      *VWAPConfig
}

// FromWatchlist builds and validates the indicator set of a watchlist item
func FromWatchlist(item *models.WatchlistItem) (Set, error) {
	set := Set{
		Bollinger: BollingerConfig{Period: item.BBPeriod, StdDev: item.BBStdDev},
	}
	if item.VWAPEnabled {
		set.VWAP = &VWAPConfig{}
	}
	for _, cfg := range set.Configs() {
		if err := cfg.Validate(); err != nil {
			return Set{}, err
		}
	}
	return set, nil
}

// MinBars is the shortest window Compute can evaluate
func (s Set) MinBars() int {
	return max(s.Bollinger.Period, 2)
}

// FitsWindow checks the set against the number of bars a provider returns.
// A non-positive lookback disables the check.
func (s Set) FitsWindow(lookback int) error {
	if lookback > 0 && s.MinBars() > lookback {
		return fmt.Errorf("%w: bollinger period %d, lookback %d", ErrWindowTooShort, s.Bollinger.Period, lookback)
	}
	return nil
}

// Configs returns the enabled configs as the tagged union
func (s Set) Configs() []Config {
	configs := []Config{s.Bollinger}
	if s.VWAP != nil {
		configs = append(configs, *s.VWAP)
	}
	return configs
}

// Snapshot is the indicator state at the last bar of a window
type Snapshot struct {
	Bands       Bands
	VWAP        float64
	VWAPEnabled bool
	Current     float64
	Previous    float64
	Last        models.Bar
}

// Compute evaluates the set over bars. ok is false when there are not
// enough bars for the bands or for a previous/current pair.
func (s Set) Compute(bars []models.Bar) (Snapshot, bool) {
	if len(bars) < 2 {
		return Snapshot{}, false
	}
	bands, ok := BollingerBands(Closes(bars), s.Bollinger.Period, s.Bollinger.StdDev)
	if !ok {
		return Snapshot{}, false
	}
	last := bars[len(bars)-1]
	snap := Snapshot{
		Bands:    bands,
		Current:  last.Close,
		Previous: bars[len(bars)-2].Close,
		Last:     last,
	}
	if s.VWAP != nil {
		snap.VWAPEnabled = true
		snap.VWAP = VWAP(bars)
	}
	return snap, true
}
