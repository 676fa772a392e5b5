// Package signals turns indicator snapshots into signal types and joins them
// against user rules.
package signals

import (
	"github.com/trogers1052/signal-trader/internal/indicators"
	"github.com/trogers1052/signal-trader/internal/models"
)

// Input is what the detector compares for one instrument on one scan
type Input struct {
	Previous float64
	Current  float64
	Bands    indicators.Bands
	// VWAP is only evaluated when VWAPEnabled is set
	VWAP        float64
	VWAPEnabled bool
}

// InputFromSnapshot adapts an indicator snapshot
func InputFromSnapshot(s indicators.Snapshot) Input {
	return Input{
		Previous:    s.Previous,
		Current:     s.Current,
		Bands:       s.Bands,
		VWAP:        s.VWAP,
		VWAPEnabled: s.VWAPEnabled,
	}
}

// Detect returns every signal type the move from Previous to Current fires.
// Breakouts use prev <= band < cur (or the mirror), reversions use strict
// comparisons on both sides, so a move that starts exactly on a band is owned
// by exactly one rule.
func Detect(in Input) []models.SignalType {
	var fired []models.SignalType
	prev, cur, b := in.Previous, in.Current, in.Bands

	if prev <= b.Upper && cur > b.Upper {
		fired = append(fired, models.SignalBBBreakoutUp)
	}
	if prev >= b.Lower && cur < b.Lower {
		fired = append(fired, models.SignalBBBreakoutDown)
	}
	if prev < b.Lower && cur > b.Lower {
		fired = append(fired, models.SignalBBMeanReversionUp)
	}
	if prev > b.Upper && cur < b.Upper {
		fired = append(fired, models.SignalBBMeanReversionDown)
	}

	if in.VWAPEnabled {
		if prev <= in.VWAP && cur > in.VWAP {
			fired = append(fired, models.SignalVWAPCrossUp)
		}
		if prev >= in.VWAP && cur < in.VWAP {
			fired = append(fired, models.SignalVWAPCrossDown)
		}
	}

	return fired
}
