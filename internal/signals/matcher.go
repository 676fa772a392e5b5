package signals

import "github.com/trogers1052/signal-trader/internal/models"

// Match pairs a detected signal type with one rule that asked for it
type Match struct {
	SignalType models.SignalType
	Rule       *models.SignalRule
}

// MatchRules selects, for each fired type, every enabled rule of userID with
// that signal type. Overlapping rules each produce their own match.
func MatchRules(userID string, fired []models.SignalType, rules []*models.SignalRule) []Match {
	var matches []Match
	for _, signalType := range fired {
		for _, rule := range rules {
			if rule == nil || !rule.Enabled {
				continue
			}
			if rule.UserID != userID || rule.SignalType != signalType {
				continue
			}
			matches = append(matches, Match{SignalType: signalType, Rule: rule})
		}
	}
	return matches
}
