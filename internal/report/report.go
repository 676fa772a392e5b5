// Package report collects per-unit outcomes of a batch pass.
package report

import (
	"sync"
	"time"
)

// Unit status values
const (
	StatusExecuted = "executed"
	StatusSkipped  = "skipped"
	StatusErrored  = "errored"
)

// Outcome is the result of one unit of work
type Outcome struct {
	Status     string `json:"status"`
	UserID     string `json:"user_id,omitempty"`
	Symbol     string `json:"symbol,omitempty"`
	SignalID   string `json:"signal_id,omitempty"`
	SignalType string `json:"signal_type,omitempty"`
	PositionID string `json:"position_id,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// Summary is returned by every pass instead of failing on partial errors
type Summary struct {
	Pass       string    `json:"pass"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Executed   int       `json:"executed"`
	Skipped    int       `json:"skipped"`
	Errored    int       `json:"errored"`
	Outcomes   []Outcome `json:"outcomes"`
}

// Reasons returns the reasons recorded with the given status, in order
func (s *Summary) Reasons(status string) []string {
	var reasons []string
	for _, o := range s.Outcomes {
		if o.Status == status {
			reasons = append(reasons, o.Reason)
		}
	}
	return reasons
}

// Recorder accumulates outcomes from concurrent workers
type Recorder struct {
	mu      sync.Mutex
	summary Summary
}

// NewRecorder starts a summary for the named pass
func NewRecorder(pass string, startedAt time.Time) *Recorder {
	return &Recorder{summary: Summary{Pass: pass, StartedAt: startedAt, Outcomes: []Outcome{}}}
}

// Add records one outcome
func (r *Recorder) Add(o Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch o.Status {
	case StatusExecuted:
		r.summary.Executed++
	case StatusSkipped:
		r.summary.Skipped++
	case StatusErrored:
		r.summary.Errored++
	}
	r.summary.Outcomes = append(r.summary.Outcomes, o)
}

// Finish stamps the end time and returns the summary
func (r *Recorder) Finish(finishedAt time.Time) *Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.summary
	out.FinishedAt = finishedAt
	out.Outcomes = append([]Outcome(nil), r.summary.Outcomes...)
	return &out
}
