package models

import "time"

// RunRecord tracks one in-flight durable run. Records live in the Run Tracker
// from spawn until a status poll observes a terminal state, or until the TTL
// sweep evicts them regardless of actual completion.
type RunRecord struct {
	RunID     string    `json:"run_id"`
	ModelID   string    `json:"model_id"`
	StartedAt time.Time `json:"started_at"`
}

// Age returns how long the run has been tracked as of now.
func (r RunRecord) Age(now time.Time) time.Duration {
	return now.Sub(r.StartedAt)
}
