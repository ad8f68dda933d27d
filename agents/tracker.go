package agents

import (
	"sync"
	"time"

	"prediction-fleet/models"
	"prediction-fleet/observability"
)

// DefaultTrackerTTL is how long a run is tracked before the sweep gives up on
// it regardless of actual completion.
const DefaultTrackerTTL = 30 * time.Minute

// RunTracker is the process-local registry of in-flight durable runs. It is
// deliberately not persisted: a restarted process simply stops polling prior
// runs, it does not stop them. The TTL sweep is an availability-over-accuracy
// choice — a wedged run must not occupy a tracking slot forever.
type RunTracker struct {
	mu   sync.Mutex
	runs map[string]models.RunRecord
	ttl  time.Duration
}

// NewRunTracker creates a tracker with the given TTL. A non-positive TTL
// falls back to the default.
func NewRunTracker(ttl time.Duration) *RunTracker {
	if ttl <= 0 {
		ttl = DefaultTrackerTTL
	}
	return &RunTracker{
		runs: make(map[string]models.RunRecord),
		ttl:  ttl,
	}
}

// Insert registers a run. Idempotent: re-inserting an id overwrites the
// record with identical content.
func (t *RunTracker) Insert(runID, modelID string, startedAt time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.runs[runID] = models.RunRecord{
		RunID:     runID,
		ModelID:   modelID,
		StartedAt: startedAt,
	}
	observability.GetMetrics().SetTrackedRuns(len(t.runs))
}

// Remove deletes a run unconditionally.
func (t *RunTracker) Remove(runID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.runs, runID)
	observability.GetMetrics().SetTrackedRuns(len(t.runs))
}

// SweepStale evicts every entry older than the TTL and returns the evicted
// run ids for logging.
func (t *RunTracker) SweepStale(now time.Time) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var swept []string
	for id, rec := range t.runs {
		if rec.Age(now) > t.ttl {
			delete(t.runs, id)
			swept = append(swept, id)
		}
	}
	if len(swept) > 0 {
		metrics := observability.GetMetrics()
		metrics.RecordTrackerSweep(len(swept))
		metrics.SetTrackedRuns(len(t.runs))
	}
	return swept
}

// Snapshot returns a copy of all current entries.
func (t *RunTracker) Snapshot() []models.RunRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]models.RunRecord, 0, len(t.runs))
	for _, rec := range t.runs {
		out = append(out, rec)
	}
	return out
}

// Len returns the number of tracked runs.
func (t *RunTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.runs)
}
