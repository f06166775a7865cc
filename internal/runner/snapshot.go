package runner

import (
	"time"

	"github.com/verte-zerg/woodshed/internal/session"
)

// Snapshot is a read-only view of the runner for UI rendering.
type Snapshot struct {
	Status    Status
	Item      *session.Item // nil when idle or complete
	ItemIndex int
	ItemCount int
	RepsDone  int
	LiveBPM   int
	TempoPct  float64
	Results   []Outcome
	StartedAt time.Time
}

// Snapshot returns a copy of the current runner state.
func (r *Runner) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := Snapshot{
		Status:    r.status,
		ItemIndex: r.idx,
		ItemCount: len(r.items),
		RepsDone:  r.repsDone,
		LiveBPM:   r.liveBPM,
		TempoPct:  r.tempoPct,
		StartedAt: r.startedAt,
	}
	if r.idx < len(r.items) && (r.status == Playing || r.status == AwaitingRating || r.status == Rest || r.status == PhaseInterstitial) {
		item := r.items[r.idx]
		s.Item = &item
	}
	s.Results = make([]Outcome, len(r.results))
	copy(s.Results, r.results)
	return s
}

// Summarize aggregates the recorded outcomes for the completion screen.
func (r *Runner) Summarize(now time.Time) Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	sum := Summary{
		Items: len(r.items),
		Rated: len(r.results),
	}
	if !r.startedAt.IsZero() {
		sum.ElapsedMinutes = now.Sub(r.startedAt).Minutes()
	}
	total := 0
	for _, o := range r.results {
		total += int(o.Rating)
		if o.Rating >= 5 {
			sum.CleanLabels = append(sum.CleanLabels, o.Label)
		}
		if o.Rating <= 1 {
			sum.StruggleLabels = append(sum.StruggleLabels, o.Label)
		}
	}
	if len(r.results) > 0 {
		sum.AverageRating = float64(total) / float64(len(r.results))
	}
	return sum
}
