// Package runner drives a practice session item by item: it commands the
// playback engine, counts reps from position notifications, collects
// ratings, and manages rest and phase-break timers.
package runner

import (
	"math"
	"sync"
	"time"

	"github.com/verte-zerg/woodshed/internal/mastery"
	"github.com/verte-zerg/woodshed/internal/playback"
	"github.com/verte-zerg/woodshed/internal/session"
)

// Status is the runner's state-machine state.
type Status int

// Runner states. Idle is both the initial state and the state after an
// explicit stop; SessionComplete holds until dismissed.
const (
	Idle Status = iota
	Playing
	AwaitingRating
	Rest
	PhaseInterstitial
	SessionComplete
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Playing:
		return "playing"
	case AwaitingRating:
		return "awaiting-rating"
	case Rest:
		return "rest"
	case PhaseInterstitial:
		return "phase-break"
	case SessionComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// repArmTicks is how far past an item's start tick the playhead must
// travel before a return to the start counts as a completed rep. It
// keeps the very first arrival from counting.
const repArmTicks = 500

// rampIncrement is the speed step added per completed rep on ramped
// items, capped at full tempo.
const rampIncrement = 0.05

// Outcome records one rated item.
type Outcome struct {
	ChunkID  string // empty for range items
	Label    string
	Rating   mastery.Rating
	BPMStart int
	BPMEnd   int
	Phase    session.Phase
}

// Summary aggregates a finished session for display.
type Summary struct {
	Items          int
	Rated          int
	ElapsedMinutes float64
	AverageRating  float64
	CleanLabels    []string
	StruggleLabels []string
}

// Config wires a Runner to its collaborators.
type Config struct {
	Playback  playback.Control
	Scheduler Scheduler // nil → time.AfterFunc

	// TickRange maps a 1-based inclusive bar range to playback ticks.
	TickRange func(firstBar, lastBar int) (startTick, endTick int)

	// OnOutcome, if set, receives each rated outcome as it is recorded.
	OnOutcome func(Outcome)

	BaseTempo         int
	RestDelay         time.Duration
	InterstitialDelay time.Duration
}

// Runner is the per-session orchestrator. One Runner exists per active
// run; Stop or Dismiss returns it to Idle with cleared state. All event
// handlers are no-ops outside the states that expect them.
type Runner struct {
	mu  sync.Mutex
	cfg Config

	status    Status
	items     []session.Item
	idx       int
	startedAt time.Time

	repsDone int
	armed    bool
	lastTick int
	tickBase int

	tempoPct     float64
	liveBPM      int
	itemStartBPM int

	results []Outcome

	cancelTimer func()
	gen         int // invalidates in-flight timer callbacks
}

// New creates an idle runner.
func New(cfg Config) *Runner {
	if cfg.Scheduler == nil {
		cfg.Scheduler = AfterFuncScheduler{}
	}
	if cfg.RestDelay <= 0 {
		cfg.RestDelay = 10 * time.Second
	}
	if cfg.InterstitialDelay <= 0 {
		cfg.InterstitialDelay = 5 * time.Second
	}
	return &Runner{cfg: cfg}
}

// Start begins a session over the given items. It is a no-op unless the
// runner is idle or an empty item list is given.
func (r *Runner) Start(items []session.Item, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != Idle || len(items) == 0 {
		return
	}
	r.items = items
	r.idx = 0
	r.startedAt = now
	r.results = nil
	r.startItemLocked()
}

// Stop cancels the whole run: pending timers, playback, and state, all
// synchronously. Safe to call in any state.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resetLocked()
}

// Dismiss leaves SessionComplete and returns to Idle.
func (r *Runner) Dismiss() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != SessionComplete {
		return
	}
	r.resetLocked()
}

// HandlePosition processes a playback position notification. A rep
// completes when the playhead returns to the item's start tick after
// having travelled past the arming distance.
func (r *Runner) HandlePosition(tick int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != Playing {
		return
	}
	if !r.armed {
		if tick-r.tickBase >= repArmTicks {
			r.armed = true
		}
		r.lastTick = tick
		return
	}
	if tick < r.lastTick && tick < r.tickBase+repArmTicks {
		r.armed = false
		r.repCompletedLocked()
	}
	r.lastTick = tick
}

// HandleStopped processes the engine's stopped notification. For items
// without a rep target this is the only advance trigger; for others it
// is treated the same as hitting the rep target (the user stopped
// early). Ignored outside Playing.
func (r *Runner) HandleStopped() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != Playing {
		return
	}
	r.finishItemLocked()
}

// HandleRating records the rating for the current item and advances.
// Ignored outside AwaitingRating.
func (r *Runner) HandleRating(rating mastery.Rating) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != AwaitingRating {
		return
	}
	item := r.items[r.idx]
	outcome := Outcome{
		ChunkID:  item.ChunkID,
		Label:    item.Label,
		Rating:   rating,
		BPMStart: r.itemStartBPM,
		BPMEnd:   r.liveBPM,
		Phase:    item.Phase,
	}
	r.results = append(r.results, outcome)
	if r.cfg.OnOutcome != nil {
		r.cfg.OnOutcome(outcome)
	}
	r.advanceLocked()
}

// SkipRest cuts the rest delay short. Ignored outside Rest.
func (r *Runner) SkipRest() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != Rest {
		return
	}
	r.cancelTimerLocked()
	r.startItemLocked()
}

// ContinuePhase cuts the phase break short. Ignored outside
// PhaseInterstitial.
func (r *Runner) ContinuePhase() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != PhaseInterstitial {
		return
	}
	r.cancelTimerLocked()
	r.startItemLocked()
}

func (r *Runner) repCompletedLocked() {
	r.repsDone++
	item := r.items[r.idx]
	if item.TempoRamp {
		r.rampLocked(item)
	}
	if item.Reps > 0 && r.repsDone >= item.Reps {
		r.finishItemLocked()
	}
}

func (r *Runner) rampLocked(item session.Item) {
	pct := r.tempoPct + rampIncrement
	if pct > 1.0 {
		pct = 1.0
	}
	if pct == r.tempoPct {
		return
	}
	r.tempoPct = pct
	r.liveBPM = int(math.Round(float64(r.cfg.BaseTempo) * pct))
	r.cfg.Playback.SetSpeed(pct)
}

// finishItemLocked stops playback and routes to rating or advance.
func (r *Runner) finishItemLocked() {
	r.cfg.Playback.Stop()
	if r.items[r.idx].NeedsRating {
		r.status = AwaitingRating
		return
	}
	r.advanceLocked()
}

// advanceLocked moves to the next item: past the end completes the
// session, a phase change inserts the interstitial, otherwise a rest.
func (r *Runner) advanceLocked() {
	prevPhase := r.items[r.idx].Phase
	r.idx++
	if r.idx >= len(r.items) {
		r.status = SessionComplete
		return
	}
	if r.items[r.idx].Phase != prevPhase {
		r.status = PhaseInterstitial
		r.scheduleLocked(r.cfg.InterstitialDelay)
		return
	}
	r.status = Rest
	r.scheduleLocked(r.cfg.RestDelay)
}

// scheduleLocked arms the auto-advance timer for Rest and
// PhaseInterstitial. The generation check keeps a late callback from
// firing into a runner that was stopped or already advanced.
func (r *Runner) scheduleLocked(d time.Duration) {
	r.cancelTimerLocked()
	gen := r.gen
	from := r.status
	r.cancelTimer = r.cfg.Scheduler.Schedule(d, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.gen != gen || r.status != from {
			return
		}
		r.cancelTimer = nil
		r.startItemLocked()
	})
}

func (r *Runner) startItemLocked() {
	item := r.items[r.idx]
	start, end := r.cfg.TickRange(item.FirstBar, item.LastBar)

	r.status = Playing
	r.repsDone = 0
	r.armed = false
	r.tickBase = start
	r.lastTick = start
	r.tempoPct = item.TempoPct
	r.liveBPM = item.BPM
	r.itemStartBPM = item.BPM

	r.cfg.Playback.Stop()
	r.cfg.Playback.SetLoopRange(start, end)
	r.cfg.Playback.SetSpeed(item.TempoPct)
	r.cfg.Playback.Play()
}

func (r *Runner) cancelTimerLocked() {
	r.gen++
	if r.cancelTimer != nil {
		r.cancelTimer()
		r.cancelTimer = nil
	}
}

func (r *Runner) resetLocked() {
	r.cancelTimerLocked()
	r.cfg.Playback.Stop()
	r.status = Idle
	r.items = nil
	r.idx = 0
	r.repsDone = 0
	r.armed = false
	r.results = nil
	r.liveBPM = 0
	r.tempoPct = 0
}
