// Package session assembles a time-boxed practice plan from chunks and
// their mastery state.
package session

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/verte-zerg/woodshed/internal/analysis"
	"github.com/verte-zerg/woodshed/internal/mastery"
)

// Phase names the four pedagogical phases, in running order.
type Phase string

const (
	PhaseIsolation    Phase = "isolation"
	PhaseContext      Phase = "context"
	PhaseInterleaving Phase = "interleaving"
	PhaseRunthrough   Phase = "runthrough"
)

// Item type discriminators.
const (
	ItemChunk = "chunk"
	ItemRange = "range"
)

// Phase time budget as fractions of the total session minutes.
const (
	isolationShare    = 0.40
	contextShare      = 0.30
	interleavingShare = 0.20
	runthroughShare   = 0.10
)

// repTiers is the fixed rep target per mastery level; level 5 reuses the
// top tier.
var repTiers = [5]int{5, 4, 3, 3, 2}

// Tempo policy constants for the later phases.
const (
	contextTempoFloor    = 0.60
	contextTempoDrop     = 0.10
	interleavingTempoPct = 0.70
	interleavingReps     = 2
	interleavingMax      = 3
	runthroughTempoPct   = 0.60
	contextMaxBarGap     = 2
	contextReps          = 2
)

// Item is one runner-facing entry of the flattened session plan.
type Item struct {
	Phase       Phase
	Type        string
	ChunkID     string // empty for range items
	FirstBar    int    // 1-based, range items
	LastBar     int
	Label       string
	BPM         int
	TempoPct    float64
	Reps        int // 0 = until stopped
	NeedsRating bool
	IsReview    bool
	TempoRamp   bool
}

// PhaseTime is the per-phase minute budget, rounded independently.
type PhaseTime struct {
	Isolation    int
	Context      int
	Interleaving int
	Runthrough   int
}

// Pair is a context-phase item covering two neighbouring chunks.
type Pair struct {
	A, B     analysis.Chunk
	TempoPct float64
}

// Interleave is the interleaving-phase payload.
type Interleave struct {
	Chunks   []analysis.Chunk
	BPM      int
	TempoPct float64
}

// Runthrough is the final whole-piece payload.
type Runthrough struct {
	BPM      int
	TempoPct float64
}

// Session is one complete practice plan. Only the session count and
// timestamp persist; the plan itself is rebuilt every invocation.
type Session struct {
	Number       int
	Date         time.Time
	TotalMinutes int
	PhaseTime    PhaseTime
	Selected     []analysis.Chunk
	Isolation    []Item
	Context      []Pair
	Interleaving Interleave
	Runthrough   Runthrough
	Items        []Item
}

// Builder holds the inputs shared by one session assembly.
type Builder struct {
	BaseTempo int
	TotalBars int
	Now       time.Time
	Rand      *rand.Rand // nil → time-seeded
	RampReps  bool       // enable the runner's per-rep tempo ramp on isolation items
}

// Build assembles a session from the song's chunks, the persisted
// mastery states, and the total minute budget. A song with no chunks
// yields a valid empty session.
func (b Builder) Build(number int, chunks []analysis.Chunk, states map[string]mastery.State, totalMinutes int) Session {
	now := b.Now
	if now.IsZero() {
		now = time.Now()
	}
	rng := b.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(now.UnixNano()))
	}

	s := Session{
		Number:       number,
		Date:         now,
		TotalMinutes: totalMinutes,
		PhaseTime: PhaseTime{
			Isolation:    int(math.Round(float64(totalMinutes) * isolationShare)),
			Context:      int(math.Round(float64(totalMinutes) * contextShare)),
			Interleaving: int(math.Round(float64(totalMinutes) * interleavingShare)),
			Runthrough:   int(math.Round(float64(totalMinutes) * runthroughShare)),
		},
	}

	// A score with no playable bars has no chunks; that is a valid
	// empty session, not an error.
	if len(chunks) == 0 {
		return s
	}

	s.Selected = b.selectChunks(chunks, states, s.PhaseTime.Isolation, now)
	s.Isolation = b.isolationItems(s.Selected, states, now)
	s.Context = b.contextPairs(s.Selected, states)
	s.Interleaving = b.interleaving(s.Selected, rng)
	s.Runthrough = Runthrough{
		BPM:      int(math.Round(float64(b.BaseTempo) * runthroughTempoPct)),
		TempoPct: runthroughTempoPct,
	}

	s.Items = b.flatten(s)
	return s
}

// selectChunks orders chunks by mastery level ascending then difficulty
// descending, drops mastered chunks that are not yet due, and keeps the
// first max(3, isolationMinutes/2).
func (b Builder) selectChunks(chunks []analysis.Chunk, states map[string]mastery.State, isolationMinutes int, now time.Time) []analysis.Chunk {
	candidates := make([]analysis.Chunk, 0, len(chunks))
	for _, c := range chunks {
		st := stateFor(states, c.ID)
		if st.Level >= mastery.MaxLevel && !st.Due(now) {
			continue
		}
		candidates = append(candidates, c)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		li := stateFor(states, candidates[i].ID).Level
		lj := stateFor(states, candidates[j].ID).Level
		if li != lj {
			return li < lj
		}
		return candidates[i].Difficulty > candidates[j].Difficulty
	})
	limit := isolationMinutes / 2
	if limit < 3 {
		limit = 3
	}
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}

func (b Builder) isolationItems(selected []analysis.Chunk, states map[string]mastery.State, now time.Time) []Item {
	items := make([]Item, 0, len(selected))
	for _, c := range selected {
		st := stateFor(states, c.ID)
		level := st.Level
		tier := level
		if tier > len(repTiers)-1 {
			tier = len(repTiers) - 1
		}
		items = append(items, Item{
			Phase:       PhaseIsolation,
			Type:        ItemChunk,
			ChunkID:     c.ID,
			FirstBar:    c.FirstBar,
			LastBar:     c.LastBar,
			Label:       c.Label,
			BPM:         mastery.PracticeTempo(b.BaseTempo, level),
			TempoPct:    mastery.TempoPct(level),
			Reps:        repTiers[tier],
			NeedsRating: true,
			IsReview:    st.Due(now),
			TempoRamp:   b.RampReps,
		})
	}
	return items
}

// contextPairs joins neighbouring selected chunks (bar gap ≤ 2) at a
// tempo a notch below the weaker chunk's level, floored at 60%.
func (b Builder) contextPairs(selected []analysis.Chunk, states map[string]mastery.State) []Pair {
	byPosition := make([]analysis.Chunk, len(selected))
	copy(byPosition, selected)
	sort.Slice(byPosition, func(i, j int) bool {
		return byPosition[i].FirstBar < byPosition[j].FirstBar
	})

	var pairs []Pair
	for i := 1; i < len(byPosition); i++ {
		a, c := byPosition[i-1], byPosition[i]
		if c.FirstBar-a.LastBar > contextMaxBarGap {
			continue
		}
		levelA := stateFor(states, a.ID).Level
		levelB := stateFor(states, c.ID).Level
		minLevel := levelA
		if levelB < minLevel {
			minLevel = levelB
		}
		pct := mastery.TempoPct(minLevel) - contextTempoDrop
		if pct < contextTempoFloor {
			pct = contextTempoFloor
		}
		pairs = append(pairs, Pair{A: a, B: c, TempoPct: pct})
	}
	return pairs
}

func (b Builder) interleaving(selected []analysis.Chunk, rng *rand.Rand) Interleave {
	shuffled := make([]analysis.Chunk, len(selected))
	copy(shuffled, selected)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	if len(shuffled) > interleavingMax {
		shuffled = shuffled[:interleavingMax]
	}
	return Interleave{
		Chunks:   shuffled,
		BPM:      int(math.Round(float64(b.BaseTempo) * interleavingTempoPct)),
		TempoPct: interleavingTempoPct,
	}
}

// flatten concatenates the four phases, in fixed order, into the item
// list the runner consumes.
func (b Builder) flatten(s Session) []Item {
	items := make([]Item, 0, len(s.Isolation)+len(s.Context)+len(s.Interleaving.Chunks)+1)
	items = append(items, s.Isolation...)

	for _, p := range s.Context {
		items = append(items, Item{
			Phase:       PhaseContext,
			Type:        ItemRange,
			FirstBar:    p.A.FirstBar,
			LastBar:     p.B.LastBar,
			Label:       fmt.Sprintf("%s + %s", p.A.Label, p.B.Label),
			BPM:         int(math.Round(float64(b.BaseTempo) * p.TempoPct)),
			TempoPct:    p.TempoPct,
			Reps:        contextReps,
			NeedsRating: true,
		})
	}

	for _, c := range s.Interleaving.Chunks {
		items = append(items, Item{
			Phase:    PhaseInterleaving,
			Type:     ItemChunk,
			ChunkID:  c.ID,
			FirstBar: c.FirstBar,
			LastBar:  c.LastBar,
			Label:    c.Label,
			BPM:      s.Interleaving.BPM,
			TempoPct: s.Interleaving.TempoPct,
			Reps:     interleavingReps,
		})
	}

	items = append(items, Item{
		Phase:       PhaseRunthrough,
		Type:        ItemRange,
		FirstBar:    1,
		LastBar:     b.TotalBars,
		Label:       "Full run-through",
		BPM:         s.Runthrough.BPM,
		TempoPct:    s.Runthrough.TempoPct,
		Reps:        0,
		NeedsRating: true,
	})
	return items
}

func stateFor(states map[string]mastery.State, chunkID string) mastery.State {
	if st, ok := states[chunkID]; ok {
		return st
	}
	return mastery.NewState(chunkID)
}
