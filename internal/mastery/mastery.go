// Package mastery implements the per-chunk spaced-repetition ladder.
package mastery

import (
	"math"
	"time"
)

// Rating is the user's verdict after practicing a chunk.
type Rating int

// The three ratings collected by the session runner.
const (
	Struggled Rating = 1
	Okay      Rating = 3
	Clean     Rating = 5
)

// MaxLevel is the top rung of the mastery ladder.
const MaxLevel = 5

// Level describes one rung: its display name, the fraction of base tempo
// the chunk is practiced at, and the review interval once reached.
type Level struct {
	Name           string
	TempoPct       float64
	ReviewInterval time.Duration
}

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}

// Levels is the fixed six-rung ladder, indexed by mastery level 0-5.
var Levels = [MaxLevel + 1]Level{
	{Name: "New", TempoPct: 0.40, ReviewInterval: 0},
	{Name: "Learning", TempoPct: 0.55, ReviewInterval: days(1)},
	{Name: "Developing", TempoPct: 0.70, ReviewInterval: days(3)},
	{Name: "Proficient", TempoPct: 0.85, ReviewInterval: days(7)},
	{Name: "Solid", TempoPct: 1.00, ReviewInterval: days(14)},
	{Name: "Mastered", TempoPct: 1.00, ReviewInterval: days(30)},
}

// TempoPct returns the practice tempo fraction for a level, clamped to
// the ladder bounds.
func TempoPct(level int) float64 {
	return Levels[clampLevel(level)].TempoPct
}

// LevelName returns the display name for a level.
func LevelName(level int) string {
	return Levels[clampLevel(level)].Name
}

func clampLevel(level int) int {
	if level < 0 {
		return 0
	}
	if level > MaxLevel {
		return MaxLevel
	}
	return level
}

// HistoryEntry is one practice record in a chunk's append-only history.
type HistoryEntry struct {
	Date   time.Time `json:"date"`
	Rating Rating    `json:"rating"`
	Tempo  int       `json:"tempo"` // BPM actually practiced at
}

// State is the persisted scheduling state of one chunk.
type State struct {
	ChunkID       string         `json:"chunkId"`
	Level         int            `json:"masteryLevel"`
	LastPracticed *time.Time     `json:"lastPracticed,omitempty"`
	NextReview    *time.Time     `json:"nextReview,omitempty"`
	History       []HistoryEntry `json:"history,omitempty"`
}

// NewState returns the fresh level-0 state for a chunk seen for the
// first time.
func NewState(chunkID string) State {
	return State{ChunkID: chunkID}
}

// Due reports whether the chunk's review date has passed. Chunks that
// were never rated have no review date and are not due.
func (s State) Due(now time.Time) bool {
	return s.NextReview != nil && !s.NextReview.After(now)
}

// Apply processes one rating event and returns the updated state.
// Clean promotes, Struggled demotes, Okay holds; the level moves by at
// most one rung and stays in [0, MaxLevel]. The history entry records
// the tempo the user actually practiced at, i.e. the pre-rating level's
// tempo of the given base BPM. The receiver is not mutated.
func (s State) Apply(rating Rating, baseTempo int, now time.Time) State {
	next := s.clone()

	oldLevel := clampLevel(s.Level)
	newLevel := oldLevel
	switch {
	case rating >= 4:
		newLevel = clampLevel(oldLevel + 1)
	case rating <= 2:
		newLevel = clampLevel(oldLevel - 1)
	}
	next.Level = newLevel

	next.LastPracticed = &now
	review := now.Add(Levels[newLevel].ReviewInterval)
	next.NextReview = &review

	next.History = append(next.History, HistoryEntry{
		Date:   now,
		Rating: rating,
		Tempo:  PracticeTempo(baseTempo, oldLevel),
	})
	return next
}

// PracticeTempo converts a base BPM into the practice BPM for a level.
func PracticeTempo(baseTempo, level int) int {
	return int(math.Round(float64(baseTempo) * TempoPct(level)))
}

func (s State) clone() State {
	c := s
	if s.LastPracticed != nil {
		t := *s.LastPracticed
		c.LastPracticed = &t
	}
	if s.NextReview != nil {
		t := *s.NextReview
		c.NextReview = &t
	}
	c.History = make([]HistoryEntry, len(s.History))
	copy(c.History, s.History)
	return c
}
