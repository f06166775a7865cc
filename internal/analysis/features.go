// Package analysis turns bars into difficulty-scored practice chunks.
package analysis

import (
	"math"
	"sort"

	"github.com/verte-zerg/woodshed/internal/song"
)

// Feature keys, in the fixed vector order used throughout the package.
const (
	FeatNoteDensity     = "noteDensity"
	FeatStringCrossings = "stringCrossings"
	FeatFretSpan        = "fretSpan"
	FeatPositionShifts  = "positionShifts"
	FeatTechniqueScore  = "techniqueScore"
	FeatRhythmScore     = "rhythmScore"
)

// featureKeys fixes the ordering of the six-feature vector.
var featureKeys = []string{
	FeatNoteDensity,
	FeatStringCrossings,
	FeatFretSpan,
	FeatPositionShifts,
	FeatTechniqueScore,
	FeatRhythmScore,
}

// positionShiftThreshold is the minimum average-fret delta between
// consecutive beats that counts as a true position change.
const positionShiftThreshold = 3.0

// BarFeature is the flat numeric profile of one bar plus its technique tags.
type BarFeature struct {
	BarIndex        int
	NoteDensity     float64
	StringCrossings float64
	FretSpan        float64
	PositionShifts  float64
	TechniqueScore  float64
	RhythmScore     float64
	Techniques      map[string]struct{}
	IsEmpty         bool

	// Difficulty is derived later by ScoreDifficulty; 0 until then.
	Difficulty int
}

// Vector returns the six features in fixed order.
func (f BarFeature) Vector() []float64 {
	return []float64{
		f.NoteDensity,
		f.StringCrossings,
		f.FretSpan,
		f.PositionShifts,
		f.TechniqueScore,
		f.RhythmScore,
	}
}

// TechniqueList returns the sorted technique tags.
func (f BarFeature) TechniqueList() []string {
	out := make([]string, 0, len(f.Techniques))
	for t := range f.Techniques {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// techniqueWeight pairs a note-flag accessor with its tag and score weight.
type techniqueWeight struct {
	tag    string
	weight float64
	has    func(song.Note) bool
}

var techniqueWeights = []techniqueWeight{
	{"bend", 3, func(n song.Note) bool { return n.Bend }},
	{"harmonic", 2, func(n song.Note) bool { return n.Harmonic }},
	{"trill", 2.5, func(n song.Note) bool { return n.Trill }},
	{"slide-out", 1.5, func(n song.Note) bool { return n.SlideOut }},
	{"hammer-pull", 1, func(n song.Note) bool { return n.HammerPull }},
	{"slide-in", 1, func(n song.Note) bool { return n.SlideIn }},
	{"grace", 1, func(n song.Note) bool { return n.Grace }},
	{"vibrato", 0.5, func(n song.Note) bool { return n.Vibrato }},
	{"pick-stroke", 0.5, func(n song.Note) bool { return n.PickStroke }},
	{"dead-note", 0.5, func(n song.Note) bool { return n.Muted }},
	{"staccato", 0.3, func(n song.Note) bool { return n.Staccato }},
	{"palm-mute", 0.3, func(n song.Note) bool { return n.PalmMute }},
	{"let-ring", 0.2, func(n song.Note) bool { return n.LetRing }},
}

// tupletTechniqueWeight scores tuplet beats into techniqueScore; the tag
// rides along with the note techniques.
const tupletTechniqueWeight = 1.5

// ExtractBarFeatures computes the feature profile of one bar.
// A bar with no playable beats yields the all-zero IsEmpty record.
func ExtractBarFeatures(bar song.Bar, barIndex int) BarFeature {
	f := BarFeature{BarIndex: barIndex, Techniques: map[string]struct{}{}}

	beats := bar.PlayedBeats()
	if len(beats) == 0 {
		f.IsEmpty = true
		return f
	}

	notes := bar.PlayedNotes()

	f.NoteDensity = float64(len(notes)) / float64(bar.Numerator())
	f.StringCrossings = float64(countStringCrossings(notes))
	f.FretSpan = fretSpan(notes)
	f.PositionShifts = positionShifts(beats)
	f.TechniqueScore = techniqueScore(beats, notes, f.Techniques)
	f.RhythmScore = rhythmScore(beats)

	if hasSweep(notes) {
		f.Techniques["sweep"] = struct{}{}
	}
	return f
}

func countStringCrossings(notes []song.Note) int {
	crossings := 0
	for i := 1; i < len(notes); i++ {
		if notes[i].String != notes[i-1].String {
			crossings++
		}
	}
	return crossings
}

func fretSpan(notes []song.Note) float64 {
	minFret, maxFret := math.MaxInt, -1
	for _, n := range notes {
		if n.Muted || n.Fret < 0 {
			continue
		}
		if n.Fret < minFret {
			minFret = n.Fret
		}
		if n.Fret > maxFret {
			maxFret = n.Fret
		}
	}
	if maxFret < 0 {
		return 0
	}
	return float64(maxFret - minFret)
}

func positionShifts(beats []song.Beat) float64 {
	shifts := 0.0
	prev := math.NaN()
	for _, beat := range beats {
		avg, ok := averageFret(beat)
		if !ok {
			continue
		}
		if !math.IsNaN(prev) {
			if delta := math.Abs(avg - prev); delta >= positionShiftThreshold {
				shifts += delta
			}
		}
		prev = avg
	}
	return shifts
}

func averageFret(beat song.Beat) (float64, bool) {
	sum, count := 0.0, 0
	for _, n := range beat.Notes {
		if n.Muted || n.Fret < 0 {
			continue
		}
		sum += float64(n.Fret)
		count++
	}
	if count == 0 {
		return 0, false
	}
	return sum / float64(count), true
}

func techniqueScore(beats []song.Beat, notes []song.Note, tags map[string]struct{}) float64 {
	score := 0.0
	for _, n := range notes {
		for _, tw := range techniqueWeights {
			if tw.has(n) {
				score += tw.weight
				tags[tw.tag] = struct{}{}
			}
		}
	}
	for _, beat := range beats {
		if beat.Tuplet {
			score += tupletTechniqueWeight
			tags["tuplet"] = struct{}{}
		}
	}
	return score
}

func rhythmScore(beats []song.Beat) float64 {
	score := 0.0
	durations := map[int]struct{}{}
	for _, beat := range beats {
		score += 0.5 * float64(beat.Dots)
		if beat.Tuplet {
			score += 2
		}
		if beat.Duration >= 16 {
			score++
		}
		if beat.Duration >= 32 {
			score += 2
		}
		durations[beat.Duration] = struct{}{}
	}
	if len(durations) > 1 {
		score += 0.5 * float64(len(durations)-1)
	}
	return score
}

// hasSweep reports a run of at least 3 consecutive same-direction string
// crossings. Detection only; sweeps do not add to techniqueScore.
func hasSweep(notes []song.Note) bool {
	run, dir := 0, 0
	for i := 1; i < len(notes); i++ {
		d := sign(notes[i].String - notes[i-1].String)
		if d == 0 {
			run, dir = 0, 0
			continue
		}
		if d == dir {
			run++
		} else {
			run, dir = 1, d
		}
		if run >= 3 {
			return true
		}
	}
	return false
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
