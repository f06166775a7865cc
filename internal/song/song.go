// Package song defines the music data consumed by the analysis engine.
package song

import (
	"encoding/json"
	"fmt"
	"os"
)

// TicksPerQuarter is the tick resolution of the playback position space.
const TicksPerQuarter = 960

// Note is a single fretted (or open, or muted) note within a beat.
type Note struct {
	String int  `json:"string"`
	Fret   int  `json:"fret"`
	Muted  bool `json:"muted,omitempty"`

	Bend       bool `json:"bend,omitempty"`
	Harmonic   bool `json:"harmonic,omitempty"`
	Trill      bool `json:"trill,omitempty"`
	SlideOut   bool `json:"slideOut,omitempty"`
	SlideIn    bool `json:"slideIn,omitempty"`
	HammerPull bool `json:"hammerPull,omitempty"`
	Grace      bool `json:"grace,omitempty"`
	Vibrato    bool `json:"vibrato,omitempty"`
	PickStroke bool `json:"pickStroke,omitempty"`
	Staccato   bool `json:"staccato,omitempty"`
	PalmMute   bool `json:"palmMute,omitempty"`
	LetRing    bool `json:"letRing,omitempty"`
}

// Beat holds the notes struck together at one rhythmic position.
// Duration is the note-value denominator (4 = quarter, 16 = sixteenth, ...).
type Beat struct {
	Duration int    `json:"duration"`
	Dots     int    `json:"dots,omitempty"`
	Tuplet   bool   `json:"tuplet,omitempty"`
	Rest     bool   `json:"rest,omitempty"`
	Notes    []Note `json:"notes,omitempty"`
}

// Voice is one polyphonic line of a bar.
type Voice struct {
	Beats []Beat `json:"beats"`
}

// Bar is one measure. Marker carries an optional structural-section label
// ("Verse", "Chorus", ...) that starts at this bar.
type Bar struct {
	TimeSigNum int     `json:"timeSigNum"`
	Marker     string  `json:"marker,omitempty"`
	Voices     []Voice `json:"voices"`
}

// Song is the analysis input: ordered bars plus a base tempo.
type Song struct {
	Title string `json:"title"`
	Tempo int    `json:"tempo"`
	Bars  []Bar  `json:"bars"`
}

// Load reads a JSON score file. The format mirrors what the upstream
// tab parser emits; woodshed does not parse tab formats itself.
func Load(path string) (*Song, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read score: %w", err)
	}
	var s Song
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode score: %w", err)
	}
	if len(s.Bars) == 0 {
		return nil, fmt.Errorf("score %q has no bars", path)
	}
	if s.Tempo <= 0 {
		s.Tempo = 120
	}
	return &s, nil
}

// Numerator returns the bar's time-signature numerator, minimum 1.
func (b Bar) Numerator() int {
	if b.TimeSigNum < 1 {
		return 1
	}
	return b.TimeSigNum
}

// PlayedNotes returns the bar's notes in performance order: voices in
// order, beats left to right, notes low string to high within a beat.
func (b Bar) PlayedNotes() []Note {
	var notes []Note
	for _, v := range b.Voices {
		for _, beat := range v.Beats {
			if beat.Rest {
				continue
			}
			notes = append(notes, beat.Notes...)
		}
	}
	return notes
}

// PlayedBeats returns the bar's non-rest beats in performance order.
func (b Bar) PlayedBeats() []Beat {
	var beats []Beat
	for _, v := range b.Voices {
		for _, beat := range v.Beats {
			if beat.Rest {
				continue
			}
			beats = append(beats, beat)
		}
	}
	return beats
}

// TicksPerBar returns the tick length of one bar, assuming the numerator
// counts quarter-note beats. The playback engine shares this geometry.
func (b Bar) TicksPerBar() int {
	return b.Numerator() * TicksPerQuarter
}

// TickRange maps an inclusive bar-index range to a [start, end) tick range.
// Bars earlier in the song may have different numerators, so the offsets
// are accumulated from the start.
func (s *Song) TickRange(firstBar, lastBar int) (startTick, endTick int) {
	tick := 0
	for i, bar := range s.Bars {
		if i == firstBar {
			startTick = tick
		}
		tick += bar.TicksPerBar()
		if i == lastBar {
			return startTick, tick
		}
	}
	return startTick, tick
}

// MarkerAt returns the structural marker text in effect at the given bar:
// the nearest marker at or before it, or "" if none.
func (s *Song) MarkerAt(barIndex int) string {
	marker := ""
	for i := 0; i <= barIndex && i < len(s.Bars); i++ {
		if s.Bars[i].Marker != "" {
			marker = s.Bars[i].Marker
		}
	}
	return marker
}
