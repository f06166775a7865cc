package tui

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/woodshed/internal/runner"
	"github.com/verte-zerg/woodshed/internal/session"
	"github.com/verte-zerg/woodshed/internal/song"
)

func testSong() *song.Song {
	bar := song.Bar{TimeSigNum: 4, Voices: []song.Voice{{Beats: []song.Beat{
		{Duration: 4, Notes: []song.Note{{String: 6, Fret: 5}}},
	}}}}
	return &song.Song{Title: "test", Tempo: 120, Bars: []song.Bar{bar, bar}}
}

func testSession() session.Session {
	return session.Session{
		Number:       1,
		TotalMinutes: 30,
		Items: []session.Item{{
			Phase: session.PhaseIsolation, Type: session.ItemChunk,
			ChunkID: "chunk-0", FirstBar: 1, LastBar: 2, Label: "Bars 1–2",
			BPM: 48, TempoPct: 0.40, Reps: 1, NeedsRating: true,
		}},
	}
}

func keyMsg(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// clockStep feeds the model a tick message the given duration after the
// previous one, driving the simulated playback deterministically.
func clockStep(m *Model, d time.Duration) {
	m.Update(tickMsg(m.lastClock.Add(d)))
}

func TestCompletedSessionCapturesSummary(t *testing.T) {
	m := NewModel(testSong(), testSession(), time.Second, time.Second, nil)
	m.Init()

	// Out past the arming distance, then back through the loop start to
	// finish the single rep. One loop pass is two 4/4 bars, ten seconds
	// at the item's 40% tempo.
	clockStep(m, 1*time.Second)
	clockStep(m, 9500*time.Millisecond)
	if st := m.run.Snapshot().Status; st != runner.AwaitingRating {
		t.Fatalf("status = %v, want awaiting-rating", st)
	}

	m.Update(keyMsg("5"))
	if st := m.run.Snapshot().Status; st != runner.SessionComplete {
		t.Fatalf("status = %v, want complete", st)
	}

	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if !m.Completed() {
		t.Error("session not marked completed")
	}
	sum := m.Summary()
	if sum.Rated != 1 || len(sum.CleanLabels) != 1 {
		t.Errorf("summary = %+v, want one clean rated item", sum)
	}
}

func TestQuitMidSessionIsNotCompleted(t *testing.T) {
	m := NewModel(testSong(), testSession(), time.Second, time.Second, nil)
	m.Init()

	m.Update(keyMsg("q"))
	if m.Completed() {
		t.Error("aborted session marked completed")
	}
	if m.Summary().Rated != 0 {
		t.Errorf("summary = %+v, want nothing rated", m.Summary())
	}
	if st := m.run.Snapshot().Status; st != runner.Idle {
		t.Errorf("status after quit = %v, want idle", st)
	}
}

func TestRatingKeysIgnoredWhilePlaying(t *testing.T) {
	m := NewModel(testSong(), testSession(), time.Second, time.Second, nil)
	m.Init()

	m.Update(keyMsg("5"))
	if st := m.run.Snapshot().Status; st != runner.Playing {
		t.Errorf("status = %v, want playing", st)
	}
	if got := len(m.run.Snapshot().Results); got != 0 {
		t.Errorf("results = %d, want 0", got)
	}
}
