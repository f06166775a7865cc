package report

import (
	"strings"
	"testing"
	"time"

	"github.com/verte-zerg/woodshed/internal/analysis"
	"github.com/verte-zerg/woodshed/internal/mastery"
	"github.com/verte-zerg/woodshed/internal/runner"
	"github.com/verte-zerg/woodshed/internal/session"
)

func TestFormatTable(t *testing.T) {
	lines := formatTable(
		[]string{"Chunk", "Difficulty"},
		[][]string{
			{"chunk-0", "82"},
			{"chunk-10", "7"},
		},
		map[int]bool{1: true},
	)
	want := []string{
		"Chunk     Difficulty",
		"chunk-0           82",
		"chunk-10           7",
	}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d: %q", len(lines), len(want), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestFormatTableTrimsTrailingSpace(t *testing.T) {
	lines := formatTable([]string{"A", "B"}, [][]string{{"long-cell", ""}}, nil)
	for _, line := range lines {
		if strings.HasSuffix(line, " ") {
			t.Errorf("line has trailing spaces: %q", line)
		}
	}
}

func TestFormatTableEmpty(t *testing.T) {
	if lines := formatTable(nil, nil, nil); lines != nil {
		t.Errorf("empty table = %q, want nil", lines)
	}
}

func TestSparkline(t *testing.T) {
	got := Sparkline([]float64{0, 50, 100}, 0)
	if len(got) != 3 {
		t.Fatalf("sparkline %q has %d chars, want 3", got, len(got))
	}
	if got[0] != ' ' || got[2] != '@' {
		t.Errorf("sparkline = %q, want lowest blank and highest @", got)
	}
}

func TestSparklineFlat(t *testing.T) {
	got := Sparkline([]float64{5, 5, 5, 5}, 0)
	if len(got) != 4 {
		t.Fatalf("sparkline = %q, want 4 chars", got)
	}
	for i := 1; i < len(got); i++ {
		if got[i] != got[0] {
			t.Errorf("flat input should render uniformly: %q", got)
		}
	}
}

func TestSparklineResamples(t *testing.T) {
	values := make([]float64, 100)
	for i := range values {
		values[i] = float64(i)
	}
	got := Sparkline(values, 10)
	if len(got) != 10 {
		t.Errorf("resampled sparkline %q has %d chars, want 10", got, len(got))
	}
}

func TestSparklineEmpty(t *testing.T) {
	if got := Sparkline(nil, 10); got != "" {
		t.Errorf("sparkline of no values = %q, want empty", got)
	}
}

func TestRenderPlan(t *testing.T) {
	s := session.Session{
		Number:       3,
		TotalMinutes: 30,
		PhaseTime:    session.PhaseTime{Isolation: 12, Context: 9, Interleaving: 6, Runthrough: 3},
		Items: []session.Item{
			{
				Phase: session.PhaseIsolation, Label: "Bars 1–4",
				FirstBar: 1, LastBar: 4, BPM: 48, Reps: 5, NeedsRating: true,
			},
			{
				Phase: session.PhaseRunthrough, Label: "Full run-through",
				FirstBar: 1, LastBar: 32, BPM: 72, Reps: 0, NeedsRating: true,
			},
		},
	}
	var b strings.Builder
	if err := RenderPlan(&b, s); err != nil {
		t.Fatalf("failed to render plan: %v", err)
	}
	out := b.String()
	for _, want := range []string{"Session 3", "isolation 12m", "Bars 1–4", "∞", "Full run-through"} {
		if !strings.Contains(out, want) {
			t.Errorf("plan output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderSummary(t *testing.T) {
	sum := runner.Summary{
		Items:          8,
		Rated:          5,
		ElapsedMinutes: 21.4,
		AverageRating:  3.4,
		CleanLabels:    []string{"Intro"},
		StruggleLabels: []string{"Solo"},
	}
	var b strings.Builder
	if err := RenderSummary(&b, sum); err != nil {
		t.Fatalf("failed to render summary: %v", err)
	}
	out := b.String()
	for _, want := range []string{"8 items", "5 rated", "21.4 min", "Average rating: 3.4", "Clean: Intro", "Needs work: Solo"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderSummaryUnrated(t *testing.T) {
	var b strings.Builder
	if err := RenderSummary(&b, runner.Summary{Items: 3}); err != nil {
		t.Fatalf("failed to render summary: %v", err)
	}
	if strings.Contains(b.String(), "Average") {
		t.Errorf("unrated summary should omit the average:\n%s", b.String())
	}
}

func TestRenderMastery(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	past := now.Add(-24 * time.Hour)
	chunks := []analysis.Chunk{
		{ID: "chunk-0", FirstBar: 1, LastBar: 4, Label: "Intro"},
		{ID: "chunk-1", FirstBar: 5, LastBar: 8, Label: "Verse"},
	}
	states := map[string]mastery.State{
		"chunk-0": {ChunkID: "chunk-0", Level: 2, NextReview: &past},
	}
	var b strings.Builder
	if err := RenderMastery(&b, chunks, states, now); err != nil {
		t.Fatalf("failed to render mastery: %v", err)
	}
	out := b.String()
	for _, want := range []string{"Developing", "due", "New", "never"} {
		if !strings.Contains(out, want) {
			t.Errorf("mastery output missing %q:\n%s", want, out)
		}
	}
}
