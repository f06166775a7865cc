package report

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/verte-zerg/woodshed/internal/analysis"
	"github.com/verte-zerg/woodshed/internal/mastery"
	"github.com/verte-zerg/woodshed/internal/runner"
	"github.com/verte-zerg/woodshed/internal/session"
)

const sparkChars = " .:-=+*#%@"

// Sparkline renders a single-line ASCII profile of the values, resampled
// to at most maxWidth columns (0 = no limit).
func Sparkline(values []float64, maxWidth int) string {
	if len(values) == 0 {
		return ""
	}
	if maxWidth > 0 && len(values) > maxWidth {
		values = resample(values, maxWidth)
	}
	minVal, maxVal := values[0], values[0]
	for _, v := range values[1:] {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	if math.Abs(maxVal-minVal) < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		pos := (v - minVal) / (maxVal - minVal)
		idx := int(math.Round(pos * float64(len(sparkChars)-1)))
		if idx < 0 {
			idx = 0
		}
		if idx >= len(sparkChars) {
			idx = len(sparkChars) - 1
		}
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

func resample(values []float64, width int) []float64 {
	out := make([]float64, width)
	for i := range out {
		lo := i * len(values) / width
		hi := (i + 1) * len(values) / width
		if hi <= lo {
			hi = lo + 1
		}
		sum := 0.0
		for _, v := range values[lo:hi] {
			sum += v
		}
		out[i] = sum / float64(hi-lo)
	}
	return out
}

// TerminalWidth returns the stdout terminal width, or fallback when
// stdout is not a terminal.
func TerminalWidth(fallback int) int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return fallback
	}
	return w
}

// RenderAnalysis prints the per-bar difficulty profile and the chunk table.
func RenderAnalysis(w io.Writer, title string, features []analysis.BarFeature, chunks []analysis.Chunk) error {
	if _, err := fmt.Fprintf(w, "%s\n\n", title); err != nil {
		return err
	}

	difficulties := make([]float64, len(features))
	for i, f := range features {
		difficulties[i] = float64(f.Difficulty)
	}
	if _, err := fmt.Fprintf(w, "Difficulty by bar\n%s\n\n", Sparkline(difficulties, TerminalWidth(80)-2)); err != nil {
		return err
	}

	headers := []string{"Chunk", "Bars", "Difficulty", "Label", "Techniques"}
	rows := make([][]string, 0, len(chunks))
	for _, c := range chunks {
		bars := fmt.Sprintf("%d", c.FirstBar)
		if c.LastBar != c.FirstBar {
			bars = fmt.Sprintf("%d–%d", c.FirstBar, c.LastBar)
		}
		rows = append(rows, []string{
			c.ID,
			bars,
			fmt.Sprintf("%d", c.Difficulty),
			c.Label,
			strings.Join(c.Techniques, ", "),
		})
	}
	return writeLines(w, formatTable(headers, rows, map[int]bool{2: true}))
}

// RenderMastery prints each chunk's ladder position and due date.
func RenderMastery(w io.Writer, chunks []analysis.Chunk, states map[string]mastery.State, now time.Time) error {
	headers := []string{"Chunk", "Label", "Level", "Tempo", "Last practiced", "Next review"}
	rows := make([][]string, 0, len(chunks))
	for _, c := range chunks {
		st, ok := states[c.ID]
		if !ok {
			st = mastery.NewState(c.ID)
		}
		rows = append(rows, []string{
			c.ID,
			c.Label,
			fmt.Sprintf("%d %s", st.Level, mastery.LevelName(st.Level)),
			fmt.Sprintf("%d%%", int(mastery.TempoPct(st.Level)*100)),
			formatWhen(st.LastPracticed),
			formatDue(st, now),
		})
	}
	return writeLines(w, formatTable(headers, rows, nil))
}

// RenderPlan prints a built session as a phase-grouped item table.
func RenderPlan(w io.Writer, s session.Session) error {
	if _, err := fmt.Fprintf(w, "Session %d · %d min  (isolation %dm · context %dm · interleaving %dm · run-through %dm)\n\n",
		s.Number, s.TotalMinutes,
		s.PhaseTime.Isolation, s.PhaseTime.Context, s.PhaseTime.Interleaving, s.PhaseTime.Runthrough); err != nil {
		return err
	}
	headers := []string{"Phase", "Item", "Bars", "BPM", "Reps", "Rated"}
	rows := make([][]string, 0, len(s.Items))
	for _, item := range s.Items {
		reps := fmt.Sprintf("%d", item.Reps)
		if item.Reps == 0 {
			reps = "∞"
		}
		rated := ""
		if item.NeedsRating {
			rated = "yes"
		}
		rows = append(rows, []string{
			string(item.Phase),
			item.Label,
			fmt.Sprintf("%d–%d", item.FirstBar, item.LastBar),
			fmt.Sprintf("%d", item.BPM),
			reps,
			rated,
		})
	}
	return writeLines(w, formatTable(headers, rows, map[int]bool{3: true, 4: true}))
}

// RenderSummary prints the end-of-session aggregate.
func RenderSummary(w io.Writer, sum runner.Summary) error {
	if _, err := fmt.Fprintf(w, "Session complete: %d items, %d rated, %.1f min\n", sum.Items, sum.Rated, sum.ElapsedMinutes); err != nil {
		return err
	}
	if sum.Rated > 0 {
		if _, err := fmt.Fprintf(w, "Average rating: %.1f\n", sum.AverageRating); err != nil {
			return err
		}
	}
	if len(sum.CleanLabels) > 0 {
		if _, err := fmt.Fprintf(w, "Clean: %s\n", strings.Join(sum.CleanLabels, ", ")); err != nil {
			return err
		}
	}
	if len(sum.StruggleLabels) > 0 {
		if _, err := fmt.Fprintf(w, "Needs work: %s\n", strings.Join(sum.StruggleLabels, ", ")); err != nil {
			return err
		}
	}
	return nil
}

func writeLines(w io.Writer, lines []string) error {
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func formatWhen(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Format("2006-01-02")
}

func formatDue(st mastery.State, now time.Time) string {
	if st.NextReview == nil {
		return "-"
	}
	if st.Due(now) {
		return "due"
	}
	return st.NextReview.Format("2006-01-02")
}
