// Package tui provides the Bubble Tea practice interface.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/woodshed/internal/mastery"
	"github.com/verte-zerg/woodshed/internal/playback"
	"github.com/verte-zerg/woodshed/internal/runner"
	"github.com/verte-zerg/woodshed/internal/session"
	"github.com/verte-zerg/woodshed/internal/song"
)

// clockTick is the playback simulation step.
const clockTick = 50 * time.Millisecond

var (
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	phaseStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	ratingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	footerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	summaryStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
)

type tickMsg time.Time

// Model implements the Bubble Tea practice UI around a session runner.
type Model struct {
	sess  session.Session
	sng   *song.Song
	run   *runner.Runner
	sim   *playback.Sim
	guard *playback.Guard

	width  int
	height int

	lastClock time.Time
	phaseAt   time.Time
	lastState runner.Status

	// Captured before the runner is reset on exit, for the CLI to print.
	done    bool
	summary runner.Summary

	restBar progress.Model

	restDelay         time.Duration
	interstitialDelay time.Duration
}

// NewModel wires the simulated playback engine, the stop guard, and the
// runner together. onOutcome receives rated outcomes for persistence;
// it must not call back into the runner.
func NewModel(sng *song.Song, sess session.Session, restDelay, interstitialDelay time.Duration, onOutcome func(runner.Outcome)) *Model {
	m := &Model{
		sess:              sess,
		sng:               sng,
		restBar:           progress.New(progress.WithDefaultGradient()),
		restDelay:         restDelay,
		interstitialDelay: interstitialDelay,
	}

	// The sim's callbacks feed the runner through the guard, which
	// dedupes stop notifications. The closures resolve m's fields at
	// call time, so construction order does not matter.
	m.sim = playback.NewSim(sng.Tempo,
		func(tick int) { m.run.HandlePosition(tick) },
		func() { m.guard.NotifyStopped() },
	)
	m.guard = playback.NewGuard(m.sim, func() { m.run.HandleStopped() })
	m.run = runner.New(runner.Config{
		Playback:          m.guard,
		BaseTempo:         sng.Tempo,
		RestDelay:         restDelay,
		InterstitialDelay: interstitialDelay,
		OnOutcome:         onOutcome,
		TickRange: func(firstBar, lastBar int) (int, int) {
			return sng.TickRange(firstBar-1, lastBar-1)
		},
	})
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	m.lastClock = time.Now()
	m.phaseAt = m.lastClock
	m.run.Start(m.sess.Items, m.lastClock)
	m.lastState = runner.Playing
	return tea.Tick(clockTick, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.restBar.Width = min(40, max(10, m.width-20))
		return m, nil
	case tickMsg:
		now := time.Time(msg)
		dt := now.Sub(m.lastClock)
		m.lastClock = now
		m.sim.Advance(dt.Seconds())
		m.trackState()
		return m, tea.Tick(clockTick, func(t time.Time) tea.Msg { return tickMsg(t) })
	case tea.KeyMsg:
		return m.handleKey(msg)
	default:
		return m, nil
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	snap := m.run.Snapshot()
	switch msg.String() {
	case "ctrl+c", "q":
		m.summary = m.run.Summarize(m.lastClock)
		m.run.Stop()
		return m, tea.Quit
	case "1", "3", "5":
		if snap.Status == runner.AwaitingRating {
			m.run.HandleRating(keyRating(msg.String()))
		}
		return m, nil
	case " ":
		switch snap.Status {
		case runner.Rest:
			m.run.SkipRest()
		case runner.PhaseInterstitial:
			m.run.ContinuePhase()
		case runner.Playing:
			if snap.Item != nil && snap.Item.Reps == 0 {
				// Run-through: a manual stop is the only way to finish.
				m.sim.Stop()
			}
		}
		return m, nil
	case "enter":
		if snap.Status == runner.SessionComplete {
			m.done = true
			m.summary = m.run.Summarize(m.lastClock)
			m.run.Dismiss()
			return m, tea.Quit
		}
		return m, nil
	default:
		return m, nil
	}
}

func keyRating(key string) mastery.Rating {
	switch key {
	case "1":
		return mastery.Struggled
	case "5":
		return mastery.Clean
	default:
		return mastery.Okay
	}
}

// Completed reports whether the session ran to its natural end rather
// than being quit partway.
func (m *Model) Completed() bool {
	return m.done
}

// Summary returns the session aggregate captured when the UI closed.
func (m *Model) Summary() runner.Summary {
	return m.summary
}

// trackState records when the runner last changed state, which drives
// the rest/interstitial countdown bars.
func (m *Model) trackState() {
	status := m.run.Snapshot().Status
	if status != m.lastState {
		m.lastState = status
		m.phaseAt = m.lastClock
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	snap := m.run.Snapshot()
	var b strings.Builder

	b.WriteString(titleStyle.Render(m.sng.Title))
	b.WriteString("\n\n")

	switch snap.Status {
	case runner.Playing, runner.AwaitingRating, runner.Rest, runner.PhaseInterstitial:
		m.renderItem(&b, snap)
	case runner.SessionComplete:
		m.renderSummary(&b)
	default:
		b.WriteString(dimStyle.Render("idle"))
	}

	b.WriteString("\n\n")
	b.WriteString(footerStyle.Render(m.footer(snap)))

	if m.width > 0 && m.height > 0 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, b.String())
	}
	return b.String()
}

func (m *Model) renderItem(b *strings.Builder, snap runner.Snapshot) {
	item := snap.Item
	if item == nil {
		return
	}
	fmt.Fprintf(b, "%s  %s\n",
		phaseStyle.Render(strings.ToUpper(string(item.Phase))),
		dimStyle.Render(fmt.Sprintf("item %d/%d", snap.ItemIndex+1, snap.ItemCount)))
	fmt.Fprintf(b, "%s  %s\n",
		labelStyle.Render(item.Label),
		dimStyle.Render(fmt.Sprintf("bars %d–%d", item.FirstBar, item.LastBar)))

	switch snap.Status {
	case runner.Playing:
		reps := fmt.Sprintf("rep %d", snap.RepsDone+1)
		if item.Reps > 0 {
			reps = fmt.Sprintf("rep %d/%d", snap.RepsDone+1, item.Reps)
		}
		fmt.Fprintf(b, "\n%d BPM  ·  %s", snap.LiveBPM, reps)
	case runner.AwaitingRating:
		b.WriteString("\n" + ratingStyle.Render("How did it go?  [1] struggled  [3] okay  [5] clean"))
	case runner.Rest:
		b.WriteString("\nrest  ·  space to skip\n")
		b.WriteString(m.restBar.ViewAs(m.countdown(m.restDelay)))
	case runner.PhaseInterstitial:
		fmt.Fprintf(b, "\n%s\n", phaseStyle.Render("next phase: "+string(item.Phase)))
		b.WriteString(m.restBar.ViewAs(m.countdown(m.interstitialDelay)))
	}
}

func (m *Model) countdown(total time.Duration) float64 {
	if total <= 0 {
		return 1
	}
	frac := float64(m.lastClock.Sub(m.phaseAt)) / float64(total)
	if frac > 1 {
		return 1
	}
	return frac
}

func (m *Model) renderSummary(b *strings.Builder) {
	sum := m.run.Summarize(m.lastClock)
	b.WriteString(summaryStyle.Render(fmt.Sprintf(
		"Session complete · %d items · %d rated · %.1f min", sum.Items, sum.Rated, sum.ElapsedMinutes)))
	if sum.Rated > 0 {
		b.WriteString(summaryStyle.Render(fmt.Sprintf("\nAverage rating %.1f", sum.AverageRating)))
	}
	if len(sum.CleanLabels) > 0 {
		b.WriteString("\n" + dimStyle.Render("Clean: "+strings.Join(sum.CleanLabels, ", ")))
	}
	if len(sum.StruggleLabels) > 0 {
		b.WriteString("\n" + dimStyle.Render("Needs work: "+strings.Join(sum.StruggleLabels, ", ")))
	}
	b.WriteString("\n\n" + footerStyle.Render("enter to finish"))
}

func (m *Model) footer(snap runner.Snapshot) string {
	parts := []string{"q quit"}
	if snap.Status == runner.Playing && snap.Item != nil && snap.Item.Reps == 0 {
		parts = append(parts, "space stop")
	}
	return strings.Join(parts, "  ·  ")
}
