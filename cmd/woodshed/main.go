// Package main provides the CLI entrypoint for woodshed.
package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/woodshed/internal/analysis"
	"github.com/verte-zerg/woodshed/internal/config"
	"github.com/verte-zerg/woodshed/internal/mastery"
	"github.com/verte-zerg/woodshed/internal/report"
	"github.com/verte-zerg/woodshed/internal/runner"
	"github.com/verte-zerg/woodshed/internal/session"
	"github.com/verte-zerg/woodshed/internal/song"
	"github.com/verte-zerg/woodshed/internal/store"
	"github.com/verte-zerg/woodshed/internal/tui"
)

const (
	defaultMinutes      = 30
	defaultRestSec      = 10
	defaultInterstitial = 5
)

var (
	practiceMinutes      int
	practiceRestSec      int
	practiceInterstitial int
	practiceRamp         bool
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "woodshed <score.json>",
		Short:         "Adaptive practice scheduler for stringed instruments",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runPracticeCmd,
	}

	rootCmd.Flags().IntVar(&practiceMinutes, "minutes", defaultMinutes, "total session minutes")
	rootCmd.Flags().IntVar(&practiceRestSec, "rest", defaultRestSec, "rest seconds between items")
	rootCmd.Flags().IntVar(&practiceInterstitial, "interstitial", defaultInterstitial, "pause seconds between phases")
	rootCmd.Flags().BoolVar(&practiceRamp, "ramp", true, "increase tempo 5% per clean rep")

	rootCmd.AddCommand(newAnalyzeCmd())
	rootCmd.AddCommand(newPlanCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newResetCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

func runPracticeCmd(cmd *cobra.Command, args []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyIntConfig(cmd, "minutes", &practiceMinutes, fileCfg.Practice.Minutes)
	applyIntConfig(cmd, "rest", &practiceRestSec, fileCfg.Practice.RestSeconds)
	applyIntConfig(cmd, "interstitial", &practiceInterstitial, fileCfg.Practice.InterstitialSeconds)
	applyBoolConfig(cmd, "ramp", &practiceRamp, fileCfg.Practice.TempoRamp)

	if practiceMinutes <= 0 {
		return fmt.Errorf("--minutes must be > 0")
	}

	sng, err := song.Load(args[0])
	if err != nil {
		return err
	}
	key := songKey(sng, args[0])

	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	ctx := context.Background()
	_, chunks := analysis.AnalyzeSong(sng)
	if len(chunks) == 0 {
		logErrln("score has no playable bars; nothing to practice")
		return nil
	}
	if err := st.Reconcile(ctx, key, chunks); err != nil {
		return fmt.Errorf("failed to reconcile chunk state: %w", err)
	}
	states, err := st.LoadStates(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to load mastery state: %w", err)
	}
	count, err := st.SessionCount(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to load session count: %w", err)
	}

	builder := session.Builder{
		BaseTempo: sng.Tempo,
		TotalBars: len(sng.Bars),
		RampReps:  practiceRamp,
	}
	sess := builder.Build(count+1, chunks, states, practiceMinutes)
	if len(sess.Items) == 0 {
		logErrln("nothing due to practice")
		return nil
	}

	chunkByID := map[string]analysis.Chunk{}
	for _, c := range chunks {
		chunkByID[c.ID] = c
	}
	onOutcome := func(o runner.Outcome) {
		if o.ChunkID == "" {
			return
		}
		chunk, ok := chunkByID[o.ChunkID]
		if !ok {
			return
		}
		now := time.Now()
		prev := states[o.ChunkID]
		if prev.ChunkID == "" {
			prev = mastery.NewState(o.ChunkID)
		}
		next := prev.Apply(o.Rating, sng.Tempo, now)
		states[o.ChunkID] = next
		newEntries := next.History[len(prev.History):]
		if err := st.SaveState(ctx, key, chunk, next, newEntries); err != nil {
			logErrf("failed to save mastery state: %v\n", err)
		}
	}

	model := tui.NewModel(sng, sess,
		time.Duration(practiceRestSec)*time.Second,
		time.Duration(practiceInterstitial)*time.Second,
		onOutcome)
	program := tea.NewProgram(model, tea.WithAltScreen())
	finalModel, err := program.Run()
	if err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	final, ok := finalModel.(*tui.Model)
	if !ok {
		return nil
	}

	if sum := final.Summary(); final.Completed() || sum.Rated > 0 {
		if err := report.RenderSummary(cmd.OutOrStdout(), sum); err != nil {
			return err
		}
	}
	// Abandoned sessions keep their ratings but do not advance the
	// session counter.
	if !final.Completed() {
		return nil
	}
	if _, err := st.RecordSession(ctx, key, time.Now()); err != nil {
		return fmt.Errorf("failed to record session: %w", err)
	}
	return nil
}

func newAnalyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <score.json>",
		Short: "Show per-bar difficulty and practice chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sng, err := song.Load(args[0])
			if err != nil {
				return err
			}
			features, chunks := analysis.AnalyzeSong(sng)
			return report.RenderAnalysis(cmd.OutOrStdout(), sng.Title, features, chunks)
		},
	}
}

func newPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan <score.json>",
		Short: "Print the next session plan without running it",
		Args:  cobra.ExactArgs(1),
		RunE:  runPlanCmd,
	}
	cmd.Flags().IntVar(&practiceMinutes, "minutes", defaultMinutes, "total session minutes")
	return cmd
}

func runPlanCmd(cmd *cobra.Command, args []string) error {
	sng, err := song.Load(args[0])
	if err != nil {
		return err
	}
	key := songKey(sng, args[0])

	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	ctx := context.Background()
	_, chunks := analysis.AnalyzeSong(sng)
	if err := st.Reconcile(ctx, key, chunks); err != nil {
		return fmt.Errorf("failed to reconcile chunk state: %w", err)
	}
	states, err := st.LoadStates(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to load mastery state: %w", err)
	}
	count, err := st.SessionCount(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to load session count: %w", err)
	}

	builder := session.Builder{BaseTempo: sng.Tempo, TotalBars: len(sng.Bars)}
	sess := builder.Build(count+1, chunks, states, practiceMinutes)
	return report.RenderPlan(cmd.OutOrStdout(), sess)
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <score.json>",
		Short: "Show per-chunk mastery",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sng, err := song.Load(args[0])
			if err != nil {
				return err
			}
			key := songKey(sng, args[0])

			st, err := store.Open(config.DefaultDBPath())
			if err != nil {
				return fmt.Errorf("failed to open db: %w", err)
			}
			defer func() {
				if cerr := st.Close(); cerr != nil {
					logErrf("failed to close db: %v\n", cerr)
				}
			}()

			ctx := context.Background()
			_, chunks := analysis.AnalyzeSong(sng)
			if err := st.Reconcile(ctx, key, chunks); err != nil {
				return fmt.Errorf("failed to reconcile chunk state: %w", err)
			}
			states, err := st.LoadStates(ctx, key)
			if err != nil {
				return fmt.Errorf("failed to load mastery state: %w", err)
			}
			return report.RenderMastery(cmd.OutOrStdout(), chunks, states, time.Now())
		},
	}
}

func newResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset <score.json>",
		Short: "Delete all mastery state for a score",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sng, err := song.Load(args[0])
			if err != nil {
				return err
			}
			key := songKey(sng, args[0])

			st, err := store.Open(config.DefaultDBPath())
			if err != nil {
				return fmt.Errorf("failed to open db: %w", err)
			}
			defer func() {
				if cerr := st.Close(); cerr != nil {
					logErrf("failed to close db: %v\n", cerr)
				}
			}()
			if err := st.Reset(context.Background(), key); err != nil {
				return fmt.Errorf("failed to reset: %w", err)
			}
			logErrf("cleared mastery state for %q\n", key)
			return nil
		},
	}
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# woodshed configuration
# Uncomment a value to enable it. CLI flags override config values.

[practice]
# minutes = %d              # Total session minutes
# rest-seconds = %d         # Rest between items in the same phase
# interstitial-seconds = %d # Pause between phases
# tempo-ramp = true          # Increase tempo 5%% per completed rep
`,
		defaultMinutes,
		defaultRestSec,
		defaultInterstitial,
	)
}

func songKey(sng *song.Song, path string) string {
	if sng.Title != "" {
		return sng.Title
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
