package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/verte-zerg/woodshed/internal/analysis"
	"github.com/verte-zerg/woodshed/internal/mastery"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("failed to close store: %v", err)
		}
	})
	return s
}

func testChunk(id string, firstBar, lastBar int) analysis.Chunk {
	return analysis.Chunk{ID: id, FirstBar: firstBar, LastBar: lastBar, Label: id}
}

func TestSaveAndLoadState(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	chunk := testChunk("chunk-0", 1, 4)
	st := mastery.NewState("chunk-0").Apply(mastery.Clean, 120, now)
	if err := s.SaveState(ctx, "song-a", chunk, st, st.History); err != nil {
		t.Fatalf("failed to save state: %v", err)
	}

	states, err := s.LoadStates(ctx, "song-a")
	if err != nil {
		t.Fatalf("failed to load states: %v", err)
	}
	got, ok := states["chunk-0"]
	if !ok {
		t.Fatalf("chunk-0 missing from loaded states: %v", states)
	}
	if got.Level != 1 {
		t.Errorf("level = %d, want 1", got.Level)
	}
	if got.LastPracticed == nil || !got.LastPracticed.Equal(now) {
		t.Errorf("last practiced = %v, want %v", got.LastPracticed, now)
	}
	if got.NextReview == nil || !got.NextReview.Equal(now.Add(24*time.Hour)) {
		t.Errorf("next review = %v, want %v", got.NextReview, now.Add(24*time.Hour))
	}
	if len(got.History) != 1 || got.History[0].Rating != mastery.Clean || got.History[0].Tempo != 48 {
		t.Errorf("history = %+v", got.History)
	}
}

func TestSaveStateUpsertsAndAppendsHistory(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	chunk := testChunk("chunk-0", 1, 4)

	st := mastery.NewState("chunk-0").Apply(mastery.Okay, 120, now)
	if err := s.SaveState(ctx, "song-a", chunk, st, st.History); err != nil {
		t.Fatalf("failed to save state: %v", err)
	}
	next := st.Apply(mastery.Clean, 120, now.Add(24*time.Hour))
	newEntries := next.History[len(st.History):]
	if err := s.SaveState(ctx, "song-a", chunk, next, newEntries); err != nil {
		t.Fatalf("failed to save updated state: %v", err)
	}

	states, err := s.LoadStates(ctx, "song-a")
	if err != nil {
		t.Fatalf("failed to load states: %v", err)
	}
	got := states["chunk-0"]
	if got.Level != 1 {
		t.Errorf("level = %d, want 1", got.Level)
	}
	if len(got.History) != 2 {
		t.Fatalf("history length = %d, want 2", len(got.History))
	}
	if got.History[0].Rating != mastery.Okay || got.History[1].Rating != mastery.Clean {
		t.Errorf("history order wrong: %+v", got.History)
	}
}

func TestLoadStatesIsolatesSongs(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	st := mastery.NewState("chunk-0").Apply(mastery.Clean, 120, now)
	if err := s.SaveState(ctx, "song-a", testChunk("chunk-0", 1, 4), st, nil); err != nil {
		t.Fatalf("failed to save state: %v", err)
	}

	states, err := s.LoadStates(ctx, "song-b")
	if err != nil {
		t.Fatalf("failed to load states: %v", err)
	}
	if len(states) != 0 {
		t.Errorf("song-b sees song-a state: %v", states)
	}
}

func TestSessionCounter(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	count, err := s.SessionCount(ctx, "song-a")
	if err != nil {
		t.Fatalf("failed to read session count: %v", err)
	}
	if count != 0 {
		t.Errorf("fresh count = %d, want 0", count)
	}

	for i := 1; i <= 3; i++ {
		got, err := s.RecordSession(ctx, "song-a", time.Now())
		if err != nil {
			t.Fatalf("failed to record session: %v", err)
		}
		if got != i {
			t.Errorf("recorded count = %d, want %d", got, i)
		}
	}
	count, err = s.SessionCount(ctx, "song-a")
	if err != nil {
		t.Fatalf("failed to read session count: %v", err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}
}

func TestReset(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	st := mastery.NewState("chunk-0").Apply(mastery.Clean, 120, now)
	if err := s.SaveState(ctx, "song-a", testChunk("chunk-0", 1, 4), st, st.History); err != nil {
		t.Fatalf("failed to save state: %v", err)
	}
	if _, err := s.RecordSession(ctx, "song-a", now); err != nil {
		t.Fatalf("failed to record session: %v", err)
	}

	if err := s.Reset(ctx, "song-a"); err != nil {
		t.Fatalf("failed to reset: %v", err)
	}
	states, err := s.LoadStates(ctx, "song-a")
	if err != nil {
		t.Fatalf("failed to load states: %v", err)
	}
	if len(states) != 0 {
		t.Errorf("states survived reset: %v", states)
	}
	count, err := s.SessionCount(ctx, "song-a")
	if err != nil {
		t.Fatalf("failed to read session count: %v", err)
	}
	if count != 0 {
		t.Errorf("session count survived reset: %d", count)
	}
}

func TestReconcileRemapsShiftedChunks(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	// Persist two chunks whose positional ids end up swapped after the
	// score is edited.
	stA := mastery.State{ChunkID: "chunk-0", Level: 3}
	stA = stA.Apply(mastery.Clean, 120, now)
	if err := s.SaveState(ctx, "song-a", testChunk("chunk-0", 5, 8), stA, stA.History); err != nil {
		t.Fatalf("failed to save chunk-0: %v", err)
	}
	stB := mastery.State{ChunkID: "chunk-1", Level: 1}
	stB = stB.Apply(mastery.Okay, 120, now)
	if err := s.SaveState(ctx, "song-a", testChunk("chunk-1", 1, 4), stB, stB.History); err != nil {
		t.Fatalf("failed to save chunk-1: %v", err)
	}

	fresh := []analysis.Chunk{
		testChunk("chunk-0", 1, 4),
		testChunk("chunk-1", 5, 8),
	}
	if err := s.Reconcile(ctx, "song-a", fresh); err != nil {
		t.Fatalf("failed to reconcile: %v", err)
	}

	states, err := s.LoadStates(ctx, "song-a")
	if err != nil {
		t.Fatalf("failed to load states: %v", err)
	}
	if states["chunk-1"].Level != 4 {
		t.Errorf("bars 5-8 state not remapped to chunk-1: %+v", states)
	}
	if states["chunk-0"].Level != 1 {
		t.Errorf("bars 1-4 state not remapped to chunk-0: %+v", states)
	}
	if len(states["chunk-1"].History) != 1 || states["chunk-1"].History[0].Rating != mastery.Clean {
		t.Errorf("history did not follow the remap: %+v", states["chunk-1"].History)
	}
}

func TestReconcileOrphansUnmatchedRows(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	st := mastery.State{ChunkID: "chunk-0", Level: 2}
	st = st.Apply(mastery.Clean, 120, now)
	if err := s.SaveState(ctx, "song-a", testChunk("chunk-0", 20, 24), st, st.History); err != nil {
		t.Fatalf("failed to save state: %v", err)
	}

	fresh := []analysis.Chunk{testChunk("chunk-0", 1, 4)}
	if err := s.Reconcile(ctx, "song-a", fresh); err != nil {
		t.Fatalf("failed to reconcile: %v", err)
	}

	states, err := s.LoadStates(ctx, "song-a")
	if err != nil {
		t.Fatalf("failed to load states: %v", err)
	}
	if _, ok := states["chunk-0"]; ok {
		t.Error("unrelated old row still occupies chunk-0")
	}
	orphan, ok := states["orphan:chunk-0"]
	if !ok {
		t.Fatalf("orphaned row missing: %v", states)
	}
	if orphan.Level != 3 || len(orphan.History) != 1 {
		t.Errorf("orphan state lost data: %+v", orphan)
	}
}

func TestReconcileNoopWhenAligned(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	st := mastery.NewState("chunk-0").Apply(mastery.Okay, 120, now)
	if err := s.SaveState(ctx, "song-a", testChunk("chunk-0", 1, 4), st, st.History); err != nil {
		t.Fatalf("failed to save state: %v", err)
	}

	fresh := []analysis.Chunk{testChunk("chunk-0", 1, 4)}
	if err := s.Reconcile(ctx, "song-a", fresh); err != nil {
		t.Fatalf("failed to reconcile: %v", err)
	}
	states, err := s.LoadStates(ctx, "song-a")
	if err != nil {
		t.Fatalf("failed to load states: %v", err)
	}
	if _, ok := states["chunk-0"]; !ok || len(states) != 1 {
		t.Errorf("aligned reconcile changed state: %v", states)
	}
}
