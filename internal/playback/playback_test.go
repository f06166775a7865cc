package playback

import "testing"

type recordingEngine struct {
	stops int
	plays int
}

func (r *recordingEngine) SetLoopRange(start, end int) {}
func (r *recordingEngine) SetSpeed(m float64)          {}
func (r *recordingEngine) Play()                       { r.plays++ }
func (r *recordingEngine) Pause()                      {}
func (r *recordingEngine) Stop()                       { r.stops++ }

func TestGuardStopOnlyWhilePlaying(t *testing.T) {
	eng := &recordingEngine{}
	g := NewGuard(eng, nil)

	g.Stop()
	if eng.stops != 0 {
		t.Fatal("stop forwarded before any play")
	}

	g.Play()
	g.Stop()
	g.Stop()
	if eng.stops != 1 {
		t.Errorf("stops = %d, want exactly 1", eng.stops)
	}

	g.Play()
	g.Stop()
	if eng.stops != 2 {
		t.Errorf("stops = %d, want 2 after replay", eng.stops)
	}
}

func TestGuardDedupesStoppedNotifications(t *testing.T) {
	notified := 0
	g := NewGuard(&recordingEngine{}, func() { notified++ })

	g.Play()
	g.NotifyStopped()
	g.NotifyStopped()
	if notified != 1 {
		t.Errorf("notifications = %d, want 1", notified)
	}
}

func TestGuardSuppressesOwnStopEcho(t *testing.T) {
	// The runner stops through the guard; when the engine then emits its
	// stopped callback, the guard must swallow it so the runner does not
	// see its own stop as a user stop.
	notified := 0
	g := NewGuard(&recordingEngine{}, func() { notified++ })

	g.Play()
	g.Stop()
	g.NotifyStopped()
	if notified != 0 {
		t.Errorf("notifications = %d, want 0 for a guard-initiated stop", notified)
	}
}

func TestSimAdvanceEmitsTicks(t *testing.T) {
	var last int
	s := NewSim(120, func(tick int) { last = tick }, nil)
	s.SetLoopRange(0, 7680)
	s.Play()

	// 120 BPM is 2 quarters per second, 1920 ticks per second.
	s.Advance(1.0)
	if last != 1920 {
		t.Errorf("tick after 1s = %d, want 1920", last)
	}

	s.SetSpeed(0.5)
	s.Advance(1.0)
	if last != 2880 {
		t.Errorf("tick after half-speed second = %d, want 2880", last)
	}
}

func TestSimWrapsInsideLoop(t *testing.T) {
	var last int
	s := NewSim(120, func(tick int) { last = tick }, nil)
	s.SetLoopRange(0, 3840)
	s.Play()

	s.Advance(2.5) // 4800 ticks, one full loop plus 960
	if last != 960 {
		t.Errorf("tick = %d, want 960 after wrapping", last)
	}
}

func TestSimStopResetsAndNotifiesOnce(t *testing.T) {
	stopped := 0
	s := NewSim(120, nil, func() { stopped++ })
	s.SetLoopRange(960, 3840)
	s.Play()
	s.Advance(0.5)

	s.Stop()
	s.Stop()
	if stopped != 1 {
		t.Errorf("stopped notifications = %d, want 1", stopped)
	}
	if s.Position() != 960 {
		t.Errorf("position = %d, want loop start 960", s.Position())
	}
	if s.Playing() {
		t.Error("still playing after stop")
	}
}

func TestSimIgnoresAdvanceWhilePaused(t *testing.T) {
	var calls int
	s := NewSim(120, func(int) { calls++ }, nil)
	s.SetLoopRange(0, 3840)
	s.Advance(1.0)
	if calls != 0 {
		t.Error("position emitted while not playing")
	}
	s.Play()
	s.Pause()
	s.Advance(1.0)
	if calls != 0 {
		t.Error("position emitted while paused")
	}
}
