package playback

import (
	"sync"

	"github.com/verte-zerg/woodshed/internal/song"
)

// Sim is a clock-driven stand-in for a real audio engine. The caller
// advances it with wall-clock deltas; it converts elapsed time into
// playback ticks at the song's base tempo scaled by the speed multiplier
// and loops inside the configured range. There is no audio output.
//
// The runner commands it from timer goroutines while the UI clock
// advances it, so all state is mutex-guarded. Callbacks fire outside the
// lock; they may call back into any Sim method.
type Sim struct {
	mu        sync.Mutex
	baseTempo float64 // quarter notes per minute
	speed     float64
	startTick int
	endTick   int
	pos       float64
	playing   bool

	onPosition func(tick int)
	onStopped  func()
}

// NewSim creates a simulated engine at the given base tempo.
func NewSim(baseTempo int, onPosition func(tick int), onStopped func()) *Sim {
	return &Sim{
		baseTempo:  float64(baseTempo),
		speed:      1.0,
		onPosition: onPosition,
		onStopped:  onStopped,
	}
}

// SetLoopRange implements Control. Position snaps to the range start.
func (s *Sim) SetLoopRange(startTick, endTick int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startTick = startTick
	s.endTick = endTick
	s.pos = float64(startTick)
}

// SetSpeed implements Control.
func (s *Sim) SetSpeed(multiplier float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if multiplier > 0 {
		s.speed = multiplier
	}
}

// Play implements Control.
func (s *Sim) Play() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = true
}

// Pause implements Control.
func (s *Sim) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = false
}

// Stop implements Control. It emits one stopped notification.
func (s *Sim) Stop() {
	s.mu.Lock()
	if !s.playing {
		s.mu.Unlock()
		return
	}
	s.playing = false
	s.pos = float64(s.startTick)
	s.mu.Unlock()
	if s.onStopped != nil {
		s.onStopped()
	}
}

// Playing reports whether the engine is advancing.
func (s *Sim) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// Position returns the current tick.
func (s *Sim) Position() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int(s.pos)
}

// Advance moves the playhead by elapsed wall-clock seconds and emits a
// position notification. Inside a loop range the playhead wraps back to
// the start.
func (s *Sim) Advance(seconds float64) {
	s.mu.Lock()
	if !s.playing || seconds <= 0 {
		s.mu.Unlock()
		return
	}
	ticksPerSecond := s.baseTempo / 60.0 * float64(song.TicksPerQuarter) * s.speed
	s.pos += seconds * ticksPerSecond
	if s.endTick > s.startTick {
		span := float64(s.endTick - s.startTick)
		for s.pos >= float64(s.endTick) {
			s.pos -= span
		}
	}
	tick := int(s.pos)
	s.mu.Unlock()
	if s.onPosition != nil {
		s.onPosition(tick)
	}
}
