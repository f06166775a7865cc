// Package playback defines the engine contract the session runner drives
// and the adapters around it.
package playback

import "sync"

// Control is the playback surface the runner depends on. Implementations
// deliver position ticks through the position callback and must emit the
// stopped notification exactly once per logical stop.
type Control interface {
	SetLoopRange(startTick, endTick int)
	SetSpeed(multiplier float64)
	Play()
	Pause()
	Stop()
}

// Guard wraps a Control and makes Stop idempotent: the wrapped engine is
// stopped at most once per play, and the stopped notification is
// suppressed once a stop has already been observed. This keeps duplicate
// stop events from double-advancing the runner.
type Guard struct {
	mu      sync.Mutex
	inner   Control
	playing bool
	onStop  func()
}

// NewGuard wraps an engine. onStop, if non-nil, receives the deduplicated
// stopped notifications.
func NewGuard(inner Control, onStop func()) *Guard {
	return &Guard{inner: inner, onStop: onStop}
}

// SetLoopRange forwards to the wrapped engine.
func (g *Guard) SetLoopRange(startTick, endTick int) {
	g.inner.SetLoopRange(startTick, endTick)
}

// SetSpeed forwards to the wrapped engine.
func (g *Guard) SetSpeed(multiplier float64) {
	g.inner.SetSpeed(multiplier)
}

// Play forwards to the wrapped engine and re-arms the stop notification.
func (g *Guard) Play() {
	g.mu.Lock()
	g.playing = true
	g.mu.Unlock()
	g.inner.Play()
}

// Pause forwards to the wrapped engine.
func (g *Guard) Pause() {
	g.inner.Pause()
}

// Stop stops the wrapped engine if it is playing and does nothing
// otherwise.
func (g *Guard) Stop() {
	g.mu.Lock()
	wasPlaying := g.playing
	g.playing = false
	g.mu.Unlock()
	if wasPlaying {
		g.inner.Stop()
	}
}

// NotifyStopped is called by the wrapped engine's stopped callback.
// Duplicate notifications for the same logical stop are dropped.
func (g *Guard) NotifyStopped() {
	g.mu.Lock()
	wasPlaying := g.playing
	g.playing = false
	g.mu.Unlock()
	if wasPlaying && g.onStop != nil {
		g.onStop()
	}
}
