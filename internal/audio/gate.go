package audio

import (
	"sync"
	"time"
)

// DefaultGrace is how long suppression holds after tts_end so the playback
// tail cannot re-trigger capture. Tunable, not a protocol requirement.
const DefaultGrace = 600 * time.Millisecond

// Gate suppresses outbound capture while synthesized speech plays and
// tracks the barge-in flag. It is written by the event path and read by
// the capture path, so every field is guarded by the mutex.
type Gate struct {
	mu         sync.Mutex
	grace      time.Duration
	suppressed bool
	bargeIn    bool
	gen        uint64
	lift       *time.Timer
}

// NewGate builds a gate with the given grace delay. Zero or negative means
// DefaultGrace.
func NewGate(grace time.Duration) *Gate {
	if grace <= 0 {
		grace = DefaultGrace
	}
	return &Gate{grace: grace}
}

// OnTTSStart suppresses outbound capture and cancels any pending lift from
// an earlier tts_end.
func (g *Gate) OnTTSStart() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gen++
	g.suppressed = true
	if g.lift != nil {
		g.lift.Stop()
		g.lift = nil
	}
}

// OnTTSEnd schedules the suppression lift after the grace delay. A newer
// tts_start invalidates the scheduled lift.
func (g *Gate) OnTTSEnd() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.lift != nil {
		g.lift.Stop()
	}
	gen := g.gen
	g.lift = time.AfterFunc(g.grace, func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		if g.gen == gen {
			g.suppressed = false
			g.lift = nil
		}
	})
}

// OnBargeIn marks user speech interrupting playback. Cleared on the next
// turn boundary.
func (g *Gate) OnBargeIn() {
	g.mu.Lock()
	g.bargeIn = true
	g.mu.Unlock()
}

// OnTurnEnded clears the barge-in flag at the turn boundary.
func (g *Gate) OnTurnEnded() {
	g.mu.Lock()
	g.bargeIn = false
	g.mu.Unlock()
}

// Allow reports whether an outbound capture chunk may be sent right now.
func (g *Gate) Allow() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return !g.suppressed
}

// Suppressed reports the current suppression state.
func (g *Gate) Suppressed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.suppressed
}

// BargeInActive reports whether a barge-in is pending a turn boundary.
func (g *Gate) BargeInActive() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.bargeIn
}

// Stop cancels any pending lift timer.
func (g *Gate) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.lift != nil {
		g.lift.Stop()
		g.lift = nil
	}
}
