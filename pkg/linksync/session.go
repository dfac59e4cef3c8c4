// Package linksync keeps a shared notion of tempo, transport state and beat
// phase for everything that wants to blink, pulse or count in time.
package linksync

import (
	"math"
	"sync"
	"time"
)

// Session is a tempo and transport timeline. Timestamps are session time,
// the duration since the session's own origin, as returned by Now.
type Session interface {
	// Now returns the current session time.
	Now() time.Duration

	// Tempo returns the tempo in beats per minute.
	Tempo() float64

	// SetTempo changes the tempo at the current session time.
	SetTempo(bpm float64)

	// Playing reports whether the transport is running.
	Playing() bool

	// SetPlaying changes the transport state at the current session time.
	SetPlaying(playing bool)

	// PhaseAt returns the beat phase at the given session time, in the
	// half-open range [0, quantum).
	PhaseAt(at time.Duration, quantum float64) float64
}

// Local is an in-process Session. The beat count stays continuous across
// tempo changes: the beats accumulated up to the change carry over and only
// the slope changes. Starting the transport re-anchors beat zero, so the
// downbeat lands on the moment play was pressed.
//
// Local is safe for concurrent use.
type Local struct {
	mu      sync.Mutex
	epoch   time.Time
	tempo   float64
	playing bool

	// beat timeline anchor
	anchorAt    time.Duration
	anchorBeats float64
}

// NewLocal returns a session anchored at the current instant.
func NewLocal(initialBPM float64) *Local {
	return &Local{
		epoch: time.Now(),
		tempo: initialBPM,
	}
}

func (l *Local) Now() time.Duration {
	return time.Since(l.epoch)
}

func (l *Local) Tempo() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.tempo
}

func (l *Local) SetTempo(bpm float64) {
	l.SetTempoAt(bpm, l.Now())
}

// SetTempoAt changes the tempo effective at the given session time.
func (l *Local) SetTempoAt(bpm float64, at time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.anchorBeats = l.beatsAt(at)
	l.anchorAt = at
	l.tempo = bpm
}

func (l *Local) Playing() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.playing
}

func (l *Local) SetPlaying(playing bool) {
	l.SetPlayingAt(playing, l.Now())
}

// SetPlayingAt changes the transport state effective at the given session
// time. Starting resets the beat count to zero at that time.
func (l *Local) SetPlayingAt(playing bool, at time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if playing && !l.playing {
		l.anchorBeats = 0
		l.anchorAt = at
	}

	l.playing = playing
}

func (l *Local) PhaseAt(at time.Duration, quantum float64) float64 {
	if quantum <= 0 {
		return 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	phase := math.Mod(l.beatsAt(at), quantum)
	if phase < 0 {
		phase += quantum
	}

	return phase
}

// beatsAt extrapolates the beat count from the anchor. Callers hold l.mu.
func (l *Local) beatsAt(at time.Duration) float64 {
	return l.anchorBeats + (at - l.anchorAt).Seconds()*l.tempo/60.0
}
