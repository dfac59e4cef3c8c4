package linksync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLocal_PhaseAdvancesWithTempo(t *testing.T) {
	session := NewLocal(120)
	session.SetPlayingAt(true, 0)

	// 120 BPM is two beats per second
	assert.InDelta(t, 0.0, session.PhaseAt(0, 4), 1e-9)
	assert.InDelta(t, 2.0, session.PhaseAt(time.Second, 4), 1e-9)
	assert.InDelta(t, 0.5, session.PhaseAt(2250*time.Millisecond, 4), 1e-9)

	// the phase wraps at the quantum
	assert.InDelta(t, 0.0, session.PhaseAt(2*time.Second, 4), 1e-9)
}

func TestLocal_TempoChangeKeepsBeatsContinuous(t *testing.T) {
	session := NewLocal(120)
	session.SetPlayingAt(true, 0)

	// two beats have passed, then the slope halves
	session.SetTempoAt(60, time.Second)

	assert.InDelta(t, 3.0, session.PhaseAt(2*time.Second, 4), 1e-9)
	assert.InDelta(t, 0.0, session.PhaseAt(3*time.Second, 4), 1e-9)
	assert.Equal(t, 60.0, session.Tempo())
}

func TestLocal_StartReanchorsBeatZero(t *testing.T) {
	session := NewLocal(120)

	session.SetPlayingAt(true, 10*time.Second)

	assert.True(t, session.Playing())
	assert.InDelta(t, 0.0, session.PhaseAt(10*time.Second, 4), 1e-9)
	assert.InDelta(t, 1.0, session.PhaseAt(10500*time.Millisecond, 4), 1e-9)
}

func TestLocal_RestartWhileRunningKeepsAnchor(t *testing.T) {
	session := NewLocal(120)
	session.SetPlayingAt(true, 0)

	// a redundant start must not yank the downbeat around
	session.SetPlayingAt(true, time.Second)

	assert.InDelta(t, 2.0, session.PhaseAt(time.Second, 4), 1e-9)
}

func TestLocal_StopAndRestart(t *testing.T) {
	session := NewLocal(120)
	session.SetPlayingAt(true, 0)

	session.SetPlayingAt(false, time.Second)
	assert.False(t, session.Playing())

	session.SetPlayingAt(true, 5*time.Second)
	assert.True(t, session.Playing())
	assert.InDelta(t, 0.0, session.PhaseAt(5*time.Second, 4), 1e-9)
}

func TestLocal_PhaseBeforeAnchorStaysInRange(t *testing.T) {
	session := NewLocal(120)
	session.SetPlayingAt(true, 10*time.Second)

	// half a beat before the anchor wraps to the top of the bar
	phase := session.PhaseAt(9750*time.Millisecond, 4)
	assert.InDelta(t, 3.5, phase, 1e-9)

	assert.GreaterOrEqual(t, phase, 0.0)
	assert.Less(t, phase, 4.0)
}

func TestLocal_DegenerateQuantum(t *testing.T) {
	session := NewLocal(120)
	session.SetPlayingAt(true, 0)

	assert.Zero(t, session.PhaseAt(time.Second, 0))
	assert.Zero(t, session.PhaseAt(time.Second, -1))
}
