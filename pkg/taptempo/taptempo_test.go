package taptempo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func at(seconds float64) time.Time {
	return time.Unix(0, 0).Add(time.Duration(seconds * float64(time.Second)))
}

func TestTapper_ComputesExpectedBPM(t *testing.T) {
	tapper := New(4, 2*time.Second)

	var bpm float64
	var ok bool
	for _, seconds := range []float64{0, 0.5, 1.0, 1.5} {
		bpm, ok = tapper.Tap(at(seconds))
	}

	assert.True(t, ok)
	assert.InDelta(t, 120.0, bpm, 1e-6)
}

func TestTapper_ResetsAfterGap(t *testing.T) {
	tapper := New(3, time.Second)

	_, ok := tapper.Tap(at(0))
	assert.False(t, ok)
	_, ok = tapper.Tap(at(0.3))
	assert.False(t, ok)

	// the long pause clears the first two taps
	_, ok = tapper.Tap(at(2.0))
	assert.False(t, ok)
	_, ok = tapper.Tap(at(2.2))
	assert.False(t, ok)

	bpm, ok := tapper.Tap(at(2.4))
	assert.True(t, ok)
	assert.InDelta(t, 300.0, bpm, 1e-6)
}

func TestTapper_RunClearsAfterEstimate(t *testing.T) {
	tapper := New(2, 2*time.Second)

	bpm, ok := tapper.Tap(at(0))
	assert.False(t, ok)
	assert.Zero(t, bpm)

	bpm, ok = tapper.Tap(at(1.0))
	assert.True(t, ok)
	assert.InDelta(t, 60.0, bpm, 1e-6)

	// the next tap starts a fresh run
	_, ok = tapper.Tap(at(1.5))
	assert.False(t, ok)
}

func TestTapper_ZeroIntervalYieldsNoEstimate(t *testing.T) {
	tapper := New(2, 2*time.Second)

	_, ok := tapper.Tap(at(1.0))
	assert.False(t, ok)

	_, ok = tapper.Tap(at(1.0))
	assert.False(t, ok)
}

func TestTapper_RaisesTapsNeededToTwo(t *testing.T) {
	tapper := New(0, 2*time.Second)

	_, ok := tapper.Tap(at(0))
	assert.False(t, ok)

	// two taps suffice even though fewer were requested
	bpm, ok := tapper.Tap(at(0.5))
	assert.True(t, ok)
	assert.InDelta(t, 120.0, bpm, 1e-6)
}

func TestTapper_NegativeResetGapBecomesZero(t *testing.T) {
	tapper := New(2, -time.Second)

	// with a zero gap any measurable pause discards the history
	_, ok := tapper.Tap(at(0))
	assert.False(t, ok)

	_, ok = tapper.Tap(at(0.5))
	assert.False(t, ok)
}

func TestTapper_Reset(t *testing.T) {
	tapper := New(2, 2*time.Second)

	_, ok := tapper.Tap(at(0))
	assert.False(t, ok)

	tapper.Reset()

	_, ok = tapper.Tap(at(0.5))
	assert.False(t, ok)
}
