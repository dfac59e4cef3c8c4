// Package taptempo derives a tempo from the spacing of manual taps.
package taptempo

import "time"

// Tapper accumulates tap timestamps and produces a tempo estimate once a
// full run of taps has arrived. A pause longer than the reset gap discards
// the collected history, so a stray tap does not poison the next attempt.
//
// Tapper is not safe for concurrent use.
type Tapper struct {
	tapsNeeded int
	resetGap   time.Duration
	taps       []time.Time
}

// New returns a tapper that needs tapsNeeded taps per estimate. Fewer than
// two taps never define an interval, so lower values are raised to two, and
// a negative reset gap is treated as zero.
func New(tapsNeeded int, resetGap time.Duration) *Tapper {
	if tapsNeeded < 2 {
		tapsNeeded = 2
	}

	if resetGap < 0 {
		resetGap = 0
	}

	return &Tapper{
		tapsNeeded: tapsNeeded,
		resetGap:   resetGap,
		taps:       make([]time.Time, 0, tapsNeeded),
	}
}

// Tap records one tap. When this tap completes a run it returns the tempo
// in beats per minute and clears the run; otherwise ok is false.
func (t *Tapper) Tap(at time.Time) (bpm float64, ok bool) {
	if len(t.taps) > 0 && at.Sub(t.taps[len(t.taps)-1]) > t.resetGap {
		t.taps = t.taps[:0]
	}

	t.taps = append(t.taps, at)
	if len(t.taps) < t.tapsNeeded {
		return 0, false
	}

	average := t.taps[len(t.taps)-1].Sub(t.taps[0]) / time.Duration(len(t.taps)-1)
	t.taps = t.taps[:0]

	// a run of identical timestamps carries no usable interval
	if average <= 0 {
		return 0, false
	}

	return 60.0 / average.Seconds(), true
}

// Reset discards the tap history.
func (t *Tapper) Reset() {
	t.taps = t.taps[:0]
}
