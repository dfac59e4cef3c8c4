package tapclock

import (
	"math"
	"time"

	"github.com/kontrolx1/tapclock/pkg/x1"
)

const (
	// tapLedIndex is the BEATS display dot used as the tempo indicator
	tapLedIndex = 23

	// ledMedium sits between the bright and dim hardware levels
	ledMedium = 0x30

	flashDuration = 160 * time.Millisecond

	// phase windows, in beats, during which the indicator lights up
	downbeatWindow = 0.12
	beatWindow     = 0.08
)

// feedback drives the tempo indicator LED. A recent button press flashes it
// bright for a moment; while the transport runs it pulses with the beat,
// brightest on the downbeat of each bar.
type feedback struct {
	quantum    float64
	flashUntil time.Time
	current    byte
}

func newFeedback(quantum float64) *feedback {
	return &feedback{
		quantum: quantum,
		current: x1.LedDim,
	}
}

// flash forces the indicator bright for the flash window starting at now.
func (f *feedback) flash(now time.Time) {
	f.flashUntil = now.Add(flashDuration)
}

func (f *feedback) cancelFlash() {
	f.flashUntil = time.Time{}
}

// desired returns the indicator level for this moment. phase is the position
// within the bar, in beats.
func (f *feedback) desired(now time.Time, playing bool, phase float64) byte {
	if now.Before(f.flashUntil) {
		return x1.LedBright
	}

	f.flashUntil = time.Time{}

	if !playing {
		return x1.LedDim
	}

	if phase < downbeatWindow {
		return x1.LedBright
	}

	if phase-math.Floor(phase) < beatWindow {
		return ledMedium
	}

	return x1.LedDim
}
