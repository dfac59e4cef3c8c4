package x1

// LedCount is the number of indicator slots in the controller's LED frame.
const LedCount = 32

// LED intensity values understood by the controller.
const (
	// LedDim is the idle backlight level for an indicator.
	LedDim byte = 0x05

	// LedBright is the full-on level for an indicator.
	LedBright byte = 0x7f

	// slot 0 of the LED frame carries a distinct low-intensity marker rather
	// than a regular indicator level.
	ledMarker byte = 0x0c
)

// Leds accumulates pending indicator writes until the poll loop flushes them
// to the device in one bulk transfer. It is owned by the poll loop; handlers
// receive it only for the duration of a dispatch call.
type Leds struct {
	values [LedCount]byte
	dirty  bool
}

func newLeds() *Leds {
	l := &Leds{dirty: true}
	for i := range l.values {
		l.values[i] = LedDim
	}

	l.values[0] = ledMarker

	return l
}

// Set writes one indicator slot and marks the buffer dirty. Out-of-range
// indices are silently ignored.
func (l *Leds) Set(idx int, value byte) {
	if idx < 0 || idx >= len(l.values) {
		return
	}

	l.values[idx] = value
	l.dirty = true
}

// SetPressed sets an indicator to bright or dim according to a button state.
func (l *Leds) SetPressed(idx int, pressed bool) {
	value := LedDim
	if pressed {
		value = LedBright
	}

	l.Set(idx, value)
}
