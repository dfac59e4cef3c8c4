package x1

import "time"

// ButtonEventKind classifies a button state transition.
type ButtonEventKind int

const (
	// ButtonPressed marks a false->true transition.
	ButtonPressed ButtonEventKind = iota

	// ButtonReleased marks a true->false transition.
	ButtonReleased
)

func (k ButtonEventKind) String() string {
	if k == ButtonPressed {
		return "pressed"
	}

	return "released"
}

// Modifiers carries the modifier keys held at the time an event is emitted.
// They are always read from the snapshot the event belongs to, not from the
// snapshot in effect when the underlying field last changed.
type Modifiers struct {
	Shift bool
}

// ButtonEvent describes one button transition.
type ButtonEvent struct {
	ID        ButtonID
	Kind      ButtonEventKind
	Modifiers Modifiers
}

// EncoderEvent describes one encoder value change. Values are raw 0-15
// nibbles; a wrap across the 0/15 boundary still reports the raw values with
// no direction inference.
type EncoderEvent struct {
	ID        EncoderID
	Value     uint8
	Previous  uint8
	Modifiers Modifiers
}

// PotEvent describes one potentiometer value change.
type PotEvent struct {
	ID        PotID
	Value     uint16
	Previous  uint16
	Modifiers Modifiers
}

// Handlers receive the full snapshot the event was diffed against, the event
// payload, the capture timestamp of the frame, and write access to the LED
// buffer. The LED handle is only valid for the duration of the call.
type (
	// ButtonHandler handles button transitions.
	ButtonHandler func(state State, event ButtonEvent, at time.Time, leds *Leds)

	// EncoderHandler handles encoder value changes.
	EncoderHandler func(state State, event EncoderEvent, at time.Time, leds *Leds)

	// PotHandler handles pot value changes.
	PotHandler func(state State, event PotEvent, at time.Time, leds *Leds)
)
