// Package x1 talks to a Traktor Kontrol X1 Mk1 over USB: it decodes the
// controller's input frames into snapshots, diffs consecutive snapshots into
// button/encoder/pot events, and mirrors state back through the LED buffer.
package x1

import "encoding/binary"

// FrameLen is the size of one raw input frame read from the controller.
const FrameLen = 24

// ButtonID identifies one of the controller's buttons. The numeric order of
// the ids is the order in which button events are emitted during a diff.
type ButtonID int

// Button ids, in emission order.
const (
	ButtonDeck1FxOn ButtonID = iota
	ButtonDeck2FxOn
	ButtonDeck1Fx1
	ButtonDeck2Fx1
	ButtonDeck1Fx2
	ButtonDeck2Fx2
	ButtonDeck1Fx3
	ButtonDeck2Fx3
	ButtonDeck1Load
	ButtonShift
	ButtonDeck2Load
	ButtonDeck1FxAssign1
	ButtonDeck1FxAssign2
	ButtonDeck2FxAssign1
	ButtonDeck2FxAssign2
	ButtonDeck1Loop
	ButtonHotcue
	ButtonDeck2Loop
	ButtonDeck1In
	ButtonDeck1Out
	ButtonDeck2In
	ButtonDeck2Out
	ButtonDeck1BeatLeft
	ButtonDeck1BeatRight
	ButtonDeck2BeatLeft
	ButtonDeck2BeatRight
	ButtonDeck1Cue
	ButtonDeck1Cup
	ButtonDeck2Cue
	ButtonDeck2Cup
	ButtonDeck1Play
	ButtonDeck1Sync
	ButtonDeck2Play
	ButtonDeck2Sync

	// ButtonCount is the number of buttons on the controller.
	ButtonCount
)

// EncoderID identifies one of the push encoders. Numeric order is emission order.
type EncoderID int

// Encoder ids, in emission order.
const (
	EncoderDeck1Browse EncoderID = iota
	EncoderDeck2Browse
	EncoderDeck1Loop
	EncoderDeck2Loop

	// EncoderCount is the number of encoders on the controller.
	EncoderCount
)

// PotID identifies one of the potentiometers. Numeric order is emission order.
type PotID int

// Pot ids, in emission order.
const (
	PotDeck1DryWet PotID = iota
	PotDeck1Fx1
	PotDeck1Fx2
	PotDeck1Fx3
	PotDeck2DryWet
	PotDeck2Fx1
	PotDeck2Fx2
	PotDeck2Fx3

	// PotCount is the number of pots on the controller.
	PotCount
)

// buttonBits locates each button inside the input frame as a (byte, bit)
// pair. The frame's leading report byte pushes everything to bytes 1-5.
var buttonBits = [ButtonCount]struct{ byteOff, bit uint8 }{
	ButtonDeck1FxOn:      {4, 4},
	ButtonDeck2FxOn:      {5, 0},
	ButtonDeck1Fx1:       {4, 5},
	ButtonDeck2Fx1:       {5, 1},
	ButtonDeck1Fx2:       {4, 6},
	ButtonDeck2Fx2:       {5, 2},
	ButtonDeck1Fx3:       {4, 7},
	ButtonDeck2Fx3:       {5, 3},
	ButtonDeck1Load:      {4, 0},
	ButtonShift:          {5, 4},
	ButtonDeck2Load:      {4, 1},
	ButtonDeck1FxAssign1: {2, 1},
	ButtonDeck1FxAssign2: {2, 0},
	ButtonDeck2FxAssign1: {5, 6},
	ButtonDeck2FxAssign2: {5, 5},
	ButtonDeck1Loop:      {4, 2},
	ButtonHotcue:         {5, 7},
	ButtonDeck2Loop:      {4, 3},
	ButtonDeck1In:        {3, 4},
	ButtonDeck1Out:       {1, 3},
	ButtonDeck2In:        {2, 4},
	ButtonDeck2Out:       {3, 3},
	ButtonDeck1BeatLeft:  {1, 2},
	ButtonDeck1BeatRight: {3, 5},
	ButtonDeck2BeatLeft:  {3, 2},
	ButtonDeck2BeatRight: {2, 5},
	ButtonDeck1Cue:       {1, 1},
	ButtonDeck1Cup:       {3, 6},
	ButtonDeck2Cue:       {3, 1},
	ButtonDeck2Cup:       {2, 6},
	ButtonDeck1Play:      {1, 0},
	ButtonDeck1Sync:      {3, 7},
	ButtonDeck2Play:      {3, 0},
	ButtonDeck2Sync:      {2, 7},
}

// encoderNibbles locates each encoder's 4-bit value: two encoders share one
// byte, low nibble first.
var encoderNibbles = [EncoderCount]struct {
	byteOff uint8
	high    bool
}{
	EncoderDeck1Browse: {6, false},
	EncoderDeck2Browse: {6, true},
	EncoderDeck1Loop:   {7, false},
	EncoderDeck2Loop:   {7, true},
}

// potSlots maps each logical pot to the physical ADC slot it is reported in.
// The hardware interleaves the FX sections, so the mapping is not identity.
var potSlots = [PotCount]uint8{
	PotDeck1DryWet: 4,
	PotDeck1Fx1:    6,
	PotDeck1Fx2:    7,
	PotDeck1Fx3:    5,
	PotDeck2DryWet: 2,
	PotDeck2Fx1:    1,
	PotDeck2Fx2:    0,
	PotDeck2Fx3:    3,
}

// potBase is the frame offset of physical pot slot 0; each slot is a
// big-endian 16-bit value.
const potBase = 8

// State is a point-in-time snapshot of every decoded control on the device.
// Snapshots are plain values: diffing always compares two distinct snapshots,
// never a snapshot against itself after mutation.
type State struct {
	Buttons  [ButtonCount]bool
	Encoders [EncoderCount]uint8
	Pots     [PotCount]uint16
}

// ParseFrame decodes a raw input frame into a snapshot. Frames shorter than
// FrameLen never fail to decode; fields that fall outside the buffer keep
// their zero values.
func ParseFrame(buf []byte) State {
	var s State

	for id := ButtonID(0); id < ButtonCount; id++ {
		loc := buttonBits[id]
		if int(loc.byteOff) < len(buf) {
			s.Buttons[id] = buf[loc.byteOff]&(1<<loc.bit) != 0
		}
	}

	for id := EncoderID(0); id < EncoderCount; id++ {
		loc := encoderNibbles[id]
		if int(loc.byteOff) >= len(buf) {
			continue
		}

		if loc.high {
			s.Encoders[id] = buf[loc.byteOff] >> 4
		} else {
			s.Encoders[id] = buf[loc.byteOff] & 0x0f
		}
	}

	for id := PotID(0); id < PotCount; id++ {
		off := potBase + int(potSlots[id])*2
		if off+1 < len(buf) {
			s.Pots[id] = binary.BigEndian.Uint16(buf[off : off+2])
		}
	}

	return s
}

// Button returns the state of a single button.
func (s State) Button(id ButtonID) bool { return s.Buttons[id] }

// Encoder returns the current 0-15 value of a single encoder.
func (s State) Encoder(id EncoderID) uint8 { return s.Encoders[id] }

// Pot returns the current 16-bit value of a single pot.
func (s State) Pot(id PotID) uint16 { return s.Pots[id] }

// Modifiers returns the modifier keys held in this snapshot.
func (s State) Modifiers() Modifiers {
	return Modifiers{Shift: s.Buttons[ButtonShift]}
}
