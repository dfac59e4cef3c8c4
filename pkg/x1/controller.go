package x1

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Transport performs bounded bulk transfers against the controller's three
// endpoints: input frames in, LED frames out, and the write acknowledgment in.
type Transport interface {
	ReadFrame(p []byte) (int, error)
	WriteLeds(p []byte) (int, error)
	ReadAck(p []byte) (int, error)
	Close() error
}

// ErrTimeout reports that a transfer hit its deadline without moving data.
// The poll loop treats it as "no new data this cycle".
var ErrTimeout = errors.New("x1: transfer timed out")

// ErrNoDevice reports that no controller was found on the bus.
var ErrNoDevice = errors.New("x1: no controller found")

// Controller owns the device input handle, the last snapshot, the LED buffer
// and the handler registrations. All of it belongs to a single poll loop;
// none of it is safe for concurrent use.
type Controller struct {
	logger    *zap.SugaredLogger
	transport Transport

	frame [FrameLen]byte
	leds  *Leds

	last        State
	initialized bool

	buttonHandler  ButtonHandler
	encoderHandler EncoderHandler
	potHandler     PotHandler
}

// Open connects to the first X1 found on the USB bus and returns a controller
// ready for polling.
func Open(logger *zap.SugaredLogger) (*Controller, error) {
	logger = logger.Named("x1")

	transport, err := openUSB(logger)
	if err != nil {
		return nil, err
	}

	return NewController(transport, logger), nil
}

// NewController wraps an established transport. Used by Open and by tests
// that inject a fake transport.
func NewController(transport Transport, logger *zap.SugaredLogger) *Controller {
	c := &Controller{
		logger:    logger,
		transport: transport,
		leds:      newLeds(),
	}

	logger.Debug("Created controller instance")

	return c
}

// SetButtonHandler installs the button handler, replacing any previous one.
// The handler is removed from its slot for the duration of each call, so it
// must not attempt to re-register itself from inside the call.
func (c *Controller) SetButtonHandler(h ButtonHandler) {
	c.buttonHandler = h
}

// SetEncoderHandler installs the encoder handler, replacing any previous one.
// The same re-registration restriction as SetButtonHandler applies.
func (c *Controller) SetEncoderHandler(h EncoderHandler) {
	c.encoderHandler = h
}

// SetPotHandler installs the pot handler, replacing any previous one. The
// same re-registration restriction as SetButtonHandler applies.
func (c *Controller) SetPotHandler(h PotHandler) {
	c.potHandler = h
}

// ClearHandlers removes all registered handlers.
func (c *Controller) ClearHandlers() {
	c.buttonHandler = nil
	c.encoderHandler = nil
	c.potHandler = nil
}

// SetLed writes one indicator slot outside of a dispatch call. The change is
// flushed on the next poll cycle.
func (c *Controller) SetLed(idx int, value byte) {
	c.leds.Set(idx, value)
}

// SetLedPressed sets one indicator to bright or dim outside of a dispatch call.
func (c *Controller) SetLedPressed(idx int, pressed bool) {
	c.leds.SetPressed(idx, pressed)
}

// State returns the last recorded snapshot.
func (c *Controller) State() State {
	return c.last
}

// Run polls the controller until a fatal transport error occurs.
func (c *Controller) Run() error {
	for {
		if err := c.PollOnce(); err != nil {
			return err
		}
	}
}

// PollOnce performs a single bounded read of the input endpoint, dispatches
// events for every changed field, and flushes pending LED writes. A read
// timeout means no new data and is not an error; any other read failure is
// fatal and returned to the caller.
func (c *Controller) PollOnce() error {
	n, err := c.transport.ReadFrame(c.frame[:])
	switch {
	case errors.Is(err, ErrTimeout):
		return nil
	case err != nil:
		return fmt.Errorf("read input frame: %w", err)
	case n != FrameLen:
		// partial frame, wait for a complete one
		return nil
	}

	state := ParseFrame(c.frame[:n])
	now := time.Now()

	// the first frame after connecting only records the baseline
	if !c.initialized {
		c.last = state
		c.initialized = true
		c.leds.dirty = true
		c.flushLeds()

		return nil
	}

	c.dispatchButtons(state, now)
	c.dispatchEncoders(state, now)
	c.dispatchPots(state, now)

	c.flushLeds()
	c.last = state

	return nil
}

// Close releases the underlying transport.
func (c *Controller) Close() error {
	return c.transport.Close()
}

func (c *Controller) dispatchButtons(state State, now time.Time) {
	for id := ButtonID(0); id < ButtonCount; id++ {
		if state.Buttons[id] == c.last.Buttons[id] {
			continue
		}

		h := c.buttonHandler
		if h == nil {
			continue
		}

		kind := ButtonReleased
		if state.Buttons[id] {
			kind = ButtonPressed
		}

		event := ButtonEvent{ID: id, Kind: kind, Modifiers: state.Modifiers()}

		// take the handler out of its slot for the duration of the call
		c.buttonHandler = nil
		h(state, event, now, c.leds)
		c.buttonHandler = h
	}
}

func (c *Controller) dispatchEncoders(state State, now time.Time) {
	for id := EncoderID(0); id < EncoderCount; id++ {
		if state.Encoders[id] == c.last.Encoders[id] {
			continue
		}

		h := c.encoderHandler
		if h == nil {
			continue
		}

		event := EncoderEvent{
			ID:        id,
			Value:     state.Encoders[id],
			Previous:  c.last.Encoders[id],
			Modifiers: state.Modifiers(),
		}

		c.encoderHandler = nil
		h(state, event, now, c.leds)
		c.encoderHandler = h
	}
}

func (c *Controller) dispatchPots(state State, now time.Time) {
	for id := PotID(0); id < PotCount; id++ {
		if state.Pots[id] == c.last.Pots[id] {
			continue
		}

		h := c.potHandler
		if h == nil {
			continue
		}

		event := PotEvent{
			ID:        id,
			Value:     state.Pots[id],
			Previous:  c.last.Pots[id],
			Modifiers: state.Modifiers(),
		}

		c.potHandler = nil
		h(state, event, now, c.leds)
		c.potHandler = h
	}
}

// flushLeds pushes the LED buffer to the device when it is dirty. Write
// failures keep the buffer dirty so the next cycle retries the full write.
func (c *Controller) flushLeds() {
	if !c.leds.dirty {
		return
	}

	if _, err := c.transport.WriteLeds(c.leds.values[:]); err != nil {
		c.logger.Warnw("Failed to write LED frame", "error", err)
		return
	}

	// the controller answers a LED write with a single byte; a timeout on
	// that read is as good as receiving it
	var ack [1]byte
	if _, err := c.transport.ReadAck(ack[:]); err != nil && !errors.Is(err, ErrTimeout) {
		c.logger.Warnw("Failed to read LED ack", "error", err)
	}

	c.leds.dirty = false
}
