// Package midiclock emits MIDI realtime sync (timing clock, start, stop) on
// an output port at a controllable tempo.
package midiclock

import (
	"time"

	"go.uber.org/zap"

	gomidi "gitlab.com/gomidi/midi/v2"
)

const (
	// MinBPM and MaxBPM bound every tempo accepted by the clock.
	MinBPM = 30.0
	MaxBPM = 300.0

	// pulsesPerBeat is the MIDI sync resolution, 24 timing clocks per beat.
	pulsesPerBeat = 24
)

var (
	msgClock = gomidi.TimingClock()
	msgStart = gomidi.Start()
	msgStop  = gomidi.Stop()
)

// Conn is the open MIDI output the clock goroutine owns. The production
// implementation wraps a driver port; tests substitute a recorder.
type Conn interface {
	Send(msg gomidi.Message) error
	Close() error
}

type commandKind int

const (
	cmdStart commandKind = iota
	cmdStop
	cmdSetRate
	cmdShutdown
)

type command struct {
	kind commandKind
	bpm  float64
}

// Clock owns a background goroutine that spaces timing clock pulses by
// deadline rather than by sleeping a fixed interval, so late wakeups are
// caught up instead of accumulating drift. All methods are safe to call
// from any goroutine.
type Clock struct {
	logger   *zap.SugaredLogger
	conn     Conn
	portName string

	cmds chan command
	done chan struct{}
}

// New opens the MIDI output matched by portHint and starts the clock
// goroutine in its idle state. An empty hint selects the first available
// output port.
func New(portHint string, initialBPM float64, logger *zap.SugaredLogger) (*Clock, error) {
	logger = logger.Named("midiclock")

	out, err := findOutPort(portHint)
	if err != nil {
		return nil, err
	}

	conn, err := openPort(out)
	if err != nil {
		return nil, err
	}

	logger.Infow("Opened MIDI output port", "port", out.String())

	return newWithConn(conn, out.String(), initialBPM, logger), nil
}

// newWithConn wires a clock over an established connection. Split from New
// so tests can inject a fake Conn.
func newWithConn(conn Conn, portName string, initialBPM float64, logger *zap.SugaredLogger) *Clock {
	c := &Clock{
		logger:   logger,
		conn:     conn,
		portName: portName,
		cmds:     make(chan command, 16),
		done:     make(chan struct{}),
	}

	go c.run(clampBPM(initialBPM))

	return c
}

// PortName returns the name of the output port the clock was opened on.
func (c *Clock) PortName() string {
	return c.portName
}

// Start emits a start marker and begins pulsing at the current tempo.
func (c *Clock) Start() {
	c.send(command{kind: cmdStart})
}

// Stop emits a stop marker and pauses pulsing. The tempo is kept.
func (c *Clock) Stop() {
	c.send(command{kind: cmdStop})
}

// SetBPM changes the tempo, clamped to [MinBPM, MaxBPM]. While the clock is
// running the next pulse deadline is re-anchored to now.
func (c *Clock) SetBPM(bpm float64) {
	c.send(command{kind: cmdSetRate, bpm: bpm})
}

// Close stops the clock goroutine and releases the port. A running clock
// sends a final stop marker first. Close blocks until the goroutine exits.
func (c *Clock) Close() error {
	c.send(command{kind: cmdShutdown})
	<-c.done

	return nil
}

// send hands a command to the clock goroutine, dropping it if the goroutine
// has already exited.
func (c *Clock) send(cmd command) {
	select {
	case c.cmds <- cmd:
	case <-c.done:
	}
}

func (c *Clock) run(initialBPM float64) {
	defer close(c.done)
	defer func() {
		if err := c.conn.Close(); err != nil {
			c.logger.Warnw("Failed to close MIDI output port", "error", err)
		}
	}()

	sched := newSchedule(initialBPM)
	running := false

	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		if !running {
			// nothing to pulse, block until told otherwise
			cmd, ok := <-c.cmds
			if !ok {
				return
			}

			if c.apply(cmd, &sched, &running) {
				return
			}

			continue
		}

		now := time.Now()
		if sched.due(now) {
			if err := c.conn.Send(msgClock); err != nil {
				c.logger.Warnw("Failed to send timing clock, pausing",
					"error", err,
					"bpm", sched.bpm)
				running = false

				continue
			}

			sched.advance()

			continue
		}

		resetTimer(timer, sched.next.Sub(now))

		select {
		case cmd, ok := <-c.cmds:
			if !ok {
				return
			}

			if c.apply(cmd, &sched, &running) {
				return
			}
		case <-timer.C:
		}
	}
}

// apply executes one command against the goroutine's state. It reports
// whether the goroutine should shut down.
func (c *Clock) apply(cmd command, sched *schedule, running *bool) bool {
	switch cmd.kind {
	case cmdStart:
		if err := c.conn.Send(msgStart); err != nil {
			c.logger.Warnw("Failed to send start marker", "error", err)
			return false
		}

		sched.rebase(time.Now())
		*running = true

		c.logger.Debugw("Clock started", "bpm", sched.bpm)
	case cmdStop:
		if err := c.conn.Send(msgStop); err != nil {
			c.logger.Warnw("Failed to send stop marker", "error", err)
		}

		*running = false

		c.logger.Debug("Clock stopped")
	case cmdSetRate:
		sched.setRate(cmd.bpm)

		// an idle clock re-anchors on the next start anyway
		if *running {
			sched.rebase(time.Now())
		}

		c.logger.Debugw("Clock rate changed", "bpm", sched.bpm)
	case cmdShutdown:
		if *running {
			if err := c.conn.Send(msgStop); err != nil {
				c.logger.Warnw("Failed to send stop marker", "error", err)
			}
		}

		return true
	}

	return false
}

// schedule tracks the pulse cadence. Deadlines advance from the previous
// deadline, never from the current time, so wakeup jitter does not
// accumulate into tempo drift.
type schedule struct {
	bpm      float64
	interval time.Duration
	next     time.Time
}

func newSchedule(bpm float64) schedule {
	bpm = clampBPM(bpm)

	return schedule{bpm: bpm, interval: intervalFor(bpm)}
}

func (s *schedule) setRate(bpm float64) {
	s.bpm = clampBPM(bpm)
	s.interval = intervalFor(s.bpm)
}

func (s *schedule) rebase(now time.Time) {
	s.next = now.Add(s.interval)
}

func (s *schedule) advance() {
	s.next = s.next.Add(s.interval)
}

func (s *schedule) due(now time.Time) bool {
	return !s.next.After(now)
}

// intervalFor converts beats per minute to the spacing of the 24 pulses
// emitted per beat.
func intervalFor(bpm float64) time.Duration {
	interval := time.Duration(float64(time.Minute) / (bpm * pulsesPerBeat))
	if interval < time.Nanosecond {
		interval = time.Nanosecond
	}

	return interval
}

func clampBPM(bpm float64) float64 {
	switch {
	case bpm < MinBPM:
		return MinBPM
	case bpm > MaxBPM:
		return MaxBPM
	}

	return bpm
}

// resetTimer arms a stopped or fired timer. The non-blocking drain keeps the
// reset correct whether or not the previous tick was consumed.
func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}

	t.Reset(d)
}
