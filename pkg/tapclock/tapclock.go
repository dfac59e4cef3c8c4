// Package tapclock pairs a Traktor Kontrol X1 with a MIDI sync output,
// turning the deck buttons into tap tempo and transport control for
// hardware that follows MIDI clock.
package tapclock

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/kontrolx1/tapclock/pkg/linksync"
	"github.com/kontrolx1/tapclock/pkg/midiclock"
	"github.com/kontrolx1/tapclock/pkg/tapclock/util"
	"github.com/kontrolx1/tapclock/pkg/taptempo"
	"github.com/kontrolx1/tapclock/pkg/x1"
)

// pollInterval paces the controller poll loop between input reads
const pollInterval = 2 * time.Millisecond

// Bridge is the main entity managing access to all sub-components
type Bridge struct {
	logger   *zap.SugaredLogger
	notifier Notifier
	config   *CanonicalConfig

	controller *x1.Controller
	session    linksync.Session
	tapper     *taptempo.Tapper
	feedback   *feedback

	// the reload goroutine can renew the clock while the poll loop is
	// dispatching, so the reference goes behind a lock
	clockLock     sync.Mutex
	clock         *midiclock.Clock
	clockPortHint string

	stopChannel chan bool
	version     string
	verbose     bool
}

// NewBridge creates a Bridge instance
func NewBridge(logger *zap.SugaredLogger, verbose bool) (*Bridge, error) {
	logger = logger.Named("tapclock")

	notifier, err := NewToastNotifier(logger)
	if err != nil {
		logger.Errorw("Failed to create ToastNotifier", "error", err)
		return nil, fmt.Errorf("create new ToastNotifier: %w", err)
	}

	config, err := NewConfig(logger, notifier)
	if err != nil {
		logger.Errorw("Failed to create Config", "error", err)
		return nil, fmt.Errorf("create new Config: %w", err)
	}

	b := &Bridge{
		logger:      logger,
		notifier:    notifier,
		config:      config,
		stopChannel: make(chan bool),
		verbose:     verbose,
	}

	logger.Debug("Created bridge instance")

	return b, nil
}

// Initialize sets up components and starts to run in the background
func (b *Bridge) Initialize() error {
	b.logger.Debug("Initializing")

	// load the config for the first time
	if err := b.config.Load(); err != nil {
		b.logger.Errorw("Failed to load config during initialization", "error", err)
		return fmt.Errorf("load config during init: %w", err)
	}

	b.session = linksync.NewLocal(b.config.InitialBPM)
	b.tapper = taptempo.New(b.config.TapCount, b.config.TapResetGap)
	b.feedback = newFeedback(b.config.QuantumBeats)

	controller, err := x1.Open(b.logger)
	if err != nil {
		b.logger.Errorw("Failed to connect to controller", "error", err)

		if errors.Is(err, x1.ErrNoDevice) {
			b.notifier.Notify("Can't find your X1!",
				"Please make sure it's plugged in, then relaunch tapclock.")
		}

		return fmt.Errorf("connect to controller: %w", err)
	}

	b.controller = controller

	clock, err := midiclock.New(b.config.MIDI.PortName, b.config.InitialBPM, b.logger)
	if err != nil {
		b.logger.Errorw("Failed to open MIDI clock output", "error", err)

		if errors.Is(err, midiclock.ErrPortNotFound) {
			b.notifier.Notify("Can't open MIDI output!",
				"Check the midi_port value in your configuration and make sure it's set correctly.")
		}

		if closeErr := b.controller.Close(); closeErr != nil {
			b.logger.Warnw("Failed to close controller", "error", closeErr)
		}

		return fmt.Errorf("open MIDI clock: %w", err)
	}

	b.clock = clock
	b.clockPortHint = b.config.MIDI.PortName

	b.controller.SetButtonHandler(b.handleButton)

	b.setupOnConfigReload()
	b.setupInterruptHandler()
	b.run()

	return nil
}

// SetVersion causes tapclock to log a version string if called before Initialize
func (b *Bridge) SetVersion(version string) {
	b.version = version
}

// Verbose returns a boolean indicating whether tapclock is running in verbose mode
func (b *Bridge) Verbose() bool {
	return b.verbose
}

func (b *Bridge) setupInterruptHandler() {
	interruptChannel := util.SetupCloseHandler()

	go func() {
		signal := <-interruptChannel
		b.logger.Debugw("Interrupted", "signal", signal)
		b.signalStop()
	}()
}

func (b *Bridge) setupOnConfigReload() {
	configReloadedChannel := b.config.SubscribeToChanges()

	go func() {
		for {
			select {
			case <-configReloadedChannel:

				// a fresh tapper picks up tap_count and tap_reset_gap changes,
				// at the cost of any half-finished tap run
				b.tapper = taptempo.New(b.config.TapCount, b.config.TapResetGap)
				b.feedback.quantum = b.config.QuantumBeats

				// if the MIDI port has changed, attempt to move the clock over
				if b.config.MIDI.PortName != b.clockPortHint {
					b.renewClock()
				}
			}
		}
	}()
}

// renewClock tears the clock down and reopens it on the newly configured
// port. If reopening fails the bridge keeps the closed clock, whose commands
// are dropped, until another reload succeeds.
func (b *Bridge) renewClock() {
	b.logger.Info("Detected change in MIDI port, attempting to renew clock connection")

	if err := b.currentClock().Close(); err != nil {
		b.logger.Warnw("Failed to close old clock connection", "error", err)
	}

	b.clockPortHint = b.config.MIDI.PortName

	clock, err := midiclock.New(b.config.MIDI.PortName, b.session.Tempo(), b.logger)
	if err != nil {
		b.logger.Warnw("Failed to renew clock connection after port change", "error", err)
		return
	}

	b.swapClock(clock)

	// pick the pulse train back up if the transport was already rolling
	if b.session.Playing() {
		clock.Start()
	}

	b.logger.Debug("Renewed clock connection successfully")
}

func (b *Bridge) currentClock() *midiclock.Clock {
	b.clockLock.Lock()
	defer b.clockLock.Unlock()

	return b.clock
}

func (b *Bridge) swapClock(clock *midiclock.Clock) {
	b.clockLock.Lock()
	defer b.clockLock.Unlock()

	b.clock = clock
}

func (b *Bridge) run() {
	b.logger.Info("Run loop starting")

	if b.version != "" {
		b.logger.Infow("Running version", "version", b.version)
	}

	// watch the config file for changes
	go b.config.WatchConfigFileChanges()

	// drive the controller
	go b.pollLoop()

	// wait until stopped (gracefully)
	<-b.stopChannel
	b.logger.Debug("Stop channel signaled, terminating")

	if err := b.stop(); err != nil {
		b.logger.Warnw("Failed to stop tapclock", "error", err)
		os.Exit(1)
	} else {
		// exit with 0
		os.Exit(0)
	}
}

// pollLoop owns the controller: every input frame, event dispatch and LED
// write happens on this goroutine.
func (b *Bridge) pollLoop() {
	defer b.recoverFromPanic()

	b.logger.Debug("Poll loop starting")

	for {
		if err := b.controller.PollOnce(); err != nil {
			b.logger.Errorw("Failed to poll controller", "error", err)
			b.notifier.Notify("Lost connection to your X1!",
				"Please make sure it's plugged in, then relaunch tapclock.")

			b.signalStop()

			return
		}

		b.updateFeedback()

		time.Sleep(pollInterval)
	}
}

func (b *Bridge) handleButton(state x1.State, event x1.ButtonEvent, at time.Time, leds *x1.Leds) {
	if event.Kind != x1.ButtonPressed {
		return
	}

	role, ok := b.config.Bindings.roleFor(event.ID, event.Modifiers.Shift)
	if !ok {
		return
	}

	if b.verbose {
		b.logger.Debugw("Handling bound button press", "button", event.ID, "role", role)
	}

	switch role {
	case bindingRoleTap:
		b.handleTap(at, leds)
	case bindingRolePlay:
		b.handlePlayToggle(at, leds)
	}
}

func (b *Bridge) handleTap(at time.Time, leds *x1.Leds) {
	if bpm, ok := b.tapper.Tap(at); ok {
		b.session.SetTempo(bpm)
		b.currentClock().SetBPM(bpm)

		if !b.session.Playing() {
			b.session.SetPlaying(true)
			b.currentClock().Start()
			b.logger.Infow("Clock started", "bpm", bpm)
		} else {
			b.logger.Infow("Tempo set", "bpm", bpm)
		}
	}

	// every tap gives immediate visual feedback, estimate or not
	b.feedback.flash(at)
	leds.Set(tapLedIndex, x1.LedBright)
	b.feedback.current = x1.LedBright
}

func (b *Bridge) handlePlayToggle(at time.Time, leds *x1.Leds) {
	playing := !b.session.Playing()
	b.session.SetPlaying(playing)

	if playing {
		b.currentClock().Start()
		b.logger.Infow("Clock started", "bpm", b.session.Tempo())

		b.feedback.flash(at)
		leds.Set(tapLedIndex, x1.LedBright)
		b.feedback.current = x1.LedBright
	} else {
		b.currentClock().Stop()
		b.logger.Info("Clock stopped")

		b.feedback.cancelFlash()
		leds.Set(tapLedIndex, x1.LedDim)
		b.feedback.current = x1.LedDim
	}
}

// updateFeedback recomputes the tempo indicator and pushes it only when the
// level changed, so the LED frame isn't rewritten every cycle.
func (b *Bridge) updateFeedback() {
	phase := b.session.PhaseAt(b.session.Now(), b.feedback.quantum)
	level := b.feedback.desired(time.Now(), b.session.Playing(), phase)

	if level != b.feedback.current {
		b.controller.SetLed(tapLedIndex, level)
		b.feedback.current = level
	}
}

func (b *Bridge) signalStop() {
	b.logger.Debug("Signalling stop channel")
	b.stopChannel <- true
}

func (b *Bridge) stop() error {
	b.logger.Info("Stopping")

	b.config.StopWatchingConfigFile()

	var closeErrors error

	// the clock sends a final stop marker if it was still running
	if err := b.currentClock().Close(); err != nil {
		closeErrors = multierr.Append(closeErrors, fmt.Errorf("close clock: %w", err))
	}

	midiclock.CloseDriver()

	if err := b.controller.Close(); err != nil {
		closeErrors = multierr.Append(closeErrors, fmt.Errorf("close controller: %w", err))
	}

	if closeErrors != nil {
		b.logger.Errorw("Failed to close connections", "error", closeErrors)
		return closeErrors
	}

	// attempt to sync on exit - this won't necessarily work but can't harm
	b.logger.Sync()

	return nil
}
