package x1

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/gousb"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Fixed identifiers of the Kontrol X1 Mk1. The first enumerated device that
// matches is used.
const (
	VendorID  = 0x17cc
	ProductID = 0x2305
)

const (
	usbConfig     = 1
	usbInterface  = 0
	usbAltSetting = 0

	// endpoint numbers: frames arrive on bulk-in 0x84, LED frames leave on
	// bulk-out 0x01, and the write acknowledgment arrives on bulk-in 0x81
	frameEndpoint = 4
	ledEndpoint   = 1
	ackEndpoint   = 1

	// every transfer shares one bounded timeout
	ioTimeout = 50 * time.Millisecond
)

// usbTransport is the gousb-backed Transport used against real hardware.
type usbTransport struct {
	logger *zap.SugaredLogger

	ctx  *gousb.Context
	dev  *gousb.Device
	cfg  *gousb.Config
	intf *gousb.Interface

	frameIn *gousb.InEndpoint
	ledsOut *gousb.OutEndpoint
	ackIn   *gousb.InEndpoint

	timeout time.Duration
}

// openUSB locates the controller, claims its interface and resolves the
// three endpoints. Every failure is returned synchronously; nothing runs in
// the background yet.
func openUSB(logger *zap.SugaredLogger) (*usbTransport, error) {
	logger = logger.Named("usb")

	t := &usbTransport{
		logger:  logger,
		ctx:     gousb.NewContext(),
		timeout: ioTimeout,
	}

	dev, err := t.ctx.OpenDeviceWithVIDPID(VendorID, ProductID)
	if err != nil {
		t.Close()
		return nil, fmt.Errorf("open device: %w", err)
	}

	if dev == nil {
		t.Close()
		return nil, ErrNoDevice
	}

	t.dev = dev

	// take the interface away from the kernel HID driver where applicable
	if err := dev.SetAutoDetach(true); err != nil {
		logger.Warnw("Failed to enable kernel driver auto-detach", "error", err)
	}

	if t.cfg, err = dev.Config(usbConfig); err != nil {
		t.Close()
		return nil, fmt.Errorf("claim configuration %d: %w", usbConfig, err)
	}

	if t.intf, err = t.cfg.Interface(usbInterface, usbAltSetting); err != nil {
		t.Close()
		return nil, fmt.Errorf("claim interface %d: %w", usbInterface, err)
	}

	if t.frameIn, err = t.intf.InEndpoint(frameEndpoint); err != nil {
		t.Close()
		return nil, fmt.Errorf("resolve frame endpoint: %w", err)
	}

	if t.ledsOut, err = t.intf.OutEndpoint(ledEndpoint); err != nil {
		t.Close()
		return nil, fmt.Errorf("resolve LED endpoint: %w", err)
	}

	if t.ackIn, err = t.intf.InEndpoint(ackEndpoint); err != nil {
		t.Close()
		return nil, fmt.Errorf("resolve ack endpoint: %w", err)
	}

	logger.Infow("Connected",
		"vendorID", fmt.Sprintf("%04x", VendorID),
		"productID", fmt.Sprintf("%04x", ProductID))

	return t, nil
}

func (t *usbTransport) ReadFrame(p []byte) (int, error) {
	return t.readBulk(t.frameIn, p)
}

func (t *usbTransport) ReadAck(p []byte) (int, error) {
	return t.readBulk(t.ackIn, p)
}

func (t *usbTransport) WriteLeds(p []byte) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	n, err := t.ledsOut.WriteContext(ctx, p)
	if isTimeout(err) {
		return n, ErrTimeout
	}

	return n, err
}

func (t *usbTransport) readBulk(ep *gousb.InEndpoint, p []byte) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	n, err := ep.ReadContext(ctx, p)
	if isTimeout(err) {
		return n, ErrTimeout
	}

	return n, err
}

// Close releases the claimed interface, configuration, device and context in
// that order. Safe to call on a partially opened transport.
func (t *usbTransport) Close() error {
	var err error

	if t.intf != nil {
		t.intf.Close()
		t.intf = nil
	}

	if t.cfg != nil {
		err = multierr.Append(err, t.cfg.Close())
		t.cfg = nil
	}

	if t.dev != nil {
		err = multierr.Append(err, t.dev.Close())
		t.dev = nil
	}

	if t.ctx != nil {
		err = multierr.Append(err, t.ctx.Close())
		t.ctx = nil
	}

	return err
}

// isTimeout folds the two shapes a bounded transfer deadline can take into
// one answer: the context deadline and libusb's own timeout condition.
func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, gousb.ErrorTimeout) ||
		errors.Is(err, gousb.TransferTimedOut)
}
