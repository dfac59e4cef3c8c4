package midiclock

import (
	"errors"
	"fmt"
	"strings"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	// register the system MIDI driver
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// ErrPortNotFound means no MIDI output port matched the configured hint.
var ErrPortNotFound = errors.New("no matching MIDI output port")

// findOutPort picks the output port to drive. An empty hint selects the
// first available port, anything else is matched case-insensitively against
// the port names.
func findOutPort(hint string) (drivers.Out, error) {
	return matchOutPort(gomidi.GetOutPorts(), hint)
}

func matchOutPort(ports []drivers.Out, hint string) (drivers.Out, error) {
	if len(ports) == 0 {
		return nil, fmt.Errorf("%w: no MIDI output ports available", ErrPortNotFound)
	}

	if hint == "" {
		return ports[0], nil
	}

	needle := strings.ToLower(hint)
	for _, port := range ports {
		if strings.Contains(strings.ToLower(port.String()), needle) {
			return port, nil
		}
	}

	names := make([]string, 0, len(ports))
	for _, port := range ports {
		names = append(names, port.String())
	}

	return nil, fmt.Errorf("%w: %q (available: %s)", ErrPortNotFound, hint, strings.Join(names, ", "))
}

// openPort opens the port for writing and wraps it as a Conn.
func openPort(out drivers.Out) (Conn, error) {
	send, err := gomidi.SendTo(out)
	if err != nil {
		return nil, fmt.Errorf("open MIDI output port %q: %w", out.String(), err)
	}

	return &portConn{out: out, send: send}, nil
}

type portConn struct {
	out  drivers.Out
	send func(msg gomidi.Message) error
}

func (p *portConn) Send(msg gomidi.Message) error {
	return p.send(msg)
}

func (p *portConn) Close() error {
	return p.out.Close()
}

// CloseDriver releases the process-wide MIDI driver. Call once during
// shutdown, after every Clock has been closed.
func CloseDriver() {
	gomidi.CloseDriver()
}
