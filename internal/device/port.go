// Package device adapts the sorter's sensor and kicker ports to the
// motor/sensor bridge firmware on the brick, reached over a serial line, and
// provides simulated devices for running without hardware.
package device

import (
	"fmt"
	"io"
	"strings"
	"time"

	"go.bug.st/serial"
)

// SerialPorter defines the minimal interface needed for a serial port.
// This abstraction enables unit testing without real serial hardware.
type SerialPorter interface {
	io.ReadWriter
	io.Closer
}

// TimeoutSerialPorter is a port whose reads can be bounded. Real ports
// implement it; Link relies on it to notice Close on an idle line.
type TimeoutSerialPorter interface {
	SerialPorter
	SetReadTimeout(timeout time.Duration) error
}

// PortOptions describes the serial connection parameters used when opening a
// real serial port.
type PortOptions struct {
	BaudRate int    `json:"baud_rate"`
	DataBits int    `json:"data_bits"`
	StopBits int    `json:"stop_bits"`
	Parity   string `json:"parity"`
	// ReplyTimeout bounds each command/reply exchange with the bridge.
	ReplyTimeout time.Duration `json:"reply_timeout"`
}

const (
	// DefaultBaudRate is the bridge firmware's line speed.
	DefaultBaudRate = 115200

	// maxReplyTimeout caps ReplyTimeout so one dead command cannot use up
	// the dwell before a strike.
	maxReplyTimeout = 2 * time.Second

	// portReadTimeout is the OS-level read timeout. It only needs to be short
	// enough for the reader to notice Close; replies are bounded by
	// ReplyTimeout.
	portReadTimeout = 50 * time.Millisecond
)

// Normalize validates the options and applies defaults for any unset values.
func (o PortOptions) Normalize() (PortOptions, error) {
	opts := o

	if opts.BaudRate <= 0 {
		opts.BaudRate = DefaultBaudRate
	}

	if opts.DataBits == 0 {
		opts.DataBits = 8
	}
	if opts.DataBits < 5 || opts.DataBits > 8 {
		return opts, fmt.Errorf("invalid data bits %d: must be between 5 and 8", opts.DataBits)
	}

	if opts.StopBits == 0 {
		opts.StopBits = 1
	}
	if opts.StopBits != 1 && opts.StopBits != 2 {
		return opts, fmt.Errorf("invalid stop bits %d: supported values are 1 or 2", opts.StopBits)
	}

	parity := strings.TrimSpace(strings.ToUpper(opts.Parity))
	switch parity {
	case "", "N", "NONE":
		parity = "N"
	case "E", "EVEN":
		parity = "E"
	case "O", "ODD":
		parity = "O"
	default:
		return opts, fmt.Errorf("unsupported parity %q: expected N, E, or O", opts.Parity)
	}

	opts.Parity = parity

	switch {
	case opts.ReplyTimeout == 0:
		opts.ReplyTimeout = DefaultReplyTimeout
	case opts.ReplyTimeout < 0:
		return opts, fmt.Errorf("invalid reply timeout %v: must be positive", opts.ReplyTimeout)
	case opts.ReplyTimeout > maxReplyTimeout:
		return opts, fmt.Errorf("reply timeout %v exceeds %v", opts.ReplyTimeout, maxReplyTimeout)
	}

	return opts, nil
}

// SerialMode converts the port options into the serial.Mode structure required by
// go.bug.st/serial when opening a port.
func (o PortOptions) SerialMode() (*serial.Mode, error) {
	opts, err := o.Normalize()
	if err != nil {
		return nil, err
	}

	mode := &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: opts.DataBits,
	}

	switch opts.StopBits {
	case 2:
		mode.StopBits = serial.TwoStopBits
	default:
		mode.StopBits = serial.OneStopBit
	}

	switch opts.Parity {
	case "E":
		mode.Parity = serial.EvenParity
	case "O":
		mode.Parity = serial.OddParity
	default:
		mode.Parity = serial.NoParity
	}

	return mode, nil
}

// OpenSerial opens the bridge at path and wraps it in a Link.
func OpenSerial(path string, opts PortOptions) (*Link, error) {
	opts, err := opts.Normalize()
	if err != nil {
		return nil, err
	}
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	return newBoundedLink(port, opts.ReplyTimeout)
}

// newBoundedLink sets the port's read timeout, if it supports one, and
// wraps it in a Link.
func newBoundedLink(port SerialPorter, replyTimeout time.Duration) (*Link, error) {
	if tp, ok := port.(TimeoutSerialPorter); ok {
		if err := tp.SetReadTimeout(portReadTimeout); err != nil {
			port.Close()
			return nil, fmt.Errorf("failed to set read timeout: %w", err)
		}
	}
	return NewLinkWithTimeout(port, replyTimeout), nil
}
