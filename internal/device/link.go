package device

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banshee-data/brick-sorter/internal/monitoring"
)

var (
	// ErrWriteFailed is returned when a command was only partly written.
	ErrWriteFailed = errors.New("failed to write to serial port")
	// ErrDeviceResponse is wrapped around ERR replies from the bridge.
	ErrDeviceResponse = errors.New("device reported an error")
	// ErrReplyTimeout is returned when the bridge does not answer a command
	// with a complete line in time.
	ErrReplyTimeout = errors.New("no reply from device")
)

// DefaultReplyTimeout bounds how long Query waits for the bridge's answer.
const DefaultReplyTimeout = 250 * time.Millisecond

// Link is a request/response line protocol to the bridge firmware. Each
// command is one line; the bridge answers every command with exactly one
// line, either a value, "OK", or "ERR <reason>".
//
// The sampling and control loops share one link, so Query serialises whole
// exchanges. Every exchange is bounded by the reply timeout so a lost reply
// fails one command instead of stalling both loops.
type Link struct {
	mu      sync.Mutex
	port    SerialPorter
	timeout time.Duration
	lines   chan string
	readErr error // set before lines is closed
	closed  atomic.Bool

	// replies still owed to commands that timed out; a late one must not
	// be taken as the answer to the next command
	abandoned int
}

// NewLink wraps an open port with DefaultReplyTimeout.
func NewLink(port SerialPorter) *Link {
	return NewLinkWithTimeout(port, DefaultReplyTimeout)
}

// NewLinkWithTimeout wraps an open port, failing any command whose reply
// takes longer than timeout.
func NewLinkWithTimeout(port SerialPorter, timeout time.Duration) *Link {
	if timeout <= 0 {
		timeout = DefaultReplyTimeout
	}
	l := &Link{
		port:    port,
		timeout: timeout,
		lines:   make(chan string, 8),
	}
	go l.readLines()
	return l
}

// readLines feeds complete reply lines to Query until the port fails or is
// closed.
func (l *Link) readLines() {
	reader := bufio.NewReader(idleReader{link: l})
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			l.readErr = err
			close(l.lines)
			return
		}
		l.lines <- line
	}
}

// idleReader hides the empty reads a port returns when its read timeout
// expires, so bufio never gives up with io.ErrNoProgress on a quiet line.
type idleReader struct {
	link *Link
}

func (r idleReader) Read(p []byte) (int, error) {
	for {
		n, err := r.link.port.Read(p)
		if n > 0 || err != nil {
			return n, err
		}
		if r.link.closed.Load() {
			return 0, errors.New("link closed")
		}
	}
}

// Query sends command and returns the bridge's reply with the line ending
// stripped.
func (l *Link) Query(command string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.discardLateReplies()

	if !strings.HasSuffix(command, "\n") {
		command += "\n"
	}
	name := strings.TrimSpace(command)
	n, err := l.port.Write([]byte(command))
	if err != nil {
		return "", err
	}
	if n != len(command) {
		return "", ErrWriteFailed
	}

	timer := time.NewTimer(l.timeout)
	defer timer.Stop()

	var line string
	select {
	case got, ok := <-l.lines:
		if !ok {
			return "", fmt.Errorf("reading reply to %q: %w", name, l.readErr)
		}
		line = got
	case <-timer.C:
		l.abandoned++
		return "", fmt.Errorf("%w to %q within %v", ErrReplyTimeout, name, l.timeout)
	}

	reply := strings.TrimRight(line, "\r\n")
	if strings.HasPrefix(reply, "ERR") {
		return "", fmt.Errorf("%w: %s", ErrDeviceResponse, strings.TrimSpace(strings.TrimPrefix(reply, "ERR")))
	}
	return reply, nil
}

// discardLateReplies drops replies to timed-out commands that have arrived
// since. Replies that are still missing stay owed.
func (l *Link) discardLateReplies() {
	for l.abandoned > 0 {
		select {
		case line, ok := <-l.lines:
			if !ok {
				return
			}
			l.abandoned--
			monitoring.Logf("discarding late bridge reply %q", strings.TrimSpace(line))
		default:
			return
		}
	}
}

// Exec sends a command that is expected to answer OK.
func (l *Link) Exec(command string) error {
	reply, err := l.Query(command)
	if err != nil {
		return err
	}
	if reply != "OK" {
		return fmt.Errorf("unexpected reply to %q: %q", command, reply)
	}
	return nil
}

// Close closes the underlying port, which also stops the reader.
func (l *Link) Close() error {
	l.closed.Store(true)
	return l.port.Close()
}
