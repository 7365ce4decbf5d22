package device

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// ErrSimulatedRead is returned by ScriptedSensor for negative script entries.
var ErrSimulatedRead = errors.New("simulated sensor read failure")

// ScriptedSensor replays a fixed sequence of raw codes, wrapping around at
// the end. A negative entry simulates a failed read.
type ScriptedSensor struct {
	mu     sync.Mutex
	script []int
	next   int
}

// NewScriptedSensor returns a sensor replaying script. An empty script
// always reads 0.
func NewScriptedSensor(script []int) *ScriptedSensor {
	s := make([]int, len(script))
	copy(s, script)
	return &ScriptedSensor{script: s}
}

// ReadRawCode returns the next scripted code.
func (s *ScriptedSensor) ReadRawCode() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.script) == 0 {
		return 0, nil
	}
	code := s.script[s.next]
	s.next = (s.next + 1) % len(s.script)
	if code < 0 {
		return 0, ErrSimulatedRead
	}
	return code, nil
}

// ParseScript parses raw codes separated by commas or whitespace. "5*6"
// repeats code 5 six times and "#" starts a comment running to the end of
// the line.
func ParseScript(text string) ([]int, error) {
	var fields []string
	for _, line := range strings.Split(text, "\n") {
		line, _, _ = strings.Cut(line, "#")
		fields = append(fields, strings.FieldsFunc(line, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t' || r == '\r'
		})...)
	}
	var script []int
	for _, f := range fields {
		codeText, countText, repeated := strings.Cut(f, "*")
		code, err := strconv.Atoi(codeText)
		if err != nil {
			return nil, fmt.Errorf("bad code %q: %w", f, err)
		}
		count := 1
		if repeated {
			count, err = strconv.Atoi(countText)
			if err != nil || count < 1 {
				return nil, fmt.Errorf("bad repeat count in %q", f)
			}
		}
		for i := 0; i < count; i++ {
			script = append(script, code)
		}
	}
	return script, nil
}

// LoadScript reads a script file for ParseScript.
func LoadScript(path string) ([]int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixtures: %w", err)
	}
	return ParseScript(string(data))
}

// SimKicker is an in-memory kicker motor. Each move reports as running for
// a fixed number of IsMoving polls before it settles.
type SimKicker struct {
	mu           sync.Mutex
	position     int
	hold         bool
	pollsPerMove int
	remaining    int
	moves        int
	failAfter    int
}

// NewSimKicker returns a kicker whose moves take pollsPerMove polls to settle.
func NewSimKicker(pollsPerMove int) *SimKicker {
	return &SimKicker{pollsPerMove: pollsPerMove}
}

// FailAfter makes every move after the first n fail. Zero disables it.
func (k *SimKicker) FailAfter(n int) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.failAfter = n
}

// MoveTo records the move.
func (k *SimKicker) MoveTo(relAngle, speed int) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if speed <= 0 {
		return fmt.Errorf("invalid speed %d", speed)
	}
	if k.failAfter > 0 && k.moves >= k.failAfter {
		return errors.New("simulated motor fault")
	}
	k.position += relAngle
	k.remaining = k.pollsPerMove
	k.moves++
	return nil
}

// IsMoving counts down the current move.
func (k *SimKicker) IsMoving() (bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.remaining > 0 {
		k.remaining--
		return true, nil
	}
	return false, nil
}

// SetHoldOnStop records the hold flag.
func (k *SimKicker) SetHoldOnStop() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.hold = true
	return nil
}

// ResetZeroPosition zeroes the position.
func (k *SimKicker) ResetZeroPosition() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.position = 0
	return nil
}

// Position returns the encoder position.
func (k *SimKicker) Position() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.position
}

// Moves returns the number of successful moves.
func (k *SimKicker) Moves() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.moves
}

// Holding reports whether hold-on-stop was set.
func (k *SimKicker) Holding() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.hold
}
