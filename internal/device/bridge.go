package device

import (
	"fmt"
	"strconv"
)

// Sensor is a colour sensor on the bridge, addressed by its input port.
type Sensor struct {
	link  *Link
	input int
}

// NewSensor returns the sensor on the given input port (1-4).
func NewSensor(link *Link, input int) *Sensor {
	return &Sensor{link: link, input: input}
}

// ReadRawCode returns the sensor's colour code.
func (s *Sensor) ReadRawCode() (int, error) {
	reply, err := s.link.Query(fmt.Sprintf("COL %d", s.input))
	if err != nil {
		return 0, err
	}
	code, err := strconv.Atoi(reply)
	if err != nil {
		return 0, fmt.Errorf("sensor %d: bad colour code %q", s.input, reply)
	}
	return code, nil
}

// Kicker is a tacho motor on the bridge, addressed by its output port.
type Kicker struct {
	link   *Link
	output string
}

// NewKicker returns the motor on the given output port ("A"-"D").
func NewKicker(link *Link, output string) *Kicker {
	return &Kicker{link: link, output: output}
}

// MoveTo runs the motor by relAngle degrees at speed.
func (k *Kicker) MoveTo(relAngle, speed int) error {
	return k.link.Exec(fmt.Sprintf("MOV %s %d %d", k.output, relAngle, speed))
}

// IsMoving reports whether the motor's running flag is set.
func (k *Kicker) IsMoving() (bool, error) {
	reply, err := k.link.Query(fmt.Sprintf("RUN? %s", k.output))
	if err != nil {
		return false, err
	}
	switch reply {
	case "1":
		return true, nil
	case "0":
		return false, nil
	default:
		return false, fmt.Errorf("motor %s: bad running flag %q", k.output, reply)
	}
}

// SetHoldOnStop sets the motor's stop action to hold.
func (k *Kicker) SetHoldOnStop() error {
	return k.link.Exec(fmt.Sprintf("HOLD %s", k.output))
}

// ResetZeroPosition zeroes the motor's encoder.
func (k *Kicker) ResetZeroPosition() error {
	return k.link.Exec(fmt.Sprintf("ZERO %s", k.output))
}
