package kicker

import (
	"fmt"
)

// Actuator is the kicker motor as seen by the scheduler. Angles are
// relative motor-encoder degrees and speeds are in the controller's own
// units; the scheduler does not interpret either.
type Actuator interface {
	// MoveTo starts a move by relAngle degrees from the last commanded
	// position at the given speed.
	MoveTo(relAngle, speed int) error
	// IsMoving reports whether the motor is still running.
	IsMoving() (bool, error)
	// SetHoldOnStop makes the motor hold its angle when a move ends.
	SetHoldOnStop() error
	// ResetZeroPosition makes the current position the encoder zero.
	ResetZeroPosition() error
}

// Phase names a step of the kick trajectory.
type Phase string

const (
	PhasePrime  Phase = "prime"
	PhaseDwell  Phase = "dwell"
	PhaseStrike Phase = "strike"
	PhaseReturn Phase = "return"
	PhaseRezero Phase = "rezero"
)

// ActuationError reports a failed actuator command. A kick that fails with
// an ActuationError was abandoned mid-trajectory and the kicker is at an
// unknown offset until it is re-zeroed.
type ActuationError struct {
	Phase Phase
	Op    string
	Err   error
}

func (e *ActuationError) Error() string {
	return fmt.Sprintf("kicker %s: %s: %v", e.Phase, e.Op, e.Err)
}

func (e *ActuationError) Unwrap() error {
	return e.Err
}

// Rezero engages hold-on-stop and declares the current kicker position to be
// zero. Callers use it at startup and after an aborted kick, once the arm has
// been returned to centre.
func Rezero(act Actuator) error {
	if err := act.SetHoldOnStop(); err != nil {
		return &ActuationError{Phase: PhaseRezero, Op: "set hold on stop", Err: err}
	}
	if err := act.ResetZeroPosition(); err != nil {
		return &ActuationError{Phase: PhaseRezero, Op: "reset zero position", Err: err}
	}
	return nil
}
