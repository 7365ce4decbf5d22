// Package kicker turns a debounced classification into a timed kicker
// trajectory: prime, dwell until the object reaches the kicker, strike, and
// return to rest.
package kicker

import (
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/brick-sorter/internal/color"
	"github.com/banshee-data/brick-sorter/internal/monitoring"
	"github.com/banshee-data/brick-sorter/internal/timeutil"
)

// Params are the motion tunables. They are rig-specific and opaque to the
// scheduler: angles in encoder degrees, speeds in controller units.
type Params struct {
	PrimeAngle    int
	KickAngle     int
	MaxSpeed      int
	SubMoves      int
	StrikeSpeed   int
	ReturnSpeed   int
	StrikeHold    time.Duration
	SettleTimeout time.Duration
	SettlePoll    time.Duration
}

// DefaultParams returns the tunables of the reference rig.
func DefaultParams() Params {
	return Params{
		PrimeAngle:    170,
		KickAngle:     45,
		MaxSpeed:      120,
		SubMoves:      5,
		StrikeSpeed:   500,
		ReturnSpeed:   500,
		StrikeHold:    500 * time.Millisecond,
		SettleTimeout: 1000 * time.Millisecond,
		SettlePoll:    10 * time.Millisecond,
	}
}

// Scheduler executes kicks. It keeps no state between kicks and is safe to
// reuse, but the single kicker means callers run one kick at a time.
type Scheduler struct {
	params     Params
	directions DirectionMap
	clock      timeutil.Clock
}

// NewScheduler returns a scheduler using the given tunables and direction
// map. A nil clock means the real clock.
func NewScheduler(params Params, directions DirectionMap, clock timeutil.Clock) *Scheduler {
	if params.SubMoves < 1 {
		params.SubMoves = 1
	}
	if params.SettlePoll <= 0 {
		params.SettlePoll = DefaultParams().SettlePoll
	}
	if directions == nil {
		directions = DefaultDirectionMap()
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Scheduler{
		params:     params,
		directions: directions.Clone(),
		clock:      clock,
	}
}

// Params returns the scheduler's tunables.
func (s *Scheduler) Params() Params {
	return s.params
}

// Direction returns the direction the scheduler would kick c.
func (s *Scheduler) Direction(c color.Category) Direction {
	return s.directions.Direction(c)
}

// SettleOutcome is the result of waiting for a sub-move to finish.
type SettleOutcome int

const (
	Settled SettleOutcome = iota
	SettleTimedOut
)

// Report describes one Execute call. On an ActuationError it holds what was
// done before the failure; Displacement is then the kicker's offset from
// where the kick started.
type Report struct {
	KickID         string         `json:"kick_id,omitempty"`
	Category       color.Category `json:"category"`
	Direction      Direction      `json:"direction"`
	StartedAt      time.Time      `json:"started_at"`
	Deadline       time.Time      `json:"deadline"`
	StrikeAt       time.Time      `json:"strike_at,omitempty"`
	FinishedAt     time.Time      `json:"finished_at,omitempty"`
	PrimeElapsed   time.Duration  `json:"prime_elapsed"`
	Lateness       time.Duration  `json:"lateness"`
	Overrun        bool           `json:"overrun"`
	Moves          int            `json:"moves"`
	SettleTimeouts int            `json:"settle_timeouts"`
	Displacement   int            `json:"displacement"`
}

// Kicked reports whether the trajectory was started.
func (r Report) Kicked() bool {
	return r.Direction != Pass
}

// plan is the per-kick state: the direction, the running displacement and
// the deadline the strike is aimed at.
type plan struct {
	act      Actuator
	dir      int
	cum      int
	start    time.Time
	deadline time.Time
	report   *Report
}

// Execute runs one kick for category against act and blocks until it has
// finished. target is the time from now at which the strike should land.
//
// A Pass direction returns immediately without touching the actuator.
// Settle timeouts and a late prime are logged and the kick carries on;
// an actuator failure aborts the remaining phases and is returned as an
// *ActuationError.
func (s *Scheduler) Execute(act Actuator, target time.Duration, category color.Category) (Report, error) {
	dir := s.directions.Direction(category)
	report := Report{Category: category, Direction: dir}
	if dir == Pass {
		return report, nil
	}

	start := s.clock.Now()
	p := &plan{
		act:      act,
		dir:      int(dir),
		start:    start,
		deadline: start.Add(target),
		report:   &report,
	}
	report.KickID = uuid.NewString()
	report.StartedAt = start
	report.Deadline = p.deadline

	monitoring.Logf("kick %s: %s direction %d, strike due in %v", report.KickID, category, dir, target)

	for _, phase := range []func(*plan) error{s.prime, s.dwell, s.strike, s.ret} {
		if err := phase(p); err != nil {
			report.Displacement = p.cum
			report.FinishedAt = s.clock.Now()
			monitoring.Logf("kick %s aborted at displacement %d: %v", report.KickID, p.cum, err)
			return report, err
		}
	}

	report.Displacement = p.cum
	report.FinishedAt = s.clock.Now()
	monitoring.Logf("kick %s done: struck %v after start (lateness %v), %d settle timeouts",
		report.KickID, report.StrikeAt.Sub(start), report.Lateness, report.SettleTimeouts)
	return report, nil
}

// prime rotates away from the strike side in SubMoves steps with falling
// speed so the arm decelerates into the primed position.
func (s *Scheduler) prime(p *plan) error {
	n := s.params.SubMoves
	total := s.params.PrimeAngle * p.dir
	step := total / n
	for i := 0; i < n; i++ {
		angle := step
		if i == n-1 {
			angle = total - step*(n-1)
		}
		speed := s.params.MaxSpeed - i*(s.params.MaxSpeed/n)
		if speed < 1 {
			speed = 1
		}
		if err := s.move(p, PhasePrime, angle, speed); err != nil {
			return err
		}
	}
	p.report.PrimeElapsed = s.clock.Since(p.start)
	return nil
}

// dwell waits for the deadline. A prime that ran past it is not fatal: the
// strike goes ahead late.
func (s *Scheduler) dwell(p *plan) error {
	elapsed := s.clock.Since(p.start)
	if elapsed >= p.deadline.Sub(p.start) {
		p.report.Overrun = true
		monitoring.Warnf("kick %s: prime took %v, longer than the %v target; striking late",
			p.report.KickID, elapsed, p.deadline.Sub(p.start))
		return nil
	}
	s.clock.SleepUntil(p.deadline)
	return nil
}

// strike swings back through centre and on by KickAngle, then holds so the
// impact completes before the arm is moved again.
func (s *Scheduler) strike(p *plan) error {
	angle := -p.cum - s.params.KickAngle*p.dir
	if err := s.move(p, PhaseStrike, angle, s.params.StrikeSpeed); err != nil {
		return err
	}
	p.report.StrikeAt = s.clock.Now()
	p.report.Lateness = p.report.StrikeAt.Sub(p.deadline)
	s.clock.Sleep(s.params.StrikeHold)
	return nil
}

// ret brings the arm back to where the kick started.
func (s *Scheduler) ret(p *plan) error {
	return s.move(p, PhaseReturn, -p.cum, s.params.ReturnSpeed)
}

func (s *Scheduler) move(p *plan, phase Phase, angle, speed int) error {
	if err := p.act.MoveTo(angle, speed); err != nil {
		return &ActuationError{Phase: phase, Op: "move", Err: err}
	}
	p.cum += angle
	p.report.Moves++

	outcome, err := s.waitSettled(p.act)
	if err != nil {
		return &ActuationError{Phase: phase, Op: "poll moving", Err: err}
	}
	if outcome == SettleTimedOut {
		p.report.SettleTimeouts++
		monitoring.Warnf("kick %s: %s move of %d did not settle within %v, continuing",
			p.report.KickID, phase, angle, s.params.SettleTimeout)
	}
	return nil
}

// waitSettled polls the actuator until it stops or SettleTimeout elapses.
func (s *Scheduler) waitSettled(act Actuator) (SettleOutcome, error) {
	start := s.clock.Now()
	for {
		moving, err := act.IsMoving()
		if err != nil {
			return Settled, err
		}
		if !moving {
			return Settled, nil
		}
		if s.clock.Since(start) >= s.params.SettleTimeout {
			return SettleTimedOut, nil
		}
		s.clock.Sleep(s.params.SettlePoll)
	}
}
