package control

import (
	"context"
	"fmt"
	"time"

	"github.com/banshee-data/brick-sorter/internal/color"
	"github.com/banshee-data/brick-sorter/internal/debounce"
	"github.com/banshee-data/brick-sorter/internal/kicker"
	"github.com/banshee-data/brick-sorter/internal/monitoring"
	"github.com/banshee-data/brick-sorter/internal/timeutil"
)

// LoopConfig holds the control loop timing.
type LoopConfig struct {
	// PollPeriod is how often the decision sensor is read.
	PollPeriod time.Duration
	// KickTarget is the time from a decision to the strike.
	KickTarget time.Duration
}

// Loop is the control loop. It only reads the decision sensor's state and
// runs kicks synchronously, so one kick finishes before the next decision is
// taken. Objects that pass while a kick is running are not acted on unless
// their classification is still current at the next poll.
type Loop struct {
	state     *debounce.Shared
	scheduler *kicker.Scheduler
	actuator  kicker.Actuator
	cfg       LoopConfig
	clock     timeutil.Clock
	status    *statusTracker
	events    *EventHub
}

// NewLoop returns a control loop kicking with scheduler on actuator whenever
// state holds a classification.
func NewLoop(state *debounce.Shared, scheduler *kicker.Scheduler, actuator kicker.Actuator, cfg LoopConfig, clock timeutil.Clock) (*Loop, error) {
	if cfg.PollPeriod <= 0 {
		return nil, fmt.Errorf("poll period must be positive, got %v", cfg.PollPeriod)
	}
	if cfg.KickTarget < 0 {
		return nil, fmt.Errorf("kick target must not be negative, got %v", cfg.KickTarget)
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Loop{
		state:     state,
		scheduler: scheduler,
		actuator:  actuator,
		cfg:       cfg,
		clock:     clock,
		status:    newStatusTracker(),
		events:    NewEventHub(),
	}, nil
}

// Step polls the decision sensor once and, if it holds a classification
// that maps to a side, runs a kick to completion. The returned error is an
// *kicker.ActuationError when the kick was abandoned.
func (l *Loop) Step() (kicker.Report, error) {
	c := l.state.Read()
	l.status.recordPoll(c)
	if c == color.Unclassified || l.scheduler.Direction(c) == kicker.Pass {
		return kicker.Report{Category: c}, nil
	}

	monitoring.Logf("kicking a %s object", c)
	l.status.startKick(l.clock.Now())
	report, err := l.scheduler.Execute(l.actuator, l.cfg.KickTarget, c)
	l.status.finishKick(report, err)
	l.publish(report, err)
	return report, err
}

func (l *Loop) publish(report kicker.Report, err error) {
	e := Event{Kind: EventKick, At: l.clock.Now(), Report: &report}
	if err != nil {
		e.Kind = EventKickFailed
		e.Error = err.Error()
	}
	l.events.Publish(e)
}

// Run polls every PollPeriod until ctx is cancelled or a kick fails. After
// a failure the kicker's position is unknown; the caller must re-zero it
// before running the loop again.
func (l *Loop) Run(ctx context.Context) error {
	ticker := l.clock.NewTicker(l.cfg.PollPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
			if _, err := l.Step(); err != nil {
				return err
			}
		}
	}
}

// Events returns the hub the loop publishes kick events to.
func (l *Loop) Events() *EventHub {
	return l.events
}

// Status returns a copy of the loop's counters.
func (l *Loop) Status() Status {
	return l.status.snapshot()
}
