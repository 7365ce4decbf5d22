// Package control runs the sorter's two periodic loops: the sampling loop
// that feeds sensor readings into the debounce windows, and the control loop
// that polls the decision sensor's stable category and drives the kicker.
package control

import (
	"context"
	"fmt"
	"time"

	"github.com/banshee-data/brick-sorter/internal/color"
	"github.com/banshee-data/brick-sorter/internal/debounce"
	"github.com/banshee-data/brick-sorter/internal/monitoring"
	"github.com/banshee-data/brick-sorter/internal/timeutil"
)

// SensorPort is a colour sensor producing raw codes.
type SensorPort interface {
	ReadRawCode() (int, error)
}

// Sampler is the sampling loop. It is the only writer of its states.
type Sampler struct {
	sensors []SensorPort
	states  []*debounce.Shared
	period  time.Duration
	clock   timeutil.Clock
	failing []bool
}

// NewSampler pairs each sensor with the shared state it feeds.
func NewSampler(sensors []SensorPort, states []*debounce.Shared, period time.Duration, clock timeutil.Clock) (*Sampler, error) {
	if len(sensors) != len(states) {
		return nil, fmt.Errorf("sampler needs one state per sensor, got %d sensors and %d states", len(sensors), len(states))
	}
	if period <= 0 {
		return nil, fmt.Errorf("sample period must be positive, got %v", period)
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Sampler{
		sensors: sensors,
		states:  states,
		period:  period,
		clock:   clock,
		failing: make([]bool, len(sensors)),
	}, nil
}

// Step reads every sensor once and writes the classification to its state.
// A failed read is recorded as Unclassified; it is logged when a run of
// failures starts and when it ends, not on every sample.
func (s *Sampler) Step() {
	for i, sensor := range s.sensors {
		code, err := sensor.ReadRawCode()
		if err != nil {
			if !s.failing[i] {
				monitoring.Warnf("sensor %s read failed, treating as unclassified: %v", s.states[i].Name(), err)
				s.failing[i] = true
			}
			s.states[i].Write(color.Unclassified)
			continue
		}
		if s.failing[i] {
			monitoring.Logf("sensor %s reads recovered", s.states[i].Name())
			s.failing[i] = false
		}
		s.states[i].Write(color.Classify(code))
	}
}

// Run samples every period until ctx is cancelled.
func (s *Sampler) Run(ctx context.Context) error {
	ticker := s.clock.NewTicker(s.period)
	defer ticker.Stop()

	s.Step()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
			s.Step()
		}
	}
}

// States returns the shared states fed by this sampler.
func (s *Sampler) States() []*debounce.Shared {
	return s.states
}
