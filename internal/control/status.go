package control

import (
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/brick-sorter/internal/color"
	"github.com/banshee-data/brick-sorter/internal/kicker"
)

// latenessSamples bounds the strike lateness history kept for statistics.
const latenessSamples = 100

// Status is a snapshot of the control loop.
type Status struct {
	Polls          int64            `json:"polls"`
	Kicks          int64            `json:"kicks"`
	Failures       int64            `json:"failures"`
	Overruns       int64            `json:"overruns"`
	SettleTimeouts int64            `json:"settle_timeouts"`
	Kicking        bool             `json:"kicking"`
	LastSeen       color.Category   `json:"last_seen"`
	KickStartedAt  time.Time        `json:"kick_started_at,omitempty"`
	LastKick       *kicker.Report   `json:"last_kick,omitempty"`
	LastError      string           `json:"last_error,omitempty"`
	PerCategory    map[string]int64 `json:"per_category"`
	Lateness       LatenessStats    `json:"lateness"`
}

// LatenessStats summarises how far strikes landed from their deadline over
// the recent kicks. Positive values are late.
type LatenessStats struct {
	Count    int     `json:"count"`
	MeanMs   float64 `json:"mean_ms"`
	StdDevMs float64 `json:"stddev_ms"`
	MaxMs    float64 `json:"max_ms"`
}

type statusTracker struct {
	mu       sync.RWMutex
	status   Status
	lateness []float64
}

func newStatusTracker() *statusTracker {
	return &statusTracker{
		status: Status{PerCategory: map[string]int64{}},
	}
}

func (t *statusTracker) recordPoll(c color.Category) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.Polls++
	t.status.LastSeen = c
}

func (t *statusTracker) startKick(at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.Kicking = true
	t.status.KickStartedAt = at
}

func (t *statusTracker) finishKick(r kicker.Report, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.status.Kicking = false
	report := r
	t.status.LastKick = &report
	t.status.SettleTimeouts += int64(r.SettleTimeouts)
	if r.Overrun {
		t.status.Overruns++
	}
	if err != nil {
		t.status.Failures++
		t.status.LastError = err.Error()
		return
	}

	t.status.Kicks++
	t.status.PerCategory[r.Category.String()]++
	t.lateness = append(t.lateness, float64(r.Lateness)/float64(time.Millisecond))
	if len(t.lateness) > latenessSamples {
		t.lateness = t.lateness[len(t.lateness)-latenessSamples:]
	}
	t.status.Lateness = summarise(t.lateness)
}

func summarise(samples []float64) LatenessStats {
	s := LatenessStats{Count: len(samples)}
	if len(samples) == 0 {
		return s
	}
	if len(samples) == 1 {
		s.MeanMs = samples[0]
	} else {
		s.MeanMs, s.StdDevMs = stat.MeanStdDev(samples, nil)
	}
	s.MaxMs = samples[0]
	for _, v := range samples[1:] {
		if v > s.MaxMs {
			s.MaxMs = v
		}
	}
	return s
}

func (t *statusTracker) snapshot() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := t.status
	if t.status.LastKick != nil {
		report := *t.status.LastKick
		out.LastKick = &report
	}
	out.PerCategory = make(map[string]int64, len(t.status.PerCategory))
	for k, v := range t.status.PerCategory {
		out.PerCategory[k] = v
	}
	return out
}
