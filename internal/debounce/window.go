// Package debounce smooths noisy per-sample colour classifications into a
// stable category and publishes it between the sampling and control loops.
package debounce

import (
	"github.com/banshee-data/brick-sorter/internal/color"
)

const (
	// DefaultWindowSize is the number of samples voted over.
	DefaultWindowSize = 10
	// DefaultConfidenceThreshold is the number of agreeing samples required
	// before a category is asserted.
	DefaultConfidenceThreshold = 3
	// historySize bounds the diagnostic trail of stable categories.
	historySize = 5
)

// Window is a sliding vote over the most recent classifications of one
// sensor. It is not safe for concurrent use; see Shared.
type Window struct {
	readings  []color.Category
	size      int
	threshold int
	stable    color.Category
	history   []color.Category
}

// NewWindow returns a window of the given size primed with Unclassified
// readings. Non-positive arguments fall back to the defaults.
func NewWindow(size, threshold int) *Window {
	if size <= 0 {
		size = DefaultWindowSize
	}
	if threshold <= 0 {
		threshold = DefaultConfidenceThreshold
	}
	readings := make([]color.Category, size, size+1)
	for i := range readings {
		readings[i] = color.Unclassified
	}
	return &Window{
		readings:  readings,
		size:      size,
		threshold: threshold,
		stable:    color.Unclassified,
	}
}

// Update appends a reading, evicting the oldest one beyond the window size,
// and recomputes the stable category.
//
// The candidate is the classified category with the highest count in the
// window. Candidates are scanned newest to oldest and the first one reaching
// the maximum count wins, so ties go to the most recently seen category.
// Unclassified readings never vote: the window starts full of them and would
// otherwise outvote every real sample until it had turned over.
func (w *Window) Update(reading color.Category) {
	w.readings = append(w.readings, reading)
	if len(w.readings) > w.size {
		w.readings = w.readings[1:]
	}

	candidate, best := color.Unclassified, 0
	for i := len(w.readings) - 1; i >= 0; i-- {
		c := w.readings[i]
		if c == color.Unclassified || c == candidate {
			continue
		}
		if n := w.count(c); n > best {
			candidate, best = c, n
		}
	}

	if candidate != color.Unclassified && best >= w.threshold {
		w.stable = candidate
	} else {
		w.stable = color.Unclassified
	}

	w.history = append(w.history, w.stable)
	if len(w.history) > historySize {
		w.history = w.history[len(w.history)-historySize:]
	}
}

func (w *Window) count(c color.Category) int {
	n := 0
	for _, r := range w.readings {
		if r == c {
			n++
		}
	}
	return n
}

// Stable returns the current debounced category.
func (w *Window) Stable() color.Category {
	return w.stable
}

// Size returns the configured window size.
func (w *Window) Size() int {
	return w.size
}

// Threshold returns the confidence threshold.
func (w *Window) Threshold() int {
	return w.threshold
}

// Readings returns a copy of the buffered readings, oldest first.
func (w *Window) Readings() []color.Category {
	out := make([]color.Category, len(w.readings))
	copy(out, w.readings)
	return out
}

// History returns a copy of the recent stable categories, oldest first.
func (w *Window) History() []color.Category {
	out := make([]color.Category, len(w.history))
	copy(out, w.history)
	return out
}
