package debounce

import (
	"sync"

	"github.com/banshee-data/brick-sorter/internal/color"
)

// Shared owns one sensor's Window and hands its stable category from the
// sampling loop to the control loop.
//
// The sampling loop is the only writer and the control loop the only
// reader. Both hold the lock for a single window update or field read, so
// neither side waits on the other for more than that.
type Shared struct {
	name   string
	mu     sync.RWMutex
	window *Window
}

// WindowSnapshot is a point-in-time copy of a window for diagnostics.
type WindowSnapshot struct {
	Sensor    string           `json:"sensor"`
	Stable    color.Category   `json:"stable"`
	Readings  []color.Category `json:"readings"`
	History   []color.Category `json:"history"`
	Size      int              `json:"window_size"`
	Threshold int              `json:"confidence_threshold"`
}

// NewShared wraps a fresh window of the given size and threshold.
func NewShared(name string, size, threshold int) *Shared {
	return &Shared{
		name:   name,
		window: NewWindow(size, threshold),
	}
}

// Name returns the sensor label.
func (s *Shared) Name() string {
	return s.name
}

// Write feeds one classified sample through the window.
func (s *Shared) Write(reading color.Category) {
	s.mu.Lock()
	s.window.Update(reading)
	s.mu.Unlock()
}

// Read returns the latest stable category.
func (s *Shared) Read() color.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.window.Stable()
}

// Snapshot copies the window state. It is for diagnostics only; control
// decisions use Read.
func (s *Shared) Snapshot() WindowSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return WindowSnapshot{
		Sensor:    s.name,
		Stable:    s.window.Stable(),
		Readings:  s.window.Readings(),
		History:   s.window.History(),
		Size:      s.window.Size(),
		Threshold: s.window.Threshold(),
	}
}
