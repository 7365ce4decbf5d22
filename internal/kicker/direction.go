package kicker

import (
	"fmt"

	"github.com/banshee-data/brick-sorter/internal/color"
)

// Direction is the sign of the kicker rotation for a category: -1 and +1
// divert to opposite sides of the belt, 0 lets the object pass.
type Direction int8

const (
	Left  Direction = -1
	Pass  Direction = 0
	Right Direction = 1
)

// ParseDirection validates an integer direction from configuration.
func ParseDirection(v int) (Direction, error) {
	switch v {
	case -1, 0, 1:
		return Direction(v), nil
	default:
		return Pass, fmt.Errorf("direction must be -1, 0 or 1, got %d", v)
	}
}

// DirectionMap binds categories to kicker directions. Categories that are
// not present pass.
type DirectionMap map[color.Category]Direction

// DefaultDirectionMap returns the binding used on the reference rig. Other
// rigs wire their colours to sides differently and override it through
// configuration.
func DefaultDirectionMap() DirectionMap {
	return DirectionMap{
		color.Black:  Pass,
		color.Blue:   Right,
		color.Green:  Right,
		color.Yellow: Left,
		color.Red:    Left,
		color.White:  Pass,
		color.Brown:  Right,
	}
}

// Direction returns the direction for c. Unclassified always passes, even
// when the map was configured otherwise.
func (m DirectionMap) Direction(c color.Category) Direction {
	if c == color.Unclassified {
		return Pass
	}
	return m[c]
}

// Clone returns a copy of the map.
func (m DirectionMap) Clone() DirectionMap {
	out := make(DirectionMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
