// Package color maps raw colour-sensor codes to the categories the sorter
// makes decisions on.
package color

import (
	"fmt"
	"strings"
)

// Category is the semantic colour of an object seen by a sensor.
type Category uint8

const (
	Unclassified Category = iota
	Black
	Blue
	Green
	Yellow
	Red
	White
	Brown
)

var categoryNames = map[Category]string{
	Unclassified: "unclassified",
	Black:        "black",
	Blue:         "blue",
	Green:        "green",
	Yellow:       "yellow",
	Red:          "red",
	White:        "white",
	Brown:        "brown",
}

// All returns every category, Unclassified first.
func All() []Category {
	return []Category{Unclassified, Black, Blue, Green, Yellow, Red, White, Brown}
}

// Classify maps a raw sensor code to a Category. Codes outside 0-7,
// including the sensor's error sentinels, are Unclassified.
func Classify(raw int) Category {
	switch raw {
	case 1:
		return Black
	case 2:
		return Blue
	case 3:
		return Green
	case 4:
		return Yellow
	case 5:
		return Red
	case 6:
		return White
	case 7:
		return Brown
	default:
		return Unclassified
	}
}

// String returns the lower-case name of the category.
func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return fmt.Sprintf("category(%d)", uint8(c))
}

// ParseCategory parses a category name case-insensitively. "none" is
// accepted as an alias for Unclassified.
func ParseCategory(s string) (Category, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "none" {
		return Unclassified, nil
	}
	for c, n := range categoryNames {
		if n == name {
			return c, nil
		}
	}
	return Unclassified, fmt.Errorf("unknown colour category %q", s)
}

// MarshalText implements encoding.TextMarshaler so categories render by name
// in JSON status output and can be used as map keys.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Category) UnmarshalText(text []byte) error {
	parsed, err := ParseCategory(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
