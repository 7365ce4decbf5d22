// Package config loads the sorter's tuning file.
//
// Every field is optional. Get* accessors fall back to the defaults of the
// reference rig, so a partial file only overrides what it names.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/banshee-data/brick-sorter/internal/color"
	"github.com/banshee-data/brick-sorter/internal/debounce"
	"github.com/banshee-data/brick-sorter/internal/kicker"
)

// DefaultConfigPath is the path to the canonical defaults file.
const DefaultConfigPath = "config/sorter.defaults.json"

// SorterConfig is the root configuration.
type SorterConfig struct {
	// Debounce
	WindowSize          *int `json:"window_size,omitempty"`
	ConfidenceThreshold *int `json:"confidence_threshold,omitempty"`

	// Kick trajectory
	PrimeAngle      *int `json:"prime_angle,omitempty"`
	KickAngle       *int `json:"kick_angle,omitempty"`
	MaxSpeed        *int `json:"max_speed,omitempty"`
	SubMoveCount    *int `json:"sub_move_count,omitempty"`
	StrikeSpeed     *int `json:"strike_speed,omitempty"`
	ReturnSpeed     *int `json:"return_speed,omitempty"`
	StrikeHoldMs    *int `json:"strike_hold_ms,omitempty"`
	SettleTimeoutMs *int `json:"settle_timeout_ms,omitempty"`
	SettlePollMs    *int `json:"settle_poll_ms,omitempty"`

	// Loops
	SamplePeriodMs       *int `json:"sample_period_ms,omitempty"`
	PollPeriodMs         *int `json:"poll_period_ms,omitempty"`
	KickTargetDurationMs *int `json:"kick_target_duration_ms,omitempty"`
	DecisionSensor       *int `json:"decision_sensor,omitempty"`

	// Directions binds colour names to -1, 0 or 1. Colours left out pass.
	Directions map[string]int `json:"direction_map,omitempty"`
}

func ptrInt(v int) *int { return &v }

// EmptySorterConfig returns a SorterConfig with all fields unset.
func EmptySorterConfig() *SorterConfig {
	return &SorterConfig{}
}

// DefaultSorterConfig returns a SorterConfig with every field set to its
// default value.
func DefaultSorterConfig() *SorterConfig {
	params := kicker.DefaultParams()
	directions := map[string]int{}
	for c, d := range kicker.DefaultDirectionMap() {
		directions[c.String()] = int(d)
	}
	return &SorterConfig{
		WindowSize:           ptrInt(debounce.DefaultWindowSize),
		ConfidenceThreshold:  ptrInt(debounce.DefaultConfidenceThreshold),
		PrimeAngle:           ptrInt(params.PrimeAngle),
		KickAngle:            ptrInt(params.KickAngle),
		MaxSpeed:             ptrInt(params.MaxSpeed),
		SubMoveCount:         ptrInt(params.SubMoves),
		StrikeSpeed:          ptrInt(params.StrikeSpeed),
		ReturnSpeed:          ptrInt(params.ReturnSpeed),
		StrikeHoldMs:         ptrInt(int(params.StrikeHold / time.Millisecond)),
		SettleTimeoutMs:      ptrInt(int(params.SettleTimeout / time.Millisecond)),
		SettlePollMs:         ptrInt(int(params.SettlePoll / time.Millisecond)),
		SamplePeriodMs:       ptrInt(16),
		PollPeriodMs:         ptrInt(200),
		KickTargetDurationMs: ptrInt(4900),
		DecisionSensor:       ptrInt(1),
		Directions:           directions,
	}
}

// LoadSorterConfig loads a SorterConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadSorterConfig(path string) (*SorterConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptySorterConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath from the current directory
// or a parent. Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *SorterConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadSorterConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *SorterConfig) Validate() error {
	positive := []struct {
		name string
		v    *int
	}{
		{"window_size", c.WindowSize},
		{"confidence_threshold", c.ConfidenceThreshold},
		{"max_speed", c.MaxSpeed},
		{"sub_move_count", c.SubMoveCount},
		{"strike_speed", c.StrikeSpeed},
		{"return_speed", c.ReturnSpeed},
		{"settle_timeout_ms", c.SettleTimeoutMs},
		{"settle_poll_ms", c.SettlePollMs},
		{"sample_period_ms", c.SamplePeriodMs},
		{"poll_period_ms", c.PollPeriodMs},
	}
	for _, p := range positive {
		if p.v != nil && *p.v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", p.name, *p.v)
		}
	}

	nonNegative := []struct {
		name string
		v    *int
	}{
		{"prime_angle", c.PrimeAngle},
		{"kick_angle", c.KickAngle},
		{"strike_hold_ms", c.StrikeHoldMs},
		{"kick_target_duration_ms", c.KickTargetDurationMs},
		{"decision_sensor", c.DecisionSensor},
	}
	for _, p := range nonNegative {
		if p.v != nil && *p.v < 0 {
			return fmt.Errorf("%s must be non-negative, got %d", p.name, *p.v)
		}
	}

	if c.GetConfidenceThreshold() > c.GetWindowSize() {
		return fmt.Errorf("confidence_threshold %d exceeds window_size %d",
			c.GetConfidenceThreshold(), c.GetWindowSize())
	}

	if _, err := c.directionMap(); err != nil {
		return err
	}

	return nil
}

// GetWindowSize returns the window_size value or the default.
func (c *SorterConfig) GetWindowSize() int {
	if c.WindowSize == nil {
		return debounce.DefaultWindowSize
	}
	return *c.WindowSize
}

// GetConfidenceThreshold returns the confidence_threshold value or the default.
func (c *SorterConfig) GetConfidenceThreshold() int {
	if c.ConfidenceThreshold == nil {
		return debounce.DefaultConfidenceThreshold
	}
	return *c.ConfidenceThreshold
}

// GetSamplePeriod returns the sampling loop period.
func (c *SorterConfig) GetSamplePeriod() time.Duration {
	return millis(c.SamplePeriodMs, 16)
}

// GetPollPeriod returns the control loop period.
func (c *SorterConfig) GetPollPeriod() time.Duration {
	return millis(c.PollPeriodMs, 200)
}

// GetKickTargetDuration returns the time from a decision to the strike,
// i.e. the belt transit time from the decision sensor to the kicker.
func (c *SorterConfig) GetKickTargetDuration() time.Duration {
	return millis(c.KickTargetDurationMs, 4900)
}

// GetDecisionSensor returns the index of the sensor whose classification
// triggers kicks.
func (c *SorterConfig) GetDecisionSensor() int {
	if c.DecisionSensor == nil {
		return 1
	}
	return *c.DecisionSensor
}

// KickerParams returns the trajectory tunables with defaults applied.
func (c *SorterConfig) KickerParams() kicker.Params {
	p := kicker.DefaultParams()
	setInt(&p.PrimeAngle, c.PrimeAngle)
	setInt(&p.KickAngle, c.KickAngle)
	setInt(&p.MaxSpeed, c.MaxSpeed)
	setInt(&p.SubMoves, c.SubMoveCount)
	setInt(&p.StrikeSpeed, c.StrikeSpeed)
	setInt(&p.ReturnSpeed, c.ReturnSpeed)
	p.StrikeHold = millis(c.StrikeHoldMs, p.StrikeHold/time.Millisecond)
	p.SettleTimeout = millis(c.SettleTimeoutMs, p.SettleTimeout/time.Millisecond)
	p.SettlePoll = millis(c.SettlePollMs, p.SettlePoll/time.Millisecond)
	return p
}

// DirectionMap returns the configured direction map, or the default map
// when none is configured. Invalid entries are rejected by Validate, so
// they are skipped here.
func (c *SorterConfig) DirectionMap() kicker.DirectionMap {
	m, err := c.directionMap()
	if err != nil || m == nil {
		return kicker.DefaultDirectionMap()
	}
	return m
}

func (c *SorterConfig) directionMap() (kicker.DirectionMap, error) {
	if c.Directions == nil {
		return nil, nil
	}
	// sorted so the first reported error is stable
	names := make([]string, 0, len(c.Directions))
	for name := range c.Directions {
		names = append(names, name)
	}
	sort.Strings(names)

	m := kicker.DirectionMap{}
	for _, name := range names {
		cat, err := color.ParseCategory(name)
		if err != nil {
			return nil, fmt.Errorf("direction_map: %w", err)
		}
		d, err := kicker.ParseDirection(c.Directions[name])
		if err != nil {
			return nil, fmt.Errorf("direction_map[%s]: %w", name, err)
		}
		if cat == color.Unclassified && d != kicker.Pass {
			return nil, fmt.Errorf("direction_map: %s must map to 0", name)
		}
		m[cat] = d
	}
	return m, nil
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func millis(v *int, def time.Duration) time.Duration {
	if v == nil {
		return def * time.Millisecond
	}
	return time.Duration(*v) * time.Millisecond
}
