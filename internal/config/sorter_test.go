package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/brick-sorter/internal/color"
	"github.com/banshee-data/brick-sorter/internal/kicker"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

func TestEmptyConfigUsesDefaults(t *testing.T) {
	cfg := EmptySorterConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 10, cfg.GetWindowSize())
	assert.Equal(t, 3, cfg.GetConfidenceThreshold())
	assert.Equal(t, 16*time.Millisecond, cfg.GetSamplePeriod())
	assert.Equal(t, 200*time.Millisecond, cfg.GetPollPeriod())
	assert.Equal(t, 4900*time.Millisecond, cfg.GetKickTargetDuration())
	assert.Equal(t, 1, cfg.GetDecisionSensor())
	assert.Equal(t, kicker.DefaultParams(), cfg.KickerParams())
	assert.Equal(t, kicker.DefaultDirectionMap(), cfg.DirectionMap())
}

func TestDefaultSorterConfigMatchesAccessors(t *testing.T) {
	cfg := DefaultSorterConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, kicker.DefaultParams(), cfg.KickerParams())
	assert.Equal(t, kicker.DefaultDirectionMap(), cfg.DirectionMap())
}

func TestDefaultsFileMatchesCode(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	if diff := cmp.Diff(DefaultSorterConfig(), cfg); diff != "" {
		t.Errorf("%s out of sync with DefaultSorterConfig (-code +file):\n%s", DefaultConfigPath, diff)
	}
}

func TestLoadSorterConfig_Partial(t *testing.T) {
	path := writeConfig(t, "rig.json", `{
  "window_size": 12,
  "confidence_threshold": 4,
  "kick_angle": 60,
  "strike_hold_ms": 250,
  "kick_target_duration_ms": 3200,
  "direction_map": {"red": 1, "Blue": -1, "none": 0}
}`)

	cfg, err := LoadSorterConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 12, cfg.GetWindowSize())
	assert.Equal(t, 4, cfg.GetConfidenceThreshold())
	assert.Equal(t, 3200*time.Millisecond, cfg.GetKickTargetDuration())

	params := cfg.KickerParams()
	assert.Equal(t, 60, params.KickAngle)
	assert.Equal(t, 250*time.Millisecond, params.StrikeHold)
	assert.Equal(t, 170, params.PrimeAngle, "unset fields keep defaults")

	want := kicker.DirectionMap{color.Red: kicker.Right, color.Blue: kicker.Left, color.Unclassified: kicker.Pass}
	assert.Equal(t, want, cfg.DirectionMap())
	assert.Equal(t, kicker.Pass, cfg.DirectionMap().Direction(color.Green))
}

func TestLoadSorterConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		body    string
		wantErr string
	}{
		{"wrong extension", "rig.yaml", `{}`, "extension"},
		{"bad json", "rig.json", `{"window_size": "ten"`, "parse"},
		{"zero window", "rig.json", `{"window_size": 0}`, "window_size"},
		{"threshold above window", "rig.json", `{"window_size": 4, "confidence_threshold": 5}`, "exceeds"},
		{"negative prime", "rig.json", `{"prime_angle": -10}`, "prime_angle"},
		{"unknown colour", "rig.json", `{"direction_map": {"purple": 1}}`, "purple"},
		{"bad direction", "rig.json", `{"direction_map": {"red": 2}}`, "direction"},
		{"unclassified kicks", "rig.json", `{"direction_map": {"unclassified": -1}}`, "must map to 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.file, tt.body)
			_, err := LoadSorterConfig(path)
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.wantErr), "error %q should mention %q", err, tt.wantErr)
		})
	}
}

func TestLoadSorterConfig_Missing(t *testing.T) {
	_, err := LoadSorterConfig("/nonexistent/path/to/sorter.json")
	assert.Error(t, err)
}

func TestLoadSorterConfig_TooLarge(t *testing.T) {
	big := `{"direction_map": {"red": -1}, "pad": "` + strings.Repeat("x", 1024*1024) + `"}`
	path := writeConfig(t, "big.json", big)
	_, err := LoadSorterConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}
