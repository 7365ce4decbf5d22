package main

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/banshee-data/brick-sorter/internal/control"
	"github.com/banshee-data/brick-sorter/internal/device"
	"github.com/banshee-data/brick-sorter/internal/kicker"
	"github.com/banshee-data/brick-sorter/internal/monitoring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	os.Exit(m.Run())
}

func TestSimDevices(t *testing.T) {
	devs, err := simDevices(2, "")
	require.NoError(t, err)
	require.Len(t, devs.sensors, 2)
	assert.NoError(t, devs.Close())

	// the first sensor watches an empty belt
	code, err := devs.sensors[0].ReadRawCode()
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	// the decision sensor replays the builtin script
	for _, want := range defaultScript[:3] {
		code, err := devs.sensors[1].ReadRawCode()
		require.NoError(t, err)
		assert.Equal(t, want, code)
	}
}

func TestSimDevicesFixtures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "red.txt")
	require.NoError(t, os.WriteFile(path, []byte("# one red brick\n0*2, 5\n"), 0o644))

	devs, err := simDevices(1, path)
	require.NoError(t, err)

	var got []int
	for i := 0; i < 4; i++ {
		code, err := devs.sensors[0].ReadRawCode()
		require.NoError(t, err)
		got = append(got, code)
	}
	assert.Equal(t, []int{0, 0, 5, 0}, got)

	_, err = simDevices(1, filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

type scriptedLoop struct {
	errs   []error
	runs   int
	status control.Status
}

func (s *scriptedLoop) Status() control.Status { return s.status }

func (s *scriptedLoop) Run(ctx context.Context) error {
	s.runs++
	if len(s.errs) == 0 {
		return context.Canceled
	}
	err := s.errs[0]
	s.errs = s.errs[1:]
	return err
}

func actuationErr() error {
	return &kicker.ActuationError{Phase: kicker.PhaseStrike, Op: "MoveTo", Err: errors.New("stalled")}
}

func TestRunControlHaltsOnFault(t *testing.T) {
	loop := &scriptedLoop{errs: []error{actuationErr()}}
	act := device.NewSimKicker(1)

	err := runControl(context.Background(), loop, act, false)

	var aerr *kicker.ActuationError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, kicker.PhaseStrike, aerr.Phase)
	assert.Equal(t, 1, loop.runs)
	assert.False(t, act.Holding(), "halting must not re-zero")
}

func TestRunControlResumesAfterRezero(t *testing.T) {
	loop := &scriptedLoop{errs: []error{actuationErr(), actuationErr()}}
	act := device.NewSimKicker(1)
	require.NoError(t, act.MoveTo(30, 100))

	err := runControl(context.Background(), loop, act, true)

	require.NoError(t, err)
	assert.Equal(t, 3, loop.runs)
	assert.True(t, act.Holding())
	assert.Equal(t, 0, act.Position())
}

func TestRunControlOtherErrorsStop(t *testing.T) {
	boom := errors.New("boom")
	loop := &scriptedLoop{errs: []error{boom}}

	err := runControl(context.Background(), loop, device.NewSimKicker(1), true)

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, loop.runs)
}

func TestRunControlLogsOffsetOnResume(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	loop := &scriptedLoop{
		errs:   []error{actuationErr()},
		status: control.Status{LastKick: &kicker.Report{Displacement: 68}},
	}

	require.NoError(t, runControl(context.Background(), loop, device.NewSimKicker(1), true))

	out := buf.String()
	assert.Contains(t, out, "68 degrees from centre")
	assert.Contains(t, out, "WARN: kicks are now centred 68 degrees off")
}

func TestReplyTimeoutFlag(t *testing.T) {
	if *replyTimeout != 0 {
		t.Errorf("expected reply-timeout default to be 0, got %v", *replyTimeout)
	}
}
