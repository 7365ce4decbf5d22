package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/banshee-data/brick-sorter/internal/control"
	"github.com/banshee-data/brick-sorter/internal/device"
	"github.com/banshee-data/brick-sorter/internal/discovery"
	"github.com/banshee-data/brick-sorter/internal/kicker"
)

// defaultScript is the dev-mode decision sensor input: empty belt, a red
// brick, empty belt, a blue brick.
var defaultScript = []int{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 5, 5, 5, 5, 5, 5, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 2, 2, 2, 2, 2, 0, 0}

type devices struct {
	sensors []control.SensorPort
	kicker  kicker.Actuator
	closer  func() error
}

func (d *devices) Close() error {
	if d.closer == nil {
		return nil
	}
	return d.closer()
}

func parseInputs(s string) ([]int, error) {
	var inputs []int
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		n, err := strconv.Atoi(f)
		if err != nil || n < 1 || n > 4 {
			return nil, fmt.Errorf("sensor input %q must be 1-4", f)
		}
		inputs = append(inputs, n)
	}
	if len(inputs) == 0 {
		return nil, errors.New("no sensor inputs")
	}
	return inputs, nil
}

func openDevices(inputs []int) (*devices, error) {
	if *devMode {
		return simDevices(len(inputs), *fixtures)
	}

	link, err := device.OpenSerial(*port, device.PortOptions{BaudRate: *baud, ReplyTimeout: *replyTimeout})
	if err != nil {
		return nil, err
	}
	devs := &devices{
		kicker: device.NewKicker(link, *kickerOutput),
		closer: link.Close,
	}
	for _, in := range inputs {
		devs.sensors = append(devs.sensors, device.NewSensor(link, in))
	}
	log.Printf("opened bridge on %s, sensors %v, kicker %s", *port, inputs, *kickerOutput)
	return devs, nil
}

// simDevices builds n simulated sensors. Only the last one, the decision
// sensor in the default layout, replays the script; the others see an
// empty belt.
func simDevices(n int, fixturesPath string) (*devices, error) {
	script := defaultScript
	if fixturesPath != "" {
		var err error
		script, err = device.LoadScript(fixturesPath)
		if err != nil {
			return nil, err
		}
	}
	devs := &devices{kicker: device.NewSimKicker(5)}
	for i := 0; i < n; i++ {
		if i == n-1 {
			devs.sensors = append(devs.sensors, device.NewScriptedSensor(script))
		} else {
			devs.sensors = append(devs.sensors, device.NewScriptedSensor([]int{0}))
		}
	}
	return devs, nil
}

// looper is the part of control.Loop that runControl drives.
type looper interface {
	Run(ctx context.Context) error
	Status() control.Status
}

// runControl runs the control loop until ctx ends. A failed kick stops it
// unless resume is set, in which case the kicker is re-zeroed where it
// stopped and the loop restarts. That position becomes the new centre, so
// the aborted kick's displacement is logged for the operator.
func runControl(ctx context.Context, loop looper, act kicker.Actuator, resume bool) error {
	for {
		err := loop.Run(ctx)
		if err == nil || errors.Is(err, context.Canceled) {
			return nil
		}
		var aerr *kicker.ActuationError
		if !resume || !errors.As(err, &aerr) {
			return err
		}
		offset := 0
		if last := loop.Status().LastKick; last != nil {
			offset = last.Displacement
		}
		log.Printf("kick failed with the arm %d degrees from centre, re-zeroing there and resuming: %v", offset, err)
		if offset != 0 {
			log.Printf("WARN: kicks are now centred %d degrees off; re-centre the arm by hand and restart if they drift", offset)
		}
		if zerr := kicker.Rezero(act); zerr != nil {
			return fmt.Errorf("re-zero after %v: %w", err, zerr)
		}
	}
}

func advertise(instance, listenAddr string, sensors int) (*discovery.Advertiser, error) {
	port, err := discovery.ListenPort(listenAddr)
	if err != nil {
		return nil, err
	}
	return discovery.Advertise(instance, port, discovery.TXTRecords(sensors, *kickerOutput))
}
