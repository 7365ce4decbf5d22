package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/brick-sorter/internal/config"
	"github.com/banshee-data/brick-sorter/internal/control"
	"github.com/banshee-data/brick-sorter/internal/debounce"
	"github.com/banshee-data/brick-sorter/internal/kicker"
	"github.com/banshee-data/brick-sorter/internal/timeutil"
	"github.com/banshee-data/brick-sorter/internal/version"
)

var (
	configPath   = flag.String("config", "", "Path to the sorter tuning JSON (defaults apply when empty)")
	devMode      = flag.Bool("dev", false, "Run against simulated sensors and kicker")
	fixtures     = flag.String("fixtures", "", "Raw colour code script for the simulated decision sensor (dev mode)")
	port         = flag.String("port", "/dev/ttyACM0", "Serial port of the motor/sensor bridge (ignored in dev mode)")
	baud         = flag.Int("baud", 0, "Serial baud rate (0 uses the bridge default)")
	sensorInputs = flag.String("sensor-inputs", "1,2", "Comma-separated bridge inputs of the colour sensors")
	kickerOutput = flag.String("kicker-output", "B", "Bridge output of the kicker motor")
	listen       = flag.String("listen", "localhost:8080", "Listen address for the debug pages (empty disables)")
	mdnsName     = flag.String("mdns", "", "Advertise the debug pages over mDNS under this instance name (empty disables)")
	replyTimeout = flag.Duration("reply-timeout", 0, "Longest wait for the bridge to answer one command (0 uses the bridge default)")
	resume       = flag.Bool("resume-after-fault", false, "After a failed kick, re-zero the kicker where it stopped and keep sorting instead of stopping. The logged displacement is how far the arm is off centre; re-centre it by hand if kicks drift")
	showVersion  = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	log.Printf("starting %s", version.String())

	cfg := config.EmptySorterConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadSorterConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}

	inputs, err := parseInputs(*sensorInputs)
	if err != nil {
		log.Fatalf("invalid --sensor-inputs: %v", err)
	}
	if cfg.GetDecisionSensor() >= len(inputs) {
		log.Fatalf("decision_sensor %d out of range for %d sensors", cfg.GetDecisionSensor(), len(inputs))
	}

	devs, err := openDevices(inputs)
	if err != nil {
		log.Fatalf("failed to open devices: %v", err)
	}
	defer devs.Close()

	// the arm must be centred by hand before start; that position becomes zero
	if err := kicker.Rezero(devs.kicker); err != nil {
		log.Fatalf("failed to zero kicker: %v", err)
	}

	clock := timeutil.RealClock{}
	states := make([]*debounce.Shared, len(inputs))
	for i := range inputs {
		states[i] = debounce.NewShared(fmt.Sprintf("s%d", i+1), cfg.GetWindowSize(), cfg.GetConfidenceThreshold())
	}

	sampler, err := control.NewSampler(devs.sensors, states, cfg.GetSamplePeriod(), clock)
	if err != nil {
		log.Fatalf("failed to create sampler: %v", err)
	}

	scheduler := kicker.NewScheduler(cfg.KickerParams(), cfg.DirectionMap(), clock)
	loop, err := control.NewLoop(states[cfg.GetDecisionSensor()], scheduler, devs.kicker, control.LoopConfig{
		PollPeriod: cfg.GetPollPeriod(),
		KickTarget: cfg.GetKickTargetDuration(),
	}, clock)
	if err != nil {
		log.Fatalf("failed to create control loop: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := sampler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("sampling loop failed: %v", err)
		}
		log.Print("sampling routine terminated")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer stop()
		if err := runControl(ctx, loop, devs.kicker, *resume); err != nil {
			log.Printf("control loop stopped: %v", err)
		}
		log.Print("control routine terminated")
	}()

	if *listen != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()

			mux := http.NewServeMux()
			control.AttachAdminRoutes(mux, loop, states)

			server := &http.Server{
				Addr:    *listen,
				Handler: mux,
			}

			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Printf("debug server failed: %v", err)
				}
			}()

			if *mdnsName != "" {
				adv, err := advertise(*mdnsName, *listen, len(inputs))
				if err != nil {
					log.Printf("mDNS advertisement disabled: %v", err)
				} else {
					defer adv.Shutdown()
				}
			}

			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Printf("HTTP server shutdown error: %v", err)
			}
		}()
	}

	wg.Wait()
	log.Printf("shutdown complete")
}
