package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/ondulab/cisynth/pkg/audio"
	"github.com/ondulab/cisynth/pkg/config"
	"github.com/ondulab/cisynth/pkg/dmx"
	"github.com/ondulab/cisynth/pkg/engine"
	"github.com/ondulab/cisynth/pkg/logger"
	"github.com/ondulab/cisynth/pkg/metrics"
	"github.com/ondulab/cisynth/pkg/midi"
	"github.com/ondulab/cisynth/pkg/web"
)

var (
	version   = "dev"
	gitCommit = "unknown"
	buildTime = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	configFile := flag.String("config", "config.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	validate := flag.Bool("validate", false, "Validate configuration and exit")
	cli := flag.Bool("cli", true, "Run headless (no GUI event loop)")
	noDMX := flag.Bool("no-dmx", false, "Disable DMX engine and serial open")
	dmxPort := flag.String("dmx-port", "", "Override DMX serial device path")
	silentDMX := flag.Bool("silent-dmx", false, "Suppress DMX diagnostic prints")
	listAudio := flag.Bool("list-audio-devices", false, "List audio output devices and exit")
	audioDevice := flag.Int("audio-device", -2, "Select audio output device index")
	listMIDI := flag.Bool("list-midi-devices", false, "List MIDI input ports and exit")
	flag.Parse()
	_ = *cli // headless is the only mode; the flag is kept for the launch scripts

	if *showVersion {
		fmt.Printf("CISYNTH %s\n", version)
		fmt.Printf("Git Commit: %s\n", gitCommit)
		fmt.Printf("Built: %s\n", buildTime)
		return 0
	}

	log := logger.New(logger.Config{Level: "info", Format: "text"})

	log.Info("Starting CISYNTH",
		logger.String("version", version),
		logger.String("commit", gitCommit))

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Error("Failed to load configuration", logger.Error(err))
		return 1
	}

	if *validate {
		log.Info("Configuration is valid")
		return 0
	}

	// Flag overrides.
	if *noDMX {
		cfg.DMX.Enabled = false
	}
	if *dmxPort != "" {
		cfg.DMX.Port = *dmxPort
	}
	if *silentDMX {
		cfg.DMX.Silent = true
	}
	if *audioDevice >= -1 {
		cfg.Audio.Device = *audioDevice
	}

	log = logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	if *listAudio {
		devices, err := audio.ListDevices()
		if err != nil {
			log.Error("Failed to list audio devices", logger.Error(err))
			return 1
		}
		for _, d := range devices {
			fmt.Println(d)
		}
		return 0
	}

	if *listMIDI {
		for _, d := range midi.ListDevices() {
			fmt.Println(d)
		}
		return 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup

	collector := metrics.NewCollector()

	// Shared state and synthesis engines. Wave table overflow is fatal here.
	eng, err := engine.New(cfg, collector, log)
	if err != nil {
		log.Error("Failed to initialize engine", logger.Error(err))
		return 1
	}

	// DMX is optional: a missing adapter degrades to audio-only.
	var dmxWriter dmx.FrameWriter
	if cfg.DMX.Enabled {
		port, err := dmx.OpenPort(cfg.DMX.Port)
		if err != nil {
			if !cfg.DMX.Silent {
				log.Warn("Failed to initialize DMX, continuing without lighting",
					logger.String("port", cfg.DMX.Port),
					logger.Error(err))
			}
		} else {
			dmxWriter = port
			defer port.Close()
			eng.AttachDMX(dmx.NewSender(port, cfg.DMX.SpotOffsets, collector, log))
			log.Info("DMX serial port opened", logger.String("port", cfg.DMX.Port))
		}
	}

	// Audio output. Failure here is fatal.
	reverb := audio.NewReverb(cfg.Audio.SampleRate)
	output, err := audio.NewOutput(audio.Config{
		SampleRate:   cfg.Audio.SampleRate,
		BufferSize:   cfg.Audio.BufferSize,
		Device:       cfg.Audio.Device,
		MasterVolume: cfg.Audio.MasterVolume,
	}, eng.Ring(), reverb, collector, log)
	if err != nil {
		log.Error("Failed to initialize audio output", logger.Error(err))
		return 1
	}
	defer output.Close()

	// MIDI control surface. Optional: no device means fixed parameters.
	if cfg.MIDI.Enabled {
		surface := midi.NewSurface(midi.Config{DeviceNames: cfg.MIDI.DeviceNames},
			eng.DSPEngine(), output, reverb, log)
		if err := surface.Connect(); err != nil {
			log.Warn("No MIDI control surface", logger.Error(err))
		} else {
			wg.Add(1)
			go func() {
				defer wg.Done()
				surface.Run(ctx)
			}()
		}
	}

	// Observability endpoints.
	if cfg.Metrics.Enabled && cfg.Metrics.Prometheus.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			server := metrics.NewPrometheusServer(metrics.PrometheusConfig{
				Enabled: cfg.Metrics.Prometheus.Enabled,
				Port:    cfg.Metrics.Prometheus.Port,
				Path:    cfg.Metrics.Prometheus.Path,
			}, collector, log)
			if err := server.Start(ctx); err != nil && err != context.Canceled {
				log.Error("Prometheus metrics server error", logger.Error(err))
			}
		}()
	}

	if cfg.Web.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			server := web.NewServer(web.Config{
				Enabled: cfg.Web.Enabled,
				Host:    cfg.Web.Host,
				Port:    cfg.Web.Port,
			}, eng, collector, log)
			if err := server.Start(ctx); err != nil && err != context.Canceled {
				log.Error("Monitor server error", logger.Error(err))
			}
		}()
	}

	if err := output.Start(); err != nil {
		log.Error("Failed to start audio stream", logger.Error(err))
		return 1
	}

	// Second signal forces exit; a wedged worker must not hold the process.
	go func() {
		<-sigChan
		log.Info("Received shutdown signal")
		cancel()
		<-sigChan
		log.Error("Second signal, forcing exit")
		os.Exit(1)
	}()

	log.Info("CISYNTH running",
		logger.String("mode", cfg.Synth.Mode),
		logger.Int("udp_port", cfg.Network.Port),
		logger.Bool("dmx", dmxWriter != nil))

	err = eng.Run(ctx)

	cancel()
	wg.Wait()

	if err != nil && err != context.Canceled {
		log.Error("Engine stopped with error", logger.Error(err))
		return 1
	}

	log.Info("CISYNTH stopped")
	return 0
}
