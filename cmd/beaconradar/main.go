package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/beaconradar/internal/api"
	"github.com/banshee-data/beaconradar/internal/config"
	"github.com/banshee-data/beaconradar/internal/db"
	"github.com/banshee-data/beaconradar/internal/mqttclient"
	"github.com/banshee-data/beaconradar/internal/scanner"
	"github.com/banshee-data/beaconradar/internal/serialmux"
	"github.com/banshee-data/beaconradar/internal/session"
	"github.com/banshee-data/beaconradar/internal/version"
)

var (
	configFile  = flag.String("config", "", "Path to a JSON configuration file")
	listen      = flag.String("listen", config.DefaultListen, "Listen address")
	source      = flag.String("source", config.DefaultSource, "Scanner source: ble, serial, mqtt, replay or none")
	port        = flag.String("port", config.DefaultSerialPort, "Serial port of the BLE dongle (source=serial)")
	broker      = flag.String("broker", "", "MQTT broker URL, e.g. tcp://localhost:1883 (source=mqtt)")
	topic       = flag.String("topic", scanner.DefaultMQTTTopic, "MQTT topic filter (source=mqtt)")
	fixtures    = flag.String("fixtures", "", "Fixture file to replay (source=replay)")
	archive     = flag.String("archive", "", "Path of the sqlite session archive; empty disables it")
	exportDir   = flag.String("export-dir", config.DefaultExportDir, "Directory exports and imports are confined to")
	autostart   = flag.Bool("autostart", false, "Start scanning as soon as the server is up")
	showVersion = flag.Bool("version", false, "Print the version and exit")
)

const mqttConnectTimeout = 10 * time.Second

// loadConfig reads the config file at path, or returns an empty config that
// yields every default.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return &config.Config{}, nil
	}
	return config.Load(path)
}

// applyFlags copies every flag set on the command line over cfg and
// revalidates it. Flags left at their default do not override the file.
func applyFlags(fs *flag.FlagSet, cfg *config.Config) error {
	var err error
	fs.Visit(func(f *flag.Flag) {
		v := f.Value.String()
		switch f.Name {
		case "listen":
			cfg.Listen = &v
		case "source":
			cfg.Source = &v
		case "port":
			cfg.SerialPort = &v
		case "broker":
			cfg.MQTTBroker = &v
		case "topic":
			cfg.MQTTTopic = &v
		case "fixtures":
			cfg.Fixtures = &v
		case "archive":
			cfg.ArchivePath = &v
		case "export-dir":
			cfg.ExportDir = &v
		case "autostart":
			b, perr := strconv.ParseBool(v)
			if perr != nil {
				err = fmt.Errorf("invalid -autostart %q: %w", v, perr)
				return
			}
			cfg.AutoStart = &b
		}
	})
	if err != nil {
		return err
	}
	return cfg.Validate()
}

// buildScanner creates the detection source named by cfg. The returned mux
// is non-nil for serial-backed sources; its Monitor loop must run for
// detections to arrive. closeFn releases the source's resources.
func buildScanner(cfg *config.Config, h scanner.Handler) (sc scanner.Scanner, mux serialmux.SerialMuxInterface, closeFn func(), err error) {
	noop := func() {}

	switch cfg.GetSource() {
	case scanner.SourceBLE:
		return scanner.NewBLE(nil, h), nil, noop, nil

	case scanner.SourceSerial:
		m, err := serialmux.NewRealSerialMux(cfg.GetSerialPort(), cfg.GetSerialOptions())
		if err != nil {
			return nil, nil, nil, err
		}
		if err := m.Initialize(); err != nil {
			m.Close()
			return nil, nil, nil, fmt.Errorf("failed to initialize dongle: %w", err)
		}
		for _, cmd := range cfg.SerialInit {
			if err := m.SendCommand(cmd); err != nil {
				m.Close()
				return nil, nil, nil, fmt.Errorf("failed to send init command %q: %w", cmd, err)
			}
		}
		log.Printf("initialized dongle on %s", cfg.GetSerialPort())
		return scanner.NewSerial(m, h), m, func() { m.Close() }, nil

	case scanner.SourceMQTT:
		client, err := mqttclient.New(mqttclient.Options{
			BrokerURL:      cfg.GetMQTTBroker(),
			ConnectTimeout: mqttConnectTimeout,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		log.Printf("connected to MQTT broker %s", cfg.GetMQTTBroker())
		return scanner.NewMQTT(client, cfg.GetMQTTTopic(), h), nil, client.Close, nil

	case scanner.SourceReplay:
		s, m, err := scanner.NewReplay(cfg.GetFixtures(), cfg.GetReplayInterval(), h)
		if err != nil {
			return nil, nil, nil, err
		}
		return s, m, func() { m.Close() }, nil

	case scanner.SourceNone:
		return scanner.NewDisabled(), nil, noop, nil
	}
	return nil, nil, nil, scanner.ValidSource(cfg.GetSource())
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := applyFlags(flag.CommandLine, cfg); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	if flag.Arg(0) == "migrate" {
		if err := db.RunMigrateCommand(os.Stdout, flag.Args()[1:], cfg.GetArchivePath()); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		return
	}
	if err := os.MkdirAll(cfg.GetExportDir(), 0o755); err != nil {
		log.Fatalf("failed to create export directory: %v", err)
	}
	log.Printf("%s starting, source=%s", version.String(), cfg.GetSource())

	sess := session.New(session.Options{
		Threshold:    cfg.GetActivityThreshold(),
		PollInterval: cfg.GetPollInterval(),
	})

	sc, radioMux, closeScanner, err := buildScanner(cfg, sess.Submit)
	if err != nil {
		log.Fatalf("failed to create %s scanner: %v", cfg.GetSource(), err)
	}
	defer closeScanner()
	sess.SetScanner(sc)

	var store *db.DB
	if p := cfg.GetArchivePath(); p != "" {
		store, err = db.Open(p)
		if err != nil {
			log.Fatalf("failed to open archive: %v", err)
		}
		defer store.Close()
	}

	server := api.NewServer(api.Options{
		Session:   sess,
		Archive:   store,
		ExportDir: cfg.GetExportDir(),
		Source:    cfg.GetSource(),
	})

	// Create a wait group for the serial monitor, poll loop, websocket hub
	// and HTTP server routines
	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if radioMux != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := radioMux.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("failed to monitor serial port: %v", err)
			}
			log.Print("monitor routine terminated")
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := sess.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("session loop error: %v", err)
		}
		log.Print("poll routine terminated")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		server.Run(ctx)
	}()

	if cfg.GetAutoStart() {
		if err := sess.Start(ctx); err != nil {
			log.Printf("failed to start scanning: %v", err)
		}
	}

	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := server.ServeMux()
		if radioMux != nil {
			radioMux.AttachAdminRoutes(mux)
		}
		if store != nil {
			if err := store.AttachAdminRoutes(mux); err != nil {
				log.Printf("failed to attach archive admin routes: %v", err)
			}
		}

		if err := api.ListenAndServe(ctx, cfg.GetListen(), api.LoggingMiddleware(mux)); err != nil {
			log.Printf("HTTP server error: %v", err)
			stop()
		}
		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
