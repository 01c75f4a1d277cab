// Command rosserial-bridge connects a rosserial device on a serial port to an
// MQTT broker.
//
// Usage:
//
//	rosserial-bridge -config bridge.toml
//	rosserial-bridge -port /dev/ttyACM0 -broker tcp://localhost:1883
//	rosserial-bridge -list-ports
//
// Settings are read from the config file, then ROSSERIAL_MQTT_URL and
// ROSSERIAL_PORT, then command line flags.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/kabili207/rosserial-go/config"
	"github.com/kabili207/rosserial-go/core/codec"
	"github.com/kabili207/rosserial-go/core/params"
	"github.com/kabili207/rosserial-go/device/connection"
	"github.com/kabili207/rosserial-go/device/router"
	"github.com/kabili207/rosserial-go/transport"
	"github.com/kabili207/rosserial-go/transport/mqtt"
	"github.com/kabili207/rosserial-go/transport/serial"
)

// errLinkLost is returned when the device link closes while running. The
// bridge does not reopen the port; a process supervisor restarts it.
var errLinkLost = errors.New("serial link lost")

type options struct {
	configPath string
	port       string
	baud       int
	broker     string
	prefix     string
	logLevel   string
	listPorts  bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Getenv, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "rosserial-bridge: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("rosserial-bridge", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", "", "Path to a TOML config file.")
	fs.StringVar(&opts.port, "port", "", "Serial port of the device.")
	fs.IntVar(&opts.baud, "baud", 0, "Serial baud rate.")
	fs.StringVar(&opts.broker, "broker", "", "MQTT broker URL.")
	fs.StringVar(&opts.prefix, "prefix", "", "MQTT topic prefix.")
	fs.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error).")
	fs.BoolVar(&opts.listPorts, "list-ports", false, "List serial ports and exit.")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	return opts, nil
}

// loadConfig applies the file, the environment and the flags, in that order.
func loadConfig(opts options, getenv func(string) string) (config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.Load(opts.configPath); err != nil {
			return config.Config{}, err
		}
	}

	cfg.ApplyEnv(getenv)

	if opts.port != "" {
		cfg.Serial.Port = opts.port
	}
	if opts.baud != 0 {
		cfg.Serial.BaudRate = opts.baud
	}
	if opts.broker != "" {
		cfg.MQTT.Broker = opts.broker
	}
	if opts.prefix != "" {
		cfg.MQTT.TopicPrefix = opts.prefix
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	if cfg.Serial.Port == "" {
		return config.Config{}, errors.New("serial port is required (-port or " + config.EnvSerialPort + ")")
	}
	if cfg.MQTT.Broker == "" {
		return config.Config{}, errors.New("mqtt broker is required (-broker or " + config.EnvMQTTURL + ")")
	}
	return cfg, nil
}

func newLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := config.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func run(ctx context.Context, args []string, getenv func(string) string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	if opts.listPorts {
		ports, err := serial.ListPorts()
		if err != nil {
			return err
		}
		for _, p := range ports {
			fmt.Fprintln(stdout, p)
		}
		return nil
	}

	cfg, err := loadConfig(opts, getenv)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Log, stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	store, err := params.FromMap(cfg.Params)
	if err != nil {
		return fmt.Errorf("loading params: %w", err)
	}

	link := serial.New(serial.Config{
		Port:           cfg.Serial.Port,
		BaudRate:       cfg.Serial.BaudRate,
		MaxPayloadSize: cfg.Serial.MaxPayload,
		Logger:         logger,
	})
	bus := mqtt.New(mqtt.Config{
		Broker:          cfg.MQTT.Broker,
		Username:        cfg.MQTT.Username,
		Password:        cfg.MQTT.Password,
		UseTLS:          cfg.MQTT.TLS,
		ClientID:        cfg.MQTT.ClientID,
		TopicPrefix:     cfg.MQTT.TopicPrefix,
		PayloadEncoding: cfg.MQTT.PayloadEncoding,
		QoS:             cfg.MQTT.QoS,
		Logger:          logger,
	})
	linkLost := make(chan struct{}, 1)
	monitor := connection.NewMonitor(connection.MonitorConfig{
		Timeout: cfg.Sync.Timeout,
		Logger:  logger,
	})
	rt := router.New(router.Config{
		Params:          store,
		RequestInterval: cfg.Sync.RequestInterval,
		OnFrame:         func(*codec.Frame) { monitor.Touch() },
		OnLinkState: func(event transport.Event) {
			if event == transport.EventDisconnected {
				select {
				case linkLost <- struct{}{}:
				default:
				}
			}
		},
		Logger: logger,
	}, link, bus)
	monitor.SetOnSync(func() {
		logger.Debug("device in sync", "topics", rt.Registry().Len())
	})
	monitor.SetOnLost(func() {
		if err := rt.RequestTopics(); err != nil {
			logger.Debug("failed to request topics", "error", err)
		}
	})

	if err := bus.Start(ctx); err != nil {
		return fmt.Errorf("starting mqtt: %w", err)
	}
	defer bus.Stop()

	if err := link.Start(ctx); err != nil {
		return fmt.Errorf("starting serial: %w", err)
	}
	defer link.Stop()

	logger.Info("bridge running", "port", cfg.Serial.Port, "broker", cfg.MQTT.Broker,
		"prefix", cfg.MQTT.TopicPrefix, "params", len(store.Names()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		monitor.Start(gctx)
		return nil
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case <-linkLost:
			return errLinkLost
		}
	})
	err = g.Wait()

	logCounters(logger, link, rt)
	return err
}

func logCounters(logger *slog.Logger, link *serial.Transport, rt *router.Router) {
	c := link.Counters()
	logger.Info("codec counters",
		"frames", c.FramesDecoded,
		"version_errors", c.VersionErrors,
		"header_errors", c.HeaderErrors,
		"oversize", c.OversizeFrames,
		"checksum_errors", c.ChecksumErrors,
		"bytes_discarded", c.BytesDiscarded)

	r := rt.Counters().Snapshot()
	logger.Info("router counters",
		"frames_in", r.FramesIn,
		"frames_out", r.FramesOut,
		"published", r.Published,
		"forwarded", r.Forwarded,
		"topic_requests", r.TopicRequests,
		"unknown_topics", r.UnknownTopics,
		"decode_errors", r.DecodeErrors,
		"dropped", r.Dropped)
}
