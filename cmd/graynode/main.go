// Gray Logic Node - MQTT peripheral agent
//
// graynode runs one device on the Gray Logic bus. It answers commands on
// esp32/{id}/receiver, publishes a heartbeat on esp32/online and evaluates
// registered automation rules against its local peripherals.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/peterbourgon/ff/v3"

	"github.com/nerrad567/gray-logic-node/internal/agent"
	"github.com/nerrad567/gray-logic-node/internal/api"
	"github.com/nerrad567/gray-logic-node/internal/automation"
	"github.com/nerrad567/gray-logic-node/internal/command"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-node/internal/metrics"
	"github.com/nerrad567/gray-logic-node/internal/peripheral"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// envPrefix maps flags to environment variables, e.g. -config → GRAYNODE_CONFIG.
const envPrefix = "GRAYNODE"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// options are the command-line settings.
type options struct {
	configPath  string
	showVersion bool
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("graynode", flag.ContinueOnError)
	fs.StringVar(&opts.configPath, "config", "", "path to the YAML config file (defaults only when empty)")
	fs.BoolVar(&opts.showVersion, "version", false, "print version and exit")

	if err := ff.Parse(fs, args, ff.WithEnvVarPrefix(envPrefix)); err != nil {
		return opts, err
	}
	return opts, nil
}

// telemetrySink is everything the node writes to InfluxDB.
type telemetrySink interface {
	command.Telemetry
	automation.Telemetry
	agent.Telemetry
}

// run is the application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Cancelled on SIGINT/SIGTERM
//   - args: Command-line arguments without the program name
//   - stdout: Destination for -version output
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, args []string, stdout io.Writer) error { //nolint:gocognit,funlen // Linear startup wiring
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}
	if opts.showVersion {
		fmt.Fprintf(stdout, "graynode %s (commit %s, built %s)\n", version, commit, date)
		return nil
	}

	log := logging.Default()
	log.Info("starting Gray Logic Node", "version", version, "commit", commit, "build_date", date)

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", opts.configPath,
		"device_id", cfg.Device.ID,
		"level", cfg.Logging.Level,
	)

	// Peripherals
	peripherals, err := peripheral.NewRegistry(cfg.Peripherals, peripheral.NewSimBackend())
	if err != nil {
		return fmt.Errorf("building peripherals: %w", err)
	}
	log.Info("peripherals ready", "count", peripherals.Len())

	m := metrics.New()

	// MQTT
	mqttClient, err := mqtt.Connect(ctx, cfg.MQTT, cfg.Device.ID, mqtt.WithLogger(log))
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	m.SetMQTTConnected(true)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
		m.SetMQTTConnected(true)
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
		m.SetMQTTConnected(false)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// InfluxDB (optional)
	var telemetry telemetrySink
	if cfg.InfluxDB.Enabled {
		influxClient, connErr := influxdb.Connect(ctx, cfg.InfluxDB, cfg.Device.ID)
		if connErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", connErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		telemetry = influxClient
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	hub := api.NewHub(cfg.WebSocket, log)
	go hub.Run(ctx)

	qos := byte(cfg.MQTT.QoS) //nolint:gosec // Validated to 0-2
	topics := mqttClient.Topics()

	rules := automation.NewRegistry()
	rules.SetLogger(log)

	dispatcher := command.NewDispatcher(command.Deps{
		Peripherals: peripherals,
		Rules:       rules,
		MQTT:        mqttClient,
		ReplyTopic:  topics.Sender(cfg.Device.ID),
		QoS:         qos,
		Hub:         hub,
		Metrics:     m,
		Telemetry:   telemetry,
		Logger:      log,
	})

	evaluator := automation.NewEvaluator(automation.Deps{
		Rules:     rules,
		Values:    peripherals,
		MQTT:      mqttClient,
		Topic:     topics.Receiver,
		Hub:       hub,
		Telemetry: telemetry,
		Metrics:   m,
		Logger:    log,
		Interval:  cfg.Agent.AutomationInterval,
		QoS:       qos,
		Breaker:   cfg.Agent.Breaker,
	})

	node := agent.New(agent.Deps{
		DeviceID:          cfg.Device.ID,
		Topics:            topics,
		MQTT:              mqttClient,
		Dispatcher:        dispatcher,
		Evaluator:         evaluator,
		Hub:               hub,
		Metrics:           m,
		Telemetry:         telemetry,
		Logger:            log,
		HeartbeatInterval: cfg.Agent.HeartbeatInterval,
		QoS:               qos,
	})
	if err := node.Start(ctx); err != nil {
		return fmt.Errorf("starting agent: %w", err)
	}
	defer node.Stop()

	// HTTP status API (optional)
	if cfg.API.Enabled {
		srv, apiErr := api.New(api.Deps{
			Config:      cfg.API,
			WS:          cfg.WebSocket,
			Device:      cfg.Device,
			Logger:      log,
			Peripherals: peripherals,
			Rules:       rules,
			MQTT:        mqttClient,
			Loops:       node,
			Metrics:     m.Handler(),
			ExternalHub: hub,
			Version:     version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if err := srv.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API server disabled")
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("health check failed: mqtt: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}
