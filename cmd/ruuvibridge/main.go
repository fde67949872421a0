// ruuvibridge decodes RuuviTag advertisements relayed by a BLE-to-MQTT
// gateway and publishes them onwards.
//
// Every advertisement updates a per-device record. From those records the
// bridge:
//   - writes a periodic aggregate (smoothed temperature, peak humidity,
//     battery voltage) to InfluxDB
//   - republishes the current reading of each changed device over MQTT
//   - pushes a live line to a Grafana Live stream
//   - serves the device state over a small HTTP and WebSocket API
//
// Run with --dryrun N to print what would be sent for N poll cycles.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	_ "github.com/nerrad567/ruuvi-bridge/migrations"

	"github.com/nerrad567/ruuvi-bridge/internal/api"
	"github.com/nerrad567/ruuvi-bridge/internal/bridges/gateway"
	"github.com/nerrad567/ruuvi-bridge/internal/device"
	"github.com/nerrad567/ruuvi-bridge/internal/infrastructure/config"
	"github.com/nerrad567/ruuvi-bridge/internal/infrastructure/database"
	"github.com/nerrad567/ruuvi-bridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/ruuvi-bridge/internal/infrastructure/live"
	"github.com/nerrad567/ruuvi-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/ruuvi-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/ruuvi-bridge/internal/publisher"
	"github.com/nerrad567/ruuvi-bridge/internal/ruuvi"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		logging.Default().Error("ruuvibridge stopped", "error", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - args: Command line arguments after the program name
//
// Returns:
//   - error: nil on clean shutdown or finished dry run, or error describing failure
func run(ctx context.Context, args []string) error {
	opts, err := parseFlags(args, os.Stderr)
	if err != nil {
		return err
	}
	if opts.showVersion {
		fmt.Printf("ruuvibridge %s (commit %s, built %s)\n", version, commit, date)
		return nil
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if opts.syslog {
		cfg.Logging.Output = "syslog"
	}
	log := logging.New(cfg.Logging, version)
	defer log.Close() //nolint:errcheck // nothing useful to do on exit
	for i := 0; i < opts.verbosity; i++ {
		log.MoreVerbose()
	}
	watchLogLevelSignals(ctx, log)

	log.Info("starting ruuvibridge",
		"version", version,
		"commit", commit,
		"build_date", date,
		"config", opts.configPath,
		"level", log.Level().String(),
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	schema, err := db.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	log.Info("database ready", "path", cfg.Database.Path, "schema", schema)

	// Name table and device registry
	mappingRepo := device.NewSQLiteMappingRepository(db.DB)
	names, err := buildNameTable(ctx, cfg, opts, mappingRepo, log)
	if err != nil {
		return err
	}
	registry := device.NewRegistry(names)
	registry.SetLogger(log)
	log.Info("device registry initialised", "mappings", names.Len())

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", mqttClient.ClientID(),
	)

	// Gateway ingest
	bridge, err := gateway.New(gateway.Options{
		Subscriber: mqttClient,
		Decoder:    registry,
		Topic:      cfg.MQTT.Topic,
		QoS:        byte(cfg.MQTT.QoS), // #nosec G115 -- validated 0..2
		Ignore:     ownTopics(cfg.MQTT, mqttClient.StatusTopic()),
		Logger:     log,
	})
	if err != nil {
		return fmt.Errorf("creating gateway bridge: %w", err)
	}
	if startErr := bridge.Start(); startErr != nil {
		return fmt.Errorf("starting gateway bridge: %w", startErr)
	}
	defer func() {
		log.Info("stopping gateway bridge")
		if stopErr := bridge.Stop(); stopErr != nil {
			log.Error("error stopping gateway bridge", "error", stopErr)
		}
	}()
	log.Info("gateway bridge started", "topic", bridge.Topic())

	checks := map[string]api.HealthChecker{
		"database": db,
		"mqtt":     mqttClient,
	}

	pubOpts := publisher.Options{
		Source:               registry,
		Current:              mqttClient,
		Layout:               influxdb.LayoutFrom(cfg.InfluxDB),
		PollInterval:         cfg.PollInterval(),
		RepublishInterval:    cfg.RepublishInterval(),
		RepublishPrefix:      cfg.MQTT.Republish.Prefix,
		RepublishMeasurement: cfg.MQTT.Republish.Measurement,
		RepublishQoS:         byte(cfg.MQTT.QoS), // #nosec G115 -- validated 0..2
		RepublishRetain:      cfg.MQTT.Republish.Retain,
		LiveMeasurement:      cfg.Grafana.Measurement,
		DryRunCycles:         opts.dryRunCycles,
		Logger:               log,
	}

	// InfluxDB and Grafana Live are not contacted in a dry run
	if opts.dryRunCycles > 0 {
		log.Info("dry run: InfluxDB and Grafana Live output is printed", "cycles", opts.dryRunCycles)
	} else {
		influxClient, influxErr := influxdb.Connect(cfg.InfluxDB)
		switch {
		case errors.Is(influxErr, influxdb.ErrDisabled):
			log.Info("InfluxDB disabled")
		case influxErr != nil:
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		default:
			defer func() {
				log.Info("closing InfluxDB connection")
				if closeErr := influxClient.Close(); closeErr != nil {
					log.Error("error closing InfluxDB", "error", closeErr)
				}
			}()
			influxClient.SetOnError(func(err error) {
				log.Error("InfluxDB write error", "error", err)
			})
			pubOpts.Aggregates = influxClient
			checks["influxdb"] = influxClient
			log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL)
		}

		liveClient, liveErr := live.Connect(ctx, cfg.Grafana)
		switch {
		case errors.Is(liveErr, live.ErrDisabled):
			log.Info("Grafana Live disabled")
		case liveErr != nil:
			return fmt.Errorf("connecting to Grafana Live: %w", liveErr)
		default:
			defer func() {
				log.Info("closing Grafana Live connection")
				if closeErr := liveClient.Close(); closeErr != nil {
					log.Error("error closing Grafana Live", "error", closeErr)
				}
			}()
			pubOpts.Live = liveClient
			checks["grafana"] = liveClient
			log.Info("Grafana Live connected", "url", cfg.Grafana.URL, "transport", liveClient.Transport())
		}
	}

	// The hub exists before the publisher so reading events have a target
	var hub *api.Hub
	if cfg.API.Enabled {
		hub = api.NewHub(cfg.WebSocket, log)
		hub.SetSource(registry)
		go hub.Run(ctx)
		pubOpts.Events = hub
	}

	pub, err := publisher.New(pubOpts)
	if err != nil {
		return fmt.Errorf("creating publisher: %w", err)
	}
	log.Info("publisher ready", "sinks", pub.DescribeSinks())

	// HTTP API (optional)
	if cfg.API.Enabled {
		apiServer, apiErr := api.New(api.Deps{
			Config:      cfg.API,
			WS:          cfg.WebSocket,
			Logger:      log,
			Registry:    registry,
			Mappings:    mappingRepo,
			Checks:      checks,
			Ingest:      bridge,
			Publish:     pub,
			Broker:      mqttClient,
			ExternalHub: hub,
			Version:     version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := apiServer.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			log.Info("stopping API server")
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error stopping API server", "error", closeErr)
			}
		}()
		log.Info("API server started", "address", apiServer.Addr())
	} else {
		log.Info("API disabled")
	}

	if err := healthCheck(ctx, checks); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	// Runs until shutdown or the end of the dry run
	if err := pub.Run(ctx); err != nil {
		return fmt.Errorf("running publisher: %w", err)
	}

	log.Info("ruuvibridge stopped")
	return nil
}

// ownTopics lists the filters for everything the bridge publishes, so
// they are skipped if the gateway subscription happens to cover them.
func ownTopics(cfg config.MQTTConfig, statusTopic string) []string {
	own := []string{statusTopic}
	if cfg.Republish.Prefix != "" {
		own = append(own, mqtt.Topics{}.Republish(cfg.Republish.Prefix, "#"))
	}
	return own
}

// buildNameTable fills the name table from config, then the database,
// then the command line.
//
// A bad config or stored mapping is logged and skipped. A --map entry the
// table rejects is an error: the operator asked for it explicitly.
// With --persist the --map entries are also stored.
func buildNameTable(ctx context.Context, cfg *config.Config, opts *options, repo device.MappingRepository, log *logging.Logger) (*device.NameTable, error) {
	names := device.NewNameTable()

	for _, m := range cfg.Mappings {
		if err := names.AddMapping(m.Address, m.Name); err != nil {
			log.Warn("config name mapping rejected", "address", m.Address, "name", m.Name, "error", err)
		}
	}
	configured := names.Len()

	stored, err := device.LoadMappings(ctx, repo, names, log)
	if err != nil {
		return nil, err
	}

	for _, m := range opts.mappings {
		addr, err := ruuvi.ParseAddress(m.Address)
		if err != nil {
			return nil, fmt.Errorf("--map %s,%s: %w", m.Address, m.Name, err)
		}
		if label, ok := names.Label(addr); !ok || label != m.Name {
			if err := names.Add(addr, m.Name); err != nil {
				return nil, fmt.Errorf("--map %s,%s: %w", m.Address, m.Name, err)
			}
		}

		if !opts.persist {
			continue
		}
		mapping := device.Mapping{Address: addr, Name: m.Name, CreatedAt: time.Now().UTC()}
		if err := repo.Create(ctx, &mapping); err != nil {
			if !errors.Is(err, device.ErrDuplicateMapping) {
				return nil, fmt.Errorf("persisting --map %s,%s: %w", m.Address, m.Name, err)
			}
			log.Debug("mapping already stored", "address", addr.String(), "name", m.Name)
		}
	}

	log.Info("name mappings loaded",
		"config", configured,
		"database", stored,
		"command_line", len(opts.mappings),
		"persisted", opts.persist,
	)
	return names, nil
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - checks: Components to check, keyed by name
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, checks map[string]api.HealthChecker) error {
	for _, name := range []string{"database", "mqtt", "influxdb", "grafana"} {
		checker, ok := checks[name]
		if !ok {
			continue
		}
		if err := checker.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// watchLogLevelSignals lowers the log level on SIGUSR2 and raises it on
// SIGUSR1, so a running bridge can be debugged without a restart.
func watchLogLevelSignals(ctx context.Context, log *logging.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGUSR1, syscall.SIGUSR2)

	go func() {
		defer signal.Stop(sigCh)
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-sigCh:
				var level slog.Level
				if sig == syscall.SIGUSR2 {
					level = log.MoreVerbose()
				} else {
					level = log.LessVerbose()
				}
				log.Warn("log level changed", "signal", sig.String(), "level", level.String())
			}
		}
	}()
}
