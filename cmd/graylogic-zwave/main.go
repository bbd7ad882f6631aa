// Gray Logic Z-Wave Bridge
//
// This is the main entry point for the Z-Wave bridge. It opens the Z-Wave
// controller, turns driver callbacks into an ordered event stream and fans
// that stream out to:
//   - the MQTT bridge (Gray Logic Core's view of the mesh)
//   - the SQLite event journal
//   - Prometheus metrics
//   - InfluxDB telemetry (optional)
//   - WebSocket clients of the HTTP API (optional)
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/gray-logic-zwave/internal/api"
	zwbridge "github.com/nerrad567/gray-logic-zwave/internal/bridges/zwave"
	"github.com/nerrad567/gray-logic-zwave/internal/commands"
	"github.com/nerrad567/gray-logic-zwave/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-zwave/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-zwave/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-zwave/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-zwave/internal/infrastructure/metrics"
	"github.com/nerrad567/gray-logic-zwave/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-zwave/internal/journal"
	"github.com/nerrad567/gray-logic-zwave/internal/telemetry"
	zw "github.com/nerrad567/gray-logic-zwave/internal/zwave"
	"github.com/nerrad567/gray-logic-zwave/internal/zwave/simdriver"
	"github.com/nerrad567/gray-logic-zwave/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// sessionStopTimeout bounds how long shutdown waits for the consumer loop.
const sessionStopTimeout = 5 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // linear startup sequence
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Gray Logic Z-Wave bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := config.Path()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	defer log.Close() //nolint:errcheck // nothing left to report to
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
		"file", cfg.Logging.File.Path,
	)

	// Open database and bring the journal schema up to date
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
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	eventJournal, err := journal.New(db.DB, journal.Config{
		Retention: time.Duration(cfg.Database.JournalRetentionDays) * 24 * time.Hour,
	}, log)
	if err != nil {
		return fmt.Errorf("creating journal: %w", err)
	}
	eventJournal.Start(ctx)
	defer func() {
		log.Info("stopping journal")
		eventJournal.Stop()
	}()

	// Fan-out for the session's event stream. Sinks are added below, before
	// the controller is opened, and run in the order added.
	sinks := zw.NewMultiSink(log)

	driver, err := newDriver(cfg.ZWave)
	if err != nil {
		return fmt.Errorf("creating z-wave driver: %w", err)
	}
	session, err := zw.NewSession(zw.SessionConfig{
		Driver:  driver,
		Options: sessionOptions(cfg),
		Sink:    sinks,
		Logger:  log.With("component", "zwave"),
	})
	if err != nil {
		return fmt.Errorf("creating z-wave session: %w", err)
	}

	bridgeMetrics := metrics.New(session)
	sinks.Add(bridgeMetrics)
	sinks.Add(eventJournal)

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
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
		sinks.Add(telemetry.NewSink(influxClient))
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	runner, err := commands.NewRunner(session, commands.Config{
		Timeout: cfg.CommandTimeout(),
		Rate:    cfg.Commands.Rate,
		Burst:   cfg.Commands.Burst,
	}, zw.CommandRecorders{eventJournal, bridgeMetrics})
	if err != nil {
		return fmt.Errorf("creating command runner: %w", err)
	}

	// Connect to MQTT with the bridge's offline health message as LWT
	bridgeCfg := zwbridge.Config{
		ID:             cfg.Bridge.ID,
		Version:        version,
		Device:         cfg.ZWave.Device,
		HealthInterval: cfg.HealthInterval(),
		QoS:            byte(cfg.MQTT.QoS), //nolint:gosec // validated 0-2
		PublishBuffer:  cfg.Bridge.PublishBuffer,
	}
	will, err := lastWill(bridgeCfg)
	if err != nil {
		return fmt.Errorf("building MQTT will: %w", err)
	}
	mqttClient, err := mqtt.Connect(cfg.MQTT, will)
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
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	bridge, err := zwbridge.NewBridge(zwbridge.BridgeOptions{
		Config:     &bridgeCfg,
		MQTTClient: &mqttBridgeAdapter{client: mqttClient},
		Session:    session,
		Runner:     runner,
		Logger:     log.With("component", "bridge"),
	})
	if err != nil {
		return fmt.Errorf("creating Z-Wave bridge: %w", err)
	}
	if err := bridge.Start(ctx); err != nil {
		return fmt.Errorf("starting Z-Wave bridge: %w", err)
	}
	defer func() {
		log.Info("stopping Z-Wave bridge")
		bridge.Stop()
	}()
	sinks.Add(bridge)

	// HTTP API (optional)
	var server *api.Server
	if cfg.API.Enabled {
		server, err = api.New(api.Deps{
			Config:   cfg.API,
			WS:       cfg.WebSocket,
			Security: cfg.Security,
			Logger:   log.With("component", "api"),
			Session:  session,
			Runner:   runner,
			Journal:  eventJournal,
			Bridge:   bridge,
			Metrics:  bridgeMetrics.Handler(),
			Version:  version,
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if err := server.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
		sinks.Add(server.Hub())
	} else {
		log.Info("HTTP API disabled")
	}

	if err := registerGauges(bridgeMetrics, eventJournal, bridge, server); err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}

	// Start consuming notifications, then open the controller
	stopSession, err := startSession(session, cfg.ZWave.Device, log)
	if err != nil {
		return err
	}
	defer stopSession()

	if err := healthCheck(ctx, db, mqttClient, influxClient, server); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order:
	// 1. Z-Wave session (no more events after this)
	// 2. API server
	// 3. Z-Wave bridge (publishes stopping health)
	// 4. MQTT
	// 5. InfluxDB (if enabled)
	// 6. Journal (commits queued entries)
	// 7. Database
	return nil
}

// newDriver builds the configured network driver.
func newDriver(cfg config.ZWaveConfig) (zw.Driver, error) {
	switch cfg.Driver {
	case config.DriverSimulated:
		if cfg.NetworkFile == "" {
			return simdriver.New(nil), nil
		}
		network, err := simdriver.LoadNetwork(cfg.NetworkFile)
		if err != nil {
			return nil, fmt.Errorf("loading simulated network: %w", err)
		}
		return simdriver.New(network), nil
	default:
		return nil, fmt.Errorf("unsupported driver %q", cfg.Driver)
	}
}

// sessionOptions maps zwave.options onto the driver options record.
func sessionOptions(cfg *config.Config) zw.Options {
	o := cfg.ZWave.Options
	return zw.Options{
		ConfigPath:           o.ConfigPath,
		UserPath:             o.UserPath,
		ConsoleOutput:        o.ConsoleOutput,
		Logging:              o.Logging,
		SaveConfiguration:    o.SaveConfiguration,
		DriverMaxAttempts:    o.DriverMaxAttempts,
		PollInterval:         cfg.PollInterval(),
		SuppressValueRefresh: o.SuppressValueRefresh,
		NetworkKey:           o.NetworkKey,
	}
}

// lastWill is the retained offline health message the broker publishes if
// the bridge vanishes without a clean disconnect.
func lastWill(cfg zwbridge.Config) (*mqtt.Will, error) {
	reporter := zwbridge.NewHealthReporter(zwbridge.HealthReporterConfig{
		BridgeID: cfg.ID,
		Version:  cfg.Version,
		Device:   cfg.Device,
	})
	payload, err := reporter.GetLWTPayload()
	if err != nil {
		return nil, err
	}
	return &mqtt.Will{
		Topic:    reporter.GetLWTTopic(),
		Payload:  payload,
		QoS:      1,
		Retained: true,
	}, nil
}

// startSession runs the consumer loop and opens the controller. The returned
// function closes the controller and waits for the loop to exit.
func startSession(session *zw.Session, device string, log *logging.Logger) (func(), error) {
	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := session.Run(loopCtx); err != nil {
			log.Error("z-wave session loop failed", "error", err)
		}
	}()

	stop := func() {
		log.Info("closing z-wave controller", "device", device)
		if err := session.Disconnect(); err != nil {
			log.Error("error closing z-wave controller", "error", err)
		}
		cancel()
		select {
		case <-done:
		case <-time.After(sessionStopTimeout):
			log.Warn("z-wave session loop did not stop in time")
		}
	}

	if err := session.Connect(device); err != nil {
		stop()
		return nil, fmt.Errorf("opening z-wave controller %s: %w", device, err)
	}
	log.Info("z-wave controller opened", "device", device)
	return stop, nil
}

// registerGauges exposes queue counters owned by components other than the
// session. server may be nil when the API is disabled.
func registerGauges(m *metrics.Metrics, j *journal.Journal, b *zwbridge.Bridge, server *api.Server) error {
	type gauge struct {
		name, help string
		fn         func() float64
	}
	gauges := []gauge{
		{"journal_dropped", "Journal entries dropped because the write queue was full.",
			func() float64 { return float64(j.Stats().Dropped) }},
		{"journal_write_failures", "Journal entries lost to failed database writes.",
			func() float64 { return float64(j.Stats().Failed) }},
		{"mqtt_publish_dropped", "Bridge messages dropped because the publish queue was full.",
			func() float64 { return float64(b.GetMetrics().PublishDropped) }},
	}
	if server != nil {
		hub := server.Hub()
		gauges = append(gauges,
			gauge{"websocket_clients", "Connected WebSocket clients.",
				func() float64 { return float64(hub.ClientCount()) }},
			gauge{"websocket_dropped", "Event messages dropped for slow WebSocket clients.",
				func() float64 { return float64(hub.Dropped()) }},
		)
	}

	for _, g := range gauges {
		if err := m.GaugeFunc(g.name, g.help, g.fn); err != nil {
			return fmt.Errorf("%s: %w", g.name, err)
		}
	}
	return nil
}

// healthCheck verifies all infrastructure connections are healthy.
// influxClient and server may be nil when disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client, server *api.Server) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	if server != nil {
		if err := server.HealthCheck(ctx); err != nil {
			return fmt.Errorf("api: %w", err)
		}
	}
	return nil
}

// subscriber is the part of *mqtt.Client the adapter needs.
type subscriber interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	IsConnected() bool
}

// mqttBridgeAdapter adapts the infrastructure MQTT client to the bridge's
// MQTTClient interface. The difference is the Subscribe handler signature:
// - Infrastructure mqtt: func(topic, payload []byte) error
// - Bridge expects: func(topic, payload []byte)
type mqttBridgeAdapter struct {
	client subscriber
}

// Publish implements zwave.MQTTClient.
func (a *mqttBridgeAdapter) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return a.client.Publish(topic, payload, qos, retained)
}

// Subscribe implements zwave.MQTTClient.
func (a *mqttBridgeAdapter) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	return a.client.Subscribe(topic, qos, func(t string, p []byte) error {
		handler(t, p)
		return nil
	})
}

// IsConnected implements zwave.MQTTClient.
func (a *mqttBridgeAdapter) IsConnected() bool {
	return a.client.IsConnected()
}
