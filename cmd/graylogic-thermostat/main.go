// Gray Logic Thermostat - hysteresis heating/cooling controller
//
// This is the main entry point for the thermostat service. It reads a
// temperature sensor and a heater (or AC) switch over MQTT, drives the
// switch through MQTT commands or a local GPIO relay, and exposes a REST
// and WebSocket API for mode, setpoint and preset changes.
//
// Run "graylogic-thermostat -issue-token admin" to mint an API token.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/nerrad567/gray-logic-thermostat/internal/api"
	"github.com/nerrad567/gray-logic-thermostat/internal/audit"
	"github.com/nerrad567/gray-logic-thermostat/internal/auth"
	"github.com/nerrad567/gray-logic-thermostat/internal/bridges/mqttbridge"
	"github.com/nerrad567/gray-logic-thermostat/internal/climate"
	"github.com/nerrad567/gray-logic-thermostat/internal/climate/telemetry"
	"github.com/nerrad567/gray-logic-thermostat/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-thermostat/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-thermostat/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-thermostat/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-thermostat/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-thermostat/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	configFlag := flag.String("config", "", "Configuration file (default $GRAYLOGIC_CONFIG, then "+defaultConfigPath+")")
	issueRole := flag.String("issue-token", "", "Print an API access token for this role (admin or viewer) and exit")
	subject := flag.String("subject", "operator", "Subject recorded in an issued token")
	tokenTTL := flag.Duration("token-ttl", 0, "Lifetime of an issued token (default security.jwt.access_token_ttl)")
	flag.Parse()

	configPath := getConfigPath(*configFlag)

	if *issueRole != "" {
		if err := issueToken(os.Stdout, configPath, *issueRole, *subject, *tokenTTL); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Cancel on Ctrl+C or SIGTERM for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - configPath: Path to the YAML configuration file
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, configPath string) error { //nolint:gocognit,gocyclo // linear startup sequence
	log := logging.Default()
	log.Info("starting Gray Logic Thermostat",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	settings, err := climate.SettingsFromConfig(cfg.Thermostat)
	if err != nil {
		return fmt.Errorf("thermostat settings: %w", err)
	}

	// Open database
	db, err := database.Open(cfg.Database)
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

	repo := climate.NewSQLiteRepository(db.DB)

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
	mqttClient.SetLogger(log.Component("mqtt"))
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	health := map[string]api.HealthChecker{
		"database": db,
		"mqtt":     mqttClient,
	}

	// State fan-out: retained MQTT state, local history, then optional sinks.
	publishers := climate.Publishers{
		mqttbridge.NewStatePublisher(mqttClient),
		repo,
	}

	// Connect to InfluxDB (optional)
	influxClient, err := influxdb.Connect(cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB disabled")
	case err != nil:
		return fmt.Errorf("connecting to InfluxDB: %w", err)
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
		publishers = append(publishers, telemetry.NewPublisher(influxClient))
		health["influxdb"] = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	}

	var hub *api.Hub
	if cfg.API.Enabled {
		hub = api.NewHub(cfg.WebSocket, log.Component("websocket"))
		publishers = append(publishers, hub)
	}

	// The loop is created after the components that feed it.
	var loop *climate.Loop
	sink := sinkFunc(func(ev climate.Event) error { return loop.Post(ev) })

	listener, err := mqttbridge.NewListener(mqttbridge.ListenerOptions{
		Client:           mqttClient,
		Sink:             sink,
		SensorEntityID:   cfg.Thermostat.SensorEntityID,
		ActuatorEntityID: cfg.Thermostat.HeaterEntityID,
		Logger:           log.Component("mqttbridge"),
	})
	if err != nil {
		return fmt.Errorf("creating MQTT listener: %w", err)
	}

	act, err := buildActuator(cfg.Thermostat, settings.ID, mqttClient, sink)
	if err != nil {
		return fmt.Errorf("creating actuator: %w", err)
	}
	defer func() {
		if closeErr := act.Close(); closeErr != nil {
			log.Error("error releasing actuator", "error", closeErr)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	ctrl, err := climate.NewController(settings, climate.Deps{
		Actuator:  act,
		Source:    listener,
		Publisher: publishers,
		Store:     repo,
		Metrics:   climate.NewMetrics(reg),
		Logger:    log.Component("climate").With("thermostat", settings.ID),
	})
	if err != nil {
		return fmt.Errorf("creating controller: %w", err)
	}

	loop = climate.NewLoop(ctrl, settings.KeepAlive)
	loopCtx, stopLoop := context.WithCancel(ctx)
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		_ = loop.Run(loopCtx) //nolint:errcheck // returns nil on cancellation
	}()
	defer func() {
		log.Info("stopping control loop")
		stopLoop()
		<-loopDone
	}()

	if startErr := listener.Start(); startErr != nil {
		return fmt.Errorf("starting MQTT listener: %w", startErr)
	}
	defer listener.Stop()

	// Give the actuator's state a chance to arrive before restoring.
	if syncErr := act.Prime(ctx, cfg.Thermostat.StartupWait, listener); syncErr != nil {
		log.Warn("actuator state unavailable at startup", "error", syncErr)
	}

	prev, err := ctrl.LoadPersisted(ctx)
	if err != nil {
		log.Warn("could not load persisted thermostat state", "error", err)
		prev = nil
	}
	if restoreErr := loop.Submit(ctx, climate.RestoreRequest{State: prev}); restoreErr != nil {
		if errors.Is(restoreErr, climate.ErrLoopStopped) || ctx.Err() != nil {
			return nil
		}
		log.Warn("restore completed with errors", "error", restoreErr)
	}

	// Start the API server
	if cfg.API.Enabled {
		srv, apiErr := api.New(api.Deps{
			Config:     cfg.API,
			WS:         cfg.WebSocket,
			Security:   cfg.Security,
			Logger:     log.Component("api"),
			Thermostat: loop,
			History:    repo,
			Audit:      audit.NewSQLiteRepository(db.DB),
			Health:     health,
			Gatherer:   reg,
			Hub:        hub,
			Version:    version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		go hub.Run(ctx)
		if startErr := srv.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API disabled")
	}

	if err := healthCheck(ctx, health); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse: API, listener, loop, actuator,
	// InfluxDB, MQTT, database.
	return nil
}

// getConfigPath returns the configuration file path: the -config flag,
// then GRAYLOGIC_CONFIG, then the default.
func getConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if path := os.Getenv("GRAYLOGIC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - checks: Components keyed by name
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, checks map[string]api.HealthChecker) error {
	for _, name := range []string{"database", "mqtt", "influxdb"} {
		hc, ok := checks[name]
		if !ok {
			continue
		}
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// issueToken loads the configuration and writes a signed access token to w.
func issueToken(w io.Writer, configPath, role, subject string, ttl time.Duration) error {
	r, err := auth.ParseRole(strings.ToLower(role))
	if err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if ttl <= 0 {
		ttl = time.Duration(cfg.Security.JWT.AccessTokenTTL) * time.Minute
	}

	token, err := auth.GenerateAccessToken(subject, r, cfg.Security.JWT.Secret, ttl)
	if err != nil {
		return fmt.Errorf("issuing token: %w", err)
	}
	_, err = fmt.Fprintln(w, token)
	return err
}

// sinkFunc adapts a function to mqttbridge.EventSink.
type sinkFunc func(ev climate.Event) error

// Post implements mqttbridge.EventSink.
func (f sinkFunc) Post(ev climate.Event) error {
	return f(ev)
}
