// feedbackd drives the feedback devices of a pinball cabinet.
//
// It loads the cabinet description (controllers and toys) from YAML, connects
// the output controllers, and runs the tick loop that turns toy layers into
// controller frames. Optional infrastructure:
//   - SQLite event log of controller connects, failures and disables
//   - MQTT for mqtt controllers, layer ingress and state/event publishing
//   - InfluxDB telemetry
//   - status HTTP API with a live WebSocket frame stream
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/feedback-core/internal/cabinet"
	"github.com/nerrad567/feedback-core/internal/controllers/mqttout"
	"github.com/nerrad567/feedback-core/internal/eventlog"
	"github.com/nerrad567/feedback-core/internal/infrastructure/config"
	"github.com/nerrad567/feedback-core/internal/infrastructure/database"
	"github.com/nerrad567/feedback-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/feedback-core/internal/infrastructure/logging"
	"github.com/nerrad567/feedback-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/feedback-core/internal/monitor"
	"github.com/nerrad567/feedback-core/internal/output/controller"
	"github.com/nerrad567/feedback-core/migrations"
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

// finishTimeout bounds the final all-off frame on shutdown.
const finishTimeout = 5 * time.Second

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // startup sequence: each optional subsystem adds a branch
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting feedbackd",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"controllers", len(cfg.Controllers),
		"toys", len(cfg.Toys),
	)

	// Event log (optional)
	var (
		db   *database.DB
		repo eventlog.Repository
	)
	if cfg.Database.Enabled {
		db, err = database.Open(database.Config{
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
		if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		repo = eventlog.NewSQLiteRepository(db.DB)
		log.Info("event log ready", "path", cfg.Database.Path)
	} else {
		log.Info("event log disabled")
	}

	recorder := eventlog.NewRecorder(repo)
	recorder.SetLogger(log)
	recorderCtx, stopRecorder := context.WithCancel(context.Background())
	recorderDone := make(chan struct{})
	go func() {
		recorder.Run(recorderCtx)
		close(recorderDone)
	}()
	defer func() {
		stopRecorder()
		<-recorderDone
	}()

	// MQTT (optional)
	var (
		mqttClient *mqtt.Client
		publisher  mqttout.Publisher
	)
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		mqttClient.SetLogger(log)
		defer func() {
			st := mqttClient.Stats()
			log.Info("disconnecting from MQTT",
				"published", st.Published,
				"received", st.Received,
				"handler_errors", st.HandlerErrors,
				"reconnects", st.Reconnects,
			)
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		publisher = mqttClient
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	// InfluxDB (optional)
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
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Proxy servers outlive the signal context so the final frame can still
	// reach PinOne boards during shutdown.
	procCtx, stopProcs := context.WithCancel(context.Background())
	defer stopProcs()

	cab, err := cabinet.Build(procCtx, cfg, cabinet.Deps{
		Logger:    log,
		Publisher: publisher,
	})
	if err != nil {
		return fmt.Errorf("building cabinet: %w", err)
	}
	cab.SetEvents(recorder)
	if influxClient != nil {
		cab.SetTelemetry(influxClient)
	}

	// Status server (optional)
	var hub *monitor.Hub
	if cfg.Monitor.Enabled {
		srv, srvErr := monitor.New(monitor.Deps{
			Config:  cfg.Monitor,
			Logger:  log,
			Cabinet: cab,
			Events:  repo,
			Version: version,
		})
		if srvErr != nil {
			return fmt.Errorf("creating monitor: %w", srvErr)
		}
		if startErr := srv.Start(ctx); startErr != nil {
			return fmt.Errorf("starting monitor: %w", startErr)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing monitor", "error", closeErr)
			}
		}()
		hub = srv.Hub()
		cab.SetOnFrame(hub.PublishFrame)
	}

	wireHooks(cab, recorder, hub, mqttClient, log)

	if cfg.MQTT.LayerIngress && mqttClient != nil {
		topic := mqtt.Topics{}.AllToyLayers()
		if subErr := mqttClient.Subscribe(topic, byte(cfg.MQTT.QoS), cab.HandleLayerMessage); subErr != nil {
			return fmt.Errorf("subscribing to layer ingress: %w", subErr)
		}
		log.Info("layer ingress enabled", "topic", topic)
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	if err := cab.Init(ctx); err != nil {
		return fmt.Errorf("initialising cabinet: %w", err)
	}
	log.Info("initialisation complete, running", "run_id", recorder.RunID())

	runErr := cab.Run(ctx)

	log.Info("shutdown signal received, cleaning up")
	finishCtx, cancelFinish := context.WithTimeout(context.Background(), finishTimeout)
	defer cancelFinish()
	if err := cab.Finish(finishCtx); err != nil {
		log.Warn("cabinet finish reported errors", "error", err)
	}

	// Deferred Close() calls run in reverse order: monitor, proxy servers,
	// InfluxDB, MQTT, event recorder, database.

	log.Info("feedbackd stopped")
	return runErr
}

// wireHooks forwards controller state changes and events to the monitor hub
// and MQTT. Both hooks run on the tick goroutine.
func wireHooks(cab *cabinet.Cabinet, recorder *eventlog.Recorder, hub *monitor.Hub, mqttClient *mqtt.Client, log *logging.Logger) {
	topics := mqtt.Topics{}

	cab.SetOnStateChange(func(name string, from, to controller.State) {
		if hub != nil {
			hub.PublishState(name, from, to)
		}
		if mqttClient != nil && mqttClient.IsConnected() {
			payload := fmt.Sprintf(`{"state":%q,"previous":%q}`, to.String(), from.String())
			if err := mqttClient.PublishRetained(topics.ControllerState(name), []byte(payload)); err != nil {
				log.Warn("publishing controller state failed", "controller", name, "error", err)
			}
		}
	})

	recorder.SetOnEvent(func(ev eventlog.Event) {
		if hub != nil {
			hub.PublishEvent(ev)
		}
		if mqttClient != nil && mqttClient.IsConnected() {
			payload, err := json.Marshal(ev)
			if err != nil {
				return
			}
			if err := mqttClient.Publish(topics.Event(string(ev.Kind)), payload, 0, false); err != nil {
				log.Warn("publishing event failed", "controller", ev.Controller, "error", err)
			}
		}
	})
}

// getConfigPath returns the configuration file path.
// Uses FEEDBACK_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("FEEDBACK_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies the enabled infrastructure connections. Nil clients
// are disabled subsystems and are skipped.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
