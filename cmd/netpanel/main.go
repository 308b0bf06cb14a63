// netpanel - home network dashboard backend
//
// netpanel fronts the home router's HTTPS API with a small LAN-facing
// REST API: it handles the router's pairing and challenge-response login
// flows, polls a fixed set of status endpoints on an interval, records
// the samples in SQLite, and optionally fans them out to MQTT and
// InfluxDB.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/netpanel/migrations"

	"github.com/nerrad567/netpanel/internal/api"
	"github.com/nerrad567/netpanel/internal/collector"
	"github.com/nerrad567/netpanel/internal/freebox"
	"github.com/nerrad567/netpanel/internal/history"
	"github.com/nerrad567/netpanel/internal/infrastructure/config"
	"github.com/nerrad567/netpanel/internal/infrastructure/database"
	"github.com/nerrad567/netpanel/internal/infrastructure/influxdb"
	"github.com/nerrad567/netpanel/internal/infrastructure/logging"
	"github.com/nerrad567/netpanel/internal/infrastructure/mqtt"
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
	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting netpanel",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
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
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Router client
	client, err := freebox.New(cfg.Router, log)
	if err != nil {
		return fmt.Errorf("creating router client: %w", err)
	}
	log.Info("router client ready",
		"host", cfg.Router.Host,
		"api_base", cfg.Router.APIBase,
		"registered", client.Auth().IsRegistered(),
	)

	// History store
	store, err := history.NewStore(db)
	if err != nil {
		return fmt.Errorf("creating history store: %w", err)
	}

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			mqttClient.Close()
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

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
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Start the status collector (optional)
	if cfg.Collector.Enabled {
		deps := collector.Deps{
			Config:      cfg.Collector,
			Client:      client,
			Profile:     client.Profile(),
			Store:       store,
			Logger:      log,
			TopicPrefix: cfg.MQTT.TopicPrefix,
		}
		// Assign only non-nil clients: a typed nil in the interface field
		// would defeat the collector's nil checks.
		if mqttClient != nil {
			deps.MQTT = mqttClient
		}
		if influxClient != nil {
			deps.Metrics = influxClient
		}

		coll, collErr := collector.New(deps)
		if collErr != nil {
			return fmt.Errorf("creating collector: %w", collErr)
		}
		coll.Start(ctx)
		defer func() {
			log.Info("stopping collector")
			coll.Close()
		}()
		log.Info("collector started",
			"interval_s", cfg.Collector.Interval,
			"endpoints", cfg.Collector.Endpoints,
		)
	} else {
		log.Info("collector disabled")
	}

	// Start the API server
	server, err := api.New(api.Deps{
		Config:  cfg.API,
		Logger:  log,
		Client:  client,
		History: store,
		DB:      db,
		Version: version,
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

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. Collector
	// 3. InfluxDB (if enabled)
	// 4. MQTT (if enabled)
	// 5. Database

	log.Info("netpanel stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses NETPANEL_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("NETPANEL_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
