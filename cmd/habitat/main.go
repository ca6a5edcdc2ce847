// habitatT backend.
//
// This is the server entry point: it loads configuration, opens and
// migrates the SQLite database, wires the auth core and serves the HTTP
// API until interrupted.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/LeaderSteve84/habitatT-backend/internal/api"
	"github.com/LeaderSteve84/habitatT-backend/internal/auth"
	"github.com/LeaderSteve84/habitatT-backend/internal/infrastructure/config"
	"github.com/LeaderSteve84/habitatT-backend/internal/infrastructure/database"
	"github.com/LeaderSteve84/habitatT-backend/internal/infrastructure/influxdb"
	"github.com/LeaderSteve84/habitatT-backend/internal/infrastructure/logging"
	"github.com/LeaderSteve84/habitatT-backend/internal/infrastructure/mqtt"
	"github.com/LeaderSteve84/habitatT-backend/migrations"
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
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application body, separated from main for testability.
// It returns nil on a clean shutdown.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting habitat backend",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := database.Open(ctx, database.Config{
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

	repo := auth.NewPrincipalRepository(db.DB)
	if _, seedErr := auth.SeedAdmin(ctx, repo, cfg.Seed.AdminEmail, cfg.Seed.AdminPassword, log.Logger); seedErr != nil {
		return fmt.Errorf("seeding admin: %w", seedErr)
	}

	health := map[string]api.HealthChecker{"database": db}

	// MQTT is optional unless it carries notifications.
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(ctx, cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		health["mqtt"] = mqttClient
	} else {
		log.Info("MQTT disabled")
	}

	// InfluxDB is optional.
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
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
		health["influxdb"] = influxClient
	} else {
		log.Info("InfluxDB disabled")
	}

	notifier, err := newNotifier(cfg.Notify, mqttClient, log)
	if err != nil {
		return fmt.Errorf("configuring notifier: %w", err)
	}

	// A nil *influxdb.Client must not become a non-nil interface.
	var events auth.EventRecorder
	if influxClient != nil {
		events = influxClient
	}

	core, err := newAuthCore(cfg, repo, notifier, events, log)
	if err != nil {
		return fmt.Errorf("building auth core: %w", err)
	}

	deps := api.Deps{
		Config:        cfg.API,
		Cookie:        cfg.Security.Cookie,
		Logger:        log,
		Auth:          core.service,
		Guard:         core.guard,
		Revocations:   core.revocations,
		Resets:        core.resets,
		PruneInterval: cfg.GetPruneInterval(),
		HealthChecks:  health,
		Version:       version,
	}
	if influxClient != nil {
		deps.Gauges = influxClient
	}

	server, err := api.New(deps)
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

	log.Info("initialisation complete, waiting for shutdown signal",
		"address", server.Addr().String(),
	)

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	log.Info("habitat backend stopped")
	return nil
}

// getConfigPath returns the config file path from HABITAT_CONFIG or the default.
func getConfigPath() string {
	if path := os.Getenv("HABITAT_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
