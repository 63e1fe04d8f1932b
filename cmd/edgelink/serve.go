package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/edgelink-core/internal/api"
	"github.com/nerrad567/edgelink-core/internal/audit"
	"github.com/nerrad567/edgelink-core/internal/auth"
	"github.com/nerrad567/edgelink-core/internal/component"
	"github.com/nerrad567/edgelink-core/internal/edge"
	"github.com/nerrad567/edgelink-core/internal/infrastructure/config"
	"github.com/nerrad567/edgelink-core/internal/infrastructure/database"
	"github.com/nerrad567/edgelink-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/edgelink-core/internal/infrastructure/logging"
	"github.com/nerrad567/edgelink-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/edgelink-core/migrations"
)

// run is the server lifecycle, separated from the command for testability.
// It returns nil on a clean shutdown.
func run(ctx context.Context, configPath string) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting EdgeLink Core",
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

	db, migrated, err := openDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database ready", "path", cfg.Database.Path, "migrations_applied", migrated)

	// Sessions
	sessions, closeSessions, err := newSessionStore(ctx, cfg.Sessions)
	if err != nil {
		return err
	}
	defer closeSessions()
	log.Info("session store ready", "backend", cfg.Sessions.Backend)

	users := auth.NewUserRepository(db.DB)
	if _, seedErr := auth.SeedAdmin(ctx, users, log.Logger); seedErr != nil {
		return fmt.Errorf("seeding admin user: %w", seedErr)
	}
	authn := auth.NewAuthenticator(users, sessions, cfg.Security.JWT.Secret, cfg.Security.JWT.SessionLifetime())

	// MQTT (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttLog := log.Component("mqtt")
		mqttClient, err = mqtt.Connect(cfg.MQTT, mqtt.Options{
			Version:      version,
			Logger:       mqttLog,
			OnConnect:    func() { mqttLog.Info("MQTT connected") },
			OnDisconnect: func(err error) { mqttLog.Warn("MQTT disconnected", "error", err) },
		})
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
	} else {
		log.Info("MQTT disabled")
	}

	// Edge registry with write-behind persistence
	edges := edge.NewRegistry(edge.NewSQLiteRepository(db.DB))
	edges.SetLogger(log.Component("edge"))
	if mqttClient != nil {
		edges.SetPublisher(mqttClient)
	}
	if refreshErr := edges.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading edge registry: %w", refreshErr)
	}
	log.Info("edge registry initialised", "edges", edges.Count())

	edgeCtx, stopEdges := context.WithCancel(context.Background())
	edgesDone := make(chan struct{})
	go func() {
		defer close(edgesDone)
		edges.Run(edgeCtx, time.Duration(cfg.Edge.PersistInterval)*time.Second)
	}()
	defer func() {
		stopEdges()
		<-edgesDone
	}()

	// Components
	components, power, err := loadComponents(cfg, mqttClient, log)
	if err != nil {
		return err
	}

	// InfluxDB (optional)
	var timedata api.Timedata
	influxClient, err := influxdb.Connect(cfg.InfluxDB, func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})
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
		timedata = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	}

	srv, err := api.New(api.Deps{
		Config:     cfg.API,
		WS:         cfg.WebSocket,
		Edge:       cfg.Edge,
		Logger:     log,
		Auth:       authn,
		Components: components,
		Edges:      edges,
		Timedata:   timedata,
		Power:      power,
		Audit:      audit.NewSQLiteRepository(db.DB),
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := srv.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := srv.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, db, mqttClient, influxClient, srv); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal", "address", srv.Addr())

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	// Deferred closes run in reverse: API, InfluxDB, edge flush, MQTT,
	// sessions, database.
	log.Info("EdgeLink Core stopped")
	return nil
}

// openDatabase opens SQLite and applies pending migrations, returning how
// many ran.
func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*database.DB, int, error) {
	db, err := database.Open(database.Config{
		Path:        cfg.Path,
		WALMode:     cfg.WALMode,
		BusyTimeout: cfg.BusyTimeout,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("opening database: %w", err)
	}
	ran, err := db.Migrate(ctx, migrations.FS)
	if err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, 0, fmt.Errorf("running migrations: %w", err)
	}
	return db, ran, nil
}

// newSessionStore returns the configured session store and its cleanup.
func newSessionStore(ctx context.Context, cfg config.SessionsConfig) (auth.SessionStore, func(), error) {
	if cfg.Backend != "redis" {
		return auth.NewMemoryStore(), func() {}, nil
	}
	rdb, err := auth.DialRedis(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, fmt.Errorf("opening session store: %w", err)
	}
	return auth.NewRedisStore(rdb, cfg.Redis.KeyPrefix), func() {
		rdb.Close() //nolint:errcheck // Shutdown path
	}, nil
}

// loadComponents builds the component registry from the configuration
// document, creating the document on first boot, and registers the
// internal components.
func loadComponents(cfg *config.Config, mqttClient *mqtt.Client, log *logging.Logger) (*component.Registry, *component.ManualPQController, error) {
	store := component.NewFileStore(cfg.Components.ConfigFile)
	doc, created, err := store.LoadOrDefault()
	if err != nil {
		return nil, nil, fmt.Errorf("loading component config: %w", err)
	}

	registry := component.NewRegistry(component.DefaultControllerFactory())
	registry.SetLogger(log.Component("component"))
	if err := registry.Load(doc); err != nil {
		return nil, nil, fmt.Errorf("building components: %w", err)
	}
	registry.SetStore(store)
	if created {
		if err := registry.Persist(); err != nil {
			return nil, nil, fmt.Errorf("writing default component config: %w", err)
		}
		log.Info("default component configuration written", "path", store.Path())
	}

	meta, err := component.NewDevice(component.MetaID, component.ClassMeta, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("creating %s: %w", component.MetaID, err)
	}
	if err := registry.Add(meta); err != nil {
		return nil, nil, err
	}

	// A nil *mqtt.Client must not become a non-nil interface.
	var publisher component.CommandPublisher
	if mqttClient != nil {
		publisher = mqttClient
	}
	power, err := component.NewManualPQController("ess0", publisher)
	if err != nil {
		return nil, nil, fmt.Errorf("creating %s: %w", component.ManualPQID, err)
	}
	if err := registry.Add(power); err != nil {
		return nil, nil, err
	}

	if mqttClient != nil {
		feed := component.NewMQTTFeed(registry)
		feed.SetLogger(log.Component("feed"))
		if err := feed.Start(mqttClient, byte(cfg.MQTT.QoS)); err != nil {
			return nil, nil, err
		}
	}

	log.Info("components loaded", "count", len(registry.Components()), "path", store.Path())
	return registry, power, nil
}

// healthCheck verifies all infrastructure connections are healthy.
// Disabled integrations are passed as nil and skipped.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client, srv *api.Server) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
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
	if err := srv.HealthCheck(ctx); err != nil {
		return err
	}
	return nil
}
