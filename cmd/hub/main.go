package main

import (
	"circle-hub/auth"
	"circle-hub/contract"
	"circle-hub/domain/event"
	"circle-hub/errors"
	"circle-hub/internal"
	"circle-hub/moderation"
	"circle-hub/observability"
	"circle-hub/push"
	"circle-hub/repositories"
	"circle-hub/runtime"
	"circle-hub/runtime/workers"
	"circle-hub/server"
	"circle-hub/transport"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component and owns the lifecycle, so that deferred cleanups
// execute before the process exits.
func run() error {
	// 1. Configuration & Logger
	// A missing .env file is fine, the environment may already be set
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)
	censoredChar, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	profiles := repositories.NewProfileRepository(db)
	messages := repositories.NewMessageRepository(db, log, config.LimitMessages)
	locations := repositories.NewLocationRepository(db, config.LocationTTL)
	alerts := repositories.NewAlertRepository(db)
	callHistory := repositories.NewCallRepository(db)

	// 3. Moderation
	censored, err := moderation.NewEmbeddedLoader().LoadAll("censored", config.ExtraCensoredWords()...)
	if err != nil {
		return fmt.Errorf("censored words loading failed: %w", err)
	}
	moderator, err := moderation.NewModerator(censored.Words, censoredChar, log)
	if err != nil {
		return fmt.Errorf("moderator creation failed: %w", err)
	}
	log.Info("Censored words loaded", "words", len(censored.Words), "languages", censored.Languages)

	// 4. Outer stores: push gateway and presence mirror
	notifier, closeNotifier, err := newNotifier(config, log)
	if err != nil {
		return err
	}
	defer closeNotifier()

	presenceStore, closePresence := newPresenceStore(config, db, log)
	defer closePresence()

	// 5. Telemetry & Supervision
	counter := event.NewCounter()
	registry := runtime.NewRegistry()
	calls := runtime.NewCallManager(log, registry, callHistory, config.CallRetention, config.PersistTimeout)
	var hub *runtime.Hub
	monitor := observability.NewMonitoringManager(log, counter, func() observability.HubStats {
		stats := hub.Stats()
		return observability.HubStats{
			Connections: stats.Connections,
			Rooms:       stats.Rooms,
			ActiveCalls: stats.ActiveCalls,
		}
	}, config.MetricInterval)

	telemetry := workers.NewTelemetryWorker(log, config.TelemetryBufferSize,
		event.NewWorkerRestartedAfterPanicHandler(log, counter),
		event.NewMessageRelayedHandler(log, counter, config.LatencyThreshold),
		event.NewCensoredHandler(log, counter),
		event.NewSlowConsumerHandler(log, counter),
		event.NewChannelCapacityHandler(log, config.TelemetryBufferSize/10),
		event.NewProcessTrackerHandler(log),
		monitor,
	)
	locationHistory := workers.NewLocationHistoryWorker(log, locations, config.LocationBufferSize, config.PersistTimeout)

	sup := workers.NewSupervisor(log, telemetry, config.RestartInterval)
	sup.Add(
		telemetry,
		locationHistory,
		monitor,
		workers.NewHealthMonitoringWorker(log, telemetry, config.MetricInterval),
		workers.NewChannelCapacityWorker(log, []workers.NamedChannel{
			{Name: "telemetry", Channel: telemetry.Channel()},
			{Name: "location_history", Channel: locationHistory.Channel()},
		}, telemetry, config.MetricInterval),
		workers.NewCallEvictionWorker(log, calls, config.EvictionInterval),
	)

	// 6. Hub
	hub = runtime.NewHub(log, registry,
		runtime.NewPresenceBroadcaster(log, registry, presenceStore, config.PersistTimeout),
		runtime.NewRelay(log, registry, messages, moderator, locationHistory, telemetry, config.PersistTimeout),
		calls,
		runtime.NewEmergencyBroadcaster(log, registry, profiles, notifier, alerts, config.PushTimeout),
		telemetry,
	)

	// 7. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workersDone := make(chan struct{})
	go func() {
		defer close(workersDone)
		sup.Run(ctx)
	}()

	// 8. HTTP & gRPC health servers
	srv := server.NewServer(ctx, log, hub,
		auth.NewAuthenticator(log, auth.NewJWTVerifier(config.JWTSecret), profiles),
		transport.Options{
			BufferSize:     config.ConnectionBufferSize,
			PongWait:       config.PongWait,
			WriteWait:      config.WriteWait,
			MaxMessageSize: config.MaxMessageSize,
		}, monitor, db)
	httpServer := &http.Server{
		Addr:              config.Addr(),
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	healthAddress := fmt.Sprintf("%s:%d", config.Host, config.HealthPort)
	listener, err := net.Listen("tcp", healthAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", healthAddress, err)
	}
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	// Use an error channel to capture Serve() issues
	errChan := make(chan error, 2)
	go func() {
		log.Info("Starting gRPC health server", "address", healthAddress)
		if err := grpcServer.Serve(listener); err != nil && err != grpc.ErrServerStopped {
			errChan <- fmt.Errorf("gRPC health server error: %w", err)
		}
	}()
	go func() {
		log.Info("Starting hub", "address", config.Addr(), "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 9. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err = <-errChan:
		log.Error("Server failed, shutting down", "error", err)
	}

	// 10. Final Cleanup
	healthServer.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()

	// Hijacked websocket connections are not tracked by http.Server.Shutdown
	hub.Shutdown(errors.ErrHubShuttingDown)
	if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
		log.Warn("HTTP server shutdown incomplete", "error", shutdownErr)
	}
	if waitErr := srv.Wait(shutdownCtx); waitErr != nil {
		log.Warn("Some connections were not cleaned up in time", "error", waitErr)
	}
	grpcServer.GracefulStop()
	stop()
	<-workersDone
	log.Info("Program stopped cleanly")

	return err
}

// newNotifier publishes emergency pushes over MQTT when a broker is configured,
// and only logs them otherwise.
func newNotifier(config internal.Config, log *slog.Logger) (contract.PushNotifier, func(), error) {
	if config.MQTTBrokerURL == "" {
		log.Warn("No MQTT broker configured, emergency pushes are only logged")
		return push.NewLogNotifier(log), func() {}, nil
	}
	notifier := push.NewMQTTNotifier(push.MQTTConfig{
		BrokerURL: config.MQTTBrokerURL,
		ClientID:  config.MQTTClientID,
		Username:  config.MQTTUsername,
		Password:  config.MQTTPassword,
		Topic:     config.MQTTPushTopic,
	}, log)
	if err := notifier.Connect(config.PushTimeout); err != nil {
		return nil, nil, fmt.Errorf("MQTT connection failed: %w", err)
	}
	return notifier, notifier.Disconnect, nil
}

// newPresenceStore always keeps last seen in badger and mirrors to Redis when configured.
// An unreachable Redis is logged and skipped, presence is not worth failing the hub for.
func newPresenceStore(config internal.Config, db *badger.DB, log *slog.Logger) (contract.PresenceStore, func()) {
	stores := repositories.PresenceStores{repositories.NewPresenceRepository(db)}
	if config.RedisAddr == "" {
		return stores, func() {}
	}
	redisStore := repositories.NewRedisPresenceStore(config.RedisAddr, config.RedisPassword,
		config.RedisDB, config.PresenceTTL, log)
	ctx, cancel := context.WithTimeout(context.Background(), config.PushTimeout)
	defer cancel()
	if err := redisStore.Ping(ctx); err != nil {
		log.Error("Redis unreachable, presence is not mirrored", "address", config.RedisAddr, "error", err)
		_ = redisStore.Close()
		return stores, func() {}
	}
	return append(stores, redisStore), func() { _ = redisStore.Close() }
}
