package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	_ "github.com/lib/pq"
	"go.mongodb.org/mongo-driver/mongo"
	mongooptions "go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	participanthandler "amparo/internal/participant/handler"
	participantmetrics "amparo/internal/participant/metrics"
	participantsvc "amparo/internal/participant/service"
	identitystore "amparo/internal/participant/store/identity"
	profilestore "amparo/internal/participant/store/profile"
	"amparo/internal/platform/config"
	"amparo/internal/platform/httpserver"
	"amparo/internal/platform/logger"
	platformmetrics "amparo/internal/platform/metrics"
	platformredis "amparo/internal/platform/redis"
	schedulinghandler "amparo/internal/scheduling/handler"
	schedulingmetrics "amparo/internal/scheduling/metrics"
	schedulingsvc "amparo/internal/scheduling/service"
	appointmentstore "amparo/internal/scheduling/store/appointment"
	httptransport "amparo/internal/transport/http"
)

// main wires storage, services, and the HTTP router, then owns the server
// lifecycle. Business logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx := context.Background()

	stores, err := buildStores(ctx, cfg)
	if err != nil {
		log.Error("storage initialization failed", "driver", cfg.StorageDriver, "error", err)
		os.Exit(1)
	}
	defer stores.close(log)

	participantOpts := []participantsvc.Option{
		participantsvc.WithLogger(log),
		participantsvc.WithMetrics(participantmetrics.New()),
	}
	if stores.txRunner != nil {
		participantOpts = append(participantOpts, participantsvc.WithTxRunner(stores.txRunner))
	}
	participants := participantsvc.New(stores.identities, stores.profiles, participantOpts...)

	bookingMetrics := schedulingmetrics.New()
	var directory schedulingsvc.ParticipantDirectory = participants

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis initialization failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		directory = schedulingsvc.NewCachedDirectory(directory, redisClient.Client, log, bookingMetrics)
		stores.health["redis"] = redisClient.Health
		stores.closers = append(stores.closers, redisClient.Close)
	}

	bookings := schedulingsvc.New(stores.appointments, directory,
		schedulingsvc.WithLogger(log),
		schedulingsvc.WithMetrics(bookingMetrics),
	)

	router := httptransport.NewRouter(httptransport.Config{
		Handlers: []httptransport.Registrar{
			participanthandler.New(participants, log),
			schedulinghandler.New(bookings, log),
		},
		Metrics:      platformmetrics.New(),
		HealthChecks: stores.health,
	})

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting amparo", "addr", cfg.Addr, "storage_driver", cfg.StorageDriver)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}

// storeSet bundles the storage layer selected for this process together with
// the consistency and health hooks that depend on the substrate.
type storeSet struct {
	identities   participantsvc.IdentityStore
	profiles     participantsvc.ProfileStore
	appointments schedulingsvc.AppointmentStore
	txRunner     participantsvc.TxRunner
	health       map[string]httptransport.HealthCheck
	closers      []func() error
}

func (s *storeSet) close(log *slog.Logger) {
	for _, closeFn := range s.closers {
		if err := closeFn(); err != nil {
			log.Warn("close failed during shutdown", "error", err)
		}
	}
}

func buildStores(ctx context.Context, cfg config.Server) (*storeSet, error) {
	switch cfg.StorageDriver {
	case config.DriverPostgres:
		return buildPostgresStores(ctx, cfg)
	case config.DriverMongo:
		return buildMongoStores(ctx, cfg)
	case config.DriverMemory:
		return &storeSet{
			identities:   identitystore.NewInMemory(),
			profiles:     profilestore.NewInMemory(),
			appointments: appointmentstore.NewInMemory(),
			health:       map[string]httptransport.HealthCheck{},
		}, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

func buildPostgresStores(ctx context.Context, cfg config.Server) (*storeSet, error) {
	if cfg.PostgresDSN == "" {
		return nil, errors.New("POSTGRES_DSN is required for the postgres driver")
	}

	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	for _, ensure := range []func(context.Context, *sql.DB) error{
		identitystore.EnsureSchema,
		profilestore.EnsureSchema,
		appointmentstore.EnsureSchema,
	} {
		if err := ensure(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
	}

	return &storeSet{
		identities:   identitystore.NewPostgres(db),
		profiles:     profilestore.NewPostgres(db),
		appointments: appointmentstore.NewPostgres(db),
		txRunner:     newParticipantPostgresTx(db),
		health:       map[string]httptransport.HealthCheck{"postgres": db.PingContext},
		closers:      []func() error{db.Close},
	}, nil
}

func buildMongoStores(ctx context.Context, cfg config.Server) (*storeSet, error) {
	if cfg.MongoURI == "" {
		return nil, errors.New("MONGO_URI is required for the mongo driver")
	}

	client, err := mongo.Connect(ctx, mongooptions.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	db := client.Database(cfg.MongoDB)

	identities, err := identitystore.NewMongo(ctx, db)
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("initialize identity store: %w", err)
	}
	profiles, err := profilestore.NewMongo(ctx, db)
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("initialize profile store: %w", err)
	}
	appointments, err := appointmentstore.NewMongo(ctx, db)
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("initialize appointment store: %w", err)
	}

	return &storeSet{
		identities:   identities,
		profiles:     profiles,
		appointments: appointments,
		health: map[string]httptransport.HealthCheck{
			"mongo": func(ctx context.Context) error { return client.Ping(ctx, readpref.Primary()) },
		},
		closers: []func() error{func() error { return client.Disconnect(context.Background()) }},
	}, nil
}
