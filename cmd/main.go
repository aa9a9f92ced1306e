package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/maintenance-scheduler/internal/audit"
	"github.com/ukydev/maintenance-scheduler/internal/config"
	"github.com/ukydev/maintenance-scheduler/internal/db"
	"github.com/ukydev/maintenance-scheduler/internal/handlers"
	"github.com/ukydev/maintenance-scheduler/internal/maintenance"
	"github.com/ukydev/maintenance-scheduler/internal/middleware"
	"github.com/ukydev/maintenance-scheduler/internal/seed"
)

// closer releases an external connection on shutdown.
type closer func(context.Context)

// buildAuditSinks connects the optional Mongo and MQTT audit sinks.
// A sink that cannot connect is logged and skipped. When Mongo is
// connected it is also returned as the store that serves audit queries.
func buildAuditSinks(ctx context.Context, cfg *config.Config, logger log.FieldLogger) ([]audit.Recorder, maintenance.AuditStore, []closer) {
	var sinks []audit.Recorder
	var store maintenance.AuditStore
	var closers []closer

	if cfg.MongoURI != "" {
		connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		client, err := db.ConnectMongo(connectCtx, cfg.MongoURI)
		cancel()
		if err != nil {
			logger.WithError(err).Warn("MongoDB unavailable, audit events stay in memory")
		} else {
			coll := &db.MongoCollection{Collection: client.Database(cfg.MongoDatabase).Collection(cfg.MongoCollection)}
			recorder := audit.NewMongoRecorder(coll)
			sinks = append(sinks, recorder)
			store = recorder
			closers = append(closers, func(ctx context.Context) { _ = client.Disconnect(ctx) })
			logger.WithFields(log.Fields{
				"database":   cfg.MongoDatabase,
				"collection": cfg.MongoCollection,
			}).Info("Connected to MongoDB audit store")
		}
	}

	if cfg.MQTTBroker != "" {
		client, err := audit.ConnectMQTT(cfg.MQTTBroker, cfg.MQTTClientID, cfg.MQTTTimeout)
		if err != nil {
			logger.WithError(err).Warn("MQTT broker unavailable, audit events are not published")
		} else {
			sinks = append(sinks, audit.NewMQTTPublisher(client, cfg.MQTTTopic))
			closers = append(closers, func(context.Context) { client.Disconnect(250) })
			logger.WithFields(log.Fields{
				"broker": cfg.MQTTBroker,
				"topic":  cfg.MQTTTopic,
			}).Info("Publishing audit events to MQTT")
		}
	}
	return sinks, store, closers
}

// buildService creates the service and loads the seed fixture, if any.
func buildService(ctx context.Context, cfg *config.Config, logger log.FieldLogger, sinks []audit.Recorder, store maintenance.AuditStore) (*maintenance.Service, error) {
	opts := []maintenance.Option{maintenance.WithLogger(logger), maintenance.WithAuditSinks(sinks...)}
	if store != nil {
		opts = append(opts, maintenance.WithAuditStore(store))
	}
	svc := maintenance.New(opts...)
	if cfg.SeedFile == "" {
		return svc, nil
	}
	fixture, err := seed.Load(cfg.SeedFile)
	if err != nil {
		return nil, err
	}
	summary, err := seed.Apply(maintenance.WithActor(ctx, "seed"), svc, fixture)
	if err != nil {
		return nil, fmt.Errorf("apply seed %s: %w", cfg.SeedFile, err)
	}
	logger.WithFields(log.Fields{
		"file":        cfg.SeedFile,
		"programs":    summary.Programs,
		"equipment":   summary.Equipment,
		"technicians": summary.Technicians,
		"dates":       summary.Dates,
	}).Info("Seed loaded")
	return svc, nil
}

// scheduleGeneration runs GeneratePendingOrders on spec. A nil cron is
// returned when spec is empty.
func scheduleGeneration(spec string, svc *maintenance.Service, logger log.FieldLogger) (*cron.Cron, error) {
	if spec == "" {
		return nil, nil
	}
	c := cron.New()
	err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(maintenance.WithActor(context.Background(), "scheduler"), time.Minute)
		defer cancel()
		if _, err := svc.GeneratePendingOrders(ctx); err != nil {
			logger.WithError(err).Error("Scheduled order generation failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid GENERATE_CRON %q: %w", spec, err)
	}
	return c, nil
}

func newServer(cfg *config.Config, svc *maintenance.Service, logger log.FieldLogger) *http.Server {
	var limiter *middleware.RateLimitMiddleware
	if cfg.RateLimitRPS > 0 {
		limiter = middleware.NewRateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
	router := handlers.NewHandler(svc, logger).Router(limiter)
	return &http.Server{
		Addr:         cfg.Address(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func run(cfg *config.Config, logger *log.Logger) error {
	ctx := context.Background()

	sinks, store, closers := buildAuditSinks(ctx, cfg, logger)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for _, c := range closers {
			c(closeCtx)
		}
	}()

	svc, err := buildService(ctx, cfg, logger, sinks, store)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := svc.Close(flushCtx); err != nil {
			logger.WithError(err).Warn("Audit events left undelivered")
		}
	}()

	generation, err := scheduleGeneration(cfg.GenerateCron, svc, logger)
	if err != nil {
		return err
	}
	if generation != nil {
		generation.Start()
		defer generation.Stop()
		logger.WithField("schedule", cfg.GenerateCron).Info("Order generation scheduled")
	}

	srv := newServer(cfg, svc, logger)
	serverErrors := make(chan error, 1)
	go func() {
		logger.WithField("addr", srv.Addr).Info("HTTP server listening")
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.WithField("signal", sig.String()).Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("Graceful shutdown failed")
			return srv.Close()
		}
	}
	return nil
}

func main() {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	cfg, err := config.Load(envFile)
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}
	logger := log.StandardLogger()
	if err := cfg.ConfigureLogger(logger); err != nil {
		log.WithError(err).Fatal("Failed to configure logging")
	}
	if err := run(cfg, logger); err != nil {
		log.WithError(err).Fatal("Server stopped")
	}
}
