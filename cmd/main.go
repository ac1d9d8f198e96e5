package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"atmeex_cloud/internal/atmeex"
	"atmeex_cloud/internal/config"
	"atmeex_cloud/internal/handlers"
	"atmeex_cloud/internal/logger"
	"atmeex_cloud/internal/publisher"
	"atmeex_cloud/internal/repository"
	"atmeex_cloud/internal/repository/db"
	"atmeex_cloud/internal/server"
	"atmeex_cloud/internal/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "path to config file (default configs/config.yml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}
	log := logger.Get(cfg.LogLevel)

	sqlDB, err := db.InitDB(cfg.DB.Path)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err, "path", cfg.DB.Path)
	}
	defer func() {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	repos := repository.NewRepository(sqlDB, newMirror(cfg.Blob, log))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := service.NewMetrics()
	metrics.MustRegister(reg)

	var statePublisher service.StatePublisher
	if mq := newPublisher(cfg.MQTT, log); mq != nil {
		defer mq.Close()
		statePublisher = mq
	}

	newClient := service.NewAtmeexClientFactory(atmeex.Config{
		BaseURL:        cfg.Atmeex.BaseURL,
		RequestTimeout: cfg.Atmeex.RequestTimeout,
	})
	integ := service.NewIntegration(service.IntegrationDeps{
		Repos:        repos,
		NewClient:    newClient,
		PollInterval: cfg.Atmeex.PollInterval,
		SetupTimeout: cfg.Atmeex.RequestTimeout * 2,
		Metrics:      metrics,
		Publisher:    statePublisher,
		Log:          log.Named("integration"),
	})

	if err := integ.LoadAll(context.Background()); err != nil {
		log.Errorw("some config entries failed to load", "err", err)
	}

	flow, err := service.NewConfigFlow(newClient, repos.Entries, integ, log.Named("config_flow"))
	if err != nil {
		log.Fatalw("failed to build config flow", "err", err)
	}
	auth := service.NewAuthService(repos.Auth, signingKey(cfg.Auth.SigningKey, log), cfg.Auth.TokenTTL)
	services := service.NewService(auth, integ, flow, service.NewEventLogService(repos.EventRepo))
	apiHandler := handlers.NewHandler(services, reg, log.Named("http"))

	srv := &server.Server{}
	go func() {
		if err := srv.Run(cfg.Port, apiHandler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
	log.Infow("server started", "port", cfg.Port)

	waitForShutdown(srv, integ, log)
}

// newMirror returns the S3 credential mirror when blob storage is configured.
func newMirror(cfg config.BlobConfig, log *logger.Logger) repository.EntryMirror {
	if cfg.Endpoint == "" {
		return nil
	}
	m, err := repository.NewS3Mirror(cfg)
	if err != nil {
		log.Fatalw("failed to init blob mirror", "err", err, "endpoint", cfg.Endpoint)
	}
	log.Infow("blob mirror enabled", "endpoint", cfg.Endpoint, "bucket", cfg.Bucket)
	return m
}

// newPublisher connects the MQTT state publisher when a broker is configured.
// An unreachable broker disables publishing instead of stopping the service.
func newPublisher(cfg config.MQTTConfig, log *logger.Logger) *publisher.MQTT {
	if cfg.Broker == "" {
		return nil
	}
	mq, err := publisher.NewMQTT(cfg, log.Named("mqtt"))
	if err != nil {
		log.Errorw("mqtt publisher disabled", "err", err)
		return nil
	}
	return mq
}

// signingKey falls back to a random per-process key; issued tokens then die with the process.
func signingKey(configured string, log *logger.Logger) string {
	if configured != "" {
		return configured
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		log.Fatalw("failed to generate signing key", "err", err)
	}
	log.Warnw("auth.signing_key not set; using a random key")
	return hex.EncodeToString(buf)
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(srv *server.Server, integ *service.Integration, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}
	integ.Close(ctx)
}
