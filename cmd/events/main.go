package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"eventboard/internal/amqp"
	"eventboard/internal/cache"
	"eventboard/internal/cli"
	"eventboard/internal/config"
	apphttp "eventboard/internal/http"
	"eventboard/internal/log"
	"eventboard/internal/metrics"
	"eventboard/internal/provider"
	"eventboard/internal/remote"
	"eventboard/internal/services"
	"eventboard/internal/storage"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, stop := cli.SignalContext()
	defer stop()

	m := metrics.New()

	res, err := cli.OpenStorage(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to open storage", log.FieldError, err, log.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Warn("Storage close failed", log.FieldError, err)
		}
	}()

	remoteClient, err := remote.New(remote.Config{
		BaseURL:   cfg.RemoteBaseURL,
		Timeout:   cfg.RemoteTimeout,
		CacheSize: cfg.RemoteCacheSize,
		CacheTTL:  cfg.RemoteCacheTTL,
	}, logger, m)
	if err != nil {
		logger.Error("Failed to build remote client", log.FieldError, err, log.FieldURL, cfg.RemoteBaseURL)
		os.Exit(1)
	}

	cacheManager := cache.NewManager(logger)
	if c := remoteClient.Cache(); c != nil {
		cacheManager.Register(c)
	}
	cacheManager.StartCleanup(time.Minute)
	defer cacheManager.Stop()

	events := provider.New(ctx, res.Storage, provider.Options{
		Logger:  logger,
		Metrics: m,
		Seed:    seeder(cfg, remoteClient),
	})

	// Notifications are optional: without a broker the notifier still keeps
	// the remote cache coherent.
	var publisher services.Publisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("AMQP unavailable, change notifications disabled", log.FieldError, err)
		} else {
			defer amqpClient.Close()
			publisher = amqpClient
		}
	}
	events.Subscribe(services.NewChangeNotifier(publisher, remoteClient, logger, m).Listener())

	srv, err := apphttp.NewServer(":"+cfg.Port, apphttp.Options{
		Events:        events,
		Remote:        remoteClient,
		Logger:        logger,
		Metrics:       m,
		RateLimitRPM:  cfg.RateLimitRPM,
		RemoteTimeout: cfg.RemoteTimeout,
		Checks: map[string]apphttp.Check{
			"storage": func(ctx context.Context) error { return storage.Ping(ctx, res.Storage) },
		},
	})
	if err != nil {
		logger.Error("Failed to build HTTP server", log.FieldError, err)
		os.Exit(1)
	}
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting events server",
			"port", cfg.Port,
			log.FieldBackend, cfg.DataBackend,
			"initial_source", cfg.InitialSource,
			log.FieldCount, len(events.List()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down", log.FieldOperation, log.OpShutdown)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		return events.Close(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

// seeder picks where the first list comes from when storage is empty.
func seeder(cfg *config.Config, rc *remote.Client) provider.Seeder {
	if path, ok := cfg.InitialSourceFile(); ok {
		return provider.FileSeed(path)
	}
	if cfg.InitialSource == "remote" {
		return rc.Records
	}
	return nil
}
