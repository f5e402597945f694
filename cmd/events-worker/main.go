package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"eventboard/internal/amqp"
	"eventboard/internal/cli"
	"eventboard/internal/config"
	"eventboard/internal/log"
	"eventboard/internal/metrics"
	"eventboard/internal/services"
	"eventboard/internal/sheets"
	gsheet "eventboard/internal/sheets/google"
	kvsheet "eventboard/internal/sheets/kv"
	"eventboard/internal/storage"
	"eventboard/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL")).WithComponent(log.ComponentWorker)
	logger.Info("Starting events-worker")

	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).ValidateWorker)

	ctx, stop := cli.SignalContext()
	defer stop()

	m := metrics.New()

	res, err := cli.OpenStorage(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to open storage", log.FieldError, err, log.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}
	defer func() { _ = res.Cleanup() }()

	exporter, err := newExporter(ctx, cfg, res.Storage, logger)
	if err != nil {
		logger.Error("Failed to initialize export target", log.FieldError, err, "target", cfg.ExportTarget)
		os.Exit(1)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	mirror := services.NewMirrorService(res.Storage, exporter, logger, m)
	mw, err := worker.NewMirrorWorker(mirror, cfg.MirrorCron, logger)
	if err != nil {
		logger.Error("Failed to create mirror worker", log.FieldError, err)
		os.Exit(1)
	}

	// A failed startup mirror is retried by the schedule.
	if err := mw.StartupMirror(ctx); err != nil {
		logger.Error("Startup mirror failed", log.FieldError, err)
	}
	if err := mw.Start(ctx); err != nil {
		logger.Error("Failed to start mirror schedule", log.FieldError, err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := amqpClient.ConsumePostsChanged(gctx, mw.HandlePostsChanged)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	if cfg.WorkerMetricsPort != "" {
		r := mux.NewRouter()
		r.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
		srv := &http.Server{Addr: ":" + cfg.WorkerMetricsPort, Handler: r, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", log.FieldError, err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := mw.Stop(shutdownCtx); err != nil {
		logger.Warn("Mirror schedule did not stop cleanly", log.FieldError, err)
	}
	at, count := mirror.LastRun()
	logger.Info("Worker stopped", "last_mirror", at, log.FieldCount, count)
}

func newExporter(ctx context.Context, cfg *config.Config, kv storage.KV, logger *log.Logger) (sheets.EventExporter, error) {
	if cfg.ExportTarget == "sheets" {
		return gsheet.NewFromEnv(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName, logger)
	}
	return kvsheet.New(kv, kvsheet.DefaultKey)
}
