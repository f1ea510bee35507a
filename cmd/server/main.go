package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/igzam/itemgest/internal/api"
	"github.com/igzam/itemgest/internal/catalog"
	"github.com/igzam/itemgest/internal/config"
	"github.com/igzam/itemgest/internal/convert"
	"github.com/igzam/itemgest/internal/pipeline"
	"github.com/igzam/itemgest/internal/store"
	"github.com/igzam/itemgest/internal/subjects"
	"github.com/igzam/itemgest/internal/workspace"
)

func main() {
	cfg := config.Load()
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ws, err := workspace.Open(cfg.DataDir)
	if err != nil {
		log.Error("open workspace", "error", err)
		os.Exit(1)
	}
	registry, err := subjects.Load(cfg.SubjectsFile)
	if err != nil {
		log.Error("load subjects", "path", cfg.SubjectsFile, "error", err)
		os.Exit(1)
	}
	log.Info("subjects loaded", "count", len(registry.Codes()))

	results, err := store.Open(ctx, store.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Error("open result store", "driver", cfg.DBDriver, "error", err)
		os.Exit(1)
	}

	// Initialize clients.
	var cat *catalog.Client
	if cfg.CatalogURL != "" {
		cat = catalog.NewClient(cfg.CatalogURL, cfg.CatalogToken, cfg.CatalogInsecureTLS, catalog.NewStats(time.Hour))
	}
	var pub *pipeline.Publisher
	if cfg.PublishEnabled && cat != nil {
		pub = pipeline.NewPublisher(cat, log, cfg.PublishMaxRetries)
	}

	soffice := convert.NewSoffice(cfg.SofficePath, cfg.ConvertTimeout, log)
	soffice.MaxRetries = cfg.ConvertMaxRetries
	soffice.RetryInterval = cfg.ConvertRetryInterval
	if bin, err := soffice.Binary(); err != nil {
		log.Warn("soffice not found; only .html and .md sources will convert", "error", err)
	} else {
		log.Info("using soffice", "path", bin)
	}
	conv := convert.New(soffice, log)

	// Initialize pipeline.
	worker := pipeline.NewWorker(ws, registry, conv, results, pub, log)
	orch := pipeline.NewOrchestrator(pipeline.Options{
		WorkerCount:  cfg.WorkerCount,
		MaxQueueSize: cfg.MaxQueueSize,
		JobTTL:       cfg.JobTTL,
	}, worker, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	deps := api.Deps{
		Orchestrator: orch,
		Workspace:    ws,
		Subjects:     registry,
		Store:        results,
		Catalog:      cat,
		Previewer:    conv,
	}
	srv := api.NewServer(deps, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		orch.Stop()
		if cat != nil {
			cat.Close()
		}
		results.Close()
	}()

	log.Info("starting itemgest", "port", cfg.Port, "publish", pub != nil, "db", cfg.DBDriver)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	<-done
}
