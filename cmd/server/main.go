// Command server hosts the ProcessingUnit scheduler behind the demo
// observer HTTP/WebSocket surface: it loads the block registry, starts
// the scheduler, and serves instance listing, command submission, and
// a live change-event stream.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"

	"flowforge-engine/internal/config"
	"flowforge-engine/internal/observer"
	"flowforge-engine/internal/registry"
	"flowforge-engine/internal/scheduler"
	"flowforge-engine/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	base := logger.Init(cfg.Logging.Level)
	log := logger.NewLogrus(base)
	log.Info("starting flowforge-engine", logger.Fields{"address": cfg.Server.Address})

	fs := afero.NewOsFs()

	reg := registry.New(registry.Config{
		AcceptableEngineVersions:    cfg.Registry.AcceptableEngineVersions,
		RemoveDuplicateDependencies: cfg.Registry.RemoveDuplicateDeps,
		HandshakeTimeout:            cfg.Registry.PluginHandshakeTimeout,
		Logger:                      log,
	})
	if err := reg.Load(fs, cfg.Registry.PluginsDir); err != nil {
		log.Warn("initial registry load failed, continuing with an empty registry", logger.Fields{"error": err.Error()})
	}
	defer reg.Close()

	unit := scheduler.New(cfg.Scheduler.ProcessingDelay, cfg.Scheduler.CommandQueueLen, log)
	unit.StartProcessing()
	defer unit.StopProcessing(cfg.Scheduler.StopTimeout)

	hub := observer.NewHub(log)
	snapshotFs := afero.NewBasePathFs(fs, cfg.Registry.SnapshotDir)
	snapshots := observer.NewSnapshotListener(snapshotFs, "/", log)

	srv := observer.NewServer(unit, reg, hub, snapshots, log)

	httpServer := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      srv.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("http server listening", logger.Fields{"address": httpServer.Addr})
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server failed", logger.Fields{"error": err.Error()})
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Warn("http server forced shutdown", logger.Fields{"error": err.Error()})
	}

	log.Info("shutdown complete", nil)
}
