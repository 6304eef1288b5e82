package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tranvh2/marquee/api"
	"github.com/tranvh2/marquee/config"
	"github.com/tranvh2/marquee/display"
	"github.com/tranvh2/marquee/gateway"
	"github.com/tranvh2/marquee/media"
	"github.com/tranvh2/marquee/store"
	"github.com/tranvh2/marquee/wakeful"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.GetLogLevel(),
	})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.NewDatabase(filepath.Join(cfg.Data.Path, "marquee.db"))
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	gw := gateway.New(cfg.Gateway.URL, cfg.GatewayTimeout())

	var (
		mediaOpener api.MediaOpener
		spool       *media.Spool
	)
	if cfg.Media.S3Bucket != "" {
		mediaStore, err := media.NewStore(ctx, cfg.Media.S3Bucket, cfg.Media.AWSProfile)
		if err != nil {
			log.Fatalf("Failed to initialize media store: %v", err)
		}
		spool, err = media.NewSpool(mediaStore, filepath.Join(cfg.Data.Path, "spool"))
		if err != nil {
			log.Fatalf("Failed to initialize media spool: %v", err)
		}
		mediaOpener = mediaStore
	}

	ctrl := display.NewController(cfg.Display.Output)

	server := api.NewServer(cfg, db, gw, mediaOpener, spool, ctrl)
	if err := server.Start(); err != nil {
		log.Fatalf("Failed to start api server: %v", err)
	}

	if cfg.Wakeful.Enabled {
		watcher := display.NewWatcher(ctrl)
		go watcher.Run()
		defer watcher.Stop()

		maintainer := wakeful.New(watcher.C)
		maintainer.Start()
		// registered after watcher.Stop so the maintainer stops
		// consuming visibility transitions first
		defer maintainer.Stop()
	}

	httpServer := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: server.Handler(),
	}
	go func() {
		slog.Info("starting web server", "addr", cfg.Server.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("web server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	// Stop closes the SSE stream so open event connections terminate
	// and Shutdown can drain.
	server.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("web server shutdown incomplete", "error", err)
	}
}
