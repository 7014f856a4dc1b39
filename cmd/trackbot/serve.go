package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"trackbot/internal/config"
	"trackbot/internal/logger"
	"trackbot/internal/media"
	"trackbot/internal/searchcache"
	"trackbot/internal/shutdown"
	"trackbot/internal/web"
)

const drainTimeout = 10 * time.Second

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot behind the web transport",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := opts.load()
			if err != nil {
				return err
			}

			log := newLogger(cfg, "trackbot")
			defer log.Close()
			if path != "" {
				log.Debug("Loaded configuration from: %s", path)
			}

			return serve(cfg, log)
		},
	}
}

func serve(cfg config.Config, log *logger.Logger) error {
	if err := os.MkdirAll(cfg.MediaDir, 0755); err != nil {
		return fmt.Errorf("failed to create media directory: %w", err)
	}
	lock := flock.New(filepath.Join(cfg.MediaDir, ".trackbot.lock"))
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another trackbot instance is already using " + cfg.MediaDir)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			log.Warn("Failed to release lock: %v", err)
		}
	}()

	sh := shutdown.New()
	sh.AddCleanup(func() {
		log.Debug("Shutdown requested, draining deliveries")
	})
	sh.Listen()
	ctx := sh.Context()

	store, err := media.Open(cfg.CacheBackend, cfg.CacheDir, log)
	if err != nil {
		return fmt.Errorf("failed to open media cache: %w", err)
	}
	defer store.Close()

	uploads, err := web.OpenUploads(cfg.MediaDir, cfg.MediaRetentionWindow(), log)
	if err != nil {
		return err
	}
	messages := web.NewMessageManager()
	gw := web.NewGateway(messages, uploads, log)

	reg := newRegistry(cfg)
	results := searchcache.New()
	b, err := newBot(cfg, gw, store, reg, results, log)
	if err != nil {
		return err
	}

	results.StartSweeper(ctx, cfg.SearchSweepInterval())
	uploads.StartSweeper(ctx, max(cfg.MediaRetentionWindow()/4, time.Minute))
	messages.StartCleanup(ctx)

	server := web.NewServer(ctx, gw, b, sh.Go, log)
	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           server.Router(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting web transport on %s with providers %v", cfg.Listen, reg.Tags())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		sh.Shutdown()
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error: %v", err)
	}
	if !sh.WaitTimeout(drainTimeout) {
		log.Warn("Deliveries still running after %s, exiting anyway", drainTimeout)
	}

	log.Info("Server stopped")
	return nil
}
