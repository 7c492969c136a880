package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docuwrite/internal/api"
	"github.com/dgallion1/docuwrite/internal/pipeline"
	"github.com/dgallion1/docuwrite/internal/publish"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the build service",
		Long:  "serve accepts uploaded sources over HTTP, builds them on a worker pool and serves the results.",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	cmd.Flags().String("port", "", "listen port")
	cmd.Flags().Int("workers", 0, "concurrent build jobs")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.Port, _ = cmd.Flags().GetString("port")
	}
	if cmd.Flags().Changed("workers") {
		cfg.WorkerCount, _ = cmd.Flags().GetInt("workers")
	}
	if err := cfg.ValidateServe(); err != nil {
		return err
	}
	log, err := newLogger(cmd.ErrOrStderr(), cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	rt, err := newRuntime(cfg, log)
	if err != nil {
		return err
	}

	var publisher pipeline.Publisher
	if cfg.PublishURL != "" {
		publisher = publish.NewClient(cfg.PublishURL, cfg.PublishAPIKey)
	}

	worker := pipeline.NewWorker(rt.builder(), publisher, buildOptions(cfg), log)
	orch := pipeline.NewOrchestrator(cfg, worker, log)
	orch.Start(ctx)

	srv := api.NewServer(orch, rt.stats, log, cfg)
	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-sigCh:
		case <-ctx.Done():
		}
		log.Info("shutting down...")

		// Stop accepting uploads before the queue closes.
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("http shutdown", "error", err)
		}
		orch.Stop()

		if err := rt.Close(); err != nil {
			log.Warn("runtime shutdown", "error", err)
		}
	}()

	log.Info("starting docuwrite", "port", cfg.Port, "engine", cfg.Engine, "workers", cfg.WorkerCount)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		cancel()
		<-done
		return err
	}
	<-done
	return nil
}
