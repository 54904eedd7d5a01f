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

	"github.com/SherClockHolmes/webpush-go"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"gear-maintenance-backend/config"
	"gear-maintenance-backend/internal/api"
	"gear-maintenance-backend/internal/db"
	"gear-maintenance-backend/internal/ingest"
	"gear-maintenance-backend/internal/notification"
	"gear-maintenance-backend/internal/store"
)

func newServeCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the activity ingest and the alert sweep",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return runServe(cfg)
		},
	}
}

func runServe(cfg *config.Config) error {
	var webpushOptions *webpush.Options
	if cfg.Push.Enabled() {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
	} else {
		log.Warn("VAPID keys are not configured; web push is disabled")
	}

	// Initialize database
	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	log.Info("database initialized successfully")

	// Create a context that can be cancelled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)

	opts := []notification.Option{notification.WithWarnRatio(cfg.Alerts.WarnRatio)}
	if cfg.MQTT.Broker != "" {
		publisher, err := notification.NewMQTTPublisher(cfg.MQTT)
		if err != nil {
			return err
		}
		defer publisher.Close()
		opts = append(opts, notification.WithPublisher(publisher))
	}
	if cfg.Slack.WebhookURL != "" {
		opts = append(opts, notification.WithPoster(notification.NewSlackPoster(cfg.Slack)))
	}
	pool := notification.NewWorkerPool(cfg.WorkerPool.Size, appStore, webpushOptions, opts...)
	pool.Start(ctx)

	sweeper, err := notification.NewSweeper(appStore, pool, cfg.Alerts.Schedule)
	if err != nil {
		return err
	}
	go func() {
		if err := sweeper.Run(ctx); err != nil {
			log.WithError(err).Error("alert sweep stopped")
		}
	}()

	// Run the activity ingest in the background
	ingestSvc := ingest.NewService(cfg.Ingest, appStore, pool)
	go ingestSvc.Run(ctx)

	// Initialize router
	router := api.NewRouter(appStore, webpushOptions, cfg)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start the server in a goroutine
	serverErr := make(chan error, 1)
	go func() {
		log.Infof("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("Shutdown signal received, stopping services...")
	case err := <-serverErr:
		return fmt.Errorf("HTTP server ListenAndServe: %w", err)
	}
	cancel()

	// Create a deadline to wait for.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server Shutdown: %w", err)
	}

	log.Info("Server gracefully stopped")
	return nil
}
