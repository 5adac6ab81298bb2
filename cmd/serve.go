package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/isdelr/dirback/internal/api"
	"github.com/isdelr/dirback/internal/auth"
	"github.com/isdelr/dirback/internal/monitoring"
	"github.com/isdelr/dirback/internal/websocket"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket API with the backup scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(opts)
		},
	}
}

func serve(opts *rootOptions) error {
	cfg := opts.cfg

	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	// Set up WebSocket Hub
	hub := websocket.NewHub()
	go hub.Run()
	a.dispatcher.Observe(websocket.NewBroadcaster(hub))

	if err := os.MkdirAll(cfg.StoreDir, 0755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	// Set up and run the background storage monitor
	storageMonitor := monitoring.NewStorageMonitor(cfg.StoreDir, cfg.StorageWarnPercent, a.events)
	go storageMonitor.Run()

	// Set up and run the background scheduler
	scheduler := monitoring.NewScheduler(a.schedules, a.dispatcher, a.events)
	go scheduler.Run()

	authenticator := auth.New(cfg.JWTSecret)
	if !authenticator.Enabled() {
		log.Warn().Msg("JWT_SECRET is empty, API authentication is disabled")
	}

	router := api.NewRouter(api.Dependencies{
		Dispatcher:     a.dispatcher,
		Events:         a.events,
		Schedules:      a.schedules,
		Storage:        storageMonitor,
		Hub:            hub,
		Auth:           authenticator,
		AllowedOrigins: cfg.AllowedOrigins,
		EngineMode:     cfg.EngineMode,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.ServerPort),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.ServerPort).Str("engine", cfg.EngineMode).Msg("Server starting")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	}
	log.Info().Msg("Shutting down server...")

	storageMonitor.Stop()
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	hub.Stop()

	log.Info().Msg("Server exiting")
	return nil
}
