package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sasta-kro/corvus-paas/leadmagnet-host/augment"
	"github.com/sasta-kro/corvus-paas/leadmagnet-host/config"
	"github.com/sasta-kro/corvus-paas/leadmagnet-host/handlers"
	"github.com/sasta-kro/corvus-paas/leadmagnet-host/site"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server (public pages, submissions, admin API)",
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, args []string) error {
			return runServe(command.Context())
		},
	}
}

// runServe wires everything together and blocks until SIGINT/SIGTERM,
// then gives in-flight requests SHUTDOWN_TIMEOUT to finish.
func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer app.close()

	app.logger.Info("lead magnet host starting",
		"port", app.config.Port,
		"db_driver", app.config.DBDriver,
		"storage_backend", app.config.StorageBackend,
		"log_format", app.config.LogFormat,
		"admin_protected", app.config.AdminPassword != "",
	)
	for _, warning := range configWarnings(app.config) {
		app.logger.Warn(warning)
	}

	augmenter, err := augment.New(augment.Options{ContainerID: app.config.GTMContainerID})
	if err != nil {
		return err
	}

	router := handlers.CreateAndSetupRouter(handlers.RouterDependencies{
		Logger:             app.logger,
		Database:           app.database,
		Publisher:          app.publisher,
		Responder:          site.NewResponder(app.database, app.assetStore, augmenter, app.logger),
		AdminPassword:      app.config.AdminPassword,
		AllowedOrigin:      app.config.AllowedOrigin,
		MaxUploadBytes:     app.config.MaxUploadBytes,
		SubmissionMaxBytes: app.config.SubmissionMaxBytes,
	})

	// the sweep loop stops with ctx, on the same signal as the server
	go app.publisher.StartOrphanSweepLoop(ctx, app.config.OrphanSweepInterval)

	server := &http.Server{
		Addr:              ":" + app.config.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		// uploads of up to MAX_UPLOAD_BYTES are read and published inside one request
		ReadTimeout:  2 * time.Minute,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		app.logger.Info("http server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
		close(serverErrors)
	}()

	select {
	case err := <-serverErrors:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	app.logger.Info("shutting down", "timeout", app.config.ShutdownTimeout.String())
	shutdownContext, cancel := context.WithTimeout(context.Background(), app.config.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownContext); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	app.logger.Info("server stopped")
	return nil
}

// configWarnings lists settings that are valid but leave part of the product switched off.
func configWarnings(appConfig *config.Config) []string {
	var warnings []string
	if appConfig.AdminPassword == "" {
		warnings = append(warnings, "ADMIN_PASSWORD is not set, the admin API is open to anyone")
	}
	if appConfig.GTMContainerID == "" {
		warnings = append(warnings, "GTM_CONTAINER_ID is not set, lead magnet pages are served without the tag manager snippet and noscript fallback")
	}
	return warnings
}
