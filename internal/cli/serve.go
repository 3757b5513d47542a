package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	httpadapter "github.com/couchcryptid/sahayata-dashboard/internal/adapter/http"
	"github.com/couchcryptid/sahayata-dashboard/internal/observability"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dashboard service",
	Long: `Serve the dashboard page and its JSON API, refresh the hazard heat layer
every HAZARD_REFRESH_INTERVAL and the incidents panel every
INCIDENT_REFRESH_INTERVAL, and shut down gracefully on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	a, err := newApp(cfg, logger, metrics)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := httpadapter.NewServer(cfg.HTTPAddr, a.readiness(), a.dashboard(), logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	// Start refresh loops.
	go func() {
		if err := a.refresher.Run(ctx); err != nil {
			logger.Error("hazard refresher error", "error", err)
		}
	}()
	go func() {
		if err := a.panel.Run(ctx); err != nil {
			logger.Error("incident panel error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}
