package cmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"example.com/backstage/services/fleet/api"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the API server",
	RunE:  runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	log.Info().Msg("Starting server")

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	rt, err := newRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.close()

	server := api.NewServer(cfg.Server, rt.handlers, api.Options{
		Metrics:      rt.metrics,
		Gatherer:     rt.registry,
		NewRelic:     rt.tracer.App(),
		HealthChecks: rt.healthChecks(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
		return err
	}

	log.Info().Msg("Server exited properly")
	return nil
}
