package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/clinrag/clinrag/internal/server"
)

// newServeCmd creates the serve command.
func newServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Long: `Start the clinrag HTTP API.

Endpoints:
  POST /api/v1/query              unified routed retrieval
  POST /api/v1/answer             retrieval plus generated answer
  POST /api/v1/search/vector      raw semantic search
  POST /api/v1/search/graph       raw template execution
  GET  /api/v1/search/templates   template registry listing
  GET  /api/v1/search/entity-types
  GET  /healthz`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if host != "" {
				cfg.Server.Host = host
			}
			if port != 0 {
				cfg.Server.Port = port
			}

			logger, cleanup, err := setupLogging(cfg, true)
			if err != nil {
				return err
			}
			defer cleanup()

			a, err := newApp(cmd.Context(), cfg, logger, cfg.Templates.Watch)
			if err != nil {
				return err
			}
			defer a.Close()

			srv := server.New(a.engine, a.generator, a.store, logger)
			addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start(addr)
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				logger.Info("shutting down", "signal", sig.String())
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return srv.Shutdown(ctx)
			}
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Bind host (overrides config)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Bind port (overrides config)")

	return cmd
}
