package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	httpadapter "github.com/PabloGalante/quiet-room/internal/adapters/http"
	"github.com/PabloGalante/quiet-room/internal/observability"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose the room as a local HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("port") {
			cfg.Port = servePort
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := buildApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.close()

		srv := &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           httpadapter.NewServer(a.svc),
			ReadHeaderTimeout: 10 * time.Second,
		}

		log := observability.WithFields("component", "http", "vendor", a.svc.Vendor())
		errCh := make(chan error, 1)
		go func() {
			log.Info("quiet room listening", "port", cfg.Port)
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
		}

		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&servePort, "port", "", "HTTP port (default from config, 8080)")
	rootCmd.AddCommand(serveCmd)
}
