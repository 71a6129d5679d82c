package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/chatrelay/relay/internal/api/v1/routes"
	"github.com/chatrelay/relay/internal/config"
	"github.com/chatrelay/relay/internal/logger"
	"github.com/chatrelay/relay/internal/services"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const (
	shutdownGracePeriod = 10 * time.Second
	readTimeout         = 15 * time.Second
	idleTimeout         = 120 * time.Second
	// writeSlack leaves room to write an error after the upstream deadline
	writeSlack = 15 * time.Second
)

func newServeCmd() *cobra.Command {
	var cfgPath string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			if cmd.Flags().Changed("port") {
				if port <= 0 || port > 65535 {
					return fmt.Errorf("port override %d must be a valid TCP port", port)
				}
				cfg.Server.Port = port
			}

			logger.Init(os.Stderr, cfg.Log.Level, cfg.Log.Format)

			return serve(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&cfgPath, "config", "", "optional YAML configuration file")
	cmd.Flags().IntVar(&port, "port", config.DefaultPort, "override the listen port")
	return cmd
}

func setupRouter(cfg *config.Config) (http.Handler, *services.Services, error) {
	svc, err := services.InitializeServices(cfg, nil)
	if err != nil {
		return nil, nil, err
	}
	return routes.NewRouter(cfg, svc), svc, nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	handler, svc, err := setupRouter(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close services")
		}
	}()

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: cfg.Upstream.Timeout + writeSlack,
		IdleTimeout:  idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("component", logger.SERVER).
			Str("addr", httpServer.Addr).
			Dur("upstream_timeout", cfg.Upstream.Timeout).
			Msg("Server starting")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info().Str("component", logger.SERVER).Msg("Shutdown requested")
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	log.Info().Str("component", logger.SERVER).Msg("Server stopped")
	return nil
}
