// cmd/health-profile/serve.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mcp-health-profile/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP tool server",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		return serve(a)
	},
}

func newServer(a *app) (*server.HealthProfileServer, error) {
	return server.NewHealthProfileServer(&server.Config{
		Host:   a.cfg.Server.Host,
		Port:   a.cfg.Server.Port,
		APIKey: a.cfg.Server.APIKey,
	}, a.store, a.controller, a.logger)
}

func serve(a *app) error {
	if !a.cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	srv, err := newServer(a)
	if err != nil {
		return err
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(ctx); err != nil {
			errCh <- err
		}
	}()

	var serveErr error
	select {
	case <-sigCh:
		a.logger.Info("received shutdown signal")
	case serveErr = <-errCh:
		a.logger.Error("server error", zap.Error(serveErr))
	}

	a.logger.Info("shutting down")
	cancel()
	if err := srv.Stop(); err != nil {
		a.logger.Warn("error during shutdown", zap.Error(err))
	}
	return serveErr
}
