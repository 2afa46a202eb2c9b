// cmd/health-profile/main.go
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mcp-health-profile/internal/config"
	"mcp-health-profile/internal/healthstore"
	"mcp-health-profile/internal/logging"
	"mcp-health-profile/internal/profile"
	"mcp-health-profile/internal/publisher"
	"mcp-health-profile/internal/storage"
)

const version = "1.0.0"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "health-profile",
	Short: "Read and write personal health metrics",
	Long: `health-profile keeps a small health-data store (age, date of birth, biological sex,
blood type, height, body mass and dietary water) and shows it as a profile.

It can run as an MCP tool server or be used directly from the command line.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to health-profile.yaml config file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(saveCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "health-profile version %s\n", version)
	},
}

// app holds everything wired from the configuration.
type app struct {
	cfg        *config.Config
	logger     *zap.Logger
	storage    *storage.SQLiteStorage
	publisher  *publisher.RabbitMQActor
	store      *healthstore.Store
	controller *profile.Controller
}

func newApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return nil, err
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	stor, err := storage.NewSQLiteStorage(cfg.Store.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, storage: stor}

	opts := []healthstore.Option{
		healthstore.WithLogger(logger),
		healthstore.WithDenied(cfg.DeniedTypes()...),
		healthstore.WithSource(cfg.Store.Source),
	}
	if cfg.RabbitMQ.Addr != "" {
		a.publisher = publisher.NewRabbitMQActor(cfg.RabbitMQ.Addr, cfg.RabbitMQ.Queue, logger)
		opts = append(opts, healthstore.WithNotifier(a.publisher))
	}

	a.store = healthstore.New(stor, opts...)
	a.controller = profile.NewController(a.store,
		profile.WithLogger(logger),
		profile.WithLocation(loc))

	return a, nil
}

func (a *app) Close() {
	if a.publisher != nil {
		a.publisher.Close()
	}
	if err := a.storage.Close(); err != nil {
		a.logger.Warn("failed to close storage", zap.Error(err))
	}
	_ = a.logger.Sync()
}
