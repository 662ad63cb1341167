package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tournevent/apc/internal/server"
	"go.uber.org/zap"
)

var version = "0.0.1"

var (
	flagMock     bool
	flagLogLevel string
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "apc",
	Short:   "APC Overnight bridge - book, label and track UK courier consignments",
	Version: version,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP bridge",
	RunE:  runServe,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagMock, "mock", false, "use the in-process APC mock instead of the live API")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "override LOG_LEVEL")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := bootstrap(ctx, false)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	a.logger.Info("Starting APC bridge",
		zap.Int("port", a.cfg.Port),
		zap.String("version", a.cfg.Version),
		zap.Bool("sandbox", a.cfg.APCSandbox),
		zap.Bool("mock", a.cfg.APCUseMock),
	)

	srv := server.New(server.Config{Port: a.cfg.Port, Company: a.company}, a.registry, a.logger)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
