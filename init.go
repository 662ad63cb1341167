package main

import (
	"context"
	"fmt"

	"github.com/tournevent/apc/internal/config"
	"github.com/tournevent/apc/internal/telemetry"
	"github.com/tournevent/apc/pkg/shipper"
	"github.com/tournevent/apc/pkg/shipper/apc"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// app is what every command needs once configuration is loaded.
type app struct {
	cfg      *config.Config
	company  shipper.Company
	logger   *otelzap.Logger
	registry *shipper.Registry
	shutdown func(context.Context) error
}

// bootstrap loads configuration and wires telemetry and the shipper
// registry. CLI commands log to stderr so stdout carries only results.
func bootstrap(ctx context.Context, cli bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if flagMock {
		cfg.APCUseMock = true
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}

	logger, err := initLogger(cfg.LogLevel, cli)
	if err != nil {
		return nil, err
	}

	tracer, shutdown, err := initTracer(ctx, cfg)
	if err != nil {
		logger.Warn("Failed to initialize tracer", zap.Error(err))
		tracer = telemetry.Tracer(cfg.ServiceName)
		shutdown = func(context.Context) error { return nil }
	}

	company, err := cfg.CompanyDetails()
	if err != nil {
		return nil, err
	}

	registry, err := initShipperRegistry(cfg, logger, tracer)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:      cfg,
		company:  company,
		logger:   logger,
		registry: registry,
		shutdown: shutdown,
	}, nil
}

func (a *app) close(ctx context.Context) {
	_ = a.shutdown(ctx)
	_ = a.logger.Sync()
}

// carrier resolves a carrier account by name, or the default one.
func (a *app) carrier(name string) (shipper.Shipper, error) {
	if name == "" {
		return a.registry.Default()
	}
	return a.registry.Get(name)
}

func loadConfig() (*config.Config, error) {
	return config.Load()
}

func initLogger(level string, cli bool) (*otelzap.Logger, error) {
	if cli {
		return telemetry.NewCLILogger(level)
	}
	return telemetry.NewLogger(level)
}

// initTracer hands out the global no-op tracer when tracing is disabled.
func initTracer(ctx context.Context, cfg *config.Config) (trace.Tracer, func(context.Context) error, error) {
	if !cfg.OTELEnabled {
		return telemetry.Tracer(cfg.ServiceName), func(context.Context) error { return nil }, nil
	}

	return telemetry.InitTracer(ctx, cfg.OTELEndpoint, cfg.ServiceName, cfg.Version, cfg.Attributes()...)
}

func initShipperRegistry(cfg *config.Config, logger *otelzap.Logger, tracer trace.Tracer) (*shipper.Registry, error) {
	registry := shipper.NewRegistry()

	apcCfg, err := cfg.APC()
	if err != nil {
		return nil, err
	}
	client, err := apc.New(apcCfg, logger, tracer)
	if err != nil {
		return nil, fmt.Errorf("apc client: %w", err)
	}
	registry.Register(client)

	logger.Debug("Registered carriers",
		zap.Strings("carriers", registry.Names()),
		zap.String("apc_url", apcCfg.URL()),
		zap.Bool("apc_mock", apcCfg.UseMock),
	)
	return registry, nil
}
