// Command bridge exposes external agent programs over stdio, speaking
// both the legacy line protocol and MCP JSON-RPC.
//
// With no positional arguments it serves newline-delimited requests from
// stdin until EOF or a termination signal. With arguments it runs a
// single invocation:
//
//	bridge <tool> [json-params]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bc-dunia/agentbridge/internal/bridge"
	"github.com/bc-dunia/agentbridge/internal/config"
	"github.com/bc-dunia/agentbridge/internal/events"
	"github.com/bc-dunia/agentbridge/internal/executor"
	"github.com/bc-dunia/agentbridge/internal/metrics"
	"github.com/bc-dunia/agentbridge/internal/otel"
	"github.com/bc-dunia/agentbridge/internal/registry"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", config.DefaultConfigPath(), "Path to the bridge configuration file")
	logLevel := flag.String("log-level", "", "Override the configured log level (DEBUG, INFO, WARN, ERROR)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		return 1
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	// stdout is reserved for protocol frames; the logger targets a file
	// with stderr as fallback.
	logger, closer := events.NewLogger(cfg.Logging.File, cfg.Logging.Level)
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	exporter := otel.ParseExporterType(cfg.Telemetry.Exporter)
	telemetry, err := otel.NewMetrics(ctx, &otel.MetricsConfig{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "agentbridge",
		ServiceVersion: "1.0.0",
		ExporterType:   exporter,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure:   cfg.Telemetry.OTLPInsecure,
	})
	if err != nil {
		logger.Error("telemetry init failed, continuing without export", "err", err)
		telemetry = otel.NoopMetrics()
	}
	tracer, err := otel.NewTracer(ctx, &otel.TracerConfig{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "agentbridge",
		ServiceVersion: "1.0.0",
		ExporterType:   exporter,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure:   cfg.Telemetry.OTLPInsecure,
	})
	if err != nil {
		logger.Error("tracer init failed, continuing without tracing", "err", err)
		tracer, _ = otel.NewTracer(ctx, nil)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown failed", "err", err)
		}
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			logger.Error("tracer shutdown failed", "err", err)
		}
	}()

	reg := registry.New(cfg)
	collector := metrics.NewCollector(cfg.Performance.CollectMetrics)
	exec := executor.New(reg.Workspace(), collector, logger)
	dispatcher := bridge.NewDispatcher(reg, exec, collector, telemetry, tracer, logger, cfg.Security.MaxParamLength)
	server := bridge.NewServer(dispatcher, logger, os.Stdin, os.Stdout)

	if args := flag.Args(); len(args) > 0 {
		params := ""
		if len(args) > 1 {
			params = args[1]
		}
		return server.RunOnce(ctx, args[0], params)
	}

	logger.Info("bridge starting",
		"workspace", reg.Workspace(),
		"agents", reg.Names(),
		"config", *configPath)

	if err := server.Run(ctx); err != nil {
		logger.Error("server loop failed", "err", err)
		return 1
	}
	return 0
}
