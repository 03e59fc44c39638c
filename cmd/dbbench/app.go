package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gezibash/dbbench/internal/cli"
	"github.com/gezibash/dbbench/internal/config"
	"github.com/gezibash/dbbench/internal/observability"
)

const shutdownTimeout = 5 * time.Second

// app is the per-command runtime: resolved config, observability and a
// context cancelled on SIGINT or SIGTERM.
type app struct {
	cfg  config.Config
	obs  *observability.Observability
	ctx  context.Context
	stop context.CancelFunc
}

func newApp(cmd *cobra.Command, v *viper.Viper, s streams) (*app, error) {
	cfg, err := config.LoadInto(cmd, v)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	obs, err := observability.New(ctx, observability.Config{
		LogLevel:       cfg.Observability.LogLevel,
		LogFormat:      cfg.Observability.LogFormat,
		Color:          cli.IsTerminal(s.err),
		OTLPEndpoint:   cfg.Observability.OTLPEndpoint,
		OTLPProtocol:   cfg.Observability.OTLPProtocol,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: version,
	}, s.err)
	if err != nil {
		stop()
		return nil, err
	}

	if addr := cfg.Observability.MetricsAddr; addr != "" {
		if _, err := obs.ServeMetrics(addr); err != nil {
			stop()
			_ = obs.Close(context.Background())
			return nil, err
		}
	}

	return &app{cfg: cfg, obs: obs, ctx: ctx, stop: stop}, nil
}

func (a *app) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.obs.Close(ctx); err != nil {
		a.obs.Logger.Warn("shutdown incomplete", "error", err)
	}
	a.stop()
}
