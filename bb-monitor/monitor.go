// Package monitor implements the bitbar monitor: it watches a single
// Bitcoin address on a block explorer, persists every incoming payment in
// the minting ledger, and exposes the job queue the minter worker polls.
package monitor

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli"
	"golang.org/x/sync/errgroup"

	"github.com/bitbarlabs/bitbar/bb-monitor/api"
	"github.com/bitbarlabs/bitbar/bb-monitor/ledger"
	"github.com/bitbarlabs/bitbar/bb-monitor/metrics"
	bbservice "github.com/bitbarlabs/bitbar/bb-service"
	"github.com/bitbarlabs/bitbar/bb-service/esplora"
)

// Main is the entrypoint into the monitor service. It is wired up as the
// cli action of the bitbar-monitor binary.
func Main(version string) func(cliCtx *cli.Context) error {
	return func(cliCtx *cli.Context) error {
		cfg := ReadConfig(cliCtx)
		if err := cfg.Check(); err != nil {
			return fmt.Errorf("invalid CLI flags: %w", err)
		}

		l, err := bbservice.SetupLogger(cfg.LogLevel, "")
		if err != nil {
			return err
		}
		l.Info("starting bitbar monitor", "version", version, "address", cfg.WatchedAddress)

		// Failing to open the ledger is fatal; everything else is contained.
		lgr, err := ledger.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open ledger at %s: %w", cfg.DBPath, err)
		}

		registry := prometheus.NewRegistry()
		m := metrics.NewMetrics("bitbar", registry)

		backend := esplora.NewClient(cfg.UpstreamURL, cfg.UpstreamTimeout)
		poller := NewPoller(cfg, backend, lgr, l, m)
		server := api.NewServer(cfg.HTTPAddr, lgr, cfg.WatchedAddress, poller.LastCheck, l, m, registry)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		var g errgroup.Group
		g.Go(func() error {
			poller.Start(ctx)
			return nil
		})
		g.Go(server.Start)
		g.Go(func() error {
			<-ctx.Done()
			l.Info("shutting down")
			shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shCtx)
		})

		var result *multierror.Error
		result = multierror.Append(result, g.Wait())
		if err := lgr.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close ledger: %w", err))
		}
		return result.ErrorOrNil()
	}
}
