package minter

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

	"github.com/bitbarlabs/bitbar/bb-minter/metrics"
	bbservice "github.com/bitbarlabs/bitbar/bb-service"
	"github.com/bitbarlabs/bitbar/bb-service/monclient"
)

// Main is the action of the mint command: it runs the worker until a
// signal arrives.
func Main(version string) func(cliCtx *cli.Context) error {
	return func(cliCtx *cli.Context) error {
		cfg := ReadConfig(cliCtx)
		cfg.WalletName = cliCtx.Args().Get(0)
		cfg.FilePath = cliCtx.Args().Get(1)
		if err := cfg.Check(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		l, err := bbservice.SetupLogger(cfg.LogLevel, cfg.LogFile)
		if err != nil {
			return err
		}
		l.Info("starting bitbar minter", "version", version, "server", cfg.ServerURL)

		registry := prometheus.NewRegistry()
		m := metrics.NewMetrics("bitbar", registry)

		client := monclient.New(cfg.ServerURL, cfg.RequestTimeout)
		journal := NewJournal(cfg.JournalPath)
		worker := New(cfg, client, journal, l, m)
		server := NewServer(cfg.HTTPAddr, worker, journal, l, registry)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		var g errgroup.Group
		g.Go(func() error {
			worker.Start(ctx)
			return nil
		})
		g.Go(server.Start)
		g.Go(func() error {
			<-ctx.Done()
			shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shCtx)
		})

		var result *multierror.Error
		result = multierror.Append(result, g.Wait())
		return result.ErrorOrNil()
	}
}
