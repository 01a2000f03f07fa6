package monitor

import (
	"errors"
	"time"

	"github.com/urfave/cli"

	"github.com/bitbarlabs/bitbar/bb-monitor/flags"
)

// Config houses parameters for the monitor service.
type Config struct {
	// WatchedAddress is the single deposit address the poller follows.
	WatchedAddress string

	// UpstreamURL is the base URL of the Esplora-compatible explorer.
	UpstreamURL string

	// UpstreamTimeout bounds every individual upstream request.
	UpstreamTimeout time.Duration

	// PollInterval is the period of the poll loop.
	PollInterval time.Duration

	// ThresholdSats is the minimum received amount that makes a payment
	// eligible for reward issuance.
	ThresholdSats int64

	// RetentionHorizon is the age after which non-pending records may be
	// deleted. Zero disables the sweep; pending records are never swept.
	RetentionHorizon time.Duration

	// DBPath is the SQLite ledger file.
	DBPath string

	// HTTPAddr is the API listen address.
	HTTPAddr string

	LogLevel string
}

func (c Config) Check() error {
	if c.WatchedAddress == "" {
		return errors.New("must provide a watched address")
	}
	if c.UpstreamURL == "" {
		return errors.New("must provide an upstream explorer URL")
	}
	if c.UpstreamTimeout == 0 {
		return errors.New("must provide UpstreamTimeout")
	}
	if c.PollInterval == 0 {
		return errors.New("must provide PollInterval")
	}
	if c.ThresholdSats <= 0 {
		return errors.New("must provide a positive eligibility threshold")
	}
	if c.DBPath == "" {
		return errors.New("must provide a ledger db path")
	}
	return nil
}

func ReadConfig(ctx *cli.Context) Config {
	return Config{
		WatchedAddress:   ctx.GlobalString(flags.WatchedAddressFlagName),
		UpstreamURL:      ctx.GlobalString(flags.UpstreamURLFlagName),
		UpstreamTimeout:  ctx.GlobalDuration(flags.UpstreamTimeoutFlagName),
		PollInterval:     ctx.GlobalDuration(flags.PollIntervalFlagName),
		ThresholdSats:    ctx.GlobalInt64(flags.ThresholdSatsFlagName),
		RetentionHorizon: ctx.GlobalDuration(flags.RetentionHorizonFlagName),
		DBPath:           ctx.GlobalString(flags.DBPathFlagName),
		HTTPAddr:         ctx.GlobalString(flags.HTTPAddrFlagName),
		LogLevel:         ctx.GlobalString(flags.LogLevelFlagName),
	}
}
