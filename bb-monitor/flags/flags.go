package flags

import (
	"time"

	"github.com/urfave/cli"

	bbservice "github.com/bitbarlabs/bitbar/bb-service"
)

const EnvVarPrefix = "BITBAR_MONITOR"

func prefixEnvVar(name string) string {
	return bbservice.PrefixEnvVar(EnvVarPrefix, name)
}

const (
	WatchedAddressFlagName   = "watched-address"
	UpstreamURLFlagName      = "upstream-url"
	UpstreamTimeoutFlagName  = "upstream-timeout"
	PollIntervalFlagName     = "poll-interval"
	ThresholdSatsFlagName    = "threshold-sats"
	RetentionHorizonFlagName = "retention-horizon"
	DBPathFlagName           = "db-path"
	HTTPAddrFlagName         = "http-addr"
	LogLevelFlagName         = "log-level"
)

var (
	WatchedAddressFlag = cli.StringFlag{
		Name:   WatchedAddressFlagName,
		Usage:  "The Bitcoin address to watch for incoming payments",
		EnvVar: prefixEnvVar("WATCHED_ADDRESS"),
	}
	UpstreamURLFlag = cli.StringFlag{
		Name:   UpstreamURLFlagName,
		Usage:  "Base URL of the Esplora-compatible block explorer API",
		Value:  "https://mempool.space/api",
		EnvVar: prefixEnvVar("UPSTREAM_URL"),
	}
	UpstreamTimeoutFlag = cli.DurationFlag{
		Name:   UpstreamTimeoutFlagName,
		Usage:  "Timeout for a single upstream explorer request",
		Value:  5 * time.Second,
		EnvVar: prefixEnvVar("UPSTREAM_TIMEOUT"),
	}
	PollIntervalFlag = cli.DurationFlag{
		Name:   PollIntervalFlagName,
		Usage:  "Interval between upstream polls",
		Value:  10 * time.Second,
		EnvVar: prefixEnvVar("POLL_INTERVAL"),
	}
	ThresholdSatsFlag = cli.Int64Flag{
		Name:   ThresholdSatsFlagName,
		Usage:  "Minimum payment in sats that makes a transaction eligible for a bitbar",
		Value:  1641,
		EnvVar: prefixEnvVar("THRESHOLD_SATS"),
	}
	RetentionHorizonFlag = cli.DurationFlag{
		Name:   RetentionHorizonFlagName,
		Usage:  "Age after which non-pending records are swept. 0 disables the sweep.",
		Value:  0,
		EnvVar: prefixEnvVar("RETENTION_HORIZON"),
	}
	DBPathFlag = cli.StringFlag{
		Name:   DBPathFlagName,
		Usage:  "Path of the SQLite ledger database file",
		Value:  "bitbar-monitor.db",
		EnvVar: prefixEnvVar("DB_PATH"),
	}
	HTTPAddrFlag = cli.StringFlag{
		Name:   HTTPAddrFlagName,
		Usage:  "Listen address of the monitor HTTP API",
		Value:  ":3000",
		EnvVar: prefixEnvVar("HTTP_ADDR"),
	}
	LogLevelFlag = cli.StringFlag{
		Name:   LogLevelFlagName,
		Usage:  "The lowest log level that will be output",
		Value:  "info",
		EnvVar: prefixEnvVar("LOG_LEVEL"),
	}
)

var Flags = []cli.Flag{
	WatchedAddressFlag,
	UpstreamURLFlag,
	UpstreamTimeoutFlag,
	PollIntervalFlag,
	ThresholdSatsFlag,
	RetentionHorizonFlag,
	DBPathFlag,
	HTTPAddrFlag,
	LogLevelFlag,
}
