package flags

import (
	"time"

	"github.com/urfave/cli"

	bbservice "github.com/bitbarlabs/bitbar/bb-service"
)

const EnvVarPrefix = "BITBAR_MINTER"

func prefixEnvVar(name string) string {
	return bbservice.PrefixEnvVar(EnvVarPrefix, name)
}

const (
	ServerURLFlagName       = "server-url"
	IntervalFlagName        = "interval"
	MaxRetriesFlagName      = "max-retries"
	InterDispatchFlagName   = "inter-dispatch"
	MaxConcurrentFlagName   = "max-concurrent"
	CommandTemplateFlagName = "command-template"
	RequestTimeoutFlagName  = "request-timeout"
	JournalPathFlagName     = "journal-path"
	LogFileFlagName         = "log-file"
	HTTPAddrFlagName        = "http-addr"
	LogLevelFlagName        = "log-level"
)

var (
	ServerURLFlag = cli.StringFlag{
		Name:   ServerURLFlagName,
		Usage:  "Base URL of the bitbar monitor",
		Value:  "http://localhost:3000",
		EnvVar: "SERVER_URL",
	}
	IntervalFlag = cli.DurationFlag{
		Name:   IntervalFlagName,
		Usage:  "Interval between pending-mints polls",
		Value:  30 * time.Second,
		EnvVar: prefixEnvVar("INTERVAL"),
	}
	MaxRetriesFlag = cli.IntFlag{
		Name:   MaxRetriesFlagName,
		Usage:  "Maximum inscription attempts per transaction",
		Value:  3,
		EnvVar: prefixEnvVar("MAX_RETRIES"),
	}
	InterDispatchFlag = cli.DurationFlag{
		Name:   InterDispatchFlagName,
		Usage:  "Minimum spacing between mint dispatches",
		Value:  time.Second,
		EnvVar: prefixEnvVar("INTER_DISPATCH"),
	}
	MaxConcurrentFlag = cli.IntFlag{
		Name:   MaxConcurrentFlagName,
		Usage:  "Maximum concurrently executing inscription tools. The wallet is a single physical resource; keep this at 1 unless you know better.",
		Value:  1,
		EnvVar: prefixEnvVar("MAX_CONCURRENT"),
	}
	CommandTemplateFlag = cli.StringFlag{
		Name:   CommandTemplateFlagName,
		Usage:  "Inscription command template. {wallet}, {file} and {destination} are substituted.",
		Value:  "ord --wallet {wallet} wallet inscribe --fee-rate 1 --file {file} --destination {destination}",
		EnvVar: prefixEnvVar("COMMAND_TEMPLATE"),
	}
	RequestTimeoutFlag = cli.DurationFlag{
		Name:   RequestTimeoutFlagName,
		Usage:  "Timeout for a single monitor API request",
		Value:  5 * time.Second,
		EnvVar: prefixEnvVar("REQUEST_TIMEOUT"),
	}
	JournalPathFlag = cli.StringFlag{
		Name:   JournalPathFlagName,
		Usage:  "Path of the local mint journal",
		Value:  "mints.json",
		EnvVar: prefixEnvVar("JOURNAL_PATH"),
	}
	LogFileFlag = cli.StringFlag{
		Name:   LogFileFlagName,
		Usage:  "Append-only log file. Empty disables file logging.",
		Value:  "minting-service.log",
		EnvVar: prefixEnvVar("LOG_FILE"),
	}
	HTTPAddrFlag = cli.StringFlag{
		Name:   HTTPAddrFlagName,
		Usage:  "Listen address of the introspection HTTP server",
		Value:  ":3001",
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
	ServerURLFlag,
	IntervalFlag,
	MaxRetriesFlag,
	InterDispatchFlag,
	MaxConcurrentFlag,
	CommandTemplateFlag,
	RequestTimeoutFlag,
	JournalPathFlag,
	LogFileFlag,
	HTTPAddrFlag,
	LogLevelFlag,
}
