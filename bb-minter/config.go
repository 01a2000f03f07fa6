package minter

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli"

	"github.com/bitbarlabs/bitbar/bb-minter/flags"
)

// Config houses parameters for the minter worker.
type Config struct {
	// ServerURL is the base URL of the monitor API.
	ServerURL string

	// WalletName and FilePath come from the mint command arguments and
	// are substituted into the command template together with the
	// per-transaction destination.
	WalletName string
	FilePath   string

	// Interval is the period of the scheduler loop.
	Interval time.Duration

	// MaxRetries caps inscription attempts per transaction.
	MaxRetries int

	// InterDispatch is the minimum spacing between handler dispatches.
	InterDispatch time.Duration

	// MaxConcurrent caps concurrently executing inscription subprocesses.
	MaxConcurrent int

	// CommandTemplate is the inscription tool invocation with {wallet},
	// {file} and {destination} placeholders.
	CommandTemplate string

	// RequestTimeout bounds every monitor API request.
	RequestTimeout time.Duration

	JournalPath string
	LogFile     string
	HTTPAddr    string
	LogLevel    string
}

func (c Config) Check() error {
	if c.ServerURL == "" {
		return errors.New("must provide a monitor server URL")
	}
	if c.WalletName == "" {
		return errors.New("must provide a wallet name")
	}
	if c.FilePath == "" {
		return errors.New("must provide an inscription file path")
	}
	if _, err := os.Stat(c.FilePath); err != nil {
		return fmt.Errorf("inscription file %s: %w", c.FilePath, err)
	}
	if c.Interval == 0 {
		return errors.New("must provide a scheduler interval")
	}
	if c.MaxRetries <= 0 {
		return errors.New("must provide a positive retry limit")
	}
	if !strings.Contains(c.CommandTemplate, "{destination}") {
		return errors.New("command template must contain {destination}")
	}
	if c.JournalPath == "" {
		return errors.New("must provide a journal path")
	}
	return nil
}

// ReadConfig reads the flag-bound part of the config; wallet name and file
// path are filled in from the mint command arguments by the caller.
func ReadConfig(ctx *cli.Context) Config {
	return Config{
		ServerURL:       ctx.GlobalString(flags.ServerURLFlagName),
		Interval:        ctx.GlobalDuration(flags.IntervalFlagName),
		MaxRetries:      ctx.GlobalInt(flags.MaxRetriesFlagName),
		InterDispatch:   ctx.GlobalDuration(flags.InterDispatchFlagName),
		MaxConcurrent:   ctx.GlobalInt(flags.MaxConcurrentFlagName),
		CommandTemplate: ctx.GlobalString(flags.CommandTemplateFlagName),
		RequestTimeout:  ctx.GlobalDuration(flags.RequestTimeoutFlagName),
		JournalPath:     ctx.GlobalString(flags.JournalPathFlagName),
		LogFile:         ctx.GlobalString(flags.LogFileFlagName),
		HTTPAddr:        ctx.GlobalString(flags.HTTPAddrFlagName),
		LogLevel:        ctx.GlobalString(flags.LogLevelFlagName),
	}
}
