package main

import (
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli"

	monitor "github.com/bitbarlabs/bitbar/bb-monitor"
	"github.com/bitbarlabs/bitbar/bb-monitor/flags"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
)

func main() {
	app := cli.NewApp()
	app.Flags = flags.Flags
	app.Version = Version + "-" + GitCommit
	app.Name = "bitbar-monitor"
	app.Usage = "Bitbar deposit monitor"
	app.Description = "Watches a Bitcoin address for incoming payments and queues eligible ones for bitbar minting"
	app.Action = monitor.Main(Version)

	if err := app.Run(os.Args); err != nil {
		log.Crit("application failed", "err", err)
	}
}
